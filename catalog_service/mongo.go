package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	servicesCollection = "services"
	productsCollection = "products"
)

// collection is the part of *mongo.Collection the store relies on.
type collection interface {
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error)
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
}

func ConnectMongo(ctx context.Context, url string, timeout time.Duration) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(url))
	if err != nil {
		slog.Error("Error occurred while connecting to mongodb", "err", err)
		return nil, err
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		slog.Error("Error occurred while pinging mongodb", "err", err)
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	return client, nil
}

type MongoStore struct {
	services   collection
	products   collection
	ping       func(ctx context.Context) error
	maxResults int64
	timeout    time.Duration
}

func NewMongoStore(db *mongo.Database, maxResults int64, timeout time.Duration) *MongoStore {
	return &MongoStore{
		services: db.Collection(servicesCollection),
		products: db.Collection(productsCollection),
		ping: func(ctx context.Context) error {
			return db.Client().Ping(ctx, readpref.Primary())
		},
		maxResults: maxResults,
		timeout:    timeout,
	}
}

func (m *MongoStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, m.timeout)
}

func (m *MongoStore) Ping(ctx context.Context) error {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	if err := m.ping(ctx); err != nil {
		return fmt.Errorf("ping store: %w: %w", ErrPersistence, err)
	}
	return nil
}

func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("id %q: %w", id, ErrNotFound)
	}
	return oid, nil
}

func (m *MongoStore) findOne(ctx context.Context, coll collection, id string, out interface{}) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}

	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	err = coll.FindOne(ctx, bson.M{"_id": oid}).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("id %q: %w", id, ErrNotFound)
	}
	if err != nil {
		slog.Error("Error occurred while finding document", "id", id, "err", err)
		return fmt.Errorf("find %q: %w: %w", id, ErrPersistence, err)
	}
	return nil
}

func (m *MongoStore) GetService(ctx context.Context, id string) (*Service, error) {
	var service Service
	if err := m.findOne(ctx, m.services, id, &service); err != nil {
		return nil, err
	}
	return &service, nil
}

func (m *MongoStore) GetProduct(ctx context.Context, id string) (*Product, error) {
	var product Product
	if err := m.findOne(ctx, m.products, id, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

// SearchServices matches term as a case-insensitive literal substring of field.
func (m *MongoStore) SearchServices(ctx context.Context, field string, term string) ([]Service, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	filter := bson.M{field: primitive.Regex{Pattern: regexp.QuoteMeta(term), Options: "i"}}
	opts := options.Find()
	if m.maxResults > 0 {
		opts.SetLimit(m.maxResults)
	}

	cursor, err := m.services.Find(ctx, filter, opts)
	if err != nil {
		slog.Error("Error occurred while searching services", "field", field, "err", err)
		return nil, fmt.Errorf("search services by %s: %w: %w", field, ErrPersistence, err)
	}
	defer cursor.Close(ctx)

	services := []Service{}
	if err := cursor.All(ctx, &services); err != nil {
		slog.Error("Error occurred while decoding services", "field", field, "err", err)
		return nil, fmt.Errorf("decode services: %w: %w", ErrPersistence, err)
	}
	return services, nil
}

func (m *MongoStore) insert(ctx context.Context, coll collection, document interface{}) (string, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	res, err := coll.InsertOne(ctx, document)
	if err != nil {
		var writeErr mongo.WriteException
		if mongo.IsDuplicateKeyError(err) || errors.As(err, &writeErr) {
			return "", fmt.Errorf("insert: %w: %w", ErrInsertion, err)
		}
		slog.Error("Error occurred while inserting document", "err", err)
		return "", fmt.Errorf("insert: %w: %w", ErrPersistence, err)
	}

	switch id := res.InsertedID.(type) {
	case primitive.ObjectID:
		return id.Hex(), nil
	case string:
		return id, nil
	default:
		return fmt.Sprint(id), nil
	}
}

// InsertService stores s as version 1 and returns it with the assigned id.
func (m *MongoStore) InsertService(ctx context.Context, s Service) (*Service, error) {
	s.ID = ""
	s.Version = 1

	id, err := m.insert(ctx, m.services, s)
	if err != nil {
		return nil, err
	}
	s.ID = id
	return &s, nil
}

func (m *MongoStore) InsertProduct(ctx context.Context, p Product) (*Product, error) {
	p.ID = ""
	p.Version = 1

	id, err := m.insert(ctx, m.products, p)
	if err != nil {
		return nil, err
	}
	p.ID = id
	return &p, nil
}

// UpdateService sets only the fields present in update and bumps the version.
func (m *MongoStore) UpdateService(ctx context.Context, id string, update ServiceUpdate) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}

	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	change := bson.M{"$inc": bson.M{"version": int64(1)}}
	if fields := update.Fields(); len(fields) > 0 {
		change["$set"] = fields
	}

	res, err := m.services.UpdateOne(ctx, bson.M{"_id": oid}, change)
	if err != nil {
		slog.Error("Error occurred while updating service", "id", id, "err", err)
		return fmt.Errorf("update service %q: %w: %w", id, ErrPersistence, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("id %q: %w", id, ErrNotFound)
	}
	return nil
}
