package main

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// fakeCollection keeps documents in memory and understands the handful of
// filters and update operators MongoStore emits.
type fakeCollection struct {
	mu        sync.Mutex
	docs      []bson.M
	err       error
	lastLimit *int64
}

func newFakeCollection() *fakeCollection {
	return &fakeCollection{}
}

func (f *fakeCollection) seed(t *testing.T, doc interface{}) string {
	t.Helper()
	res, err := f.InsertOne(context.Background(), doc)
	require.NoError(t, err)
	return res.InsertedID.(primitive.ObjectID).Hex()
}

func (f *fakeCollection) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return mongo.NewSingleResultFromDocument(bson.D{}, f.err, nil)
	}
	for _, doc := range f.docs {
		if matches(doc, filter.(bson.M)) {
			return mongo.NewSingleResultFromDocument(doc, nil, nil)
		}
	}
	return mongo.NewSingleResultFromDocument(bson.D{}, mongo.ErrNoDocuments, nil)
}

func (f *fakeCollection) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}

	var limit int64
	for _, opt := range opts {
		if opt != nil && opt.Limit != nil {
			limit = *opt.Limit
			f.lastLimit = opt.Limit
		}
	}

	found := []interface{}{}
	for _, doc := range f.docs {
		if limit > 0 && int64(len(found)) >= limit {
			break
		}
		if matches(doc, filter.(bson.M)) {
			found = append(found, doc)
		}
	}
	return mongo.NewCursorFromDocuments(found, nil, nil)
}

func (f *fakeCollection) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}

	raw, err := bson.Marshal(document)
	if err != nil {
		return nil, err
	}
	doc := bson.M{}
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	if _, ok := doc["_id"]; !ok {
		doc["_id"] = primitive.NewObjectID()
	}
	f.docs = append(f.docs, doc)
	return &mongo.InsertOneResult{InsertedID: doc["_id"]}, nil
}

func (f *fakeCollection) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}

	change := update.(bson.M)
	for _, doc := range f.docs {
		if !matches(doc, filter.(bson.M)) {
			continue
		}
		switch set := change["$set"].(type) {
		case bson.M:
			for k, v := range set {
				doc[k] = v
			}
		case map[string]any:
			for k, v := range set {
				doc[k] = v
			}
		}
		if inc, ok := change["$inc"]; ok {
			for k, v := range inc.(bson.M) {
				doc[k] = asInt64(doc[k]) + asInt64(v)
			}
		}
		return &mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil
	}
	return &mongo.UpdateResult{}, nil
}

func (f *fakeCollection) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.docs)
}

func matches(doc bson.M, filter bson.M) bool {
	for key, want := range filter {
		got := doc[key]
		switch w := want.(type) {
		case primitive.Regex:
			s, ok := got.(string)
			if !ok || !regexp.MustCompile("(?"+w.Options+")"+w.Pattern).MatchString(s) {
				return false
			}
		case bson.M:
			if lt, ok := w["$lt"]; ok && !(asInt64(got) < asInt64(lt)) {
				return false
			}
		default:
			if got != want {
				return false
			}
		}
	}
	return true
}

func asInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int32:
		return int64(n)
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

func newTestStore() (*MongoStore, *fakeCollection, *fakeCollection) {
	services := newFakeCollection()
	products := newFakeCollection()
	return &MongoStore{
		services:   services,
		products:   products,
		ping:       func(ctx context.Context) error { return nil },
		maxResults: 1000,
	}, services, products
}

func TestMongoStore_InsertAndGetService(t *testing.T) {
	store, _, _ := newTestStore()
	ctx := context.Background()

	created, err := store.InsertService(ctx, Service{Name: "Maintenance", Description: "Preventive", ClientPrice: 522, RealPrice: 200})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	require.Equal(t, int64(1), created.Version)

	got, err := store.GetService(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, *created, *got)
}

func TestMongoStore_GetNotFound(t *testing.T) {
	store, _, _ := newTestStore()
	ctx := context.Background()

	t.Run("unknown id", func(t *testing.T) {
		_, err := store.GetService(ctx, primitive.NewObjectID().Hex())
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("malformed id", func(t *testing.T) {
		_, err := store.GetProduct(ctx, "not-an-object-id")
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestMongoStore_StoreFailureIsPersistence(t *testing.T) {
	store, services, products := newTestStore()
	services.err = errors.New("connection reset")
	products.err = errors.New("connection reset")
	ctx := context.Background()

	_, err := store.GetService(ctx, primitive.NewObjectID().Hex())
	require.ErrorIs(t, err, ErrPersistence)

	_, err = store.SearchServices(ctx, "name", "x")
	require.ErrorIs(t, err, ErrPersistence)

	_, err = store.InsertProduct(ctx, Product{})
	require.ErrorIs(t, err, ErrPersistence)

	err = store.UpdateService(ctx, primitive.NewObjectID().Hex(), ServiceUpdate{Name: Some("x")})
	require.ErrorIs(t, err, ErrPersistence)
}

func TestMongoStore_InsertRejected(t *testing.T) {
	store, services, _ := newTestStore()
	services.err = mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000, Message: "E11000 duplicate key"}}}

	_, err := store.InsertService(context.Background(), Service{Name: "a", Description: "b"})
	require.ErrorIs(t, err, ErrInsertion)
}

func TestMongoStore_SearchServices(t *testing.T) {
	store, services, _ := newTestStore()
	ctx := context.Background()
	services.seed(t, Service{Name: "Mantenimiento", Description: "Preventivo y correctivo", Version: 1})
	services.seed(t, Service{Name: "Instalación", Description: "Cableado estructurado", Version: 1})
	services.seed(t, Service{Name: "a.c repair", Description: "Aire", Version: 1})

	t.Run("case insensitive substring", func(t *testing.T) {
		found, err := store.SearchServices(ctx, "name", "mant")
		require.NoError(t, err)
		require.Len(t, found, 1)
		require.Equal(t, "Mantenimiento", found[0].Name)
	})

	t.Run("description field", func(t *testing.T) {
		found, err := store.SearchServices(ctx, "description", "CABLEADO")
		require.NoError(t, err)
		require.Len(t, found, 1)
		require.Equal(t, "Instalación", found[0].Name)
	})

	t.Run("term is literal", func(t *testing.T) {
		found, err := store.SearchServices(ctx, "name", "a.c")
		require.NoError(t, err)
		require.Len(t, found, 1)
		require.Equal(t, "a.c repair", found[0].Name)
	})

	t.Run("no match is empty", func(t *testing.T) {
		found, err := store.SearchServices(ctx, "name", "zzz")
		require.NoError(t, err)
		require.NotNil(t, found)
		require.Empty(t, found)
	})

	t.Run("capped", func(t *testing.T) {
		store.maxResults = 2
		defer func() { store.maxResults = 1000 }()

		found, err := store.SearchServices(ctx, "name", "")
		require.NoError(t, err)
		require.Len(t, found, 2)
		require.Equal(t, int64(2), *services.lastLimit)
	})
}

func TestMongoStore_UpdateServiceMerges(t *testing.T) {
	store, _, _ := newTestStore()
	ctx := context.Background()

	created, err := store.InsertService(ctx, Service{Name: "A", Description: "desc", ClientPrice: 10, RealPrice: 5})
	require.NoError(t, err)

	err = store.UpdateService(ctx, created.ID, ServiceUpdate{ClientPrice: Some(20.0)})
	require.NoError(t, err)

	got, err := store.GetService(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "A", got.Name)
	require.Equal(t, "desc", got.Description)
	require.Equal(t, 20.0, got.ClientPrice)
	require.Equal(t, 5.0, got.RealPrice)
	require.Equal(t, int64(2), got.Version)

	err = store.UpdateService(ctx, primitive.NewObjectID().Hex(), ServiceUpdate{Name: Some("B")})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMongoStore_InsertStoresVersionOne(t *testing.T) {
	store, _, _ := newTestStore()
	ctx := context.Background()

	for _, version := range []int64{-7, 0, 42} {
		created, err := store.InsertService(ctx, Service{Name: "A", Description: "desc", Version: version})
		require.NoError(t, err)
		require.Equal(t, int64(1), created.Version)

		got, err := store.GetService(ctx, created.ID)
		require.NoError(t, err)
		require.Equal(t, int64(1), got.Version)
	}

	title := "Camera"
	product, err := store.InsertProduct(ctx, Product{Title: &title, Version: -3})
	require.NoError(t, err)
	require.Equal(t, int64(1), product.Version)
}

func TestMongoStore_Ping(t *testing.T) {
	store, _, _ := newTestStore()
	require.NoError(t, store.Ping(context.Background()))

	store.ping = func(ctx context.Context) error { return errors.New("no primary") }
	require.ErrorIs(t, store.Ping(context.Background()), ErrPersistence)
}
