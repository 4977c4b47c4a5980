package main

import (
	"context"
	"fmt"
)

type serviceStore interface {
	GetService(ctx context.Context, id string) (*Service, error)
	GetProduct(ctx context.Context, id string) (*Product, error)
	SearchServices(ctx context.Context, field string, term string) ([]Service, error)
	InsertService(ctx context.Context, s Service) (*Service, error)
	InsertProduct(ctx context.Context, p Product) (*Product, error)
	UpdateService(ctx context.Context, id string, update ServiceUpdate) error
}

type catalogSearcher interface {
	Search(ctx context.Context, term string) ([]RawCatalogRecord, error)
}

type publisher interface {
	Publish(ctx context.Context, n *Notification) error
}

type repository struct {
	store     serviceStore
	catalog   catalogSearcher
	publisher publisher
}

func NewRepository(store serviceStore, catalog catalogSearcher, publisher publisher) Repository {
	return &repository{store: store, catalog: catalog, publisher: publisher}
}

func (r *repository) GetService(ctx context.Context, id string) (*Service, error) {
	return r.store.GetService(ctx, id)
}

func (r *repository) GetProduct(ctx context.Context, id string) (*Product, error) {
	return r.store.GetProduct(ctx, id)
}

func (r *repository) SearchProducts(ctx context.Context, term string) ([]RawCatalogRecord, error) {
	return r.catalog.Search(ctx, term)
}

func (r *repository) SearchServicesByName(ctx context.Context, term string) ([]Service, error) {
	return r.store.SearchServices(ctx, "name", term)
}

func (r *repository) SearchServicesByDescription(ctx context.Context, term string) ([]Service, error) {
	return r.store.SearchServices(ctx, "description", term)
}

func (r *repository) CreateService(ctx context.Context, s Service) (*Service, error) {
	return r.store.InsertService(ctx, s)
}

func (r *repository) CreateProduct(ctx context.Context, p Product) (*Product, error) {
	return r.store.InsertProduct(ctx, p)
}

func (r *repository) UpdateService(ctx context.Context, id string, update ServiceUpdate) error {
	return r.store.UpdateService(ctx, id, update)
}

func (r *repository) NotifyService(ctx context.Context, eventType string, s Service) error {
	return r.notify(ctx, eventType, s.ID, s.Version, s)
}

// NotifyServiceUpdate publishes only the fields present in update.
func (r *repository) NotifyServiceUpdate(ctx context.Context, id string, version int64, update ServiceUpdate) error {
	return r.notify(ctx, EventServiceUpdated, id, version, update.Fields())
}

func (r *repository) NotifyProduct(ctx context.Context, eventType string, p Product) error {
	return r.notify(ctx, eventType, p.ID, p.Version, p)
}

func (r *repository) notify(ctx context.Context, eventType string, entityID string, version int64, content any) error {
	n, err := NewNotification(eventType, entityID, version, content)
	if err != nil {
		return fmt.Errorf("build %s notification: %w: %w", eventType, ErrPersistence, err)
	}
	return r.publisher.Publish(ctx, n)
}
