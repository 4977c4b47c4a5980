package main

import (
	"context"
	"log/slog"
	"strconv"
)

// Repository is the storage and network side of the gateway.
type Repository interface {
	GetService(ctx context.Context, id string) (*Service, error)
	GetProduct(ctx context.Context, id string) (*Product, error)
	SearchProducts(ctx context.Context, term string) ([]RawCatalogRecord, error)
	SearchServicesByName(ctx context.Context, term string) ([]Service, error)
	SearchServicesByDescription(ctx context.Context, term string) ([]Service, error)
	CreateService(ctx context.Context, s Service) (*Service, error)
	CreateProduct(ctx context.Context, p Product) (*Product, error)
	UpdateService(ctx context.Context, id string, update ServiceUpdate) error
	NotifyService(ctx context.Context, eventType string, s Service) error
	NotifyServiceUpdate(ctx context.Context, id string, version int64, update ServiceUpdate) error
	NotifyProduct(ctx context.Context, eventType string, p Product) error
}

type Gateway interface {
	GetService(ctx context.Context, id string) (*Service, error)
	GetProduct(ctx context.Context, id string) (*Product, error)
	SearchProducts(ctx context.Context, term string) ([]Product, error)
	SearchServicesByName(ctx context.Context, term string) ([]Service, error)
	SearchServicesByDescription(ctx context.Context, term string) ([]Service, error)
	CreateService(ctx context.Context, s Service) (*Service, error)
	CreateProduct(ctx context.Context, p Product) (*Product, error)
	ModifyService(ctx context.Context, id string, update ServiceUpdate) (*Service, error)
}

type gateway struct {
	repo          Repository
	streamConsume bool
}

// NewGateway routes every mutation to a direct store write, or to a
// published notification when streamConsume is set.
func NewGateway(repo Repository, streamConsume bool) Gateway {
	return &gateway{repo: repo, streamConsume: streamConsume}
}

func (g *gateway) GetService(ctx context.Context, id string) (*Service, error) {
	return g.repo.GetService(ctx, id)
}

func (g *gateway) GetProduct(ctx context.Context, id string) (*Product, error) {
	return g.repo.GetProduct(ctx, id)
}

func (g *gateway) SearchProducts(ctx context.Context, term string) ([]Product, error) {
	records, err := g.repo.SearchProducts(ctx, term)
	if err != nil {
		return nil, err
	}
	return NormalizeCatalogRecords(records), nil
}

func (g *gateway) SearchServicesByName(ctx context.Context, term string) ([]Service, error) {
	return g.repo.SearchServicesByName(ctx, term)
}

func (g *gateway) SearchServicesByDescription(ctx context.Context, term string) ([]Service, error) {
	return g.repo.SearchServicesByDescription(ctx, term)
}

func (g *gateway) CreateService(ctx context.Context, s Service) (*Service, error) {
	writesTotal.WithLabelValues("service", writeMode(g.streamConsume)).Inc()

	s.ID = ""
	s.Version = 1
	if !g.streamConsume {
		return g.repo.CreateService(ctx, s)
	}

	if err := g.repo.NotifyService(ctx, EventServiceCreated, s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (g *gateway) CreateProduct(ctx context.Context, p Product) (*Product, error) {
	writesTotal.WithLabelValues("product", writeMode(g.streamConsume)).Inc()

	p.ID = ""
	p.Version = 1
	if !g.streamConsume {
		return g.repo.CreateProduct(ctx, p)
	}

	if err := g.repo.NotifyProduct(ctx, EventProductCreated, p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ModifyService in stream mode publishes the present fields only and returns
// the merged entity the consumer is expected to write, not a confirmation
// that it was written. Its version is a projection: concurrent updates are
// each applied by the consumer as an increment.
func (g *gateway) ModifyService(ctx context.Context, id string, update ServiceUpdate) (*Service, error) {
	writesTotal.WithLabelValues("service", writeMode(g.streamConsume)).Inc()

	if !g.streamConsume {
		if !update.IsEmpty() {
			if err := g.repo.UpdateService(ctx, id, update); err != nil {
				return nil, err
			}
		}
		return g.repo.GetService(ctx, id)
	}

	current, err := g.repo.GetService(ctx, id)
	if err != nil {
		return nil, err
	}
	if update.IsEmpty() {
		return current, nil
	}

	merged := update.Apply(*current)
	merged.Version = current.Version + 1
	if err := g.repo.NotifyServiceUpdate(ctx, id, merged.Version, update); err != nil {
		return nil, err
	}

	slog.Debug("Service update published", "id", id, "version", merged.Version)
	return &merged, nil
}

// NormalizeCatalogRecords maps catalog records to products in input order.
// Missing catalog fields stay nil.
func NormalizeCatalogRecords(records []RawCatalogRecord) []Product {
	products := make([]Product, 0, len(records))
	for _, r := range records {
		p := Product{
			Title:     r.Title.Ptr(),
			Image:     r.CoverImage.Ptr(),
			Brand:     r.Brand.Ptr(),
			ProductID: r.ProductID.Ptr(),
			Model:     r.Model.Ptr(),
			SatKey:    r.SatKey.Ptr(),
			Weight:    r.Weight.Ptr(),
		}
		if r.Prices != nil {
			p.ListPrice = r.Prices.ListPrice.Ptr()
			p.DiscountPrice = r.Prices.DiscountPrice.Ptr()
		}
		if r.Stock != nil {
			p.StockNumber = r.Stock.New.Ptr()
		}
		if p.ProductID != nil {
			p.ID = strconv.FormatInt(*p.ProductID, 10)
		}
		products = append(products, p)
	}
	return products
}
