package main

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// flexFloat accepts a JSON number or a numeric string. Anything else leaves
// it unset.
type flexFloat struct {
	value *float64
}

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	f.value = nil
	raw := strings.TrimSpace(string(b))
	if raw == "null" || raw == "" {
		return nil
	}
	raw = strings.Trim(raw, `"`)
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return nil
	}
	f.value = &v
	return nil
}

func (f flexFloat) Ptr() *float64 { return f.value }

type flexInt struct {
	value *int64
}

func (f *flexInt) UnmarshalJSON(b []byte) error {
	f.value = nil
	raw := strings.TrimSpace(string(b))
	if raw == "null" || raw == "" {
		return nil
	}
	raw = strings.TrimSpace(strings.Trim(raw, `"`))
	if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
		f.value = &v
		return nil
	}
	// catalog ids sometimes come back as "123.0"
	fv, err := strconv.ParseFloat(raw, 64)
	if err != nil || fv != float64(int64(fv)) {
		return nil
	}
	v := int64(fv)
	f.value = &v
	return nil
}

func (f flexInt) Ptr() *int64 { return f.value }

type flexString struct {
	value *string
}

func (f *flexString) UnmarshalJSON(b []byte) error {
	f.value = nil
	if string(bytes.TrimSpace(b)) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		f.value = &s
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		s = n.String()
		f.value = &s
	}
	return nil
}

func (f flexString) Ptr() *string { return f.value }

type RawPrices struct {
	Price1        flexFloat `json:"precio_1"`
	SpecialPrice  flexFloat `json:"precio_especial"`
	DiscountPrice flexFloat `json:"precio_descuento"`
	ListPrice     flexFloat `json:"precio_lista"`
}

// UnmarshalJSON tolerates a missing or malformed price block.
func (p *RawPrices) UnmarshalJSON(b []byte) error {
	type alias RawPrices
	var a alias
	if err := json.Unmarshal(b, &a); err != nil {
		*p = RawPrices{}
		return nil
	}
	*p = RawPrices(a)
	return nil
}

type RawStock struct {
	New flexInt `json:"nuevo"`
}

func (s *RawStock) UnmarshalJSON(b []byte) error {
	type alias RawStock
	var a alias
	if err := json.Unmarshal(b, &a); err != nil {
		*s = RawStock{}
		return nil
	}
	*s = RawStock(a)
	return nil
}

// RawCatalogRecord is one product as the catalog API returns it. Only the
// fields that feed Product are decoded strictly enough to be used.
type RawCatalogRecord struct {
	ProductID  flexInt         `json:"producto_id"`
	Model      flexString      `json:"modelo"`
	TotalStock flexInt         `json:"total_existencia"`
	Title      flexString      `json:"titulo"`
	Brand      flexString      `json:"marca"`
	SatKey     flexInt         `json:"sat_key"`
	CoverImage flexString      `json:"img_portada"`
	Categories json.RawMessage `json:"categorias"`
	Link       flexString      `json:"link"`
	Weight     flexFloat       `json:"peso"`
	Stock      *RawStock       `json:"existencia"`
	Prices     *RawPrices      `json:"precios"`
}

type catalogSearchPage struct {
	Quantity flexInt            `json:"cantidad"`
	Pages    flexInt            `json:"paginas"`
	Products []RawCatalogRecord `json:"productos"`
}

// decodeCatalogRecords accepts either a page object or a bare array.
func decodeCatalogRecords(body []byte) ([]RawCatalogRecord, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var records []RawCatalogRecord
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, err
		}
		return records, nil
	}

	var page catalogSearchPage
	if err := json.Unmarshal(trimmed, &page); err != nil {
		return nil, err
	}
	return page.Products, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

const (
	EventServiceCreated = "service.created"
	EventServiceUpdated = "service.updated"
	EventProductCreated = "product.created"
)

// Notification is the envelope published for every asynchronous write.
type Notification struct {
	EventID    string          `json:"event_id"`
	Type       string          `json:"type"`
	EntityID   string          `json:"entity_id,omitempty"`
	Version    int64           `json:"version"`
	OccurredAt time.Time       `json:"occurred_at"`
	Content    json.RawMessage `json:"content"`
}

func NewNotification(eventType string, entityID string, version int64, content any) (*Notification, error) {
	payload, err := json.Marshal(content)
	if err != nil {
		return nil, err
	}

	return &Notification{
		EventID:    uuid.NewString(),
		Type:       eventType,
		EntityID:   entityID,
		Version:    version,
		OccurredAt: time.Now().UTC(),
		Content:    payload,
	}, nil
}

// PartitionKey keeps every event for one entity on the same partition.
func (n *Notification) PartitionKey() string {
	if n.EntityID != "" {
		return n.EntityID
	}
	return n.EventID
}

type devTokenRequest struct {
	Service string `json:"service" validate:"required"`
	TTLMin  int    `json:"ttl_minutes" validate:"omitempty,gte=1,lte=1440"`
}

type devTokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
