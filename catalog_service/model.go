package main

import (
	"encoding/json"
	"errors"

	"github.com/akmmp241/catalog-gateway/shared"
	"github.com/go-playground/validator/v10"
)

type Service struct {
	ID          string  `json:"id,omitempty" bson:"_id,omitempty"`
	Name        string  `json:"name" bson:"name" validate:"required"`
	Description string  `json:"description" bson:"description" validate:"required"`
	ClientPrice float64 `json:"client_price" bson:"client_price" validate:"gte=0"`
	RealPrice   float64 `json:"real_price" bson:"real_price" validate:"gte=0"`
	Version     int64   `json:"version" bson:"version"`
}

// Product fields mirrored from the catalog may be absent, so they are
// pointers and render as null.
type Product struct {
	ID            string   `json:"id,omitempty" bson:"_id,omitempty"`
	Title         *string  `json:"title" bson:"title" validate:"required"`
	ListPrice     *float64 `json:"list_price" bson:"list_price" validate:"required,gte=0"`
	DiscountPrice *float64 `json:"discount_price" bson:"discount_price" validate:"required,gte=0"`
	Image         *string  `json:"image" bson:"image" validate:"required"`
	StockNumber   *int64   `json:"stock_number" bson:"stock_number" validate:"required,gte=0"`
	Brand         *string  `json:"brand" bson:"brand" validate:"required"`
	ProductID     *int64   `json:"product_id" bson:"product_id" validate:"required"`
	Model         *string  `json:"model" bson:"model" validate:"required"`
	SatKey        *int64   `json:"sat_key" bson:"sat_key" validate:"required"`
	Weight        *float64 `json:"weight" bson:"weight" validate:"required,gte=0"`
	Version       int64    `json:"version" bson:"version"`
}

var errNullField = errors.New("field cannot be null")

// Optional records whether a field was present in a partial payload.
type Optional[T any] struct {
	Value T
	Set   bool
}

func Some[T any](v T) Optional[T] {
	return Optional[T]{Value: v, Set: true}
}

func (o *Optional[T]) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return errNullField
	}
	if err := json.Unmarshal(b, &o.Value); err != nil {
		return err
	}
	o.Set = true
	return nil
}

func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.Set {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

func (o Optional[T]) Or(fallback T) T {
	if o.Set {
		return o.Value
	}
	return fallback
}

type ServiceUpdate struct {
	Name        Optional[string]  `json:"name"`
	Description Optional[string]  `json:"description"`
	ClientPrice Optional[float64] `json:"client_price"`
	RealPrice   Optional[float64] `json:"real_price"`
}

func (u ServiceUpdate) IsEmpty() bool {
	return !u.Name.Set && !u.Description.Set && !u.ClientPrice.Set && !u.RealPrice.Set
}

// Apply merges the present fields over s. Absent fields keep their value.
func (u ServiceUpdate) Apply(s Service) Service {
	s.Name = u.Name.Or(s.Name)
	s.Description = u.Description.Or(s.Description)
	s.ClientPrice = u.ClientPrice.Or(s.ClientPrice)
	s.RealPrice = u.RealPrice.Or(s.RealPrice)
	return s
}

// Fields returns the present fields keyed by their stored names.
func (u ServiceUpdate) Fields() map[string]any {
	fields := map[string]any{}
	if u.Name.Set {
		fields["name"] = u.Name.Value
	}
	if u.Description.Set {
		fields["description"] = u.Description.Value
	}
	if u.ClientPrice.Set {
		fields["client_price"] = u.ClientPrice.Value
	}
	if u.RealPrice.Set {
		fields["real_price"] = u.RealPrice.Value
	}
	return fields
}

// Validate applies the Service rules to the present fields only.
func (u ServiceUpdate) Validate(validate *validator.Validate) error {
	checks := []struct {
		field string
		set   bool
		value any
		rule  string
	}{
		{"name", u.Name.Set, u.Name.Value, "required"},
		{"description", u.Description.Set, u.Description.Value, "required"},
		{"client_price", u.ClientPrice.Set, u.ClientPrice.Value, "gte=0"},
		{"real_price", u.RealPrice.Set, u.RealPrice.Value, "gte=0"},
	}

	failed := map[string]string{}
	for _, check := range checks {
		if !check.set {
			continue
		}
		if err := validate.Var(check.value, check.rule); err != nil {
			var verrs validator.ValidationErrors
			if errors.As(err, &verrs) {
				failed[check.field] = shared.DescribeFieldError(verrs[0])
				continue
			}
			return err
		}
	}

	if len(failed) > 0 {
		return &shared.FailedValidationError{Fields: failed}
	}
	return nil
}
