package catalog

import "time"

// Product is a sellable dairy product with a base unit price.
type Product struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Unit      string    `json:"unit"`
	BasePrice float64   `json:"base_price"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateProductRequest is the payload for registering a product.
type CreateProductRequest struct {
	Name      string  `json:"name" validate:"required,max=200"`
	Unit      string  `json:"unit" validate:"required,max=20"`
	BasePrice float64 `json:"base_price" validate:"required,gt=0"`
}

// UpdateProductRequest updates price or availability.
type UpdateProductRequest struct {
	Name      *string  `json:"name,omitempty" validate:"omitempty,max=200"`
	Unit      *string  `json:"unit,omitempty" validate:"omitempty,max=20"`
	BasePrice *float64 `json:"base_price,omitempty" validate:"omitempty,gt=0"`
	Active    *bool    `json:"active,omitempty"`
}
