package catalog

import (
	"context"
	"errors"
)

// RepositoryPort defines data access methods for the catalog.
type RepositoryPort interface {
	CreateProduct(ctx context.Context, p Product) (*Product, error)
	GetProduct(ctx context.Context, id int64) (*Product, error)
	UpdateProduct(ctx context.Context, id int64, updates map[string]interface{}) error
	ListProducts(ctx context.Context, activeOnly bool) ([]Product, error)
}

// Service handles catalog business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// CreateProduct registers a new product.
func (s *Service) CreateProduct(ctx context.Context, req CreateProductRequest) (*Product, error) {
	if req.Name == "" {
		return nil, errors.New("product name required")
	}
	if req.BasePrice <= 0 {
		return nil, errors.New("base price must be positive")
	}
	return s.repo.CreateProduct(ctx, Product{
		Name:      req.Name,
		Unit:      req.Unit,
		BasePrice: req.BasePrice,
		Active:    true,
	})
}

// GetProduct returns a product by ID.
func (s *Service) GetProduct(ctx context.Context, id int64) (*Product, error) {
	return s.repo.GetProduct(ctx, id)
}

// UpdateProduct modifies an existing product.
func (s *Service) UpdateProduct(ctx context.Context, id int64, req UpdateProductRequest) error {
	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Unit != nil {
		updates["unit"] = *req.Unit
	}
	if req.BasePrice != nil {
		updates["base_price"] = *req.BasePrice
	}
	if req.Active != nil {
		updates["active"] = *req.Active
	}
	if len(updates) == 0 {
		return nil
	}
	return s.repo.UpdateProduct(ctx, id, updates)
}

// ListProducts returns products, optionally restricted to active ones.
func (s *Service) ListProducts(ctx context.Context, activeOnly bool) ([]Product, error) {
	return s.repo.ListProducts(ctx, activeOnly)
}
