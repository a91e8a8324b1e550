package service

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// CatalogService serves read-only product and category queries
type CatalogService struct {
	products ProductRepository
	logger   *zap.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(products ProductRepository) *CatalogService {
	return &CatalogService{
		products: products,
		logger:   util.GetLogger(),
	}
}

// ListProducts returns products matching the filter ordered by id
func (s *CatalogService) ListProducts(ctx context.Context, filter models.ProductFilter) ([]models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.ListProducts")
	defer span.End()

	products, err := s.products.ListProducts(ctx, filter)
	if err != nil {
		s.logger.Error("Failed to list products", zap.Error(err))
		return nil, persistenceErr("list products", err)
	}
	return products, nil
}

// GetProduct returns a single product or ErrNotFound
func (s *CatalogService) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.GetProduct")
	defer span.End()

	return lookupProduct(ctx, s.products, id)
}

// ListCategories returns all categories ordered by id
func (s *CatalogService) ListCategories(ctx context.Context) ([]models.Category, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.ListCategories")
	defer span.End()

	categories, err := s.products.ListCategories(ctx)
	if err != nil {
		s.logger.Error("Failed to list categories", zap.Error(err))
		return nil, persistenceErr("list categories", err)
	}
	return categories, nil
}

func lookupProduct(ctx context.Context, products ProductRepository, id int64) (*models.Product, error) {
	product, err := products.GetProductByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, persistenceErr("get product", err)
	}
	return product, nil
}
