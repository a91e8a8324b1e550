package service

import (
	"context"
	"errors"
	"testing"

	"storefront/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogListProducts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		filter models.ProductFilter
		want   []int64
	}{
		{"all", models.ProductFilter{}, []int64{1, 2, 3, 4, 5, 6}},
		{"all keyword", models.ProductFilter{Category: "all"}, []int64{1, 2, 3, 4, 5, 6}},
		{"category", models.ProductFilter{Category: "Stationery"}, []int64{3, 4}},
		{"search name case-insensitive", models.ProductFilter{SearchTerm: "mUg"}, []int64{1}},
		{"search description", models.ProductFilter{SearchTerm: "walnut"}, []int64{2}},
		{"category and search", models.ProductFilter{Category: "Interior", SearchTerm: "glass"}, []int64{5}},
		{"no match", models.ProductFilter{SearchTerm: "bicycle"}, []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			products, err := env.catalog.ListProducts(ctx, tt.filter)
			require.NoError(t, err)

			ids := make([]int64, 0, len(products))
			for _, p := range products {
				ids = append(ids, p.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestCatalogGetProduct(t *testing.T) {
	env := newTestEnv(t)

	p, err := env.catalog.GetProduct(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, "Wooden Cutting Board", p.Name)

	_, err = env.catalog.GetProduct(context.Background(), 404)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestCatalogListCategories(t *testing.T) {
	env := newTestEnv(t)

	categories, err := env.catalog.ListCategories(context.Background())
	require.NoError(t, err)
	require.Len(t, categories, 3)
	assert.Equal(t, "Kitchen", categories[0].Name)
}
