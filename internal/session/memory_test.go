package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"storefront/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_GetMissingReturnsEmpty(t *testing.T) {
	s := NewMemoryStore(0)
	defer s.Close()

	data, err := s.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.Empty(t, data.Items)
	assert.Zero(t, data.CustomerID)
	assert.Equal(t, 0, s.Len())
}

func TestMemoryStore_UpdatePersists(t *testing.T) {
	s := NewMemoryStore(0)
	defer s.Close()
	ctx := context.Background()

	err := s.Update(ctx, "s1", func(d *Data) error {
		d.Items["1"] = models.CartItem{ID: "1", ProductID: 1, Quantity: 2}
		return nil
	})
	require.NoError(t, err)

	data, err := s.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, data.Items["1"].Quantity)
}

func TestMemoryStore_UpdateErrorDiscardsChanges(t *testing.T) {
	s := NewMemoryStore(0)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Update(ctx, "s1", func(d *Data) error {
		d.Items["1"] = models.CartItem{ID: "1", Quantity: 1}
		return nil
	}))

	boom := errors.New("boom")
	err := s.Update(ctx, "s1", func(d *Data) error {
		d.Items["1"] = models.CartItem{ID: "1", Quantity: 99}
		delete(d.Items, "1")
		return boom
	})
	assert.ErrorIs(t, err, boom)

	data, err := s.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, data.Items["1"].Quantity)
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	s := NewMemoryStore(0)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Update(ctx, "s1", func(d *Data) error {
		d.Items["1"] = models.CartItem{ID: "1", Quantity: 1}
		return nil
	}))

	data, _ := s.Get(ctx, "s1")
	data.Items["1"] = models.CartItem{ID: "1", Quantity: 50}

	again, _ := s.Get(ctx, "s1")
	assert.Equal(t, 1, again.Items["1"].Quantity)
}

func TestMemoryStore_Delete(t *testing.T) {
	s := NewMemoryStore(0)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Update(ctx, "s1", func(d *Data) error {
		d.CustomerID = 7
		return nil
	}))
	require.NoError(t, s.Delete(ctx, "s1"))
	require.NoError(t, s.Delete(ctx, "s1"))

	data, err := s.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Zero(t, data.CustomerID)
	assert.Equal(t, 0, s.Len())
}

func TestMemoryStore_Expiry(t *testing.T) {
	s := NewMemoryStore(time.Hour)
	defer s.Close()
	ctx := context.Background()

	now := time.Now()
	s.now = func() time.Time { return now }

	require.NoError(t, s.Update(ctx, "s1", func(d *Data) error {
		d.CustomerID = 3
		return nil
	}))

	now = now.Add(2 * time.Hour)

	data, err := s.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Zero(t, data.CustomerID)

	s.sweep()
	assert.Equal(t, 0, s.Len())
}

func TestMemoryStore_SerializesPerSession(t *testing.T) {
	s := NewMemoryStore(0)
	defer s.Close()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Update(ctx, "shared", func(d *Data) error {
				item := d.Items["1"]
				item.ID = "1"
				item.Quantity++
				d.Items["1"] = item
				return nil
			})
		}()
	}
	wg.Wait()

	data, err := s.Get(ctx, "shared")
	require.NoError(t, err)
	assert.Equal(t, 50, data.Items["1"].Quantity)
}
