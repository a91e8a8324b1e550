package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registerTaro(t *testing.T, env *testEnv, sessionID string) {
	t.Helper()
	_, err := env.customers.Register(context.Background(), sessionID, RegisterRequest{
		Name:        "Taro Suzuki",
		Email:       "taro@example.com",
		Address:     "7-8-9 Sakae, Nagoya",
		PhoneNumber: "0521234567",
		Password:    "correct-horse",
	})
	require.NoError(t, err)
}

func TestRegisterLogsIn(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	registerTaro(t, env, "s1")

	profile, err := env.customers.GetProfile(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "taro@example.com", profile.Email)
	assert.NotEqual(t, "correct-horse", profile.PasswordHash)

	id, err := env.customers.CustomerID(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, profile.ID, id)
}

func TestRegisterErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	registerTaro(t, env, "s1")

	_, err := env.customers.Register(ctx, "s2", RegisterRequest{
		Name: "Other Taro", Email: "TARO@example.com", Address: "Somewhere 1-1",
		PhoneNumber: "0521234567", Password: "another-pass",
	})
	assert.True(t, errors.Is(err, ErrEmailTaken))

	_, err = env.customers.Register(ctx, "s2", RegisterRequest{Name: "X", Email: "x", Password: "short"})
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Contains(t, ve.Fields, "name")
	assert.Contains(t, ve.Fields, "email")
	assert.Contains(t, ve.Fields, "address")
	assert.Contains(t, ve.Fields, "phoneNumber")
	assert.Contains(t, ve.Fields, "password")
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	registerTaro(t, env, "s1")

	_, err := env.customers.Login(ctx, "s2", "taro@example.com", "wrong-password")
	assert.True(t, errors.Is(err, ErrUnauthorized))

	_, err = env.customers.Login(ctx, "s2", "nobody@example.com", "correct-horse")
	assert.True(t, errors.Is(err, ErrUnauthorized))

	_, err = env.cart.AddItem(ctx, "s2", 1, 2)
	require.NoError(t, err)

	customer, err := env.customers.Login(ctx, "s2", "taro@example.com", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, "Taro Suzuki", customer.Name)

	cart, err := env.cart.GetCart(ctx, "s2")
	require.NoError(t, err)
	assert.Equal(t, 2, cart.TotalQuantity)
}

func TestRotateSessionMovesRecord(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.cart.AddItem(ctx, "s1", 1, 2)
	require.NoError(t, err)
	registerTaro(t, env, "s1")

	newID, err := env.customers.RotateSession(ctx, "s1")
	require.NoError(t, err)
	assert.NotEqual(t, "s1", newID)

	profile, err := env.customers.GetProfile(ctx, newID)
	require.NoError(t, err)
	assert.Equal(t, "taro@example.com", profile.Email)

	cart, err := env.cart.GetCart(ctx, newID)
	require.NoError(t, err)
	assert.Equal(t, 2, cart.TotalQuantity)

	_, err = env.customers.GetProfile(ctx, "s1")
	assert.True(t, errors.Is(err, ErrUnauthorized))

	old, err := env.cart.GetCart(ctx, "s1")
	require.NoError(t, err)
	assert.Zero(t, old.TotalQuantity)
}

func TestLogoutDropsSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	registerTaro(t, env, "s1")
	_, err := env.cart.AddItem(ctx, "s1", 1, 1)
	require.NoError(t, err)

	require.NoError(t, env.customers.Logout(ctx, "s1"))

	_, err = env.customers.GetProfile(ctx, "s1")
	assert.True(t, errors.Is(err, ErrUnauthorized))

	cart, err := env.cart.GetCart(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
}

func TestGetProfileAnonymous(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.customers.GetProfile(context.Background(), "anon")
	assert.True(t, errors.Is(err, ErrUnauthorized))
}

func TestUpdateProfile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	registerTaro(t, env, "s1")

	req := UpdateProfileRequest{
		Name:            "Taro Suzuki",
		Email:           "taro.suzuki@example.com",
		Address:         "1-1 Marunouchi, Tokyo",
		PhoneNumber:     "0312345678",
		CurrentPassword: "wrong",
	}
	_, err := env.customers.UpdateProfile(ctx, "s1", req)
	assert.True(t, errors.Is(err, ErrUnauthorized))

	req.CurrentPassword = "correct-horse"
	req.NewPassword = "battery-staple"
	updated, err := env.customers.UpdateProfile(ctx, "s1", req)
	require.NoError(t, err)
	assert.Equal(t, "taro.suzuki@example.com", updated.Email)

	_, err = env.customers.Login(ctx, "s3", "taro.suzuki@example.com", "correct-horse")
	assert.True(t, errors.Is(err, ErrUnauthorized))
	_, err = env.customers.Login(ctx, "s3", "taro.suzuki@example.com", "battery-staple")
	assert.NoError(t, err)
}

func TestUpdateProfileEmailTaken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	registerTaro(t, env, "s1")
	_, err := env.customers.Register(ctx, "s2", RegisterRequest{
		Name: "Hanako Yamada", Email: "hanako@example.com", Address: "1-2-3 Shibuya, Tokyo",
		PhoneNumber: "09012345678", Password: "hanako-pass",
	})
	require.NoError(t, err)

	_, err = env.customers.UpdateProfile(ctx, "s2", UpdateProfileRequest{
		Name: "Hanako Yamada", Email: "taro@example.com", Address: "1-2-3 Shibuya, Tokyo",
		PhoneNumber: "09012345678", CurrentPassword: "hanako-pass",
	})
	assert.True(t, errors.Is(err, ErrEmailTaken))
}
