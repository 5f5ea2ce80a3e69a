package user

import (
	"context"
	"testing"

	"scout-portal/internal/domain"
	"scout-portal/internal/testutil"
	"scout-portal/redis"

	"github.com/alicebob/miniredis/v2"
	redisLib "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redisLib.NewClient(&redisLib.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewService(NewRepository(testutil.NewDB(t)), redis.NewCache(client)), mr
}

func TestRegister_AlwaysCreatesGuardian(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	u := &domain.User{Name: "Marta", Email: " Marta@Example.com ", Password: "secret123", Role: domain.RoleAdmin}
	require.NoError(t, svc.Register(ctx, u))

	assert.Equal(t, domain.RoleGuardian, u.Role)
	assert.Equal(t, "marta@example.com", u.Email)
	assert.Empty(t, u.Password)
	assert.NotEmpty(t, u.PasswordHash)

	err := svc.Register(ctx, &domain.User{Name: "Other", Email: "marta@example.com", Password: "secret123"})
	assert.Error(t, err, "email must be unique")
}

func TestLogin(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.CreateAccount(ctx, &domain.User{Name: "Kraal", Email: "kraal@example.com", Password: "secret123", Role: domain.RoleScouter}))

	user, err := svc.Login(ctx, "KRAAL@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleScouter, user.Role)

	_, err = svc.Login(ctx, "kraal@example.com", "wrong")
	assert.Error(t, err)

	_, err = svc.Login(ctx, "ghost@example.com", "secret123")
	assert.Error(t, err)
}

func TestGetUserByID_CachedUntilTokenVersionChanges(t *testing.T) {
	svc, mr := newTestService(t)
	ctx := context.Background()

	u := &domain.User{Name: "Marta", Email: "marta@example.com", Password: "secret123"}
	require.NoError(t, svc.Register(ctx, u))

	first, err := svc.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), first.TokenVersion)
	assert.True(t, mr.Exists("user:1:v:0"))

	require.NoError(t, svc.IncreaseTokenVersion(ctx, u.ID))

	second, err := svc.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), second.TokenVersion)

	require.NoError(t, svc.DeactivateUser(ctx, u.ID))
	third, err := svc.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, third.IsActive)

	_, err = svc.Login(ctx, "marta@example.com", "secret123")
	assert.Error(t, err, "inactive users cannot log in")
}

func TestCreateAccount_RejectsUnknownRole(t *testing.T) {
	svc, _ := newTestService(t)

	err := svc.CreateAccount(context.Background(), &domain.User{Email: "x@example.com", Password: "secret123", Role: "root"})
	assert.Error(t, err)
}

func TestGetUserByID_CacheHoldsNoPasswordHash(t *testing.T) {
	svc, mr := newTestService(t)
	ctx := context.Background()

	u := &domain.User{Name: "Marta", Email: "marta@example.com", Password: "secret123"}
	require.NoError(t, svc.Register(ctx, u))

	_, err := svc.GetUserByID(ctx, u.ID)
	require.NoError(t, err)

	raw, err := mr.Get("user:1:v:0")
	require.NoError(t, err)
	assert.Contains(t, raw, "marta@example.com")
	assert.NotContains(t, raw, "PasswordHash")
	assert.NotContains(t, raw, "$2a$")

	cached, err := svc.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, cached.PasswordHash)
	assert.Equal(t, domain.RoleGuardian, cached.Role)

	_, err = svc.Login(ctx, "marta@example.com", "secret123")
	assert.NoError(t, err, "login reads the stored hash, not the cache")
}
