package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armada-rental/rental-service/internal/domain"
	"github.com/armada-rental/rental-service/internal/persistence"
)

type failingKV struct {
	*persistence.MemoryKV
	failSet    bool
	failRemove bool
}

func (f *failingKV) Set(ctx context.Context, key, value string) error {
	if f.failSet {
		return errors.New("disk full")
	}
	return f.MemoryKV.Set(ctx, key, value)
}

func (f *failingKV) Remove(ctx context.Context, key string) error {
	if f.failRemove {
		return errors.New("read-only")
	}
	return f.MemoryKV.Remove(ctx, key)
}

func TestIdentityStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := persistence.NewMemoryKV(0)
	store := NewIdentityStore(kv)

	_, ok, err := store.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Save(ctx, trips))
	got, ok, err := store.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, trips, got)

	for _, key := range PersistedKeys {
		_, present, err := kv.Get(ctx, key)
		require.NoError(t, err)
		assert.True(t, present, key)
	}

	require.NoError(t, store.Clear(ctx))
	assert.Empty(t, kv.Keys())
}

func TestIdentityStoreFallsBackToFlatKeys(t *testing.T) {
	ctx := context.Background()
	kv := persistence.NewMemoryKV(0)
	require.NoError(t, kv.Set(ctx, KeyAuthUser, "{not json"))
	require.NoError(t, kv.Set(ctx, KeyUserID, "u-1"))
	require.NoError(t, kv.Set(ctx, KeyUserRole, "Staff Trips"))
	require.NoError(t, kv.Set(ctx, KeyUserEmail, "a@example.com"))

	got, ok, err := NewIdentityStore(kv).Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.Identity{ID: "u-1", Role: domain.RoleStaffTrips, Email: "a@example.com"}, got)
}

func TestIdentityStoreClearAttemptsEveryKey(t *testing.T) {
	ctx := context.Background()
	kv := &failingKV{MemoryKV: persistence.NewMemoryKV(0)}
	require.NoError(t, NewIdentityStore(kv).Save(ctx, customer))

	kv.failRemove = true
	err := NewIdentityStore(kv).Clear(ctx)
	require.Error(t, err)
	for _, key := range PersistedKeys {
		assert.Contains(t, err.Error(), key)
	}
}

func TestPersistenceWriteFailureIsSwallowed(t *testing.T) {
	provider := newFakeProvider()
	provider.SignInFn = func(context.Context, string, string) (*domain.Session, error) {
		return sessionFor(customer), nil
	}
	kv := &failingKV{MemoryKV: persistence.NewMemoryKV(0), failSet: true}
	r := newTestReconciler(t, provider, kv, Options{})
	require.NoError(t, r.Init(context.Background()))
	waitReady(t, r)

	id, err := r.Login(context.Background(), customer.Email, "secret-pass")
	require.NoError(t, err)
	assert.Equal(t, customer.ID, id.ID)
	assert.True(t, r.State().IsAuthenticated)
}

func TestFlagsDeliveredAtMostOnce(t *testing.T) {
	ctx := context.Background()
	flags := NewFlags(persistence.NewMemoryKV(time.Minute))

	set, err := flags.Consume(ctx, FlagForceLogout)
	require.NoError(t, err)
	assert.False(t, set)

	require.NoError(t, flags.Raise(ctx, FlagForceLogout))
	set, err = flags.Consume(ctx, FlagForceLogout)
	require.NoError(t, err)
	assert.True(t, set)

	set, err = flags.Consume(ctx, FlagForceLogout)
	require.NoError(t, err)
	assert.False(t, set)

	require.NoError(t, flags.Raise(ctx, FlagJustLoggedOut))
	require.NoError(t, flags.Clear(ctx, FlagJustLoggedOut))
	set, err = flags.Consume(ctx, FlagJustLoggedOut)
	require.NoError(t, err)
	assert.False(t, set)

	var none *Flags
	require.NoError(t, none.Clear(ctx, FlagJustLoggedOut))
	set, err = none.Consume(ctx, FlagJustLoggedOut)
	require.NoError(t, err)
	assert.False(t, set)
}
