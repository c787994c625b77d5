package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armada-rental/rental-service/internal/domain"
	"github.com/armada-rental/rental-service/internal/persistence"
)

var (
	customer = domain.Identity{ID: "u-customer", Role: domain.RoleCustomer, Email: "rina@example.com", Name: "Rina"}
	admin    = domain.Identity{ID: "u-admin", Role: domain.RoleAdmin, Email: "admin@example.com", Name: "Admin"}
	trips    = domain.Identity{ID: "u-trips", Role: domain.RoleStaffTrips, Email: "trips@example.com", Name: "Budi"}
)

func newTestReconciler(t *testing.T, provider Provider, kv KeyValueStore, opts Options) *Reconciler {
	t.Helper()
	r := NewReconciler(provider, NewIdentityStore(kv), opts)
	t.Cleanup(r.Teardown)
	return r
}

func waitReady(t *testing.T, r *Reconciler) State {
	t.Helper()
	require.Eventually(t, func() bool { return r.State().Ready() }, 2*time.Second, 5*time.Millisecond)
	return r.State()
}

func seedIdentity(t *testing.T, kv KeyValueStore, id domain.Identity) {
	t.Helper()
	require.NoError(t, NewIdentityStore(kv).Save(context.Background(), id))
}

func assertNoPersistedKeys(t *testing.T, kv *persistence.MemoryKV) {
	t.Helper()
	keys := kv.Keys()
	for _, key := range PersistedKeys {
		assert.NotContains(t, keys, key)
	}
}

func TestInitRestoresOptimisticallyThenConfirms(t *testing.T) {
	kv := persistence.NewMemoryKV(0)
	seedIdentity(t, kv, customer)

	release := make(chan struct{})
	provider := newFakeProvider()
	provider.GetSessionFn = func(ctx context.Context) (*domain.Session, error) {
		select {
		case <-release:
			return sessionFor(customer), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	r := newTestReconciler(t, provider, kv, Options{})
	require.NoError(t, r.Init(context.Background()))

	st := r.State()
	assert.True(t, st.IsAuthenticated)
	assert.True(t, st.IsHydrated)
	assert.True(t, st.IsLoading)
	assert.False(t, st.Ready())
	require.NotNil(t, st.Identity)
	assert.Equal(t, customer.ID, st.Identity.ID)

	close(release)
	st = waitReady(t, r)
	assert.True(t, st.IsAuthenticated)
	assert.Equal(t, PhaseAuthenticated, st.Phase())
}

func TestRestoreProviderEmptyClearsStore(t *testing.T) {
	kv := persistence.NewMemoryKV(0)
	seedIdentity(t, kv, customer)

	provider := newFakeProvider()
	r := newTestReconciler(t, provider, kv, Options{})
	require.NoError(t, r.Init(context.Background()))

	st := waitReady(t, r)
	assert.False(t, st.IsAuthenticated)
	assert.Nil(t, st.Identity)
	assertNoPersistedKeys(t, kv)
}

func TestRestoreProviderErrorFailsClosed(t *testing.T) {
	kv := persistence.NewMemoryKV(0)
	seedIdentity(t, kv, customer)

	provider := newFakeProvider()
	provider.GetSessionFn = func(context.Context) (*domain.Session, error) {
		return nil, errors.New("connection refused")
	}
	r := newTestReconciler(t, provider, kv, Options{})
	require.NoError(t, r.Init(context.Background()))

	st := waitReady(t, r)
	assert.False(t, st.IsAuthenticated)
	assert.Equal(t, PhaseAnonymous, st.Phase())
}

func TestRestoreProviderOverwritesStaleStore(t *testing.T) {
	kv := persistence.NewMemoryKV(0)
	stale := customer
	stale.Role = domain.RoleStaff
	seedIdentity(t, kv, stale)

	provider := newFakeProvider()
	provider.GetSessionFn = func(context.Context) (*domain.Session, error) {
		return sessionFor(customer), nil
	}
	r := newTestReconciler(t, provider, kv, Options{})
	require.NoError(t, r.Init(context.Background()))

	require.Eventually(t, func() bool {
		st := r.State()
		return st.Ready() && st.Role() == domain.RoleCustomer
	}, 2*time.Second, 5*time.Millisecond)

	role, ok, err := kv.Get(context.Background(), KeyUserRole)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, string(domain.RoleCustomer), role)
}

func TestRestoreCollapsesConcurrentCalls(t *testing.T) {
	release := make(chan struct{})
	provider := newFakeProvider()
	provider.GetSessionFn = func(ctx context.Context) (*domain.Session, error) {
		<-release
		return nil, nil
	}
	r := newTestReconciler(t, provider, persistence.NewMemoryKV(0), Options{})

	done := make(chan struct{})
	go func() {
		r.Restore(context.Background())
		done <- struct{}{}
	}()
	require.Eventually(t, func() bool { return provider.getSessionCalls.Load() == 1 }, time.Second, time.Millisecond)
	for i := 0; i < 4; i++ {
		go func() {
			r.Restore(context.Background())
			done <- struct{}{}
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	for i := 0; i < 5; i++ {
		<-done
	}
	assert.Equal(t, int32(1), provider.getSessionCalls.Load())
}

func TestRestoreSupersededByEvent(t *testing.T) {
	release := make(chan struct{})
	provider := newFakeProvider()
	provider.GetSessionFn = func(ctx context.Context) (*domain.Session, error) {
		select {
		case <-release:
			return nil, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	kv := persistence.NewMemoryKV(0)
	r := newTestReconciler(t, provider, kv, Options{})
	require.NoError(t, r.Init(context.Background()))

	require.Eventually(t, func() bool { return provider.getSessionCalls.Load() == 1 }, time.Second, time.Millisecond)
	provider.emit(EventSignedIn, sessionFor(admin))
	require.Eventually(t, func() bool { return r.handled.Load() == 1 }, time.Second, time.Millisecond)

	close(release)
	require.Eventually(t, func() bool { return !r.State().IsLoading }, time.Second, time.Millisecond)

	st := r.State()
	assert.True(t, st.IsAuthenticated)
	assert.Equal(t, domain.RoleAdmin, st.Role())
}

func TestEventsAppliedInDeliveryOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 20; trial++ {
		t.Run(fmt.Sprintf("trial-%d", trial), func(t *testing.T) {
			provider := newFakeProvider()
			kv := persistence.NewMemoryKV(0)
			r := newTestReconciler(t, provider, kv, Options{})
			require.NoError(t, r.Init(context.Background()))
			waitReady(t, r)

			n := 1 + rng.Intn(40)
			last := false
			for i := 0; i < n; i++ {
				if rng.Intn(2) == 0 {
					provider.emit(EventSignedOut, nil)
					last = false
					continue
				}
				id := customer
				id.Name = fmt.Sprintf("rev-%d", i)
				event := EventSignedIn
				if rng.Intn(3) == 0 {
					event = EventTokenRefreshed
				}
				provider.emit(event, sessionFor(id))
				last = true
			}
			require.Eventually(t, func() bool { return r.handled.Load() == uint64(n) }, 2*time.Second, time.Millisecond)

			st := r.State()
			assert.Equal(t, last, st.IsAuthenticated)
			stored, ok, err := NewIdentityStore(kv).Load(context.Background())
			require.NoError(t, err)
			assert.Equal(t, last, ok)
			if last {
				assert.Equal(t, st.Identity.Name, stored.Name)
			}
		})
	}
}

func TestLoginPersistsBeforeReturning(t *testing.T) {
	provider := newFakeProvider()
	provider.SignInFn = func(_ context.Context, email, password string) (*domain.Session, error) {
		assert.Equal(t, customer.Email, email)
		return sessionFor(customer), nil
	}
	kv := persistence.NewMemoryKV(0)
	r := newTestReconciler(t, provider, kv, Options{})
	require.NoError(t, r.Init(context.Background()))
	waitReady(t, r)

	id, err := r.Login(context.Background(), customer.Email, "secret-pass")
	require.NoError(t, err)
	assert.Equal(t, customer, id)

	stored, ok, err := NewIdentityStore(kv).Load(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, customer, stored)
	assert.True(t, r.State().Ready())
}

func TestLoginProviderErrorKeepsAnonymous(t *testing.T) {
	provider := newFakeProvider()
	provider.SignInFn = func(context.Context, string, string) (*domain.Session, error) {
		return nil, errors.New("invalid login credentials")
	}
	r := newTestReconciler(t, provider, persistence.NewMemoryKV(0), Options{})
	require.NoError(t, r.Init(context.Background()))
	waitReady(t, r)

	_, err := r.Login(context.Background(), customer.Email, "wrong")
	require.Error(t, err)
	st := r.State()
	assert.False(t, st.IsAuthenticated)
	assert.True(t, st.Ready())
}

func TestLoginStaffTripsScenario(t *testing.T) {
	provider := newFakeProvider()
	provider.SignInFn = func(context.Context, string, string) (*domain.Session, error) {
		return sessionFor(trips), nil
	}
	kv := persistence.NewMemoryKV(0)
	r := newTestReconciler(t, provider, kv, Options{AllowedRoles: domain.StaffRoles()})
	require.NoError(t, r.Init(context.Background()))
	waitReady(t, r)

	id, err := r.Login(context.Background(), trips.Email, "secret-pass")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleStaffTrips, id.Role)

	role, ok, err := kv.Get(context.Background(), KeyUserRole)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Staff Trips", role)

	gate := NewGate(r, time.Second)
	assert.True(t, gate.EnsureSessionReady(context.Background()))

	snap := r.State().Snapshot()
	assert.Equal(t, domain.RoleStaffTrips, snap.UserRole)
	assert.Equal(t, trips.Name, snap.UserName)
}

func TestLoginRoleDeniedSignsOut(t *testing.T) {
	provider := newFakeProvider()
	provider.SignInFn = func(context.Context, string, string) (*domain.Session, error) {
		return sessionFor(admin), nil
	}
	kv := persistence.NewMemoryKV(0)
	r := newTestReconciler(t, provider, kv, Options{AllowedRoles: []domain.Role{domain.RoleCustomer}})
	require.NoError(t, r.Init(context.Background()))
	waitReady(t, r)

	_, err := r.Login(context.Background(), admin.Email, "secret-pass")
	require.ErrorIs(t, err, ErrRoleDenied)
	var denied *RoleDeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, domain.RoleAdmin, denied.Role)

	assert.GreaterOrEqual(t, provider.signOutCalls.Load(), int32(1))
	require.Eventually(t, func() bool {
		st := r.State()
		return st.Ready() && !st.IsAuthenticated
	}, time.Second, time.Millisecond)
	assertNoPersistedKeys(t, kv)
}

func TestSignUpWithoutSessionStaysAnonymous(t *testing.T) {
	provider := newFakeProvider()
	provider.SignUpFn = func(_ context.Context, email, _ string, opts SignUpOptions) (*domain.Session, error) {
		return &domain.Session{User: domain.Identity{ID: "u-new", Email: email, Name: opts.Name, Role: domain.RoleCustomer}}, nil
	}
	r := newTestReconciler(t, provider, persistence.NewMemoryKV(0), Options{})
	require.NoError(t, r.Init(context.Background()))
	waitReady(t, r)

	id, err := r.SignUp(context.Background(), "new@example.com", "secret-pass", SignUpOptions{Name: "Dewi"})
	require.NoError(t, err)
	assert.Equal(t, "Dewi", id.Name)
	assert.False(t, r.State().IsAuthenticated)
	assert.True(t, r.State().Ready())
}

func TestLogoutClearsEveryPersistedKey(t *testing.T) {
	for _, signOutErr := range []error{nil, errors.New("network down")} {
		provider := newFakeProvider()
		provider.SignInFn = func(context.Context, string, string) (*domain.Session, error) {
			return sessionFor(customer), nil
		}
		provider.SignOutFn = func(context.Context) error { return signOutErr }
		kv := persistence.NewMemoryKV(0)
		r := newTestReconciler(t, provider, kv, Options{})
		require.NoError(t, r.Init(context.Background()))
		waitReady(t, r)

		_, err := r.Login(context.Background(), customer.Email, "secret-pass")
		require.NoError(t, err)

		err = r.Logout(context.Background())
		if signOutErr != nil {
			require.ErrorIs(t, err, signOutErr)
		} else {
			require.NoError(t, err)
		}
		assertNoPersistedKeys(t, kv)
		assert.False(t, r.State().IsAuthenticated)
	}
}

func TestUpdateUserRefreshesCachedIdentity(t *testing.T) {
	provider := newFakeProvider()
	provider.SignInFn = func(context.Context, string, string) (*domain.Session, error) {
		return sessionFor(customer), nil
	}
	renamed := customer
	renamed.Name = "Rina Putri"
	provider.UpdateUserFn = func(_ context.Context, attrs UserAttributes) (domain.Identity, error) {
		require.NotNil(t, attrs.Name)
		return renamed, nil
	}
	kv := persistence.NewMemoryKV(0)
	r := newTestReconciler(t, provider, kv, Options{})
	require.NoError(t, r.Init(context.Background()))
	waitReady(t, r)
	_, err := r.Login(context.Background(), customer.Email, "secret-pass")
	require.NoError(t, err)

	name := renamed.Name
	_, err = r.UpdateUser(context.Background(), UserAttributes{Name: &name})
	require.NoError(t, err)

	stored, _, err := NewIdentityStore(kv).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, renamed.Name, stored.Name)
	assert.Equal(t, renamed.Name, r.State().Snapshot().UserName)
}

func TestTeardownReleasesSubscription(t *testing.T) {
	provider := newFakeProvider()
	r := NewReconciler(provider, NewIdentityStore(persistence.NewMemoryKV(0)), Options{})
	require.NoError(t, r.Init(context.Background()))
	assert.Equal(t, 1, provider.listenerCount())

	r.Teardown()
	assert.Equal(t, 0, provider.listenerCount())
	assert.ErrorIs(t, r.Init(context.Background()), ErrTornDown)
	r.Teardown()
}
