package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/armada-rental/rental-service/internal/domain"
)

// Persisted identity keys.
const (
	KeyAuthUser  = "auth_user"
	KeyUserID    = "userId"
	KeyUserRole  = "userRole"
	KeyUserEmail = "userEmail"
)

// PersistedKeys lists every key written by IdentityStore.
var PersistedKeys = []string{KeyAuthUser, KeyUserID, KeyUserRole, KeyUserEmail}

// One-shot flags.
const (
	FlagForceLogout   = "force_logout"
	FlagJustLoggedOut = "just_logged_out"
)

// KeyValueStore is the persistence collaborator.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// FlagStore is a session-scoped store that can read and delete a key in one step.
type FlagStore interface {
	KeyValueStore
	Take(ctx context.Context, key string) (string, bool, error)
}

// IdentityStore mirrors the authenticated identity so it survives restarts.
type IdentityStore struct {
	kv KeyValueStore
}

// NewIdentityStore wraps kv.
func NewIdentityStore(kv KeyValueStore) *IdentityStore {
	return &IdentityStore{kv: kv}
}

// Load returns the cached identity. The JSON record under auth_user is preferred;
// the individual keys are read when it is missing or unreadable.
func (s *IdentityStore) Load(ctx context.Context) (domain.Identity, bool, error) {
	raw, ok, err := s.kv.Get(ctx, KeyAuthUser)
	if err != nil {
		return domain.Identity{}, false, fmt.Errorf("read %s: %w", KeyAuthUser, err)
	}
	if ok {
		var id domain.Identity
		if jsonErr := json.Unmarshal([]byte(raw), &id); jsonErr == nil && !id.Empty() {
			return id, true, nil
		}
	}

	userID, ok, err := s.kv.Get(ctx, KeyUserID)
	if err != nil {
		return domain.Identity{}, false, fmt.Errorf("read %s: %w", KeyUserID, err)
	}
	if !ok || userID == "" {
		return domain.Identity{}, false, nil
	}
	role, _, err := s.kv.Get(ctx, KeyUserRole)
	if err != nil {
		return domain.Identity{}, false, fmt.Errorf("read %s: %w", KeyUserRole, err)
	}
	email, _, err := s.kv.Get(ctx, KeyUserEmail)
	if err != nil {
		return domain.Identity{}, false, fmt.Errorf("read %s: %w", KeyUserEmail, err)
	}
	return domain.Identity{ID: userID, Role: domain.Role(role), Email: email}, true, nil
}

// Save writes the identity under every persisted key.
func (s *IdentityStore) Save(ctx context.Context, id domain.Identity) error {
	raw, err := json.Marshal(id)
	if err != nil {
		return fmt.Errorf("encode identity: %w", err)
	}
	return errors.Join(
		s.kv.Set(ctx, KeyAuthUser, string(raw)),
		s.kv.Set(ctx, KeyUserID, id.ID),
		s.kv.Set(ctx, KeyUserRole, string(id.Role)),
		s.kv.Set(ctx, KeyUserEmail, id.Email),
	)
}

// Clear removes every persisted key. All removals are attempted.
func (s *IdentityStore) Clear(ctx context.Context) error {
	var errs []error
	for _, key := range PersistedKeys {
		if err := s.kv.Remove(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

// Flags manages the one-shot signals. Each flag is delivered at most once.
type Flags struct {
	store FlagStore
}

// NewFlags wraps store.
func NewFlags(store FlagStore) *Flags {
	return &Flags{store: store}
}

// Raise sets the named flag.
func (f *Flags) Raise(ctx context.Context, name string) error {
	if f == nil || f.store == nil {
		return nil
	}
	return f.store.Set(ctx, name, "true")
}

// Clear drops the flag without reading it.
func (f *Flags) Clear(ctx context.Context, name string) error {
	if f == nil || f.store == nil {
		return nil
	}
	return f.store.Remove(ctx, name)
}

// Consume reports whether the flag was set and deletes it.
func (f *Flags) Consume(ctx context.Context, name string) (bool, error) {
	if f == nil || f.store == nil {
		return false, nil
	}
	raw, ok, err := f.store.Take(ctx, name)
	if err != nil || !ok {
		return false, err
	}
	set, parseErr := strconv.ParseBool(raw)
	return parseErr == nil && set, nil
}
