package credential

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/tuankiet2640/mai-client/internal/domain"
)

func setupRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store, err := NewRedisStore(context.Background(), "redis://"+mr.Addr(), "test:session:", nil)
	if err != nil {
		t.Fatalf("NewRedisStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store, mr
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store, _ := setupRedisStore(t)
	ctx := context.Background()

	user := &domain.UserProfile{ID: "u-1", Username: "alice", Roles: []string{"admin"}}
	if err := store.SaveUser(ctx, user); err != nil {
		t.Fatalf("SaveUser failed: %v", err)
	}
	if err := store.SaveTokens(ctx, "access-tok", "refresh-tok"); err != nil {
		t.Fatalf("SaveTokens failed: %v", err)
	}

	rec, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if rec.AccessToken != "access-tok" || rec.RefreshToken != "refresh-tok" {
		t.Errorf("unexpected tokens: %+v", rec)
	}
	if rec.User == nil || rec.User.Username != "alice" || !rec.User.HasRole("admin") {
		t.Errorf("unexpected user: %+v", rec.User)
	}
}

func TestRedisStorePartialRecord(t *testing.T) {
	store, _ := setupRedisStore(t)
	ctx := context.Background()

	// Tokens without a profile must be representable.
	if err := store.SaveTokens(ctx, "access-tok", "refresh-tok"); err != nil {
		t.Fatalf("SaveTokens failed: %v", err)
	}

	rec, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if rec.AccessToken != "access-tok" {
		t.Errorf("expected access token, got %q", rec.AccessToken)
	}
	if rec.User != nil {
		t.Errorf("expected nil user, got %+v", rec.User)
	}
}

func TestRedisStoreClearIdempotent(t *testing.T) {
	store, _ := setupRedisStore(t)
	ctx := context.Background()

	if err := store.SaveTokens(ctx, "a", "r"); err != nil {
		t.Fatalf("SaveTokens failed: %v", err)
	}
	if err := store.SaveUser(ctx, &domain.UserProfile{ID: "u-1"}); err != nil {
		t.Fatalf("SaveUser failed: %v", err)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("second Clear failed: %v", err)
	}

	rec, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !rec.Empty() {
		t.Errorf("expected empty record after clear, got %+v", rec)
	}
}

func TestRedisStoreSharedAcrossInstances(t *testing.T) {
	storeA, mr := setupRedisStore(t)
	ctx := context.Background()

	storeB, err := NewRedisStore(ctx, "redis://"+mr.Addr(), "test:session:", nil)
	if err != nil {
		t.Fatalf("second NewRedisStore failed: %v", err)
	}
	defer storeB.Close()

	if err := storeA.SaveTokens(ctx, "shared-access", "shared-refresh"); err != nil {
		t.Fatalf("SaveTokens failed: %v", err)
	}

	rec, err := storeB.Load(ctx)
	if err != nil {
		t.Fatalf("Load from second instance failed: %v", err)
	}
	if rec.AccessToken != "shared-access" {
		t.Errorf("expected second instance to see the write, got %+v", rec)
	}
}

func TestRedisStoreWatchSignalsCrossInstance(t *testing.T) {
	storeA, mr := setupRedisStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	storeB, err := NewRedisStore(ctx, "redis://"+mr.Addr(), "test:session:", nil)
	if err != nil {
		t.Fatalf("second NewRedisStore failed: %v", err)
	}
	defer storeB.Close()

	ch, err := storeA.Watch(ctx)
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	if err := storeB.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("expected change signal after another instance cleared")
	}
}

func TestRedisStoreDiscardsCorruptUser(t *testing.T) {
	store, mr := setupRedisStore(t)
	ctx := context.Background()

	if err := mr.Set("test:session:user", "{not json"); err != nil {
		t.Fatalf("seed corrupt entry: %v", err)
	}

	rec, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if rec.User != nil {
		t.Errorf("expected corrupt user entry to be discarded, got %+v", rec.User)
	}
}
