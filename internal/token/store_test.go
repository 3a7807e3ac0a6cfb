package token

import (
	"context"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
)

// newTestStore connects to a local Redis instance; tests are skipped when
// none is running.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return NewStore(client)
}

func TestResolve_EmptyToken(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Resolve(context.Background(), "")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for empty token, got %v", err)
	}
}

func TestResolve_UnknownToken(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Resolve(context.Background(), "no-such-token")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestIssueResolveRevoke(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tok, err := store.Issue(ctx, "test_user_42")
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}
	t.Cleanup(func() { store.Revoke(ctx, tok) })

	userID, err := store.Resolve(ctx, tok)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if userID != "test_user_42" {
		t.Errorf("expected user %q, got %q", "test_user_42", userID)
	}

	// Token should carry a TTL close to TokenTTL.
	ttl, err := store.client.TTL(ctx, KeyPrefix+tok).Result()
	if err != nil {
		t.Fatalf("TTL() error: %v", err)
	}
	if ttl <= 0 || ttl > TokenTTL {
		t.Errorf("expected TTL in (0,%v], got %v", TokenTTL, ttl)
	}

	if err := store.Revoke(ctx, tok); err != nil {
		t.Fatalf("Revoke() error: %v", err)
	}
	if _, err := store.Resolve(ctx, tok); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after revoke, got %v", err)
	}
}

func TestIssue_TokensAreUnique(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 5; i++ {
		tok, err := store.Issue(ctx, "test_user_uniq")
		if err != nil {
			t.Fatalf("Issue() error: %v", err)
		}
		if seen[tok] {
			t.Fatalf("duplicate token issued: %s", tok)
		}
		seen[tok] = true
		store.Revoke(ctx, tok)
	}
}
