package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// exerciseKV checks the contract shared by every backend.
func exerciseKV(t *testing.T, kv KV) {
	t.Helper()
	ctx := context.Background()

	if _, err := kv.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := kv.Set(ctx, "unitPreference", "metric"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := kv.Set(ctx, "unitPreference", "imperial"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	v, err := kv.Get(ctx, "unitPreference")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if v != "imperial" {
		t.Fatalf("expected last write to win, got %q", v)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseKV(t, NewMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "prefs.db")

	s, err := OpenSQLite(context.Background(), path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	exerciseKV(t, s)
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Values survive reopening the file.
	reopened, err := OpenSQLite(context.Background(), path)
	if err != nil {
		t.Fatalf("reopen sqlite: %v", err)
	}
	defer reopened.Close()

	v, err := reopened.Get(context.Background(), "unitPreference")
	if err != nil || v != "imperial" {
		t.Fatalf("expected persisted value, got %q (%v)", v, err)
	}
}

func TestRedisStore(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}

	s, err := OpenRedis(context.Background(), url, "weather-lookup-test:"+t.Name()+":")
	if err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	defer s.Close()

	exerciseKV(t, s)
}

func TestOpenRedisRejectsBadURL(t *testing.T) {
	if _, err := OpenRedis(context.Background(), "not-a-url", ""); err == nil {
		t.Fatal("expected an error for an invalid url")
	}
}
