package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
)

// exercise runs the contract every backend must satisfy.
func exercise(t *testing.T, s Store, prefix string) {
	t.Helper()
	ctx := context.Background()

	if _, found, err := s.Get(ctx, prefix+"lock:kid:print"); err != nil || found {
		t.Fatalf("Get missing = found %v, err %v", found, err)
	}
	if err := s.Set(ctx, prefix+"lock:kid:print", `{"count":1}`); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set(ctx, prefix+"lock:kid:print", `{"count":2}`); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	v, found, err := s.Get(ctx, prefix+"lock:kid:print")
	if err != nil || !found || v != `{"count":2}` {
		t.Fatalf("Get = %q, %v, %v", v, found, err)
	}
	if _, found, _ := s.Get(ctx, prefix+"lock:kid:video"); found {
		t.Errorf("keys are not distinct")
	}

	type rec struct {
		Coins int `json:"coins"`
	}
	if err := SaveJSON(ctx, s, prefix+"progress:kid:rewards", rec{Coins: 4}); err != nil {
		t.Fatalf("SaveJSON: %v", err)
	}
	var got rec
	if found, err := LoadJSON(ctx, s, prefix+"progress:kid:rewards", &got); err != nil || !found || got.Coins != 4 {
		t.Fatalf("LoadJSON = %+v, %v, %v", got, found, err)
	}

	if err := s.Set(ctx, prefix+"progress:kid:math", "not json"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if found, err := LoadJSON(ctx, s, prefix+"progress:kid:math", &got); !found || err == nil {
		t.Errorf("LoadJSON malformed = %v, %v", found, err)
	}
}

func TestMemory(t *testing.T) {
	m := NewMemory()
	exercise(t, m, "")
	if m.Len() != 3 {
		t.Errorf("Len = %d", m.Len())
	}
}

func TestSQLite(t *testing.T) {
	s, err := OpenSQL(DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()
	exercise(t, s, "")
}

func TestSQLiteFileSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "games.db")

	s, err := Open(Options{Driver: "sqlite", DSN: path})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.Set(ctx, "lock:kid:print", "{}"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := Close(s); err != nil {
		t.Fatalf("close: %v", err)
	}

	s, err = Open(Options{Driver: "sqlite", DSN: path})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer Close(s)
	if _, found, err := s.Get(ctx, "lock:kid:print"); err != nil || !found {
		t.Errorf("value lost across reopen: %v, %v", found, err)
	}
}

func TestPostgres(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	s, err := Open(Options{Driver: DriverPostgres, DSN: dsn})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer Close(s)
	exercise(t, s, "test:"+uuid.NewString()+":")
}

func TestRedis(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	s, err := Open(Options{Driver: DriverRedis, RedisAddr: addr})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer Close(s)
	exercise(t, s, "test:"+uuid.NewString()+":")
}

func TestOpenErrors(t *testing.T) {
	if _, err := Open(Options{Driver: "cassandra"}); !errors.Is(err, ErrUnknownDriver) {
		t.Errorf("unknown driver err = %v", err)
	}
	if _, err := Open(Options{Driver: DriverPostgres}); err == nil {
		t.Errorf("postgres without DSN should fail")
	}
	if _, err := Open(Options{Driver: DriverRedis}); err == nil {
		t.Errorf("redis without address should fail")
	}
	s, err := Open(Options{})
	if err != nil {
		t.Fatalf("default driver: %v", err)
	}
	if _, ok := s.(*Memory); !ok {
		t.Errorf("default driver = %T, want *Memory", s)
	}
}
