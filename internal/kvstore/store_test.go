package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/iconidentify/xreply/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// storeFactories runs each contract test against every implementation.
func storeFactories(t *testing.T) map[string]func() Store {
	return map[string]func() Store{
		"memory": func() Store {
			return NewMemoryStore(testLogger())
		},
		"sqlite": func() Store {
			s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "store.db"), testLogger())
			if err != nil {
				t.Fatalf("NewSQLiteStore() error = %v", err)
			}
			return s
		},
	}
}

func TestStore_GetSetRemove(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := factory()
			defer s.Close()
			ctx := context.Background()

			if _, err := s.Get(ctx, TierSync, "licenseKey"); !errors.Is(err, domain.ErrKeyNotFound) {
				t.Fatalf("Get() on empty store error = %v, want ErrKeyNotFound", err)
			}

			err := s.Set(ctx, TierSync, map[string]json.RawMessage{
				"licenseKey":    json.RawMessage(`"KEY-1"`),
				"generalPrompt": json.RawMessage(`"be brief"`),
			})
			if err != nil {
				t.Fatalf("Set() error = %v", err)
			}

			got, err := s.Get(ctx, TierSync, "licenseKey")
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if string(got) != `"KEY-1"` {
				t.Errorf("Get() = %s, want %q", got, `"KEY-1"`)
			}

			all, err := s.GetAll(ctx, TierSync)
			if err != nil {
				t.Fatalf("GetAll() error = %v", err)
			}
			if len(all) != 2 {
				t.Errorf("GetAll() len = %d, want 2", len(all))
			}

			if err := s.Remove(ctx, TierSync, "licenseKey", "missing"); err != nil {
				t.Fatalf("Remove() error = %v", err)
			}
			if _, err := s.Get(ctx, TierSync, "licenseKey"); !errors.Is(err, domain.ErrKeyNotFound) {
				t.Errorf("Get() after Remove error = %v", err)
			}
		})
	}
}

func TestStore_TiersAreIsolated(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := factory()
			defer s.Close()
			ctx := context.Background()

			if err := SetJSON(ctx, s, TierLocal, "replyHistory", []string{"a"}); err != nil {
				t.Fatalf("SetJSON() error = %v", err)
			}
			var v []string
			found, err := GetJSON(ctx, s, TierSync, "replyHistory", &v)
			if err != nil {
				t.Fatalf("GetJSON() error = %v", err)
			}
			if found {
				t.Error("local key should not be visible in sync tier")
			}
			found, err = GetJSON(ctx, s, TierLocal, "replyHistory", &v)
			if err != nil || !found || len(v) != 1 {
				t.Errorf("GetJSON(local) = %v, %v, %v", v, found, err)
			}
		})
	}
}

func TestStore_InvalidTier(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := factory()
			defer s.Close()

			if _, err := s.Get(context.Background(), Tier("session"), "k"); err == nil {
				t.Error("expected error for unknown tier")
			}
		})
	}
}

func TestStore_Subscribe(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := factory()
			defer s.Close()
			ctx := context.Background()

			id, ch := s.Subscribe()

			if err := SetJSON(ctx, s, TierSync, "licenseKey", "NEW"); err != nil {
				t.Fatalf("SetJSON() error = %v", err)
			}
			select {
			case c := <-ch:
				if c.Tier != TierSync || c.Key != "licenseKey" || c.Removed {
					t.Errorf("unexpected change %+v", c)
				}
				if string(c.Value) != `"NEW"` {
					t.Errorf("change value = %s", c.Value)
				}
			case <-time.After(time.Second):
				t.Fatal("no change received")
			}

			if err := s.Remove(ctx, TierSync, "licenseKey"); err != nil {
				t.Fatalf("Remove() error = %v", err)
			}
			select {
			case c := <-ch:
				if !c.Removed {
					t.Errorf("expected removal, got %+v", c)
				}
			case <-time.After(time.Second):
				t.Fatal("no removal received")
			}

			s.Unsubscribe(id)
			if _, ok := <-ch; ok {
				t.Error("channel should be closed after Unsubscribe")
			}
		})
	}
}

func TestSQLiteStore_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "store.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(path, testLogger())
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	if err := SetJSON(ctx, s, TierSync, "activePersonaId", "persona-1"); err != nil {
		t.Fatalf("SetJSON() error = %v", err)
	}
	if err := SetJSON(ctx, s, TierSync, "activePersonaId", "persona-2"); err != nil {
		t.Fatalf("SetJSON() overwrite error = %v", err)
	}
	s.Close()

	reopened, err := NewSQLiteStore(path, testLogger())
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close()

	var id string
	found, err := GetJSON(ctx, reopened, TierSync, "activePersonaId", &id)
	if err != nil || !found {
		t.Fatalf("GetJSON() = %v, %v", found, err)
	}
	if id != "persona-2" {
		t.Errorf("activePersonaId = %q, want persona-2", id)
	}
}

func TestSQLiteStore_RejectsInvalidJSON(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "store.db"), testLogger())
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	defer s.Close()

	err = s.Set(context.Background(), TierSync, map[string]json.RawMessage{"k": json.RawMessage(`{bad`)})
	if err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := NewMemoryStore(testLogger())
	ctx := context.Background()

	value := json.RawMessage(`"abc"`)
	if err := s.Set(ctx, TierSync, map[string]json.RawMessage{"k": value}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	value[1] = 'z'

	got, _ := s.Get(ctx, TierSync, "k")
	if string(got) != `"abc"` {
		t.Errorf("stored value mutated through caller slice: %s", got)
	}
}

func TestStore_SubscribeSkipsUnchanged(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := factory()
			defer s.Close()
			ctx := context.Background()

			if err := SetJSON(ctx, s, TierSync, "licenseKey", "SAME"); err != nil {
				t.Fatalf("SetJSON() error = %v", err)
			}

			id, ch := s.Subscribe()
			defer s.Unsubscribe(id)

			if err := SetJSON(ctx, s, TierSync, "licenseKey", "SAME"); err != nil {
				t.Fatalf("SetJSON() error = %v", err)
			}
			select {
			case c := <-ch:
				t.Errorf("unexpected change for identical value: %+v", c)
			case <-time.After(50 * time.Millisecond):
			}

			if err := s.Remove(ctx, TierSync, "missing"); err != nil {
				t.Fatalf("Remove() error = %v", err)
			}
			select {
			case c := <-ch:
				t.Errorf("unexpected change for absent key: %+v", c)
			case <-time.After(50 * time.Millisecond):
			}
		})
	}
}
