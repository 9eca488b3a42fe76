package testsupport

import (
	"context"
	"testing"

	"lexcase/internal/config"
	"lexcase/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewCase creates a case with the given name and facts.
func NewCase(t testing.TB, st *store.Store, name, facts string) *store.Case {
	t.Helper()

	c, err := st.CreateCase(context.Background(), store.NewCase{Name: name, Facts: facts})
	if err != nil {
		t.Fatalf("store.CreateCase: %v", err)
	}
	return c
}
