package pending

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForgetKeepsOpenDomains(t *testing.T) {
	s := NewMemory()
	s.Add("google.com", "www.google.com", "amazon.de", "wikipedia.org")

	s.Forget([]string{"google.com", "amazon.de"}, func(string) bool { return false })
	assert.Equal(t, map[string]bool{"wikipedia.org": true, "www.google.com": true}, s.Entries())

	s.Add("google.com")
	s.Forget([]string{"google.com", "wikipedia.org"}, func(h string) bool { return h == "google.com" })
	assert.Equal(t, []string{"google.com", "www.google.com"}, s.Hostnames())
}

func TestAddNormalizesAndDeduplicates(t *testing.T) {
	s := NewMemory()
	s.Add("Example.COM", "example.com.", "")
	assert.Equal(t, 1, s.Len())
	assert.True(t, s.Contains("EXAMPLE.com"))

	s.Remove("unknown.org")
	s.Clear()
	assert.Zero(t, s.Len())
}

type failingStore struct{ *MemoryStore }

func (failingStore) Put(context.Context, []string) error { return errors.New("disk full") }

func TestStoreFailuresKeepMemoryView(t *testing.T) {
	s, err := Open(context.Background(), failingStore{NewMemoryStore()}, nil)
	require.NoError(t, err)

	s.Add("a.com")
	assert.True(t, s.Contains("a.com"))
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "pending.db")

	store, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	s, err := Open(ctx, store, nil)
	require.NoError(t, err)

	s.Add("a.com", "b.com", "c.com")
	s.Remove("b.com")
	require.NoError(t, s.Close())

	store, err = OpenSQLite(ctx, path)
	require.NoError(t, err)
	reopened, err := Open(ctx, store, nil)
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, []string{"a.com", "c.com"}, reopened.Hostnames())

	reopened.Clear()
	entries, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
