package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rl1809/whiskey-cellar/internal/core/domain"
	"github.com/rl1809/whiskey-cellar/internal/port"
)

func openBoltStore(t *testing.T, path string) *BoltStore {
	t.Helper()
	s := NewBoltStore(path)
	s.WithLogger(zaptest.NewLogger(t))
	require.NoError(t, s.Open(context.Background()))
	return s
}

func TestBoltStore(t *testing.T) {
	runKVStoreSuite(t, func(t *testing.T) port.KVStore {
		s := openBoltStore(t, filepath.Join(t.TempDir(), "WhiskeyDB.db"))
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestBoltStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "WhiskeyDB.db")

	s := openBoltStore(t, path)
	createObjectStore(t, s)
	err := s.Update(context.Background(), func(tx port.Tx) error {
		b, err := tx.Bucket(testStore)
		require.NoError(t, err)
		return b.Insert([]byte("talisker"), []byte(`{"age":10}`))
	})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened := openBoltStore(t, path)
	defer reopened.Close()
	assert.Equal(t, `{"age":10}`, string(mustGet(t, reopened, "talisker")))
}

func TestBoltStoreReservedName(t *testing.T) {
	s := openBoltStore(t, filepath.Join(t.TempDir(), "WhiskeyDB.db"))
	defer s.Close()

	err := s.Upgrade(context.Background(), func(tx port.SchemaTx) error {
		if err := tx.SetVersion(3); err != nil {
			return err
		}
		ok, err := tx.HasObjectStore("__meta")
		require.NoError(t, err)
		assert.False(t, ok)
		return tx.CreateObjectStore("__meta")
	})
	require.Error(t, err)
}

func TestBoltStoreOpenFails(t *testing.T) {
	dir := t.TempDir()
	// A directory where the file should be makes bolt.Open fail.
	path := filepath.Join(dir, "WhiskeyDB.db")
	require.NoError(t, os.Mkdir(path, 0o700))

	err := NewBoltStore(path).Open(context.Background())
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestBoltStoreNotOpened(t *testing.T) {
	err := NewBoltStore("unused").View(context.Background(), func(tx port.Tx) error { return nil })
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestBoltStoreCollector(t *testing.T) {
	s := openBoltStore(t, filepath.Join(t.TempDir(), "WhiskeyDB.db"))
	defer s.Close()
	createObjectStore(t, s)

	// reads, writes and one key gauge for whiskeyStore
	assert.Equal(t, 3, testutil.CollectAndCount(s))
}

func TestOpenBoltDriver(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(context.Background(), Config{Driver: DriverBolt, DataDir: dir}, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer s.Close()

	bs, ok := s.(*BoltStore)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, domain.DatabaseName+".db"), bs.Path())
}
