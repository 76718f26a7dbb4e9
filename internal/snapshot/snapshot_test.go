package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestObjectKeyIsStableAndUTC(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("UTC+2", 2*60*60)
	at := time.Date(2026, 3, 14, 17, 30, 10, 500*int(time.Millisecond), loc)

	key := objectKey("prod-1", at)
	require.Equal(t, "prod-1/20260314T153010.500Z.html", key)
}

func TestLocalStoreWritesSnapshot(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	store, err := NewLocalStore(LocalConfig{BaseDir: base})
	require.NoError(t, err)

	at := time.Date(2026, 3, 14, 15, 30, 10, 0, time.UTC)
	uri, err := store.PutSnapshot(context.Background(), "prod-1", at, []byte("<html>sold out</html>"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(uri, "file://"), uri)

	data, err := os.ReadFile(filepath.Join(base, "prod-1", "20260314T153010.000Z.html"))
	require.NoError(t, err)
	require.Equal(t, "<html>sold out</html>", string(data))
}

func TestLocalStoreCreatesBaseDir(t *testing.T) {
	t.Parallel()

	base := filepath.Join(t.TempDir(), "nested", "snapshots")
	_, err := NewLocalStore(LocalConfig{BaseDir: base})
	require.NoError(t, err)

	info, err := os.Stat(base)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestLocalStoreRejectsEscapingProductID(t *testing.T) {
	t.Parallel()

	store, err := NewLocalStore(LocalConfig{BaseDir: t.TempDir()})
	require.NoError(t, err)

	_, err = store.PutSnapshot(context.Background(), "../../etc", time.Now(), []byte("x"))
	require.Error(t, err)
}

func TestLocalStoreRequiresBaseDir(t *testing.T) {
	t.Parallel()

	_, err := NewLocalStore(LocalConfig{})
	require.Error(t, err)
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	at := time.Date(2026, 3, 14, 15, 30, 10, 0, time.UTC)

	uri, err := store.PutSnapshot(context.Background(), "prod-1", at, []byte("body"))
	require.NoError(t, err)
	require.Equal(t, "mem://prod-1/20260314T153010.000Z.html", uri)

	data, ok := store.Get("prod-1/20260314T153010.000Z.html")
	require.True(t, ok)
	require.Equal(t, "body", string(data))
	require.Equal(t, 1, store.Len())
}

func TestMemoryStoreCopiesBody(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	body := []byte("original")
	_, err := store.PutSnapshot(context.Background(), "prod-1", time.Unix(0, 0), body)
	require.NoError(t, err)

	body[0] = 'X'
	data, ok := store.Get(objectKey("prod-1", time.Unix(0, 0)))
	require.True(t, ok)
	require.Equal(t, "original", string(data))
}

func TestNewGCSStoreValidatesInputs(t *testing.T) {
	t.Parallel()

	_, err := NewGCSStore(nil, GCSConfig{Bucket: "snapshots"})
	require.Error(t, err)
}
