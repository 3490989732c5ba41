package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalStorePutAndDeleteMany(t *testing.T) {
	base := t.TempDir()
	store, err := NewLocalStore(Config{BasePath: base, BaseURL: "https://cdn.example.com/media/"})
	require.NoError(t, err)

	ctx := context.Background()
	obj, err := store.Put(ctx, strings.NewReader("jpeg-bytes"), "reports/r1/1_ab_roof.jpg", "image/jpeg")
	require.NoError(t, err)
	require.Equal(t, "reports/r1/1_ab_roof.jpg", obj.Key)
	require.Equal(t, "https://cdn.example.com/media/reports/r1/1_ab_roof.jpg", obj.URL)

	data, err := os.ReadFile(filepath.Join(base, "reports", "r1", "1_ab_roof.jpg"))
	require.NoError(t, err)
	require.Equal(t, "jpeg-bytes", string(data))

	require.NoError(t, store.DeleteMany(ctx, []string{obj.Key, "reports/r1/missing.jpg"}))
	_, err = os.Stat(filepath.Join(base, "reports", "r1", "1_ab_roof.jpg"))
	require.True(t, os.IsNotExist(err))
}

func TestLocalStoreRejectsEscapingKeys(t *testing.T) {
	store, err := NewLocalStore(Config{BasePath: t.TempDir()})
	require.NoError(t, err)

	_, err = store.Put(context.Background(), strings.NewReader("x"), "../outside.txt", "text/plain")
	require.Error(t, err)
}

func TestNewSelectsBackend(t *testing.T) {
	store, err := New(Config{Type: "local", BasePath: t.TempDir()})
	require.NoError(t, err)
	require.IsType(t, &LocalStore{}, store)

	_, err = New(Config{Type: "ftp"})
	require.Error(t, err)

	_, err = New(Config{Type: "s3"})
	require.Error(t, err, "bucket is required")
}
