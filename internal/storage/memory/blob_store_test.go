package memory

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlobStorePutObjectCopiesData(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	payload := []byte("<html></html>")
	uri, err := store.PutObject(context.Background(), "snapshots/abc.html", "text/html", bytes.NewReader(payload))
	require.NoError(t, err)
	require.Equal(t, "memory://snapshots/abc.html", uri)

	payload[0] = 'X'
	stored, ok := store.Object("snapshots/abc.html")
	require.True(t, ok)
	require.Equal(t, "<html></html>", string(stored))

	stored[0] = 'Y'
	again, _ := store.Object("snapshots/abc.html")
	require.Equal(t, "<html></html>", string(again))
	require.Equal(t, []string{"snapshots/abc.html"}, store.Paths())
}

func TestBlobStoreRejectsEmptyPath(t *testing.T) {
	t.Parallel()

	_, err := NewBlobStore().PutObject(context.Background(), " ", "", bytes.NewReader(nil))
	require.Error(t, err)

	_, ok := NewBlobStore().Object("missing")
	require.False(t, ok)
}
