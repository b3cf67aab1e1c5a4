package mongokv

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-dashboard-builder/pkg/kv"
	"github.com/goliatone/go-dashboard-builder/pkg/kv/kvtest"
)

// Set BOARD_TEST_MONGO_URI to run against a live server.
func TestMongoBackend(t *testing.T) {
	uri := os.Getenv("BOARD_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("BOARD_TEST_MONGO_URI not set")
	}
	kvtest.Run(t, func(t *testing.T) kv.Backend {
		store, err := Connect(context.Background(), Options{
			URI:        uri,
			Database:   "board_test",
			Collection: "kv_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		})
		require.NoError(t, err)
		t.Cleanup(func() {
			_ = store.collection.Drop(context.Background())
			store.Close()
		})
		return store
	})
}

func TestConnectValidatesOptions(t *testing.T) {
	_, err := Connect(context.Background(), Options{})
	require.Error(t, err)
	_, err = Connect(context.Background(), Options{URI: "mongodb://localhost:27017"})
	require.Error(t, err)
}
