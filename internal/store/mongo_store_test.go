package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/cinetrack/backend/internal/store"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func newMongoStore(t *testing.T) *store.MongoStore {
	t.Helper()
	if testing.Short() {
		t.Skip("mongo container test skipped in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:7.0",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForListeningPort("27017/tcp"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client, err := mongo.Connect(ctx, options.Client().ApplyURI("mongodb://"+endpoint))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = client.Disconnect(context.Background())
	})

	documentStore, err := store.NewMongoStore(store.MongoStoreConfig{
		Database: client.Database("cinetrack_test"),
		Clock:    func() time.Time { return time.Unix(1700000000, 0) },
	})
	require.NoError(t, err)
	return documentStore
}

func TestMongoStoreRoundTrip(t *testing.T) {
	documentStore := newMongoStore(t)
	ctx := context.Background()

	require.NoError(t, documentStore.EnsureIndexes(ctx, "bookmarks"))
	require.NoError(t, documentStore.EnsureIndexes(ctx, "bookmarks"))

	id, err := documentStore.Insert(ctx, "bookmarks", "doc-1", store.Fields{
		"userId": "user-1",
		"genres": []string{"Drama", "Crime"},
	})
	require.NoError(t, err)
	require.Equal(t, "doc-1", id)

	_, err = documentStore.Insert(ctx, "bookmarks", "doc-1", store.Fields{"userId": "user-1"})
	require.ErrorIs(t, err, store.ErrDuplicateDocument)

	found, err := documentStore.QueryOne(ctx, "bookmarks", store.Where("userId", "user-1"))
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, []string{"Drama", "Crime"}, found.Strings("genres"))

	require.NoError(t, documentStore.Set(ctx, "bookmarks", "doc-1", store.Fields{"title": "Heat"}, true))
	merged, err := documentStore.Get(ctx, "bookmarks", "doc-1")
	require.NoError(t, err)
	require.Equal(t, "Heat", merged.String("title"))
	require.Equal(t, "user-1", merged.String("userId"))

	require.NoError(t, documentStore.Delete(ctx, "bookmarks", "doc-1"))
	_, err = documentStore.Get(ctx, "bookmarks", "doc-1")
	require.ErrorIs(t, err, store.ErrDocumentNotFound)
}
