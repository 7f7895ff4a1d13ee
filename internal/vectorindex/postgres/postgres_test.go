package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/spigell/cold-mailer/internal/vectorindex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDimensions = 64

func openTestIndex(t *testing.T) *Index {
	t.Helper()

	dsn := os.Getenv("COLD_MAILER_TEST_DSN")
	if dsn == "" {
		t.Skip("COLD_MAILER_TEST_DSN is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	collection := "portfolio_test_" + uuid.NewString()[:8]
	idx, err := Open(ctx, Options{DSN: dsn, Collection: collection, Dimensions: testDimensions}, vectorindex.HashingEmbedder{Dimensions: testDimensions}, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		_, _ = idx.pool.Exec(context.Background(), "DROP TABLE IF EXISTS "+idx.table)
		_ = idx.Close()
	})

	return idx
}

func TestOpenValidation(t *testing.T) {
	ctx := context.Background()
	embedder := vectorindex.HashingEmbedder{}

	_, err := Open(ctx, Options{Collection: "c", Dimensions: 8}, embedder, nil)
	assert.ErrorContains(t, err, "dsn")

	_, err = Open(ctx, Options{DSN: "postgres://localhost/db", Collection: "c"}, embedder, nil)
	assert.ErrorContains(t, err, "dimensions")

	_, err = Open(ctx, Options{DSN: "postgres://localhost/db", Dimensions: 8}, embedder, nil)
	assert.ErrorContains(t, err, "collection")

	_, err = Open(ctx, Options{DSN: "postgres://localhost/db", Collection: "c", Dimensions: 8}, nil, nil)
	assert.ErrorContains(t, err, "embedder")
}

func TestOpenHonoursConnectTimeout(t *testing.T) {
	started := time.Now()

	_, err := Open(context.Background(), Options{
		DSN:            "postgres://cold@10.255.255.1:5432/cold?connect_timeout=30",
		Collection:     "portfolio",
		Dimensions:     8,
		ConnectTimeout: 200 * time.Millisecond,
	}, vectorindex.HashingEmbedder{}, nil)

	require.Error(t, err)
	assert.ErrorContains(t, err, "ping database")
	assert.Less(t, time.Since(started), 5*time.Second)
}

func TestIndexRoundTrip(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()

	docs := []vectorindex.Document{
		{ID: "1", Text: "Python, Django", Metadata: map[string]string{"links": "https://x/1"}},
		{ID: "2", Text: "Go, Kubernetes", Metadata: map[string]string{"links": "https://x/2"}},
	}

	require.NoError(t, idx.Add(ctx, docs))
	require.NoError(t, idx.Add(ctx, docs))

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	hits, err := idx.Query(ctx, "Python", 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "https://x/1", hits[0].Metadata["links"])

	require.NoError(t, idx.Reset(ctx))

	count, err = idx.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}
