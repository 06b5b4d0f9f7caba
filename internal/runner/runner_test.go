package runner

import (
	"bytes"
	"context"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"techmarket-bootstrap/internal/database"
	"techmarket-bootstrap/internal/model"
	"techmarket-bootstrap/internal/schema"
)

func newCatalog(t *testing.T) *database.MemoryDriver {
	t.Helper()
	db := database.NewMemoryDriver()
	require.NoError(t, db.InsertProducts(context.Background(), []model.Product{
		{Name: "Notebook A", Category: "Notebooks", Price: model.MustMoney("3500")},
		{Name: "Notebook B", Category: "Notebooks", Price: model.MustMoney("4500")},
		{Name: "Monitor", Category: "Monitores", Price: model.MustMoney("900")},
	}))
	return db
}

func TestRunMeasuresLatency(t *testing.T) {
	db := newCatalog(t)
	db.Latency = time.Millisecond
	var logs bytes.Buffer

	result, err := Run(context.Background(), db, schema.IndexedQueries()[0], 4, 100*time.Millisecond, log.New(&logs, "", 0))
	require.NoError(t, err)

	assert.Equal(t, "products_by_category", result.Query)
	assert.Positive(t, result.Operations)
	assert.Zero(t, result.Errors)
	assert.Zero(t, result.ErrorRate)
	assert.Equal(t, 2*result.Operations, result.Rows)
	assert.Positive(t, result.Throughput)
	assert.GreaterOrEqual(t, result.TotalTime, 100*time.Millisecond)
	assert.GreaterOrEqual(t, result.P95Latency, 900*time.Microsecond)
	assert.GreaterOrEqual(t, result.P99Latency, result.P95Latency)
	assert.GreaterOrEqual(t, result.AverageLatency, 900*time.Microsecond)
	assert.Contains(t, logs.String(), "Query products_by_category:")
}

func TestRunCountsErrors(t *testing.T) {
	db := newCatalog(t)
	q := schema.IndexedQueries()[0]
	q.Collection = "estoque"
	var logs bytes.Buffer

	result, err := Run(context.Background(), db, q, 2, 20*time.Millisecond, log.New(&logs, "", 0))
	require.NoError(t, err)

	assert.Zero(t, result.Operations)
	assert.Positive(t, result.Errors)
	assert.Equal(t, 1.0, result.ErrorRate)
	assert.Equal(t, 1, strings.Count(logs.String(), "failed: unknown collection"))
}

func TestRunStopsWhenContextIsDone(t *testing.T) {
	db := newCatalog(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	result, err := Run(ctx, db, schema.IndexedQueries()[0], 2, time.Minute, log.New(&bytes.Buffer{}, "", 0))
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.Zero(t, result.Operations)
	assert.Zero(t, result.Errors)
	assert.Zero(t, result.ErrorRate)
}

func TestRunRejectsBadArguments(t *testing.T) {
	db := database.NewMemoryDriver()
	logger := log.New(&bytes.Buffer{}, "", 0)
	q := schema.IndexedQueries()[0]

	_, err := Run(context.Background(), db, q, 0, time.Second, logger)
	assert.Error(t, err)

	_, err = Run(context.Background(), db, q, 1, 0, logger)
	assert.Error(t, err)
}

func TestRecordLatencyClampsOutOfRange(t *testing.T) {
	h := hdrhistogram.New(minLatency, maxLatency, sigFigs)

	recordLatency(h, 2*time.Millisecond)
	recordLatency(h, 5*time.Minute)
	recordLatency(h, 0)

	assert.EqualValues(t, 3, h.TotalCount())
	assert.True(t, h.ValuesAreEquivalent(maxLatency, h.Max()), "max %d", h.Max())
	assert.True(t, h.ValuesAreEquivalent(maxLatency, h.ValueAtQuantile(99)))
	assert.True(t, h.ValuesAreEquivalent(minLatency, h.Min()))
}
