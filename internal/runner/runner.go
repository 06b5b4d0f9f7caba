// Package runner probes the indexed queries under concurrent load and
// reports latency percentiles.
package runner

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"techmarket-bootstrap/internal/database"
	"techmarket-bootstrap/internal/schema"
)

// Latencies are recorded in microseconds, up to one minute.
const (
	minLatency = 1
	maxLatency = int64(time.Minute / time.Microsecond)
	sigFigs    = 3
)

type Result struct {
	Query          string        `json:"query"`
	Operations     int64         `json:"operations"`
	Errors         int64         `json:"errors"`
	Rows           int64         `json:"rows"`
	Throughput     float64       `json:"throughput"`
	AverageLatency time.Duration `json:"average_latency"`
	P95Latency     time.Duration `json:"p95_latency"`
	P99Latency     time.Duration `json:"p99_latency"`
	ErrorRate      float64       `json:"error_rate"`
	TotalTime      time.Duration `json:"total_time"`
}

type worker struct {
	histogram  *hdrhistogram.Histogram
	operations int64
	errors     int64
	rows       int64
}

// Run issues q from concurrency workers until duration has elapsed or ctx is
// done. Each worker records into its own histogram; they are merged once all
// workers have stopped.
func Run(ctx context.Context, db database.SchemaDriver, q schema.Query, concurrency int, duration time.Duration, logger *log.Logger) (*Result, error) {
	if concurrency <= 0 {
		return nil, errors.New("concurrency must be positive")
	}
	if duration <= 0 {
		return nil, errors.New("duration must be positive")
	}

	var (
		wg       sync.WaitGroup
		logOnce  sync.Once
		workers  = make([]*worker, concurrency)
		start    = time.Now()
		deadline = start.Add(duration)
	)

	for i := range workers {
		w := &worker{histogram: hdrhistogram.New(minLatency, maxLatency, sigFigs)}
		workers[i] = w

		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(deadline) && ctx.Err() == nil {
				opStart := time.Now()
				n, err := db.Find(ctx, q)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					w.errors++
					logOnce.Do(func() {
						logger.Printf("Query %s failed: %v", q.Name, err)
					})
					continue
				}
				w.operations++
				w.rows += int64(n)
				recordLatency(w.histogram, time.Since(opStart))
			}
		}()
	}

	wg.Wait()

	result := &Result{Query: q.Name, TotalTime: time.Since(start)}
	histogram := hdrhistogram.New(minLatency, maxLatency, sigFigs)
	for _, w := range workers {
		histogram.Merge(w.histogram)
		result.Operations += w.operations
		result.Errors += w.errors
		result.Rows += w.rows
	}

	if secs := result.TotalTime.Seconds(); secs > 0 {
		result.Throughput = float64(result.Operations) / secs
	}
	if total := result.Operations + result.Errors; total > 0 {
		result.ErrorRate = float64(result.Errors) / float64(total)
	}
	result.AverageLatency = time.Duration(histogram.Mean()) * time.Microsecond
	result.P95Latency = time.Duration(histogram.ValueAtQuantile(95)) * time.Microsecond
	result.P99Latency = time.Duration(histogram.ValueAtQuantile(99)) * time.Microsecond

	logger.Printf("Query %s: %d operations, %d errors, p95 %s", q.Name, result.Operations, result.Errors, result.P95Latency)
	return result, nil
}

// recordLatency clamps d into the histogram's range so slow operations still
// count toward the upper percentiles.
func recordLatency(h *hdrhistogram.Histogram, d time.Duration) {
	us := min(max(d.Microseconds(), minLatency), maxLatency)
	_ = h.RecordValue(us)
}
