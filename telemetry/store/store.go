// Package store persists parameter summaries as time-indexed histogram
// records. The on-disk layout is owned entirely by the writer
// implementations; callers only see Records.
package store

import (
	"errors"
	"slices"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ErrWriterClosed is returned by any write attempted after Close.
var ErrWriterClosed = errors.New("telemetry writer is closed")

// histogramBins is the fixed bin count of every record.
const histogramBins = 30

// Record is one histogram snapshot of a named parameter at a step index.
type Record struct {
	RunID string    `json:"run_id"`
	Name  string    `json:"name"`
	Step  int64     `json:"step"`
	Time  time.Time `json:"time"`

	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Stddev float64 `json:"stddev"`

	// Edges has one more entry than Counts; Counts[i] covers
	// [Edges[i], Edges[i+1]).
	Edges  []float64 `json:"edges"`
	Counts []int64   `json:"counts"`
}

// NewRecord summarizes vals into a histogram record. vals is never mutated.
func NewRecord(runID, name string, step int64, vals []float32) Record {
	x := make([]float64, len(vals))
	for i, v := range vals {
		x[i] = float64(v)
	}
	sort.Float64s(x)

	r := Record{
		RunID: runID,
		Name:  name,
		Step:  step,
		Time:  time.Now().UTC(),
		Count: len(x),
	}

	if len(x) == 0 {
		return r
	}

	r.Min, r.Max = x[0], x[len(x)-1]
	r.Mean = stat.Mean(x, nil)
	// the sample deviation divides by n-1 and is NaN for a single value
	if len(x) > 1 {
		r.Stddev = stat.StdDev(x, nil)
	}

	lo, hi := r.Min, r.Max
	if lo == hi {
		// degenerate span; widen so every value lands in one bin
		lo, hi = lo-0.5, hi+0.5
	}

	edges := make([]float64, histogramBins+1)
	floats.Span(edges, lo, hi)
	// the final divider is exclusive in stat.Histogram; nudge it past max
	edges[len(edges)-1] = hi + (hi-lo)*1e-9

	counts := stat.Histogram(make([]float64, histogramBins), edges, x, nil)

	r.Edges = edges
	r.Counts = make([]int64, len(counts))
	for i, c := range counts {
		r.Counts[i] = int64(c)
	}

	return r
}

// Writer is an append-only, time-indexed record sink.
type Writer interface {
	// WriteBatch appends records atomically: either all land or none do.
	WriteBatch(records []Record) error
	Flush() error
	Close() error
}

// Memory is an in-process writer used by tests and short-lived runs.
type Memory struct {
	mu      sync.Mutex
	records []Record
	closed  bool
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) WriteBatch(records []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrWriterClosed
	}

	m.records = append(m.records, records...)
	return nil
}

func (m *Memory) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrWriterClosed
	}

	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrWriterClosed
	}

	m.closed = true
	return nil
}

// Records returns a snapshot of everything written so far.
func (m *Memory) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.records)
}
