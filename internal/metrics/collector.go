// Package metrics provides in-memory runtime statistics collection.
package metrics

import (
	"math"
	"sync"
	"time"
)

// OperationMetrics holds aggregated metrics for a single operation type.
type OperationMetrics struct {
	Count     int64
	Items     int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration
}

// OperationSnapshot provides computed stats from raw metrics.
type OperationSnapshot struct {
	Op          string
	Count       int64
	Items       int64
	TotalTimeMs int64
	AvgTimeMs   float64
	MinTimeMs   int64
	MaxTimeMs   int64
	ItemsPerSec float64
}

// Snapshot represents the statistics of a run at a point in time.
type Snapshot struct {
	UptimeSeconds float64
	Embedding     *OperationSnapshot
	Similarity    *OperationSnapshot
	Episode       *OperationSnapshot
	Store         *OperationSnapshot
}

// Operations returns the non-empty operation snapshots in pipeline order.
func (s Snapshot) Operations() []*OperationSnapshot {
	var ops []*OperationSnapshot
	for _, op := range []*OperationSnapshot{s.Embedding, s.Similarity, s.Episode, s.Store} {
		if op != nil {
			ops = append(ops, op)
		}
	}
	return ops
}

// Operation names for the collector.
const (
	OpEmbedding  = "embedding"
	OpSimilarity = "similarity"
	OpEpisode    = "episode"
	OpStore      = "store"
)

// Collector aggregates in-memory runtime statistics.
// All methods are thread-safe, and a nil *Collector discards everything.
type Collector struct {
	mu        sync.RWMutex
	startTime time.Time
	ops       map[string]*OperationMetrics
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		ops:       make(map[string]*OperationMetrics),
	}
}

// getOrCreate returns existing metrics or creates new ones for an operation.
// Caller must hold write lock.
func (c *Collector) getOrCreate(op string) *OperationMetrics {
	m, ok := c.ops[op]
	if !ok {
		m = &OperationMetrics{MinTime: time.Duration(math.MaxInt64)}
		c.ops[op] = m
	}
	return m
}

// RecordTiming records timing for an operation that handled one item.
func (c *Collector) RecordTiming(op string, duration time.Duration) {
	c.RecordBatch(op, duration, 1)
}

// RecordBatch records timing for an operation over items units of work
// (texts embedded, cells scored, episodes written).
func (c *Collector) RecordBatch(op string, duration time.Duration, items int) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.getOrCreate(op)
	m.Count++
	m.Items += int64(items)
	m.TotalTime += duration

	if duration < m.MinTime {
		m.MinTime = duration
	}
	if duration > m.MaxTime {
		m.MaxTime = duration
	}
}

// snapshotOp creates a snapshot for an operation, returning nil if no data.
func snapshotOp(op string, m *OperationMetrics) *OperationSnapshot {
	if m == nil || m.Count == 0 {
		return nil
	}

	var rate float64
	if m.TotalTime > 0 {
		rate = float64(m.Items) / m.TotalTime.Seconds()
	}
	// Microseconds keep sub-millisecond averages visible.
	return &OperationSnapshot{
		Op:          op,
		Count:       m.Count,
		Items:       m.Items,
		TotalTimeMs: m.TotalTime.Milliseconds(),
		AvgTimeMs:   float64(m.TotalTime.Microseconds()) / 1000 / float64(m.Count),
		MinTimeMs:   m.MinTime.Milliseconds(),
		MaxTimeMs:   m.MaxTime.Milliseconds(),
		ItemsPerSec: rate,
	}
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Snapshot{
		UptimeSeconds: time.Since(c.startTime).Seconds(),
		Embedding:     snapshotOp(OpEmbedding, c.ops[OpEmbedding]),
		Similarity:    snapshotOp(OpSimilarity, c.ops[OpSimilarity]),
		Episode:       snapshotOp(OpEpisode, c.ops[OpEpisode]),
		Store:         snapshotOp(OpStore, c.ops[OpStore]),
	}
}
