// Package store keeps run records and tool state in memory.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"github.com/ZanzyTHEbar/goalrunner"
)

// DefaultListLimit is used when List is called with a non-positive limit.
const DefaultListLimit = 10

// MemoryStore keeps execution records keyed by execution id. When a retention
// window is set, finished records older than the window are evicted.
type MemoryStore struct {
	mu        sync.RWMutex
	records   map[string]*goalrunner.ExecutionContext
	retention time.Duration
	logger    *slog.Logger
	done      chan struct{}
	closeOnce sync.Once
}

// Option configures a MemoryStore.
type Option func(*MemoryStore)

// WithRetention sets how long finished records are kept. Zero keeps them for
// the lifetime of the store.
func WithRetention(d time.Duration) Option {
	return func(s *MemoryStore) {
		if d > 0 {
			s.retention = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *MemoryStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewMemoryStore creates an execution store. With a retention window a
// background goroutine evicts expired records until Close is called.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		records: make(map[string]*goalrunner.ExecutionContext),
		logger:  slog.Default(),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.retention > 0 {
		go s.cleanupLoop(cleanupInterval(s.retention))
	}
	return s
}

// Save inserts or replaces the record for ec.ExecutionID.
func (s *MemoryStore) Save(ctx context.Context, ec *goalrunner.ExecutionContext) error {
	if err := contextErr(ctx); err != nil {
		return err
	}
	if ec == nil || ec.ExecutionID == "" {
		return goalrunner.NewValidationError(goalrunner.StageStore, "execution record must have an id", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[ec.ExecutionID] = ec
	return nil
}

// Get returns the record for executionID.
func (s *MemoryStore) Get(ctx context.Context, executionID string) (*goalrunner.ExecutionContext, error) {
	if err := contextErr(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ec, found := s.records[executionID]
	if !found {
		return nil, notFound(executionID, "execution record not found")
	}
	if s.expired(ec, time.Now()) {
		s.logger.Debug("execution record expired", "execution_id", executionID)
		return nil, notFound(executionID, "execution record expired")
	}
	return ec, nil
}

// List returns up to limit records, most recently created first.
func (s *MemoryStore) List(ctx context.Context, limit int) ([]*goalrunner.ExecutionContext, error) {
	if err := contextErr(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}

	s.mu.RLock()
	now := time.Now()
	out := make([]*goalrunner.ExecutionContext, 0, len(s.records))
	for _, ec := range s.records {
		if !s.expired(ec, now) {
			out = append(out, ec)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Len returns the number of records held, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Close stops the cleanup goroutine.
func (s *MemoryStore) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

// Evict removes expired records and returns how many were removed.
func (s *MemoryStore) Evict() int {
	if s.retention <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	removed := 0
	for id, ec := range s.records {
		if s.expired(ec, now) {
			delete(s.records, id)
			removed++
		}
	}
	return removed
}

// expired reports whether a finished record is past the retention window.
// Running records never expire.
func (s *MemoryStore) expired(ec *goalrunner.ExecutionContext, now time.Time) bool {
	if s.retention <= 0 {
		return false
	}
	completedAt, finished := ec.Finished()
	return finished && now.Sub(completedAt) > s.retention
}

func (s *MemoryStore) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if n := s.Evict(); n > 0 {
				s.logger.Debug("evicted expired execution records", "count", n)
			}
		}
	}
}

func cleanupInterval(retention time.Duration) time.Duration {
	interval := retention / 2
	if interval > 10*time.Minute {
		interval = 10 * time.Minute
	}
	if interval < time.Second {
		interval = time.Second
	}
	return interval
}

func notFound(executionID, reason string) error {
	return goalrunner.NewNotFoundError(goalrunner.StageStore,
		fmt.Sprintf("%s: %s", reason, executionID),
		errbuilder.NotFoundErr(errbuilder.GenericErr(reason, nil)))
}

var _ goalrunner.Store = (*MemoryStore)(nil)
