// Package memory keeps workflow drafts in process memory
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/flowgraph/mpcflow/internal/core/draft"
	"github.com/flowgraph/mpcflow/pkg/serialization"
)

// DraftSaver implements draft.Saver with thread-safe in-memory storage
// PRINCIPLES:
// - KISS: Simple map guarded by one mutex
// - SRP: Single responsibility for in-memory draft storage
// - DIP: Implements draft.Saver interface
type DraftSaver struct {
	mu          sync.RWMutex
	entries     map[string]*entry
	currentSize int64

	defaultTTL  time.Duration
	maxMemoryMB int64
	serializer  *serialization.Serializer
	log         logr.Logger

	stopCleanup chan struct{}
	cleanupOnce sync.Once
}

// Config holds configuration for DraftSaver
type Config struct {
	DefaultTTL      time.Duration             // Default TTL for drafts
	MaxMemoryMB     int64                     // Maximum memory usage in MB
	CleanupInterval time.Duration             // Cleanup interval for expired items
	Serializer      *serialization.Serializer // Custom serializer (optional)
	Logger          logr.Logger
}

// entry holds the encoded document next to the draft header
type entry struct {
	header     *draft.Draft
	data       []byte
	size       int64
	expiresAt  time.Time
	accessedAt time.Time
}

// NewDraftSaver creates a new in-memory draft saver
func NewDraftSaver(config Config) *DraftSaver {
	if config.DefaultTTL == 0 {
		config.DefaultTTL = 24 * time.Hour
	}
	if config.MaxMemoryMB == 0 {
		config.MaxMemoryMB = 256
	}
	if config.CleanupInterval == 0 {
		config.CleanupInterval = 5 * time.Minute
	}
	if config.Serializer == nil {
		config.Serializer = serialization.DefaultSerializer()
	}
	if config.Logger.GetSink() == nil {
		config.Logger = logr.Discard()
	}

	s := &DraftSaver{
		entries:     make(map[string]*entry),
		defaultTTL:  config.DefaultTTL,
		maxMemoryMB: config.MaxMemoryMB,
		serializer:  config.Serializer,
		log:         config.Logger,
		stopCleanup: make(chan struct{}),
	}
	go s.cleanupLoop(config.CleanupInterval)
	return s
}

// DefaultDraftSaver creates a DraftSaver with default configuration
func DefaultDraftSaver() *DraftSaver {
	return NewDraftSaver(Config{})
}

// Save stores a draft, replacing any draft with the same ID
func (s *DraftSaver) Save(_ context.Context, d *draft.Draft) error {
	if err := d.Validate(); err != nil {
		return fmt.Errorf("draft validation failed: %w", err)
	}

	data, err := draft.EncodeDocument(s.serializer, d.Document)
	if err != nil {
		return fmt.Errorf("draft serialization failed: %w", err)
	}

	now := time.Now()
	e := &entry{
		header:     d.Header(),
		data:       data,
		size:       int64(len(data)),
		expiresAt:  now.Add(s.defaultTTL),
		accessedAt: now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.deleteLocked(d.ID)
	if err := s.reserveLocked(e.size); err != nil {
		return err
	}
	s.entries[d.ID] = e
	s.currentSize += e.size
	return nil
}

// Load retrieves a draft with its document
func (s *DraftSaver) Load(_ context.Context, id string) (*draft.Draft, error) {
	if id == "" {
		return nil, draft.ErrInvalidDraftID
	}

	s.mu.Lock()
	e, ok := s.entries[id]
	if ok && s.expired(e, time.Now()) {
		s.deleteLocked(id)
		ok = false
	}
	if !ok {
		s.mu.Unlock()
		return nil, draft.ErrDraftNotFound
	}
	e.accessedAt = time.Now()
	d := e.header.Header()
	data := e.data
	s.mu.Unlock()

	doc, err := draft.DecodeDocument(s.serializer, data)
	if err != nil {
		return nil, fmt.Errorf("draft deserialization failed: %w", err)
	}
	d.Document = doc
	return d, nil
}

// List returns draft headers matching the filter, newest first
func (s *DraftSaver) List(_ context.Context, filter draft.Filter) ([]*draft.Draft, error) {
	if err := filter.Validate(); err != nil {
		return nil, fmt.Errorf("filter validation failed: %w", err)
	}

	now := time.Now()
	s.mu.RLock()
	matches := make([]*draft.Draft, 0, len(s.entries))
	for _, e := range s.entries {
		if s.expired(e, now) || !filter.Match(e.header) {
			continue
		}
		matches = append(matches, e.header.Header())
	}
	s.mu.RUnlock()

	slices.SortFunc(matches, func(a, b *draft.Draft) int {
		if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
			return c
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})

	if filter.Offset >= len(matches) {
		return []*draft.Draft{}, nil
	}
	matches = matches[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(matches) {
		matches = matches[:filter.Limit]
	}
	return matches, nil
}

// Delete removes a draft
func (s *DraftSaver) Delete(_ context.Context, id string) error {
	if id == "" {
		return draft.ErrInvalidDraftID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.deleteLocked(id) {
		return draft.ErrDraftNotFound
	}
	return nil
}

// Stats reports memory usage
type Stats struct {
	Count              int64   `json:"count"`
	SizeBytes          int64   `json:"size_bytes"`
	MaxSizeMB          int64   `json:"max_size_mb"`
	UtilizationPercent float64 `json:"utilization_percent"`
}

// GetStats returns memory usage statistics
func (s *DraftSaver) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{
		Count:     int64(len(s.entries)),
		SizeBytes: s.currentSize,
		MaxSizeMB: s.maxMemoryMB,
	}
	if s.maxMemoryMB > 0 {
		stats.UtilizationPercent = float64(s.currentSize) / float64(s.maxMemoryMB*1024*1024) * 100
	}
	return stats
}

// Close stops the cleanup goroutine
func (s *DraftSaver) Close() error {
	s.cleanupOnce.Do(func() { close(s.stopCleanup) })
	return nil
}

func (s *DraftSaver) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.cleanupExpired()
		case <-s.stopCleanup:
			return
		}
	}
}

func (s *DraftSaver) cleanupExpired() {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.entries {
		if s.expired(e, now) {
			s.deleteLocked(id)
			s.log.V(1).Info("draft expired", "draft", id)
		}
	}
}

func (s *DraftSaver) expired(e *entry, now time.Time) bool {
	return now.After(e.expiresAt)
}

func (s *DraftSaver) deleteLocked(id string) bool {
	e, ok := s.entries[id]
	if !ok {
		return false
	}
	delete(s.entries, id)
	s.currentSize -= e.size
	return true
}

// reserveLocked evicts least recently used drafts until size more bytes fit
func (s *DraftSaver) reserveLocked(size int64) error {
	limit := s.maxMemoryMB * 1024 * 1024
	if size > limit {
		return fmt.Errorf("%w: draft is %d bytes, limit %dMB", draft.ErrStoreFull, size, s.maxMemoryMB)
	}
	if s.currentSize+size <= limit {
		return nil
	}

	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b string) int {
		return s.entries[a].accessedAt.Compare(s.entries[b].accessedAt)
	})
	for _, id := range ids {
		if s.currentSize+size <= limit {
			break
		}
		s.deleteLocked(id)
		s.log.Info("draft evicted", "draft", id)
	}
	return nil
}
