package seen

import (
	"context"
	"errors"
	"maps"
	"strings"
	"sync"
	"time"

	logx "tokenwatch/pkg/logx"
)

// Store is the in-memory seen set backed by a durable backend.
//
// Writes are serialized. Membership checks never touch the backend.
type Store struct {
	log logx.Logger
	be  backend

	mu      sync.RWMutex
	entries map[string]Entry
	closed  bool
}

func newStore(ctx context.Context, be backend, log logx.Logger) (*Store, error) {
	entries, err := be.load(ctx)
	if err != nil {
		_ = be.close()
		return nil, err
	}
	if entries == nil {
		entries = map[string]Entry{}
	}
	log.Info("seen store loaded", logx.String("backend", be.describe()), logx.Int("entries", len(entries)))
	return &Store{log: log, be: be, entries: entries}, nil
}

// Has reports whether identity has already been recorded.
func (s *Store) Has(identity string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[identity]
	return ok
}

// RecordAndPersist adds e and makes it durable before returning.
//
// On a backend failure the in-memory insert is undone and a
// *PersistenceWriteError is returned. Recording an identity twice returns
// ErrAlreadyRecorded and leaves the original entry untouched.
func (s *Store) RecordAndPersist(ctx context.Context, e Entry) error {
	e.Identity = strings.TrimSpace(e.Identity)
	if e.Identity == "" {
		return errors.New("seen: empty identity")
	}
	if e.FirstSeenAt.IsZero() {
		e.FirstSeenAt = time.Now()
	}
	e.FirstSeenAt = e.FirstSeenAt.UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, ok := s.entries[e.Identity]; ok {
		return ErrAlreadyRecorded
	}

	s.entries[e.Identity] = e
	if err := s.be.persist(ctx, s.entries, e); err != nil {
		delete(s.entries, e.Identity)
		return &PersistenceWriteError{Identity: e.Identity, Err: err}
	}
	s.log.Debug("seen entry persisted", logx.String("identity", e.Identity), logx.String("symbol", e.Symbol))
	return nil
}

// Len returns the number of recorded identities.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Snapshot returns a copy of all entries.
func (s *Store) Snapshot() map[string]Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.entries)
}

// Backend names the durable backend, for logs and the health endpoint.
func (s *Store) Backend() string { return s.be.describe() }

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.be.close()
}
