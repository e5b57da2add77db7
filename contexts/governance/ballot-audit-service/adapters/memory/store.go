package memory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	domainerrors "agora/contexts/governance/ballot-audit-service/domain/errors"
	"agora/contexts/governance/ballot-audit-service/ports"
)

// Store keeps the audit trail in memory behind one mutex. Entries are held
// in arrival order so newest-first reads are a reverse walk.
type Store struct {
	mu sync.RWMutex

	entries    []ports.AuditEntry
	seenEvents map[string]struct{}
	eventDedup map[string]string
	sequence   uint64
}

func NewStore() *Store {
	return &Store{
		entries:    make([]ports.AuditEntry, 0),
		seenEvents: make(map[string]struct{}),
		eventDedup: make(map[string]string),
	}
}

func (s *Store) AppendEntry(_ context.Context, entry ports.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seenEvents[entry.EventID]; ok {
		return domainerrors.ErrInvariantBroken
	}
	stored := entry
	stored.Payload = append([]byte(nil), entry.Payload...)
	s.entries = append(s.entries, stored)
	s.seenEvents[entry.EventID] = struct{}{}
	return nil
}

func (s *Store) ListBallotActivity(_ context.Context, ballotID string, limit int) ([]ports.AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]ports.AuditEntry, 0, limit)
	for index := len(s.entries) - 1; index >= 0 && len(items) < limit; index-- {
		entry := s.entries[index]
		if entry.BallotID != ballotID {
			continue
		}
		entry.Payload = append([]byte(nil), entry.Payload...)
		items = append(items, entry)
	}
	return items, nil
}

func (s *Store) GetSummary(_ context.Context) (ports.AuditSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := ports.AuditSummary{
		TotalEntries: len(s.entries),
		CountsByType: make(map[string]int),
	}
	ballots := make(map[string]struct{})
	for _, entry := range s.entries {
		summary.CountsByType[entry.EventType]++
		ballots[entry.BallotID] = struct{}{}
		if summary.LastRecordedAt == nil || entry.RecordedAt.After(*summary.LastRecordedAt) {
			recorded := entry.RecordedAt
			summary.LastRecordedAt = &recorded
		}
	}
	summary.Ballots = len(ballots)
	return summary, nil
}

func (s *Store) ReserveEvent(_ context.Context, eventID string, payloadHash string, _ time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.eventDedup[eventID]; ok {
		if existing != payloadHash {
			return false, domainerrors.ErrInvariantBroken
		}
		return true, nil
	}
	s.eventDedup[eventID] = payloadHash
	return false, nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	next := atomic.AddUint64(&s.sequence, 1)
	return fmt.Sprintf("audit-%d", next), nil
}
