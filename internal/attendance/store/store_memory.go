package store

import (
	"context"
	"slices"
	"sort"
	"sync"

	"presence/internal/attendance/models"
	idmodels "presence/internal/identity/models"
	"presence/pkg/platform/sentinel"
)

type dayKey struct {
	subject idmodels.DID
	day     int64
}

// InMemoryStore keeps per-subject event slices sorted by OccurredAt.
type InMemoryStore struct {
	mu     sync.RWMutex
	events map[idmodels.DID][]models.Event
	days   map[dayKey]struct{}
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		events: make(map[idmodels.DID][]models.Event),
		days:   make(map[dayKey]struct{}),
	}
}

func (s *InMemoryStore) Append(_ context.Context, event models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := dayKey{subject: event.SubjectDID, day: event.DayBucket}
	if _, ok := s.days[key]; ok {
		return sentinel.ErrAlreadyExists
	}
	s.days[key] = struct{}{}

	events := s.events[event.SubjectDID]
	// keep order even when a late mark for an earlier day arrives
	i := sort.Search(len(events), func(i int) bool {
		return events[i].OccurredAt.After(event.OccurredAt)
	})
	s.events[event.SubjectDID] = slices.Insert(events, i, event)
	return nil
}

func (s *InMemoryStore) ListBySubject(_ context.Context, subject idmodels.DID) ([]models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.events[subject]), nil
}

func (s *InMemoryStore) CountBySubject(_ context.Context, subject idmodels.DID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events[subject]), nil
}

func (s *InMemoryStore) CountAll(_ context.Context) (map[idmodels.DID]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[idmodels.DID]int, len(s.events))
	for subject, events := range s.events {
		out[subject] = len(events)
	}
	return out, nil
}
