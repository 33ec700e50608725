package store

import (
	"context"
	"slices"
	"sort"
	"sync"

	"presence/internal/identity/models"
	"presence/pkg/platform/sentinel"
)

// InMemoryStore keeps identities in maps guarded by a single RWMutex.
type InMemoryStore struct {
	mu       sync.RWMutex
	records  map[models.DID]models.Record
	subjects map[models.DID]models.Subject
	byCard   map[models.CardUID]models.DID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		records:  make(map[models.DID]models.Record),
		subjects: make(map[models.DID]models.Subject),
		byCard:   make(map[models.CardUID]models.DID),
	}
}

func (s *InMemoryStore) Create(_ context.Context, record models.Record, subject models.Subject) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[record.DID]; ok {
		return sentinel.ErrConflict
	}
	if subject.HasCard() {
		if _, ok := s.byCard[subject.CardUID]; ok {
			return sentinel.ErrAlreadyExists
		}
		s.byCard[subject.CardUID] = record.DID
	}
	record.Keys = slices.Clone(record.Keys)
	s.records[record.DID] = record
	s.subjects[record.DID] = subject
	return nil
}

func (s *InMemoryStore) FindRecord(_ context.Context, did models.DID) (models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[did]
	if !ok {
		return models.Record{}, sentinel.ErrNotFound
	}
	rec.Keys = slices.Clone(rec.Keys)
	return rec, nil
}

func (s *InMemoryStore) FindSubject(_ context.Context, did models.DID) (models.Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	subj, ok := s.subjects[did]
	if !ok {
		return models.Subject{}, sentinel.ErrNotFound
	}
	return subj, nil
}

func (s *InMemoryStore) FindSubjectByCard(_ context.Context, uid models.CardUID) (models.Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	did, ok := s.byCard[uid]
	if !ok {
		return models.Subject{}, sentinel.ErrNotFound
	}
	return s.subjects[did], nil
}

// ListSubjects returns card-bound subjects ordered by creation time.
func (s *InMemoryStore) ListSubjects(_ context.Context) ([]models.Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Subject, 0, len(s.byCard))
	for _, subj := range s.subjects {
		if subj.HasCard() {
			out = append(out, subj)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].DID < out[j].DID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *InMemoryStore) ListRecords(_ context.Context) ([]models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Record, 0, len(s.records))
	for _, rec := range s.records {
		rec.Keys = slices.Clone(rec.Keys)
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DID < out[j].DID })
	return out, nil
}

func (s *InMemoryStore) AppendKey(_ context.Context, did models.DID, key models.KeyVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[did]
	if !ok {
		return sentinel.ErrNotFound
	}
	if key.Version != len(rec.Keys)+1 {
		return sentinel.ErrConflict
	}
	rec.Keys = append(slices.Clone(rec.Keys), key)
	s.records[did] = rec
	return nil
}

func (s *InMemoryStore) SetCardStatus(_ context.Context, uid models.CardUID, status models.CardStatus) (models.Subject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	did, ok := s.byCard[uid]
	if !ok {
		return models.Subject{}, sentinel.ErrNotFound
	}
	subj := s.subjects[did]
	subj.CardStatus = status
	s.subjects[did] = subj
	return subj, nil
}
