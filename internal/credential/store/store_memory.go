package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"presence/internal/credential/models"
	idmodels "presence/internal/identity/models"
	"presence/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu          sync.RWMutex
	credentials map[models.CredentialID]models.Credential
	order       []models.CredentialID
	valid       map[idmodels.DID]models.CredentialID
	revocations []models.Revocation
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		credentials: make(map[models.CredentialID]models.Credential),
		valid:       make(map[idmodels.DID]models.CredentialID),
	}
}

func (s *InMemoryStore) Insert(_ context.Context, c models.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.credentials[c.ID]; ok {
		return sentinel.ErrConflict
	}
	if c.Status == models.StatusValid {
		if _, ok := s.valid[c.SubjectDID]; ok {
			return sentinel.ErrAlreadyExists
		}
		s.valid[c.SubjectDID] = c.ID
	}
	s.credentials[c.ID] = clone(c)
	s.order = append(s.order, c.ID)
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id models.CredentialID) (*models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.credentials[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := clone(c)
	return &out, nil
}

func (s *InMemoryStore) ListBySubject(_ context.Context, subject idmodels.DID) ([]models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Credential
	for _, id := range s.order {
		if c := s.credentials[id]; c.SubjectDID == subject {
			out = append(out, clone(c))
		}
	}
	return out, nil
}

func (s *InMemoryStore) ListAll(_ context.Context) ([]models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Credential, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, clone(s.credentials[id]))
	}
	return out, nil
}

func (s *InMemoryStore) Revoke(_ context.Context, id models.CredentialID, revokedAt time.Time, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.credentials[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if c.Status != models.StatusValid {
		return sentinel.ErrInvalidState
	}
	c.Status = models.StatusRevoked
	c.RevokedAt = &revokedAt
	s.credentials[id] = c
	delete(s.valid, c.SubjectDID)
	s.revocations = append(s.revocations, models.Revocation{
		CredentialID: id,
		RevokedAt:    revokedAt,
		Reason:       reason,
	})
	return nil
}

func (s *InMemoryStore) IsRevoked(_ context.Context, id models.CredentialID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.credentials[id]
	return ok && c.Status == models.StatusRevoked, nil
}

func (s *InMemoryStore) ListRevocations(_ context.Context) ([]models.Revocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.revocations), nil
}

func clone(c models.Credential) models.Credential {
	c.Proof.Signature = slices.Clone(c.Proof.Signature)
	if c.RevokedAt != nil {
		t := *c.RevokedAt
		c.RevokedAt = &t
	}
	return c
}
