package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/PabloGalante/rentchat/internal/domain"
)

type ProfileStore struct {
	mu       sync.RWMutex
	profiles map[domain.UserID]*domain.ParticipantProfile
}

func NewProfileStore() *ProfileStore {
	return &ProfileStore{
		profiles: make(map[domain.UserID]*domain.ParticipantProfile),
	}
}

// PutProfile creates or replaces a profile. Profiles are owned by another
// subsystem; this is how local mode and tests seed them.
func (s *ProfileStore) PutProfile(p *domain.ParticipantProfile) error {
	if p == nil || p.ID == "" {
		return errors.New("profile id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *p
	s.profiles[p.ID] = &cp
	return nil
}

func (s *ProfileStore) GetProfile(_ context.Context, id domain.UserID) (*domain.ParticipantProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[id]
	if !ok {
		return nil, domain.ErrNotFound
	}

	cp := *p
	return &cp, nil
}
