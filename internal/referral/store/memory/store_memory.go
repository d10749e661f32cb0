// Package memory implements the referral Store with an in-memory map.
// It backs unit tests and single-process runs; for multi-instance deployments
// use the postgres store, which enforces exclusivity at the database.
package memory

import (
	"context"
	"sync"
	"time"

	"refhub/internal/referral/models"
	id "refhub/pkg/domain"
	"refhub/pkg/platform/sentinel"
)

type Store struct {
	mu    sync.RWMutex
	users map[id.UserID]*models.UserRecord
}

func New() *Store {
	return &Store{users: make(map[id.UserID]*models.UserRecord)}
}

func (s *Store) Get(_ context.Context, userID id.UserID) (*models.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.users[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *record
	if record.InvitedBy != nil {
		inviter := *record.InvitedBy
		copied.InvitedBy = &inviter
	}
	return &copied, nil
}

func (s *Store) CreateIfAbsent(_ context.Context, userID id.UserID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; ok {
		return false, nil
	}
	s.users[userID] = &models.UserRecord{
		UserID:    userID,
		CreatedAt: time.Now(),
	}
	return true, nil
}

// ClaimInvitedBy performs the null-check-then-set and the inviter increment
// under one lock, mirroring the single transaction the postgres store uses.
func (s *Store) ClaimInvitedBy(_ context.Context, newUserID, inviterID id.UserID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	newUser, ok := s.users[newUserID]
	if !ok {
		return false, sentinel.ErrNotFound
	}
	if newUser.InvitedBy != nil {
		return false, nil
	}
	inviter, ok := s.users[inviterID]
	if !ok {
		return false, sentinel.ErrNotFound
	}

	claimed := inviterID
	newUser.InvitedBy = &claimed
	inviter.ReferralCount++
	return true, nil
}

func (s *Store) MarkGoalNotified(_ context.Context, userID id.UserID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.users[userID]
	if !ok {
		return false, sentinel.ErrNotFound
	}
	if record.GoalNotified {
		return false, nil
	}
	record.GoalNotified = true
	return true, nil
}

func (s *Store) GetCount(_ context.Context, userID id.UserID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.users[userID]
	if !ok {
		return 0, nil
	}
	return record.ReferralCount, nil
}
