// Package memory provides an in-memory quorum.Store used by tests and the
// standalone "memory" storage mode. All state lives behind one mutex; rows
// are copied on the way in and out so callers never share memory with the
// store.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/quorum"
)

type voteKey struct {
	requestID string
	userID    string
}

// Store holds all quorum state in process memory.
type Store struct {
	mu       sync.RWMutex
	requests map[string]*quorum.Request
	votes    map[voteKey]*quorum.Vote
	policies map[string]*quorum.Policy
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		requests: make(map[string]*quorum.Request),
		votes:    make(map[voteKey]*quorum.Vote),
		policies: make(map[string]*quorum.Policy),
	}
}

func (s *Store) CreateRequest(_ context.Context, r *quorum.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	s.requests[r.ID] = &cp
	return nil
}

func (s *Store) GetRequest(_ context.Context, id string) (*quorum.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[id]
	if !ok {
		return nil, quorum.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *Store) ListRequests(_ context.Context, f quorum.RequestFilter) ([]*quorum.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*quorum.Request, 0, len(s.requests))
	for _, r := range s.requests {
		if f.Status != nil && r.Status != *f.Status {
			continue
		}
		if f.OrganizationID != nil {
			if r.OrganizationID == nil || *r.OrganizationID != *f.OrganizationID {
				continue
			}
		}
		cp := *r
		matched = append(matched, &cp)
	}

	// Newest first, like the Postgres store's ORDER BY created_at DESC.
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if f.Offset > 0 {
		if f.Offset >= len(matched) {
			return []*quorum.Request{}, nil
		}
		matched = matched[f.Offset:]
	}
	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}
	return matched, nil
}

func (s *Store) UpdateRequest(_ context.Context, r *quorum.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.requests[r.ID]
	if !ok {
		return quorum.ErrNotFound
	}
	if current.Status.Terminal() {
		return quorum.NotPendingError(current.Status)
	}
	cp := *r
	s.requests[r.ID] = &cp
	return nil
}

func (s *Store) AddVote(_ context.Context, v *quorum.Vote, r *quorum.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.requests[r.ID]
	if !ok {
		return quorum.ErrNotFound
	}
	if current.Status.Terminal() {
		return quorum.NotPendingError(current.Status)
	}

	key := voteKey{requestID: v.RequestID, userID: v.UserID}
	if _, exists := s.votes[key]; exists {
		return quorum.ErrAlreadyVoted
	}

	vcp := *v
	rcp := *r
	s.votes[key] = &vcp
	s.requests[r.ID] = &rcp
	return nil
}

func (s *Store) HasVote(_ context.Context, requestID, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.votes[voteKey{requestID: requestID, userID: userID}]
	return ok, nil
}

func (s *Store) ListVotes(_ context.Context, requestID string) ([]quorum.Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	votes := make([]quorum.Vote, 0)
	for key, v := range s.votes {
		if key.requestID == requestID {
			votes = append(votes, *v)
		}
	}
	sort.Slice(votes, func(i, j int) bool {
		return votes[i].CreatedAt.Before(votes[j].CreatedAt)
	})
	return votes, nil
}

func (s *Store) CreatePolicy(_ context.Context, p *quorum.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.policies[p.ID] = &cp
	return nil
}

func (s *Store) GetPolicy(_ context.Context, id string) (*quorum.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.policies[id]
	if !ok {
		return nil, quorum.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *Store) UpdatePolicy(_ context.Context, p *quorum.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.policies[p.ID]; !ok {
		return quorum.ErrNotFound
	}
	cp := *p
	s.policies[p.ID] = &cp
	return nil
}

func (s *Store) DeletePolicy(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.policies[id]; !ok {
		return quorum.ErrNotFound
	}
	delete(s.policies, id)
	return nil
}

func (s *Store) ListPolicies(_ context.Context, organizationID *string) ([]*quorum.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	policies := make([]*quorum.Policy, 0, len(s.policies))
	for _, p := range s.policies {
		if organizationID != nil {
			if p.OrganizationID == nil || *p.OrganizationID != *organizationID {
				continue
			}
		}
		cp := *p
		policies = append(policies, &cp)
	}
	sort.Slice(policies, func(i, j int) bool {
		return policies[i].CreatedAt.Before(policies[j].CreatedAt)
	})
	return policies, nil
}

func (s *Store) FindEnabledPolicy(_ context.Context, approvalType quorum.ApprovalType, organizationID *string) (*quorum.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.policies {
		if !p.IsEnabled || p.ApprovalType != approvalType {
			continue
		}
		if organizationID == nil {
			if p.OrganizationID != nil {
				continue
			}
		} else {
			if p.OrganizationID == nil || *p.OrganizationID != *organizationID {
				continue
			}
		}
		cp := *p
		return &cp, nil
	}
	return nil, quorum.ErrNotFound
}

func (s *Store) ListExpiredPending(_ context.Context, now time.Time) ([]*quorum.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	overdue := make([]*quorum.Request, 0)
	for _, r := range s.requests {
		if r.Status == quorum.StatusPending && r.Expired(now) {
			cp := *r
			overdue = append(overdue, &cp)
		}
	}
	return overdue, nil
}

var _ quorum.Store = (*Store)(nil)
