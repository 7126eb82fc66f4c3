// Package ceremony implements witnessed key generation. A ceremony names
// the witnesses who must be physically or virtually present; the key is
// generated only after every designated witness has approved. Ceremonies
// are held in memory for the lifetime of the process.
package ceremony

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/hsm"
)

// Ceremony lifecycle statuses.
const (
	StatusPendingWitnesses = "pending_witnesses"
	StatusReady            = "ready"
	StatusGenerating       = "generating"
	StatusCompleted        = "completed"
)

// Sentinel errors mapped to HTTP statuses by the handlers.
var (
	ErrNotFound        = errors.New("ceremony not found")
	ErrTooFewWitnesses = errors.New("a ceremony requires at least two witnesses")
	ErrNotWitness      = errors.New("user is not a designated witness")
	ErrAlreadyApproved = errors.New("witness has already approved")
	ErrNotReady        = errors.New("ceremony is not ready for key generation")
)

// Witness is one designated observer of a ceremony.
type Witness struct {
	UserID      string     `json:"user_id"`
	Name        string     `json:"name,omitempty"`
	Email       string     `json:"email,omitempty"`
	HasApproved bool       `json:"has_approved"`
	ApprovedAt  *time.Time `json:"approved_at,omitempty"`
}

// Ceremony is a witnessed key generation session.
type Ceremony struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Description   string     `json:"description,omitempty"`
	KeyType       string     `json:"key_type"`
	KeySize       int        `json:"key_size"`
	Status        string     `json:"status"`
	Witnesses     []Witness  `json:"witnesses"`
	CreatedByID   string     `json:"created_by_id"`
	CreatedByName string     `json:"created_by_name,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	KeyID         string     `json:"key_id,omitempty"`
	Fingerprint   string     `json:"fingerprint,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// CreateParams are the caller-supplied fields of a new ceremony.
type CreateParams struct {
	Name          string
	Description   string
	KeyType       string
	KeySize       int
	WitnessIDs    []string
	CreatedByID   string
	CreatedByName string
}

// Manager owns the in-memory ceremony registry.
type Manager struct {
	mu         sync.RWMutex
	ceremonies map[string]*Ceremony
	now        func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates an empty ceremony registry.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		ceremonies: make(map[string]*Ceremony),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create registers a new ceremony in pending_witnesses status. Witness ids
// are deduplicated; fewer than two distinct witnesses is an error.
func (m *Manager) Create(_ context.Context, p CreateParams) (*Ceremony, error) {
	seen := make(map[string]bool, len(p.WitnessIDs))
	witnesses := make([]Witness, 0, len(p.WitnessIDs))
	for _, id := range p.WitnessIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		witnesses = append(witnesses, Witness{UserID: id})
	}
	if len(witnesses) < 2 {
		return nil, ErrTooFewWitnesses
	}

	keyType := p.KeyType
	if keyType == "" {
		keyType = "RSA"
	}
	keySize := p.KeySize
	if keySize == 0 {
		keySize = 4096
	}

	c := &Ceremony{
		ID:            uuid.New().String(),
		Name:          p.Name,
		Description:   p.Description,
		KeyType:       keyType,
		KeySize:       keySize,
		Status:        StatusPendingWitnesses,
		Witnesses:     witnesses,
		CreatedByID:   p.CreatedByID,
		CreatedByName: p.CreatedByName,
		CreatedAt:     m.now().UTC(),
	}

	m.mu.Lock()
	m.ceremonies[c.ID] = c
	m.mu.Unlock()

	return c.snapshot(), nil
}

// Get returns a ceremony by id.
func (m *Manager) Get(_ context.Context, id string) (*Ceremony, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.ceremonies[id]
	if !ok {
		return nil, ErrNotFound
	}
	return c.snapshot(), nil
}

// List returns ceremonies, newest first, optionally filtered by status.
func (m *Manager) List(_ context.Context, status string) ([]*Ceremony, error) {
	if status != "" {
		switch status {
		case StatusPendingWitnesses, StatusReady, StatusGenerating, StatusCompleted:
		default:
			return nil, fmt.Errorf("invalid status filter %q", status)
		}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Ceremony, 0, len(m.ceremonies))
	for _, c := range m.ceremonies {
		if status != "" && c.Status != status {
			continue
		}
		out = append(out, c.snapshot())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Approve records a witness approval. When the last designated witness
// approves, the ceremony transitions to ready.
func (m *Manager) Approve(_ context.Context, id, userID string) (*Ceremony, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.ceremonies[id]
	if !ok {
		return nil, ErrNotFound
	}

	idx := -1
	for i := range c.Witnesses {
		if c.Witnesses[i].UserID == userID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, ErrNotWitness
	}
	if c.Witnesses[idx].HasApproved {
		return nil, ErrAlreadyApproved
	}

	approvedAt := m.now().UTC()
	c.Witnesses[idx].HasApproved = true
	c.Witnesses[idx].ApprovedAt = &approvedAt

	allApproved := true
	for i := range c.Witnesses {
		if !c.Witnesses[i].HasApproved {
			allApproved = false
			break
		}
	}
	if allApproved {
		c.Status = StatusReady
	}

	return c.snapshot(), nil
}

// Generate produces the ceremony's key. The ceremony must be ready, meaning
// every witness has approved.
func (m *Manager) Generate(_ context.Context, id string) (*Ceremony, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.ceremonies[id]
	if !ok {
		return nil, ErrNotFound
	}
	if c.Status != StatusReady {
		return nil, ErrNotReady
	}

	c.Status = StatusGenerating
	fingerprint, err := hsm.GenerateFingerprint()
	if err != nil {
		c.Status = StatusReady
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}

	completedAt := m.now().UTC()
	c.KeyID = uuid.New().String()
	c.Fingerprint = fingerprint
	c.Status = StatusCompleted
	c.CompletedAt = &completedAt

	return c.snapshot(), nil
}

// ResolveWitness fills in a witness's display fields.
func (m *Manager) ResolveWitness(id, userID, name, email string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.ceremonies[id]
	if !ok {
		return
	}
	for i := range c.Witnesses {
		if c.Witnesses[i].UserID == userID {
			c.Witnesses[i].Name = name
			c.Witnesses[i].Email = email
			return
		}
	}
}

// snapshot copies the ceremony so callers never share the locked state.
func (c *Ceremony) snapshot() *Ceremony {
	out := *c
	out.Witnesses = make([]Witness, len(c.Witnesses))
	copy(out.Witnesses, c.Witnesses)
	return &out
}
