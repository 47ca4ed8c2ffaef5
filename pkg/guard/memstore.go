package guard

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tendant/video-guard/pkg/domain"
)

// MemStore is an in-memory SessionStore. Tests use it in place of the
// Postgres repository; it is safe for concurrent use.
type MemStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*domain.VideoSession

	// Now is the clock used for expiry checks; defaults to time.Now.
	Now func() time.Time

	// FailCreate and FailGet force store errors, for fail-closed tests.
	FailCreate error
	FailGet    error
}

// NewMemStore creates an empty in-memory session store.
func NewMemStore() *MemStore {
	return &MemStore{
		sessions: make(map[uuid.UUID]*domain.VideoSession),
		Now:      time.Now,
	}
}

// Create implements SessionStore with the same evict-oldest semantics as
// the Postgres repository.
func (m *MemStore) Create(ctx context.Context, session *domain.VideoSession, maxActive int) ([]*domain.VideoSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailCreate != nil {
		return nil, m.FailCreate
	}

	var active []*domain.VideoSession
	for _, s := range m.sessions {
		if s.UserID == session.UserID && s.Status == domain.SessionActive && s.ExpiresAt.After(session.CreatedAt) {
			active = append(active, s)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].CreatedAt.Before(active[j].CreatedAt)
	})

	var evicted []*domain.VideoSession
	if excess := len(active) - maxActive + 1; excess > 0 {
		for _, s := range active[:excess] {
			s.Status = domain.SessionTerminated
			evicted = append(evicted, copySession(s))
		}
	}

	m.sessions[session.ID] = copySession(session)
	return evicted, nil
}

// Get implements SessionStore.
func (m *MemStore) Get(ctx context.Context, id uuid.UUID) (*domain.VideoSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailGet != nil {
		return nil, m.FailGet
	}

	s, ok := m.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return copySession(s), nil
}

// ActiveByUser implements SessionStore.
func (m *MemStore) ActiveByUser(ctx context.Context, userID uuid.UUID) ([]*domain.VideoSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.Now()
	var sessions []*domain.VideoSession
	for _, s := range m.sessions {
		if s.UserID == userID && s.IsActive(now) {
			sessions = append(sessions, copySession(s))
		}
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	return sessions, nil
}

// Terminate implements SessionStore.
func (m *MemStore) Terminate(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[id]; ok && s.Status == domain.SessionActive {
		s.Status = domain.SessionTerminated
	}
	return nil
}

// Touch implements SessionStore.
func (m *MemStore) Touch(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[id]; ok && s.Status == domain.SessionActive {
		s.LastAccessAt = m.Now()
	}
	return nil
}

func copySession(s *domain.VideoSession) *domain.VideoSession {
	c := *s
	return &c
}
