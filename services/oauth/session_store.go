package oauth

import (
	"sync"
	"time"

	"github.com/customeros/mailsetup/interfaces"
	mserrors "github.com/customeros/mailsetup/internal/errors"
	"github.com/customeros/mailsetup/internal/models"
	"github.com/customeros/mailsetup/internal/utils"
)

const DefaultSessionTTL = 10 * time.Minute

// sessionStore keeps in-flight authorization attempts in memory.
// A session is handed out at most once.
type sessionStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[string]*models.OAuthSession
}

func NewSessionStore(ttl time.Duration) interfaces.OAuthSessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &sessionStore{
		ttl:      ttl,
		now:      utils.Now,
		sessions: make(map[string]*models.OAuthSession),
	}
}

func (s *sessionStore) Save(session *models.OAuthSession) {
	if session == nil {
		return
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = s.now()
	}
	if session.ExpiresAt.IsZero() {
		session.ExpiresAt = session.CreatedAt.Add(s.ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
}

func (s *sessionStore) Take(id string) (*models.OAuthSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, mserrors.ErrOAuthSessionNotFound
	}
	delete(s.sessions, id)

	if session.Expired(s.now()) {
		return nil, mserrors.ErrOAuthSessionExpired
	}
	return session, nil
}

func (s *sessionStore) Discard(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

func (s *sessionStore) PurgeExpired(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	purged := 0
	for id, session := range s.sessions {
		if session.Expired(now) {
			delete(s.sessions, id)
			purged++
		}
	}
	return purged
}
