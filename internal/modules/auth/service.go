package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gamelend/internal/domain"
	"gamelend/internal/pkg/jwt"
	"gamelend/internal/repository"
)

type TokenParser interface {
	ValidateToken(token string) (*jwt.Claims, error)
}

type SessionRepository interface {
	Create(ctx context.Context, s *domain.Session) error
	Delete(ctx context.Context, id string) error
}

// ViewDropper forgets per-session view state (lifecycle.Views).
type ViewDropper interface {
	Drop(sessionID string)
}

// FeedCloser ends live connections of a session (live.Hub).
type FeedCloser interface {
	CloseSession(sessionID string) int
}

// Service owns the explicit session lifecycle: a backend token handed over
// at login becomes a server-side session, and logout clears it everywhere.
type Service struct {
	sessions SessionRepository
	tokens   TokenParser
	views    ViewDropper
	feeds    FeedCloser
	ttl      time.Duration
	log      *zap.SugaredLogger
	now      func() time.Time
	newID    func() string
}

func NewService(sessions SessionRepository, tokens TokenParser, views ViewDropper, feeds FeedCloser, ttl time.Duration, log *zap.SugaredLogger) *Service {
	return &Service{
		sessions: sessions,
		tokens:   tokens,
		views:    views,
		feeds:    feeds,
		ttl:      ttl,
		log:      log,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// InitSession stores a session for the given backend token. The session
// never outlives the token.
func (s *Service) InitSession(ctx context.Context, token string) (*domain.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrTokenRequired
	}
	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		return nil, ErrInvalidToken
	}

	expires := s.now().Add(s.ttl)
	if exp := claims.Expiry(); !exp.IsZero() && exp.Before(expires) {
		expires = exp
	}

	sess := &domain.Session{
		Token:     token,
		ViewerID:  claims.UserID,
		Username:  claims.Username,
		ExpiresAt: expires,
	}
	for attempt := 0; attempt < 2; attempt++ {
		sess.ID = s.newID()
		err = s.sessions.Create(ctx, sess)
		if !errors.Is(err, repository.ErrDuplicateSession) {
			break
		}
	}
	if err != nil {
		return nil, err
	}

	s.log.Infow("session started", "viewer_id", sess.ViewerID, "expires_at", sess.ExpiresAt)
	return sess, nil
}

// ClearSession removes the stored session, drops its view and closes its
// live feeds. Credentials on sess are wiped so later calls fail fast.
func (s *Service) ClearSession(ctx context.Context, sess *domain.Session) error {
	if sess == nil {
		return nil
	}
	id, viewerID := sess.ID, sess.ViewerID

	err := s.sessions.Delete(ctx, id)
	s.views.Drop(id)
	closed := s.feeds.CloseSession(id)
	sess.Clear()

	s.log.Infow("session cleared", "viewer_id", viewerID, "feeds_closed", closed)
	return err
}
