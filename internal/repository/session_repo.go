package repository

import (
	"context"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/blake2b"
	"gorm.io/gorm"

	"gamelend/internal/domain"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrDuplicateSession = errors.New("session id already in use")
)

// SessionRepository persists browser sessions. Rows are keyed by a digest of
// the cookie value rather than the value itself. The backend token is stored
// as is, so the table must be protected like any credential store.
type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func HashSessionID(id string) string {
	sum := blake2b.Sum256([]byte(id))
	return hex.EncodeToString(sum[:])
}

func (r *SessionRepository) Create(ctx context.Context, s *domain.Session) error {
	rec := domain.SessionRecord{
		IDHash:    HashSessionID(s.ID),
		Token:     s.Token,
		ViewerID:  s.ViewerID,
		Username:  s.Username,
		ExpiresAt: s.ExpiresAt.UTC(),
	}
	err := r.db.WithContext(ctx).Create(&rec).Error
	if isUniqueViolation(err) {
		return ErrDuplicateSession
	}
	return err
}

// GetByID returns a live session. Expired rows are reported as not found.
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	var rec domain.SessionRecord
	err := r.db.WithContext(ctx).
		Where("id_hash = ? AND expires_at > ?", HashSessionID(id), time.Now().UTC()).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &domain.Session{
		ID:        id,
		Token:     rec.Token,
		ViewerID:  rec.ViewerID,
		Username:  rec.Username,
		ExpiresAt: rec.ExpiresAt,
	}, nil
}

func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Where("id_hash = ?", HashSessionID(id)).
		Delete(&domain.SessionRecord{}).Error
}

func (r *SessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&domain.SessionRecord{})
	return res.RowsAffected, res.Error
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	// sqlite drivers only expose the message
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
