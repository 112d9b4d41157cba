package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"gamelend/internal/database"
	"gamelend/internal/domain"
	"gamelend/internal/middleware"
	"gamelend/internal/pkg/jwt"
	"gamelend/internal/pkg/logger"
	"gamelend/internal/repository"
)

type mockSessionRepo struct {
	mock.Mock
}

func (m *mockSessionRepo) Create(ctx context.Context, s *domain.Session) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *mockSessionRepo) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockViews struct {
	mock.Mock
}

func (m *mockViews) Drop(sessionID string) {
	m.Called(sessionID)
}

type mockFeeds struct {
	mock.Mock
}

func (m *mockFeeds) CloseSession(sessionID string) int {
	args := m.Called(sessionID)
	return args.Int(0)
}

func newTestService(repo SessionRepository, tokens TokenParser) (*Service, *mockViews, *mockFeeds) {
	views := new(mockViews)
	feeds := new(mockFeeds)
	return NewService(repo, tokens, views, feeds, time.Hour, logger.Nop()), views, feeds
}

func TestInitSession_Success(t *testing.T) {
	tokens := jwt.New("secret", 30*time.Minute)
	token, err := tokens.GenerateToken(42, "alice")
	require.NoError(t, err)

	repo := new(mockSessionRepo)
	repo.On("Create", mock.Anything, mock.MatchedBy(func(s *domain.Session) bool {
		return s.ViewerID == 42 && s.Token == token && s.ID != ""
	})).Return(nil)

	svc, _, _ := newTestService(repo, tokens)
	sess, err := svc.InitSession(context.Background(), "  "+token+" ")

	require.NoError(t, err)
	assert.Equal(t, int64(42), sess.ViewerID)
	assert.Equal(t, "alice", sess.Username)
	// capped by the token expiry, not the session ttl
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), sess.ExpiresAt, 5*time.Second)
	repo.AssertExpectations(t)
}

func TestInitSession_EmptyToken(t *testing.T) {
	repo := new(mockSessionRepo)
	svc, _, _ := newTestService(repo, jwt.New("", time.Hour))

	_, err := svc.InitSession(context.Background(), "   ")

	assert.ErrorIs(t, err, ErrTokenRequired)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestInitSession_InvalidToken(t *testing.T) {
	repo := new(mockSessionRepo)
	svc, _, _ := newTestService(repo, jwt.New("secret", time.Hour))

	_, err := svc.InitSession(context.Background(), "not-a-jwt")

	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestInitSession_RetriesDuplicateID(t *testing.T) {
	tokens := jwt.New("", time.Hour)
	token, _ := tokens.GenerateToken(7, "bob")

	repo := new(mockSessionRepo)
	repo.On("Create", mock.Anything, mock.Anything).Return(repository.ErrDuplicateSession).Once()
	repo.On("Create", mock.Anything, mock.Anything).Return(nil).Once()

	svc, _, _ := newTestService(repo, tokens)
	ids := []string{"dup", "fresh"}
	svc.newID = func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}

	sess, err := svc.InitSession(context.Background(), token)

	require.NoError(t, err)
	assert.Equal(t, "fresh", sess.ID)
	repo.AssertNumberOfCalls(t, "Create", 2)
}

func TestClearSession_DropsEverything(t *testing.T) {
	repo := new(mockSessionRepo)
	repo.On("Delete", mock.Anything, "s1").Return(nil)
	svc, views, feeds := newTestService(repo, jwt.New("", time.Hour))
	views.On("Drop", "s1").Return()
	feeds.On("CloseSession", "s1").Return(2)

	sess := &domain.Session{ID: "s1", Token: "tok", ViewerID: 5}
	require.NoError(t, svc.ClearSession(context.Background(), sess))

	assert.False(t, sess.Authenticated())
	repo.AssertExpectations(t)
	views.AssertExpectations(t)
	feeds.AssertExpectations(t)
}

func TestClearSession_StoreErrorStillDetaches(t *testing.T) {
	repo := new(mockSessionRepo)
	repo.On("Delete", mock.Anything, "s1").Return(errors.New("db down"))
	svc, views, feeds := newTestService(repo, jwt.New("", time.Hour))
	views.On("Drop", "s1").Return()
	feeds.On("CloseSession", "s1").Return(0)

	err := svc.ClearSession(context.Background(), &domain.Session{ID: "s1", Token: "tok", ViewerID: 5})

	assert.Error(t, err)
	views.AssertExpectations(t)
}

type noopViews struct{}

func (noopViews) Drop(string) {}

type noopFeeds struct{}

func (noopFeeds) CloseSession(string) int { return 0 }

func TestSessionFlow_CookieRoundTrip(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db, err := database.Connect("file:auth_flow?mode=memory&cache=shared", logger.Nop())
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	tokens := jwt.New("", time.Hour)
	sessions := repository.NewSessionRepository(db)
	svc := NewService(sessions, tokens, noopViews{}, noopFeeds{}, time.Hour, logger.Nop())
	h := NewHandler(svc, CookieConfig{Name: "gl_session"})

	router := gin.New()
	v1 := router.Group("/api/v1")
	h.RegisterPublicRoutes(v1)
	protected := v1.Group("")
	protected.Use(middleware.SessionAuth(sessions, tokens, "gl_session"))
	h.RegisterProtectedRoutes(protected)

	token, _ := tokens.GenerateToken(42, "alice")
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/session", strings.NewReader(`{"token":"`+token+`"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	cookie := cookies[0]
	assert.True(t, cookie.HttpOnly)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.AddCookie(cookie)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var me struct {
		Data SessionResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &me))
	assert.Equal(t, int64(42), me.Data.Viewer.ID)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodDelete, "/api/v1/auth/session", nil)
	req.AddCookie(cookie)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.AddCookie(cookie)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestInitSessionHandler_MissingToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc, _, _ := newTestService(new(mockSessionRepo), jwt.New("", time.Hour))
	router := gin.New()
	NewHandler(svc, CookieConfig{Name: "gl_session"}).RegisterPublicRoutes(router.Group("/api/v1"))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/session", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "VALIDATION_ERROR")
}
