package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"horse.fit/canon/internal/auth"
	"horse.fit/canon/internal/db"
	"horse.fit/canon/internal/globaltime"
	"horse.fit/canon/internal/site"
)

type fakeAuthStore struct {
	sessions           map[string]*db.AuthSession
	usersByUsername    map[string]*db.AuthUser
	createSessionID    string
	createSessionCalls int
	deleteSessionCalls []string
	touchSessionCalls  int
	setLastLoginCalls  int
	deleteExpiredCalls int
}

func newFakeAuthStore() *fakeAuthStore {
	return &fakeAuthStore{
		sessions:        map[string]*db.AuthSession{},
		usersByUsername: map[string]*db.AuthUser{},
	}
}

func (s *fakeAuthStore) GetSession(_ context.Context, sessionID string) (*db.AuthSession, error) {
	row, exists := s.sessions[sessionID]
	if !exists {
		return nil, db.ErrNoRows
	}
	copyRow := *row
	return &copyRow, nil
}

func (s *fakeAuthStore) DeleteSession(_ context.Context, sessionID string) error {
	s.deleteSessionCalls = append(s.deleteSessionCalls, sessionID)
	delete(s.sessions, sessionID)
	return nil
}

func (s *fakeAuthStore) TouchSession(_ context.Context, sessionID string, seenAt time.Time) error {
	s.touchSessionCalls++
	row, exists := s.sessions[sessionID]
	if !exists {
		return db.ErrNoRows
	}
	row.LastSeenAt = seenAt
	return nil
}

func (s *fakeAuthStore) GetUserByUsername(_ context.Context, username string) (*db.AuthUser, error) {
	row, exists := s.usersByUsername[strings.TrimSpace(strings.ToLower(username))]
	if !exists {
		return nil, db.ErrNoRows
	}
	copyRow := *row
	return &copyRow, nil
}

func (s *fakeAuthStore) CreateSession(_ context.Context, userID int64, expiresAt, now time.Time) (string, error) {
	s.createSessionCalls++
	sessionID := s.createSessionID
	if sessionID == "" {
		sessionID = testSessionID
	}
	s.sessions[sessionID] = &db.AuthSession{
		SessionID:  sessionID,
		UserID:     userID,
		Username:   "admin",
		ExpiresAt:  expiresAt,
		LastSeenAt: now,
	}
	return sessionID, nil
}

func (s *fakeAuthStore) SetUserLastLogin(_ context.Context, userID int64, loginAt time.Time) error {
	s.setLastLoginCalls++
	return nil
}

func (s *fakeAuthStore) DeleteExpiredSessions(_ context.Context, now time.Time) (int64, error) {
	s.deleteExpiredCalls++
	removed := int64(0)
	for id, row := range s.sessions {
		if !row.ExpiresAt.After(now) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed, nil
}

func newAuthServer(t *testing.T, store authStore) (*Server, *echo.Echo) {
	t.Helper()

	s := &Server{
		snap:      site.Defaults(),
		logger:    zerolog.Nop(),
		authStore: store,
		opts: Options{
			SessionTTL:    time.Hour,
			SessionCookie: "canon_session",
		},
	}
	s.installEngine(&stubResolver{}, &stubResolver{})

	e := echo.New()
	e.HTTPErrorHandler = s.httpErrorHandler
	s.registerRoutes(e)
	return s, e
}

func seedUser(t *testing.T, store *fakeAuthStore, username, password string) *db.AuthUser {
	t.Helper()

	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user := &db.AuthUser{
		UserID:       1,
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    globaltime.UTC(),
	}
	store.usersByUsername[username] = user
	return user
}

func postLogin(t *testing.T, e *echo.Echo, username, password string) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		t.Fatalf("marshal login payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestLoginSetsSessionCookie(t *testing.T) {
	t.Parallel()

	store := newFakeAuthStore()
	seedUser(t, store, "admin", "correct horse")
	_, e := newAuthServer(t, store)

	rec := postLogin(t, e, "admin", "correct horse")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if store.createSessionCalls != 1 {
		t.Fatalf("expected one session, got %d", store.createSessionCalls)
	}

	var sessionCookie *http.Cookie
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == "canon_session" {
			sessionCookie = cookie
		}
	}
	if sessionCookie == nil {
		t.Fatal("expected session cookie to be set")
	}
	if sessionCookie.Value != testSessionID {
		t.Fatalf("unexpected session cookie value %q", sessionCookie.Value)
	}
	if !sessionCookie.HttpOnly {
		t.Fatal("session cookie must be http-only")
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	t.Parallel()

	store := newFakeAuthStore()
	seedUser(t, store, "admin", "correct horse")
	_, e := newAuthServer(t, store)

	rec := postLogin(t, e, "admin", "wrong horse")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if store.createSessionCalls != 0 {
		t.Fatalf("expected no session, got %d", store.createSessionCalls)
	}
}

func TestLoginRejectsUnknownUser(t *testing.T) {
	t.Parallel()

	store := newFakeAuthStore()
	_, e := newAuthServer(t, store)

	rec := postLogin(t, e, "nobody", "whatever")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestMeRequiresSession(t *testing.T) {
	t.Parallel()

	store := newFakeAuthStore()
	_, e := newAuthServer(t, store)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestMeReturnsPrincipalForValidSession(t *testing.T) {
	t.Parallel()

	store := newFakeAuthStore()
	store.sessions[testSessionID] = &db.AuthSession{
		SessionID:  testSessionID,
		UserID:     7,
		Username:   "admin",
		ExpiresAt:  globaltime.UTC().Add(time.Hour),
		LastSeenAt: globaltime.UTC(),
	}
	_, e := newAuthServer(t, store)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: "canon_session", Value: testSessionID})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Data struct {
			User struct {
				UserID   int64  `json:"user_id"`
				Username string `json:"username"`
			} `json:"user"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Data.User.UserID != 7 || body.Data.User.Username != "admin" {
		t.Fatalf("unexpected principal: %+v", body.Data.User)
	}
}

func TestExpiredSessionIsRejectedAndDeleted(t *testing.T) {
	t.Parallel()

	store := newFakeAuthStore()
	store.sessions[testSessionID] = &db.AuthSession{
		SessionID:  testSessionID,
		UserID:     7,
		Username:   "admin",
		ExpiresAt:  globaltime.UTC().Add(-time.Minute),
		LastSeenAt: globaltime.UTC().Add(-2 * time.Hour),
	}
	_, e := newAuthServer(t, store)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: "canon_session", Value: testSessionID})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if len(store.deleteSessionCalls) != 1 {
		t.Fatalf("expected expired session to be deleted, got %v", store.deleteSessionCalls)
	}
}

func TestLogoutDeletesSession(t *testing.T) {
	t.Parallel()

	store := newFakeAuthStore()
	store.sessions[testSessionID] = &db.AuthSession{
		SessionID:  testSessionID,
		UserID:     7,
		Username:   "admin",
		ExpiresAt:  globaltime.UTC().Add(time.Hour),
		LastSeenAt: globaltime.UTC(),
	}
	_, e := newAuthServer(t, store)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: "canon_session", Value: testSessionID})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(store.deleteSessionCalls) != 1 {
		t.Fatalf("expected session delete, got %v", store.deleteSessionCalls)
	}
	if _, exists := store.sessions[testSessionID]; exists {
		t.Fatal("expected session to be removed")
	}
}
