package db

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

type AuthUser struct {
	UserID             int64      `json:"user_id"`
	Username           string     `json:"username"`
	PasswordHash       string     `json:"-"`
	MustChangePassword bool       `json:"must_change_password"`
	CreatedAt          time.Time  `json:"created_at"`
	LastLoginAt        *time.Time `json:"last_login_at,omitempty"`
}

type AuthSession struct {
	SessionID          string    `json:"session_id"`
	UserID             int64     `json:"user_id"`
	Username           string    `json:"username"`
	MustChangePassword bool      `json:"must_change_password"`
	ExpiresAt          time.Time `json:"expires_at"`
	LastSeenAt         time.Time `json:"last_seen_at"`
}

func (p *Pool) CountUsers(ctx context.Context) (int64, error) {
	const q = `SELECT COUNT(*) FROM canon.users`

	var count int64
	if err := p.QueryRow(ctx, q).Scan(&count); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}

func (p *Pool) CreateUser(ctx context.Context, username, passwordHash string, mustChangePassword bool) (*AuthUser, error) {
	const q = `
INSERT INTO canon.users (
	username,
	password_hash,
	must_change_password,
	created_at
)
VALUES (?, ?, ?, now())
RETURNING
	user_id,
	username,
	password_hash,
	must_change_password,
	created_at,
	last_login_at
`

	var row AuthUser
	if err := p.QueryRow(ctx, q, normalizeUsername(username), strings.TrimSpace(passwordHash), mustChangePassword).Scan(
		&row.UserID,
		&row.Username,
		&row.PasswordHash,
		&row.MustChangePassword,
		&row.CreatedAt,
		&row.LastLoginAt,
	); err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	return &row, nil
}

func (p *Pool) GetUserByUsername(ctx context.Context, username string) (*AuthUser, error) {
	const q = `
SELECT
	user_id,
	username,
	password_hash,
	must_change_password,
	created_at,
	last_login_at
FROM canon.users
WHERE username = ?
LIMIT 1
`

	var row AuthUser
	if err := p.QueryRow(ctx, q, normalizeUsername(username)).Scan(
		&row.UserID,
		&row.Username,
		&row.PasswordHash,
		&row.MustChangePassword,
		&row.CreatedAt,
		&row.LastLoginAt,
	); err != nil {
		if IsNoRows(err) {
			return nil, ErrNoRows
		}
		return nil, fmt.Errorf("query user by username: %w", err)
	}
	return &row, nil
}

func (p *Pool) SetUserLastLogin(ctx context.Context, userID int64, loginAt time.Time) error {
	const q = `
UPDATE canon.users
SET last_login_at = ?
WHERE user_id = ?
`

	affected, err := p.Exec(ctx, q, loginAt.UTC(), userID)
	if err != nil {
		return fmt.Errorf("update user last login: %w", err)
	}
	if affected == 0 {
		return ErrNoRows
	}
	return nil
}

func (p *Pool) CreateSession(ctx context.Context, userID int64, expiresAt, now time.Time) (string, error) {
	sessionID, err := newSessionID()
	if err != nil {
		return "", err
	}

	const q = `
INSERT INTO canon.sessions (
	session_id,
	user_id,
	expires_at,
	created_at,
	last_seen_at
)
VALUES (?, ?, ?, ?, ?)
`

	if _, err := p.Exec(ctx, q, sessionID, userID, expiresAt.UTC(), now.UTC(), now.UTC()); err != nil {
		return "", fmt.Errorf("insert session: %w", err)
	}
	return sessionID, nil
}

func (p *Pool) GetSession(ctx context.Context, sessionID string) (*AuthSession, error) {
	const q = `
SELECT
	s.session_id,
	s.user_id,
	u.username,
	u.must_change_password,
	s.expires_at,
	s.last_seen_at
FROM canon.sessions s
JOIN canon.users u
	ON u.user_id = s.user_id
WHERE s.session_id = ?
LIMIT 1
`

	var row AuthSession
	if err := p.QueryRow(ctx, q, strings.TrimSpace(sessionID)).Scan(
		&row.SessionID,
		&row.UserID,
		&row.Username,
		&row.MustChangePassword,
		&row.ExpiresAt,
		&row.LastSeenAt,
	); err != nil {
		if IsNoRows(err) {
			return nil, ErrNoRows
		}
		return nil, fmt.Errorf("query session: %w", err)
	}
	return &row, nil
}

func (p *Pool) TouchSession(ctx context.Context, sessionID string, seenAt time.Time) error {
	const q = `
UPDATE canon.sessions
SET last_seen_at = ?
WHERE session_id = ?
`

	affected, err := p.Exec(ctx, q, seenAt.UTC(), strings.TrimSpace(sessionID))
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	if affected == 0 {
		return ErrNoRows
	}
	return nil
}

func (p *Pool) DeleteSession(ctx context.Context, sessionID string) error {
	const q = `
DELETE FROM canon.sessions
WHERE session_id = ?
`

	if _, err := p.Exec(ctx, q, strings.TrimSpace(sessionID)); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (p *Pool) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	const q = `
DELETE FROM canon.sessions
WHERE expires_at <= ?
`

	affected, err := p.Exec(ctx, q, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return affected, nil
}

func newSessionID() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func normalizeUsername(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
