package store

import (
	"database/sql"
	"fmt"
	"time"

	"finch-forex-backend/internal/db"
)

// DatabaseStore persists session credentials in PostgreSQL so a session
// survives server restarts.
type DatabaseStore struct {
	db *db.DB
}

func NewDatabaseStore(database *db.DB) *DatabaseStore {
	return &DatabaseStore{db: database}
}

// SessionAuth is one session's platform credential.
type SessionAuth struct {
	SessionID   string
	AccessToken string
	AccountID   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SaveSessionAuth inserts or refreshes the credential for a session.
func (ds *DatabaseStore) SaveSessionAuth(sessionID, accessToken, accountID string) error {
	if sessionID == "" || accessToken == "" {
		return fmt.Errorf("session_id and access_token are required")
	}

	query := `
		INSERT INTO session_auth (session_id, access_token, account_id, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (session_id)
		DO UPDATE SET
			access_token = EXCLUDED.access_token,
			account_id = EXCLUDED.account_id,
			updated_at = NOW()
	`
	if _, err := ds.db.Exec(query, sessionID, accessToken, accountID); err != nil {
		return fmt.Errorf("failed to save session auth: %w", err)
	}
	return nil
}

// GetSessionAuth returns the stored credential, or nil when none exists.
func (ds *DatabaseStore) GetSessionAuth(sessionID string) (*SessionAuth, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session_id is required")
	}

	var auth SessionAuth
	query := `
		SELECT session_id, access_token, account_id, created_at, updated_at
		FROM session_auth
		WHERE session_id = $1
	`
	err := ds.db.QueryRow(query, sessionID).Scan(
		&auth.SessionID,
		&auth.AccessToken,
		&auth.AccountID,
		&auth.CreatedAt,
		&auth.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session auth: %w", err)
	}
	return &auth, nil
}

// DeleteSessionAuth removes the credential, used on session expiry.
func (ds *DatabaseStore) DeleteSessionAuth(sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session_id is required")
	}
	if _, err := ds.db.Exec(`DELETE FROM session_auth WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("failed to delete session auth: %w", err)
	}
	return nil
}
