package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
	sqlite "modernc.org/sqlite"
)

const (
	sqliteConstraintCode = 19
	defaultBusyTimeout   = 5000
)

// Store wraps the SQLite handle backing the client's local registries: the
// identities it has chatted as, and the rooms it has joined.
type Store struct {
	db *sql.DB
}

// Identity is a locally saved (user id, display name) pair.
type Identity struct {
	UserID      string
	DisplayName string
	CreatedAt   time.Time
	LastUsedAt  time.Time
}

// RoomVisit records a room the client has joined.
type RoomVisit struct {
	RoomID       string
	LastJoinedAt time.Time
}

// ErrIdentityExists is returned when attempting to insert a duplicate user id.
var ErrIdentityExists = errors.New("identity already exists")

// NewStore initializes the SQLite database at the provided path. Call Close when done.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "livechat.db"
	}
	dsn := buildDSN(path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", defaultBusyTimeout)); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying DB connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func buildDSN(path string) string {
	switch {
	case strings.HasPrefix(path, "sqlite://"):
		path = path[len("sqlite://"):]
	case strings.HasPrefix(path, "file:"), strings.HasPrefix(path, ":memory:"):
		// already in a form sqlite understands
	default:
		path = "file:" + path
	}
	separator := "?"
	if strings.Contains(path, "?") {
		separator = "&"
	}
	return fmt.Sprintf("%s%s_pragma=busy_timeout=%d&_pragma=foreign_keys=ON", path, separator, defaultBusyTimeout)
}

// Migrate runs the schema creation statements.
func (s *Store) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS identities (
			user_id TEXT PRIMARY KEY,
			display_name TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			last_used_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS rooms (
			room_id TEXT PRIMARY KEY,
			last_joined_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	for _, stmt := range statements {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// CreateIdentity inserts a new identity. ErrIdentityExists is returned on conflicts.
func (s *Store) CreateIdentity(ctx context.Context, userID, displayName string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO identities(user_id, display_name) VALUES(?, ?)`, userID, displayName)
	if err != nil {
		if isConstraintError(err) {
			return ErrIdentityExists
		}
		return err
	}
	return nil
}

// GetIdentity fetches an identity by user id. Returns nil when unknown.
func (s *Store) GetIdentity(ctx context.Context, userID string) (*Identity, error) {
	row := s.db.QueryRowContext(ctx, `SELECT user_id, display_name, created_at, last_used_at FROM identities WHERE user_id = ?`, userID)
	var identity Identity
	if err := row.Scan(&identity.UserID, &identity.DisplayName, &identity.CreatedAt, &identity.LastUsedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &identity, nil
}

// DefaultIdentity returns the most recently used identity, or nil when the
// store has none.
func (s *Store) DefaultIdentity(ctx context.Context) (*Identity, error) {
	row := s.db.QueryRowContext(ctx, `SELECT user_id, display_name, created_at, last_used_at FROM identities ORDER BY last_used_at DESC LIMIT 1`)
	var identity Identity
	if err := row.Scan(&identity.UserID, &identity.DisplayName, &identity.CreatedAt, &identity.LastUsedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &identity, nil
}

// TouchIdentity marks an identity as just used and updates its display name.
func (s *Store) TouchIdentity(ctx context.Context, userID, displayName string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO identities(user_id, display_name, last_used_at) VALUES(?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id) DO UPDATE SET display_name = excluded.display_name, last_used_at = CURRENT_TIMESTAMP
	`, userID, displayName)
	return err
}

// ListIdentities returns all saved identities, most recently used first.
func (s *Store) ListIdentities(ctx context.Context) ([]Identity, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id, display_name, created_at, last_used_at FROM identities ORDER BY last_used_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var identities []Identity
	for rows.Next() {
		var identity Identity
		if err := rows.Scan(&identity.UserID, &identity.DisplayName, &identity.CreatedAt, &identity.LastUsedAt); err != nil {
			return nil, err
		}
		identities = append(identities, identity)
	}
	return identities, rows.Err()
}

// DeleteIdentity removes a saved identity.
func (s *Store) DeleteIdentity(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM identities WHERE user_id = ?`, userID)
	return err
}

// TouchRoom records that the client just joined a room.
func (s *Store) TouchRoom(ctx context.Context, roomID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rooms(room_id, last_joined_at) VALUES(?, CURRENT_TIMESTAMP)
		ON CONFLICT(room_id) DO UPDATE SET last_joined_at = CURRENT_TIMESTAMP
	`, roomID)
	return err
}

// ListRooms returns the rooms the client has joined, most recent first.
func (s *Store) ListRooms(ctx context.Context) ([]RoomVisit, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT room_id, last_joined_at FROM rooms ORDER BY last_joined_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var visits []RoomVisit
	for rows.Next() {
		var visit RoomVisit
		if err := rows.Scan(&visit.RoomID, &visit.LastJoinedAt); err != nil {
			return nil, err
		}
		visits = append(visits, visit)
	}
	return visits, rows.Err()
}

// ForgetRoom removes a room from the registry.
func (s *Store) ForgetRoom(ctx context.Context, roomID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM rooms WHERE room_id = ?`, roomID)
	return err
}

func isConstraintError(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code() == sqliteConstraintCode
	}
	return false
}
