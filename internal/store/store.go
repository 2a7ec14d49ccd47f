// Package store persists the user registry and admin roles in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"tokgrab/internal/media"
)

var (
	// ErrUserNotFound is returned when a username has no registry row.
	ErrUserNotFound = errors.New("user not found")
	// ErrAlreadyAdmin is returned by AddAdmin for an existing admin.
	ErrAlreadyAdmin = errors.New("user is already an admin")
	// ErrNotAdmin is returned by RemoveAdmin when the user holds no admin role.
	ErrNotAdmin = errors.New("user is not an admin")
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY,
	username TEXT,
	first_name TEXT,
	last_name TEXT,
	language_code TEXT,
	joined_at TEXT
);
CREATE TABLE IF NOT EXISTS admins (
	user_id INTEGER PRIMARY KEY,
	username TEXT
);
CREATE INDEX IF NOT EXISTS idx_users_username ON users(username);
`

// Store is the SQLite-backed registry. The owner is always an admin
// without needing a row in the admins table.
type Store struct {
	db      *sql.DB
	ownerID int64
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string, ownerID int64) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("creating database dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// SQLite serializes writers; one connection avoids SQLITE_BUSY
	// and keeps :memory: databases shared.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &Store{db: db, ownerID: ownerID}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// UpsertUser records a user. An existing row is left untouched, so the
// first join time wins.
func (s *Store) UpsertUser(ctx context.Context, u media.User) error {
	joined := u.JoinedAt
	if joined.IsZero() {
		joined = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO users (id, username, first_name, last_name, language_code, joined_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, nullString(u.Username), nullString(u.FirstName), nullString(u.LastName),
		nullString(u.LanguageCode), joined.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving user %d: %w", u.ID, err)
	}
	return nil
}

// ListUserIDs returns every registered user id in ascending order.
func (s *Store) ListUserIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListUsers returns every registered user ordered by id.
func (s *Store) ListUsers(ctx context.Context) ([]media.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, first_name, last_name, language_code, joined_at
		FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []media.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// CountUsers returns the number of registered users.
func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return n, nil
}

// FindUserByUsername looks a user up by username, ignoring a leading @.
func (s *Store) FindUserByUsername(ctx context.Context, username string) (media.User, error) {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	if username == "" {
		return media.User{}, ErrUserNotFound
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, username, first_name, last_name, language_code, joined_at
		FROM users WHERE username = ? LIMIT 1`, username)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return media.User{}, ErrUserNotFound
	}
	return u, err
}

// AddAdmin grants the admin role.
func (s *Store) AddAdmin(ctx context.Context, userID int64, username string) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO admins (user_id, username) VALUES (?, ?)`, userID, username)
	if err != nil {
		return fmt.Errorf("adding admin %d: %w", userID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrAlreadyAdmin
	}
	return nil
}

// RemoveAdmin revokes the admin role.
func (s *Store) RemoveAdmin(ctx context.Context, userID int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM admins WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("removing admin %d: %w", userID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotAdmin
	}
	return nil
}

// IsAdmin reports whether userID is the owner or holds the admin role.
func (s *Store) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	if s.IsOwner(userID) {
		return true, nil
	}
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM admins WHERE user_id = ?`, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking admin %d: %w", userID, err)
	}
	return true, nil
}

// IsOwner reports whether userID is the configured owner.
func (s *Store) IsOwner(userID int64) bool {
	return s.ownerID != 0 && userID == s.ownerID
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (media.User, error) {
	var (
		u                                        media.User
		username, first, last, lang, joinedAtRaw sql.NullString
	)
	if err := row.Scan(&u.ID, &username, &first, &last, &lang, &joinedAtRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return media.User{}, err
		}
		return media.User{}, fmt.Errorf("scanning user: %w", err)
	}
	u.Username = username.String
	u.FirstName = first.String
	u.LastName = last.String
	u.LanguageCode = lang.String
	if joinedAtRaw.Valid {
		u.JoinedAt = parseJoined(joinedAtRaw.String)
	}
	return u, nil
}

// joinedLayouts covers RFC 3339 and the zone-less ISO form found in
// databases carried over from earlier deployments.
var joinedLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02 15:04:05"}

// parseJoined returns the zero time for values in no known layout.
func parseJoined(s string) time.Time {
	for _, layout := range joinedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
