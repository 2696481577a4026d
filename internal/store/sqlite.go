package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore is the persistent backend. It implements the same contract as
// MemoryStore so handlers never know which one they talk to.
type SQLiteStore struct {
	db           *sql.DB
	retentionCap int
	now          func() time.Time
}

func NewSQLiteStore(dataSourceName string, retentionCap int) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent and matches
	// SQLite's single-writer model.
	db.SetMaxOpenConns(1)
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db, retentionCap: normalizeCap(retentionCap), now: time.Now}
	if err = store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS users (
        id TEXT PRIMARY KEY, -- email
        email TEXT NOT NULL,
        name TEXT NOT NULL DEFAULT '',
        picture TEXT NOT NULL DEFAULT '',
        created_at DATETIME NOT NULL,
        last_login DATETIME NOT NULL,
        settings_json TEXT
    );

    CREATE TABLE IF NOT EXISTS turns (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        user_id TEXT NOT NULL,
        chat_id TEXT NOT NULL,
        role TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
        content TEXT NOT NULL,
        persona TEXT NOT NULL DEFAULT '',
        timestamp DATETIME NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_turns_conversation ON turns (user_id, chat_id, id);

    CREATE TABLE IF NOT EXISTS user_files (
        user_id TEXT PRIMARY KEY,
        content TEXT NOT NULL DEFAULT ''
    );

    CREATE TABLE IF NOT EXISTS settings (
        user_id TEXT PRIMARY KEY,
        settings_json TEXT NOT NULL
    );

    CREATE TABLE IF NOT EXISTS notifications (
        id TEXT PRIMARY KEY, -- UUID
        user_id TEXT NOT NULL,
        type TEXT NOT NULL,
        title TEXT NOT NULL,
        message TEXT NOT NULL,
        data_json TEXT,
        timestamp DATETIME NOT NULL,
        read BOOLEAN NOT NULL DEFAULT FALSE
    );
    CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications (user_id);

    CREATE TABLE IF NOT EXISTS study_groups (
        id TEXT PRIMARY KEY,
        name TEXT NOT NULL,
        owner_id TEXT NOT NULL DEFAULT '',
        created_at DATETIME NOT NULL
    );

    CREATE TABLE IF NOT EXISTS group_members (
        group_id TEXT NOT NULL,
        user_id TEXT NOT NULL,
        PRIMARY KEY (group_id, user_id),
        FOREIGN KEY (group_id) REFERENCES study_groups (id)
    );
    `
	_, err := s.db.Exec(schema)
	return err
}

// User methods
func (s *SQLiteStore) UpsertUser(ctx context.Context, u User) (*User, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin user upsert: %w", err)
	}
	defer tx.Rollback()

	now := s.now().UTC()
	var createdAt time.Time
	var settingsJSON sql.NullString
	err = tx.QueryRowContext(ctx, "SELECT created_at, settings_json FROM users WHERE id = ?", u.ID).Scan(&createdAt, &settingsJSON)
	switch {
	case err == sql.ErrNoRows:
		u.CreatedAt = now
		saved, err := loadSettingsTx(ctx, tx, u.ID)
		if err != nil {
			return nil, err
		}
		if saved != nil {
			u.Settings = saved
		} else {
			u.Settings = DefaultSettings()
		}
	case err != nil:
		return nil, fmt.Errorf("failed to query user: %w", err)
	default:
		u.CreatedAt = createdAt
		u.Settings, err = decodeSettings(settingsJSON.String)
		if err != nil {
			return nil, err
		}
		if u.Settings == nil {
			u.Settings = DefaultSettings()
		}
	}
	u.LastLogin = now

	encoded, err := json.Marshal(u.Settings)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal settings: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
        INSERT INTO users (id, email, name, picture, created_at, last_login, settings_json)
        VALUES (?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            email = excluded.email,
            name = excluded.name,
            picture = excluded.picture,
            last_login = excluded.last_login`,
		u.ID, u.Email, u.Name, u.Picture, u.CreatedAt, u.LastLogin, string(encoded))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}
	if _, err = tx.ExecContext(ctx, "INSERT OR IGNORE INTO settings (user_id, settings_json) VALUES (?, ?)", u.ID, string(encoded)); err != nil {
		return nil, fmt.Errorf("failed to initialize settings: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit user upsert: %w", err)
	}
	return &u, nil
}

func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx, "SELECT id, email, name, picture, created_at, last_login, settings_json FROM users WHERE id = ?", id)
	user, err := scanUser(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // User not found
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return user, nil
}

func (s *SQLiteStore) SearchUsers(ctx context.Context, query string, limit int) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, email, name, picture, created_at, last_login, settings_json FROM users ORDER BY rowid ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	limit = normalizeLimit(limit)
	q := strings.ToLower(query)
	var users []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		if matchesUser(*user, q) {
			users = append(users, *user)
			if len(users) == limit {
				break
			}
		}
	}
	return users, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*User, error) {
	var user User
	var settingsJSON sql.NullString
	if err := row.Scan(&user.ID, &user.Email, &user.Name, &user.Picture, &user.CreatedAt, &user.LastLogin, &settingsJSON); err != nil {
		return nil, err
	}
	settings, err := decodeSettings(settingsJSON.String)
	if err != nil {
		return nil, err
	}
	user.Settings = settings
	return &user, nil
}

// Conversation methods
func (s *SQLiteStore) AppendTurns(ctx context.Context, userID, chatID string, turns ...Turn) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin turn append: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO turns (user_id, chat_id, role, content, persona, timestamp) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare turn insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range turns {
		ts := t.Timestamp
		if ts.IsZero() {
			ts = s.now()
		}
		if _, err := stmt.ExecContext(ctx, userID, chatID, t.Role, t.Content, t.Persona, ts.UTC()); err != nil {
			return fmt.Errorf("failed to execute turn insert: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
        DELETE FROM turns
        WHERE user_id = ? AND chat_id = ? AND id NOT IN (
            SELECT id FROM turns WHERE user_id = ? AND chat_id = ? ORDER BY id DESC LIMIT ?
        )`, userID, chatID, userID, chatID, s.retentionCap)
	if err != nil {
		return fmt.Errorf("failed to trim conversation: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) ListTurns(ctx context.Context, userID, chatID string) ([]Turn, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT role, content, persona, timestamp FROM turns WHERE user_id = ? AND chat_id = ? ORDER BY id ASC", userID, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer rows.Close()

	turns := []Turn{}
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.Role, &t.Content, &t.Persona, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan turn row: %w", err)
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// File methods
func (s *SQLiteStore) AppendFileText(ctx context.Context, userID, block string) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO user_files (user_id, content) VALUES (?, ?)
        ON CONFLICT(user_id) DO UPDATE SET content = user_files.content || excluded.content`, userID, block)
	if err != nil {
		return fmt.Errorf("failed to append file text: %w", err)
	}
	return nil
}

func (s *SQLiteStore) FileText(ctx context.Context, userID string) (string, error) {
	var content string
	err := s.db.QueryRowContext(ctx, "SELECT content FROM user_files WHERE user_id = ?", userID).Scan(&content)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("failed to query file text: %w", err)
	}
	return content, nil
}

// Settings methods
func (s *SQLiteStore) GetSettings(ctx context.Context, userID string) (Settings, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, "SELECT settings_json FROM settings WHERE user_id = ?", userID).Scan(&raw)
	if err != nil {
		if err == sql.ErrNoRows {
			return DefaultSettings(), nil
		}
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	return decodeSettings(raw)
}

func (s *SQLiteStore) MergeSettings(ctx context.Context, userID string, patch Settings) (Settings, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin settings merge: %w", err)
	}
	defer tx.Rollback()

	base, err := loadSettingsTx(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if base == nil {
		base = DefaultSettings()
	}
	merged := base.Merge(patch)
	merged["updatedAt"] = s.now().UTC().Format(time.RFC3339Nano)

	encoded, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal settings: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
        INSERT INTO settings (user_id, settings_json) VALUES (?, ?)
        ON CONFLICT(user_id) DO UPDATE SET settings_json = excluded.settings_json`, userID, string(encoded))
	if err != nil {
		return nil, fmt.Errorf("failed to save settings: %w", err)
	}
	if _, err = tx.ExecContext(ctx, "UPDATE users SET settings_json = ? WHERE id = ?", string(encoded), userID); err != nil {
		return nil, fmt.Errorf("failed to mirror settings into user: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit settings merge: %w", err)
	}
	// Round-trip through JSON so both backends hand back the same value types.
	return decodeSettings(string(encoded))
}

func loadSettingsTx(ctx context.Context, tx *sql.Tx, userID string) (Settings, error) {
	var raw string
	err := tx.QueryRowContext(ctx, "SELECT settings_json FROM settings WHERE user_id = ?", userID).Scan(&raw)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	return decodeSettings(raw)
}

func decodeSettings(raw string) (Settings, error) {
	if raw == "" {
		return nil, nil
	}
	var settings Settings
	if err := json.Unmarshal([]byte(raw), &settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
	}
	return settings, nil
}

// Notification methods
func (s *SQLiteStore) AddNotification(ctx context.Context, userID string, n Notification) error {
	dataJSON, err := json.Marshal(n.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal notification data: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO notifications (id, user_id, type, title, message, data_json, timestamp, read) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		n.ID, userID, n.Type, n.Title, n.Message, string(dataJSON), n.Timestamp.UTC(), n.Read)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListNotifications(ctx context.Context, userID string) ([]Notification, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, type, title, message, data_json, timestamp, read FROM notifications WHERE user_id = ? ORDER BY timestamp DESC, rowid ASC", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	notifications := []Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification row: %w", err)
		}
		notifications = append(notifications, *n)
	}
	return notifications, rows.Err()
}

func (s *SQLiteStore) GetNotification(ctx context.Context, userID, id string) (*Notification, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, type, title, message, data_json, timestamp, read FROM notifications WHERE user_id = ? AND id = ?", userID, id)
	n, err := scanNotification(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) MarkNotificationRead(ctx context.Context, userID, id string) (*Notification, error) {
	res, err := s.db.ExecContext(ctx, "UPDATE notifications SET read = TRUE WHERE user_id = ? AND id = ?", userID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to mark notification read: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return nil, nil
	}
	return s.GetNotification(ctx, userID, id)
}

func scanNotification(row rowScanner) (*Notification, error) {
	var n Notification
	var dataJSON sql.NullString
	if err := row.Scan(&n.ID, &n.Type, &n.Title, &n.Message, &dataJSON, &n.Timestamp, &n.Read); err != nil {
		return nil, err
	}
	if dataJSON.Valid && dataJSON.String != "" && dataJSON.String != "null" {
		if err := json.Unmarshal([]byte(dataJSON.String), &n.Data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal notification data: %w", err)
		}
	}
	return &n, nil
}

// Group methods
func (s *SQLiteStore) CreateGroup(ctx context.Context, g Group) (*Group, error) {
	if g.CreatedAt.IsZero() {
		g.CreatedAt = s.now()
	}
	g.CreatedAt = g.CreatedAt.UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin group insert: %w", err)
	}
	defer tx.Rollback()

	if _, err = tx.ExecContext(ctx, "INSERT INTO study_groups (id, name, owner_id, created_at) VALUES (?, ?, ?, ?)", g.ID, g.Name, g.OwnerID, g.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to insert group: %w", err)
	}
	for _, m := range g.Members {
		if _, err = tx.ExecContext(ctx, "INSERT OR IGNORE INTO group_members (group_id, user_id) VALUES (?, ?)", g.ID, m); err != nil {
			return nil, fmt.Errorf("failed to insert group member: %w", err)
		}
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit group insert: %w", err)
	}
	return s.GetGroup(ctx, g.ID)
}

func (s *SQLiteStore) GetGroup(ctx context.Context, id string) (*Group, error) {
	var g Group
	err := s.db.QueryRowContext(ctx, "SELECT id, name, owner_id, created_at FROM study_groups WHERE id = ?", id).Scan(&g.ID, &g.Name, &g.OwnerID, &g.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get group: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT user_id FROM group_members WHERE group_id = ? ORDER BY rowid ASC", id)
	if err != nil {
		return nil, fmt.Errorf("failed to query group members: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var member string
		if err := rows.Scan(&member); err != nil {
			return nil, fmt.Errorf("failed to scan group member: %w", err)
		}
		g.Members = append(g.Members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *SQLiteStore) AddGroupMember(ctx context.Context, groupID, userID string) (*Group, error) {
	g, err := s.GetGroup(ctx, groupID)
	if err != nil || g == nil {
		return g, err
	}
	if g.HasMember(userID) {
		return g, nil
	}
	if _, err := s.db.ExecContext(ctx, "INSERT OR IGNORE INTO group_members (group_id, user_id) VALUES (?, ?)", groupID, userID); err != nil {
		return nil, fmt.Errorf("failed to add group member: %w", err)
	}
	return s.GetGroup(ctx, groupID)
}
