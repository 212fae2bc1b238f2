// Package ledger records the sessions the control API has started. It backs
// the session listing and survives nothing beyond the configured DSN; the
// default is an in-memory database scoped to the process.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	botzie "github.com/manovDev/agario-botzie"
	"github.com/manovDev/agario-botzie/internal/ledger/migrations"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// MemoryDSN opens a private in-memory database.
const MemoryDSN = ":memory:"

// ErrAlreadyExists is returned when a session id is recorded twice.
var ErrAlreadyExists = errors.New("session already recorded")

// Session is one ledger row.
type Session struct {
	ID               string                   `json:"sessionId"`
	Nickname         string                   `json:"nickname"`
	RoomURL          string                   `json:"roomUrl"`
	BotCount         int                      `json:"botCount"`
	FeedingEnabled   bool                     `json:"feedingEnabled"`
	SplittingEnabled bool                     `json:"splittingEnabled"`
	ServerInfo       *botzie.ServerDescriptor `json:"serverInfo,omitempty"`
	StartedAt        time.Time                `json:"startedAt"`
	StoppedAt        *time.Time               `json:"stoppedAt,omitempty"`
	Notified         bool                     `json:"notified"`
	NotifyError      string                   `json:"notifyError,omitempty"`
}

// SessionFromConfig builds the ledger row for a start command.
func SessionFromConfig(id string, cfg botzie.SessionConfig, startedAt time.Time) Session {
	session := Session{
		ID:               id,
		Nickname:         cfg.Nickname,
		RoomURL:          cfg.RoomURL,
		BotCount:         cfg.BotCount,
		FeedingEnabled:   cfg.FeedingEnabled,
		SplittingEnabled: cfg.SplittingEnabled,
		StartedAt:        startedAt,
	}
	if cfg.ServerInfo != nil {
		info := *cfg.ServerInfo
		session.ServerInfo = &info
	}
	return session
}

// Store persists ledger rows in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens the ledger at dsn and applies the embedded migrations. An empty
// dsn or MemoryDSN opens a private in-memory database. The process config
// only ever passes MemoryDSN; file paths exist for tests and for inspecting a
// ledger while debugging.
func Open(ctx context.Context, dsn string) (*Store, error) {
	dsn = strings.TrimSpace(dsn)
	memory := dsn == "" || dsn == MemoryDSN
	if memory {
		dsn = MemoryDSN
	} else if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	}
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if memory {
		// Every pooled connection would otherwise see its own empty database.
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// RecordStart inserts a started session.
func (s *Store) RecordStart(ctx context.Context, session Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	id := strings.TrimSpace(session.ID)
	if id == "" {
		return fmt.Errorf("session id is required")
	}
	startedAt := session.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now()
	}
	serverInfo := ""
	if session.ServerInfo != nil {
		encoded, err := json.Marshal(session.ServerInfo)
		if err != nil {
			return fmt.Errorf("encode server info: %w", err)
		}
		serverInfo = string(encoded)
	}

	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO sessions (
		   session_id,
		   nickname,
		   room_url,
		   bot_count,
		   feeding_enabled,
		   splitting_enabled,
		   server_info,
		   started_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		session.Nickname,
		session.RoomURL,
		session.BotCount,
		session.FeedingEnabled,
		session.SplittingEnabled,
		serverInfo,
		toMillis(startedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("record session start: %w", err)
	}
	return nil
}

// MarkNotified records the outcome of the engine notification for a session.
func (s *Store) MarkNotified(ctx context.Context, id string, notifyErr error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	message := ""
	if notifyErr != nil {
		message = notifyErr.Error()
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`UPDATE sessions SET notified = ?, notify_error = ? WHERE session_id = ?`,
		notifyErr == nil, message, id,
	)
	if err != nil {
		return fmt.Errorf("mark session notified: %w", err)
	}
	return nil
}

// StopAll marks every active session stopped and returns how many changed.
func (s *Store) StopAll(ctx context.Context, stoppedAt time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	if stoppedAt.IsZero() {
		stoppedAt = time.Now()
	}
	result, err := s.sqlDB.ExecContext(ctx,
		`UPDATE sessions SET stopped_at = ? WHERE stopped_at IS NULL`,
		toMillis(stoppedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("stop sessions: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("stop sessions: %w", err)
	}
	return int(affected), nil
}

// Active lists sessions that have not been stopped, oldest first.
func (s *Store) Active(ctx context.Context) ([]Session, error) {
	return s.query(ctx, `WHERE stopped_at IS NULL ORDER BY started_at, rowid`)
}

// History lists every recorded session, newest first, up to limit rows.
func (s *Store) History(ctx context.Context, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.query(ctx, `ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
}

// Get returns one session by id.
func (s *Store) Get(ctx context.Context, id string) (Session, error) {
	sessions, err := s.query(ctx, `WHERE session_id = ?`, strings.TrimSpace(id))
	if err != nil {
		return Session{}, err
	}
	if len(sessions) == 0 {
		return Session{}, &botzie.UnknownSessionError{SessionID: id}
	}
	return sessions[0], nil
}

func (s *Store) query(ctx context.Context, clause string, args ...any) ([]Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT session_id, nickname, room_url, bot_count, feeding_enabled,
		        splitting_enabled, server_info, started_at, stopped_at,
		        notified, notify_error
		   FROM sessions `+clause,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]Session, 0)
	for rows.Next() {
		var (
			session    Session
			serverInfo string
			startedAt  int64
			stoppedAt  sql.NullInt64
		)
		if err := rows.Scan(
			&session.ID,
			&session.Nickname,
			&session.RoomURL,
			&session.BotCount,
			&session.FeedingEnabled,
			&session.SplittingEnabled,
			&serverInfo,
			&startedAt,
			&stoppedAt,
			&session.Notified,
			&session.NotifyError,
		); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		session.StartedAt = fromMillis(startedAt)
		if stoppedAt.Valid {
			at := fromMillis(stoppedAt.Int64)
			session.StoppedAt = &at
		}
		if serverInfo != "" {
			var info botzie.ServerDescriptor
			if err := json.Unmarshal([]byte(serverInfo), &info); err != nil {
				return nil, fmt.Errorf("decode server info for %s: %w", session.ID, err)
			}
			session.ServerInfo = &info
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "unique constraint failed") &&
		strings.Contains(message, "sessions.session_id")
}
