package roastlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"

	"roastline-hq/roastline/pkg/limits/storage"
	"roastline-hq/roastline/pkg/roast"
)

const backendName = "sqlite"

// maxShareIDAttempts bounds regeneration after share id collisions.
const maxShareIDAttempts = 5

// ErrNotFound is returned when no roast has the requested share id.
var ErrNotFound = errors.New("roast not found")

// Config configures the roast log database.
type Config struct {
	// Path is the database file path.
	Path string

	// BusyTimeout is how long a writer waits on a locked database.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// Store persists completed roasts.
type Store struct {
	db        *sql.DB
	path      string
	now       func() time.Time
	logger    *slog.Logger
	closeOnce sync.Once
}

// Open opens or creates the roast log at cfg.Path.
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, storage.NewStorageError(backendName, "open", fmt.Errorf("database path is required"))
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=%d&_txlock=immediate",
		cfg.Path, cfg.BusyTimeout.Milliseconds())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, storage.NewStorageError(backendName, "open", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{
		db:     db,
		path:   cfg.Path,
		now:    time.Now,
		logger: slog.Default().With("component", "roastlog"),
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Info("roast log opened", "path", cfg.Path)
	return s, nil
}

func (s *Store) initialize() error {
	if _, err := s.db.Exec(Schema); err != nil {
		return storage.NewStorageError(backendName, "create_schema", err)
	}
	if _, err := s.db.Exec(insertSchemaVersion, SchemaVersion); err != nil {
		return storage.NewStorageError(backendName, "insert_schema_version", err)
	}

	var version int
	err := s.db.QueryRow(getSchemaVersion).Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		return storage.NewStorageError(backendName, "get_schema_version", err)
	}
	if version != SchemaVersion {
		return storage.NewStorageError(backendName, "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}
	return nil
}

// Record inserts rec and fills in its ID, CreatedAt and ShareID. A share id
// is generated when rec has none, and regenerated on collision. A generated
// id is cleared again when the insert fails. Code is only kept for public
// roasts.
func (s *Store) Record(ctx context.Context, rec *Record) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now().UTC()
	}
	if !rec.IsPublic {
		rec.CodeContent = ""
	}

	generated := rec.ShareID == ""
	for attempt := 1; ; attempt++ {
		if generated {
			id, err := roast.GenerateShareID(roast.DefaultShareIDLength)
			if err != nil {
				return fmt.Errorf("failed to generate share id: %w", err)
			}
			rec.ShareID = id
		}

		id, err := s.insert(ctx, rec)
		if err == nil {
			rec.ID = id
			return nil
		}

		if generated && isUniqueViolation(err) && attempt < maxShareIDAttempts {
			s.logger.Debug("share id collision, regenerating", "share_id", rec.ShareID, "attempt", attempt)
			continue
		}
		if generated {
			rec.ShareID = ""
		}
		return storage.NewStorageError(backendName, "record_roast", err)
	}
}

func (s *Store) insert(ctx context.Context, rec *Record) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO roast_log (
			created_at, session_id, ip_hash,
			input_chars, input_lines, input_tokens_actual, output_tokens_actual, cost_cents,
			model, mode, severity, language_detected,
			share_id, is_public, roast_score, roast_content, code_content
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.CreatedAt, nullString(rec.SessionID), nullString(rec.IPHash),
		rec.InputChars, rec.InputLines, rec.InputTokens, rec.OutputTokens, rec.CostCents,
		rec.Model, rec.Mode, rec.Severity, rec.Language,
		rec.ShareID, rec.IsPublic, rec.Score, rec.RoastContent, nullString(rec.CodeContent),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetByShareID returns the roast with the given share id, or ErrNotFound.
func (s *Store) GetByShareID(ctx context.Context, shareID string) (*Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM roast_log WHERE share_id = ?`, shareID)
	if err != nil {
		return nil, storage.NewStorageError(backendName, "get_roast", err)
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, storage.NewStorageError(backendName, "get_roast", err)
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return records[0], nil
}

// Recent returns up to limit public roasts, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]*Record, error) {
	return s.list(ctx, "recent_roasts",
		`SELECT `+selectColumns+` FROM roast_log
		 WHERE is_public = 1 AND share_id IS NOT NULL
		 ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
}

// Latest returns up to limit roasts of any visibility, newest first.
func (s *Store) Latest(ctx context.Context, limit int) ([]*Record, error) {
	return s.list(ctx, "latest_roasts",
		`SELECT `+selectColumns+` FROM roast_log
		 ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
}

func (s *Store) list(ctx context.Context, op, query string, limit int) ([]*Record, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, storage.NewStorageError(backendName, op, err)
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, storage.NewStorageError(backendName, op, err)
	}
	return records, nil
}

// Count returns the total number of logged roasts.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM roast_log`).Scan(&n); err != nil {
		return 0, storage.NewStorageError(backendName, "count_roasts", err)
	}
	return n, nil
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return storage.NewStorageError(backendName, "ping", err)
	}
	return nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.db.Close()
		s.logger.Info("roast log closed")
	})
	return err
}

func scanRecords(rows *sql.Rows) ([]*Record, error) {
	var records []*Record
	for rows.Next() {
		var (
			rec                 Record
			sessionID, ipHash   sql.NullString
			model, mode         sql.NullString
			severity, language  sql.NullString
			shareID, code       sql.NullString
			content             sql.NullString
			inChars, inLines    sql.NullInt64
			inTokens, outTokens sql.NullInt64
			cost                sql.NullFloat64
			score               sql.NullInt64
		)
		if err := rows.Scan(
			&rec.ID, &rec.CreatedAt, &sessionID, &ipHash,
			&inChars, &inLines, &inTokens, &outTokens, &cost,
			&model, &mode, &severity, &language,
			&shareID, &rec.IsPublic, &score, &content, &code,
		); err != nil {
			return nil, err
		}

		rec.SessionID = sessionID.String
		rec.IPHash = ipHash.String
		rec.InputChars = int(inChars.Int64)
		rec.InputLines = int(inLines.Int64)
		rec.InputTokens = int(inTokens.Int64)
		rec.OutputTokens = int(outTokens.Int64)
		rec.CostCents = cost.Float64
		rec.Model = model.String
		rec.Mode = mode.String
		rec.Severity = severity.String
		rec.Language = language.String
		rec.ShareID = shareID.String
		rec.RoastContent = content.String
		rec.CodeContent = code.String
		if score.Valid {
			v := int(score.Int64)
			rec.Score = &v
		}

		records = append(records, &rec)
	}
	return records, rows.Err()
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
