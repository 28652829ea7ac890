package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

const backendName = "sqlite"

// SQLiteBackend is the durable counter store. It keeps monthly spend, daily
// usage counters and admin settings in one SQLite database.
//
// SQLiteBackend uses a write-ahead log (WAL) so gate reads do not block on
// counter writes, and a bounded busy timeout so a contended write fails
// instead of waiting forever.
type SQLiteBackend struct {
	db                 *sql.DB
	dbPath             string
	checkpointInterval time.Duration
	now                func() time.Time
	done               chan struct{}
	closeOnce          sync.Once

	addSpendStmt     *sql.Stmt
	monthTotalsStmt  *sql.Stmt
	listMonthsStmt   *sql.Stmt
	incrementStmt    *sql.Stmt
	usageCountStmt   *sql.Stmt
	totalUsageStmt   *sql.Stmt
	deleteUsageStmt  *sql.Stmt
	getSettingStmt   *sql.Stmt
	setSettingStmt   *sql.Stmt
	seedSettingStmt  *sql.Stmt
	listSettingsStmt *sql.Stmt
}

// SQLiteBackendConfig configures the SQLite backend.
type SQLiteBackendConfig struct {
	// DBPath is the path to the SQLite database file.
	DBPath string

	// CheckpointInterval is how often to checkpoint the WAL.
	// Default: 5 minutes
	CheckpointInterval time.Duration

	// BusyTimeout is how long a writer waits for the database lock before
	// failing.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// NewSQLiteBackend creates a new SQLite counter store with default settings.
func NewSQLiteBackend(dbPath string) (*SQLiteBackend, error) {
	return NewSQLiteBackendWithConfig(SQLiteBackendConfig{
		DBPath:             dbPath,
		CheckpointInterval: 5 * time.Minute,
		BusyTimeout:        5 * time.Second,
	})
}

// NewSQLiteBackendWithConfig creates a new SQLite backend with custom configuration.
func NewSQLiteBackendWithConfig(cfg SQLiteBackendConfig) (*SQLiteBackend, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.CheckpointInterval == 0 {
		cfg.CheckpointInterval = 5 * time.Minute
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)&_txlock=immediate",
		cfg.DBPath, cfg.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	backend := &SQLiteBackend{
		db:                 db,
		dbPath:             cfg.DBPath,
		checkpointInterval: cfg.CheckpointInterval,
		now:                time.Now,
		done:               make(chan struct{}),
	}

	if err := backend.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if err := backend.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	go backend.checkpointLoop()

	return backend, nil
}

// initSchema creates the database schema if it doesn't exist.
func (s *SQLiteBackend) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS monthly_budget (
		month TEXT PRIMARY KEY,
		spent_cents REAL NOT NULL DEFAULT 0,
		roast_count INTEGER NOT NULL DEFAULT 0,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS daily_usage (
		date TEXT NOT NULL,
		identity TEXT NOT NULL,
		count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (date, identity)
	);

	CREATE INDEX IF NOT EXISTS idx_daily_usage_date ON daily_usage(date);

	CREATE TABLE IF NOT EXISTS app_config (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		updated_at INTEGER NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// prepareStatements prepares SQL statements for reuse.
func (s *SQLiteBackend) prepareStatements() error {
	stmts := []struct {
		dst   **sql.Stmt
		name  string
		query string
	}{
		{&s.addSpendStmt, "add spend", `
			INSERT INTO monthly_budget (month, spent_cents, roast_count, updated_at)
			VALUES (?, ?, 1, ?)
			ON CONFLICT (month) DO UPDATE SET
				spent_cents = spent_cents + excluded.spent_cents,
				roast_count = roast_count + 1,
				updated_at = excluded.updated_at
		`},
		{&s.monthTotalsStmt, "month totals", `
			SELECT spent_cents, roast_count FROM monthly_budget WHERE month = ?
		`},
		{&s.listMonthsStmt, "list months", `
			SELECT month, spent_cents, roast_count, updated_at
			FROM monthly_budget
			ORDER BY month DESC
		`},
		{&s.incrementStmt, "increment usage", `
			INSERT INTO daily_usage (date, identity, count)
			VALUES (?, ?, 1)
			ON CONFLICT (date, identity) DO UPDATE SET count = count + 1
		`},
		{&s.usageCountStmt, "usage count", `
			SELECT COALESCE(SUM(count), 0) FROM daily_usage WHERE date = ? AND identity = ?
		`},
		{&s.totalUsageStmt, "total usage", `
			SELECT COALESCE(SUM(count), 0) FROM daily_usage WHERE date = ?
		`},
		{&s.deleteUsageStmt, "delete usage", `
			DELETE FROM daily_usage WHERE date < ?
		`},
		{&s.getSettingStmt, "get setting", `
			SELECT value FROM app_config WHERE key = ?
		`},
		{&s.setSettingStmt, "set setting", `
			UPDATE app_config SET value = ?, updated_at = ? WHERE key = ?
		`},
		{&s.seedSettingStmt, "seed setting", `
			INSERT INTO app_config (key, value, description, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (key) DO NOTHING
		`},
		{&s.listSettingsStmt, "list settings", `
			SELECT key, value, description, updated_at FROM app_config ORDER BY key
		`},
	}

	for _, st := range stmts {
		stmt, err := s.db.Prepare(st.query)
		if err != nil {
			return fmt.Errorf("failed to prepare %s statement: %w", st.name, err)
		}
		*st.dst = stmt
	}

	return nil
}

// AddMonthSpend adds cents to the month's spend and increments its roast
// count by one, creating the row on first use.
func (s *SQLiteBackend) AddMonthSpend(ctx context.Context, month string, cents float64) error {
	if month == "" {
		return fmt.Errorf("month cannot be empty")
	}
	if cents < 0 {
		return fmt.Errorf("cost cannot be negative: %v", cents)
	}

	if _, err := s.addSpendStmt.ExecContext(ctx, month, cents, s.now().Unix()); err != nil {
		return NewStorageError(backendName, "add_month_spend", err)
	}
	return nil
}

// MonthTotals returns the spend and roast count for a month. A month with no
// row reports zero for both.
func (s *SQLiteBackend) MonthTotals(ctx context.Context, month string) (float64, int64, error) {
	var (
		spent float64
		count int64
	)
	err := s.monthTotalsStmt.QueryRowContext(ctx, month).Scan(&spent, &count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, NewStorageError(backendName, "month_totals", err)
	}
	return spent, count, nil
}

// ListMonths returns every monthly_budget row, newest month first.
func (s *SQLiteBackend) ListMonths(ctx context.Context) ([]MonthRecord, error) {
	rows, err := s.listMonthsStmt.QueryContext(ctx)
	if err != nil {
		return nil, NewStorageError(backendName, "list_months", err)
	}
	defer rows.Close()

	var months []MonthRecord
	for rows.Next() {
		var (
			rec       MonthRecord
			updatedAt int64
		)
		if err := rows.Scan(&rec.Month, &rec.SpentCents, &rec.RoastCount, &updatedAt); err != nil {
			return nil, NewStorageError(backendName, "list_months", err)
		}
		rec.UpdatedAt = time.Unix(updatedAt, 0)
		months = append(months, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError(backendName, "list_months", err)
	}

	return months, nil
}

// IncrementUsage adds one to the counter of every identity for date. All
// increments are applied in a single transaction: either every row moves or
// none does.
func (s *SQLiteBackend) IncrementUsage(ctx context.Context, date string, identities ...string) error {
	if date == "" {
		return fmt.Errorf("date cannot be empty")
	}
	if len(identities) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return NewStorageError(backendName, "increment_usage", err)
	}
	defer tx.Rollback()

	stmt := tx.StmtContext(ctx, s.incrementStmt)
	for _, identity := range identities {
		if identity == "" {
			return fmt.Errorf("identity cannot be empty")
		}
		if _, err := stmt.ExecContext(ctx, date, identity); err != nil {
			return NewStorageError(backendName, "increment_usage", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return NewStorageError(backendName, "increment_usage", err)
	}
	return nil
}

// UsageCount returns the counter for one identity on date.
func (s *SQLiteBackend) UsageCount(ctx context.Context, date, identity string) (int64, error) {
	var count int64
	if err := s.usageCountStmt.QueryRowContext(ctx, date, identity).Scan(&count); err != nil {
		return 0, NewStorageError(backendName, "usage_count", err)
	}
	return count, nil
}

// TotalUsage returns the sum of every counter on date.
func (s *SQLiteBackend) TotalUsage(ctx context.Context, date string) (int64, error) {
	var count int64
	if err := s.totalUsageStmt.QueryRowContext(ctx, date).Scan(&count); err != nil {
		return 0, NewStorageError(backendName, "total_usage", err)
	}
	return count, nil
}

// DeleteUsageBefore removes all usage rows dated strictly before cutoff
// (YYYY-MM-DD) and returns how many were removed.
func (s *SQLiteBackend) DeleteUsageBefore(ctx context.Context, cutoff string) (int64, error) {
	result, err := s.deleteUsageStmt.ExecContext(ctx, cutoff)
	if err != nil {
		return 0, NewStorageError(backendName, "delete_usage", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, NewStorageError(backendName, "delete_usage", err)
	}
	return deleted, nil
}

// GetSetting returns the value stored for key and whether it exists.
func (s *SQLiteBackend) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.getSettingStmt.QueryRowContext(ctx, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, NewStorageError(backendName, "get_setting", err)
	}
	return value, true, nil
}

// SetSetting overwrites the value of an existing key. It reports false when
// the key has never been seeded.
func (s *SQLiteBackend) SetSetting(ctx context.Context, key, value string) (bool, error) {
	result, err := s.setSettingStmt.ExecContext(ctx, value, s.now().Unix(), key)
	if err != nil {
		return false, NewStorageError(backendName, "set_setting", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, NewStorageError(backendName, "set_setting", err)
	}
	return n > 0, nil
}

// SeedSettings inserts the given settings, leaving existing keys untouched.
func (s *SQLiteBackend) SeedSettings(ctx context.Context, settings []Setting) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return NewStorageError(backendName, "seed_settings", err)
	}
	defer tx.Rollback()

	stmt := tx.StmtContext(ctx, s.seedSettingStmt)
	now := s.now().Unix()
	for _, setting := range settings {
		if _, err := stmt.ExecContext(ctx, setting.Key, setting.Value, setting.Description, now); err != nil {
			return NewStorageError(backendName, "seed_settings", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return NewStorageError(backendName, "seed_settings", err)
	}
	return nil
}

// ListSettings returns every setting ordered by key.
func (s *SQLiteBackend) ListSettings(ctx context.Context) ([]Setting, error) {
	rows, err := s.listSettingsStmt.QueryContext(ctx)
	if err != nil {
		return nil, NewStorageError(backendName, "list_settings", err)
	}
	defer rows.Close()

	var settings []Setting
	for rows.Next() {
		var (
			setting   Setting
			updatedAt int64
		)
		if err := rows.Scan(&setting.Key, &setting.Value, &setting.Description, &updatedAt); err != nil {
			return nil, NewStorageError(backendName, "list_settings", err)
		}
		setting.UpdatedAt = time.Unix(updatedAt, 0)
		settings = append(settings, setting)
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError(backendName, "list_settings", err)
	}

	return settings, nil
}

// Ping verifies the database is reachable.
func (s *SQLiteBackend) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return NewStorageError(backendName, "ping", err)
	}
	return nil
}

// Path returns the database file path.
func (s *SQLiteBackend) Path() string {
	return s.dbPath
}

// Close releases any resources held by the backend.
// Close is idempotent and safe to call multiple times.
func (s *SQLiteBackend) Close() error {
	var closeErr error

	s.closeOnce.Do(func() {
		close(s.done)

		for _, stmt := range []*sql.Stmt{
			s.addSpendStmt, s.monthTotalsStmt, s.listMonthsStmt,
			s.incrementStmt, s.usageCountStmt, s.totalUsageStmt, s.deleteUsageStmt,
			s.getSettingStmt, s.setSettingStmt, s.seedSettingStmt, s.listSettingsStmt,
		} {
			if stmt != nil {
				stmt.Close()
			}
		}

		if s.db != nil {
			// Run final checkpoint
			_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
			closeErr = s.db.Close()
		}
	})

	return closeErr
}

// checkpointLoop runs periodic WAL checkpoints.
func (s *SQLiteBackend) checkpointLoop() {
	ticker := time.NewTicker(s.checkpointInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_, _ = s.db.Exec("PRAGMA wal_checkpoint(PASSIVE)")
		case <-s.done:
			return
		}
	}
}
