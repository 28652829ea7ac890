// Package storage provides the durable counter store behind the admission gate.
//
// # Overview
//
// The store holds three tables in a single SQLite database:
//
//   - monthly_budget: accumulated spend and roast count per calendar month
//   - daily_usage: per-(date, identity) counters for rate limiting
//   - app_config: admin-editable key/value settings
//
// Every counter write is a single INSERT ... ON CONFLICT DO UPDATE statement,
// so concurrent writers to the same month or (date, identity) key never lose
// increments. Readers never create rows.
//
// # Usage
//
//	backend, err := storage.NewSQLiteBackend("data/roastline.db")
//	if err != nil {
//	    return err
//	}
//	defer backend.Close()
//
//	// One billable event
//	err = backend.AddMonthSpend(ctx, "2026-10", 1.25)
//
//	// One successful roast for a session and its network
//	err = backend.IncrementUsage(ctx, "2026-10-15", "session:abc", "ip:0123456789abcdef")
//
// # Thread Safety
//
// The backend is safe for concurrent use. Writers are serialized by SQLite
// itself; a writer that cannot obtain the lock within BusyTimeout fails with
// a *StorageError wrapping ErrStorageFailure.
package storage
