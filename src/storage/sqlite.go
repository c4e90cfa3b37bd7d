package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"quote-broadcaster/src/interfaces"
	"quote-broadcaster/src/logger"
	"quote-broadcaster/src/models"

	_ "modernc.org/sqlite"
)

// -----------------------------------------------------------------------------

type AsyncSQLiteDB struct {
	Config *models.MStorageConfig
	DB     *sql.DB
	Logger *logger.Logger
}

var _ interfaces.IDatabase = (*AsyncSQLiteDB)(nil)

// -----------------------------------------------------------------------------

func NewAsyncSQLiteDB(cfg *models.MStorageConfig, log *logger.Logger) (*AsyncSQLiteDB, error) {
	return &AsyncSQLiteDB{
		Config: cfg,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) Initialize() error {
	dsn := d.Config.DBPath

	// Open DB
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return err
	}

	if err := db.Ping(); err != nil {
		return err
	}

	// One writer at a time; the recorder batches anyway
	db.SetMaxOpenConns(1)
	d.DB = db

	// PRAGMA optimizations
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		d.Logger.Warning("Failed to set WAL mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL;"); err != nil {
		d.Logger.Warning("Failed to set synchronous mode: %v", err)
	}

	// Recreate Tables
	return d.recreateTables()
}

// -----------------------------------------------------------------------------

// recreateTables drops previous audit rows; nothing survives a restart.
func (d *AsyncSQLiteDB) recreateTables() error {
	if _, err := d.DB.Exec("DROP TABLE IF EXISTS session_events"); err != nil {
		return fmt.Errorf("failed to drop session_events: %w", err)
	}

	query := `
		CREATE TABLE session_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			connection_id TEXT,
			kind TEXT NOT NULL,
			symbols TEXT,
			remote_addr TEXT,
			created_at INTEGER NOT NULL
		);
	`
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create session_events: %w", err)
	}
	if _, err := d.DB.Exec("CREATE INDEX idx_session_events_created_at ON session_events (created_at)"); err != nil {
		return fmt.Errorf("failed to index session_events: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) SaveSessionEvents(events []models.MSessionEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := d.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO session_events (connection_id, kind, symbols, remote_addr, created_at)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range events {
		_, err := stmt.Exec(e.ConnectionID, e.Kind, strings.Join(e.Symbols, ","), e.RemoteAddr, e.CreatedAt.UnixMilli())
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) RecentSessionEvents(limit int) ([]models.MSessionEvent, error) {
	rows, err := d.DB.Query(`
		SELECT connection_id, kind, symbols, remote_addr, created_at
		FROM session_events ORDER BY created_at DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSessionEvents(rows)
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) CleanupOldData(retention time.Duration) error {
	cutoff := time.Now().UTC().Add(-retention).UnixMilli()

	res, err := d.DB.Exec("DELETE FROM session_events WHERE created_at < ?", cutoff)
	if err != nil {
		d.Logger.Error("Cleanup session_events error: %v", err)
		return err
	}

	n, _ := res.RowsAffected()
	d.Logger.Info("Cleanup completed, removed %d session events older than %v", n, retention)
	return nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}

// -----------------------------------------------------------------------------

func scanSessionEvents(rows *sql.Rows) ([]models.MSessionEvent, error) {
	var out []models.MSessionEvent
	for rows.Next() {
		var (
			e       models.MSessionEvent
			symbols sql.NullString
			created int64
		)
		if err := rows.Scan(&e.ConnectionID, &e.Kind, &symbols, &e.RemoteAddr, &created); err != nil {
			return nil, err
		}
		if symbols.String != "" {
			e.Symbols = strings.Split(symbols.String, ",")
		}
		e.CreatedAt = time.UnixMilli(created).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}
