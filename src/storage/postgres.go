package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"quote-broadcaster/src/interfaces"
	"quote-broadcaster/src/logger"
	"quote-broadcaster/src/models"

	_ "github.com/lib/pq"
)

// -----------------------------------------------------------------------------

type PostgresDB struct {
	Config *models.MStorageConfig
	DB     *sql.DB
	Schema string
	Logger *logger.Logger
}

var _ interfaces.IDatabase = (*PostgresDB)(nil)

// -----------------------------------------------------------------------------

// NewPostgresDB uses the executable name as schema so several services can share a database.
func NewPostgresDB(cfg *models.MStorageConfig, log *logger.Logger) (*PostgresDB, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable name: %w", err)
	}
	name := filepath.Base(exe)
	name = strings.TrimSuffix(name, filepath.Ext(name))

	return &PostgresDB{
		Config: cfg,
		Schema: name,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Initialize() error {
	dsn := d.Config.DBConnectionString
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}

	if err := db.Ping(); err != nil {
		return err
	}

	d.DB = db

	// Create Schema
	if _, err := d.DB.Exec(fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS "%s"`, d.Schema)); err != nil {
		return fmt.Errorf("failed to create schema %s: %w", d.Schema, err)
	}

	if err := d.recreateTables(); err != nil {
		return err
	}

	d.Logger.Info("PostgresDB initialized successfully (Schema: %s)", d.Schema)
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) recreateTables() error {
	query := fmt.Sprintf(`DROP TABLE IF EXISTS "%s"."session_events";`, d.Schema)
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to drop session_events: %w", err)
	}

	query = fmt.Sprintf(`
		CREATE TABLE "%s"."session_events" (
			id BIGSERIAL PRIMARY KEY,
			connection_id TEXT,
			kind TEXT NOT NULL,
			symbols TEXT,
			remote_addr TEXT,
			created_at BIGINT NOT NULL
		);
	`, d.Schema)
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create session_events: %w", err)
	}

	query = fmt.Sprintf(`CREATE INDEX ON "%s"."session_events" (created_at);`, d.Schema)
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to index session_events: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) SaveSessionEvents(events []models.MSessionEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := d.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`
		INSERT INTO "%s"."session_events" (connection_id, kind, symbols, remote_addr, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, d.Schema)
	stmt, err := tx.Prepare(query)
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

func (d *PostgresDB) RecentSessionEvents(limit int) ([]models.MSessionEvent, error) {
	rows, err := d.DB.Query(fmt.Sprintf(`
		SELECT connection_id, kind, symbols, remote_addr, created_at
		FROM "%s"."session_events" ORDER BY created_at DESC, id DESC LIMIT $1
	`, d.Schema), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSessionEvents(rows)
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) CleanupOldData(retention time.Duration) error {
	cutoff := time.Now().UTC().Add(-retention).UnixMilli()

	query := fmt.Sprintf(`DELETE FROM "%s"."session_events" WHERE created_at < $1`, d.Schema)
	if _, err := d.DB.Exec(query, cutoff); err != nil {
		d.Logger.Error("Cleanup session_events error: %v", err)
		return err
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
