package interfaces

import (
	"time"

	"quote-broadcaster/src/models"
)

// -----------------------------------------------------------------------------
// IDatabase defines the contract for the session audit store.
// -----------------------------------------------------------------------------

type IDatabase interface {
	ISessionLog

	// -----------------------------------------------------------------------------

	// Initialize sets up the database schema and tables.
	Initialize() error

	// -----------------------------------------------------------------------------

	// SaveSessionEvents inserts a batch of gateway session events.
	SaveSessionEvents(events []models.MSessionEvent) error

	// -----------------------------------------------------------------------------

	// CleanupOldData removes events older than the retention window.
	CleanupOldData(retention time.Duration) error

	// -----------------------------------------------------------------------------

	// Close the database connection
	Close() error
}

// -----------------------------------------------------------------------------
// ISessionLog reads back recorded gateway activity.
// -----------------------------------------------------------------------------

type ISessionLog interface {
	// RecentSessionEvents returns up to limit events newest first.
	RecentSessionEvents(limit int) ([]models.MSessionEvent, error)
}

// -----------------------------------------------------------------------------
// ISessionRecorder accepts audit events without blocking the caller.
// -----------------------------------------------------------------------------

type ISessionRecorder interface {
	Record(event models.MSessionEvent)
}
