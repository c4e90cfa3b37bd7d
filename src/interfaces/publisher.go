package interfaces

import (
	"context"

	"quote-broadcaster/src/models"
)

// -----------------------------------------------------------------------------
// ISnapshotPublisher mirrors resolved snapshots to an external system.
// -----------------------------------------------------------------------------

type ISnapshotPublisher interface {
	Name() string

	// -----------------------------------------------------------------------------

	// Publish sends every snapshot resolved in one tick.
	Publish(ctx context.Context, snapshots []models.MOutboundSnapshot) error

	// -----------------------------------------------------------------------------

	Close() error
}
