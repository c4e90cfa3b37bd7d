package interfaces

// -----------------------------------------------------------------------------
// IDataExchanger is the delivery side of the gateway used by the scheduler.
// -----------------------------------------------------------------------------

type IDataExchanger interface {
	// -----------------------------------------------------------------------------
	// Deliver queues one event for exactly one connection.
	// Delivering to a connection that is already gone is a no-op.
	Deliver(connID string, event string, payload interface{})

	// -----------------------------------------------------------------------------
	// Start the server
	Start() error

	// -----------------------------------------------------------------------------
	// Stop the server gracefully
	Stop() error
}
