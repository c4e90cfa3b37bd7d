package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"quote-broadcaster/src/interfaces"
	"quote-broadcaster/src/logger"
	"quote-broadcaster/src/models"
)

const (
	recorderQueueSize = 1024
	recorderBatchSize = 128
)

// -----------------------------------------------------------------------------

// NewDatabase builds the store selected by storage.db_type. "none" yields nil.
func NewDatabase(cfg *models.MStorageConfig, log *logger.Logger) (interfaces.IDatabase, error) {
	switch cfg.DBType {
	case "none", "":
		return nil, nil
	case "sqlite":
		db, err := NewAsyncSQLiteDB(cfg, log)
		if err != nil {
			return nil, err
		}
		return db, nil
	case "postgres":
		db, err := NewPostgresDB(cfg, log)
		if err != nil {
			return nil, err
		}
		return db, nil
	}
	return nil, fmt.Errorf("unknown database type '%s'", cfg.DBType)
}

// -----------------------------------------------------------------------------

// AsyncRecorder queues session events and writes them in batches off the
// request path. Events are dropped, with a warning, when the queue is full.
type AsyncRecorder struct {
	db        interfaces.IDatabase
	logger    *logger.Logger
	queue     chan models.MSessionEvent
	flush     time.Duration
	retention time.Duration

	wg       sync.WaitGroup
	stopOnce sync.Once
	done     chan struct{}
	mu       sync.Mutex
	dropped  int
}

var _ interfaces.ISessionRecorder = (*AsyncRecorder)(nil)

// -----------------------------------------------------------------------------

func NewAsyncRecorder(db interfaces.IDatabase, retention time.Duration, log *logger.Logger) *AsyncRecorder {
	return &AsyncRecorder{
		db:        db,
		logger:    log,
		queue:     make(chan models.MSessionEvent, recorderQueueSize),
		flush:     time.Second,
		retention: retention,
		done:      make(chan struct{}),
	}
}

// -----------------------------------------------------------------------------

func (r *AsyncRecorder) Record(event models.MSessionEvent) {
	select {
	case <-r.done:
		return
	default:
	}

	select {
	case r.queue <- event:
	default:
		r.mu.Lock()
		r.dropped++
		r.mu.Unlock()
	}
}

// -----------------------------------------------------------------------------

// Start runs the writer loop and the hourly retention cleanup.
func (r *AsyncRecorder) Start(ctx context.Context) {
	r.wg.Add(1)
	go r.run(ctx)
}

// Stop flushes queued events and waits for the writer to exit.
func (r *AsyncRecorder) Stop() {
	r.stopOnce.Do(func() { close(r.done) })
	r.wg.Wait()
}

// -----------------------------------------------------------------------------

func (r *AsyncRecorder) run(ctx context.Context) {
	defer r.wg.Done()

	flushTicker := time.NewTicker(r.flush)
	defer flushTicker.Stop()
	cleanupTicker := time.NewTicker(time.Hour)
	defer cleanupTicker.Stop()

	batch := make([]models.MSessionEvent, 0, recorderBatchSize)
	write := func() {
		if len(batch) == 0 {
			return
		}
		if err := r.db.SaveSessionEvents(batch); err != nil {
			r.logger.Error("Failed to save %d session events: %v", len(batch), err)
		}
		batch = batch[:0]
		r.reportDropped()
	}

	for {
		select {
		case e := <-r.queue:
			batch = append(batch, e)
			if len(batch) >= recorderBatchSize {
				write()
			}

		case <-flushTicker.C:
			write()

		case <-cleanupTicker.C:
			if r.retention > 0 {
				_ = r.db.CleanupOldData(r.retention)
			}

		case <-ctx.Done():
			r.drain(&batch)
			write()
			return

		case <-r.done:
			r.drain(&batch)
			write()
			return
		}
	}
}

func (r *AsyncRecorder) drain(batch *[]models.MSessionEvent) {
	for {
		select {
		case e := <-r.queue:
			*batch = append(*batch, e)
		default:
			return
		}
	}
}

func (r *AsyncRecorder) reportDropped() {
	r.mu.Lock()
	n := r.dropped
	r.dropped = 0
	r.mu.Unlock()
	if n > 0 {
		r.logger.Warning("Dropped %d session events, recorder queue full", n)
	}
}
