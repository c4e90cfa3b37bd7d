package broadcast

import (
	"context"
	"fmt"
	"sync"
	"time"

	"quote-broadcaster/src/cache"
	"quote-broadcaster/src/interfaces"
	"quote-broadcaster/src/logger"
	"quote-broadcaster/src/models"
	"quote-broadcaster/src/registry"
	"quote-broadcaster/src/symbols"
)

// Scheduler resolves every subscribed symbol once per tick and delivers the
// result to each subscribing connection.
type Scheduler struct {
	Feed       interfaces.IQuoteFeed
	Session    interfaces.IFeedSession
	Classifier interfaces.IMarketClassifier
	Cache      *cache.RateCache
	Registry   *registry.Registry
	Normalizer *symbols.Normalizer
	Exchanger  interfaces.IDataExchanger
	Publishers []interfaces.ISnapshotPublisher
	Interval   time.Duration
	Logger     *logger.Logger

	mu         sync.Mutex
	cancelFunc context.CancelFunc
	done       chan struct{}
	failing    map[string]bool
}

// -----------------------------------------------------------------------------

// Start runs the tick loop until ctx is cancelled or Stop is called.
func (s *Scheduler) Start(parentCtx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancelFunc != nil {
		return fmt.Errorf("scheduler is already running")
	}
	if s.Interval <= 0 {
		s.Interval = 100 * time.Millisecond
	}

	ctx, cancel := context.WithCancel(parentCtx)
	s.cancelFunc = cancel
	s.done = make(chan struct{})

	go s.run(ctx, s.done)
	s.Logger.Info("Broadcast scheduler started (interval %v)", s.Interval)
	return nil
}

// -----------------------------------------------------------------------------

// Stop cancels the loop and waits for the in-flight tick to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancelFunc, s.done
	s.cancelFunc, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.Logger.Info("Broadcast scheduler stopped")
}

// -----------------------------------------------------------------------------

// run sleeps, then ticks. A slow tick delays the next one instead of overlapping it.
func (s *Scheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.Interval):
		}
		s.Tick(ctx, time.Now())
	}
}

// -----------------------------------------------------------------------------

// Tick performs one broadcast pass and returns the number of deliveries.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) int {
	if !s.ensureSession(ctx) {
		return 0
	}

	subs := s.Registry.Snapshot()
	if len(subs) == 0 {
		return 0
	}

	resolved := make(map[models.MCanonicalSymbol]*models.MOutboundSnapshot)
	order := make([]models.MCanonicalSymbol, 0)
	delivered := 0

	for connID, syms := range subs {
		for _, sym := range syms {
			snap, seen := resolved[sym]
			if !seen {
				snap = s.resolve(ctx, sym, now)
				resolved[sym] = snap
				order = append(order, sym)
			}
			if snap == nil {
				continue
			}
			s.Exchanger.Deliver(connID, models.EventMarketData, *snap)
			delivered++
		}
	}

	s.publish(ctx, resolved, order)
	return delivered
}

// -----------------------------------------------------------------------------

// Resolve builds snapshots keyed by display name for the given aliases.
func (s *Scheduler) Resolve(ctx context.Context, aliases []string, now time.Time) map[string]models.MOutboundSnapshot {
	out := make(map[string]models.MOutboundSnapshot)
	if !s.ensureSession(ctx) {
		return out
	}
	for _, sym := range s.Normalizer.NormalizeAll(aliases) {
		if snap := s.resolve(ctx, sym, now); snap != nil {
			out[snap.Symbol] = *snap
		}
	}
	return out
}

// -----------------------------------------------------------------------------

// resolve returns nil when the symbol has nothing to send this tick.
func (s *Scheduler) resolve(ctx context.Context, sym models.MCanonicalSymbol, now time.Time) (snap *models.MOutboundSnapshot) {
	defer func() {
		if r := recover(); r != nil {
			s.Logger.Error("Error updating rates for %s: %v", sym, r)
			snap = nil
		}
	}()

	if err := s.Feed.SelectSymbol(ctx, sym); err != nil {
		s.Logger.Warning("Failed to select symbol %s: %v", sym, err)
		return nil
	}

	status := s.Classifier.Status(ctx, sym, now)
	display := s.Normalizer.DisplayName(sym)

	if status == models.MarketClosed {
		closing, ok := s.Cache.LastClosing(sym)
		if !ok {
			closing, _ = s.Cache.LoadClosingSnapshot(ctx, sym, now)
		}
		return &models.MOutboundSnapshot{
			Symbol:       display,
			Bid:          closing.Close,
			High:         closing.High,
			Low:          closing.Low,
			MarketStatus: status,
		}
	}

	tick, err := s.Feed.Tick(ctx, sym)
	if err != nil || tick == nil {
		s.Logger.Debug("No tick for %s: %v", sym, err)
		return nil
	}

	high, low, ok := s.Cache.GetHighLow(ctx, sym, now)
	if ok {
		s.Cache.RecordClosingSnapshot(sym, tick.Bid, high, low, now)
	} else if prev, found := s.Cache.LastClosing(sym); found {
		// keep the stored range rather than overwrite it with zeros
		s.Cache.RecordClosingSnapshot(sym, tick.Bid, prev.High, prev.Low, now)
	}

	return &models.MOutboundSnapshot{
		Symbol:       display,
		Bid:          tick.Bid,
		High:         high,
		Low:          low,
		MarketStatus: status,
	}
}

// -----------------------------------------------------------------------------

func (s *Scheduler) ensureSession(ctx context.Context) bool {
	if s.Session == nil {
		return true
	}
	if err := s.Session.EnsureSession(ctx); err != nil {
		s.Logger.Error("Quote feed session unavailable: %v", err)
		return false
	}
	return true
}

// -----------------------------------------------------------------------------

// publish mirrors the tick's snapshots. Failures are logged once per outage.
func (s *Scheduler) publish(ctx context.Context, resolved map[models.MCanonicalSymbol]*models.MOutboundSnapshot, order []models.MCanonicalSymbol) {
	if len(s.Publishers) == 0 {
		return
	}

	batch := make([]models.MOutboundSnapshot, 0, len(order))
	for _, sym := range order {
		if snap := resolved[sym]; snap != nil {
			batch = append(batch, *snap)
		}
	}
	if len(batch) == 0 {
		return
	}

	s.mu.Lock()
	if s.failing == nil {
		s.failing = make(map[string]bool)
	}
	s.mu.Unlock()

	for _, p := range s.Publishers {
		err := p.Publish(ctx, batch)

		s.mu.Lock()
		wasFailing := s.failing[p.Name()]
		s.failing[p.Name()] = err != nil
		s.mu.Unlock()

		switch {
		case err != nil && !wasFailing:
			s.Logger.Warning("Snapshot mirror %s failed: %v", p.Name(), err)
		case err == nil && wasFailing:
			s.Logger.Info("Snapshot mirror %s recovered", p.Name())
		}
	}
}
