package broadcast

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"quote-broadcaster/src/cache"
	"quote-broadcaster/src/data_source/feedtest"
	"quote-broadcaster/src/helpers"
	"quote-broadcaster/src/logger"
	"quote-broadcaster/src/market"
	"quote-broadcaster/src/models"
	"quote-broadcaster/src/registry"
	"quote-broadcaster/src/symbols"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type delivery struct {
	connID string
	event  string
	snap   models.MOutboundSnapshot
}

type recordingExchanger struct {
	mu  sync.Mutex
	out []delivery
}

func (r *recordingExchanger) Deliver(connID, event string, payload interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.out = append(r.out, delivery{connID: connID, event: event, snap: payload.(models.MOutboundSnapshot)})
}

func (r *recordingExchanger) Start() error { return nil }
func (r *recordingExchanger) Stop() error  { return nil }

func (r *recordingExchanger) to(connID string) []delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []delivery
	for _, d := range r.out {
		if d.connID == connID {
			out = append(out, d)
		}
	}
	return out
}

func (r *recordingExchanger) reset() {
	r.mu.Lock()
	r.out = nil
	r.mu.Unlock()
}

type fixedClassifier struct {
	mu     sync.Mutex
	status map[models.MCanonicalSymbol]models.MMarketStatus
}

func (f *fixedClassifier) Status(_ context.Context, sym models.MCanonicalSymbol, _ time.Time) models.MMarketStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.status[sym]; ok {
		return s
	}
	return models.MarketOpen
}

type recordingPublisher struct {
	mu      sync.Mutex
	batches [][]models.MOutboundSnapshot
	err     error
}

func (p *recordingPublisher) Name() string { return "memory" }
func (p *recordingPublisher) Close() error { return nil }
func (p *recordingPublisher) Publish(_ context.Context, snaps []models.MOutboundSnapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.batches = append(p.batches, snaps)
	return p.err
}

type fixture struct {
	feed       *feedtest.Feed
	classifier *fixedClassifier
	registry   *registry.Registry
	exchanger  *recordingExchanger
	cache      *cache.RateCache
	normalizer *symbols.Normalizer
	sched      *Scheduler
}

func newFixture() *fixture {
	log := logger.NewLoggerWithWriter(io.Discard, "DEBUG", "broadcast")
	feed := feedtest.New()
	for sym, bid := range map[models.MCanonicalSymbol]float64{"XAUUSD": 2345.67, "XAGUSD": 29.81, "XPTUSD": 987.6} {
		feed.SetTick(sym, bid)
		feed.AddDaily(sym, market.Midnight(time.Now()), bid+10, bid-10, bid)
	}

	f := &fixture{
		feed:       feed,
		classifier: &fixedClassifier{status: map[models.MCanonicalSymbol]models.MMarketStatus{}},
		registry:   registry.New(),
		exchanger:  &recordingExchanger{},
		normalizer: symbols.NewNormalizer(map[string]string{"GOLD": "XAUUSD", "SILVER": "XAGUSD", "PLATINUM": "XPTUSD"}),
	}
	f.cache = cache.NewRateCache(feed, market.NewTradingCalendar("", time.Local, nil), log)
	f.sched = &Scheduler{
		Feed:       feed,
		Session:    feed,
		Classifier: f.classifier,
		Cache:      f.cache,
		Registry:   f.registry,
		Normalizer: f.normalizer,
		Exchanger:  f.exchanger,
		Interval:   5 * time.Millisecond,
		Logger:     log,
	}
	return f
}

func (f *fixture) subscribe(connID string, aliases ...string) {
	f.registry.Register(connID)
	f.registry.Subscribe(connID, f.normalizer.NormalizeAll(aliases))
}

func TestTick_ThreeAliasesThreeEventsToOneConnection(t *testing.T) {
	f := newFixture()
	f.subscribe("c1", "GOLD", "SILVER", "PLATINUM")
	f.registry.Register("c2")

	n := f.sched.Tick(context.Background(), time.Now())

	assert.Equal(t, 3, n)
	got := f.exchanger.to("c1")
	require.Len(t, got, 3)
	names := map[string]bool{}
	for _, d := range got {
		assert.Equal(t, models.EventMarketData, d.event)
		names[d.snap.Symbol] = true
	}
	assert.Equal(t, map[string]bool{"Gold": true, "Silver": true, "Platinum": true}, names)
	assert.Empty(t, f.exchanger.to("c2"))
}

func TestTick_OpenBidEqualsTickBid(t *testing.T) {
	f := newFixture()
	f.subscribe("c1", "gold")

	f.sched.Tick(context.Background(), time.Now())

	got := f.exchanger.to("c1")
	require.Len(t, got, 1)
	assert.Equal(t, 2345.67, got[0].snap.Bid)
	assert.Equal(t, 2355.67, got[0].snap.High)
	assert.Equal(t, models.MarketOpen, got[0].snap.MarketStatus)
}

func TestTick_ClosedBidEqualsLastRecordedClose(t *testing.T) {
	f := newFixture()
	f.subscribe("c1", "GOLD")
	f.cache.RecordClosingSnapshot("XAUUSD", 2301.25, 2310, 2290, time.Now())
	f.classifier.status["XAUUSD"] = models.MarketClosed

	f.sched.Tick(context.Background(), time.Now())

	got := f.exchanger.to("c1")
	require.Len(t, got, 1)
	assert.Equal(t, 2301.25, got[0].snap.Bid)
	assert.Equal(t, models.MarketClosed, got[0].snap.MarketStatus)
	assert.Zero(t, f.feed.CallCount("tick"))
}

func TestTick_ClosedAfterOpenKeepsLastLiveBid(t *testing.T) {
	f := newFixture()
	f.subscribe("c1", "SILVER")
	ctx := context.Background()

	f.sched.Tick(ctx, time.Now())
	f.feed.SetTick("XAGUSD", 1) // must not leak into the closed snapshot
	f.classifier.status["XAGUSD"] = models.MarketClosed
	f.exchanger.reset()

	f.sched.Tick(ctx, time.Now())

	got := f.exchanger.to("c1")
	require.Len(t, got, 1)
	assert.Equal(t, 29.81, got[0].snap.Bid)
}

func TestTick_MissingRangeKeepsStoredClosingRange(t *testing.T) {
	f := newFixture()
	f.subscribe("c1", "GOLD")
	f.cache.RecordClosingSnapshot("XAUUSD", 2301.25, 2310, 2290, time.Now())
	f.feed.Daily = map[models.MCanonicalSymbol][]models.MBar{}
	ctx := context.Background()

	f.sched.Tick(ctx, time.Now())

	snap, ok := f.cache.LastClosing("XAUUSD")
	require.True(t, ok)
	assert.Equal(t, 2345.67, snap.Close)
	assert.Equal(t, 2310.0, snap.High)
	assert.Equal(t, 2290.0, snap.Low)

	f.classifier.status["XAUUSD"] = models.MarketClosed
	f.exchanger.reset()
	f.sched.Tick(ctx, time.Now())

	got := f.exchanger.to("c1")
	require.Len(t, got, 1)
	assert.Equal(t, 2345.67, got[0].snap.Bid)
	assert.Equal(t, 2310.0, got[0].snap.High)
	assert.Equal(t, 2290.0, got[0].snap.Low)
}

func TestTick_ClosedWithoutSnapshotReportsZeros(t *testing.T) {
	f := newFixture()
	f.subscribe("c1", "PLATINUM")
	f.classifier.status["XPTUSD"] = models.MarketClosed
	f.feed.Daily = map[models.MCanonicalSymbol][]models.MBar{}

	f.sched.Tick(context.Background(), time.Now())

	got := f.exchanger.to("c1")
	require.Len(t, got, 1)
	assert.Zero(t, got[0].snap.Bid)
	assert.Zero(t, got[0].snap.High)
}

func TestTick_UnknownFollowsLivePath(t *testing.T) {
	f := newFixture()
	f.subscribe("c1", "GOLD")
	f.classifier.status["XAUUSD"] = models.MarketUnknown

	f.sched.Tick(context.Background(), time.Now())

	got := f.exchanger.to("c1")
	require.Len(t, got, 1)
	assert.Equal(t, 2345.67, got[0].snap.Bid)
	assert.Equal(t, models.MarketUnknown, got[0].snap.MarketStatus)
}

func TestTick_OneFailingSymbolDoesNotSuppressOthers(t *testing.T) {
	f := newFixture()
	f.subscribe("c1", "GOLD", "SILVER", "PLATINUM")
	f.feed.SelectErr["XAGUSD"] = helpers.ErrSymbolUnavailable
	f.feed.PanicOn["XPTUSD"] = true

	n := f.sched.Tick(context.Background(), time.Now())

	assert.Equal(t, 1, n)
	got := f.exchanger.to("c1")
	require.Len(t, got, 1)
	assert.Equal(t, "Gold", got[0].snap.Symbol)
}

func TestTick_MissingTickSkipsSymbol(t *testing.T) {
	f := newFixture()
	f.subscribe("c1", "GOLD", "SILVER")
	delete(f.feed.Ticks, "XAUUSD")

	f.sched.Tick(context.Background(), time.Now())

	got := f.exchanger.to("c1")
	require.Len(t, got, 1)
	assert.Equal(t, "Silver", got[0].snap.Symbol)
}

func TestTick_DroppedConnectionGetsNothing(t *testing.T) {
	f := newFixture()
	f.subscribe("c1", "GOLD")
	f.registry.Drop("c1")

	n := f.sched.Tick(context.Background(), time.Now())

	assert.Zero(t, n)
	assert.Empty(t, f.exchanger.to("c1"))
	assert.Zero(t, f.feed.CallCount("select"))
}

func TestTick_ResolvesEachSymbolOncePerTick(t *testing.T) {
	f := newFixture()
	f.subscribe("c1", "GOLD")
	f.subscribe("c2", "GOLD")
	f.subscribe("c3", "GOLD", "SILVER")

	n := f.sched.Tick(context.Background(), time.Now())

	assert.Equal(t, 4, n)
	assert.Equal(t, 2, f.feed.CallCount("select"))
	assert.Equal(t, 2, f.feed.CallCount("tick"))
}

func TestTick_SessionLossSkipsTick(t *testing.T) {
	f := newFixture()
	f.subscribe("c1", "GOLD")
	f.feed.Session = false
	f.feed.LoginErr = errors.New("terminal offline")

	assert.Zero(t, f.sched.Tick(context.Background(), time.Now()))
	assert.Equal(t, 1, f.feed.CallCount("login"))

	f.feed.LoginErr = nil
	assert.Equal(t, 1, f.sched.Tick(context.Background(), time.Now()))
}

func TestTick_PublishesOncePerSymbol(t *testing.T) {
	f := newFixture()
	pub := &recordingPublisher{}
	f.sched.Publishers = append(f.sched.Publishers, pub)
	f.subscribe("c1", "GOLD", "SILVER")
	f.subscribe("c2", "GOLD")

	f.sched.Tick(context.Background(), time.Now())

	require.Len(t, pub.batches, 1)
	assert.Len(t, pub.batches[0], 2)

	// A failing mirror never blocks delivery.
	pub.err = errors.New("down")
	f.exchanger.reset()
	assert.Equal(t, 3, f.sched.Tick(context.Background(), time.Now()))
}

func TestResolve_KeyedByDisplayName(t *testing.T) {
	f := newFixture()

	got := f.sched.Resolve(context.Background(), []string{"gold", "SILVER", "gold"}, time.Now())

	require.Len(t, got, 2)
	assert.Equal(t, 2345.67, got["Gold"].Bid)
	assert.Equal(t, 29.81, got["Silver"].Bid)
}

func TestStartStop(t *testing.T) {
	f := newFixture()
	f.subscribe("c1", "GOLD")

	require.NoError(t, f.sched.Start(context.Background()))
	assert.Error(t, f.sched.Start(context.Background()))

	assert.Eventually(t, func() bool {
		return len(f.exchanger.to("c1")) >= 2
	}, time.Second, 5*time.Millisecond)

	f.sched.Stop()
	count := len(f.exchanger.to("c1"))
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, count, len(f.exchanger.to("c1")))

	f.sched.Stop()
}
