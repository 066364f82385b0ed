package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"SignalRelay/internal/domain/models"
	"SignalRelay/internal/domain/service"
	"SignalRelay/internal/service/ratelimit"
	"SignalRelay/internal/service/relay"
	"SignalRelay/pkg/cache"
	"SignalRelay/pkg/logger"
	"SignalRelay/pkg/metrics"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

func price(v float64) *float64 { return &v }

func goldRaw() models.RawSignal {
	return models.RawSignal{
		Pair:         "Gold Spot",
		Timeframe:    "H1",
		PatternName:  "Triangle",
		PatternType:  "Breakout",
		PatternAge:   "2 hours ago",
		EntryPrice:   price(2300.5),
		TakeProfit:   price(2320),
		StopLoss:     price(2290),
		TargetPeriod: "8 hours",
	}
}

type fakeSignals struct {
	mu      sync.Mutex
	byFP    map[string]*models.Signal
	nextID  int64
	failFor string
	kept    []string
}

func newFakeSignals() *fakeSignals { return &fakeSignals{byFP: map[string]*models.Signal{}} }

func (f *fakeSignals) Upsert(_ context.Context, s *models.Signal) (*models.Signal, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor != "" && s.Pair == f.failFor {
		return nil, false, errors.New("db unavailable")
	}
	if cur, ok := f.byFP[s.Fingerprint]; ok {
		cur.PatternAge, cur.TradingStyle, cur.LastSeenAt = s.PatternAge, s.TradingStyle, s.LastSeenAt
		cp := *cur
		return &cp, false, nil
	}
	f.nextID++
	cp := *s
	cp.ID = f.nextID
	f.byFP[s.Fingerprint] = &cp
	out := cp
	return &out, true, nil
}

func (f *fakeSignals) Reconcile(_ context.Context, active []string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kept = append([]string(nil), active...)
	if len(active) == 0 {
		return 0, nil
	}
	keep := map[string]bool{}
	for _, fp := range active {
		keep[fp] = true
	}
	var n int64
	for fp := range f.byFP {
		if !keep[fp] {
			delete(f.byFP, fp)
			n++
		}
	}
	return n, nil
}

func (f *fakeSignals) GetByID(_ context.Context, id int64) (*models.Signal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.byFP {
		if s.ID == id {
			cp := *s
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("signal %d: %w", id, models.ErrNotFound)
}

func (f *fakeSignals) ListRecent(_ context.Context, pair string, style models.TradingStyle, limit int) ([]*models.Signal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Signal
	for _, s := range f.byFP {
		if s.Pair == pair && s.TradingStyle == style {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeSubs struct {
	mu   sync.Mutex
	subs map[int64]*models.Subscriber
}

func newFakeSubs(subs ...*models.Subscriber) *fakeSubs {
	f := &fakeSubs{subs: map[int64]*models.Subscriber{}}
	for _, s := range subs {
		f.subs[s.ID] = s
	}
	return f
}

func (f *fakeSubs) Get(_ context.Context, id int64) (*models.Subscriber, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.subs[id]
	if !ok {
		return nil, fmt.Errorf("subscriber %d: %w", id, models.ErrNotFound)
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSubs) GetOrCreate(ctx context.Context, who models.Requester) (*models.Subscriber, error) {
	f.mu.Lock()
	if _, ok := f.subs[who.ID]; !ok {
		f.subs[who.ID] = models.NewSubscriber(who.ID, who.Username, who.FirstName)
	}
	f.mu.Unlock()
	return f.Get(ctx, who.ID)
}

func (f *fakeSubs) GetForUpdate(ctx context.Context, id int64) (*models.Subscriber, error) {
	return f.Get(ctx, id)
}

func (f *fakeSubs) SavePreferences(_ context.Context, s *models.Subscriber) error {
	return f.update(s.ID, func(cur *models.Subscriber) {
		cur.NotificationsOn, cur.AutoTrade = s.NotificationsOn, s.AutoTrade
		cur.SymbolPrefix, cur.SymbolSuffix = s.SymbolPrefix, s.SymbolSuffix
	})
}

func (f *fakeSubs) SaveEntitlements(_ context.Context, s *models.Subscriber) error {
	return f.update(s.ID, func(cur *models.Subscriber) {
		cur.TrialUsed, cur.MainPackage = s.TrialUsed, s.MainPackage
		cur.Main, cur.Addon = s.Main, s.Addon
	})
}

func (f *fakeSubs) update(id int64, apply func(cur *models.Subscriber)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.subs[id]
	if !ok {
		return fmt.Errorf("subscriber %d: %w", id, models.ErrNotFound)
	}
	cp := *cur
	apply(&cp)
	f.subs[id] = &cp
	return nil
}

func (f *fakeSubs) ListNotifiable(_ context.Context) ([]*models.Subscriber, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Subscriber
	for _, s := range f.subs {
		if s.Main.Status == models.StatusActive && s.NotificationsOn {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeSubs) ExpireLapsed(_ context.Context, now time.Time) (int64, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var main, addon int64
	for _, s := range f.subs {
		mainBefore, addonBefore := s.Main.Status, s.Addon.Status
		service.ExpireLapsed(s, now)
		if s.Main.Status != mainBefore {
			main++
		}
		if s.Addon.Status != addonBefore {
			addon++
		}
	}
	return main, addon, nil
}

func (f *fakeSubs) snapshot(id int64) *models.Subscriber {
	s, _ := f.Get(context.Background(), id)
	return s
}

type fakeInvoices struct {
	mu       sync.Mutex
	invoices map[string]*models.Invoice
	markPaid int
}

func newFakeInvoices() *fakeInvoices { return &fakeInvoices{invoices: map[string]*models.Invoice{}} }

func (f *fakeInvoices) Create(_ context.Context, inv *models.Invoice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *inv
	f.invoices[inv.ReferenceID] = &cp
	return nil
}

func (f *fakeInvoices) GetByReference(_ context.Context, ref string) (*models.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv, ok := f.invoices[ref]
	if !ok {
		return nil, fmt.Errorf("invoice %s: %w", ref, models.ErrNotFound)
	}
	cp := *inv
	return &cp, nil
}

func (f *fakeInvoices) MarkPaid(_ context.Context, ref, txID string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv, ok := f.invoices[ref]
	if !ok || inv.Status != models.InvoicePending {
		return false, nil
	}
	f.markPaid++
	inv.Status, inv.ExternalTxID, inv.PaidAt = models.InvoicePaid, txID, &at
	return true, nil
}

func (f *fakeInvoices) ListPending(_ context.Context, after, before time.Time) ([]*models.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Invoice
	for _, inv := range f.invoices {
		if inv.Status == models.InvoicePending && inv.CreatedAt.After(after) && inv.CreatedAt.Before(before) {
			cp := *inv
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeInvoices) ExpireStale(_ context.Context, before time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, inv := range f.invoices {
		if inv.Status == models.InvoicePending && inv.CreatedAt.Before(before) {
			inv.Status = models.InvoiceExpired
			n++
		}
	}
	return n, nil
}

type passTx struct{}

func (passTx) Exec(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }

type sentMessage struct {
	chatID int64
	msg    models.Message
}

type fakeMessenger struct {
	mu       sync.Mutex
	sent     []sentMessage
	failures map[int64]int // remaining failures per chat
}

func (f *fakeMessenger) Send(_ context.Context, chatID int64, msg models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures[chatID] > 0 {
		f.failures[chatID]--
		return models.ErrDelivery
	}
	f.sent = append(f.sent, sentMessage{chatID: chatID, msg: msg})
	return nil
}

func (f *fakeMessenger) to(chatID int64) []models.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Message
	for _, s := range f.sent {
		if s.chatID == chatID {
			out = append(out, s.msg)
		}
	}
	return out
}

type fakeGateway struct {
	refs []string
	err  error
}

func (f *fakeGateway) CreatePaymentLink(_ context.Context, ref string, _ models.Package) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.refs = append(f.refs, ref)
	return "https://pay.example/" + ref, nil
}

type fakeLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (f *fakeLocker) Lock(_ context.Context, key string) (func(context.Context) error, error) {
	f.mu.Lock()
	if f.locks == nil {
		f.locks = map[string]*sync.Mutex{}
	}
	m, ok := f.locks[key]
	if !ok {
		m = &sync.Mutex{}
		f.locks[key] = m
	}
	f.mu.Unlock()
	m.Lock()
	return func(context.Context) error { m.Unlock(); return nil }, nil
}

type relayed struct {
	subscriberID int64
	cmd          *models.TradeCommand
}

type fakeRelay struct {
	mu        sync.Mutex
	connected map[int64]bool
	sent      []relayed
}

func (f *fakeRelay) Send(id int64, cmd *models.TradeCommand) models.DeliveryOutcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected[id] {
		return models.Dropped
	}
	f.sent = append(f.sent, relayed{id, cmd})
	return models.Delivered
}

func (f *fakeRelay) IsConnected(id int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected[id]
}

type fakeEvents struct {
	mu     sync.Mutex
	events []models.Event
}

func (f *fakeEvents) Publish(_ context.Context, ev models.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeEvents) Close() error { return nil }

func (f *fakeEvents) count(typ string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.events {
		if e.Type == typ {
			n++
		}
	}
	return n
}

type fakeSightings struct {
	mu         sync.Mutex
	sightings  []models.SignalSighting
	deliveries []models.Delivery
}

func (f *fakeSightings) RecordSightings(_ context.Context, s []models.SignalSighting) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sightings = append(f.sightings, s...)
	return nil
}

func (f *fakeSightings) RecordDeliveries(_ context.Context, d []models.Delivery) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deliveries = append(f.deliveries, d...)
	return nil
}

func (f *fakeSightings) Close() error { return nil }

// harness wires every usecase over fakes.
type harness struct {
	signals   *fakeSignals
	subs      *fakeSubs
	invoices  *fakeInvoices
	messenger *fakeMessenger
	gateway   *fakeGateway
	relay     *fakeRelay
	events    *fakeEvents
	sightings *fakeSightings

	ent        *service.Entitlements
	dispatcher *Dispatcher
	ingestor   *Ingestor
	billing    *Billing
	trades     *TradeDesk
	desk       *FrontDesk
}

func newHarness(subs ...*models.Subscriber) *harness {
	h := &harness{
		signals:   newFakeSignals(),
		subs:      newFakeSubs(subs...),
		invoices:  newFakeInvoices(),
		messenger: &fakeMessenger{failures: map[int64]int{}},
		gateway:   &fakeGateway{},
		relay:     &fakeRelay{connected: map[int64]bool{}},
		events:    &fakeEvents{},
		sightings: &fakeSightings{},
		ent:       service.NewEntitlements(service.DefaultCatalog()),
	}
	log := logger.NewNop()
	m := metrics.Nop{}
	notifier := NewNotifier(h.messenger, time.Second)

	h.dispatcher = NewDispatcher(DispatchConfig{}, h.subs, h.ent, notifier, h.relay, h.events, h.sightings, m, log)
	h.dispatcher.now = fixedNow
	h.ingestor = NewIngestor(h.signals, h.dispatcher, h.events, h.sightings, m, log)
	h.ingestor.now = fixedNow
	h.billing = NewBilling(BillingConfig{}, passTx{}, h.invoices, h.subs, h.gateway, &fakeLocker{}, h.ent.Catalog(), notifier, h.events, m, log)
	h.billing.now = fixedNow
	h.trades = NewTradeDesk(h.signals, h.relay, ratelimit.New(2), h.events, m, log)
	h.trades.now = fixedNow
	h.desk = NewFrontDesk(FrontDeskConfig{RelayURL: "wss://relay.example"}, h.subs, h.signals, h.ent, h.billing, h.trades,
		relay.NewTokens("test-secret", time.Hour), cache.NewMemoryCache(), log)
	h.desk.now = fixedNow
	return h
}

func activeSub(id int64, pkg string, addon, autoTrade bool) *models.Subscriber {
	s := models.NewSubscriber(id, fmt.Sprintf("user%d", id), "")
	s.MainPackage = pkg
	s.Main = models.Subscription{Status: models.StatusActive, EndsAt: testNow.Add(24 * time.Hour)}
	if addon {
		s.Addon = models.Subscription{Status: models.StatusActive, EndsAt: testNow.Add(24 * time.Hour)}
	}
	s.AutoTrade = autoTrade
	return s
}
