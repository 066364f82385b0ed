package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"SignalRelay/internal/domain/models"
	"SignalRelay/internal/domain/repository"
	"SignalRelay/internal/domain/service"
)

func newTestData(t *testing.T) *Data {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sqlite pool: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewData(db)
}

func price(v float64) *float64 { return &v }

func rawGold(age string) models.RawSignal {
	return models.RawSignal{
		Pair:         "Gold Spot",
		Timeframe:    "1H",
		PatternName:  "Triangle",
		PatternAge:   age,
		EntryPrice:   price(2300.5),
		TakeProfit:   price(2350),
		StopLoss:     price(2280),
		TargetPeriod: "2 hours",
	}
}

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestSignalUpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := NewSignalRepository(newTestData(t))

	first, isNew, err := repo.Upsert(ctx, service.BuildSignal(rawGold("1 hour"), base))
	if err != nil || !isNew {
		t.Fatalf("first upsert isNew=%v err=%v", isNew, err)
	}
	if first.ID == 0 || first.Pair != "XAUUSD" || first.TradingStyle != models.StyleScalper {
		t.Fatalf("unexpected stored signal %+v", first)
	}

	again := service.BuildSignal(rawGold("3 hours"), base.Add(time.Hour))
	second, isNew, err := repo.Upsert(ctx, again)
	if err != nil || isNew {
		t.Fatalf("second upsert isNew=%v err=%v", isNew, err)
	}
	if second.ID != first.ID || second.PatternAge != "3 hours" {
		t.Fatalf("mutable fields not updated: %+v", second)
	}
	if !second.LastSeenAt.Equal(base.Add(time.Hour)) {
		t.Fatalf("last seen = %v", second.LastSeenAt)
	}
	if !second.CreatedAt.Equal(base) {
		t.Fatalf("created_at must not change, got %v", second.CreatedAt)
	}
}

func TestSignalUpsertConcurrentSightingsYieldOneNew(t *testing.T) {
	ctx := context.Background()
	repo := NewSignalRepository(newTestData(t))

	var wg sync.WaitGroup
	var mu sync.Mutex
	news := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, isNew, err := repo.Upsert(ctx, service.BuildSignal(rawGold("1 hour"), base))
			if err != nil {
				t.Errorf("upsert: %v", err)
				return
			}
			if isNew {
				mu.Lock()
				news++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if news != 1 {
		t.Fatalf("isNew reported %d times, want 1", news)
	}
}

func TestReconcile(t *testing.T) {
	ctx := context.Background()
	repo := NewSignalRepository(newTestData(t))

	a, _, _ := repo.Upsert(ctx, service.BuildSignal(rawGold("1 hour"), base))
	other := rawGold("1 hour")
	other.Pair = "EURUSD"
	b, _, _ := repo.Upsert(ctx, service.BuildSignal(other, base))

	if n, err := repo.Reconcile(ctx, nil); err != nil || n != 0 {
		t.Fatalf("Reconcile(empty) = %d, %v", n, err)
	}
	n, err := repo.Reconcile(ctx, []string{a.Fingerprint})
	if err != nil || n != 1 {
		t.Fatalf("Reconcile() = %d, %v", n, err)
	}
	if _, err := repo.GetByID(ctx, b.ID); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("absent signal should be deleted, got %v", err)
	}
	if _, err := repo.GetByID(ctx, a.ID); err != nil {
		t.Fatalf("active signal deleted: %v", err)
	}
}

func TestListRecent(t *testing.T) {
	ctx := context.Background()
	repo := NewSignalRepository(newTestData(t))
	for i := 0; i < 7; i++ {
		raw := rawGold("1 hour")
		raw.EntryPrice = price(2300 + float64(i))
		if _, _, err := repo.Upsert(ctx, service.BuildSignal(raw, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	got, err := repo.ListRecent(ctx, "XAUUSD", models.StyleScalper, 5)
	if err != nil || len(got) != 5 {
		t.Fatalf("ListRecent() = %d, %v", len(got), err)
	}
	if *got[0].EntryPrice != 2306 {
		t.Fatalf("newest first expected, got entry %v", *got[0].EntryPrice)
	}
}

func TestSubscriberGetOrCreateAndSave(t *testing.T) {
	ctx := context.Background()
	repo := NewSubscriberRepository(newTestData(t))

	s, err := repo.GetOrCreate(ctx, models.Requester{ID: 42, Username: "trader", FirstName: "Ana"})
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if !s.NotificationsOn || s.Main.Status != models.StatusNone {
		t.Fatalf("unexpected new subscriber %+v", s)
	}

	s.MainPackage = "gold_monthly"
	s.Main = models.Subscription{Status: models.StatusActive, EndsAt: base.Add(24 * time.Hour)}
	if err := repo.SaveEntitlements(ctx, s); err != nil {
		t.Fatalf("SaveEntitlements() error = %v", err)
	}

	again, err := repo.GetOrCreate(ctx, models.Requester{ID: 42, Username: "trader2", FirstName: "Ana"})
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if again.MainPackage != "gold_monthly" || again.Username != "trader2" {
		t.Fatalf("existing subscriber overwritten: %+v", again)
	}
	if _, err := repo.Get(ctx, 7); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func seedSubscriber(t *testing.T, repo repository.SubscriberStore, s *models.Subscriber) {
	t.Helper()
	ctx := context.Background()
	if _, err := repo.GetOrCreate(ctx, models.Requester{ID: s.ID, Username: s.Username, FirstName: s.FirstName}); err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if err := repo.SaveEntitlements(ctx, s); err != nil {
		t.Fatalf("SaveEntitlements() error = %v", err)
	}
	if err := repo.SavePreferences(ctx, s); err != nil {
		t.Fatalf("SavePreferences() error = %v", err)
	}
}

func TestSubscriberStaleWritersKeepEachOther(t *testing.T) {
	ctx := context.Background()
	data := newTestData(t)
	repo := NewSubscriberRepository(data)
	gold, _ := service.DefaultCatalog().Get("gold_monthly")

	desk, err := repo.GetOrCreate(ctx, models.Requester{ID: 42, Username: "trader"})
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}

	err = data.Exec(ctx, func(ctx context.Context) error {
		paid, err := repo.GetForUpdate(ctx, 42)
		if err != nil {
			return err
		}
		if err := service.ApplyPurchase(paid, gold, base); err != nil {
			return err
		}
		return repo.SaveEntitlements(ctx, paid)
	})
	if err != nil {
		t.Fatalf("confirm payment: %v", err)
	}

	// desk still holds the pre-payment row.
	service.ToggleNotifications(desk)
	if _, err := service.SetSymbolAffix(desk, models.AffixSuffix, ".m"); err != nil {
		t.Fatalf("SetSymbolAffix() error = %v", err)
	}
	if err := repo.SavePreferences(ctx, desk); err != nil {
		t.Fatalf("SavePreferences() error = %v", err)
	}

	got, err := repo.Get(ctx, 42)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Main.Status != models.StatusActive || got.MainPackage != "gold_monthly" {
		t.Fatalf("paid entitlement lost: main=%+v package=%q", got.Main, got.MainPackage)
	}
	if got.NotificationsOn || got.SymbolSuffix != ".m" {
		t.Fatalf("preference edit lost: %+v", got)
	}

	// The reverse order: an entitlement write from a stale copy keeps the
	// preferences saved in between.
	stale, _ := repo.Get(ctx, 42)
	got.NotificationsOn = true
	if err := repo.SavePreferences(ctx, got); err != nil {
		t.Fatalf("SavePreferences() error = %v", err)
	}
	stale.Main.EndsAt = base.Add(60 * 24 * time.Hour)
	if err := repo.SaveEntitlements(ctx, stale); err != nil {
		t.Fatalf("SaveEntitlements() error = %v", err)
	}
	got, _ = repo.Get(ctx, 42)
	if !got.NotificationsOn || !got.Main.EndsAt.Equal(base.Add(60*24*time.Hour)) {
		t.Fatalf("unexpected row after stale entitlement write: %+v", got)
	}

	if err := repo.SavePreferences(ctx, models.NewSubscriber(7, "", "")); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown subscriber, got %v", err)
	}
}

func TestSubscriberListNotifiableAndExpire(t *testing.T) {
	ctx := context.Background()
	repo := NewSubscriberRepository(newTestData(t))

	active := models.NewSubscriber(1, "a", "A")
	active.Main = models.Subscription{Status: models.StatusActive, EndsAt: base.Add(time.Hour)}
	active.Addon = models.Subscription{Status: models.StatusActive, EndsAt: base.Add(-time.Hour)}
	active.AutoTrade = true
	muted := models.NewSubscriber(2, "b", "B")
	muted.Main = models.Subscription{Status: models.StatusActive, Unbounded: true}
	muted.NotificationsOn = false
	lapsed := models.NewSubscriber(3, "c", "C")
	lapsed.Main = models.Subscription{Status: models.StatusActive, EndsAt: base.Add(-time.Minute)}
	for _, s := range []*models.Subscriber{active, muted, lapsed} {
		seedSubscriber(t, repo, s)
	}

	list, err := repo.ListNotifiable(ctx)
	if err != nil || len(list) != 2 {
		t.Fatalf("ListNotifiable() = %d, %v", len(list), err)
	}

	mainN, addonN, err := repo.ExpireLapsed(ctx, base)
	if err != nil || mainN != 1 || addonN != 1 {
		t.Fatalf("ExpireLapsed() = %d, %d, %v", mainN, addonN, err)
	}
	got, _ := repo.Get(ctx, 1)
	if got.Addon.Status != models.StatusExpired || got.AutoTrade {
		t.Fatalf("add-on should lapse with auto-trade off: %+v", got)
	}
	if got.Main.Status != models.StatusActive {
		t.Fatalf("main should stay active")
	}
	unbounded, _ := repo.Get(ctx, 2)
	if unbounded.Main.Status != models.StatusActive {
		t.Fatalf("unbounded subscription must not lapse")
	}
}

func TestInvoiceMarkPaidOnce(t *testing.T) {
	ctx := context.Background()
	repo := NewInvoiceRepository(newTestData(t))
	ref := models.Reference{SubscriberID: 42, PackageKey: "gold_monthly", Nonce: "n1"}.String()

	if err := repo.Create(ctx, &models.Invoice{ReferenceID: ref, SubscriberID: 42, PackageKey: "gold_monthly", PaymentURL: "https://pay", CreatedAt: base}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	ok, err := repo.MarkPaid(ctx, ref, "tx-1", base.Add(time.Minute))
	if err != nil || !ok {
		t.Fatalf("first MarkPaid() = %v, %v", ok, err)
	}
	ok, err = repo.MarkPaid(ctx, ref, "tx-2", base.Add(2*time.Minute))
	if err != nil || ok {
		t.Fatalf("second MarkPaid() = %v, %v", ok, err)
	}
	inv, err := repo.GetByReference(ctx, ref)
	if err != nil || inv.Status != models.InvoicePaid || inv.ExternalTxID != "tx-1" {
		t.Fatalf("unexpected invoice %+v, %v", inv, err)
	}
	if _, err := repo.GetByReference(ctx, "user-1-package-x-y"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestInvoicePendingWindowAndExpiry(t *testing.T) {
	ctx := context.Background()
	repo := NewInvoiceRepository(newTestData(t))
	mk := func(nonce string, age time.Duration) {
		ref := models.Reference{SubscriberID: 1, PackageKey: "gold_monthly", Nonce: nonce}.String()
		if err := repo.Create(ctx, &models.Invoice{ReferenceID: ref, SubscriberID: 1, PackageKey: "gold_monthly", PaymentURL: "u", CreatedAt: base.Add(-age)}); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}
	mk("fresh", 10*time.Minute)
	mk("due", 2*time.Hour)
	mk("stale", 30*time.Hour)

	due, err := repo.ListPending(ctx, base.Add(-24*time.Hour), base.Add(-time.Hour))
	if err != nil || len(due) != 1 || due[0].ReferenceID != "user-1-package-gold_monthly-due" {
		t.Fatalf("ListPending() = %+v, %v", due, err)
	}
	n, err := repo.ExpireStale(ctx, base.Add(-24*time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("ExpireStale() = %d, %v", n, err)
	}
}

func TestTransactionRollback(t *testing.T) {
	ctx := context.Background()
	data := newTestData(t)
	subs := NewSubscriberRepository(data)
	boom := errors.New("boom")

	err := data.Exec(ctx, func(ctx context.Context) error {
		if _, err := subs.GetOrCreate(ctx, models.Requester{ID: 9, Username: "x"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Exec() error = %v", err)
	}
	if _, err := subs.Get(ctx, 9); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("write should roll back, got %v", err)
	}
}

func TestLocalLocker(t *testing.T) {
	l := NewLocalLocker()
	unlock, err := l.Lock(context.Background(), "ref")
	if err != nil {
		t.Fatalf("Lock() error = %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(ctx, "ref"); err == nil {
		t.Fatalf("second Lock should block until the context expires")
	}
	_ = unlock(context.Background())
	if _, err := l.Lock(context.Background(), "ref"); err != nil {
		t.Fatalf("Lock after unlock: %v", err)
	}
}
