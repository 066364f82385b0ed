package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"SignalRelay/internal/domain/models"
	"SignalRelay/internal/domain/service"
)

func handle(t *testing.T, h *harness, req models.Request) models.Message {
	t.Helper()
	msg, err := h.desk.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle(%T): %v", req, err)
	}
	return msg
}

func hasCallback(msg models.Message, data string) bool {
	for _, row := range msg.Buttons {
		for _, b := range row {
			if b.CallbackData == data {
				return true
			}
		}
	}
	return false
}

func TestPurchasePreconditions(t *testing.T) {
	used := models.NewSubscriber(1, "", "")
	used.TrialUsed = true
	gold := activeSub(2, "gold_monthly", false, false)
	h := newHarness(used, gold)
	who1 := models.Requester{ID: 1}
	who2 := models.Requester{ID: 2}
	who3 := models.Requester{ID: 3}

	if msg := handle(t, h, models.PurchaseRequest{Requester: who1, PackageKey: "trial_paid"}); !strings.Contains(msg.Text, "only be bought once") {
		t.Fatalf("trial reuse: %q", msg.Text)
	}
	if msg := handle(t, h, models.PurchaseRequest{Requester: who3, PackageKey: "pro_ea_monthly"}); !strings.Contains(msg.Text, "active main package") {
		t.Fatalf("add-on without main: %q", msg.Text)
	}

	msg := handle(t, h, models.PurchaseRequest{Requester: who2, PackageKey: "forex_monthly"})
	if !hasCallback(msg, service.CallbackConfirmReplace("forex_monthly")) {
		t.Fatalf("switching packages should ask for confirmation: %+v", msg)
	}
	if len(h.gateway.refs) != 0 {
		t.Fatalf("no invoice before confirmation")
	}

	msg = handle(t, h, models.PurchaseRequest{Requester: who2, PackageKey: "forex_monthly", ConfirmReplace: true})
	if msg.Buttons[0][0].URL == "" || len(h.gateway.refs) != 1 {
		t.Fatalf("confirmed purchase should return a payment link: %+v", msg)
	}

	msg = handle(t, h, models.ShowPackagesRequest{Requester: who1})
	if hasCallback(msg, service.CallbackSubscribe("trial_paid")) {
		t.Fatalf("used trial should not be offered")
	}
}

func TestToggles(t *testing.T) {
	h := newHarness(activeSub(1, "gold_monthly", false, false), activeSub(2, "gold_monthly", true, false))
	who1, who2 := models.Requester{ID: 1}, models.Requester{ID: 2}

	handle(t, h, models.ToggleAutoTradeRequest{Requester: who1})
	if h.subs.snapshot(1).AutoTrade {
		t.Fatalf("auto-trade must stay off without the add-on")
	}
	handle(t, h, models.ToggleAutoTradeRequest{Requester: who2})
	if !h.subs.snapshot(2).AutoTrade {
		t.Fatalf("add-on holder should be able to enable auto-trade")
	}

	handle(t, h, models.ToggleNotificationsRequest{Requester: who1})
	if h.subs.snapshot(1).NotificationsOn {
		t.Fatalf("notifications should be off")
	}

	handle(t, h, models.SetAffixRequest{Requester: who1, Kind: models.AffixPrefix, Value: "m."})
	if h.subs.snapshot(1).SymbolPrefix != "m." {
		t.Fatalf("prefix not stored")
	}
	handle(t, h, models.SetAffixRequest{Requester: who1, Kind: models.AffixPrefix, Value: "none"})
	if h.subs.snapshot(1).SymbolPrefix != "" {
		t.Fatalf("prefix not cleared")
	}
}

func TestHistoryNarrowsDown(t *testing.T) {
	h := newHarness(activeSub(1, "gold_monthly", true, false), models.NewSubscriber(2, "", ""))
	who := models.Requester{ID: 1}
	if _, _, err := h.ingestor.Ingest(context.Background(), goldRaw(), "test"); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	if msg := handle(t, h, models.HistoryRequest{Requester: models.Requester{ID: 2}}); !hasCallback(msg, service.CallbackShowPackages) {
		t.Fatalf("no package: should point to packages: %+v", msg)
	}

	msg := handle(t, h, models.HistoryRequest{Requester: who})
	if !hasCallback(msg, service.CallbackSelectPair("XAUUSD")) {
		t.Fatalf("pair list: %+v", msg)
	}
	msg = handle(t, h, models.HistoryRequest{Requester: who, Pair: "XAUUSD"})
	if !hasCallback(msg, service.CallbackShowStyle("XAUUSD", models.StyleIntraday)) {
		t.Fatalf("style list: %+v", msg)
	}
	msg = handle(t, h, models.HistoryRequest{Requester: who, Pair: "XAUUSD", Style: models.StyleIntraday})
	if !strings.Contains(msg.Text, "Signal History") || !hasCallback(msg, service.CallbackManualTrade(1)) {
		t.Fatalf("history: %+v", msg)
	}
	if msg := handle(t, h, models.HistoryRequest{Requester: who, Pair: "EURUSD"}); !strings.Contains(msg.Text, "not in your package") {
		t.Fatalf("foreign pair: %q", msg.Text)
	}
}

func TestManualTrade(t *testing.T) {
	h := newHarness(activeSub(1, "gold_monthly", true, false), activeSub(2, "gold_monthly", false, false))
	h.relay.connected[1] = true
	who := models.Requester{ID: 1}
	stored, _, err := h.ingestor.Ingest(context.Background(), goldRaw(), "test")
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}

	msg := handle(t, h, models.ManualTradeRequest{Requester: who, SignalID: stored.ID})
	if !hasCallback(msg, service.CallbackExecute(stored.ID, models.OrderPending)) {
		t.Fatalf("order type prompt: %+v", msg)
	}

	handle(t, h, models.ManualTradeRequest{Requester: who, SignalID: stored.ID, OrderType: models.OrderPending})
	if len(h.relay.sent) != 1 || h.relay.sent[0].cmd.OrderType != models.OrderPending {
		t.Fatalf("pending order not relayed: %+v", h.relay.sent)
	}

	handle(t, h, models.ManualTradeRequest{Requester: models.Requester{ID: 2}, SignalID: stored.ID, OrderType: models.OrderMarket})
	if len(h.relay.sent) != 1 {
		t.Fatalf("subscriber without add-on must not relay")
	}

	// limiter allows 2 per minute
	handle(t, h, models.ManualTradeRequest{Requester: who, SignalID: stored.ID, OrderType: models.OrderMarket})
	msg = handle(t, h, models.ManualTradeRequest{Requester: who, SignalID: stored.ID, OrderType: models.OrderMarket})
	if !strings.Contains(msg.Text, "Too many") || len(h.relay.sent) != 2 {
		t.Fatalf("throttle: %q, relayed %d", msg.Text, len(h.relay.sent))
	}
}

func TestTradeDeskRequiresAddon(t *testing.T) {
	h := newHarness()
	sub := activeSub(1, "gold_monthly", false, false)
	if _, err := h.trades.Execute(context.Background(), sub, 1, models.OrderMarket); !errors.Is(err, models.ErrNotEntitled) {
		t.Fatalf("want ErrNotEntitled, got %v", err)
	}
}

func TestRelayToken(t *testing.T) {
	h := newHarness(activeSub(1, "gold_monthly", true, false))
	msg := handle(t, h, models.RelayTokenRequest{Requester: models.Requester{ID: 1}})
	if !strings.Contains(msg.Text, "wss://relay.example/ws/1") {
		t.Fatalf("token reply: %q", msg.Text)
	}
}

func TestFeedbackAndMaintenance(t *testing.T) {
	h := newHarness(activeSub(1, "gold_monthly", true, true))
	fb := NewFeedback(NewNotifier(h.messenger, 0), testLogger())
	ticket := int64(555)
	err := fb.Report(context.Background(), models.TradeFeedback{SubscriberID: 1, Status: "SUCCESS", TicketID: &ticket, Symbol: "XAUUSD", OrderType: "market"})
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if msgs := h.messenger.to(1); len(msgs) != 1 || !strings.Contains(msgs[0].Text, "555") {
		t.Fatalf("feedback message: %+v", msgs)
	}
	if err := fb.Report(context.Background(), models.TradeFeedback{SubscriberID: 1, Status: "MAYBE"}); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("want ErrValidation, got %v", err)
	}

	m := NewMaintenance(h.subs, h.trades.limiter, testLogger())
	m.now = func() time.Time { return testNow.Add(48 * time.Hour) }
	if err := m.ExpireSubscriptions(context.Background()); err != nil {
		t.Fatalf("ExpireSubscriptions: %v", err)
	}
	sub := h.subs.snapshot(1)
	if sub.Main.Status != models.StatusExpired || sub.Addon.Status != models.StatusExpired || sub.AutoTrade {
		t.Fatalf("lapsed subscriptions not expired: %+v", sub)
	}
}
