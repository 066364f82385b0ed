package usecase

import (
	"context"
	"testing"

	"SignalRelay/internal/domain/models"
	"SignalRelay/internal/domain/service"
	"SignalRelay/pkg/logger"
	"SignalRelay/pkg/metrics"
)

func testLogger() *logger.Logger { return logger.NewNop() }

func nopMetrics() metrics.Nop { return metrics.Nop{} }

func dispatchSignal(h *harness) models.DispatchSignal {
	stored, _, err := h.signals.Upsert(context.Background(), service.BuildSignal(goldRaw(), testNow))
	if err != nil {
		panic(err)
	}
	return service.ToDispatch(stored)
}

func TestDispatchGatesByEntitlement(t *testing.T) {
	auto := activeSub(1, "gold_monthly", true, true)
	auto.SymbolSuffix = ".pro"
	plain := activeSub(2, "gold_monthly", false, false)
	forex := activeSub(3, "forex_monthly", true, true)
	muted := activeSub(4, "all_monthly", false, false)
	muted.NotificationsOn = false
	lapsed := activeSub(5, "gold_monthly", false, false)
	lapsed.Main.EndsAt = testNow.Add(-1)

	h := newHarness(auto, plain, forex, muted, lapsed)
	h.relay.connected[1] = true

	report, err := h.dispatcher.Dispatch(context.Background(), dispatchSignal(h))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if report.Eligible != 2 || report.Notified != 2 || report.Relayed != 1 {
		t.Fatalf("unexpected report %+v", report)
	}

	if len(h.relay.sent) != 1 {
		t.Fatalf("want 1 relayed command, got %d", len(h.relay.sent))
	}
	cmd := h.relay.sent[0].cmd
	if cmd.OrderType != models.OrderMarket || cmd.Signal.Pair != "XAUUSD.pro" || cmd.Signal.Direction != models.DirectionBuy {
		t.Fatalf("unexpected command %+v", cmd)
	}

	autoMsgs := h.messenger.to(1)
	if len(autoMsgs) != 1 || len(autoMsgs[0].Buttons) != 1 {
		t.Fatalf("add-on holder should get the manual trade button: %+v", autoMsgs)
	}
	plainMsgs := h.messenger.to(2)
	if len(plainMsgs) != 1 || len(plainMsgs[0].Buttons) != 0 {
		t.Fatalf("plain subscriber should get a bare message: %+v", plainMsgs)
	}
	for _, id := range []int64{3, 4, 5} {
		if n := len(h.messenger.to(id)); n != 0 {
			t.Fatalf("subscriber %d should not be notified, got %d", id, n)
		}
	}
	if len(h.sightings.deliveries) != 3 {
		t.Fatalf("want 3 deliveries logged, got %d", len(h.sightings.deliveries))
	}
	if h.events.count(models.EventTradeRelayed) != 1 {
		t.Fatalf("want one trade.relayed event")
	}
}

func TestDispatchIsolatesFailures(t *testing.T) {
	flaky := activeSub(1, "gold_monthly", false, false)
	broken := activeSub(2, "gold_monthly", false, false)
	healthy := activeSub(3, "gold_monthly", false, false)
	h := newHarness(flaky, broken, healthy)
	h.messenger.failures[1] = 1
	h.messenger.failures[2] = 5

	report, err := h.dispatcher.Dispatch(context.Background(), dispatchSignal(h))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if report.Notified != 2 || report.Failed != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if len(h.messenger.to(1)) != 1 {
		t.Fatalf("one retry should deliver to the flaky chat")
	}
	if h.messenger.failures[2] != 3 {
		t.Fatalf("broken chat should be tried exactly twice, %d failures left", h.messenger.failures[2])
	}
	if len(h.messenger.to(3)) != 1 {
		t.Fatalf("later recipients must still be served")
	}
}

func TestDispatchAutoTradeWithoutConnection(t *testing.T) {
	h := newHarness(activeSub(1, "gold_monthly", true, true))
	report, err := h.dispatcher.Dispatch(context.Background(), dispatchSignal(h))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if report.Relayed != 0 || report.Notified != 1 {
		t.Fatalf("offline client: relay dropped, message still sent: %+v", report)
	}
	if h.sightings.deliveries[0].Outcome != string(models.Dropped) {
		t.Fatalf("relay delivery should be logged as dropped: %+v", h.sightings.deliveries[0])
	}
}
