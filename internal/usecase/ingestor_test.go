package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"

	"SignalRelay/internal/domain/models"
)

func TestIngestDispatchesFirstSightingOnly(t *testing.T) {
	h := newHarness(activeSub(1, "gold_monthly", false, false))
	ctx := context.Background()

	first, isNew, err := h.ingestor.Ingest(ctx, goldRaw(), "test")
	if err != nil || !isNew {
		t.Fatalf("first Ingest = %v, %v", isNew, err)
	}
	if first.Pair != "XAUUSD" || first.TradingStyle != models.StyleIntraday {
		t.Fatalf("signal not normalised: %+v", first)
	}

	again := goldRaw()
	again.PatternAge = "3 hours ago"
	second, isNew, err := h.ingestor.Ingest(ctx, again, "test")
	if err != nil || isNew {
		t.Fatalf("second Ingest = %v, %v", isNew, err)
	}
	if second.ID != first.ID || second.PatternAge != "3 hours ago" {
		t.Fatalf("re-sighting should update the stored row: %+v", second)
	}

	if got := len(h.messenger.to(1)); got != 1 {
		t.Fatalf("subscriber notified %d times, want 1", got)
	}
	if h.events.count(models.EventSignalCreated) != 1 {
		t.Fatalf("want one signal.created event")
	}
	if len(h.sightings.sightings) != 2 {
		t.Fatalf("want both sightings logged, got %d", len(h.sightings.sightings))
	}
}

func TestIngestRejectsInvalid(t *testing.T) {
	h := newHarness()
	_, _, err := h.ingestor.Ingest(context.Background(), models.RawSignal{Timeframe: "H1"}, "test")
	if !errors.Is(err, models.ErrValidation) {
		t.Fatalf("want ErrValidation, got %v", err)
	}
}

func TestSyncSnapshotReconcilesCompleteCycle(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	stale := goldRaw()
	stale.PatternName = "Flag"
	if _, _, err := h.ingestor.Ingest(ctx, stale, "test"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	res, err := h.ingestor.SyncSnapshot(ctx, []models.RawSignal{goldRaw()}, "test")
	if err != nil {
		t.Fatalf("SyncSnapshot: %v", err)
	}
	if !res.Reconciled || res.Deleted != 1 || res.New != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(h.signals.byFP) != 1 {
		t.Fatalf("stale signal not removed")
	}
}

func TestSyncSnapshotSkipsReconcileOnFailure(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	if _, _, err := h.ingestor.Ingest(ctx, goldRaw(), "test"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	other := goldRaw()
	other.Pair = "EURUSD"
	h.signals.failFor = "EURUSD"

	res, err := h.ingestor.SyncSnapshot(ctx, []models.RawSignal{other}, "test")
	if err != nil {
		t.Fatalf("SyncSnapshot: %v", err)
	}
	if res.Reconciled || res.Failed != 1 {
		t.Fatalf("partial cycle must not reconcile: %+v", res)
	}
	if h.signals.kept != nil {
		t.Fatalf("Reconcile should not have been called")
	}
	if len(h.signals.byFP) != 1 {
		t.Fatalf("stored signals changed")
	}
}

func TestSyncSnapshotDropsInvalidAndReconciles(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	stale := goldRaw()
	stale.PatternName = "Flag"
	if _, _, err := h.ingestor.Ingest(ctx, stale, "test"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	eur := goldRaw()
	eur.Pair = "EURUSD"
	broken := goldRaw()
	broken.Pair = ""

	res, err := h.ingestor.SyncSnapshot(ctx, []models.RawSignal{broken, goldRaw(), eur}, "test")
	if err != nil {
		t.Fatalf("SyncSnapshot: %v", err)
	}
	if res.Invalid != 1 || res.Failed != 0 || res.Stored != 2 {
		t.Fatalf("unexpected counts %+v", res)
	}
	if !res.Reconciled || res.Deleted != 1 {
		t.Fatalf("invalid record must not block reconciliation: %+v", res)
	}
	if len(h.signals.byFP) != 2 {
		t.Fatalf("want 2 stored signals, got %d", len(h.signals.byFP))
	}
}

func TestSignalJobs(t *testing.T) {
	h := newHarness()
	jobs := SignalJobs(h.ingestor, testLogger())
	payload, _ := json.Marshal(SignalBatch{Source: "scraper", Signals: []models.RawSignal{goldRaw(), {Timeframe: "bad"}}})

	for _, j := range jobs {
		if j.Type() != JobSignalIngest {
			continue
		}
		if err := j.Handle(context.Background(), json.RawMessage(payload)); err != nil {
			t.Fatalf("invalid records must not fail the job: %v", err)
		}
	}
	if len(h.signals.byFP) != 1 {
		t.Fatalf("want 1 stored signal, got %d", len(h.signals.byFP))
	}
}

func TestKafkaSignalsHandler(t *testing.T) {
	h := newHarness()
	handler := NewKafkaSignalsHandler("raw", h.ingestor, nopMetrics(), testLogger())

	if err := handler.Handle(context.Background(), []byte("{not json")); err != nil {
		t.Fatalf("undecodable messages are dropped, got %v", err)
	}
	b, _ := json.Marshal(goldRaw())
	if err := handler.Handle(context.Background(), b); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(h.signals.byFP) != 1 {
		t.Fatalf("signal not stored")
	}
}

func TestSourceHeaderHook(t *testing.T) {
	km := kafka.Message{Headers: []kafka.Header{{Key: "source", Value: []byte("mt5-scraper")}}}
	ctx, _, _, err := SourceHeaderHook().BeforeHandle(context.Background(), "raw", km, nil)
	if err != nil {
		t.Fatalf("BeforeHandle: %v", err)
	}
	if got, _ := ctx.Value(sourceCtxKey{}).(string); got != "mt5-scraper" {
		t.Fatalf("source = %q", got)
	}

	ctx, _, _, _ = SourceHeaderHook().BeforeHandle(context.Background(), "raw", kafka.Message{}, nil)
	if ctx.Value(sourceCtxKey{}) != nil {
		t.Fatalf("missing header must leave the context untagged")
	}
}
