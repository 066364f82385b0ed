package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"SignalRelay/internal/domain/models"
	"SignalRelay/pkg/logger"
	"SignalRelay/pkg/queue"
)

// Queue message types for asynchronous ingestion.
const (
	JobSignalIngest   = "signal.ingest"
	JobSignalSnapshot = "signal.snapshot"
)

// SignalBatch is the payload of both ingestion jobs.
type SignalBatch struct {
	Source  string             `json:"source"`
	Signals []models.RawSignal `json:"signals"`
}

// Enqueuer accepts work for the background workers.
type Enqueuer interface {
	Enqueue(ctx context.Context, msgType string, payload interface{}) error
}

type ingestJob struct {
	ing *Ingestor
	log *logger.Logger
}

func (j *ingestJob) Name() string { return "signal-ingest" }
func (j *ingestJob) Type() string { return JobSignalIngest }

// Handle ingests every record. Invalid records are dropped; any other
// failure fails the job so the queue retries it, which is safe because
// upserts are idempotent.
func (j *ingestJob) Handle(ctx context.Context, payload json.RawMessage) error {
	batch, err := queue.ParsePayload[SignalBatch](payload)
	if err != nil {
		return err
	}
	var failed error
	for _, raw := range batch.Signals {
		_, _, err := j.ing.Ingest(ctx, raw, batch.Source)
		switch {
		case err == nil:
		case errors.Is(err, models.ErrValidation):
			j.log.Warn("invalid signal dropped", logger.String("pair", raw.Pair), logger.Error(err))
		default:
			failed = err
		}
	}
	return failed
}

type snapshotJob struct {
	ing *Ingestor
}

func (j *snapshotJob) Name() string { return "signal-snapshot" }
func (j *snapshotJob) Type() string { return JobSignalSnapshot }

func (j *snapshotJob) Handle(ctx context.Context, payload json.RawMessage) error {
	batch, err := queue.ParsePayload[SignalBatch](payload)
	if err != nil {
		return err
	}
	res, err := j.ing.SyncSnapshot(ctx, batch.Signals, batch.Source)
	if err != nil {
		return err
	}
	if res.Failed > 0 && res.Stored == 0 {
		return fmt.Errorf("snapshot from %s: all %d records failed", batch.Source, res.Failed)
	}
	return nil
}

// SignalJobs returns the queue jobs backed by ing.
func SignalJobs(ing *Ingestor, log *logger.Logger) []queue.Job {
	return []queue.Job{
		&ingestJob{ing: ing, log: log.With(logger.String("job", JobSignalIngest))},
		&snapshotJob{ing: ing},
	}
}
