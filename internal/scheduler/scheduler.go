// Package scheduler runs periodic maintenance on robfig/cron.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"SignalRelay/pkg/logger"
)

// Task is one periodic job. Spec accepts the standard five-field syntax and
// descriptors such as "@hourly" or "@every 15m".
type Task struct {
	Name    string
	Spec    string
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

type Scheduler struct {
	cron  *cron.Cron
	log   *logger.Logger
	tasks []Task
}

// New registers every task; an invalid spec fails construction. Overlapping
// runs of the same task are skipped.
func New(log *logger.Logger, tasks ...Task) (*Scheduler, error) {
	l := log.With(logger.String("component", "scheduler"))
	cl := cronLogger{l}
	s := &Scheduler{
		cron:  cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		log:   l,
		tasks: tasks,
	}
	for _, t := range tasks {
		t := t
		if _, err := s.cron.AddFunc(t.Spec, func() { s.run(t) }); err != nil {
			return nil, fmt.Errorf("schedule %s (%q): %w", t.Name, t.Spec, err)
		}
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	for _, t := range s.tasks {
		s.log.Info("task scheduled", logger.String("task", t.Name), logger.String("spec", t.Spec))
	}
}

// Stop prevents new runs and waits for running ones until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}

func (s *Scheduler) run(t Task) {
	timeout := t.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := time.Now()
	if err := t.Run(ctx); err != nil {
		s.log.Error("task failed", logger.String("task", t.Name), logger.Error(err))
		return
	}
	s.log.Debug("task finished", logger.String("task", t.Name), logger.Duration("took", time.Since(start)))
}

// cronLogger adapts the app logger to cron.Logger.
type cronLogger struct {
	l *logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug(msg, fields(keysAndValues)...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error(msg, append(fields(keysAndValues), logger.Error(err))...)
}

func fields(kv []interface{}) []logger.Field {
	out := make([]logger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		out = append(out, logger.Any(key, kv[i+1]))
	}
	return out
}
