package repository

import (
	"context"
	"database/sql"
	"fmt"

	"SignalRelay/internal/domain/models"
	"SignalRelay/internal/domain/repository"
	pkgch "SignalRelay/pkg/clickhouse"
	"SignalRelay/pkg/logger"
)

// SightingSchema returns the DDL for the analytics tables in database.
func SightingSchema(database string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.signal_sightings (
            seen_at DateTime64(3),
            fingerprint String,
            pair LowCardinality(String),
            timeframe LowCardinality(String),
            trading_style LowCardinality(String),
            pattern_name String,
            is_new UInt8,
            source LowCardinality(String)
        ) ENGINE = MergeTree ORDER BY (pair, seen_at)`, database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.deliveries (
            at DateTime64(3),
            signal_id Int64,
            subscriber_id Int64,
            channel LowCardinality(String),
            outcome LowCardinality(String),
            error String
        ) ENGINE = MergeTree ORDER BY (subscriber_id, at)`, database),
	}
}

// CHSightingLog appends sightings and deliveries to ClickHouse.
type CHSightingLog struct {
	db       *sql.DB
	database string
	l        *logger.Logger
}

func NewCHSightingLog(ch *pkgch.Client, l *logger.Logger) repository.SightingLog {
	return &CHSightingLog{db: ch.DB(), database: ch.Database(), l: l.With(logger.String("component", "clickhouse_log"))}
}

func (s *CHSightingLog) RecordSightings(ctx context.Context, sightings []models.SignalSighting) error {
	if len(sightings) == 0 {
		return nil
	}
	q := fmt.Sprintf("INSERT INTO %s.signal_sightings (seen_at, fingerprint, pair, timeframe, trading_style, pattern_name, is_new, source)", s.database)
	return s.batch(ctx, q, len(sightings), func(stmt *sql.Stmt, i int) error {
		v := sightings[i]
		var isNew uint8
		if v.IsNew {
			isNew = 1
		}
		_, err := stmt.ExecContext(ctx, v.SeenAt, v.Fingerprint, v.Pair, v.Timeframe, string(v.TradingStyle), v.PatternName, isNew, v.Source)
		return err
	})
}

func (s *CHSightingLog) RecordDeliveries(ctx context.Context, deliveries []models.Delivery) error {
	if len(deliveries) == 0 {
		return nil
	}
	q := fmt.Sprintf("INSERT INTO %s.deliveries (at, signal_id, subscriber_id, channel, outcome, error)", s.database)
	return s.batch(ctx, q, len(deliveries), func(stmt *sql.Stmt, i int) error {
		d := deliveries[i]
		_, err := stmt.ExecContext(ctx, d.At, d.SignalID, d.SubscriberID, d.Channel, d.Outcome, d.Error)
		return err
	})
}

// batch uses the driver's prepared-batch protocol: rows appended to the
// statement are sent in one block on commit.
func (s *CHSightingLog) batch(ctx context.Context, query string, n int, appendRow func(*sql.Stmt, int) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare batch: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if err := appendRow(stmt, i); err != nil {
			_ = tx.Rollback()
			s.l.Error("clickhouse append row", logger.Error(err))
			return fmt.Errorf("append row: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		s.l.Error("clickhouse commit batch", logger.Int("rows", n), logger.Error(err))
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// Close is a no-op; the client is owned by the caller.
func (s *CHSightingLog) Close() error { return nil }
