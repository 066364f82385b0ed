package http

import (
	"context"
	"testing"
	"time"

	"SignalRelay/pkg/logger"
)

func TestStartReportsTakenPort(t *testing.T) {
	first := NewServer(logger.NewNop(), nil, WithPort(0), WithMetrics("", nil))
	if err := first.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	defer first.Stop(ctx)

	second := NewServer(logger.NewNop(), nil, WithMetrics("", nil))
	second.config.Addr = first.echo.Listener.Addr().String()
	if err := second.Start(); err == nil {
		t.Fatalf("expected bind error for %s", second.config.Addr)
	}
}
