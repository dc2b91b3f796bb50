package noshow

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Monitor wraps the detector in a recurring timer. The interval and every
// threshold come from outside; nothing in here is hardcoded.
type Monitor struct {
	Detector *Detector
	Interval time.Duration
	Log      *zap.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// Start runs a sweep immediately and then on every tick until Stop or the
// parent context ends. Call at most once per Monitor.
func (m *Monitor) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(m.Interval)
		defer ticker.Stop()

		m.sweep(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.sweep(ctx)
			}
		}
	}()
	m.Log.Info("no-show monitoring started", zap.Duration("interval", m.Interval))
}

func (m *Monitor) sweep(ctx context.Context) {
	if _, err := m.Detector.Run(ctx); err != nil {
		m.Log.Error("no-show sweep failed", zap.Error(err))
	}
}

// Stop halts the timer and waits for an in-flight sweep to return.
func (m *Monitor) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
	m.Log.Info("no-show monitoring stopped")
}
