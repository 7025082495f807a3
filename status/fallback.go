package status

import (
	"context"
	"sync"
	"time"

	"github.com/deckbridge/deckbridge/logging"
)

// DefaultFallbackInterval is the fixed delay between fallback status pushes.
// Longer than the on-demand interval so the always-on loop stays quiet.
const DefaultFallbackInterval = 30 * time.Second

// CablePusher is the readiness + push subset of the cable connection.
type CablePusher interface {
	IsConnected() bool
	SendStatus(data any)
}

// RESTPusher carries a snapshot over the dashboard's respond endpoint.
type RESTPusher interface {
	RespondStatus(ctx context.Context, status any) error
}

// FallbackOptions holds overrides passed to NewFallback.
type FallbackOptions struct {
	// Interval overrides DefaultFallbackInterval.
	Interval time.Duration
	// Logger receives loop logs; defaults to NoOp.
	Logger logging.Logger
}

// Fallback is the always-on status emission loop. It is started
// unconditionally alongside the connection and stopped on teardown, not gated
// by the dashboard's start/stop signaling, so status data reaches the
// dashboard even when the push-detection handshake never arrives. Each tick
// prefers the live cable and falls back to REST.
type Fallback struct {
	producer Producer
	conn     CablePusher
	client   RESTPusher
	interval time.Duration
	logger   logging.Logger

	mu     sync.Mutex
	active bool
	stop   chan struct{}
}

// NewFallback constructs a Fallback loop. conn may be nil, forcing REST.
func NewFallback(producer Producer, conn CablePusher, client RESTPusher, optFns ...func(o *FallbackOptions)) *Fallback {
	opts := FallbackOptions{
		Interval: DefaultFallbackInterval,
		Logger:   logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Fallback{
		producer: producer,
		conn:     conn,
		client:   client,
		interval: opts.Interval,
		logger:   opts.Logger,
	}
}

// Start begins the loop: one push immediately, then one per interval.
// Idempotent.
func (f *Fallback) Start() {
	f.mu.Lock()
	if f.active {
		f.mu.Unlock()
		return
	}
	f.active = true
	stop := make(chan struct{})
	f.stop = stop
	f.mu.Unlock()

	f.logger.Info("status: fallback loop started", "interval", f.interval)
	go f.loop(stop)
}

// Stop cancels the loop. Safe to call when already inactive.
func (f *Fallback) Stop() {
	f.mu.Lock()
	if !f.active {
		f.mu.Unlock()
		return
	}
	f.active = false
	close(f.stop)
	f.stop = nil
	f.mu.Unlock()

	f.logger.Info("status: fallback loop stopped")
}

// IsActive reports whether the loop is running.
func (f *Fallback) IsActive() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

func (f *Fallback) loop(stop chan struct{}) {
	f.tick()

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			f.tick()
		}
	}
}

func (f *Fallback) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), f.interval)
	defer cancel()

	snap, err := f.producer(ctx)
	if err != nil {
		f.logger.Warn("status: snapshot failed, skipping fallback tick", "error", err)
		return
	}
	if snap == nil {
		return
	}

	if f.conn != nil && f.conn.IsConnected() {
		f.conn.SendStatus(snap)
		return
	}
	if err := f.client.RespondStatus(ctx, snap); err != nil {
		f.logger.Warn("status: fallback push failed", "error", err)
	}
}
