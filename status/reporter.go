package status

import (
	"context"
	"sync"
	"time"

	"github.com/deckbridge/deckbridge/logging"
)

// DefaultInterval is the fixed delay between on-demand status pushes.
const DefaultInterval = 15 * time.Second

// ReporterOptions holds overrides passed to NewReporter.
type ReporterOptions struct {
	// Interval overrides DefaultInterval.
	Interval time.Duration
	// Logger receives loop logs; defaults to NoOp.
	Logger logging.Logger
}

// Reporter is the on-demand status emission loop. Start and Stop are driven
// by the dashboard's status-control broadcasts; both are safe to call
// repeatedly.
type Reporter struct {
	producer Producer
	interval time.Duration
	logger   logging.Logger

	mu     sync.Mutex
	active bool
	stop   chan struct{}
}

// NewReporter constructs a Reporter around the external snapshot producer.
func NewReporter(producer Producer, optFns ...func(o *ReporterOptions)) *Reporter {
	opts := ReporterOptions{
		Interval: DefaultInterval,
		Logger:   logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Reporter{producer: producer, interval: opts.Interval, logger: opts.Logger}
}

// Start begins pushing: one snapshot immediately, then one per interval until
// stopped. A warning no-op when already active; the guard keeps a second
// status_requested broadcast from doubling the push rate.
func (r *Reporter) Start(push PushFunc) {
	r.mu.Lock()
	if r.active {
		r.mu.Unlock()
		r.logger.Warn("status: reporter already active, ignoring start")
		return
	}
	r.active = true
	stop := make(chan struct{})
	r.stop = stop
	r.mu.Unlock()

	r.logger.Info("status: reporter started", "interval", r.interval)
	go r.loop(push, stop)
}

// Stop cancels the loop and clears the push callback. Safe to call when
// already inactive.
func (r *Reporter) Stop() {
	r.mu.Lock()
	if !r.active {
		r.mu.Unlock()
		return
	}
	r.active = false
	close(r.stop)
	r.stop = nil
	r.mu.Unlock()

	r.logger.Info("status: reporter stopped")
}

// IsActive reports whether the loop is running.
func (r *Reporter) IsActive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

func (r *Reporter) loop(push PushFunc, stop chan struct{}) {
	r.tick(push)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			r.tick(push)
		}
	}
}

func (r *Reporter) tick(push PushFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), r.interval)
	defer cancel()

	snap, err := r.producer(ctx)
	if err != nil {
		r.logger.Warn("status: snapshot failed, skipping tick", "error", err)
		return
	}
	if snap == nil {
		return
	}
	push(snap)
}
