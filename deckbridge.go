// Package deckbridge provides a high-level façade over the cable connection,
// outbound delivery, status emission loops and the dispatch contract,
// enabling a host to bridge one dashboard account to an agent runtime. Most
// applications interact with this package by:
//  1. Resolving an account record from raw configuration (ResolveAccount)
//  2. Creating a Bridge via New() with a dispatch.Handler and a status.Producer
//  3. Calling Run(ctx) and cancelling the context to tear down
//
// The façade delegates protocol work to the cable, delivery and status
// packages while keeping setup and teardown ergonomics concise. All defaults
// are safe for local development; production deployments typically supply a
// structured logger and tuned intervals.
package deckbridge

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/deckbridge/deckbridge/cable"
	"github.com/deckbridge/deckbridge/delivery"
	"github.com/deckbridge/deckbridge/dispatch"
	"github.com/deckbridge/deckbridge/logging"
	"github.com/deckbridge/deckbridge/session"
	"github.com/deckbridge/deckbridge/status"
)

// ErrNotConfigured reports a missing base URL or token: a caller-level
// "not configured" state, distinct from any protocol error.
var ErrNotConfigured = errors.New("deckbridge: base url and token must be configured")

// Options configures the Bridge instance.
type Options struct {
	// ReconnectDelay overrides cable.DefaultReconnectDelay.
	ReconnectDelay time.Duration

	// StatusInterval overrides status.DefaultInterval for the on-demand loop.
	StatusInterval time.Duration

	// FallbackInterval overrides status.DefaultFallbackInterval for the
	// always-on REST loop.
	FallbackInterval time.Duration

	// Dialer overrides the websocket dialer. Intended for tests.
	Dialer cable.Dialer

	// HTTPClient overrides the REST client's underlying http.Client.
	HTTPClient *http.Client

	// CardHandler enables the optional cards capability. Nil means cards
	// broadcasts are dropped.
	CardHandler func(cable.CardEvent)

	// Sessions overrides the session registry.
	Sessions *session.InMemoryStore

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Bridge aggregates the connection, outbound delivery, status loops and the
// dispatch handler for one dashboard account.
type Bridge struct {
	cfg     cable.Config
	handler dispatch.Handler
	logger  logging.Logger

	conn     *cable.Connection
	client   *delivery.Client
	sender   *delivery.Sender
	reporter *status.Reporter
	fallback *status.Fallback
	sessions *session.InMemoryStore

	mu     sync.Mutex
	runCtx context.Context
}

// New wires a Bridge. cfg must name the dashboard base URL and token, handler
// the agent runtime entry point and producer the external snapshot source.
// The handler and producer are explicit constructor dependencies; the bridge
// holds no process-wide state.
func New(cfg cable.Config, handler dispatch.Handler, producer status.Producer, optFns ...func(o *Options)) (*Bridge, error) {
	if cfg.BaseURL == "" || cfg.Token == "" {
		return nil, ErrNotConfigured
	}
	if handler == nil {
		return nil, errors.New("deckbridge: nil dispatch handler")
	}
	if producer == nil {
		return nil, errors.New("deckbridge: nil snapshot producer")
	}

	opts := Options{
		ReconnectDelay:   cable.DefaultReconnectDelay,
		StatusInterval:   status.DefaultInterval,
		FallbackInterval: status.DefaultFallbackInterval,
		Dialer:           cable.DefaultDialer,
		Logger:           logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Sessions == nil {
		opts.Sessions = session.NewInMemoryStore()
	}

	b := &Bridge{
		cfg:      cfg,
		handler:  handler,
		logger:   opts.Logger,
		sessions: opts.Sessions,
	}

	b.client = delivery.NewClient(cfg.BaseURL, cfg.Token, func(o *delivery.ClientOptions) {
		o.Logger = opts.Logger
		if opts.HTTPClient != nil {
			o.HTTPClient = opts.HTTPClient
		}
	})

	b.conn = cable.NewConnection(cfg, func(o *cable.Options) {
		o.ReconnectDelay = opts.ReconnectDelay
		o.Dialer = opts.Dialer
		o.Logger = opts.Logger
		o.ChatHandler = b.handleChat
		o.CardHandler = opts.CardHandler
		o.StatusStartHandler = b.startStatusPush
		o.StatusStopHandler = b.stopStatusPush
	})

	b.sender = delivery.NewSender(b.conn, b.client, func(o *delivery.SenderOptions) {
		o.Logger = opts.Logger
	})

	producer = b.wrapProducer(producer)

	b.reporter = status.NewReporter(producer, func(o *status.ReporterOptions) {
		o.Interval = opts.StatusInterval
		o.Logger = opts.Logger
	})

	b.fallback = status.NewFallback(producer, b.conn, b.client, func(o *status.FallbackOptions) {
		o.Interval = opts.FallbackInterval
		o.Logger = opts.Logger
	})

	return b, nil
}

// Run connects and blocks until ctx is cancelled, then tears everything down
// deterministically: status loops stopped, reconnect timer cancelled, socket
// closed. No callbacks fire after Run returns. The bridge may be Run again.
func (b *Bridge) Run(ctx context.Context) error {
	b.mu.Lock()
	b.runCtx = ctx
	b.mu.Unlock()

	b.conn.Connect()
	b.fallback.Start()

	<-ctx.Done()

	// Disconnect first: once it returns no broadcast can fire, so a late
	// status request cannot restart the reporter after it is stopped.
	b.conn.Disconnect()
	b.reporter.Stop()
	b.fallback.Stop()

	b.mu.Lock()
	b.runCtx = nil
	b.mu.Unlock()

	return ctx.Err()
}

// Sender returns the outbound delivery surface, usable also for one-shot
// sends outside the persistent connection's lifetime.
func (b *Bridge) Sender() *delivery.Sender { return b.sender }

// Connected reports whether the chat channel is confirmed on a live socket.
func (b *Bridge) Connected() bool { return b.conn.IsConnected() }

// Sessions returns the chat sessions seen so far, most recently active first.
func (b *Bridge) Sessions() []*session.Session { return b.sessions.List() }

// dispatchContext returns the running context, or Background before Run.
func (b *Bridge) dispatchContext() context.Context {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.runCtx != nil {
		return b.runCtx
	}
	return context.Background()
}

// handleChat bridges one inbound chat message into the agent runtime. The
// dispatch runs on its own goroutine so the connection's read loop never
// blocks on the runtime; reply chunks stream back through the sender.
func (b *Bridge) handleChat(msg cable.ChatMessage) {
	sess := b.sessions.Touch(msg.SenderID, msg.SenderName)

	out := dispatch.Message{
		Content:    msg.Content,
		SenderID:   msg.SenderID,
		SenderName: msg.SenderName,
		SessionID:  sess.ID,
		Metadata:   msg.Metadata,
	}

	go func() {
		ctx := b.dispatchContext()
		emit := func(chunk string) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			b.sender.SendText(ctx, chunk, map[string]any{"session_id": out.SessionID})
			return nil
		}
		if err := b.handler.HandleMessage(ctx, out, emit); err != nil {
			b.logger.Error("bridge: dispatch failed", "sender_id", out.SenderID, "error", err)
			if ctx.Err() == nil {
				// Best effort; the sender swallows delivery failures.
				b.sender.SendText(ctx, "Sorry, something went wrong while handling your message.", map[string]any{"session_id": out.SessionID})
			}
		}
	}()
}

// startStatusPush begins the on-demand loop, pushing through the cable when
// subscribed and through the respond endpoint otherwise.
func (b *Bridge) startStatusPush() {
	b.reporter.Start(func(snap *status.Snapshot) {
		if b.conn.IsConnected() {
			b.conn.SendStatus(snap)
			return
		}
		ctx, cancel := context.WithTimeout(b.dispatchContext(), 10*time.Second)
		defer cancel()
		if err := b.client.RespondStatus(ctx, snap); err != nil {
			b.logger.Warn("bridge: status push fallback failed", "error", err)
		}
	})
}

func (b *Bridge) stopStatusPush() {
	b.reporter.Stop()
}

// wrapProducer decorates the external snapshot producer: the bridge's own
// session list fills in when the producer leaves it empty, and the collection
// timestamp is stamped if missing. The snapshot is copied before decoration;
// the reporter and fallback loops share the wrapped producer and a producer
// may legitimately hand out a cached pointer.
func (b *Bridge) wrapProducer(producer status.Producer) status.Producer {
	return func(ctx context.Context) (*status.Snapshot, error) {
		snap, err := producer(ctx)
		if err != nil || snap == nil {
			return snap, err
		}
		out := *snap
		if out.Sessions == nil {
			for _, s := range b.sessions.List() {
				out.Sessions = append(out.Sessions, status.SessionInfo{
					ID:           s.ID,
					SenderID:     s.SenderID,
					MessageCount: s.MessageCount,
					LastActiveAt: s.LastActiveAt,
				})
			}
		}
		if out.CollectedAt.IsZero() {
			out.CollectedAt = time.Now()
		}
		return &out, nil
	}
}
