package cable

import (
	"sync"
	"time"

	"github.com/deckbridge/deckbridge/logging"
)

// DefaultReconnectDelay is the fixed delay between a socket loss and the next
// dial attempt. Deliberately not exponential: the cable is point-to-point and
// a fixed interval keeps reconnection latency predictable.
const DefaultReconnectDelay = 3 * time.Second

// Config holds the dashboard endpoint parameters for one account. Both fields
// must be non-empty before a connect attempt is meaningful; emptiness is a
// caller-level "not configured" state, not a protocol error.
type Config struct {
	BaseURL string
	Token   string
}

// Options holds dependency + configuration overrides passed to NewConnection.
type Options struct {
	// ReconnectDelay overrides DefaultReconnectDelay.
	ReconnectDelay time.Duration
	// Dialer opens sockets; defaults to the gorilla-backed DefaultDialer.
	Dialer Dialer
	// Logger receives lifecycle and precondition logs; defaults to NoOp.
	Logger logging.Logger
	// ChatHandler receives chat broadcasts.
	ChatHandler func(ChatMessage)
	// CardHandler receives card broadcasts. Nil disables the capability and
	// cards broadcasts are dropped.
	CardHandler func(CardEvent)
	// StatusStartHandler fires on a status_requested control broadcast.
	StatusStartHandler func()
	// StatusStopHandler fires on a status_stopped control broadcast.
	StatusStopHandler func()
}

// Connection owns the socket lifecycle for one account: the two-channel
// subscribe handshake, inbound frame routing, outbound send gating and
// reconnect scheduling.
//
// Invariants: chatSubscribed and cardsSubscribed are only true while a socket
// is held; any socket loss clears both flags before a reconnect is armed; at
// most one reconnect timer exists at a time; no handler fires after
// Disconnect returns.
type Connection struct {
	cfg     Config
	chatID  string
	cardsID string

	dialer         Dialer
	reconnectDelay time.Duration
	logger         logging.Logger

	onChat        func(ChatMessage)
	onCard        func(CardEvent)
	onStatusStart func()
	onStatusStop  func()

	mu              sync.Mutex
	socket          Socket
	gen             int
	chatSubscribed  bool
	cardsSubscribed bool
	reconnectTimer  *time.Timer
	closed          bool

	// dispatchMu serializes broadcast handler invocation with Disconnect so
	// a frame already drained from the socket cannot fire a handler after
	// teardown. Handlers must not call Disconnect synchronously.
	dispatchMu sync.Mutex
}

// NewConnection constructs a Connection with optional overrides. It does not
// dial; call Connect to open the socket.
func NewConnection(cfg Config, optFns ...func(o *Options)) *Connection {
	opts := Options{
		ReconnectDelay: DefaultReconnectDelay,
		Dialer:         DefaultDialer,
		Logger:         logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Connection{
		cfg:            cfg,
		chatID:         ChannelIdentifier(ChatChannel),
		cardsID:        ChannelIdentifier(CardsChannel),
		dialer:         opts.Dialer,
		reconnectDelay: opts.ReconnectDelay,
		logger:         opts.Logger,
		onChat:         opts.ChatHandler,
		onCard:         opts.CardHandler,
		onStatusStart:  opts.StatusStartHandler,
		onStatusStop:   opts.StatusStopHandler,
	}
}

// Connect opens the socket and begins the subscribe handshake. Failures are
// logged, never returned: an unreachable server schedules a reconnect, an
// unusable base URL does not (redialing cannot fix it).
func (c *Connection) Connect() {
	c.mu.Lock()
	c.closed = false
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	if c.socket != nil {
		c.mu.Unlock()
		c.logger.Debug("cable: connect ignored, socket already open")
		return
	}
	c.mu.Unlock()

	wsURL, err := SocketURL(c.cfg.BaseURL, c.cfg.Token)
	if err != nil {
		c.logger.Error("cable: cannot derive socket url", "error", err)
		return
	}

	sock, err := c.dialer(wsURL)
	if err != nil {
		c.logger.Warn("cable: dial failed", "error", err)
		c.mu.Lock()
		c.scheduleReconnectLocked()
		c.mu.Unlock()
		return
	}

	c.mu.Lock()
	if c.closed {
		// Disconnected while the dial was in flight.
		c.mu.Unlock()
		_ = sock.Close()
		return
	}
	if c.socket != nil {
		// A concurrent Connect won the race; keep its socket.
		c.mu.Unlock()
		_ = sock.Close()
		return
	}
	c.gen++
	gen := c.gen
	c.socket = sock
	c.mu.Unlock()

	c.logger.Info("cable: socket open", "base_url", c.cfg.BaseURL)
	go c.readLoop(sock, gen)
}

// Disconnect tears the connection down deterministically: the reconnect timer
// is cancelled, the socket closed and both subscription flags cleared. No
// callbacks fire afterwards. The connection is not poisoned; Connect may be
// called again.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	c.closed = true
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	sock := c.socket
	c.socket = nil
	c.gen++ // orphan any read loop still draining the old socket
	c.chatSubscribed = false
	c.cardsSubscribed = false
	c.mu.Unlock()

	// Wait out any broadcast dispatch already in flight; afterwards every
	// pending frame sees the bumped generation and is dropped.
	c.dispatchMu.Lock()
	defer c.dispatchMu.Unlock()

	if sock != nil {
		_ = sock.Close()
		c.logger.Info("cable: disconnected")
	}
}

// IsConnected reports whether the chat channel is confirmed on a live socket.
// This is the readiness predicate consumed by the status emission loop.
func (c *Connection) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.socket != nil && c.chatSubscribed
}

// SendResponse delivers a text reply over the cable. A no-op (logged as a
// warning) until the chat subscription is confirmed: the server would drop
// the frame silently, so the client enforces the precondition itself.
func (c *Connection) SendResponse(content string, metadata map[string]any) {
	c.send("response", ReplyEnvelope{Action: ActionRespond, Content: content, Metadata: metadata})
}

// SendStatus delivers a status snapshot over the cable, subject to the same
// subscription gating as SendResponse.
func (c *Connection) SendStatus(data any) {
	c.send("status", StatusEnvelope{Action: ActionReportStatus, StatusData: data})
}

func (c *Connection) send(kind string, envelope any) {
	c.mu.Lock()
	sock := c.socket
	ready := sock != nil && c.chatSubscribed
	c.mu.Unlock()

	if !ready {
		c.logger.Warn("cable: dropping outbound frame, chat channel not subscribed", "kind", kind)
		return
	}

	cmd, err := MessageCommand(c.chatID, envelope)
	if err != nil {
		c.logger.Error("cable: cannot encode outbound frame", "kind", kind, "error", err)
		return
	}
	if err := sock.WriteJSON(cmd); err != nil {
		c.logger.Warn("cable: send failed", "kind", kind, "error", err)
	}
}

// readLoop drains inbound frames until the socket fails or is replaced. The
// generation counter keeps a superseded loop from touching fresh state.
func (c *Connection) readLoop(sock Socket, gen int) {
	for {
		data, err := sock.ReadMessage()
		if err != nil {
			c.handleClose(gen, err)
			return
		}
		frame, err := DecodeServerFrame(data)
		if err != nil {
			c.logger.Debug("cable: dropping malformed frame", "error", err)
			continue
		}
		c.handleFrame(sock, gen, frame)
	}
}

func (c *Connection) handleFrame(sock Socket, gen int, frame *ServerFrame) {
	switch frame.Kind() {
	case FrameWelcome:
		// Chat first, cards second. The order is fixed so handshake traces
		// stay deterministic; correctness does not depend on it.
		c.logger.Info("cable: welcome received, subscribing channels")
		for _, id := range []string{c.chatID, c.cardsID} {
			if err := sock.WriteJSON(SubscribeCommand(id)); err != nil {
				c.logger.Warn("cable: subscribe request failed", "error", err)
			}
		}
	case FrameConfirmation:
		c.mu.Lock()
		if gen != c.gen {
			c.mu.Unlock()
			return
		}
		switch frame.Identifier {
		case c.chatID:
			c.chatSubscribed = true
		case c.cardsID:
			c.cardsSubscribed = true
		default:
			c.mu.Unlock()
			c.logger.Debug("cable: confirmation for unknown channel", "identifier", frame.Identifier)
			return
		}
		c.mu.Unlock()
		c.logger.Info("cable: subscription confirmed", "identifier", frame.Identifier)
	case FramePing:
		// Liveness no-op.
	case FrameBroadcast:
		c.handleBroadcast(gen, frame)
	default:
		c.logger.Debug("cable: ignoring unrecognized frame")
	}
}

func (c *Connection) handleBroadcast(gen int, frame *ServerFrame) {
	c.dispatchMu.Lock()
	defer c.dispatchMu.Unlock()

	c.mu.Lock()
	stale := gen != c.gen || c.closed
	c.mu.Unlock()
	if stale {
		c.logger.Debug("cable: dropping broadcast from superseded socket")
		return
	}

	// Status control is recognized by its type tag alone, regardless of which
	// channel carried it.
	switch frame.StatusControl() {
	case StatusControlRequested:
		c.logger.Info("cable: status push requested")
		if c.onStatusStart != nil {
			c.onStatusStart()
		}
		return
	case StatusControlStopped:
		c.logger.Info("cable: status push stopped")
		if c.onStatusStop != nil {
			c.onStatusStop()
		}
		return
	}

	switch frame.Identifier {
	case c.chatID:
		msg, err := frame.ChatMessage()
		if err != nil {
			c.logger.Debug("cable: dropping malformed chat broadcast", "error", err)
			return
		}
		if c.onChat != nil {
			c.onChat(msg)
		}
	case c.cardsID:
		if c.onCard == nil {
			c.logger.Debug("cable: card broadcast dropped, no handler registered")
			return
		}
		ev, err := frame.CardEvent()
		if err != nil {
			c.logger.Debug("cable: dropping malformed card broadcast", "error", err)
			return
		}
		c.onCard(ev)
	default:
		c.logger.Debug("cable: broadcast for unknown channel", "identifier", frame.Identifier)
	}
}

func (c *Connection) handleClose(gen int, err error) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.socket = nil
	c.chatSubscribed = false
	c.cardsSubscribed = false
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.scheduleReconnectLocked()
	c.mu.Unlock()

	c.logger.Warn("cable: socket closed", "error", err)
}

// scheduleReconnectLocked arms the reconnect timer. Caller holds the mutex.
func (c *Connection) scheduleReconnectLocked() {
	if c.closed || c.reconnectTimer != nil {
		return
	}
	c.logger.Info("cable: reconnect scheduled", "delay", c.reconnectDelay)
	c.reconnectTimer = time.AfterFunc(c.reconnectDelay, func() {
		c.mu.Lock()
		c.reconnectTimer = nil
		if c.closed {
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()
		c.Connect()
	})
}
