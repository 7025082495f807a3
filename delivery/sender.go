package delivery

import (
	"context"

	"github.com/deckbridge/deckbridge/logging"
)

// CableSender is the subset of the cable connection the sender needs. The
// gated send drops (with a warning) until the chat subscription is confirmed.
type CableSender interface {
	SendResponse(content string, metadata map[string]any)
	IsConnected() bool
}

// SenderOptions holds overrides passed to NewSender.
type SenderOptions struct {
	Logger logging.Logger
}

// Sender chooses the outbound transport for a payload and normalizes the
// result contract regardless of transport.
type Sender struct {
	conn   CableSender // nil when no live connection was supplied
	client *Client
	logger logging.Logger
}

// NewSender constructs a Sender. conn may be nil, in which case text replies
// always take the REST fallback. client must be non-nil.
func NewSender(conn CableSender, client *Client, optFns ...func(o *SenderOptions)) *Sender {
	opts := SenderOptions{Logger: logging.NoOpLogger{}}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Sender{conn: conn, client: client, logger: opts.Logger}
}

// SendText delivers a text reply, fire-and-forget. With a live connection the
// send delegates to the cable's gated path (dropped, not queued, if the chat
// channel is unconfirmed). Without one, the reply is POSTed to the respond
// endpoint and any failure is logged and swallowed; the caller never receives
// an error for SendText.
func (s *Sender) SendText(ctx context.Context, content string, metadata map[string]any) {
	if s.conn != nil {
		s.conn.SendResponse(content, metadata)
		return
	}
	if err := s.client.Respond(ctx, content, metadata); err != nil {
		s.logger.Warn("delivery: http text send failed", "error", err)
	}
}

// SendCard provisions a card through the dashboard's REST surface and returns
// the normalized result. Cards never travel over the cable.
func (s *Sender) SendCard(ctx context.Context, card Card) CardResult {
	return s.client.CreateCard(ctx, card)
}
