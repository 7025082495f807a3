package cable

import (
	"encoding/json"
	"fmt"
)

// Channel names for the two logical pub/sub channels the dashboard exposes.
const (
	// ChatChannel carries inbound chat messages and outbound replies.
	ChatChannel = "ChatChannel"
	// CardsChannel carries interactive card events. Optional: the dashboard
	// may never confirm it.
	CardsChannel = "CardsChannel"
)

// ChannelIdentifier returns the JSON-encoded descriptor for a channel. The
// server echoes it verbatim in confirmations and broadcasts, so it is computed
// once per connection and compared by value.
func ChannelIdentifier(channel string) string {
	b, _ := json.Marshal(struct {
		Channel string `json:"channel"`
	}{Channel: channel})
	return string(b)
}

// FrameKind classifies an inbound server frame.
type FrameKind int

const (
	// FrameUnknown marks frames with no recognized shape; they are dropped.
	FrameUnknown FrameKind = iota
	// FrameWelcome signals handshake start and triggers subscription requests.
	FrameWelcome
	// FrameConfirmation acknowledges a subscribe request for one channel.
	FrameConfirmation
	// FramePing is a liveness no-op.
	FramePing
	// FrameBroadcast carries an inner message for a subscribed channel.
	FrameBroadcast
)

// ServerFrame is the raw shape of every inbound frame. The union is
// discriminated by field presence: control frames carry a type tag,
// broadcasts carry the echoed channel identifier plus an inner message.
type ServerFrame struct {
	Type       string          `json:"type,omitempty"`
	Identifier string          `json:"identifier,omitempty"`
	Message    json.RawMessage `json:"message,omitempty"`
}

// DecodeServerFrame parses a raw text frame. A decode error never tears the
// connection down; the caller logs and drops the frame.
func DecodeServerFrame(data []byte) (*ServerFrame, error) {
	var frame ServerFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("decode server frame: %w", err)
	}
	return &frame, nil
}

// Kind classifies the frame by its discriminating fields.
func (f *ServerFrame) Kind() FrameKind {
	switch f.Type {
	case "welcome":
		return FrameWelcome
	case "confirm_subscription":
		return FrameConfirmation
	case "ping":
		return FramePing
	}
	if f.Identifier != "" && len(f.Message) > 0 {
		return FrameBroadcast
	}
	return FrameUnknown
}

// StatusControlKind identifies the status-control broadcast variants used by
// the dashboard to start and stop on-demand status emission.
type StatusControlKind int

const (
	// StatusControlNone marks regular (non control) broadcast traffic.
	StatusControlNone StatusControlKind = iota
	// StatusControlRequested asks the client to begin pushing status snapshots.
	StatusControlRequested
	// StatusControlStopped asks the client to stop pushing status snapshots.
	StatusControlStopped
)

// StatusControl returns the control variant carried by a broadcast's inner
// message, or StatusControlNone for regular traffic. Control frames are
// recognized by the type tag alone, independent of the channel identifier.
func (f *ServerFrame) StatusControl() StatusControlKind {
	var tag struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(f.Message, &tag); err != nil {
		return StatusControlNone
	}
	switch tag.Type {
	case "status_requested":
		return StatusControlRequested
	case "status_stopped":
		return StatusControlStopped
	}
	return StatusControlNone
}

// ChatMessage is the inner payload of a chat broadcast.
type ChatMessage struct {
	Type       string            `json:"type,omitempty"`
	Content    string            `json:"content"`
	SenderID   string            `json:"sender_id,omitempty"`
	SenderName string            `json:"sender_name,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// ChatMessage decodes the broadcast's inner message as chat traffic.
func (f *ServerFrame) ChatMessage() (ChatMessage, error) {
	var msg ChatMessage
	if err := json.Unmarshal(f.Message, &msg); err != nil {
		return ChatMessage{}, fmt.Errorf("decode chat message: %w", err)
	}
	return msg, nil
}

// CardEvent is the inner payload of a cards broadcast (a user interacting
// with a previously created card).
type CardEvent struct {
	Type     string            `json:"type,omitempty"`
	CardID   string            `json:"card_id"`
	Option   string            `json:"option,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// CardEvent decodes the broadcast's inner message as a card interaction.
func (f *ServerFrame) CardEvent() (CardEvent, error) {
	var ev CardEvent
	if err := json.Unmarshal(f.Message, &ev); err != nil {
		return CardEvent{}, fmt.Errorf("decode card event: %w", err)
	}
	return ev, nil
}

// ClientCommand is the outbound frame shape for subscribe requests and
// message sends. Data carries a JSON-encoded inner envelope, mirroring the
// double-encoded wire format the dashboard expects.
type ClientCommand struct {
	Command    string `json:"command"`
	Identifier string `json:"identifier"`
	Data       string `json:"data,omitempty"`
}

// SubscribeCommand builds the subscribe request for a channel identifier.
func SubscribeCommand(identifier string) ClientCommand {
	return ClientCommand{Command: "subscribe", Identifier: identifier}
}

// Inner envelope action names.
const (
	// ActionRespond delivers a text reply into the dashboard conversation.
	ActionRespond = "respond"
	// ActionReportStatus delivers a status snapshot to the dashboard.
	ActionReportStatus = "report_status"
)

// ReplyEnvelope is the inner payload for an outbound text reply.
type ReplyEnvelope struct {
	Action   string         `json:"action"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// StatusEnvelope is the inner payload for an outbound status push.
type StatusEnvelope struct {
	Action     string `json:"action"`
	StatusData any    `json:"status_data"`
}

// MessageCommand wraps an inner envelope in a message command for the given
// channel identifier.
func MessageCommand(identifier string, envelope any) (ClientCommand, error) {
	data, err := json.Marshal(envelope)
	if err != nil {
		return ClientCommand{}, fmt.Errorf("encode envelope: %w", err)
	}
	return ClientCommand{Command: "message", Identifier: identifier, Data: string(data)}, nil
}
