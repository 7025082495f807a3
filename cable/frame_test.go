package cable

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelIdentifier(t *testing.T) {
	id := ChannelIdentifier(ChatChannel)
	assert.Equal(t, `{"channel":"ChatChannel"}`, id)
	// Stable: the same channel always yields the same identifier.
	assert.Equal(t, id, ChannelIdentifier(ChatChannel))
	assert.NotEqual(t, id, ChannelIdentifier(CardsChannel))
}

func TestServerFrame_Kind(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want FrameKind
	}{
		{"welcome", `{"type":"welcome"}`, FrameWelcome},
		{"confirmation", `{"type":"confirm_subscription","identifier":"{\"channel\":\"ChatChannel\"}"}`, FrameConfirmation},
		{"ping", `{"type":"ping","message":1700000000}`, FramePing},
		{"broadcast", `{"identifier":"{\"channel\":\"ChatChannel\"}","message":{"content":"hi"}}`, FrameBroadcast},
		{"empty", `{}`, FrameUnknown},
		{"identifier only", `{"identifier":"x"}`, FrameUnknown},
		{"odd type", `{"type":"disconnect"}`, FrameUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := DecodeServerFrame([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, frame.Kind())
		})
	}
}

func TestDecodeServerFrame_Malformed(t *testing.T) {
	_, err := DecodeServerFrame([]byte("not json"))
	require.Error(t, err)
}

func TestServerFrame_StatusControl(t *testing.T) {
	frame, err := DecodeServerFrame([]byte(`{"identifier":"x","message":{"type":"status_requested"}}`))
	require.NoError(t, err)
	assert.Equal(t, StatusControlRequested, frame.StatusControl())

	frame, err = DecodeServerFrame([]byte(`{"identifier":"x","message":{"type":"status_stopped"}}`))
	require.NoError(t, err)
	assert.Equal(t, StatusControlStopped, frame.StatusControl())

	frame, err = DecodeServerFrame([]byte(`{"identifier":"x","message":{"type":"message","content":"hi"}}`))
	require.NoError(t, err)
	assert.Equal(t, StatusControlNone, frame.StatusControl())
}

func TestServerFrame_ChatMessage(t *testing.T) {
	frame, err := DecodeServerFrame([]byte(`{"identifier":"x","message":{"content":"hello","sender_id":"u1","sender_name":"Ada","metadata":{"k":"v"}}}`))
	require.NoError(t, err)

	msg, err := frame.ChatMessage()
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Content)
	assert.Equal(t, "u1", msg.SenderID)
	assert.Equal(t, "Ada", msg.SenderName)
	assert.Equal(t, map[string]string{"k": "v"}, msg.Metadata)
}

func TestSubscribeCommand(t *testing.T) {
	cmd := SubscribeCommand(ChannelIdentifier(ChatChannel))
	assert.Equal(t, "subscribe", cmd.Command)
	assert.Equal(t, `{"channel":"ChatChannel"}`, cmd.Identifier)
	assert.Empty(t, cmd.Data)

	// The data field is omitted entirely on the wire for subscribes.
	raw, err := json.Marshal(cmd)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "data")
}

func TestMessageCommand_DoubleEncodesEnvelope(t *testing.T) {
	cmd, err := MessageCommand(ChannelIdentifier(ChatChannel), ReplyEnvelope{
		Action:   ActionRespond,
		Content:  "hi there",
		Metadata: map[string]any{"session_id": "s1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "message", cmd.Command)
	assert.Equal(t, ChannelIdentifier(ChatChannel), cmd.Identifier)

	var envelope ReplyEnvelope
	require.NoError(t, json.Unmarshal([]byte(cmd.Data), &envelope))
	assert.Equal(t, ActionRespond, envelope.Action)
	assert.Equal(t, "hi there", envelope.Content)
	assert.Equal(t, "s1", envelope.Metadata["session_id"])
}

func TestMessageCommand_StatusEnvelope(t *testing.T) {
	cmd, err := MessageCommand(ChannelIdentifier(ChatChannel), StatusEnvelope{
		Action:     ActionReportStatus,
		StatusData: map[string]any{"agent_state": "idle"},
	})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(cmd.Data), &decoded))
	assert.Equal(t, ActionReportStatus, decoded["action"])
	assert.Equal(t, map[string]any{"agent_state": "idle"}, decoded["status_data"])
}
