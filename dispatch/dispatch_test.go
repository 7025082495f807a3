package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerFunc(t *testing.T) {
	var got Message
	h := HandlerFunc(func(ctx context.Context, msg Message, emit EmitFunc) error {
		got = msg
		return emit("ack")
	})

	var chunks []string
	err := h.HandleMessage(context.Background(), Message{Content: "hi", SenderID: "u1"}, func(chunk string) error {
		chunks = append(chunks, chunk)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "hi", got.Content)
	assert.Equal(t, []string{"ack"}, chunks)
}

func TestMockHandler_CannedResponse(t *testing.T) {
	h := NewMockHandler()
	h.AddResponse("ping", "pong")

	var chunks []string
	emit := func(chunk string) error {
		chunks = append(chunks, chunk)
		return nil
	}

	require.NoError(t, h.HandleMessage(context.Background(), Message{Content: "ping"}, emit))
	assert.Equal(t, []string{"pong"}, chunks)

	// Unknown input falls back to the default reply.
	chunks = nil
	require.NoError(t, h.HandleMessage(context.Background(), Message{Content: "what?"}, emit))
	assert.Equal(t, []string{"Mock reply to: what?"}, chunks)

	received := h.Received()
	require.Len(t, received, 2)
	assert.Equal(t, "ping", received[0].Content)
	assert.Equal(t, "what?", received[1].Content)
}

func TestMockHandler_EmitErrorPropagates(t *testing.T) {
	h := NewMockHandler()
	wantErr := errors.New("stream aborted")

	err := h.HandleMessage(context.Background(), Message{Content: "hi"}, func(string) error {
		return wantErr
	})
	assert.ErrorIs(t, err, wantErr)
}
