package dispatch

import (
	"context"
	"fmt"
	"sync"
)

// Message is an inbound chat message normalized for the agent runtime.
type Message struct {
	Content    string
	SenderID   string
	SenderName string
	SessionID  string
	Metadata   map[string]string
}

// EmitFunc receives one streamed reply chunk. Returning an error aborts the
// stream, e.g. when the bridge is shutting down.
type EmitFunc func(chunk string) error

// Handler is the contract the agent runtime fulfils: translate an inbound
// chat message into a streamed reply.
type Handler interface {
	HandleMessage(ctx context.Context, msg Message, emit EmitFunc) error
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, msg Message, emit EmitFunc) error

// HandleMessage implements Handler.
func (f HandlerFunc) HandleMessage(ctx context.Context, msg Message, emit EmitFunc) error {
	return f(ctx, msg, emit)
}

// MockHandler is a lightweight in-memory Handler useful for tests & examples.
type MockHandler struct {
	mu        sync.Mutex
	responses map[string]string
	received  []Message
}

// NewMockHandler constructs a MockHandler.
func NewMockHandler() *MockHandler {
	return &MockHandler{responses: make(map[string]string)}
}

// AddResponse registers a deterministic canned reply for an input message.
func (m *MockHandler) AddResponse(content, reply string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[content] = reply
}

// Received returns the messages handled so far.
func (m *MockHandler) Received() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.received))
	copy(out, m.received)
	return out
}

// HandleMessage implements Handler; emits the canned reply as a single chunk.
func (m *MockHandler) HandleMessage(_ context.Context, msg Message, emit EmitFunc) error {
	m.mu.Lock()
	m.received = append(m.received, msg)
	reply := m.responses[msg.Content]
	m.mu.Unlock()

	if reply == "" {
		reply = fmt.Sprintf("Mock reply to: %s", msg.Content)
	}
	return emit(reply)
}
