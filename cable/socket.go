package cable

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	handshakeTimeout = 10 * time.Second
	writeTimeout     = 10 * time.Second
)

// Socket is the minimal surface the connection needs from a websocket.
// Satisfied by the gorilla-backed implementation below and by test doubles.
type Socket interface {
	// ReadMessage blocks until the next text frame or a terminal error.
	ReadMessage() ([]byte, error)
	// WriteJSON marshals v and writes it as a single text frame.
	WriteJSON(v any) error
	// Close releases the underlying connection; pending reads fail.
	Close() error
}

// Dialer opens a Socket for the given URL. Swappable for tests.
type Dialer func(url string) (Socket, error)

// wsSocket wraps a gorilla connection. The write mutex keeps subscribe
// replies from the read loop and sends from caller goroutines from
// interleaving; gorilla permits one concurrent writer only.
type wsSocket struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *wsSocket) ReadMessage() ([]byte, error) {
	_, data, err := s.conn.ReadMessage()
	return data, err
}

func (s *wsSocket) WriteJSON(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return s.conn.WriteJSON(v)
}

func (s *wsSocket) Close() error {
	return s.conn.Close()
}

// DefaultDialer opens a gorilla websocket connection to the cable endpoint.
func DefaultDialer(url string) (Socket, error) {
	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = handshakeTimeout
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}
	return &wsSocket{conn: conn}, nil
}
