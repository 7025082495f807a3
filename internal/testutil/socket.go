// Package testutil provides test doubles for the cable transport: a scripted
// socket whose inbound frames the test controls and a dialer that records
// every socket it hands out. The fake satisfies the cable Socket interface
// structurally so this package stays import-cycle free.
package testutil

import (
	"encoding/json"
	"errors"
	"sync"
)

// ErrSocketClosed is returned by ReadMessage and WriteJSON after Close.
var ErrSocketClosed = errors.New("testutil: socket closed")

// FakeSocket is a scripted in-memory socket. Tests deliver inbound frames
// with Deliver and inspect outbound frames with Writes.
type FakeSocket struct {
	mu       sync.Mutex
	incoming chan []byte
	writes   [][]byte
	closed   bool
	closeCh  chan struct{}
}

// NewFakeSocket constructs an open FakeSocket.
func NewFakeSocket() *FakeSocket {
	return &FakeSocket{
		incoming: make(chan []byte, 64),
		closeCh:  make(chan struct{}),
	}
}

// ReadMessage blocks until a delivered frame or close.
func (s *FakeSocket) ReadMessage() ([]byte, error) {
	select {
	case data := <-s.incoming:
		return data, nil
	case <-s.closeCh:
		return nil, ErrSocketClosed
	}
}

// WriteJSON records the marshaled frame.
func (s *FakeSocket) WriteJSON(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSocketClosed
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.writes = append(s.writes, data)
	return nil
}

// Close fails pending and future reads. Idempotent.
func (s *FakeSocket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.closeCh)
	}
	return nil
}

// Closed reports whether Close was called.
func (s *FakeSocket) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Deliver queues an inbound frame; v is marshaled to JSON first.
func (s *FakeSocket) Deliver(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	s.incoming <- data
}

// DeliverRaw queues raw inbound bytes (for malformed-frame tests).
func (s *FakeSocket) DeliverRaw(data []byte) {
	s.incoming <- data
}

// Writes returns a copy of all frames written so far.
func (s *FakeSocket) Writes() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.writes))
	copy(out, s.writes)
	return out
}

// WriteCount returns how many frames were written.
func (s *FakeSocket) WriteCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.writes)
}

// FakeDialer hands out fresh FakeSockets and records each dial.
type FakeDialer struct {
	mu      sync.Mutex
	sockets []*FakeSocket
	urls    []string
	err     error
}

// NewFakeDialer constructs a FakeDialer.
func NewFakeDialer() *FakeDialer {
	return &FakeDialer{}
}

// Dial opens a new FakeSocket, or fails if FailWith was set.
func (d *FakeDialer) Dial(url string) (*FakeSocket, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	sock := NewFakeSocket()
	d.sockets = append(d.sockets, sock)
	d.urls = append(d.urls, url)
	return sock, nil
}

// FailWith makes subsequent dials fail with err (nil restores success).
func (d *FakeDialer) FailWith(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
}

// Sockets returns every socket handed out so far.
func (d *FakeDialer) Sockets() []*FakeSocket {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*FakeSocket, len(d.sockets))
	copy(out, d.sockets)
	return out
}

// DialCount returns how many dials succeeded.
func (d *FakeDialer) DialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sockets)
}

// URLs returns the URLs dialed so far.
func (d *FakeDialer) URLs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.urls))
	copy(out, d.urls)
	return out
}
