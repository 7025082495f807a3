package cable

import (
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deckbridge/deckbridge/internal/testutil"
)

const (
	waitFor = time.Second
	tick    = 2 * time.Millisecond
	// settle is how long tests wait before asserting that nothing happened.
	settle = 50 * time.Millisecond
)

func newTestConnection(t *testing.T, dialer *testutil.FakeDialer, optFns ...func(o *Options)) *Connection {
	t.Helper()
	cfg := Config{BaseURL: "https://deck.example.com", Token: "tok"}
	fns := append([]func(o *Options){func(o *Options) {
		o.Dialer = func(url string) (Socket, error) { return dialer.Dial(url) }
		o.ReconnectDelay = 20 * time.Millisecond
	}}, optFns...)
	conn := NewConnection(cfg, fns...)
	t.Cleanup(conn.Disconnect)
	return conn
}

// openAndWelcome connects, delivers the welcome frame and waits for both
// subscribe commands to go out.
func openAndWelcome(t *testing.T, dialer *testutil.FakeDialer, conn *Connection) *testutil.FakeSocket {
	t.Helper()
	conn.Connect()
	require.Equal(t, 1, dialer.DialCount())
	sock := dialer.Sockets()[0]
	sock.Deliver(map[string]any{"type": "welcome"})
	require.Eventually(t, func() bool { return sock.WriteCount() == 2 }, waitFor, tick)
	return sock
}

func confirm(sock *testutil.FakeSocket, channel string) {
	sock.Deliver(map[string]any{"type": "confirm_subscription", "identifier": ChannelIdentifier(channel)})
}

func decodeCommand(t *testing.T, raw []byte) ClientCommand {
	t.Helper()
	var cmd ClientCommand
	require.NoError(t, json.Unmarshal(raw, &cmd))
	return cmd
}

func TestConnection_WelcomeTriggersSubscribesInOrder(t *testing.T) {
	dialer := testutil.NewFakeDialer()
	conn := newTestConnection(t, dialer)

	sock := openAndWelcome(t, dialer, conn)

	writes := sock.Writes()
	require.Len(t, writes, 2)

	first := decodeCommand(t, writes[0])
	assert.Equal(t, "subscribe", first.Command)
	assert.Equal(t, ChannelIdentifier(ChatChannel), first.Identifier)

	second := decodeCommand(t, writes[1])
	assert.Equal(t, "subscribe", second.Command)
	assert.Equal(t, ChannelIdentifier(CardsChannel), second.Identifier)
}

func TestConnection_DialedURL(t *testing.T) {
	dialer := testutil.NewFakeDialer()
	conn := newTestConnection(t, dialer)

	conn.Connect()
	require.Equal(t, 1, dialer.DialCount())
	assert.Equal(t, "wss://deck.example.com/cable?token=tok", dialer.URLs()[0])
}

func TestConnection_SendGatedUntilChatConfirmed(t *testing.T) {
	dialer := testutil.NewFakeDialer()
	conn := newTestConnection(t, dialer)
	sock := openAndWelcome(t, dialer, conn)

	// Before confirmation: dropped, not queued.
	conn.SendResponse("too early", nil)
	conn.SendStatus(map[string]any{"agent_state": "idle"})
	time.Sleep(settle)
	assert.Equal(t, 2, sock.WriteCount())
	assert.False(t, conn.IsConnected())

	confirm(sock, ChatChannel)
	require.Eventually(t, conn.IsConnected, waitFor, tick)

	conn.SendResponse("hello", map[string]any{"session_id": "s1"})
	require.Eventually(t, func() bool { return sock.WriteCount() == 3 }, waitFor, tick)

	cmd := decodeCommand(t, sock.Writes()[2])
	assert.Equal(t, "message", cmd.Command)
	assert.Equal(t, ChannelIdentifier(ChatChannel), cmd.Identifier)

	var envelope ReplyEnvelope
	require.NoError(t, json.Unmarshal([]byte(cmd.Data), &envelope))
	assert.Equal(t, ActionRespond, envelope.Action)
	assert.Equal(t, "hello", envelope.Content)

	conn.SendStatus(map[string]any{"agent_state": "busy"})
	require.Eventually(t, func() bool { return sock.WriteCount() == 4 }, waitFor, tick)

	cmd = decodeCommand(t, sock.Writes()[3])
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(cmd.Data), &decoded))
	assert.Equal(t, ActionReportStatus, decoded["action"])
	assert.Equal(t, map[string]any{"agent_state": "busy"}, decoded["status_data"])
}

func TestConnection_PingProducesNothing(t *testing.T) {
	dialer := testutil.NewFakeDialer()
	chatCh := make(chan ChatMessage, 1)
	conn := newTestConnection(t, dialer, func(o *Options) {
		o.ChatHandler = func(m ChatMessage) { chatCh <- m }
	})
	sock := openAndWelcome(t, dialer, conn)
	confirm(sock, ChatChannel)
	require.Eventually(t, conn.IsConnected, waitFor, tick)

	sock.Deliver(map[string]any{"type": "ping", "message": 1700000000})
	time.Sleep(settle)
	assert.Equal(t, 2, sock.WriteCount())
	assert.Empty(t, chatCh)
}

func TestConnection_BroadcastRouting(t *testing.T) {
	dialer := testutil.NewFakeDialer()
	chatCh := make(chan ChatMessage, 4)
	cardCh := make(chan CardEvent, 4)
	conn := newTestConnection(t, dialer, func(o *Options) {
		o.ChatHandler = func(m ChatMessage) { chatCh <- m }
		o.CardHandler = func(ev CardEvent) { cardCh <- ev }
	})
	sock := openAndWelcome(t, dialer, conn)

	sock.Deliver(map[string]any{
		"identifier": ChannelIdentifier(ChatChannel),
		"message":    map[string]any{"content": "hi", "sender_id": "u1"},
	})
	select {
	case msg := <-chatCh:
		assert.Equal(t, "hi", msg.Content)
		assert.Equal(t, "u1", msg.SenderID)
	case <-time.After(waitFor):
		t.Fatal("chat broadcast not delivered")
	}
	assert.Empty(t, cardCh)

	sock.Deliver(map[string]any{
		"identifier": ChannelIdentifier(CardsChannel),
		"message":    map[string]any{"card_id": "c9", "option": "yes"},
	})
	select {
	case ev := <-cardCh:
		assert.Equal(t, "c9", ev.CardID)
		assert.Equal(t, "yes", ev.Option)
	case <-time.After(waitFor):
		t.Fatal("card broadcast not delivered")
	}
	assert.Empty(t, chatCh)

	// Unknown channel: dropped.
	sock.Deliver(map[string]any{
		"identifier": ChannelIdentifier("OtherChannel"),
		"message":    map[string]any{"content": "stray"},
	})
	time.Sleep(settle)
	assert.Empty(t, chatCh)
	assert.Empty(t, cardCh)
}

func TestConnection_StatusControlSignals(t *testing.T) {
	dialer := testutil.NewFakeDialer()
	startCh := make(chan struct{}, 1)
	stopCh := make(chan struct{}, 1)
	chatCh := make(chan ChatMessage, 1)
	conn := newTestConnection(t, dialer, func(o *Options) {
		o.ChatHandler = func(m ChatMessage) { chatCh <- m }
		o.StatusStartHandler = func() { startCh <- struct{}{} }
		o.StatusStopHandler = func() { stopCh <- struct{}{} }
	})
	sock := openAndWelcome(t, dialer, conn)

	sock.Deliver(map[string]any{
		"identifier": ChannelIdentifier(ChatChannel),
		"message":    map[string]any{"type": "status_requested"},
	})
	select {
	case <-startCh:
	case <-time.After(waitFor):
		t.Fatal("status start not signalled")
	}
	// Control broadcasts never reach the chat handler.
	assert.Empty(t, chatCh)

	sock.Deliver(map[string]any{
		"identifier": ChannelIdentifier(ChatChannel),
		"message":    map[string]any{"type": "status_stopped"},
	})
	select {
	case <-stopCh:
	case <-time.After(waitFor):
		t.Fatal("status stop not signalled")
	}
}

func TestConnection_MalformedFramesIgnored(t *testing.T) {
	dialer := testutil.NewFakeDialer()
	chatCh := make(chan ChatMessage, 1)
	conn := newTestConnection(t, dialer, func(o *Options) {
		o.ChatHandler = func(m ChatMessage) { chatCh <- m }
	})
	sock := openAndWelcome(t, dialer, conn)

	sock.DeliverRaw([]byte("not json at all"))
	sock.Deliver(map[string]any{"type": "something_new"})

	// The connection keeps working afterwards.
	sock.Deliver(map[string]any{
		"identifier": ChannelIdentifier(ChatChannel),
		"message":    map[string]any{"content": "still alive"},
	})
	select {
	case msg := <-chatCh:
		assert.Equal(t, "still alive", msg.Content)
	case <-time.After(waitFor):
		t.Fatal("connection stopped processing after malformed frame")
	}
}

func TestConnection_ReconnectsAfterSocketLoss(t *testing.T) {
	dialer := testutil.NewFakeDialer()
	conn := newTestConnection(t, dialer)
	sock := openAndWelcome(t, dialer, conn)
	confirm(sock, ChatChannel)
	confirm(sock, CardsChannel)
	require.Eventually(t, conn.IsConnected, waitFor, tick)

	// Server-initiated close: flags drop, a fresh socket is dialed after the
	// fixed delay.
	sock.Close()
	require.Eventually(t, func() bool { return !conn.IsConnected() }, waitFor, tick)
	require.Eventually(t, func() bool { return dialer.DialCount() == 2 }, waitFor, tick)

	fresh := dialer.Sockets()[1]
	assert.NotSame(t, sock, fresh)

	// The new socket completes a fresh handshake.
	fresh.Deliver(map[string]any{"type": "welcome"})
	require.Eventually(t, func() bool { return fresh.WriteCount() == 2 }, waitFor, tick)
	confirm(fresh, ChatChannel)
	require.Eventually(t, conn.IsConnected, waitFor, tick)
}

func TestConnection_DisconnectCancelsReconnect(t *testing.T) {
	dialer := testutil.NewFakeDialer()
	conn := newTestConnection(t, dialer)
	sock := openAndWelcome(t, dialer, conn)

	sock.Close() // arms the reconnect timer
	conn.Disconnect()

	time.Sleep(100 * time.Millisecond) // well past the 20ms reconnect delay
	assert.Equal(t, 1, dialer.DialCount())
}

func TestConnection_DisconnectClearsStateAndAllowsReconnect(t *testing.T) {
	dialer := testutil.NewFakeDialer()
	conn := newTestConnection(t, dialer)
	sock := openAndWelcome(t, dialer, conn)
	confirm(sock, ChatChannel)
	require.Eventually(t, conn.IsConnected, waitFor, tick)

	conn.Disconnect()
	assert.False(t, conn.IsConnected())
	assert.True(t, sock.Closed())

	// Not poisoned: an explicit Connect dials again.
	conn.Connect()
	require.Eventually(t, func() bool { return dialer.DialCount() == 2 }, waitFor, tick)
}

func TestConnection_NoCallbacksAfterDisconnect(t *testing.T) {
	// A broadcast already drained from the socket must not fire its handler
	// once Disconnect has returned. Repeated to shake the race out.
	for i := 0; i < 100; i++ {
		dialer := testutil.NewFakeDialer()
		var starts atomic.Int64
		conn := newTestConnection(t, dialer, func(o *Options) {
			o.StatusStartHandler = func() { starts.Add(1) }
		})
		sock := openAndWelcome(t, dialer, conn)

		sock.Deliver(map[string]any{
			"identifier": ChannelIdentifier(ChatChannel),
			"message":    map[string]any{"type": "status_requested"},
		})
		conn.Disconnect()

		after := starts.Load()
		time.Sleep(time.Millisecond)
		require.Equal(t, after, starts.Load(), "handler fired after Disconnect returned")
	}
}

func TestConnection_ConcurrentConnectKeepsSingleSocket(t *testing.T) {
	dialer := testutil.NewFakeDialer()
	release := make(chan struct{})
	var entered sync.WaitGroup
	entered.Add(2)

	// Gate the dialer so both Connect calls pass the open-socket check
	// before either dial completes.
	conn := NewConnection(Config{BaseURL: "https://deck.example.com", Token: "tok"}, func(o *Options) {
		o.Dialer = func(url string) (Socket, error) {
			entered.Done()
			<-release
			return dialer.Dial(url)
		}
		o.ReconnectDelay = 20 * time.Millisecond
	})
	t.Cleanup(conn.Disconnect)

	go conn.Connect()
	go conn.Connect()
	entered.Wait()
	close(release)

	require.Eventually(t, func() bool { return dialer.DialCount() == 2 }, waitFor, tick)
	// The losing socket is closed, exactly one survives.
	require.Eventually(t, func() bool {
		socks := dialer.Sockets()
		return socks[0].Closed() != socks[1].Closed()
	}, waitFor, tick)

	var live *testutil.FakeSocket
	for _, s := range dialer.Sockets() {
		if !s.Closed() {
			live = s
		}
	}
	require.NotNil(t, live)

	// The survivor carries the handshake.
	live.Deliver(map[string]any{"type": "welcome"})
	require.Eventually(t, func() bool { return live.WriteCount() == 2 }, waitFor, tick)
	confirm(live, ChatChannel)
	require.Eventually(t, conn.IsConnected, waitFor, tick)
}

func TestConnection_DialFailureSchedulesRetry(t *testing.T) {
	dialer := testutil.NewFakeDialer()
	dialer.FailWith(errors.New("connection refused"))
	conn := newTestConnection(t, dialer)

	conn.Connect()
	assert.Equal(t, 0, dialer.DialCount())

	dialer.FailWith(nil)
	require.Eventually(t, func() bool { return dialer.DialCount() == 1 }, waitFor, tick)
}

func TestConnection_InvalidBaseURLDoesNotRetry(t *testing.T) {
	dialer := testutil.NewFakeDialer()
	conn := NewConnection(Config{BaseURL: "ftp://deck.example.com", Token: "tok"}, func(o *Options) {
		o.Dialer = func(url string) (Socket, error) { return dialer.Dial(url) }
		o.ReconnectDelay = 20 * time.Millisecond
	})
	t.Cleanup(conn.Disconnect)

	conn.Connect()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, dialer.DialCount())
}
