// Package cable implements the dashboard's publish/subscribe WebSocket
// protocol: the JSON frame codec, the two-channel subscribe handshake
// (welcome -> subscribe -> confirm -> broadcast) and the resilient
// Connection that owns the socket lifecycle.
//
// The Connection is a small state machine. All transitions happen on
// delivery of a socket event, a timer callback or a direct method call;
// a mutex serializes them so handlers observe consistent state. A socket
// loss from any state clears both subscription flags and arms a single
// fixed-delay reconnect timer. Outbound sends are gated on a confirmed
// chat subscription because the server silently drops frames sent before
// confirmation.
package cable
