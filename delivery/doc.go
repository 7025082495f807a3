// Package delivery normalizes outbound transport selection for replies,
// status pushes and interactive cards.
//
// Text replies prefer the low-latency cable when a live, subscribed
// connection is supplied and otherwise fall back to the dashboard's REST
// respond endpoint. Cards always go over REST: they are provisioned through
// the dashboard's HTTP surface, not the cable protocol. The result contract
// is the same regardless of transport: SendText is fire-and-forget, SendCard
// returns a structured CardResult.
package delivery
