// Package session tracks the chat sessions the bridge has seen, keyed by
// dashboard sender. The registry supplies the stable session key handed to
// the dispatch handler and the session list reported in status snapshots.
// The registry is volatile: nothing is persisted, and a restarted bridge
// simply re-learns its senders.
package session
