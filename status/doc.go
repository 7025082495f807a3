// Package status implements the timed status emission loops.
//
// Reporter is the on-demand loop: started and stopped by the dashboard's
// status-control broadcasts, it invokes the external snapshot producer once
// immediately and then on a fixed interval, forwarding each snapshot through
// the supplied push function. Fallback is the always-on loop: started
// alongside the connection and stopped on teardown, it guarantees status data
// reaches the dashboard over REST even if the push-detection handshake never
// arrives. A snapshot failure is logged and the tick skipped; neither loop
// ever terminates because of the producer.
package status
