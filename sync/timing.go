package sync

import "time"

// Timing constants governing heartbeat, liveness, and reconnect behavior.
// All are fixed; none are currently exposed as configuration.
const (
	// HeartbeatInterval is how often a node broadcasts its own heartbeat.
	HeartbeatInterval = 10 * time.Second

	// DeadGrace is added on top of HeartbeatInterval before a peer is
	// considered dead: alive iff now-lastHeartbeat <= HeartbeatInterval+DeadGrace.
	DeadGrace = 2 * time.Second

	// CheckInterval is how often the liveness sweep and controller/module
	// reconciliation loops run.
	CheckInterval = 5 * time.Second

	// P2PGiveUpTime is how long the outbound dialer waits, after exhausting
	// one full pass over the Peer Table with no successful connection,
	// before declaring itself alone in the world.
	P2PGiveUpTime = 5 * time.Second

	// PeerRetryTime is the pause before the next outbound dial pass after a
	// full pass with no successful connection.
	PeerRetryTime = 25 * time.Second

	// HandshakeTimeout bounds the TLS handshake plus hello exchange on
	// both the inbound and outbound side of a new connection.
	HandshakeTimeout = 5 * time.Second

	// maxFrameBytes bounds a single JSON frame read off the wire.
	maxFrameBytes = 256 * 1024
)

// AliveWindow is the total duration a peer is considered alive without a
// fresh heartbeat or instanceInfo.
func AliveWindow() time.Duration {
	return HeartbeatInterval + DeadGrace
}
