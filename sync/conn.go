package sync

import (
	"bufio"
	"crypto/tls"
	"encoding/hex"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

type direction int

const (
	inbound direction = iota
	outbound
)

func (d direction) String() string {
	if d == inbound {
		return "inbound"
	}
	return "outbound"
}

// conn wraps one TLS socket, before or after its hello has been accepted.
// correlationID tags every log line for this socket so an operator can
// follow one connection's lifetime across the accept/handshake/read-loop
// boundary.
type conn struct {
	correlationID string
	tlsConn       *tls.Conn
	dir           direction

	// dialedKey is set only for outbound connections: the Peer Table key
	// used to pick this dial target, before hello may rename it.
	dialedKey string

	// peerName is set once hello has been accepted.
	peerName string

	fingerprint string

	scanner *bufio.Scanner

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    chan struct{}
}

func newConn(tlsConn *tls.Conn, dir direction) *conn {
	return &conn{
		correlationID: uuid.NewString(),
		tlsConn:       tlsConn,
		dir:           dir,
		scanner:       newFrameScanner(tlsConn),
		closed:        make(chan struct{}),
	}
}

// send writes one frame. Safe for concurrent use; the hello exchange and
// the read/write loops of a connection's lifetime never race each other in
// practice, but broadcasts from multiple goroutines to the same conn do.
func (c *conn) send(m *Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return encodeMessage(c.tlsConn, m)
}

// recv blocks for the next frame.
func (c *conn) recv() (*Message, error) {
	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return nil, transportErr("read frame", err)
		}
		return nil, transportErr("read frame", errConnClosed)
	}
	return decodeMessage(c.scanner.Bytes())
}

func (c *conn) close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.tlsConn.Close()
	})
}

// computeFingerprint hashes the peer's leaf certificate for log
// correlation; it is not used for trust decisions, which crypto/tls's
// verification already handles.
func computeFingerprint(c *tls.Conn) string {
	state := c.ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return ""
	}
	sum := blake2b.Sum256(state.PeerCertificates[0].Raw)
	return hex.EncodeToString(sum[:])
}
