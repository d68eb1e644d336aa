package sync

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"
)

// serverHostname is what every node verifies the peer's server certificate
// against when dialing out. The mesh is symmetric: every node presents the
// same orange-bot.crt as its server identity, so this name is fixed, not
// derived from the dial address.
const serverHostname = "orange-bot"

// TLSMaterial holds the server-side and client-side TLS configs built from
// the mesh's five fixed PEM files.
type TLSMaterial struct {
	ServerConfig *tls.Config
	ClientConfig *tls.Config
}

// LoadCertificates reads the five fixed-name PEM files from dir and builds
// the mutual-TLS configs for both directions of the symmetric setup.
func LoadCertificates(dir string) (*TLSMaterial, error) {
	caPEM, err := os.ReadFile(filepath.Join(dir, "ca.crt"))
	if err != nil {
		return nil, transportErr("read ca.crt", err)
	}
	caPool := x509.NewCertPool()
	if !caPool.AppendCertsFromPEM(caPEM) {
		return nil, transportErr("parse ca.crt", fmt.Errorf("no certificates found"))
	}

	serverCert, err := tls.LoadX509KeyPair(
		filepath.Join(dir, "orange-bot.crt"),
		filepath.Join(dir, "orange-bot.key"),
	)
	if err != nil {
		return nil, transportErr("load server keypair", err)
	}

	clientCert, err := tls.LoadX509KeyPair(
		filepath.Join(dir, "orange-bot-client.crt"),
		filepath.Join(dir, "orange-bot-client.key"),
	)
	if err != nil {
		return nil, transportErr("load client keypair", err)
	}

	return &TLSMaterial{
		ServerConfig: &tls.Config{
			Certificates: []tls.Certificate{serverCert},
			ClientAuth:   tls.RequireAndVerifyClientCert,
			ClientCAs:    caPool,
			MinVersion:   tls.VersionTLS12,
		},
		ClientConfig: &tls.Config{
			Certificates: []tls.Certificate{clientCert},
			RootCAs:      caPool,
			ServerName:   serverHostname,
			MinVersion:   tls.VersionTLS12,
		},
	}, nil
}

// Start opens the inbound listener and begins the outbound dialer loop.
func (h *Handler) Start() error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", h.cfg.SyncPort))
	if err != nil {
		return transportErr("listen", err)
	}
	h.listener = tls.NewListener(ln, h.tls.ServerConfig)

	h.wg.Add(4)
	go h.acceptLoop()
	go h.outboundLoop()
	go h.heartbeatLoop()
	go h.checkLoop()

	h.logger.Info().Int("port", h.cfg.SyncPort).Msg("sync handler started")
	return nil
}

// Stop closes the listener, every open connection, and waits for the
// background loops to exit.
func (h *Handler) Stop() error {
	h.cancel()
	if h.listener != nil {
		h.listener.Close()
	}
	h.mu.Lock()
	for _, c := range h.conns {
		c.close()
	}
	h.mu.Unlock()
	h.wg.Wait()
	return nil
}

func (h *Handler) acceptLoop() {
	defer h.wg.Done()
	for {
		netConn, err := h.listener.Accept()
		if err != nil {
			select {
			case <-h.ctx.Done():
				return
			default:
				h.logger.Warn().Err(err).Msg("accept failed")
				continue
			}
		}
		tlsConn, ok := netConn.(*tls.Conn)
		if !ok {
			netConn.Close()
			continue
		}
		go h.handleInboundConn(tlsConn)
	}
}

func (h *Handler) handleInboundConn(tlsConn *tls.Conn) {
	c := newConn(tlsConn, inbound)

	if err := tlsConn.SetDeadline(time.Now().Add(HandshakeTimeout)); err != nil {
		c.close()
		return
	}
	if err := tlsConn.Handshake(); err != nil {
		h.logger.Warn().Err(err).Str("conn", c.correlationID).Msg("inbound TLS handshake failed")
		c.close()
		return
	}
	c.fingerprint = computeFingerprint(tlsConn)

	peerName, err := h.acceptInboundHello(c)
	if err != nil {
		h.logger.Warn().Err(err).Str("conn", c.correlationID).Msg("inbound hello rejected")
		c.close()
		return
	}
	if err := tlsConn.SetDeadline(time.Time{}); err != nil {
		c.close()
		return
	}

	c.peerName = peerName
	h.registerConn(c)
	defer h.unregisterConn(c)

	h.onConnectionEstablished(c)
	h.readLoop(c)
}

// outboundLoop implements the one-at-a-time round-robin dialer: dial the
// next peer in table order, stay connected until it closes, then move on.
// A full pass with no successful connection triggers the give-up/retry
// cycle and the solo-controller fallback check.
func (h *Handler) outboundLoop() {
	defer h.wg.Done()
	idx := 0
	consecutiveFailures := 0
	for {
		if h.ctx.Err() != nil {
			return
		}
		snapshot := dialable(h.table.Snapshot(), h.table.SelfName())
		if len(snapshot) == 0 {
			if h.waitOrDone(P2PGiveUpTime) {
				return
			}
			h.checkAloneInTheWorld()
			continue
		}

		target := snapshot[idx%len(snapshot)]
		idx++

		if h.dialOne(target) {
			// Was live at some point; resets the exhausted-pass counter.
			consecutiveFailures = 0
			continue
		}

		consecutiveFailures++
		if consecutiveFailures < len(snapshot) {
			continue
		}

		// Cycled past every peer without a single open connection.
		consecutiveFailures = 0
		if h.waitOrDone(P2PGiveUpTime) {
			return
		}
		h.checkAloneInTheWorld()
		if h.waitOrDone(PeerRetryTime) {
			return
		}
	}
}

// dialable returns peers with a known address, excluding self, in table
// order.
func dialable(peers []Peer, self string) []Peer {
	out := make([]Peer, 0, len(peers))
	for _, p := range peers {
		if p.Name == self || p.Address == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

// dialOne attempts one outbound connection and blocks until it closes (or
// fails to establish). Reports whether a hello-verified connection was
// ever live.
func (h *Handler) dialOne(target Peer) bool {
	dialer := &net.Dialer{Timeout: HandshakeTimeout}
	netConn, err := tls.DialWithDialer(dialer, "tcp", target.Address, h.tls.ClientConfig)
	if err != nil {
		h.logger.Debug().Err(err).Str("peer", target.Name).Str("addr", target.Address).Msg("outbound dial failed")
		return false
	}

	c := newConn(netConn, outbound)
	c.dialedKey = target.Name
	c.fingerprint = computeFingerprint(netConn)

	if err := netConn.SetDeadline(time.Now().Add(HandshakeTimeout)); err != nil {
		c.close()
		return false
	}
	peerName, err := h.performOutboundHello(c)
	if err != nil {
		h.logger.Warn().Err(err).Str("peer", target.Name).Msg("outbound hello rejected")
		c.close()
		return false
	}
	if err := netConn.SetDeadline(time.Time{}); err != nil {
		c.close()
		return false
	}
	c.peerName = peerName

	h.registerConn(c)
	h.onConnectionEstablished(c)
	h.readLoop(c) // blocks until the connection closes
	h.unregisterConn(c)
	return true
}

func (h *Handler) readLoop(c *conn) {
	for {
		m, err := c.recv()
		if err != nil {
			c.close()
			return
		}
		h.handleInboundMessage(c, m)
	}
}

func (h *Handler) registerConn(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c.correlationID] = c
}

func (h *Handler) unregisterConn(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, c.correlationID)
}

// waitOrDone sleeps for d or returns true early if the handler is
// shutting down.
func (h *Handler) waitOrDone(d time.Duration) bool {
	select {
	case <-h.ctx.Done():
		return true
	case <-time.After(d):
		return false
	}
}
