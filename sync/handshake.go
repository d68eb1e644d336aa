package sync

// acceptInboundHello is the server side of the handshake: read the
// client's hello first, validate it, then answer with our own.
func (h *Handler) acceptInboundHello(c *conn) (string, error) {
	m, err := c.recv()
	if err != nil {
		return "", err
	}
	if m.Type != MsgHello {
		return "", protocolErr("hello", errNotHello)
	}
	if err := h.checkHello(m); err != nil {
		return "", err
	}

	peerName := h.reconcileIdentity(c, m.Source)

	if err := c.send(helloMessage(h.table.SelfName(), h.selfVersion, h.selfEnv, h.selfUserID)); err != nil {
		return "", err
	}
	return peerName, nil
}

// performOutboundHello is the client side: send our hello first, then wait
// for the server's.
func (h *Handler) performOutboundHello(c *conn) (string, error) {
	if err := c.send(helloMessage(h.table.SelfName(), h.selfVersion, h.selfEnv, h.selfUserID)); err != nil {
		return "", err
	}

	m, err := c.recv()
	if err != nil {
		return "", err
	}
	if m.Type != MsgHello {
		return "", protocolErr("hello", errNotHello)
	}
	if err := h.checkHello(m); err != nil {
		return "", err
	}
	if c.dialedKey != "" && c.dialedKey != m.Source {
		if _, taken := h.table.Get(m.Source); taken {
			return "", identityErr("hello", strErr("advertised name already names another peer entry"))
		}
	}

	return h.reconcileIdentity(c, m.Source), nil
}

// checkHello applies the four close conditions: self-loop, version, env,
// userId mismatch.
func (h *Handler) checkHello(m *Message) error {
	if m.Source == h.table.SelfName() {
		return identityErr("hello", errSelfLoop)
	}
	if m.Version != h.selfVersion {
		return identityErr("hello", errVersionMismatch)
	}
	if m.Env != h.selfEnv {
		return identityErr("hello", errEnvMismatch)
	}
	if m.UserID != h.selfUserID {
		return identityErr("hello", errUserMismatch)
	}
	return nil
}

// reconcileIdentity applies the rename-in-place rule: if this connection
// was dialed under a table key that differs from the advertised source
// (the common case: we only knew an address, not a name), rekey the entry.
// A collision (the advertised name already names another entry) is
// rejected by performOutboundHello before this runs, so the pre-existing
// entry is kept and the new connection is closed.
func (h *Handler) reconcileIdentity(c *conn, source string) string {
	if c.dir == outbound && c.dialedKey != "" && c.dialedKey != source {
		if h.table.Rename(c.dialedKey, source) {
			h.cache.Upsert(source, addressOf(h.table, source))
		}
	}
	h.table.Learn(source, "")
	h.table.Touch(source)
	return source
}

func addressOf(t *PeerTable, name string) string {
	if p, ok := t.Get(name); ok {
		return p.Address
	}
	return ""
}

// onConnectionEstablished runs the connect-time protocol steps common to
// both directions: announce ourselves and request any preferred modules.
func (h *Handler) onConnectionEstablished(c *conn) {
	h.logger.Info().
		Str("peer", c.peerName).
		Str("direction", c.dir.String()).
		Str("conn", c.correlationID).
		Str("fingerprint", c.fingerprint).
		Msg("connection established")

	id := h.nextID()
	if err := c.send(instanceInfoMessage(h.table.SelfName(), id, h.selfPriority, h.cfg.MyAddress)); err != nil {
		h.logger.Debug().Err(err).Msg("failed to send introductory instanceInfo")
	}
	h.sendModuleInfoTo(c)

	for _, mod := range h.cfg.PreferredModules {
		reqID := h.nextID()
		if err := c.send(requestModuleMessage(h.table.SelfName(), reqID, mod)); err != nil {
			h.logger.Debug().Err(err).Str("module", mod).Msg("failed to send requestModule")
		}
	}
}

var (
	errNotHello        = strErr("first frame was not hello")
	errSelfLoop        = strErr("peer source equals our own name")
	errVersionMismatch = strErr("version mismatch")
	errEnvMismatch     = strErr("env mismatch")
	errUserMismatch    = strErr("userId mismatch")
)

type strErr string

func (e strErr) Error() string { return string(e) }
