package sync

// handleInboundMessage implements the Gossip Relay: dedup by (source, id),
// forward verbatim to every other open connection, then hand the message
// to the matching component handler.
func (h *Handler) handleInboundMessage(c *conn, m *Message) {
	if m.Type == MsgHello {
		h.logger.Warn().Str("conn", c.correlationID).Msg("unexpected hello after handshake, closing")
		c.close()
		return
	}
	if m.Source == h.table.SelfName() {
		return
	}

	if !h.table.CheckAndAccept(m.Source, m.ID) {
		h.metrics.GossipDropped.Inc()
		h.trace.Record(TraceEntry{Source: m.Source, ID: m.ID, Type: m.Type, Dropped: true, Observed: h.clock.Now()})
		return
	}

	forwarded := h.broadcastExcept(m, c)
	h.metrics.GossipRelayed.Inc()
	h.trace.Record(TraceEntry{Source: m.Source, ID: m.ID, Type: m.Type, Forward: forwarded, Observed: h.clock.Now()})

	h.dispatch(m)
}

// broadcastExcept forwards m to every open connection other than except
// and returns how many it was sent to.
func (h *Handler) broadcastExcept(m *Message, except *conn) int {
	h.mu.Lock()
	conns := make([]*conn, 0, len(h.conns))
	for _, c := range h.conns {
		if c != except {
			conns = append(conns, c)
		}
	}
	h.mu.Unlock()

	for _, c := range conns {
		if err := c.send(m); err != nil {
			h.logger.Debug().Err(err).Str("conn", c.correlationID).Msg("relay forward failed")
		}
	}
	return len(conns)
}

// dispatch routes a deduped message to its component handler. Handler
// invocation is guarded with recover so one malformed peer can't crash the
// whole mesh connection set.
func (h *Handler) dispatch(m *Message) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error().Interface("panic", r).Str("type", m.Type.String()).Msg("recovered from handler panic")
		}
	}()

	switch m.Type {
	case MsgHeartbeat:
		h.onHeartbeat(m)
	case MsgInstanceInfo:
		h.onInstanceInfo(m)
	case MsgLostPeer:
		h.onLostPeer(m)
	case MsgControlSwitch:
		h.onControlSwitch(m)
	case MsgModuleInfo:
		h.onModuleInfo(m)
	case MsgAssignModule:
		h.onAssignModule(m)
	case MsgRequestModule:
		h.onRequestModule(m)
	case MsgExpireConfigCache:
		h.onExpireConfigCache(m)
	}
}
