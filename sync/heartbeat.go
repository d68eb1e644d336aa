package sync

// heartbeatLoop broadcasts a heartbeat every HeartbeatInterval. It also
// touches self's own Peer Table entry, which is what keeps self.Alive()
// true for as long as the process is running — nothing else resets it.
func (h *Handler) heartbeatLoop() {
	defer h.wg.Done()
	for {
		if h.waitOrDone(HeartbeatInterval) {
			return
		}
		self := h.table.SelfName()
		h.table.Touch(self)
		id := h.nextID()
		h.broadcastExcept(heartbeatMessage(self, id), nil)
		h.metrics.HeartbeatsSent.Inc()
	}
}

// checkLoop runs the liveness sweep and, depending on role, the controller
// election check or the module reconciliation loop, every CheckInterval.
func (h *Handler) checkLoop() {
	defer h.wg.Done()
	for {
		if h.waitOrDone(CheckInterval) {
			return
		}
		h.sweepDeadPeers()
		h.refreshPeerCountMetric()
		if h.table.Controller() == h.table.SelfName() {
			h.reconcileModules()
		} else {
			h.checkElection()
		}
	}
}

// sweepDeadPeers latches knownDead on every peer that has missed its
// liveness window and announces it, unless another peer already has.
func (h *Handler) sweepDeadPeers() {
	now := h.clock.Now()
	self := h.table.SelfName()
	for _, p := range h.table.Snapshot() {
		if p.Name == self || p.Alive(now) || p.KnownDead {
			continue
		}
		if h.table.MarkDead(p.Name) {
			h.metrics.PeersMarkedDead.Inc()
			id := h.nextID()
			h.broadcastExcept(lostPeerMessage(self, id, p.Name), nil)
			h.onPeerDied(p)
		}
	}
}

// refreshPeerCountMetric reflects the current Peer Table size in the
// peer_count gauge.
func (h *Handler) refreshPeerCountMetric() {
	h.metrics.PeerCount.Set(float64(len(h.table.Snapshot())))
}

// onHeartbeat refreshes a peer's liveness.
func (h *Handler) onHeartbeat(m *Message) {
	h.table.Touch(m.Source)
	h.metrics.HeartbeatsReceived.Inc()
}

// onLostPeer latches knownDead on the peer another node has declared dead,
// and runs the same dead-peer fallout as a local detection would.
func (h *Handler) onLostPeer(m *Message) {
	if p, ok := h.table.Get(m.Peer); ok && !p.KnownDead {
		if h.table.MarkDead(m.Peer) {
			h.metrics.PeersMarkedDead.Inc()
			h.onPeerDied(p)
		}
	}
}

// onPeerDied runs dead-peer fallout: if we're controller, reassign
// whatever P was handling according to our last-known moduleInfo for it.
func (h *Handler) onPeerDied(p Peer) {
	if h.table.Controller() != h.table.SelfName() {
		return
	}
	for _, d := range p.Modules {
		if !d.Handling {
			continue
		}
		if local, ok := h.localModule(d.Name); ok && local.Available {
			h.assignModuleTo(h.table.SelfName(), d.Name)
			continue
		}
		if alt, ok := firstAvailableHandler(d.Name, h.table.Snapshot(), h.clock.Now(), h.table.SelfName()); ok {
			h.assignModuleTo(alt.Name, d.Name)
		}
	}
}

// checkAloneInTheWorld is the "alone in the world" branch: invoked after
// the outbound dialer has cycled past every peer without a single open
// connection and then waited P2PGiveUpTime. If still no live peer, claim
// every locally-available module and elect self as controller.
func (h *Handler) checkAloneInTheWorld() {
	if _, ok := h.table.LowestPriorityAlive(h.clock.Now()); ok {
		return
	}
	h.logger.Warn().Msg("no live peer reachable, assuming solo controller")
	for _, m := range h.registry.Modules() {
		if m.Available {
			h.registry.SetHandler(m.Name, h.table.SelfName())
		}
	}
	h.assumeControl()
}
