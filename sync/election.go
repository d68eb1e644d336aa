package sync

// onInstanceInfo handles a peer's priority announcement: update its
// bookkeeping, then decide whether a higher-ranked controller has just
// shown up. The comparison against the current controller is strict, so a
// peer whose priority ties the controller's leaves the controller unchanged.
func (h *Handler) onInstanceInfo(m *Message) {
	h.table.Learn(m.Source, m.Address)
	h.table.SetPriority(m.Source, m.Priority)
	h.table.Touch(m.Source)

	p, _ := h.table.Get(m.Source)
	controllerPriority, haveController := h.table.ControllerPriority()

	if !haveController || p.Priority < controllerPriority {
		switch {
		case h.table.Controller() == h.table.SelfName():
			h.adoptController(m.Source)
			id := h.nextID()
			h.broadcastExcept(controlSwitchMessage(h.table.SelfName(), id, m.Source), nil)
		case h.selfPriority < p.Priority:
			h.assumeControl()
		default:
			h.adoptController(m.Source)
		}
	}

	h.broadcastModuleInfo()
}

// onControlSwitch adopts X as controller unless X is unknown or we outrank
// it, in which case the switch is rejected.
func (h *Handler) onControlSwitch(m *Message) {
	x := m.Peer
	p, ok := h.table.Get(x)
	if !ok {
		h.logger.Warn().Str("peer", x).Msg("controlSwitch names unknown peer, ignoring")
		return
	}
	if h.selfPriority < p.Priority {
		h.logger.Error().Str("peer", x).Msg("controlSwitch names a peer we outrank, ignoring")
		return
	}
	h.adoptController(x)
}

// adoptController records name as controller and reflects it in the
// is_controller gauge.
func (h *Handler) adoptController(name string) {
	h.table.SetController(name)
	if name == h.table.SelfName() {
		h.metrics.IsController.Set(1)
	} else {
		h.metrics.IsController.Set(0)
	}
}

// checkElection runs on every CHECK_INTERVAL tick when this node does not
// believe itself, or anyone, to be a live controller.
func (h *Handler) checkElection() {
	if h.table.Controller() == h.table.SelfName() {
		return
	}
	now := h.clock.Now()
	if controller := h.table.Controller(); controller != "" {
		if p, ok := h.table.Get(controller); ok && p.Alive(now) {
			return
		}
	}
	if !h.table.AnyAliveOutranksSelf(now) {
		h.assumeControl()
	}
}

// assumeControl makes this node the controller and announces it.
func (h *Handler) assumeControl() {
	h.adoptController(h.table.SelfName())
	id := h.nextID()
	h.broadcastExcept(controlSwitchMessage(h.table.SelfName(), id, h.table.SelfName()), nil)
	h.logger.Info().Msg("assumed control")
}
