package sync

import "time"

// broadcastModuleInfo announces this node's full module list to every open
// connection. Called on every instanceInfo received; a new connection gets
// its introductory moduleInfo from sendModuleInfoTo instead.
func (h *Handler) broadcastModuleInfo() {
	id := h.nextID()
	h.broadcastExcept(moduleInfoMessage(h.table.SelfName(), id, h.localDescriptors()), nil)
}

func (h *Handler) sendModuleInfoTo(c *conn) {
	id := h.nextID()
	if err := c.send(moduleInfoMessage(h.table.SelfName(), id, h.localDescriptors())); err != nil {
		h.logger.Debug().Err(err).Msg("failed to send introductory moduleInfo")
	}
}

func (h *Handler) localDescriptors() []ModuleDescriptor {
	mods := h.registry.Modules()
	out := make([]ModuleDescriptor, 0, len(mods))
	for _, m := range mods {
		out = append(out, ModuleDescriptor{
			Name:      m.Name,
			Available: m.Available,
			Handling:  m.Handling(h.table.SelfName()),
		})
	}
	return out
}

func (h *Handler) localModule(name string) (LocalModule, bool) {
	for _, m := range h.registry.Modules() {
		if m.Name == name {
			return m, true
		}
	}
	return LocalModule{}, false
}

// onModuleInfo stores P's module list and resolves any handling conflicts
// against our own local state.
func (h *Handler) onModuleInfo(m *Message) {
	h.table.SetModules(m.Source, m.Modules)

	p, ok := h.table.Get(m.Source)
	if !ok {
		return
	}

	for _, d := range m.Modules {
		local, haveLocal := h.localModule(d.Name)
		if !haveLocal {
			continue
		}
		localHandling := local.Handling(h.table.SelfName())

		if d.Handling && localHandling {
			// Conflict: both P and self claim to be handling d.Name.
			if h.selfPriority < p.Priority {
				// We outrank P: reclaim directly if controller, else ask.
				if h.table.Controller() == h.table.SelfName() {
					h.assignModuleTo(h.table.SelfName(), d.Name)
				} else {
					id := h.nextID()
					h.broadcastExcept(requestModuleMessage(h.table.SelfName(), id, d.Name), nil)
				}
			} else {
				h.registry.SetHandler(d.Name, "")
			}
			continue
		}
		if !d.Handling && local.Handler == m.Source {
			h.registry.SetHandler(d.Name, "")
		}
	}
}

// onAssignModule applies a controller-issued assignment that concerns us,
// either as the new handler or as the one being told to stand down.
func (h *Handler) onAssignModule(m *Message) {
	local, haveLocal := h.localModule(m.Module)
	if !haveLocal {
		return
	}
	self := h.table.SelfName()
	switch {
	case m.Peer == self:
		h.registry.SetHandler(m.Module, self)
	case m.Peer != self && local.Handling(self):
		h.registry.SetHandler(m.Module, m.Peer)
	}
}

// onRequestModule is acted on only by the controller: clear any existing
// handler, then assign the module to the requester.
func (h *Handler) onRequestModule(m *Message) {
	if h.table.Controller() != h.table.SelfName() {
		return
	}
	h.assignModuleTo(m.Source, m.Module)
}

// assignModuleTo clears the local handler (if it was us) and broadcasts
// the assignment as controller.
func (h *Handler) assignModuleTo(peer, module string) {
	if local, ok := h.localModule(module); ok && local.Handling(h.table.SelfName()) && peer != h.table.SelfName() {
		h.registry.SetHandler(module, "")
	}
	if peer == h.table.SelfName() {
		h.registry.SetHandler(module, peer)
	}
	id := h.nextID()
	h.broadcastExcept(assignModuleMessage(h.table.SelfName(), id, peer, module), nil)
	h.metrics.AssignmentsMade.Inc()
}

// reconcileModules is the controller reconciliation loop: every
// CHECK_INTERVAL, make sure every local module has exactly one handler.
func (h *Handler) reconcileModules() {
	if h.table.Controller() != h.table.SelfName() {
		return
	}
	now := h.clock.Now()
	alive := h.table.Snapshot()

	for _, m := range h.registry.Modules() {
		if moduleHasLiveHandler(m, alive, now) {
			continue
		}
		if m.Available {
			h.assignModuleTo(h.table.SelfName(), m.Name)
			continue
		}
		if p, ok := firstAvailableHandler(m.Name, alive, now, h.table.SelfName()); ok {
			h.assignModuleTo(p.Name, m.Name)
		} else {
			h.registry.SetHandler(m.Name, "")
		}
	}
}

// moduleHasLiveHandler reports whether some live peer (including self, via
// m.Handler) is currently handling m according to stored state. Self's own
// Peer entry is kept alive by the heartbeat loop touching it every tick,
// so no special-casing is needed here.
func moduleHasLiveHandler(m LocalModule, peers []Peer, now time.Time) bool {
	if m.Handler == "" {
		return false
	}
	for _, p := range peers {
		if p.Name == m.Handler {
			return p.Alive(now)
		}
	}
	return false
}

// firstAvailableHandler finds the first live peer (in table order) whose
// last-known moduleInfo advertised name as available.
func firstAvailableHandler(name string, peers []Peer, now time.Time, self string) (Peer, bool) {
	for _, p := range peers {
		if p.Name == self || !p.Alive(now) {
			continue
		}
		for _, d := range p.Modules {
			if d.Name == name && d.Available {
				return p, true
			}
		}
	}
	return Peer{}, false
}
