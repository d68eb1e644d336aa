package sync

import (
	"sync"
	"time"
)

// Peer is one entry in the Peer Table. Callers only ever see copies
// (returned by value), so the table itself is the single writer.
type Peer struct {
	Name          string
	Address       string // "" for a peer known only by name
	Priority      int64
	LastHeartbeat time.Time // zero value: never heard from
	LastMessageID uint64
	KnownDead     bool
	Modules       []ModuleDescriptor
}

// Alive reports whether p has been heard from recently enough, per the
// heartbeat-interval-plus-grace window. A peer latched KnownDead stays
// dead until a fresh heartbeat or instanceInfo resets the latch.
func (p Peer) Alive(now time.Time) bool {
	if p.KnownDead {
		return false
	}
	if p.LastHeartbeat.IsZero() {
		return false
	}
	return now.Sub(p.LastHeartbeat) <= AliveWindow()
}

// PeerTable is the mesh's single-writer, many-reader peer registry. self is
// always present under its own current name.
type PeerTable struct {
	mu         sync.RWMutex
	clock      Clock
	selfName   string
	controller string // "" until an election decides one
	order      []string // insertion order, for outbound dial order
	peers      map[string]*Peer
}

// NewPeerTable creates a table with self already inserted, per the
// invariant that self is always present.
func NewPeerTable(selfName string, selfPriority int64, clock Clock) *PeerTable {
	t := &PeerTable{
		clock:    clock,
		selfName: selfName,
		peers:    make(map[string]*Peer),
	}
	now := clock.Now()
	t.peers[selfName] = &Peer{Name: selfName, Priority: selfPriority, LastHeartbeat: now}
	t.order = append(t.order, selfName)
	return t
}

// SelfName returns the name self is currently known under.
func (t *PeerTable) SelfName() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.selfName
}

// Get returns a copy of the named peer.
func (t *PeerTable) Get(name string) (Peer, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.peers[name]
	if !ok {
		return Peer{}, false
	}
	return *p, true
}

// Snapshot returns a copy of every peer, in insertion order.
func (t *PeerTable) Snapshot() []Peer {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Peer, 0, len(t.order))
	for _, name := range t.order {
		if p, ok := t.peers[name]; ok {
			out = append(out, *p)
		}
	}
	return out
}

// Learn ensures a peer entry exists, creating a bare one if not. An
// existing entry's address is filled in only if currently empty, never
// overwritten — an address learned from configuration or the cache is not
// clobbered by a later gossip sighting with no address.
func (t *PeerTable) Learn(name, address string) {
	if name == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.peers[name]
	if !ok {
		t.peers[name] = &Peer{Name: name, Address: address}
		t.order = append(t.order, name)
		return
	}
	if p.Address == "" && address != "" {
		p.Address = address
	}
}

// Rename rekeys oldName to newName in place, preserving the object and its
// position in dial order. If newName already names a distinct existing
// entry, the rename is refused and the pre-existing entry is kept
// (collision rule: keep the pre-existing entry, caller closes the new
// connection).
func (t *PeerTable) Rename(oldName, newName string) bool {
	if oldName == newName {
		return true
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	old, ok := t.peers[oldName]
	if !ok {
		return false
	}
	if _, collides := t.peers[newName]; collides {
		return false
	}

	delete(t.peers, oldName)
	old.Name = newName
	t.peers[newName] = old
	for i, n := range t.order {
		if n == oldName {
			t.order[i] = newName
			break
		}
	}
	if t.selfName == oldName {
		t.selfName = newName
	}
	return true
}

// SetPriority updates a peer's priority, creating it if unknown.
func (t *PeerTable) SetPriority(name string, priority int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.getOrCreateLocked(name)
	p.Priority = priority
}

// Touch marks a peer as freshly heard-from via heartbeat or instanceInfo:
// resets the liveness clock and clears the knownDead latch.
func (t *PeerTable) Touch(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.getOrCreateLocked(name)
	p.LastHeartbeat = t.clock.Now()
	p.KnownDead = false
}

// MarkDead latches knownDead and resets lastMessageId so a returning peer
// under the same name is accepted again. Returns false if already dead.
func (t *PeerTable) MarkDead(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.peers[name]
	if !ok || p.KnownDead {
		return false
	}
	p.KnownDead = true
	p.LastMessageID = 0
	return true
}

// CheckAndAccept applies the dedup rule: id must be strictly greater than
// the stored lastMessageId for source, else the message is a duplicate and
// is dropped. A never-seen source is auto-created with lastMessageId 0 so
// transitively-gossiped sources we've never directly connected to still
// get tracked.
func (t *PeerTable) CheckAndAccept(source string, id uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.getOrCreateLocked(source)
	if id <= p.LastMessageID {
		return false
	}
	p.LastMessageID = id
	return true
}

// SetModules stores a peer's last-known module list.
func (t *PeerTable) SetModules(name string, mods []ModuleDescriptor) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.getOrCreateLocked(name)
	p.Modules = mods
}

// getOrCreateLocked must be called with t.mu held for writing.
func (t *PeerTable) getOrCreateLocked(name string) *Peer {
	p, ok := t.peers[name]
	if !ok {
		p = &Peer{Name: name}
		t.peers[name] = p
		t.order = append(t.order, name)
	}
	return p
}

// Controller returns the name this node currently believes leads the mesh,
// or "" if there is none.
func (t *PeerTable) Controller() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.controller
}

// SetController records the believed controller's name.
func (t *PeerTable) SetController(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.controller = name
}

// ControllerPriority returns the current controller's priority and true, or
// (0, false) if there is no controller or it is not in the table.
func (t *PeerTable) ControllerPriority() (int64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.controller == "" {
		return 0, false
	}
	p, ok := t.peers[t.controller]
	if !ok {
		return 0, false
	}
	return p.Priority, true
}

// LowestPriorityAlive returns the alive, non-self peer with the lowest
// priority value, if any.
func (t *PeerTable) LowestPriorityAlive(now time.Time) (Peer, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var best *Peer
	for _, name := range t.order {
		if name == t.selfName {
			continue
		}
		p := t.peers[name]
		if !p.Alive(now) {
			continue
		}
		if best == nil || p.Priority < best.Priority {
			best = p
		}
	}
	if best == nil {
		return Peer{}, false
	}
	return *best, true
}

// AnyAliveOutranksSelf reports whether some non-self alive peer has a
// strictly lower priority than self.
func (t *PeerTable) AnyAliveOutranksSelf(now time.Time) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	self, ok := t.peers[t.selfName]
	if !ok {
		return false
	}
	for _, name := range t.order {
		if name == t.selfName {
			continue
		}
		p := t.peers[name]
		if p.Alive(now) && p.Priority < self.Priority {
			return true
		}
	}
	return false
}
