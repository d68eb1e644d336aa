package sync

import "fmt"

// MessageType tags the nine wire kinds the mesh ever exchanges.
type MessageType uint8

const (
	MsgHello MessageType = iota
	MsgHeartbeat
	MsgInstanceInfo
	MsgLostPeer
	MsgAssignModule
	MsgRequestModule
	MsgControlSwitch
	MsgModuleInfo
	MsgExpireConfigCache
)

func (t MessageType) String() string {
	switch t {
	case MsgHello:
		return "hello"
	case MsgHeartbeat:
		return "heartbeat"
	case MsgInstanceInfo:
		return "instanceInfo"
	case MsgLostPeer:
		return "lostPeer"
	case MsgAssignModule:
		return "assignModule"
	case MsgRequestModule:
		return "requestModule"
	case MsgControlSwitch:
		return "controlSwitch"
	case MsgModuleInfo:
		return "moduleInfo"
	case MsgExpireConfigCache:
		return "expireConfigCache"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// Message is the single wire shape for all nine kinds. Fields not used by
// a given Type are left zero and omitted from JSON. Every message carries
// source and id (the envelope); id is 0 only for hello.
type Message struct {
	Type   MessageType `json:"type"`
	Source string      `json:"source"`
	ID     uint64      `json:"id"`

	// hello
	Version string `json:"version,omitempty"`
	Env     string `json:"env,omitempty"`
	UserID  string `json:"userId,omitempty"`

	// instanceInfo
	Priority int64 `json:"priority,omitempty"`

	// instanceInfo / peer-born-via-gossip enrichment
	Address string `json:"address,omitempty"`

	// lostPeer (peer that died), controlSwitch (new controller),
	// assignModule (target peer) all reuse this single slot.
	Peer string `json:"peer,omitempty"`

	// assignModule / requestModule
	Module string `json:"module,omitempty"`

	// moduleInfo
	Modules []ModuleDescriptor `json:"modules,omitempty"`

	// expireConfigCache
	ConfigName string `json:"configName,omitempty"`
	Scope      Scope  `json:"scope,omitempty"`
	CacheID    string `json:"cacheId,omitempty"`
}

// Validate rejects malformed or unknown-tag frames at decode time, per the
// protocol-error handling rule (non-hello first frame and unknown tags are
// both connection-closing events upstream; Validate catches the latter).
func (m *Message) Validate() error {
	if m.Source == "" {
		return fmt.Errorf("missing source")
	}
	if m.Type == MsgHello {
		if m.ID != 0 {
			return fmt.Errorf("hello must carry id 0, got %d", m.ID)
		}
	} else if m.ID == 0 {
		return fmt.Errorf("%s must carry a nonzero id", m.Type)
	}

	switch m.Type {
	case MsgHello:
		if m.Version == "" || m.Env == "" || m.UserID == "" {
			return fmt.Errorf("hello missing version/env/userId")
		}
	case MsgHeartbeat:
		// no required fields beyond the envelope
	case MsgInstanceInfo:
		// priority may legitimately be any int64, including 0
	case MsgLostPeer, MsgControlSwitch:
		if m.Peer == "" {
			return fmt.Errorf("%s missing peer", m.Type)
		}
	case MsgAssignModule:
		if m.Peer == "" || m.Module == "" {
			return fmt.Errorf("assignModule missing peer/module")
		}
	case MsgRequestModule:
		if m.Module == "" {
			return fmt.Errorf("requestModule missing module")
		}
	case MsgModuleInfo:
		// Modules may be an empty list
	case MsgExpireConfigCache:
		if m.ConfigName == "" || !m.Scope.Valid() {
			return fmt.Errorf("expireConfigCache missing configName or invalid scope %q", m.Scope)
		}
	default:
		return fmt.Errorf("unknown message type %d", uint8(m.Type))
	}
	return nil
}

// ModuleDescriptor is the wire shape of a single module's state as carried
// in a moduleInfo frame.
type ModuleDescriptor struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
	Handling  bool   `json:"handling"`
}

func helloMessage(source, version, env, userID string) *Message {
	return &Message{Type: MsgHello, Source: source, ID: 0, Version: version, Env: env, UserID: userID}
}

func heartbeatMessage(source string, id uint64) *Message {
	return &Message{Type: MsgHeartbeat, Source: source, ID: id}
}

func instanceInfoMessage(source string, id uint64, priority int64, address string) *Message {
	return &Message{Type: MsgInstanceInfo, Source: source, ID: id, Priority: priority, Address: address}
}

func lostPeerMessage(source string, id uint64, peer string) *Message {
	return &Message{Type: MsgLostPeer, Source: source, ID: id, Peer: peer}
}

func assignModuleMessage(source string, id uint64, peer, module string) *Message {
	return &Message{Type: MsgAssignModule, Source: source, ID: id, Peer: peer, Module: module}
}

func requestModuleMessage(source string, id uint64, module string) *Message {
	return &Message{Type: MsgRequestModule, Source: source, ID: id, Module: module}
}

func controlSwitchMessage(source string, id uint64, peer string) *Message {
	return &Message{Type: MsgControlSwitch, Source: source, ID: id, Peer: peer}
}

func moduleInfoMessage(source string, id uint64, mods []ModuleDescriptor) *Message {
	return &Message{Type: MsgModuleInfo, Source: source, ID: id, Modules: mods}
}

func expireConfigCacheMessage(source string, id uint64, configName string, scope Scope, cacheID string) *Message {
	return &Message{Type: MsgExpireConfigCache, Source: source, ID: id, ConfigName: configName, Scope: scope, CacheID: cacheID}
}
