package sync

// ModuleRegistry is implemented by the embedding bot's module framework.
// SyncHandler never owns module lifecycles; it only reads availability and
// flips the handler assignment a module runs under.
type ModuleRegistry interface {
	// Modules returns the current local module set.
	Modules() []LocalModule
	// SetHandler assigns a module to handler ("" clears it: this node
	// records no handler for the module, though another instance may
	// still be running it).
	SetHandler(name string, handler string)
}

// LocalModule describes one module from the local registry's point of view.
type LocalModule struct {
	Name      string
	Available bool
	Handler   string // "" if unassigned
}

// Handling reports whether this node is the one currently running M.
func (m LocalModule) Handling(selfName string) bool {
	return m.Handler == selfName
}

// ConfigCacheSink is implemented by the bot's configuration cache. Inbound
// expireConfigCache frames are handed to it verbatim.
type ConfigCacheSink interface {
	ExpireCache(configName string, scope Scope, id string)
}

// Scope discriminates the namespace a cache key lives in.
type Scope string

const (
	ScopeUser   Scope = "user"
	ScopeGuild  Scope = "guild"
	ScopeGlobal Scope = "global"
)

// Valid reports whether s is one of the three defined scopes.
func (s Scope) Valid() bool {
	switch s {
	case ScopeUser, ScopeGuild, ScopeGlobal:
		return true
	default:
		return false
	}
}
