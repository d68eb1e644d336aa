package sync

import "sync"

// fakeModuleRegistry is a hand-written in-memory ModuleRegistry, the way
// internal/storage.MemoryDB stands in for a real store.
type fakeModuleRegistry struct {
	mu      sync.Mutex
	modules map[string]LocalModule
}

func newFakeModuleRegistry(names ...string) *fakeModuleRegistry {
	r := &fakeModuleRegistry{modules: make(map[string]LocalModule)}
	for _, n := range names {
		r.modules[n] = LocalModule{Name: n, Available: true}
	}
	return r
}

func (r *fakeModuleRegistry) Modules() []LocalModule {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]LocalModule, 0, len(r.modules))
	for _, m := range r.modules {
		out = append(out, m)
	}
	return out
}

func (r *fakeModuleRegistry) SetHandler(name, handler string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.modules[name]
	m.Name = name
	m.Handler = handler
	r.modules[name] = m
}

func (r *fakeModuleRegistry) handlerOf(name string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.modules[name].Handler
}

// fakeConfigCache records every expiry it's handed.
type fakeConfigCache struct {
	mu      sync.Mutex
	expires []expireCall
}

type expireCall struct {
	ConfigName string
	Scope      Scope
	ID         string
}

func (f *fakeConfigCache) ExpireCache(configName string, scope Scope, id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expires = append(f.expires, expireCall{configName, scope, id})
}

func (f *fakeConfigCache) calls() []expireCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]expireCall, len(f.expires))
	copy(out, f.expires)
	return out
}
