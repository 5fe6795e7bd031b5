package models

import "sync"

// IdentityCache maps live object references to their assigned identities,
// so repeated saves of the same instance are recognized as updates rather
// than creates. It is shared between the local and remote storage paths.
// Keys must be pointers (or otherwise comparable); the typical caller
// passes the same *T it later saves again.
type IdentityCache interface {
	Lookup(obj any) (Identity, bool)
	Bind(obj any, id Identity)
	Forget(obj any)
}

// NewIdentityCache returns the default mutex-guarded in-process map.
func NewIdentityCache() IdentityCache {
	return &identityMap{refs: make(map[any]Identity)}
}

type identityMap struct {
	mu   sync.RWMutex
	refs map[any]Identity
}

func (m *identityMap) Lookup(obj any) (Identity, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.refs[obj]
	return id, ok
}

func (m *identityMap) Bind(obj any, id Identity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refs[obj] = id
}

func (m *identityMap) Forget(obj any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.refs, obj)
}
