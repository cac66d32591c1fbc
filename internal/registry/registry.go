// Package registry implements the Entity Registry (spec.md §4.4): the
// friendly_name-keyed map enforcing the "exactly one Entity per
// friendly_name" invariant, plus the allow/deny list filtering the teacher's
// zigbee.go applied inline against config.WhiteList/BlackList before ever
// registering a device or group.
package registry

import (
	"sort"
	"sync"

	"zigbee-bridge/internal/model"
)

// Filter decides whether a friendly_name/feature pair is eligible for
// registration, mirroring the teacher's whitelist/blacklist precedence:
// a non-empty WhiteList is an allow-list (anything not in it is rejected);
// otherwise BlackList entries are rejected and everything else allowed.
type Filter struct {
	WhiteList              []string
	BlackList              []string
	FeatureBlackList       []string
	DeviceFeatureBlackList map[string][]string // friendly_name -> feature names
}

func setOf(items []string) map[string]struct{} {
	s := make(map[string]struct{}, len(items))
	for _, i := range items {
		s[i] = struct{}{}
	}
	return s
}

// AllowsEntity reports whether friendlyName may be registered at all.
func (f Filter) AllowsEntity(friendlyName string) bool {
	if len(f.WhiteList) > 0 {
		_, ok := setOf(f.WhiteList)[friendlyName]
		return ok
	}
	if len(f.BlackList) > 0 {
		if _, ok := setOf(f.BlackList)[friendlyName]; ok {
			return false
		}
	}
	return true
}

// AllowsFeature reports whether a specific capability/feature of an already
// allowed entity should be exposed, honoring both the global
// featureBlackList and the per-device deviceFeatureBlackList.
func (f Filter) AllowsFeature(friendlyName, feature string) bool {
	if _, ok := setOf(f.FeatureBlackList)[feature]; ok {
		return false
	}
	if per, ok := f.DeviceFeatureBlackList[friendlyName]; ok {
		if _, blocked := setOf(per)[feature]; blocked {
			return false
		}
	}
	return true
}

// Registry owns the live friendly_name -> *model.Entity map. All methods are
// safe for concurrent use; the single-threaded event-loop model spec.md §5
// describes for the reference implementation is realized here with a mutex
// since Go schedules callbacks across goroutines rather than a single
// JS-style event queue.
type Registry struct {
	mu      sync.RWMutex
	filter  Filter
	entities map[string]*model.Entity
}

// New builds an empty Registry using filter for admission control.
func New(filter Filter) *Registry {
	return &Registry{filter: filter, entities: map[string]*model.Entity{}}
}

// Get returns the entity registered under name, if any.
func (r *Registry) Get(name string) (*model.Entity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entities[name]
	return e, ok
}

// Register inserts or replaces the entity under its Name, enforcing the
// filter. Returns false (no-op) if the filter rejects it.
func (r *Registry) Register(e *model.Entity) bool {
	if !r.filter.AllowsEntity(e.Name) {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entities[e.Name] = e
	return true
}

// Unregister removes name from the registry, invoking BridgedEndpoint.Unregister
// on the removed entity if one was present and had a backing endpoint. It is
// the caller's responsibility to call this before Register for a rename, so
// a rename observes as unregister+register per spec.md §3.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	e, ok := r.entities[name]
	delete(r.entities, name)
	r.mu.Unlock()
	if ok && e.BridgedEndpoint != nil {
		e.BridgedEndpoint.Unregister()
	}
}

// Rename moves the entity registered under oldName to newName, preserving
// its BridgedEndpoint only if the caller re-registers a fresh one — per
// spec.md §3, a rename is unregister(oldName) followed by register(newName)
// from the controller's perspective, so this helper mirrors that exactly
// rather than special-casing an in-place mutation.
func (r *Registry) Rename(oldName, newName string) (*model.Entity, bool) {
	r.mu.Lock()
	e, ok := r.entities[oldName]
	if ok {
		delete(r.entities, oldName)
	}
	r.mu.Unlock()
	if !ok {
		return nil, false
	}
	if e.BridgedEndpoint != nil {
		e.BridgedEndpoint.Unregister()
	}
	e.Name = newName
	if !r.filter.AllowsEntity(newName) {
		return e, false
	}
	r.mu.Lock()
	r.entities[newName] = e
	r.mu.Unlock()
	return e, true
}

// Names returns the currently registered friendly_names, sorted for
// deterministic diagnostics output.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entities))
	for n := range r.entities {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// All returns a snapshot copy of the registry contents.
func (r *Registry) All() map[string]*model.Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*model.Entity, len(r.entities))
	for k, v := range r.entities {
		out[k] = v
	}
	return out
}

// Len reports the number of registered entities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entities)
}
