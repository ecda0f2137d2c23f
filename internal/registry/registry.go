package registry

import "sort"

// Registry is the service entity table. Iteration order follows
// insertion order, ties (there are none, (name,id) is unique) broken
// by (name,id) — spec.md §3.5.
type Registry struct {
	byKey  map[Key]*Service
	order  []Key
	nextID int
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{byKey: make(map[Key]*Service), nextID: 1}
}

// ByJobID returns the service assigned job id n, or nil.
func (r *Registry) ByJobID(n int) *Service {
	for _, k := range r.order {
		if svc := r.byKey[k]; svc.JobID == n {
			return svc
		}
	}
	return nil
}

// Get returns the service for key, or nil if absent.
func (r *Registry) Get(key Key) *Service {
	return r.byKey[key]
}

// Put inserts svc, or returns the existing entry for svc.Key() if one
// is already registered — callers that want to update an existing
// service should mutate the returned pointer, not call Put again.
func (r *Registry) Put(svc *Service) *Service {
	key := svc.Key()
	if existing, ok := r.byKey[key]; ok {
		return existing
	}
	if svc.JobID == 0 {
		svc.JobID = r.nextID
		r.nextID++
	}
	r.byKey[key] = svc
	r.order = append(r.order, key)
	return svc
}

// Delete removes key from the registry. Safe to call on an absent key.
func (r *Registry) Delete(key Key) {
	if _, ok := r.byKey[key]; !ok {
		return
	}
	delete(r.byKey, key)
	for i, k := range r.order {
		if k == key {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// All returns every service in insertion order. The returned slice is
// safe to range over while callers mutate individual *Service fields,
// but must not be retained across a Put/Delete.
func (r *Registry) All() []*Service {
	out := make([]*Service, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.byKey[k])
	}
	return out
}

// ByName returns every instance registered under name, sorted by ID
// (string order); instances with equal IDs keep insertion order.
func (r *Registry) ByName(name string) []*Service {
	var out []*Service
	for _, k := range r.order {
		if k.Name == name {
			out = append(out, r.byKey[k])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of registered services.
func (r *Registry) Len() int { return len(r.order) }

// BeginSweep clears dirty/clean/seen on every dynamic (non-protected)
// service ahead of a configuration reload (spec.md §4.5 step 1).
// Protected services are left untouched; they survive regardless of
// whether they are re-encountered.
func (r *Registry) BeginSweep() {
	for _, svc := range r.byKey {
		if svc.Protected {
			continue
		}
		svc.Dirty = false
		svc.Clean = false
		svc.Seen = false
	}
}

// MarkSeen records that svc was re-encountered during the current
// reload pass, and marks it dirty if changed reports true (the caller
// has already compared old vs. new attributes).
func (r *Registry) MarkSeen(svc *Service, changed bool) {
	svc.Seen = true
	svc.Clean = true
	if changed {
		svc.Dirty = true
	}
}

// Unseen returns services not marked Seen and not Protected after a
// reload pass — candidates for removal (spec.md §4.5 step 3).
func (r *Registry) Unseen() []*Service {
	var out []*Service
	for _, k := range r.order {
		svc := r.byKey[k]
		if !svc.Seen && !svc.Protected {
			out = append(out, svc)
		}
	}
	return out
}

// ReverseDeps builds, for every condition key referenced by any
// registered service's expression, the list of services that
// reference it — used to propagate "dirty" to dependents when a
// condition-producing service is itself marked dirty during reload
// (spec.md §4.5 step 5).
func (r *Registry) ReverseDeps() map[string][]*Service {
	idx := make(map[string][]*Service)
	for _, k := range r.order {
		svc := r.byKey[k]
		for _, key := range svc.Condition.Keys() {
			idx[key] = append(idx[key], svc)
		}
	}
	return idx
}

// PropagateDirty marks dirty any service whose condition expression
// references another dirty service's ready condition, transitively,
// to a fixed point.
func (r *Registry) PropagateDirty() {
	rev := r.ReverseDeps()
	for changed := true; changed; {
		changed = false
		for _, k := range r.order {
			svc := r.byKey[k]
			if !svc.Dirty {
				continue
			}
			for _, dep := range rev[svc.ReadyCondition()] {
				if !dep.Dirty {
					dep.Dirty = true
					changed = true
				}
			}
		}
	}
}
