// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package engine

import "sync"

// registry tracks the live watcher of every discovered id. A scanner owns
// exactly one registry.
type registry struct {
	lock     sync.Mutex
	watchers map[string]*watcher
}

func newRegistry() *registry {
	return &registry{watchers: make(map[string]*watcher)}
}

// add registers w unless its id already has a live watcher.
func (r *registry) add(w *watcher) bool {
	r.lock.Lock()
	defer r.lock.Unlock()
	if _, ok := r.watchers[w.id]; ok {
		return false
	}
	r.watchers[w.id] = w
	return true
}

// has reports whether id has a live watcher.
func (r *registry) has(id string) bool {
	r.lock.Lock()
	defer r.lock.Unlock()
	_, ok := r.watchers[id]
	return ok
}

// remove deregisters w. A newer watcher registered under the same id is left
// alone.
func (r *registry) remove(w *watcher) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.watchers[w.id] == w {
		delete(r.watchers, w.id)
	}
}

// cancelAll stops every registered watcher.
func (r *registry) cancelAll() {
	r.lock.Lock()
	defer r.lock.Unlock()
	for _, w := range r.watchers {
		w.cancel()
	}
}

func (r *registry) len() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return len(r.watchers)
}
