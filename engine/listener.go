// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"sync"

	"github.com/google/uuid"
	"github.com/xmidt-org/dockyard/model"
)

// ChangeListener is notified every time an item record is written.
type ChangeListener interface {
	// Changed is called with a private copy of the new record.
	Changed(item model.Item)
}

type ChangeListenerFunc func(item model.Item)

func (f ChangeListenerFunc) Changed(item model.Item) {
	f(item)
}

// RemoveListener is notified when an item disappears from docker.
type RemoveListener interface {
	Removed(kind model.Kind, id string)
}

type RemoveListenerFunc func(kind model.Kind, id string)

func (f RemoveListenerFunc) Removed(kind model.Kind, id string) {
	f(kind, id)
}

// FailureListener is notified when a collection listing fails.
type FailureListener interface {
	Failed(failure Failure)
}

type FailureListenerFunc func(failure Failure)

func (f FailureListenerFunc) Failed(failure Failure) {
	f(failure)
}

// Subscription identifies a registered listener.
type Subscription string

type registration[L any] struct {
	sub      Subscription
	listener L
}

// listenerSet is a copy-on-write list of listeners. Dispatch works on the
// slice captured under the lock so listeners may (un)subscribe while being
// called.
type listenerSet[L any] struct {
	lock    sync.RWMutex
	entries []registration[L]
}

func (s *listenerSet[L]) add(l L) Subscription {
	sub := Subscription(uuid.NewString())
	s.lock.Lock()
	defer s.lock.Unlock()
	next := make([]registration[L], len(s.entries), len(s.entries)+1)
	copy(next, s.entries)
	s.entries = append(next, registration[L]{sub: sub, listener: l})
	return sub
}

func (s *listenerSet[L]) remove(sub Subscription) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	for i, e := range s.entries {
		if e.sub != sub {
			continue
		}
		next := make([]registration[L], 0, len(s.entries)-1)
		next = append(next, s.entries[:i]...)
		s.entries = append(next, s.entries[i+1:]...)
		return true
	}
	return false
}

func (s *listenerSet[L]) snapshot() []registration[L] {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.entries
}

func (s *listenerSet[L]) len() int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return len(s.entries)
}

type listeners struct {
	changed listenerSet[ChangeListener]
	removed listenerSet[RemoveListener]
	failed  listenerSet[FailureListener]
}

// OnChanged registers l for item changed notifications.
func (e *Engine) OnChanged(l ChangeListener) Subscription {
	return e.listeners.changed.add(l)
}

// OnRemoved registers l for item removed notifications.
func (e *Engine) OnRemoved(l RemoveListener) Subscription {
	return e.listeners.removed.add(l)
}

// OnFailure registers l for collection failure notifications.
func (e *Engine) OnFailure(l FailureListener) Subscription {
	return e.listeners.failed.add(l)
}

// Unsubscribe removes the listener registered under sub. Unknown and already
// removed subscriptions are ignored. It is safe to call from within a listener.
func (e *Engine) Unsubscribe(sub Subscription) {
	if e.listeners.changed.remove(sub) || e.listeners.removed.remove(sub) {
		return
	}
	e.listeners.failed.remove(sub)
}

func (e *Engine) notifyChanged(item model.Item) {
	e.measures.Notifications.WithLabelValues(string(item.Kind), ChangedType).Inc()
	for _, r := range e.listeners.changed.snapshot() {
		r.listener.Changed(item.Clone())
	}
}

func (e *Engine) notifyRemoved(kind model.Kind, id string) {
	e.measures.Notifications.WithLabelValues(string(kind), RemovedType).Inc()
	for _, r := range e.listeners.removed.snapshot() {
		r.listener.Removed(kind, id)
	}
}

func (e *Engine) notifyFailure(f Failure) {
	e.measures.Notifications.WithLabelValues(string(f.Kind), FailureType).Inc()
	for _, r := range e.listeners.failed.snapshot() {
		r.listener.Failed(f)
	}
}
