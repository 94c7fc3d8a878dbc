// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package notify

import (
	"time"

	"github.com/google/uuid"
	"github.com/xmidt-org/dockyard/engine"
	"github.com/xmidt-org/dockyard/model"
)

// Event types
const (
	ChangedEvent = "changed"
	RemovedEvent = "removed"
	FailureEvent = "failure"
)

// Event is the wire form of an engine notification.
type Event struct {
	ID      string         `json:"id"`
	Type    string         `json:"type"`
	Time    time.Time      `json:"time"`
	Kind    model.Kind     `json:"kind"`
	ItemID  string         `json:"itemId,omitempty"`
	Item    *model.Item    `json:"item,omitempty"`
	Problem engine.Problem `json:"problem,omitempty"`
	Error   string         `json:"error,omitempty"`
}

func newEvent(eventType string, kind model.Kind) Event {
	return Event{
		ID:   uuid.NewString(),
		Type: eventType,
		Time: time.Now().UTC(),
		Kind: kind,
	}
}

func Changed(item model.Item) Event {
	e := newEvent(ChangedEvent, item.Kind)
	e.ItemID = item.ID
	e.Item = &item
	return e
}

func Removed(kind model.Kind, id string) Event {
	e := newEvent(RemovedEvent, kind)
	e.ItemID = id
	return e
}

func Failed(f engine.Failure) Event {
	e := newEvent(FailureEvent, f.Kind)
	e.Problem = f.Problem
	if f.Err != nil {
		e.Error = f.Err.Error()
	}
	return e
}

// Source is the notification surface of the engine.
type Source interface {
	OnChanged(engine.ChangeListener) engine.Subscription
	OnRemoved(engine.RemoveListener) engine.Subscription
	OnFailure(engine.FailureListener) engine.Subscription
	Unsubscribe(engine.Subscription)
}

// Subscribe routes every notification of src to sink as an Event and returns
// the function that detaches it.
func Subscribe(src Source, sink func(Event)) func() {
	subs := []engine.Subscription{
		src.OnChanged(engine.ChangeListenerFunc(func(item model.Item) {
			sink(Changed(item))
		})),
		src.OnRemoved(engine.RemoveListenerFunc(func(kind model.Kind, id string) {
			sink(Removed(kind, id))
		})),
		src.OnFailure(engine.FailureListenerFunc(func(f engine.Failure) {
			sink(Failed(f))
		})),
	}
	return func() {
		for _, sub := range subs {
			src.Unsubscribe(sub)
		}
	}
}
