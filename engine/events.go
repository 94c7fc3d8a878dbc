// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xmidt-org/dockyard/docker"
	"go.uber.org/zap"
)

// EventHandle is one open connection to the event stream. Every decoded
// notification becomes a tick. Ticks carry no payload and coalesce when
// nobody is reading.
type EventHandle struct {
	stream docker.Stream
	ticks  chan struct{}
	done   chan struct{}
	err    error
}

// Ticks delivers one hint per notification received.
func (h *EventHandle) Ticks() <-chan struct{} {
	return h.ticks
}

// Done is closed once the connection drops.
func (h *EventHandle) Done() <-chan struct{} {
	return h.done
}

// Err reports why the connection dropped. It is only meaningful after Done is
// closed.
func (h *EventHandle) Err() error {
	select {
	case <-h.done:
		return h.err
	default:
		return nil
	}
}

// Close cancels the underlying fetch.
func (h *EventHandle) Close() error {
	return h.stream.Close()
}

func (h *EventHandle) read(logger *zap.Logger) {
	defer close(h.done)
	for {
		payload, err := h.stream.Recv()
		if err != nil {
			h.err = err
			return
		}
		logger.Debug("docker event received", zap.ByteString("event", payload))
		select {
		case h.ticks <- struct{}{}:
		default:
		}
	}
}

// EventChannel owns the single event stream connection and fans its ticks
// out to every subscriber.
type EventChannel struct {
	streamer docker.Streamer
	path     string
	delay    time.Duration
	measures *Measures
	logger   *zap.Logger
	alive    atomic.Bool

	lock        sync.Mutex
	subscribers map[uint64]chan struct{}
	nextID      uint64
}

func newEventChannel(streamer docker.Streamer, path string, delay time.Duration, measures *Measures, logger *zap.Logger) *EventChannel {
	return &EventChannel{
		streamer:    streamer,
		path:        path,
		delay:       delay,
		measures:    measures,
		logger:      logger,
		subscribers: make(map[uint64]chan struct{}),
	}
}

// Open starts a fresh connection to the event stream.
func (c *EventChannel) Open(ctx context.Context) (*EventHandle, error) {
	stream, err := c.streamer.FetchStream(ctx, c.path, nil)
	if err != nil {
		return nil, err
	}
	h := &EventHandle{
		stream: stream,
		ticks:  make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go h.read(c.logger)
	return h, nil
}

// Alive reports whether a stream connection is currently open.
func (c *EventChannel) Alive() bool {
	return c.alive.Load()
}

// Run keeps exactly one connection open until ctx is cancelled, waiting the
// reconnect delay between attempts. Notifications missed while disconnected
// are not replayed.
func (c *EventChannel) Run(ctx context.Context) error {
	timer := time.NewTimer(c.delay)
	defer timer.Stop()
	for {
		h, err := c.Open(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Warn("failed to open docker event stream", zap.Error(err))
		} else {
			c.alive.Store(true)
			c.follow(ctx, h)
			c.alive.Store(false)
			h.Close()
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Warn("docker event stream dropped", zap.Error(h.Err()))
		}

		timer.Reset(c.delay)
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}
		c.measures.StreamReconnects.Inc()
	}
}

func (c *EventChannel) follow(ctx context.Context, h *EventHandle) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.Ticks():
			c.tick()
		case <-h.Done():
			select {
			case <-h.Ticks():
				c.tick()
			default:
			}
			return
		}
	}
}

func (c *EventChannel) tick() {
	c.measures.EventTicks.Inc()
	c.lock.Lock()
	defer c.lock.Unlock()
	for _, ch := range c.subscribers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Subscribe returns a channel receiving a hint whenever docker reports a
// change, and the function that releases it.
func (c *EventChannel) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	c.lock.Lock()
	id := c.nextID
	c.nextID++
	c.subscribers[id] = ch
	c.lock.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.lock.Lock()
			delete(c.subscribers, id)
			c.lock.Unlock()
		})
	}
}
