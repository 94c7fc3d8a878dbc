// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"encoding/json"
	"io"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xmidt-org/dockyard/docker"
	"github.com/xmidt-org/dockyard/model"
	"github.com/xmidt-org/sallust"
)

func newTestMeasures() *Measures {
	return &Measures{
		Polls: prometheus.NewCounterVec(prometheus.CounterOpts{Name: "testPollsCounter"},
			[]string{KindLabel, OutcomeLabel}),
		DetailFetches: prometheus.NewCounterVec(prometheus.CounterOpts{Name: "testDetailFetchesCounter"},
			[]string{KindLabel, OutcomeLabel}),
		Watchers: prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "testWatchersGauge"},
			[]string{KindLabel}),
		StreamReconnects: prometheus.NewCounter(prometheus.CounterOpts{Name: "testReconnectsCounter"}),
		EventTicks:       prometheus.NewCounter(prometheus.CounterOpts{Name: "testTicksCounter"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{Name: "testNotificationsCounter"},
			[]string{KindLabel, TypeLabel}),
		SampleMerges: prometheus.NewCounterVec(prometheus.CounterOpts{Name: "testSampleMergesCounter"},
			[]string{OutcomeLabel}),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{Name: "testCommandsCounter"},
			[]string{VerbLabel, OutcomeLabel}),
	}
}

type response struct {
	payload []byte
	err     error
}

func jsonResponse(v interface{}) response {
	payload, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return response{payload: payload}
}

func errorResponse(err error) response {
	return response{err: err}
}

// fakeTransport serves programmable responses per path. Commands go through
// testify's mock.
type fakeTransport struct {
	mock.Mock

	lock      sync.Mutex
	responses map[string]response
	fetches   map[string]int
	streams   chan docker.Stream
	streamErr chan error
	opened    int

	// hold, when set, parks every FetchOnce until it is closed regardless of
	// the request context. entered reports each parked call.
	hold    chan struct{}
	entered chan struct{}
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		responses: map[string]response{
			"/containers/json": {payload: []byte("[]")},
			"/images/json":     {payload: []byte("[]")},
		},
		fetches:   make(map[string]int),
		streams:   make(chan docker.Stream, 10),
		streamErr: make(chan error, 10),
	}
}

func (f *fakeTransport) set(path string, r response) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.responses[path] = r
}

func (f *fakeTransport) count(path string) int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.fetches[path]
}

func (f *fakeTransport) openedStreams() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.opened
}

func (f *fakeTransport) FetchOnce(ctx context.Context, path string, _ url.Values) ([]byte, error) {
	if f.hold != nil {
		select {
		case f.entered <- struct{}{}:
		default:
		}
		<-f.hold
	}
	f.lock.Lock()
	defer f.lock.Unlock()
	f.fetches[path]++
	r, ok := f.responses[path]
	if !ok {
		return nil, docker.ErrNotFound
	}
	return r.payload, r.err
}

// FetchStream fails with the queued errors first, then hands out queued
// streams, then blocks until ctx is cancelled.
func (f *fakeTransport) FetchStream(ctx context.Context, _ string, _ url.Values) (docker.Stream, error) {
	select {
	case err := <-f.streamErr:
		return nil, err
	default:
	}
	select {
	case s := <-f.streams:
		f.lock.Lock()
		f.opened++
		f.lock.Unlock()
		return s, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeTransport) Command(ctx context.Context, method, path string, params url.Values, body interface{}) ([]byte, error) {
	args := f.Called(method, path, params, body)
	payload, _ := args.Get(0).([]byte)
	return payload, args.Error(1)
}

// fakeStream emits whatever is sent on events and fails with err once fail is
// closed.
type fakeStream struct {
	events chan []byte
	fail   chan struct{}
	err    error
	closed chan struct{}
	once   sync.Once
}

func newFakeStream() *fakeStream {
	return &fakeStream{
		events: make(chan []byte, 10),
		fail:   make(chan struct{}),
		err:    io.EOF,
		closed: make(chan struct{}),
	}
}

func (s *fakeStream) Recv() ([]byte, error) {
	select {
	case e := <-s.events:
		return e, nil
	case <-s.fail:
		return nil, s.err
	case <-s.closed:
		return nil, context.Canceled
	}
}

func (s *fakeStream) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

func (s *fakeStream) emit() {
	s.events <- []byte(`{"status":"start"}`)
}

// fastConfig keeps background schedules out of the way of a test unless the
// test asks for them.
func fastConfig() Config {
	c := DefaultConfig()
	c.ReconnectDelay = 10 * time.Millisecond
	c.Containers.ListInterval = time.Hour
	c.Containers.DetailInterval = time.Hour
	c.Images.ListInterval = time.Hour
	c.Images.DetailInterval = time.Hour
	return c
}

func newTestEngine(t *testing.T, config Config, transport *fakeTransport) *Engine {
	e, err := New(config, transport, newTestMeasures(), sallust.Default())
	require.NoError(t, err)
	return e
}

// recorder collects notifications.
type recorder struct {
	lock     sync.Mutex
	changed  []model.Item
	removed  []model.Key
	failures []Failure
}

func (r *recorder) attach(e *Engine) {
	e.OnChanged(ChangeListenerFunc(func(item model.Item) {
		r.lock.Lock()
		defer r.lock.Unlock()
		r.changed = append(r.changed, item)
	}))
	e.OnRemoved(RemoveListenerFunc(func(kind model.Kind, id string) {
		r.lock.Lock()
		defer r.lock.Unlock()
		r.removed = append(r.removed, model.Key{Kind: kind, ID: id})
	}))
	e.OnFailure(FailureListenerFunc(func(f Failure) {
		r.lock.Lock()
		defer r.lock.Unlock()
		r.failures = append(r.failures, f)
	}))
}

func (r *recorder) changedFor(id string) int {
	r.lock.Lock()
	defer r.lock.Unlock()
	n := 0
	for _, item := range r.changed {
		if item.ID == id {
			n++
		}
	}
	return n
}

func (r *recorder) removedKeys() []model.Key {
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([]model.Key(nil), r.removed...)
}

func (r *recorder) failureList() []Failure {
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([]Failure(nil), r.failures...)
}
