// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/oklog/run"
	"github.com/spf13/cast"
	"github.com/xmidt-org/dockyard/docker"
	"github.com/xmidt-org/dockyard/model"
	"github.com/xmidt-org/sallust"
	"go.uber.org/zap"
)

// engine states
const (
	stopped int32 = iota
	running
	transitioning
)

type sampleOutcome int

const (
	sampleUnmatched sampleOutcome = iota
	sampleUnchanged
	sampleChanged
)

// Engine keeps the authoritative container and image maps in sync with
// docker. It is the only writer of those maps.
type Engine struct {
	config    Config
	transport docker.Transport
	measures  *Measures
	logger    *zap.Logger

	lock      sync.RWMutex
	items     map[model.Kind]map[string]model.Item
	listeners listeners

	events   *EventChannel
	scanners map[model.Kind]*Scanner
	merger   *Merger
	samples  <-chan model.SampleBatch

	state  int32
	cancel context.CancelFunc
	done   chan struct{}
}

// New builds an engine. Nothing talks to docker until Start is called.
func New(config Config, transport docker.Transport, measures *Measures, logger *zap.Logger) (*Engine, error) {
	if err := validateConfig(&config); err != nil {
		return nil, err
	}
	if transport == nil {
		return nil, ErrNoTransport
	}
	if measures == nil {
		return nil, ErrNilMeasures
	}
	if logger == nil {
		logger = sallust.Default()
	}

	e := &Engine{
		config:    config,
		transport: transport,
		measures:  measures,
		logger:    logger,
		items:     make(map[model.Kind]map[string]model.Item, len(model.Kinds)),
		scanners:  make(map[model.Kind]*Scanner, len(model.Kinds)),
	}
	e.events = newEventChannel(transport, config.EventsPath, config.ReconnectDelay, measures, logger.Named("events"))
	for _, k := range model.Kinds {
		e.items[k] = make(map[string]model.Item)
		e.scanners[k] = newScanner(k, config.kind(k), transport, e.events, e, measures, logger.Named("scanner"))
	}
	e.merger = &Merger{
		kind:     model.Containers,
		fields:   config.SampleFields,
		namer:    IdentityNamer,
		sink:     e,
		measures: measures,
		logger:   logger.Named("samples"),
	}
	return e, nil
}

// AttachSamples feeds container records from batches, resolving sample keys
// through namer. It must be called before Start.
func (e *Engine) AttachSamples(batches <-chan model.SampleBatch, namer Namer) error {
	if atomic.LoadInt32(&e.state) != stopped {
		return ErrEngineNotStopped
	}
	if e.samples != nil {
		return ErrSamplesAttached
	}
	if namer != nil {
		e.merger.namer = namer
	}
	e.samples = batches
	return nil
}

// Merger returns the sample merger of the container records.
func (e *Engine) Merger() *Merger {
	return e.merger
}

// Events returns the shared event channel.
func (e *Engine) Events() *EventChannel {
	return e.events
}

// Start launches the event channel, one scanner per kind and the sample
// merger. If the engine is already running, ErrEngineNotStopped is returned.
func (e *Engine) Start(_ context.Context) error {
	if !atomic.CompareAndSwapInt32(&e.state, stopped, transitioning) {
		e.logger.Error("Start called when the engine was not in stopped state", zap.Error(ErrEngineNotStopped))
		return ErrEngineNotStopped
	}

	ctx, cancel := context.WithCancel(context.Background())
	interrupt := func(error) { cancel() }

	var g run.Group
	g.Add(func() error { return e.events.Run(ctx) }, interrupt)
	for _, k := range model.Kinds {
		s := e.scanners[k]
		g.Add(func() error { return s.Run(ctx) }, interrupt)
	}
	if e.samples != nil {
		g.Add(func() error { return e.merger.Run(ctx, e.samples) }, interrupt)
	}

	e.cancel = cancel
	e.done = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		if err := g.Run(); err != nil {
			e.logger.Error("synchronization stopped", zap.Error(err))
		}
	}(e.done)

	atomic.SwapInt32(&e.state, running)
	e.logger.Info("synchronization started")
	return nil
}

// Stop cancels every actor and waits for them to exit or for ctx to expire.
// When ctx expires first the engine stays in transition until the actors are
// gone, so Start keeps failing with ErrEngineNotStopped until then.
func (e *Engine) Stop(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&e.state, running, transitioning) {
		e.logger.Error("Stop called when the engine was not in running state", zap.Error(ErrEngineNotRunning))
		return ErrEngineNotRunning
	}

	e.cancel()
	select {
	case <-e.done:
		atomic.SwapInt32(&e.state, stopped)
		e.logger.Info("synchronization stopped")
		return nil
	case <-ctx.Done():
		e.logger.Warn("synchronization still draining", zap.Error(ctx.Err()))
		go func(done <-chan struct{}) {
			<-done
			atomic.SwapInt32(&e.state, stopped)
			e.logger.Info("synchronization stopped")
		}(e.done)
		return ctx.Err()
	}
}

// Get returns a snapshot of the records of kind. The snapshot is private to
// the caller.
func (e *Engine) Get(kind model.Kind) map[string]model.Item {
	e.lock.RLock()
	defer e.lock.RUnlock()
	bucket := e.items[kind]
	snapshot := make(map[string]model.Item, len(bucket))
	for id, item := range bucket {
		snapshot[id] = item.Clone()
	}
	return snapshot
}

// Item returns a copy of one record.
func (e *Engine) Item(kind model.Kind, id string) (model.Item, bool) {
	e.lock.RLock()
	defer e.lock.RUnlock()
	item, ok := e.items[kind][id]
	if !ok {
		return model.Item{}, false
	}
	return item.Clone(), true
}

// Merge writes data as the record of id and notifies change listeners.
func (e *Engine) Merge(kind model.Kind, id string, data map[string]interface{}) error {
	if !kind.Valid() {
		return ErrUnknownKind
	}
	if id == "" {
		return ErrItemIDEmpty
	}
	e.commit(kind, id, data, nil)
	return nil
}

// Remove drops the record of id and notifies removal listeners.
func (e *Engine) Remove(kind model.Kind, id string) error {
	if !kind.Valid() {
		return ErrUnknownKind
	}
	if id == "" {
		return ErrItemIDEmpty
	}
	e.evict(kind, id)
	return nil
}

// commit stores data as the record of id as long as live, when given, still
// holds under the lock. Sample owned fields of the previous record are kept
// when data does not carry them. The return value is the liveness verdict.
func (e *Engine) commit(kind model.Kind, id string, data map[string]interface{}, live func() bool) bool {
	e.lock.Lock()
	if live != nil && !live() {
		e.lock.Unlock()
		return false
	}
	data = model.Merge(data, nil)
	if prev, ok := e.items[kind][id]; ok {
		for _, field := range e.config.SampleFields {
			if _, set := data[field]; set {
				continue
			}
			if v, ok := prev.Data[field]; ok {
				data[field] = v
			}
		}
	}
	item := model.Item{ID: id, Kind: kind, Data: data}
	e.items[kind][id] = item
	e.lock.Unlock()

	e.notifyChanged(item)
	return true
}

func (e *Engine) evict(kind model.Kind, id string) {
	e.lock.Lock()
	delete(e.items[kind], id)
	e.lock.Unlock()

	e.notifyRemoved(kind, id)
}

// applySample writes values into fields of the record of id, but only if at
// least one of them differs from what is cached.
func (e *Engine) applySample(kind model.Kind, id string, fields []string, values []float64) sampleOutcome {
	e.lock.Lock()
	item, ok := e.items[kind][id]
	if !ok {
		e.lock.Unlock()
		return sampleUnmatched
	}

	n := len(fields)
	if len(values) < n {
		n = len(values)
	}
	changed := false
	for i := 0; i < n && !changed; i++ {
		current, present := item.Data[fields[i]]
		if !present {
			changed = true
			break
		}
		f, err := cast.ToFloat64E(current)
		changed = err != nil || f != values[i]
	}
	if !changed {
		e.lock.Unlock()
		return sampleUnchanged
	}

	data := model.Merge(item.Data, nil)
	for i := 0; i < n; i++ {
		data[fields[i]] = values[i]
	}
	item.Data = data
	e.items[kind][id] = item
	e.lock.Unlock()

	e.notifyChanged(item)
	return sampleChanged
}
