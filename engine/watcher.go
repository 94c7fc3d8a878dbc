// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/xmidt-org/dockyard/docker"
	"github.com/xmidt-org/dockyard/model"
	"go.uber.org/zap"
)

// watcher states
const (
	active int32 = iota
	removed
)

// watcher refreshes the detail of exactly one item until docker reports it
// as gone or its context is cancelled.
type watcher struct {
	kind     model.Kind
	id       string
	path     string
	listing  map[string]interface{}
	interval time.Duration
	fetcher  docker.Fetcher
	events   *EventChannel
	sink     *Engine
	measures *Measures
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	state  int32
}

// live reports whether the watcher may still write its item.
func (w *watcher) live() bool {
	return atomic.LoadInt32(&w.state) == active && w.ctx.Err() == nil
}

func (w *watcher) run() {
	defer w.cancel()

	var ticks <-chan struct{}
	if w.events != nil {
		ch, unsubscribe := w.events.Subscribe()
		defer unsubscribe()
		ticks = ch
	}

	timer := time.NewTimer(w.interval)
	defer timer.Stop()
	for w.refresh() {
		timer.Reset(w.interval)
		select {
		case <-w.ctx.Done():
			return
		case <-timer.C:
		case <-ticks:
		}
	}
}

// refresh runs one fetch/merge/notify cycle and reports whether another one
// should be scheduled.
func (w *watcher) refresh() bool {
	detail, err := w.fetch()
	if w.ctx.Err() != nil {
		return false
	}

	switch {
	case err == nil:
		w.measures.DetailFetches.WithLabelValues(string(w.kind), SuccessOutcome).Inc()
		return w.sink.commit(w.kind, w.id, model.Merge(w.listing, detail), w.live)
	case errors.Is(err, docker.ErrNotFound):
		w.measures.DetailFetches.WithLabelValues(string(w.kind), NotFoundOutcome).Inc()
		w.logger.Debug("item no longer exists")
		atomic.StoreInt32(&w.state, removed)
		w.cancel()
		w.sink.evict(w.kind, w.id)
		return false
	default:
		w.measures.DetailFetches.WithLabelValues(string(w.kind), FailureOutcome).Inc()
		w.logger.Debug("failed to fetch item detail", zap.Error(err))
		return true
	}
}

func (w *watcher) fetch() (map[string]interface{}, error) {
	payload, err := w.fetcher.FetchOnce(w.ctx, w.path, nil)
	if err != nil {
		return nil, err
	}
	var detail map[string]interface{}
	if err := json.Unmarshal(payload, &detail); err != nil {
		return nil, fmt.Errorf("%w: %v", errJSONUnmarshal, err)
	}
	return detail, nil
}
