// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cast"
	"github.com/xmidt-org/dockyard/docker"
	"github.com/xmidt-org/dockyard/model"
	"go.uber.org/zap"
)

// Scanner discovers the members of one collection and keeps one watcher
// running per member.
type Scanner struct {
	kind     model.Kind
	config   KindConfig
	fetcher  docker.Fetcher
	events   *EventChannel
	sink     *Engine
	measures *Measures
	logger   *zap.Logger
	registry *registry
	wg       sync.WaitGroup
}

func newScanner(kind model.Kind, config KindConfig, fetcher docker.Fetcher, events *EventChannel, sink *Engine, measures *Measures, logger *zap.Logger) *Scanner {
	return &Scanner{
		kind:     kind,
		config:   config,
		fetcher:  fetcher,
		events:   events,
		sink:     sink,
		measures: measures,
		logger:   logger.With(zap.String("kind", string(kind))),
		registry: newRegistry(),
	}
}

// Run scans immediately, then on every interval tick and, when the kind
// follows events, on every event hint. Cancelling ctx stops every watcher
// before Run returns.
func (s *Scanner) Run(ctx context.Context) error {
	defer s.wg.Wait()
	defer s.registry.cancelAll()

	var hints <-chan struct{}
	if s.config.FollowEvents {
		ch, unsubscribe := s.events.Subscribe()
		defer unsubscribe()
		hints = ch
	}

	ticker := time.NewTicker(s.config.ListInterval)
	defer ticker.Stop()

	s.scan(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.scan(ctx)
		case <-hints:
			s.scan(ctx)
		}
	}
}

// Watching reports the number of live watchers.
func (s *Scanner) Watching() int {
	return s.registry.len()
}

func (s *Scanner) scan(ctx context.Context) {
	listing, err := s.list(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.measures.Polls.WithLabelValues(string(s.kind), FailureOutcome).Inc()
		failure := Failure{Kind: s.kind, Problem: Classify(err), Err: err}
		s.logger.Warn("failed to list docker collection", zap.String("problem", string(failure.Problem)), zap.Error(err))
		s.sink.notifyFailure(failure)
		return
	}
	s.measures.Polls.WithLabelValues(string(s.kind), SuccessOutcome).Inc()

	for _, entry := range listing {
		id := cast.ToString(entry[s.config.IDField])
		if id == "" || s.registry.has(id) {
			continue
		}
		s.watch(ctx, id, entry)
	}
}

func (s *Scanner) list(ctx context.Context) ([]map[string]interface{}, error) {
	payload, err := s.fetcher.FetchOnce(ctx, s.config.ListPath, s.config.listParams())
	if err != nil {
		return nil, err
	}
	var listing []map[string]interface{}
	if err := json.Unmarshal(payload, &listing); err != nil {
		return nil, fmt.Errorf("%w: %v", errJSONUnmarshal, err)
	}
	return listing, nil
}

func (s *Scanner) watch(ctx context.Context, id string, listing map[string]interface{}) {
	w := &watcher{
		kind:     s.kind,
		id:       id,
		path:     s.config.detailPath(id),
		listing:  listing,
		interval: s.config.DetailInterval,
		fetcher:  s.fetcher,
		sink:     s.sink,
		measures: s.measures,
		logger:   s.logger.With(zap.String("id", id)),
	}
	if s.config.FollowEvents {
		w.events = s.events
	}
	w.ctx, w.cancel = context.WithCancel(ctx)
	if !s.registry.add(w) {
		w.cancel()
		return
	}

	gauge := s.measures.Watchers.WithLabelValues(string(s.kind))
	gauge.Inc()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer gauge.Dec()
		defer s.registry.remove(w)
		w.run()
	}()
}
