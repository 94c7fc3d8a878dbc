// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package samples

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/xmidt-org/dockyard/model"
	"github.com/xmidt-org/sallust"
	"go.uber.org/zap"
)

var (
	ErrNilMeasures      = errors.New("measures cannot be nil")
	ErrNoSourceProvided = errors.New("no sample source provided")
	ErrFeedNotStopped   = errors.New("feed is either running or starting")
	ErrFeedNotRunning   = errors.New("feed is either stopped or stopping")
)

// feed states
const (
	stopped int32 = iota
	running
	transitioning
)

const defaultInterval = 2 * time.Second

// FeedConfig configures the periodic sampling.
type FeedConfig struct {
	// Interval between two collections.
	// (Optional). Defaults to 2 seconds.
	Interval time.Duration

	// Logger to be used by the feed.
	// (Optional). By default a no op logger will be used.
	Logger *zap.Logger
}

// Feed collects a Source on an interval and publishes every round as a
// batch. A consumer that falls behind only ever sees the latest batch.
type Feed struct {
	source   Source
	interval time.Duration
	measures *Measures
	logger   *zap.Logger
	batches  chan model.SampleBatch

	state    int32
	shutdown chan struct{}
	done     chan struct{}
}

func NewFeed(config FeedConfig, source Source, measures *Measures) (*Feed, error) {
	if source == nil {
		return nil, ErrNoSourceProvided
	}
	if measures == nil {
		return nil, ErrNilMeasures
	}
	if config.Interval <= 0 {
		config.Interval = defaultInterval
	}
	if config.Logger == nil {
		config.Logger = sallust.Default()
	}
	return &Feed{
		source:   source,
		interval: config.Interval,
		measures: measures,
		logger:   config.Logger,
		batches:  make(chan model.SampleBatch, 1),
	}, nil
}

// Batches delivers the collected rounds.
func (f *Feed) Batches() <-chan model.SampleBatch {
	return f.batches
}

// Start begins collecting. If the feed is already collecting, ErrFeedNotStopped
// is returned.
func (f *Feed) Start(_ context.Context) error {
	if !atomic.CompareAndSwapInt32(&f.state, stopped, transitioning) {
		f.logger.Error("Start called when the feed was not in stopped state", zap.Error(ErrFeedNotStopped))
		return ErrFeedNotStopped
	}

	f.shutdown = make(chan struct{})
	f.done = make(chan struct{})
	go f.run(f.shutdown, f.done)

	atomic.SwapInt32(&f.state, running)
	return nil
}

// Stop ends collection and waits for an in-flight round to finish.
func (f *Feed) Stop(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&f.state, running, transitioning) {
		f.logger.Error("Stop called when the feed was not in running state", zap.Error(ErrFeedNotRunning))
		return ErrFeedNotRunning
	}
	defer atomic.SwapInt32(&f.state, stopped)

	close(f.shutdown)
	select {
	case <-f.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *Feed) run(shutdown <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-shutdown:
			cancel()
		case <-ctx.Done():
		}
	}()

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()
	for {
		select {
		case <-shutdown:
			return
		case <-ticker.C:
			f.collect(ctx)
		}
	}
}

func (f *Feed) collect(ctx context.Context) {
	samples, err := f.source.Collect(ctx)
	if err != nil {
		f.measures.Collections.WithLabelValues(f.source.Name(), FailureOutcome).Inc()
		f.logger.Debug("failed to collect samples", zap.String("source", f.source.Name()), zap.Error(err))
		return
	}
	f.measures.Collections.WithLabelValues(f.source.Name(), SuccessOutcome).Inc()
	if len(samples) == 0 {
		return
	}
	f.publish(model.SampleBatch{Timestamp: time.Now(), Samples: samples})
}

func (f *Feed) publish(batch model.SampleBatch) {
	for {
		select {
		case f.batches <- batch:
			return
		default:
		}
		select {
		case <-f.batches:
		default:
		}
	}
}
