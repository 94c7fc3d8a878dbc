// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"

	"github.com/xmidt-org/dockyard/model"
	"go.uber.org/zap"
)

// Namer resolves the external name a sample is keyed by into an item id.
type Namer interface {
	Resolve(name string) (id string, ok bool)
}

type NamerFunc func(name string) (string, bool)

func (f NamerFunc) Resolve(name string) (string, bool) {
	return f(name)
}

// IdentityNamer treats sample keys as item ids.
var IdentityNamer = NamerFunc(func(name string) (string, bool) {
	return name, name != ""
})

// Merger writes metric samples into the container records.
type Merger struct {
	kind     model.Kind
	fields   []string
	namer    Namer
	sink     *Engine
	measures *Measures
	logger   *zap.Logger
}

// Apply merges every resolvable sample of batch and returns the number of
// records that changed. Samples for unknown names or items not yet cached are
// ignored.
func (m *Merger) Apply(batch model.SampleBatch) int {
	changed := 0
	for name, values := range batch.Samples {
		id, ok := m.namer.Resolve(name)
		if !ok {
			m.measures.SampleMerges.WithLabelValues(UnmatchedOutcome).Inc()
			continue
		}
		switch m.sink.applySample(m.kind, id, m.fields, values) {
		case sampleChanged:
			changed++
			m.measures.SampleMerges.WithLabelValues(ChangedOutcome).Inc()
		case sampleUnchanged:
			m.measures.SampleMerges.WithLabelValues(UnchangedOutcome).Inc()
		default:
			m.measures.SampleMerges.WithLabelValues(UnmatchedOutcome).Inc()
		}
	}
	return changed
}

// Run applies every batch received until ctx is cancelled. A closed feed
// leaves Run waiting for cancellation.
func (m *Merger) Run(ctx context.Context, batches <-chan model.SampleBatch) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case batch, ok := <-batches:
			if !ok {
				m.logger.Info("sample feed closed")
				batches = nil
				continue
			}
			if n := m.Apply(batch); n > 0 {
				m.logger.Debug("merged samples", zap.Int("changed", n))
			}
		}
	}
}
