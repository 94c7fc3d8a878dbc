// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"github.com/xmidt-org/dockyard/docker"
	"github.com/xmidt-org/dockyard/model"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// EngineIn is the set of dependencies needed to build the engine.
type EngineIn struct {
	fx.In
	Config    Config
	Transport docker.Transport
	Measures  Measures
	Logger    *zap.Logger
	Lifecycle fx.Lifecycle

	// Samples and Namer are optional. Without them container records carry
	// no sample fields.
	Samples <-chan model.SampleBatch `optional:"true"`
	Namer   Namer                    `optional:"true"`
}

// Provide builds the engine, its metrics and ties synchronization to the
// application lifecycle.
func Provide() fx.Option {
	return fx.Options(
		ProvideMetrics(),
		fx.Provide(
			func(in EngineIn) (*Engine, error) {
				e, err := New(in.Config, in.Transport, &in.Measures, in.Logger.Named("engine"))
				if err != nil {
					return nil, err
				}
				if in.Samples != nil {
					if err := e.AttachSamples(in.Samples, in.Namer); err != nil {
						return nil, err
					}
				}
				in.Lifecycle.Append(fx.Hook{
					OnStart: e.Start,
					OnStop:  e.Stop,
				})
				return e, nil
			},
		),
	)
}
