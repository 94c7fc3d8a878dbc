// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package samples

import (
	"time"

	"github.com/xmidt-org/dockyard/engine"
	"github.com/xmidt-org/dockyard/model"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config is the samples section of the application configuration.
type Config struct {
	// Enabled turns cgroup sampling on.
	Enabled bool

	Interval time.Duration

	// CPUBase and MemoryBase root the cgroup v1 hierarchies to read.
	CPUBase    string
	MemoryBase string
}

type FeedIn struct {
	fx.In
	Config    Config
	Measures  Measures
	Logger    *zap.Logger
	Lifecycle fx.Lifecycle
}

type FeedOut struct {
	fx.Out
	Batches <-chan model.SampleBatch
	Namer   engine.Namer
}

// Provide sets up the cgroup sample feed for the engine. When sampling is
// disabled no batches are provided.
func Provide() fx.Option {
	return fx.Options(
		ProvideMetrics(),
		fx.Provide(
			func(in FeedIn) (FeedOut, error) {
				if !in.Config.Enabled {
					return FeedOut{Namer: Namer}, nil
				}
				feed, err := NewFeed(FeedConfig{
					Interval: in.Config.Interval,
					Logger:   in.Logger.Named("samples"),
				}, NewCgroupSource(in.Config.CPUBase, in.Config.MemoryBase), &in.Measures)
				if err != nil {
					return FeedOut{}, err
				}
				in.Lifecycle.Append(fx.Hook{
					OnStart: feed.Start,
					OnStop:  feed.Stop,
				})
				return FeedOut{Batches: feed.Batches(), Namer: Namer}, nil
			},
		),
	)
}
