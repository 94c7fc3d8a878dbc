// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/xmidt-org/arrange"
	"github.com/xmidt-org/candlelight"
	"github.com/xmidt-org/dockyard/api"
	"github.com/xmidt-org/dockyard/docker"
	"github.com/xmidt-org/dockyard/engine"
	"github.com/xmidt-org/dockyard/notify"
	"github.com/xmidt-org/dockyard/samples"
	"github.com/xmidt-org/sallust"
	"github.com/xmidt-org/touchstone"
	"github.com/xmidt-org/touchstone/touchhttp"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

const (
	applicationName = "dockyard"
	apiBase         = "api/v1"
)

var (
	GitCommit = "undefined"
	Version   = "undefined"
	BuildTime = "undefined"
)

func main() {
	v, logger, err := setup(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	app := fx.New(
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger}
		}),
		fx.Supply(logger, v),
		touchstone.Provide(),
		touchhttp.Provide(),
		provideMetrics(),
		engine.Provide(),
		samples.Provide(),
		notify.Provide(),
		api.ProvideHandlers(),
		fx.Provide(
			unmarshal("engine", engine.DefaultConfig()),
			unmarshal("samples", samples.Config{}),
			unmarshal("nats", notify.Config{}),
			unmarshal("api", api.Config{}),
			unmarshal("servers", defaultServersConfig()),
			provideTransport,
			candlelight.New,
			provideTracingConfig,
		),
		fx.Invoke(
			BuildPrimaryRoutes,
			BuildMetricsRoutes,
			BuildHealthRoutes,
		),
	)

	switch err := app.Err(); {
	case errors.Is(err, pflag.ErrHelp):
		return
	case err == nil:
		app.Run()
	default:
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}

// unmarshal returns a provider for the configuration under key, starting
// from defaults.
func unmarshal[T any](key string, defaults T) func(*viper.Viper) (T, error) {
	return func(v *viper.Viper) (T, error) {
		c := defaults
		if err := v.UnmarshalKey(key, &c, arrange.ComposeDecodeHooks(sallust.DecodeHook)); err != nil {
			return c, fmt.Errorf("failed to unmarshal %s configuration: %w", key, err)
		}
		return c, nil
	}
}

func provideTransport(v *viper.Viper, logger *zap.Logger) (docker.Transport, error) {
	c, err := unmarshal("docker", docker.BasicClientConfig{})(v)
	if err != nil {
		return nil, err
	}
	c.Logger = logger.Named("docker")
	return docker.NewBasicClient(c, nil)
}

func provideTracingConfig(v *viper.Viper) (candlelight.Config, error) {
	c, err := unmarshal("tracing", candlelight.Config{})(v)
	if err != nil {
		return candlelight.Config{}, err
	}
	c.ApplicationName = applicationName
	return c, nil
}
