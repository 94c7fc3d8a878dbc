// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/xmidt-org/dockyard/engine"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config is the nats section of the application configuration.
type Config struct {
	// Enabled turns publishing on.
	Enabled bool

	// URL of the NATS server(s).
	// (Optional). Defaults to nats://127.0.0.1:4222.
	URL string

	// Prefix of every subject.
	// (Optional). Defaults to dockyard.
	Prefix string

	// ReconnectWait between two reconnection attempts.
	// (Optional). Defaults to the nats.go default.
	ReconnectWait time.Duration
}

type PublisherIn struct {
	fx.In
	Config    Config
	Engine    *engine.Engine
	Measures  Measures
	Logger    *zap.Logger
	Lifecycle fx.Lifecycle
}

// Provide connects to NATS and publishes engine notifications for the
// lifetime of the application. Nothing is provided when publishing is
// disabled.
func Provide() fx.Option {
	return fx.Options(
		ProvideMetrics(),
		fx.Invoke(
			func(in PublisherIn) error {
				if !in.Config.Enabled {
					return nil
				}
				logger := in.Logger.Named("nats")

				var conn *nats.Conn
				in.Lifecycle.Append(fx.Hook{
					OnStart: func(context.Context) error {
						var err error
						conn, err = Connect(in.Config, logger)
						if err != nil {
							return err
						}
						p, err := NewPublisher(conn, in.Config.Prefix, &in.Measures, logger)
						if err != nil {
							conn.Close()
							return err
						}
						return p.Attach(in.Engine)
					},
					OnStop: func(context.Context) error {
						if conn == nil {
							return nil
						}
						return conn.Drain()
					},
				})
				return nil
			},
		),
	)
}

// Connect dials NATS with handlers that report connection changes to logger.
func Connect(config Config, logger *zap.Logger) (*nats.Conn, error) {
	url := config.URL
	if url == "" {
		url = nats.DefaultURL
	}
	opts := []nats.Option{
		nats.Name("dockyard"),
		nats.MaxReconnects(-1),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			logger.Error("NATS error", zap.Error(err))
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	}
	if config.ReconnectWait > 0 {
		opts = append(opts, nats.ReconnectWait(config.ReconnectWait))
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	logger.Info("connected to NATS", zap.String("url", conn.ConnectedUrl()))
	return conn, nil
}
