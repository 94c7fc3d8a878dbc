// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/justinas/alice"
	"github.com/xmidt-org/arrange/arrangehttp"
	"github.com/xmidt-org/candlelight"
	"github.com/xmidt-org/dockyard/api"
	"github.com/xmidt-org/httpaux"
	"github.com/xmidt-org/httpaux/recovery"
	"github.com/xmidt-org/sallust"
	"github.com/xmidt-org/touchstone/touchhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type ServersConfig struct {
	Primary arrangehttp.ServerConfig
	Metrics arrangehttp.ServerConfig
	Health  arrangehttp.ServerConfig

	MetricsPath string
	HealthPath  string
}

func defaultServersConfig() ServersConfig {
	return ServersConfig{
		Primary:     arrangehttp.ServerConfig{Address: ":6600"},
		Metrics:     arrangehttp.ServerConfig{Address: ":6601"},
		Health:      arrangehttp.ServerConfig{Address: ":6602"},
		MetricsPath: "/metrics",
		HealthPath:  "/health",
	}
}

type PrimaryRoutesIn struct {
	fx.In
	Config     ServersConfig
	Metrics    touchhttp.ServerInstrumenter `name:"servers.primary.metrics"`
	Handlers   api.HandlersIn
	Tracing    candlelight.Tracing
	Logger     *zap.Logger
	Lifecycle  fx.Lifecycle
	Shutdowner fx.Shutdowner
}

func BuildPrimaryRoutes(in PrimaryRoutesIn) error {
	router := mux.NewRouter()
	options := []otelmux.Option{
		otelmux.WithTracerProvider(in.Tracing.TracerProvider()),
		otelmux.WithPropagators(in.Tracing.Propagator()),
	}
	router.Use(
		otelmux.Middleware("server_primary", options...),
		mux.MiddlewareFunc(candlelight.EchoFirstTraceNodeInfo(in.Tracing, false)),
	)
	api.Routes(router, apiBase, in.Handlers)

	chain := alice.New(
		recovery.Middleware(recovery.WithStatusCode(555)),
		in.Metrics.Then,
		requestLogger(in.Logger),
	)
	return appendServer(in.Lifecycle, in.Logger, "primary", in.Config.Primary, chain.Then(router),
		arrangehttp.ShutdownOnExit(in.Shutdowner))
}

type MetricsRoutesIn struct {
	fx.In
	Config     ServersConfig
	Handler    touchhttp.Handler
	Logger     *zap.Logger
	Lifecycle  fx.Lifecycle
	Shutdowner fx.Shutdowner
}

func BuildMetricsRoutes(in MetricsRoutesIn) error {
	router := mux.NewRouter()
	router.Handle(in.Config.MetricsPath, in.Handler).Methods(http.MethodGet)
	return appendServer(in.Lifecycle, in.Logger, "metrics", in.Config.Metrics, router,
		arrangehttp.ShutdownOnExit(in.Shutdowner))
}

type HealthRoutesIn struct {
	fx.In
	Config     ServersConfig
	Metrics    touchhttp.ServerInstrumenter `name:"servers.health.metrics"`
	Logger     *zap.Logger
	Lifecycle  fx.Lifecycle
	Shutdowner fx.Shutdowner
}

func BuildHealthRoutes(in HealthRoutesIn) error {
	router := mux.NewRouter()
	router.Handle(in.Config.HealthPath, httpaux.ConstantHandler{
		StatusCode: http.StatusOK,
	}).Methods(http.MethodGet)
	return appendServer(in.Lifecycle, in.Logger, "health", in.Config.Health, in.Metrics.Then(router),
		arrangehttp.ShutdownOnExit(in.Shutdowner))
}

// requestLogger makes a request scoped logger available through sallust.Get.
func requestLogger(logger *zap.Logger) alice.Constructor {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			l := logger.With(
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("remote", r.RemoteAddr),
			)
			next.ServeHTTP(rw, r.WithContext(sallust.With(r.Context(), l)))
		})
	}
}

// appendServer binds the server described by config to the application
// lifecycle. An empty address leaves the server disabled.
func appendServer(lc fx.Lifecycle, logger *zap.Logger, name string, config arrangehttp.ServerConfig, h http.Handler, onExit ...arrangehttp.ServerExit) error {
	logger = logger.With(zap.String("server", name))
	if config.Address == "" {
		logger.Info("server disabled")
		return nil
	}

	s, err := config.NewServer(h)
	if err != nil {
		return err
	}
	s.ErrorLog = zap.NewStdLog(logger)

	onExit = append([]arrangehttp.ServerExit{func() {
		logger.Info("server exited")
	}}, onExit...)
	start := arrangehttp.ServerOnStart(s, config, onExit...)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := start(ctx); err != nil {
				return err
			}
			logger.Info("server started", zap.String("address", s.Addr))
			return nil
		},
		OnStop: s.Shutdown,
	})
	return nil
}
