// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xmidt-org/arrange/arrangehttp"
	"github.com/xmidt-org/dockyard/engine"
	"github.com/xmidt-org/sallust"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestUnmarshal(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	v := viper.New()
	v.Set("engine.reconnectDelay", "3s")
	v.Set("engine.containers.listInterval", "1m")
	v.Set("servers.primary.address", ":8080")
	v.Set("servers.primary.readHeaderTimeout", "2s")

	c, err := unmarshal("engine", engine.DefaultConfig())(v)
	require.NoError(err)
	assert.Equal(3*time.Second, c.ReconnectDelay)
	assert.Equal(time.Minute, c.Containers.ListInterval)
	assert.Equal(engine.DefaultConfig().Images, c.Images)

	s, err := unmarshal("servers", defaultServersConfig())(v)
	require.NoError(err)
	assert.Equal(":8080", s.Primary.Address)
	assert.Equal(2*time.Second, s.Primary.ReadHeaderTimeout)
	assert.Equal(":6601", s.Metrics.Address)
	assert.Equal("/metrics", s.MetricsPath)

	v.Set("engine.reconnectDelay", "soon")
	_, err = unmarshal("engine", engine.DefaultConfig())(v)
	assert.Error(err)
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	h := requestLogger(zap.New(core))(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		sallust.Get(r.Context()).Info("handled")
		rw.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/containers", nil))
	assert.Equal(t, http.StatusTeapot, rr.Code)
	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "/api/v1/containers", fields["path"])
	assert.Equal(t, http.MethodGet, fields["method"])
}

func TestAppendServer(t *testing.T) {
	logger := zap.NewNop()

	disabled := fxtest.NewLifecycle(t)
	require.NoError(t, appendServer(disabled, logger, "disabled", arrangehttp.ServerConfig{}, http.NotFoundHandler()))
	disabled.RequireStart().RequireStop()

	exited := make(chan struct{})
	lc := fxtest.NewLifecycle(t)
	require.NoError(t, appendServer(lc, logger, "test", arrangehttp.ServerConfig{
		Address:           "127.0.0.1:0",
		ReadHeaderTimeout: time.Second,
	}, http.NotFoundHandler(), func() { close(exited) }))
	lc.RequireStart()
	lc.RequireStop()
	select {
	case <-exited:
	case <-time.After(time.Second):
		assert.Fail(t, "the exit hook did not run after shutdown")
	}

	invalid := fxtest.NewLifecycle(t)
	require.NoError(t, appendServer(invalid, logger, "invalid", arrangehttp.ServerConfig{Address: "not an address"}, http.NotFoundHandler()))
	assert.Error(t, invalid.Start(context.Background()))
}

func TestProvideTracingConfig(t *testing.T) {
	c, err := provideTracingConfig(viper.New())
	require.NoError(t, err)
	assert.Equal(t, applicationName, c.ApplicationName)
}
