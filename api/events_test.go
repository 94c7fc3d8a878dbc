// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xmidt-org/dockyard/model"
	"github.com/xmidt-org/dockyard/notify"
)

func TestEventStream(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	f := newMockFacade()
	server := httptest.NewServer(newTestRouter(f, true))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(err)

	require.Eventually(func() bool { return f.listeners() == 3 }, time.Second, 5*time.Millisecond)

	f.fireChanged(model.Item{ID: "a", Kind: model.Containers, Data: map[string]interface{}{"State": "running"}})
	f.fireRemoved(model.Containers, "a")

	require.NoError(conn.SetReadDeadline(time.Now().Add(time.Second)))
	var changed, removed notify.Event
	require.NoError(conn.ReadJSON(&changed))
	require.NoError(conn.ReadJSON(&removed))

	assert.Equal(notify.ChangedEvent, changed.Type)
	assert.Equal("a", changed.ItemID)
	require.NotNil(changed.Item)
	assert.Equal("running", changed.Item.Data["State"])
	assert.Equal(notify.RemovedEvent, removed.Type)
	assert.Equal(model.Containers, removed.Kind)

	require.NoError(conn.Close())
	assert.Eventually(func() bool { return f.listeners() == 0 }, time.Second, 5*time.Millisecond)
}

func TestEventStreamRejectsPlainRequests(t *testing.T) {
	f := newMockFacade()
	rr := serve(t, newTestRouter(f, true), httptest.NewRequest(http.MethodGet, "/api/v1/events", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Zero(t, f.listeners())
}

func TestNewEventStreamDefaults(t *testing.T) {
	f := newMockFacade()
	s := NewEventStream(f, 0)
	assert.Equal(t, defaultEventBuffer, s.buffer)
}
