// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/xmidt-org/dockyard/notify"
	"github.com/xmidt-org/sallust"
	"go.uber.org/zap"
)

const (
	defaultEventBuffer = 64
	writeWait          = 10 * time.Second
	pingPeriod         = 30 * time.Second
	pongWait           = pingPeriod + writeWait
)

// EventStream pushes engine notifications to websocket clients as JSON
// events. Slow clients lose events rather than stall the engine.
type EventStream struct {
	source   notify.Source
	upgrader websocket.Upgrader
	buffer   int
}

func NewEventStream(source notify.Source, buffer int) *EventStream {
	if buffer <= 0 {
		buffer = defaultEventBuffer
	}
	return &EventStream{
		source: source,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		buffer: buffer,
	}
}

func (s *EventStream) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	logger := sallust.Get(r.Context())
	conn, err := s.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	events := make(chan notify.Event, s.buffer)
	unsubscribe := notify.Subscribe(s.source, func(e notify.Event) {
		select {
		case events <- e:
		default:
			logger.Warn("dropping event for slow websocket client", zap.String("type", e.Type), zap.String("id", e.ID))
		}
	})
	defer unsubscribe()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go s.readLoop(conn, cancel)

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-events:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(e); err != nil {
				logger.Debug("websocket write failed", zap.Error(err))
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				logger.Debug("websocket ping failed", zap.Error(err))
				return
			}
		}
	}
}

// readLoop discards client messages and cancels the stream once the
// client goes away.
func (s *EventStream) readLoop(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}
