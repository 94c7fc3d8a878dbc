// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/mock"
	"github.com/xmidt-org/dockyard/engine"
	"github.com/xmidt-org/dockyard/model"
)

type mockFacade struct {
	mock.Mock

	lock    sync.Mutex
	changed map[engine.Subscription]engine.ChangeListener
	removed map[engine.Subscription]engine.RemoveListener
	failed  map[engine.Subscription]engine.FailureListener
}

func newMockFacade() *mockFacade {
	return &mockFacade{
		changed: make(map[engine.Subscription]engine.ChangeListener),
		removed: make(map[engine.Subscription]engine.RemoveListener),
		failed:  make(map[engine.Subscription]engine.FailureListener),
	}
}

func (m *mockFacade) Get(kind model.Kind) map[string]model.Item {
	args := m.Called(kind)
	return args.Get(0).(map[string]model.Item)
}

func (m *mockFacade) Item(kind model.Kind, id string) (model.Item, bool) {
	args := m.Called(kind, id)
	return args.Get(0).(model.Item), args.Bool(1)
}

func (m *mockFacade) StartContainer(ctx context.Context, id string, options map[string]interface{}) error {
	return m.Called(ctx, id, options).Error(0)
}

func (m *mockFacade) StopContainer(ctx context.Context, id string, timeout time.Duration) error {
	return m.Called(ctx, id, timeout).Error(0)
}

func (m *mockFacade) RestartContainer(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockFacade) DeleteContainer(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockFacade) DeleteImage(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockFacade) CreateContainer(ctx context.Context, spec engine.CreateSpec) (string, error) {
	args := m.Called(ctx, spec)
	return args.String(0), args.Error(1)
}

func (m *mockFacade) OnChanged(l engine.ChangeListener) engine.Subscription {
	m.lock.Lock()
	defer m.lock.Unlock()
	sub := engine.Subscription(uuid.NewString())
	m.changed[sub] = l
	return sub
}

func (m *mockFacade) OnRemoved(l engine.RemoveListener) engine.Subscription {
	m.lock.Lock()
	defer m.lock.Unlock()
	sub := engine.Subscription(uuid.NewString())
	m.removed[sub] = l
	return sub
}

func (m *mockFacade) OnFailure(l engine.FailureListener) engine.Subscription {
	m.lock.Lock()
	defer m.lock.Unlock()
	sub := engine.Subscription(uuid.NewString())
	m.failed[sub] = l
	return sub
}

func (m *mockFacade) Unsubscribe(sub engine.Subscription) {
	m.lock.Lock()
	defer m.lock.Unlock()
	delete(m.changed, sub)
	delete(m.removed, sub)
	delete(m.failed, sub)
}

func (m *mockFacade) listeners() int {
	m.lock.Lock()
	defer m.lock.Unlock()
	return len(m.changed) + len(m.removed) + len(m.failed)
}

func (m *mockFacade) fireChanged(item model.Item) {
	m.lock.Lock()
	ls := make([]engine.ChangeListener, 0, len(m.changed))
	for _, l := range m.changed {
		ls = append(ls, l)
	}
	m.lock.Unlock()
	for _, l := range ls {
		l.Changed(item)
	}
}

func (m *mockFacade) fireRemoved(kind model.Kind, id string) {
	m.lock.Lock()
	ls := make([]engine.RemoveListener, 0, len(m.removed))
	for _, l := range m.removed {
		ls = append(ls, l)
	}
	m.lock.Unlock()
	for _, l := range ls {
		l.Removed(kind, id)
	}
}

func newTestRouter(f *mockFacade, alive bool) *mux.Router {
	router := mux.NewRouter()
	Routes(router, "api/v1", HandlersIn{
		GetAll: newGetAllItemsHandler(f),
		Get:    newGetItemHandler(f),
		Delete: newDeleteItemHandler(f),
		Action: newContainerActionHandler(f),
		Create: newCreateContainerHandler(f),
		Status: newStatusHandler(f, func() bool { return alive }),
		Events: NewEventStream(f, 4),
	})
	return router
}

func serve(t *testing.T, h http.Handler, r *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, r)
	return rr
}
