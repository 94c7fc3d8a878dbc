// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xmidt-org/dockyard/docker"
	"github.com/xmidt-org/dockyard/model"
)

const (
	waitFor = time.Second
	tick    = 5 * time.Millisecond
)

type listing []map[string]interface{}

func TestListDetailRemove(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	transport := newFakeTransport()
	transport.set("/containers/json", jsonResponse(listing{{"Id": "a"}, {"Id": "b"}}))
	transport.set("/containers/a/json", jsonResponse(map[string]interface{}{"Id": "a", "State": "running"}))
	transport.set("/containers/b/json", errorResponse(errors.New("connection reset")))
	stream := newFakeStream()
	transport.streams <- stream

	e := newTestEngine(t, fastConfig(), transport)
	var rec recorder
	rec.attach(e)
	require.NoError(e.Start(context.Background()))
	defer e.Stop(context.Background())

	require.Eventually(func() bool { return rec.changedFor("a") == 1 }, waitFor, tick)
	item, ok := e.Item(model.Containers, "a")
	require.True(ok)
	assert.Equal(map[string]interface{}{"Id": "a", "State": "running"}, item.Data)
	_, ok = e.Item(model.Containers, "b")
	assert.False(ok)
	assert.Zero(rec.changedFor("b"))

	// a disappears from docker, the next hint drives its watcher into removal
	transport.set("/containers/json", jsonResponse(listing{{"Id": "b"}}))
	transport.set("/containers/a/json", errorResponse(fmt.Errorf("%w: No such container: a", docker.ErrNotFound)))
	require.Eventually(func() bool { return transport.openedStreams() == 1 }, waitFor, tick)
	stream.emit()

	require.Eventually(func() bool { return len(rec.removedKeys()) == 1 }, waitFor, tick)
	assert.Equal([]model.Key{{Kind: model.Containers, ID: "a"}}, rec.removedKeys())
	assert.Empty(e.Get(model.Containers))
	assert.Equal(1, rec.changedFor("a"))

	fetches := transport.count("/containers/a/json")
	stream.emit()
	stream.emit()
	assert.Never(func() bool {
		return transport.count("/containers/a/json") != fetches
	}, 100*time.Millisecond, tick)
	assert.Empty(rec.failureList())
}

func TestAtMostOneWatcher(t *testing.T) {
	assert := assert.New(t)
	transport := newFakeTransport()
	transport.set("/containers/json", jsonResponse(listing{{"Id": "a"}, {"Id": "a"}}))
	transport.set("/containers/a/json", jsonResponse(map[string]interface{}{"State": "running"}))

	e := newTestEngine(t, fastConfig(), transport)
	s := e.scanners[model.Containers]
	ctx, cancel := context.WithCancel(context.Background())

	for i := 0; i < 50; i++ {
		s.scan(ctx)
	}
	assert.Equal(1, s.Watching())
	assert.Eventually(func() bool { return transport.count("/containers/a/json") == 1 }, waitFor, tick)
	assert.Never(func() bool { return transport.count("/containers/a/json") > 1 }, 50*time.Millisecond, tick)

	cancel()
	s.wg.Wait()
	assert.Zero(s.Watching())
}

func TestRediscoveryAfterRemoval(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	transport := newFakeTransport()
	transport.set("/images/json", jsonResponse(listing{{"Id": "sha256:1", "RepoTags": []string{"nginx:latest"}}}))

	e := newTestEngine(t, fastConfig(), transport)
	var rec recorder
	rec.attach(e)
	s := e.scanners[model.Images]
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		s.wg.Wait()
	}()

	// no detail yet: docker answers 404
	s.scan(ctx)
	require.Eventually(func() bool { return s.Watching() == 0 }, waitFor, tick)
	assert.Equal([]model.Key{{Kind: model.Images, ID: "sha256:1"}}, rec.removedKeys())

	transport.set("/images/sha256:1/json", jsonResponse(map[string]interface{}{"Size": 1024}))
	s.scan(ctx)
	require.Eventually(func() bool { return rec.changedFor("sha256:1") == 1 }, waitFor, tick)
	item, ok := e.Item(model.Images, "sha256:1")
	require.True(ok)
	assert.Equal(float64(1024), item.Data["Size"])
	assert.Equal([]interface{}{"nginx:latest"}, item.Data["RepoTags"])
}

func TestListingFailure(t *testing.T) {
	tcs := []struct {
		desc            string
		response        response
		expectedProblem Problem
		expectedErr     error
	}{
		{
			desc:            "Service absent",
			response:        errorResponse(fmt.Errorf("%w: dial unix /var/run/docker.sock", docker.ErrServiceAbsent)),
			expectedProblem: ProblemNotFound,
			expectedErr:     docker.ErrServiceAbsent,
		},
		{
			desc:            "Not found",
			response:        errorResponse(docker.ErrNotFound),
			expectedProblem: ProblemNotFound,
			expectedErr:     docker.ErrNotFound,
		},
		{
			desc:            "Access denied",
			response:        errorResponse(docker.ErrFailedAuthentication),
			expectedProblem: ProblemNotAuthorized,
			expectedErr:     docker.ErrFailedAuthentication,
		},
		{
			desc:            "Undecodable listing",
			response:        response{payload: []byte("<html>")},
			expectedProblem: ProblemInternal,
			expectedErr:     errJSONUnmarshal,
		},
	}

	for _, tc := range tcs {
		t.Run(tc.desc, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)
			transport := newFakeTransport()
			transport.set("/containers/json", tc.response)
			e := newTestEngine(t, fastConfig(), transport)
			require.NoError(e.Merge(model.Containers, "a", map[string]interface{}{"State": "running"}))
			var rec recorder
			rec.attach(e)

			s := e.scanners[model.Containers]
			s.scan(context.Background())

			failures := rec.failureList()
			require.Len(failures, 1)
			assert.Equal(model.Containers, failures[0].Kind)
			assert.Equal(tc.expectedProblem, failures[0].Problem)
			assert.True(errors.Is(failures[0], tc.expectedErr),
				fmt.Errorf("error [%v] doesn't contain error [%v] in its err chain",
					failures[0], tc.expectedErr),
			)
			assert.Contains(e.Get(model.Containers), "a")
			assert.Empty(rec.removedKeys())
			assert.Zero(s.Watching())
		})
	}
}

func TestScanSkipsEntriesWithoutID(t *testing.T) {
	assert := assert.New(t)
	transport := newFakeTransport()
	transport.set("/containers/json", jsonResponse(listing{{"Names": []string{"/orphan"}}, {"Id": ""}}))
	e := newTestEngine(t, fastConfig(), transport)

	s := e.scanners[model.Containers]
	s.scan(context.Background())
	assert.Zero(s.Watching())
}

func newTestWatcher(e *Engine, fetcher docker.Fetcher, id string, listing map[string]interface{}) *watcher {
	config := e.config.kind(model.Containers)
	w := &watcher{
		kind:     model.Containers,
		id:       id,
		path:     config.detailPath(id),
		listing:  listing,
		interval: time.Hour,
		fetcher:  fetcher,
		sink:     e,
		measures: e.measures,
		logger:   e.logger,
	}
	w.ctx, w.cancel = context.WithCancel(context.Background())
	return w
}

func TestWatcherTransientTolerance(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	transport := newFakeTransport()
	e := newTestEngine(t, fastConfig(), transport)
	var rec recorder
	rec.attach(e)
	w := newTestWatcher(e, transport, "a", map[string]interface{}{"Id": "a", "Names": "/web", "State": "created"})

	transport.set("/containers/a/json", jsonResponse(map[string]interface{}{"State": "running"}))
	require.True(w.refresh())
	expected := map[string]interface{}{"Id": "a", "Names": "/web", "State": "running"}
	item, ok := e.Item(model.Containers, "a")
	require.True(ok)
	assert.Equal(expected, item.Data)

	transport.set("/containers/a/json", errorResponse(errors.New("connection reset")))
	assert.True(w.refresh())
	transport.set("/containers/a/json", response{payload: []byte("{")})
	assert.True(w.refresh())

	item, ok = e.Item(model.Containers, "a")
	require.True(ok)
	assert.Equal(expected, item.Data)
	assert.Equal(1, rec.changedFor("a"))
	assert.Empty(rec.removedKeys())
	assert.Equal(3, transport.count("/containers/a/json"))

	transport.set("/containers/a/json", errorResponse(docker.ErrNotFound))
	assert.False(w.refresh())
	assert.False(w.live())
	_, ok = e.Item(model.Containers, "a")
	assert.False(ok)
	assert.Equal([]model.Key{{Kind: model.Containers, ID: "a"}}, rec.removedKeys())
}

// lateFetcher answers only once released, whatever happened to the request
// context in the meantime.
type lateFetcher struct {
	release chan struct{}
	payload []byte
}

func (f lateFetcher) FetchOnce(context.Context, string, url.Values) ([]byte, error) {
	<-f.release
	return f.payload, nil
}

func TestWatcherLateResponse(t *testing.T) {
	assert := assert.New(t)
	e := newTestEngine(t, fastConfig(), newFakeTransport())
	var rec recorder
	rec.attach(e)

	fetcher := lateFetcher{release: make(chan struct{}), payload: []byte(`{"State":"running"}`)}
	w := newTestWatcher(e, fetcher, "a", nil)

	result := make(chan bool, 1)
	go func() { result <- w.refresh() }()
	w.cancel()
	close(fetcher.release)

	assert.False(<-result)
	_, ok := e.Item(model.Containers, "a")
	assert.False(ok)
	assert.Zero(rec.changedFor("a"))
}

func TestWatcherRunFollowsHints(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	transport := newFakeTransport()
	transport.set("/containers/a/json", jsonResponse(map[string]interface{}{"State": "running"}))
	e := newTestEngine(t, fastConfig(), transport)
	var rec recorder
	rec.attach(e)

	w := newTestWatcher(e, transport, "a", nil)
	w.events = e.Events()
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.run()
	}()

	require.Eventually(func() bool { return rec.changedFor("a") == 1 }, waitFor, tick)
	e.Events().tick()
	require.Eventually(func() bool { return rec.changedFor("a") == 2 }, waitFor, tick)

	w.cancel()
	<-done
	assert.Equal(2, transport.count("/containers/a/json"))
}
