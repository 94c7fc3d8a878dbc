// SPDX-FileCopyrightText: 2020 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package docker

import (
	"context"
	"net/url"
)

// Transport is everything the synchronization engine needs from docker.
type Transport interface {
	Fetcher
	Streamer
	Commander
}

type Fetcher interface {
	// FetchOnce returns the payload of a single GET against path.
	FetchOnce(ctx context.Context, path string, params url.Values) ([]byte, error)
}

type Streamer interface {
	// FetchStream opens a long-lived GET against path.
	FetchStream(ctx context.Context, path string, params url.Values) (Stream, error)
}

type Commander interface {
	// Command issues a state-changing request and returns the response payload.
	Command(ctx context.Context, method, path string, params url.Values, body interface{}) ([]byte, error)
}
