// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package docker

import (
	"context"
	"encoding/json"
	"io"
	"sync"
)

// Stream is a cancellable handle over a long-lived fetch.
type Stream interface {
	// Recv blocks until the next payload arrives. It returns io.EOF once the
	// remote end closes the connection and a non-nil error for any other
	// failure, after which the stream is unusable.
	Recv() ([]byte, error)

	// Close cancels the underlying request. It is safe to call more than once.
	Close() error
}

type jsonStream struct {
	body    io.ReadCloser
	decoder *json.Decoder
	cancel  context.CancelFunc
	once    sync.Once
}

func newJSONStream(body io.ReadCloser, cancel context.CancelFunc) *jsonStream {
	return &jsonStream{
		body:    body,
		decoder: json.NewDecoder(body),
		cancel:  cancel,
	}
}

func (s *jsonStream) Recv() ([]byte, error) {
	var raw json.RawMessage
	if err := s.decoder.Decode(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (s *jsonStream) Close() error {
	var err error
	s.once.Do(func() {
		s.cancel()
		err = s.body.Close()
	})
	return err
}
