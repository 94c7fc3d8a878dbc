// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"errors"
	"fmt"
	"net/http"

	kithttp "github.com/go-kit/kit/transport/http"
	"github.com/xmidt-org/dockyard/docker"
	"github.com/xmidt-org/dockyard/engine"
	"github.com/xmidt-org/dockyard/model"
)

type BadRequestErr struct {
	Message string
}

func (bre BadRequestErr) Error() string {
	return bre.Message
}

func (bre BadRequestErr) StatusCode() int {
	return http.StatusBadRequest
}

type ItemNotFoundErr struct {
	Key model.Key
}

func (e ItemNotFoundErr) Error() string {
	return fmt.Sprintf("%s %s not found", e.Key.Kind, e.Key.ID)
}

func (e ItemNotFoundErr) StatusCode() int {
	return http.StatusNotFound
}

var statusCodes = []struct {
	err  error
	code int
}{
	{err: engine.ErrItemIDEmpty, code: http.StatusBadRequest},
	{err: engine.ErrInvalidCreateSpec, code: http.StatusBadRequest},
	{err: engine.ErrUnknownKind, code: http.StatusBadRequest},
	{err: docker.ErrBadRequest, code: http.StatusBadRequest},
	{err: docker.ErrNotFound, code: http.StatusNotFound},
	{err: docker.ErrConflict, code: http.StatusConflict},
	{err: docker.ErrNotModified, code: http.StatusNotModified},
	{err: docker.ErrServiceAbsent, code: http.StatusServiceUnavailable},
	{err: docker.ErrFailedAuthentication, code: http.StatusBadGateway},
}

// statusCode picks the response code of err. Known docker and engine errors
// map through statusCodes before any status the error reports itself.
func statusCode(err error) int {
	for _, s := range statusCodes {
		if errors.Is(err, s.err) {
			return s.code
		}
	}
	var sc kithttp.StatusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	return http.StatusInternalServerError
}
