// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"net/http"

	kithttp "github.com/go-kit/kit/transport/http"
)

type Handler http.Handler

func newGetAllItemsHandler(f Facade) Handler {
	return kithttp.NewServer(
		newGetAllItemsEndpoint(f),
		decodeGetAllItemsRequest,
		encodeGetAllItemsResponse,
		kithttp.ServerErrorEncoder(encodeError),
	)
}

func newGetItemHandler(f Facade) Handler {
	return kithttp.NewServer(
		newGetItemEndpoint(f),
		decodeGetOrDeleteItemRequest,
		encodeGetItemResponse,
		kithttp.ServerErrorEncoder(encodeError),
	)
}

func newDeleteItemHandler(f Facade) Handler {
	return kithttp.NewServer(
		newDeleteItemEndpoint(f),
		decodeGetOrDeleteItemRequest,
		encodeNoContentResponse,
		kithttp.ServerErrorEncoder(encodeError),
	)
}

func newContainerActionHandler(f Facade) Handler {
	return kithttp.NewServer(
		newContainerActionEndpoint(f),
		decodeContainerActionRequest,
		encodeNoContentResponse,
		kithttp.ServerErrorEncoder(encodeError),
	)
}

func newCreateContainerHandler(f Facade) Handler {
	return kithttp.NewServer(
		newCreateContainerEndpoint(f),
		decodeCreateContainerRequest,
		encodeCreateContainerResponse,
		kithttp.ServerErrorEncoder(encodeError),
	)
}

func newStatusHandler(f Facade, alive func() bool) Handler {
	return kithttp.NewServer(
		newStatusEndpoint(f, alive),
		kithttp.NopRequestDecoder,
		encodeStatusResponse,
		kithttp.ServerErrorEncoder(encodeError),
	)
}
