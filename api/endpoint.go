// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"time"

	"github.com/go-kit/kit/endpoint"
	"github.com/xmidt-org/dockyard/engine"
	"github.com/xmidt-org/dockyard/model"
	"github.com/xmidt-org/dockyard/notify"
)

// Facade is the part of the engine served over HTTP.
type Facade interface {
	notify.Source
	Get(model.Kind) map[string]model.Item
	Item(model.Kind, string) (model.Item, bool)
	StartContainer(ctx context.Context, id string, options map[string]interface{}) error
	StopContainer(ctx context.Context, id string, timeout time.Duration) error
	RestartContainer(ctx context.Context, id string) error
	DeleteContainer(ctx context.Context, id string) error
	DeleteImage(ctx context.Context, id string) error
	CreateContainer(ctx context.Context, spec engine.CreateSpec) (string, error)
}

func newGetAllItemsEndpoint(f Facade) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(*getAllItemsRequest)
		return f.Get(req.kind), nil
	}
}

func newGetItemEndpoint(f Facade) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(*getOrDeleteItemRequest)
		item, ok := f.Item(req.key.Kind, req.key.ID)
		if !ok {
			return nil, ItemNotFoundErr{Key: req.key}
		}
		return &item, nil
	}
}

func newDeleteItemEndpoint(f Facade) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(*getOrDeleteItemRequest)
		if req.key.Kind == model.Images {
			return nil, f.DeleteImage(ctx, req.key.ID)
		}
		return nil, f.DeleteContainer(ctx, req.key.ID)
	}
}

func newContainerActionEndpoint(f Facade) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(*containerActionRequest)
		switch req.action {
		case engine.StartVerb:
			return nil, f.StartContainer(ctx, req.id, req.options)
		case engine.StopVerb:
			return nil, f.StopContainer(ctx, req.id, req.timeout)
		case engine.RestartVerb:
			return nil, f.RestartContainer(ctx, req.id)
		}
		return nil, errUnknownAction
	}
}

func newCreateContainerEndpoint(f Facade) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(*createContainerRequest)
		id, err := f.CreateContainer(ctx, req.spec)
		if err != nil {
			return nil, err
		}
		return &createContainerResponse{ID: id}, nil
	}
}

func newStatusEndpoint(f Facade, alive func() bool) endpoint.Endpoint {
	return func(ctx context.Context, _ interface{}) (interface{}, error) {
		return &statusResponse{
			EventsAlive: alive(),
			Containers:  len(f.Get(model.Containers)),
			Images:      len(f.Get(model.Images)),
		}, nil
	}
}
