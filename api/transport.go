// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"
	"time"

	kithttp "github.com/go-kit/kit/transport/http"
	"github.com/gorilla/mux"
	"github.com/spf13/cast"
	"github.com/xmidt-org/dockyard/engine"
	"github.com/xmidt-org/dockyard/model"
	"github.com/xmidt-org/sallust"
	"go.uber.org/zap"
)

// Request and Response Param Names
const (
	KindVarKey   = "kind"
	IDVarKey     = "id"
	ActionVarKey = "action"
	TimeoutParam = "t"
)

const DockyardErrorHeaderKey = "X-Dockyard-Error"

var (
	errKindVarMissing  = BadRequestErr{Message: "kind URL path parameter missing"}
	errIDVarMissing    = BadRequestErr{Message: "id URL path parameter missing"}
	errUnknownAction   = BadRequestErr{Message: "unknown container action"}
	errInvalidTimeout  = BadRequestErr{Message: "stop timeout must be a non-negative number of seconds"}
	errInvalidBody     = BadRequestErr{Message: "failed to unmarshal json body"}
	errBodyReadFailure = BadRequestErr{Message: "failed to read body"}
)

type getAllItemsRequest struct {
	kind model.Kind
}

type getOrDeleteItemRequest struct {
	key model.Key
}

type containerActionRequest struct {
	id      string
	action  string
	timeout time.Duration
	options map[string]interface{}
}

type createContainerRequest struct {
	spec engine.CreateSpec
}

type createContainerResponse struct {
	ID string `json:"id"`
}

type statusResponse struct {
	EventsAlive bool `json:"eventsAlive"`
	Containers  int  `json:"containers"`
	Images      int  `json:"images"`
}

func decodeKind(vars map[string]string) (model.Kind, error) {
	k, ok := vars[KindVarKey]
	if !ok {
		return "", errKindVarMissing
	}
	kind := model.Kind(k)
	if !kind.Valid() {
		return "", BadRequestErr{Message: "unknown kind " + k}
	}
	return kind, nil
}

func decodeGetAllItemsRequest(ctx context.Context, r *http.Request) (interface{}, error) {
	kind, err := decodeKind(mux.Vars(r))
	if err != nil {
		return nil, err
	}
	return &getAllItemsRequest{kind: kind}, nil
}

func decodeGetOrDeleteItemRequest(ctx context.Context, r *http.Request) (interface{}, error) {
	vars := mux.Vars(r)
	kind, err := decodeKind(vars)
	if err != nil {
		return nil, err
	}
	id := vars[IDVarKey]
	if id == "" {
		return nil, errIDVarMissing
	}
	return &getOrDeleteItemRequest{key: model.Key{Kind: kind, ID: id}}, nil
}

func decodeContainerActionRequest(ctx context.Context, r *http.Request) (interface{}, error) {
	vars := mux.Vars(r)
	req := &containerActionRequest{
		id:     vars[IDVarKey],
		action: vars[ActionVarKey],
	}
	if req.id == "" {
		return nil, errIDVarMissing
	}

	switch req.action {
	case engine.StartVerb:
		options, err := readOptionalJSON(r)
		if err != nil {
			return nil, err
		}
		req.options = options
	case engine.StopVerb:
		req.timeout = engine.DefaultStopTimeout
		if t := r.URL.Query().Get(TimeoutParam); t != "" {
			seconds, err := cast.ToIntE(t)
			if err != nil || seconds < 0 {
				return nil, errInvalidTimeout
			}
			req.timeout = time.Duration(seconds) * time.Second
		}
	case engine.RestartVerb:
	default:
		return nil, errUnknownAction
	}
	return req, nil
}

func decodeCreateContainerRequest(ctx context.Context, r *http.Request) (interface{}, error) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, errBodyReadFailure
	}
	var spec engine.CreateSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, errInvalidBody
	}
	return &createContainerRequest{spec: spec}, nil
}

func readOptionalJSON(r *http.Request) (map[string]interface{}, error) {
	if r.Body == nil || r.ContentLength == 0 {
		return nil, nil
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, errBodyReadFailure
	}
	if len(data) == 0 {
		return nil, nil
	}
	var options map[string]interface{}
	if err := json.Unmarshal(data, &options); err != nil {
		return nil, errInvalidBody
	}
	return options, nil
}

func encodeGetAllItemsResponse(ctx context.Context, rw http.ResponseWriter, response interface{}) error {
	items := response.(map[string]model.Item)
	list := make([]model.Item, 0, len(items))
	for _, item := range items {
		list = append(list, item)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].ID < list[j].ID
	})
	return encodeJSON(rw, http.StatusOK, list)
}

func encodeGetItemResponse(ctx context.Context, rw http.ResponseWriter, response interface{}) error {
	return encodeJSON(rw, http.StatusOK, response)
}

func encodeCreateContainerResponse(ctx context.Context, rw http.ResponseWriter, response interface{}) error {
	return encodeJSON(rw, http.StatusCreated, response)
}

func encodeStatusResponse(ctx context.Context, rw http.ResponseWriter, response interface{}) error {
	return encodeJSON(rw, http.StatusOK, response)
}

func encodeNoContentResponse(ctx context.Context, rw http.ResponseWriter, _ interface{}) error {
	rw.WriteHeader(http.StatusNoContent)
	return nil
}

func encodeJSON(rw http.ResponseWriter, code int, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(code)
	_, err = rw.Write(data)
	return err
}

func encodeError(ctx context.Context, err error, w http.ResponseWriter) {
	w.Header().Set(DockyardErrorHeaderKey, err.Error())
	var headerer kithttp.Headerer
	if errors.As(err, &headerer) {
		for k, values := range headerer.Headers() {
			for _, v := range values {
				w.Header().Add(k, v)
			}
		}
	}
	code := statusCode(err)
	if code >= http.StatusInternalServerError {
		sallust.Get(ctx).Error("request failed", zap.Int("code", code), zap.Error(err))
	}
	w.WriteHeader(code)
}
