// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/xmidt-org/sallust"
	"go.uber.org/zap"
)

// Verbs
const (
	StartVerb           = "start"
	StopVerb            = "stop"
	RestartVerb         = "restart"
	DeleteContainerVerb = "delete_container"
	DeleteImageVerb     = "delete_image"
	CreateVerb          = "create"
)

// CreateSpec describes a container to be created and started.
type CreateSpec struct {
	// Name of the new container.
	// (Optional). Docker picks one when empty.
	Name string `json:"name"`

	// Image the container runs.
	Image string `json:"image" validate:"required"`

	// Command overrides the image command.
	Command []string `json:"command"`

	// Memory limits the container memory in bytes. Zero means unlimited.
	Memory int64 `json:"memory" validate:"gte=0"`

	// MemorySwap limits memory plus swap in bytes. -1 means unlimited swap.
	MemorySwap int64 `json:"memorySwap" validate:"gte=-1"`

	// PortBindings maps a container port (i.e. 80/tcp) to a host port.
	PortBindings map[string]string `json:"portBindings" validate:"dive,keys,required,endkeys,numeric"`
}

var createValidator = validator.New()

// StartContainer starts container id. options, when given, is sent as the
// host configuration of the start request.
func (e *Engine) StartContainer(ctx context.Context, id string, options map[string]interface{}) error {
	if id == "" {
		return ErrItemIDEmpty
	}
	var body interface{}
	if len(options) > 0 {
		body = options
	}
	_, err := e.command(ctx, StartVerb, id, http.MethodPost, containerPath(id, "start"), nil, body)
	return err
}

// StopContainer stops container id. Docker kills the container when it
// has not exited within timeout. A zero timeout kills it right away and a
// negative one selects DefaultStopTimeout. Docker counts in whole seconds, so
// partial seconds round up. The timeout is not enforced locally.
func (e *Engine) StopContainer(ctx context.Context, id string, timeout time.Duration) error {
	if id == "" {
		return ErrItemIDEmpty
	}
	params := url.Values{"t": []string{strconv.Itoa(stopSeconds(timeout))}}
	_, err := e.command(ctx, StopVerb, id, http.MethodPost, containerPath(id, "stop"), params, nil)
	return err
}

func (e *Engine) RestartContainer(ctx context.Context, id string) error {
	if id == "" {
		return ErrItemIDEmpty
	}
	_, err := e.command(ctx, RestartVerb, id, http.MethodPost, containerPath(id, "restart"), nil, nil)
	return err
}

func (e *Engine) DeleteContainer(ctx context.Context, id string) error {
	if id == "" {
		return ErrItemIDEmpty
	}
	_, err := e.command(ctx, DeleteContainerVerb, id, http.MethodDelete, containerPath(id, ""), nil, nil)
	return err
}

func (e *Engine) DeleteImage(ctx context.Context, id string) error {
	if id == "" {
		return ErrItemIDEmpty
	}
	_, err := e.command(ctx, DeleteImageVerb, id, http.MethodDelete, "/images/"+url.PathEscape(id), nil, nil)
	return err
}

// CreateContainer creates a container from spec, starts it with the
// requested port bindings and returns its id. A start failure still returns
// the id of the created container.
func (e *Engine) CreateContainer(ctx context.Context, spec CreateSpec) (string, error) {
	if err := createValidator.Struct(spec); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCreateSpec, err)
	}

	body := map[string]interface{}{
		"Image":      spec.Image,
		"Memory":     spec.Memory,
		"MemorySwap": spec.MemorySwap,
	}
	if len(spec.Command) > 0 {
		body["Cmd"] = spec.Command
	}
	var params url.Values
	if spec.Name != "" {
		params = url.Values{"name": []string{spec.Name}}
	}

	payload, err := e.command(ctx, CreateVerb, spec.Name, http.MethodPost, "/containers/create", params, body)
	if err != nil {
		return "", err
	}
	var created struct {
		ID string `json:"Id"`
	}
	if err := json.Unmarshal(payload, &created); err != nil {
		return "", fmt.Errorf("%w: %v", errJSONUnmarshal, err)
	}
	if created.ID == "" {
		return "", errMissingContainerID
	}

	var options map[string]interface{}
	if len(spec.PortBindings) > 0 {
		bindings := make(map[string]interface{}, len(spec.PortBindings))
		for port, host := range spec.PortBindings {
			bindings[port] = []map[string]string{{"HostPort": host}}
		}
		options = map[string]interface{}{"PortBindings": bindings}
	}
	return created.ID, e.StartContainer(ctx, created.ID, options)
}

func (e *Engine) command(ctx context.Context, verb, id, method, path string, params url.Values, body interface{}) ([]byte, error) {
	payload, err := e.transport.Command(ctx, method, path, params, body)
	if err != nil {
		e.measures.Commands.WithLabelValues(verb, FailureOutcome).Inc()
		sallust.Get(ctx).Debug("docker command failed",
			zap.String("verb", verb), zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("%s %s: %w", verb, id, err)
	}
	e.measures.Commands.WithLabelValues(verb, SuccessOutcome).Inc()
	return payload, nil
}

func stopSeconds(timeout time.Duration) int {
	if timeout < 0 {
		timeout = DefaultStopTimeout
	}
	return int((timeout + time.Second - 1) / time.Second)
}

func containerPath(id, action string) string {
	p := "/containers/" + url.PathEscape(id)
	if action != "" {
		p += "/" + action
	}
	return p
}
