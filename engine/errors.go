// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"errors"
	"fmt"

	"github.com/xmidt-org/dockyard/docker"
	"github.com/xmidt-org/dockyard/model"
)

// Errors that can be returned by this package. Since some of these errors are returned wrapped, it
// is safest to use errors.Is() to check for them.
var (
	ErrNilMeasures        = errors.New("measures cannot be nil")
	ErrNoTransport        = errors.New("no docker transport provided")
	ErrEngineNotStopped   = errors.New("engine is either running or starting")
	ErrEngineNotRunning   = errors.New("engine is either stopped or stopping")
	ErrItemIDEmpty        = errors.New("item ID is required")
	ErrUnknownKind        = errors.New("unknown resource kind")
	ErrInvalidConfig      = errors.New("invalid engine configuration")
	ErrInvalidCreateSpec  = errors.New("invalid container create request")
	ErrSamplesAttached    = errors.New("a sample feed is already attached")
	errJSONUnmarshal      = errors.New("failed unmarshaling JSON response payload")
	errMissingContainerID = errors.New("docker did not report the created container ID")
)

// Problem classifies a background synchronization failure.
type Problem string

// Problems surfaced through OnFailure.
const (
	// ProblemNotFound means the docker service itself is absent.
	ProblemNotFound Problem = "not-found"

	// ProblemNotAuthorized means docker refused access.
	ProblemNotAuthorized Problem = "not-authorized"

	// ProblemInternal covers every other failure.
	ProblemInternal Problem = "internal-error"
)

// Classify maps a transport error onto a Problem.
func Classify(err error) Problem {
	switch {
	case errors.Is(err, docker.ErrNotFound), errors.Is(err, docker.ErrServiceAbsent):
		return ProblemNotFound
	case errors.Is(err, docker.ErrFailedAuthentication):
		return ProblemNotAuthorized
	default:
		return ProblemInternal
	}
}

// Failure is a classified collection-level synchronization failure. It never
// evicts cached items.
type Failure struct {
	Kind    model.Kind
	Problem Problem
	Err     error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s listing failed (%s): %v", f.Kind, f.Problem, f.Err)
}

func (f Failure) Unwrap() error {
	return f.Err
}
