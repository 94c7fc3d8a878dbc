// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/xmidt-org/touchstone"
	"go.uber.org/fx"
)

const (
	PublishedCounter = "nats_events_published_total"

	TypeLabel    = "type"
	OutcomeLabel = "outcome"

	SuccessOutcome = "success"
	FailureOutcome = "failure"
)

// ProvideMetrics returns the Metrics relevant to this package
func ProvideMetrics() fx.Option {
	return touchstone.CounterVec(
		prometheus.CounterOpts{
			Name: PublishedCounter,
			Help: "Counter for the number of engine notifications published to NATS.",
		},
		TypeLabel, OutcomeLabel,
	)
}

type Measures struct {
	fx.In
	Published *prometheus.CounterVec `name:"nats_events_published_total"`
}
