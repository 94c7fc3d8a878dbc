// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package samples

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/xmidt-org/touchstone"
	"go.uber.org/fx"
)

const (
	CollectionCounter = "sample_collections_total"

	SourceLabel  = "source"
	OutcomeLabel = "outcome"

	SuccessOutcome = "success"
	FailureOutcome = "failure"
)

// ProvideMetrics returns the Metrics relevant to this package
func ProvideMetrics() fx.Option {
	return touchstone.CounterVec(
		prometheus.CounterOpts{
			Name: CollectionCounter,
			Help: "Counter for the number of sample collection rounds (and their success/failure outcomes).",
		},
		SourceLabel, OutcomeLabel,
	)
}

type Measures struct {
	fx.In
	Collections *prometheus.CounterVec `name:"sample_collections_total"`
}
