// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/xmidt-org/touchstone"
	"go.uber.org/fx"
)

// Names
const (
	PollCounter            = "listing_polls_total"
	DetailFetchCounter     = "detail_fetches_total"
	WatcherGauge           = "active_watchers"
	StreamReconnectCounter = "event_stream_reconnects_total"
	EventTickCounter       = "event_ticks_total"
	NotificationCounter    = "item_notifications_total"
	SampleMergeCounter     = "sample_merges_total"
	CommandCounter         = "commands_total"
)

// Labels
const (
	KindLabel    = "kind"
	OutcomeLabel = "outcome"
	TypeLabel    = "type"
	VerbLabel    = "verb"
)

// Label Values
const (
	SuccessOutcome   = "success"
	FailureOutcome   = "failure"
	NotFoundOutcome  = "not_found"
	ChangedOutcome   = "changed"
	UnchangedOutcome = "unchanged"
	UnmatchedOutcome = "unmatched"

	ChangedType = "changed"
	RemovedType = "removed"
	FailureType = "failure"
)

// ProvideMetrics returns the Metrics relevant to this package
func ProvideMetrics() fx.Option {
	return fx.Options(
		touchstone.CounterVec(
			prometheus.CounterOpts{
				Name: PollCounter,
				Help: "Counter for the number of collection listing fetches (and their success/failure outcomes).",
			},
			KindLabel, OutcomeLabel,
		),
		touchstone.CounterVec(
			prometheus.CounterOpts{
				Name: DetailFetchCounter,
				Help: "Counter for the number of per-item detail fetches by outcome.",
			},
			KindLabel, OutcomeLabel,
		),
		touchstone.GaugeVec(
			prometheus.GaugeOpts{
				Name: WatcherGauge,
				Help: "The number of live item watchers.",
			},
			KindLabel,
		),
		touchstone.Counter(
			prometheus.CounterOpts{
				Name: StreamReconnectCounter,
				Help: "Counter for the number of times the event stream was reopened.",
			},
		),
		touchstone.Counter(
			prometheus.CounterOpts{
				Name: EventTickCounter,
				Help: "Counter for the number of change notifications read from the event stream.",
			},
		),
		touchstone.CounterVec(
			prometheus.CounterOpts{
				Name: NotificationCounter,
				Help: "Counter for the number of notifications dispatched to listeners.",
			},
			KindLabel, TypeLabel,
		),
		touchstone.CounterVec(
			prometheus.CounterOpts{
				Name: SampleMergeCounter,
				Help: "Counter for the number of metric samples considered for merge, by outcome.",
			},
			OutcomeLabel,
		),
		touchstone.CounterVec(
			prometheus.CounterOpts{
				Name: CommandCounter,
				Help: "Counter for the number of action verbs issued against docker, by outcome.",
			},
			VerbLabel, OutcomeLabel,
		),
	)
}

type Measures struct {
	fx.In
	Polls            *prometheus.CounterVec `name:"listing_polls_total"`
	DetailFetches    *prometheus.CounterVec `name:"detail_fetches_total"`
	Watchers         *prometheus.GaugeVec   `name:"active_watchers"`
	StreamReconnects prometheus.Counter     `name:"event_stream_reconnects_total"`
	EventTicks       prometheus.Counter     `name:"event_ticks_total"`
	Notifications    *prometheus.CounterVec `name:"item_notifications_total"`
	SampleMerges     *prometheus.CounterVec `name:"sample_merges_total"`
	Commands         *prometheus.CounterVec `name:"commands_total"`
}
