// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package notify

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xmidt-org/sallust"
	"go.uber.org/zap"
)

var (
	ErrNilMeasures     = errors.New("measures cannot be nil")
	ErrNoConnection    = errors.New("no NATS connection provided")
	ErrAlreadyAttached = errors.New("publisher is already attached")
)

const defaultPrefix = "dockyard"

// Conn is the part of a NATS connection the publisher needs.
type Conn interface {
	Publish(subject string, data []byte) error
}

// Publisher forwards engine notifications to NATS subjects
// <prefix>.<kind>.changed, <prefix>.<kind>.removed and <prefix>.failure.
type Publisher struct {
	conn     Conn
	prefix   string
	measures *Measures
	logger   *zap.Logger
	detach   func()
}

func NewPublisher(conn Conn, prefix string, measures *Measures, logger *zap.Logger) (*Publisher, error) {
	if conn == nil {
		return nil, ErrNoConnection
	}
	if measures == nil {
		return nil, ErrNilMeasures
	}
	if logger == nil {
		logger = sallust.Default()
	}
	prefix = strings.Trim(prefix, ".")
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Publisher{
		conn:     conn,
		prefix:   prefix,
		measures: measures,
		logger:   logger,
	}, nil
}

// Attach starts publishing the notifications of src.
func (p *Publisher) Attach(src Source) error {
	if p.detach != nil {
		return ErrAlreadyAttached
	}
	p.detach = Subscribe(src, func(e Event) {
		if err := p.Publish(e); err != nil {
			p.logger.Warn("failed to publish event", zap.String("type", e.Type), zap.Error(err))
		}
	})
	return nil
}

// Detach stops publishing. It is a no-op when not attached.
func (p *Publisher) Detach() {
	if p.detach != nil {
		p.detach()
		p.detach = nil
	}
}

// Subject returns the subject e is published on.
func (p *Publisher) Subject(e Event) string {
	if e.Type == FailureEvent {
		return fmt.Sprintf("%s.%s", p.prefix, FailureEvent)
	}
	return fmt.Sprintf("%s.%s.%s", p.prefix, e.Kind, e.Type)
}

func (p *Publisher) Publish(e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		p.measures.Published.WithLabelValues(e.Type, FailureOutcome).Inc()
		return fmt.Errorf("failed to marshal %s event: %w", e.Type, err)
	}
	if err := p.conn.Publish(p.Subject(e), payload); err != nil {
		p.measures.Published.WithLabelValues(e.Type, FailureOutcome).Inc()
		return fmt.Errorf("failed to publish %s event: %w", e.Type, err)
	}
	p.measures.Published.WithLabelValues(e.Type, SuccessOutcome).Inc()
	return nil
}
