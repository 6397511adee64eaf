// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

// Package pinmetrics exports keypin verification outcomes as Prometheus
// metrics. A Collector's Observe method is meant to be installed as
// keypin.VerifierConfig.OnOutcome.
package pinmetrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jeremyhahn/go-keypin/pkg/keypin"
)

// ErrRegister is returned when the metrics cannot be registered.
var ErrRegister = errors.New("pinmetrics: register metrics")

// Collector counts verification outcomes.
type Collector struct {
	verifications *prometheus.CounterVec
	lastTimestamp *prometheus.GaugeVec
	now           func() time.Time
}

// NewCollector creates the metrics and registers them with reg. A nil reg
// leaves them unregistered.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		verifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keypin_verifications_total",
				Help: "Public key pin verifications by decision and reason.",
			},
			[]string{"decision", "reason"},
		),
		lastTimestamp: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "keypin_last_verification_timestamp_seconds",
				Help: "Unix time of the most recent verification by decision.",
			},
			[]string{"decision"},
		),
		now: time.Now,
	}

	if reg != nil {
		for _, m := range []prometheus.Collector{c.verifications, c.lastTimestamp} {
			if err := reg.Register(m); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrRegister, err)
			}
		}
	}
	return c, nil
}

// Observe records one outcome. Nil outcomes are ignored.
func (c *Collector) Observe(o *keypin.Outcome) {
	if o == nil {
		return
	}
	decision := o.Decision.String()
	c.verifications.WithLabelValues(decision, o.Reason.String()).Inc()
	c.lastTimestamp.WithLabelValues(decision).Set(float64(c.now().Unix()))
}
