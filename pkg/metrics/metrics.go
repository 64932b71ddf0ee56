/*
Copyright 2026 Nscale.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package metrics records what a run did in Prometheus form, so results
// from scheduled runs can be pushed to a gateway and graphed.
package metrics

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "ecare_e2e"

// Metrics are the run's collectors.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	steps    *prometheus.CounterVec
	tokens   *prometheus.CounterVec
}

// New creates the collectors and registers them.
func New(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "API requests by method, path template and status.",
		}, []string{"method", "path", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "API request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scenario_steps_total",
			Help:      "Scenario steps by outcome.",
		}, []string{"step", "outcome"}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_acquisitions_total",
			Help:      "Token requests to the identity provider by result.",
		}, []string{"result"}),
	}

	registerer.MustRegister(m.requests, m.duration, m.steps, m.tokens)

	return m
}

// ObserveRequest records a completed request.
func (m *Metrics) ObserveRequest(method, path string, status int, duration time.Duration) {
	m.requests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// ObserveStep records the outcome of a scenario step.
func (m *Metrics) ObserveStep(step, outcome string) {
	m.steps.WithLabelValues(step, outcome).Inc()
}

// ObserveToken records a token acquisition.
func (m *Metrics) ObserveToken(err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}

	m.tokens.WithLabelValues(result).Inc()
}

// Push sends everything gathered to a Pushgateway, replacing the job's
// previous values.
func Push(ctx context.Context, url, job string, gatherer prometheus.Gatherer, grouping map[string]string) error {
	pusher := push.New(url, job).Gatherer(gatherer)

	for name, value := range grouping {
		pusher = pusher.Grouping(name, value)
	}

	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("pushing metrics: %w", err)
	}

	return nil
}
