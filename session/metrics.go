/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package session

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are shared by every session of a process. Each series carries the
// session's SenderSubID in the "session" label.
type Metrics struct {
	MessagesSent     *prometheus.CounterVec
	MessagesReceived *prometheus.CounterVec
	Rejects          *prometheus.CounterVec
	PendingRequests  *prometheus.GaugeVec
	RequestDuration  *prometheus.HistogramVec
	State            *prometheus.GaugeVec
	Garbled          *prometheus.CounterVec
}

// NewMetrics registers the collectors with reg. A nil reg leaves them
// unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		MessagesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ctrader_fix_messages_sent_total",
			Help: "FIX messages written, by MsgType",
		}, []string{"session", "msg_type"}),
		MessagesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ctrader_fix_messages_received_total",
			Help: "FIX messages read, by MsgType",
		}, []string{"session", "msg_type"}),
		Rejects: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ctrader_fix_rejects_total",
			Help: "Inbound rejects, by kind",
		}, []string{"session", "kind"}),
		PendingRequests: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ctrader_fix_pending_requests",
			Help: "Requests awaiting a response",
		}, []string{"session", "kind"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ctrader_fix_request_duration_seconds",
			Help:    "Time from send to resolution of a correlated request",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 15, 30},
		}, []string{"session", "response_type", "outcome"}),
		State: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ctrader_fix_session_state",
			Help: "Current session state (0 Disconnected, 1 Connecting, 2 AwaitingLogonAck, 3 LoggedIn, 4 LoggingOut, 5 Failed)",
		}, []string{"session"}),
		Garbled: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ctrader_fix_garbled_total",
			Help: "Inbound messages whose BodyLength or CheckSum did not verify",
		}, []string{"session"}),
	}
}

// Request outcomes
const (
	outcomeOK       = "ok"
	outcomeEmpty    = "empty"
	outcomeTimeout  = "timeout"
	outcomeRejected = "rejected"
	outcomeClosed   = "closed"
)

// sessionMetrics binds Metrics to one session label.
type sessionMetrics struct {
	m       *Metrics
	session string
}

func (sm sessionMetrics) sent(msgType string) {
	sm.m.MessagesSent.WithLabelValues(sm.session, msgType).Inc()
}

func (sm sessionMetrics) received(msgType string) {
	sm.m.MessagesReceived.WithLabelValues(sm.session, msgType).Inc()
}

func (sm sessionMetrics) reject(kind RejectKind) {
	sm.m.Rejects.WithLabelValues(sm.session, string(kind)).Inc()
}

func (sm sessionMetrics) pending(kind string, delta float64) {
	sm.m.PendingRequests.WithLabelValues(sm.session, kind).Add(delta)
}

func (sm sessionMetrics) observe(responseType, outcome string, started time.Time) {
	sm.m.RequestDuration.WithLabelValues(sm.session, responseType, outcome).Observe(time.Since(started).Seconds())
}

func (sm sessionMetrics) state(st State) {
	sm.m.State.WithLabelValues(sm.session).Set(float64(st))
}

func (sm sessionMetrics) garbled() {
	sm.m.Garbled.WithLabelValues(sm.session).Inc()
}
