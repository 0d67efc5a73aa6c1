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
	"context"
	"crypto/tls"
	"net"
	"time"

	"ctrader-fix-go/fixmsg"

	"github.com/quickfixgo/quickfix"
	"go.uber.org/zap"
)

// Dialer opens the transport. *tls.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, addr string) (net.Conn, error)
}

type Option func(*options)

type options struct {
	logger       *zap.Logger
	logFactory   quickfix.LogFactory
	metrics      *Metrics
	dialer       Dialer
	onMessage    func(*fixmsg.Message)
	onClose      func(error)
	writeTimeout time.Duration
	retryTries   uint
	retryInitial time.Duration
}

func defaultOptions() options {
	return options{
		logger:       zap.NewNop(),
		logFactory:   quickfix.NewNullLogFactory(),
		writeTimeout: DefaultWriteTimeout,
		retryTries:   5,
		retryInitial: 500 * time.Millisecond,
	}
}

func tlsDialer(cfg Config) Dialer {
	return &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: cfg.LogonTimeout, KeepAlive: 30 * time.Second},
		Config: &tls.Config{
			ServerName:         cfg.Host,
			InsecureSkipVerify: cfg.InsecureSkipVerify,
			MinVersion:         tls.VersionTLS12,
		},
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithLogFactory sets where raw inbound and outbound traffic is logged.
func WithLogFactory(factory quickfix.LogFactory) Option {
	return func(o *options) {
		if factory != nil {
			o.logFactory = factory
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithDialer replaces the TLS dialer, mainly for tests.
func WithDialer(d Dialer) Option {
	return func(o *options) {
		o.dialer = d
	}
}

// WithMessageHandler receives application messages that no pending request
// claimed. It runs on the read goroutine and must not block on a request.
func WithMessageHandler(fn func(*fixmsg.Message)) Option {
	return func(o *options) {
		o.onMessage = fn
	}
}

// WithCloseHook is called once at teardown with its cause, nil for a clean
// logout. It runs before Done is closed and must not wait on it.
func WithCloseHook(fn func(error)) Option {
	return func(o *options) {
		o.onClose = fn
	}
}

func WithWriteTimeout(d time.Duration) Option {
	return func(o *options) {
		o.writeTimeout = d
	}
}

// WithConnectRetry bounds the attempts a Manager makes per connect.
// Connect itself never retries.
func WithConnectRetry(maxTries uint, initial time.Duration) Option {
	return func(o *options) {
		o.retryTries = maxTries
		o.retryInitial = initial
	}
}
