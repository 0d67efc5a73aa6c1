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
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Manager lazily connects one Config and hands out the live Session. A
// torn-down Session is replaced on the next call, never reused.
type Manager struct {
	cfg   Config
	opts  []Option
	o     options
	log   *zap.Logger
	group singleflight.Group

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	current *Session
	closed  bool
}

func NewManager(cfg Config, opts ...Option) *Manager {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:    cfg,
		opts:   opts,
		o:      o,
		log:    o.logger.Named("manager").Named(cfg.SenderSubID),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (m *Manager) Config() Config {
	return m.cfg.withDefaults()
}

// Session returns the logged-in session, connecting if there is none.
// Concurrent callers share one connection attempt.
func (m *Manager) Session(ctx context.Context) (*Session, error) {
	if s, err := m.live(); s != nil || err != nil {
		return s, err
	}

	ch := m.group.DoChan(m.cfg.SenderSubID, func() (any, error) {
		return m.connect()
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Session), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *Manager) live() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrManagerClosed
	}
	if m.current != nil && m.current.IsLoggedIn() {
		return m.current, nil
	}
	return nil, nil
}

func (m *Manager) connect() (*Session, error) {
	if s, err := m.live(); s != nil || err != nil {
		return s, err
	}
	if err := m.cfg.withDefaults().Validate(); err != nil {
		return nil, err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = m.o.retryInitial

	s, err := backoff.Retry(m.ctx, func() (*Session, error) {
		s, err := Connect(m.ctx, m.cfg, m.opts...)
		if errors.Is(err, ErrLogonRejected) {
			return nil, backoff.Permanent(err)
		}
		return s, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(m.o.retryTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			m.log.Warn("connect failed", zap.Error(err), zap.Duration("retry_in", next))
		}),
	)
	if err != nil {
		m.log.Error("giving up connecting", zap.Error(err))
		return nil, err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		s.Disconnect()
		return nil, ErrManagerClosed
	}
	m.current = s
	m.mu.Unlock()
	return s, nil
}

// Close disconnects the current session and waits for its goroutines to
// exit. Later calls to Session fail with ErrManagerClosed.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	s := m.current
	m.current = nil
	m.mu.Unlock()

	m.cancel()
	if s != nil {
		s.Disconnect()
		s.Wait()
	}
}
