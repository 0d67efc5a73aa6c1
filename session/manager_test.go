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
	"sync"
	"testing"
	"time"

	"ctrader-fix-go/constants"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestManager(t *testing.T, d *pipeDialer) *Manager {
	t.Helper()
	m := NewManager(testConfig(),
		WithDialer(d),
		WithLogger(zaptest.NewLogger(t)),
		WithConnectRetry(5, time.Millisecond))
	t.Cleanup(m.Close)
	return m
}

func TestManagerSharesOneConnect(t *testing.T) {
	d := newPipeDialer(logonAck)
	m := newTestManager(t, d)

	const callers = 8
	sessions := make([]*Session, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := m.Session(context.Background())
			assert.NoError(t, err)
			sessions[i] = s
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), d.dials.Load())
	for _, s := range sessions {
		assert.Same(t, sessions[0], s)
	}
	d.server(t)
}

func TestManagerRetriesDialFailures(t *testing.T) {
	d := newPipeDialer(logonAck)
	d.failFirst = 2
	m := newTestManager(t, d)

	s, err := m.Session(context.Background())
	require.NoError(t, err)
	assert.True(t, s.IsLoggedIn())
	assert.Equal(t, int32(3), d.dials.Load())
	d.server(t)
}

func TestManagerGivesUpAfterMaxTries(t *testing.T) {
	d := newPipeDialer(logonAck)
	d.failFirst = 100
	m := newTestManager(t, d)

	_, err := m.Session(context.Background())
	require.ErrorIs(t, err, ErrDial)
	assert.Equal(t, int32(5), d.dials.Load())
}

func TestManagerLogonRejectionIsPermanent(t *testing.T) {
	d := newPipeDialer(logonReject)
	m := newTestManager(t, d)

	_, err := m.Session(context.Background())
	require.ErrorIs(t, err, ErrLogonRejected)
	assert.Equal(t, int32(1), d.dials.Load())
}

func TestManagerReplacesTornDownSession(t *testing.T) {
	d := newPipeDialer(logonAck)
	m := newTestManager(t, d)

	first, err := m.Session(context.Background())
	require.NoError(t, err)
	d.server(t).close()
	waitDone(t, first)

	second, err := m.Session(context.Background())
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.True(t, second.IsLoggedIn())
	assert.Equal(t, int32(2), d.dials.Load())
	d.server(t)
}

func TestManagerClose(t *testing.T) {
	d := newPipeDialer(logonAck)
	m := newTestManager(t, d)

	s, err := m.Session(context.Background())
	require.NoError(t, err)
	fs := d.server(t)

	m.Close()
	fs.expect(t, "5")
	assert.Equal(t, StateDisconnected, s.State())

	_, err = m.Session(context.Background())
	assert.ErrorIs(t, err, ErrManagerClosed)
}

func TestManagerCloseWaitsForSession(t *testing.T) {
	rec := &recordingLog{}
	d := newPipeDialer(logonAck)
	m := NewManager(testConfig(),
		WithDialer(d),
		WithLogger(zaptest.NewLogger(t)),
		WithLogFactory(&recordingLogFactory{log: rec}))

	_, err := m.Session(context.Background())
	require.NoError(t, err)
	fs := d.server(t)
	fs.expect(t, constants.MsgTypeLogon)
	fs.send(constants.MsgTypeHeartbeat)

	m.Close()
	logged := rec.entries()
	fs.send(constants.MsgTypeHeartbeat)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, logged, rec.entries(), "nothing logged after Close returned")
}

func TestManagerSessionHonorsContext(t *testing.T) {
	d := newPipeDialer(logonIgnore)
	m := newTestManager(t, d)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := m.Session(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
