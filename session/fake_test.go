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
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ctrader-fix-go/codec"
	"ctrader-fix-go/constants"
	"ctrader-fix-go/fixmsg"

	"github.com/quickfixgo/quickfix"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const waitTimeout = 2 * time.Second

type logonMode int

const (
	logonAck logonMode = iota
	logonReject
	logonIgnore
)

func testConfig() Config {
	return Config{
		Host:         "demo.ctrader.test",
		Port:         DefaultTradePort,
		SenderCompID: "demo.ctrader.3000001",
		TargetCompID: "cServer",
		SenderSubID:  constants.SubIDTrade,
		Username:     "3000001",
		Password:     "secret",
		LogonTimeout: time.Second,
	}
}

func fld(tag constants.Tag, value string) fixmsg.Field {
	return fixmsg.Field{Tag: tag, Value: value}
}

// fakeServer plays the counterparty over one end of a net.Pipe. Reading and
// writing run on separate goroutines so neither side can wedge the other.
type fakeServer struct {
	conn          net.Conn
	in            chan *fixmsg.Message
	out           chan []byte
	closed        chan struct{}
	closeOnce     sync.Once
	seq           atomic.Int64
	logon         logonMode
	answerTestReq bool
}

var serverIDs = codec.Identifiers{
	SenderCompID: "cServer",
	TargetCompID: "demo.ctrader.3000001",
	SenderSubID:  constants.SubIDTrade,
	TargetSubID:  constants.SubIDTrade,
}

func newFakeServer(conn net.Conn, logon logonMode, answerTestReq bool) *fakeServer {
	fs := &fakeServer{
		conn:          conn,
		in:            make(chan *fixmsg.Message, 1024),
		out:           make(chan []byte, 1024),
		closed:        make(chan struct{}),
		logon:         logon,
		answerTestReq: answerTestReq,
	}
	go fs.readLoop()
	go fs.writeLoop()
	return fs
}

func (fs *fakeServer) readLoop() {
	defer close(fs.in)
	buf := make([]byte, 4096)
	var pending []byte
	for {
		n, err := fs.conn.Read(buf)
		if n > 0 {
			var msgs []*fixmsg.Message
			msgs, pending = codec.Decode(append(pending, buf[:n]...))
			for _, msg := range msgs {
				fs.react(msg)
				fs.in <- msg
			}
		}
		if err != nil {
			return
		}
	}
}

func (fs *fakeServer) react(msg *fixmsg.Message) {
	switch msg.MsgType() {
	case constants.MsgTypeLogon:
		switch fs.logon {
		case logonAck:
			fs.send(constants.MsgTypeLogon, fld(constants.TagEncryptMethod, "0"), fld(constants.TagHeartBtInt, "30"))
		case logonReject:
			fs.send(constants.MsgTypeLogout, fld(constants.TagText, "invalid credentials"))
		}
	case constants.MsgTypeTestRequest:
		if fs.answerTestReq {
			fs.send(constants.MsgTypeHeartbeat, fld(constants.TagTestReqID, msg.Get(constants.TagTestReqID)))
		}
	}
}

func (fs *fakeServer) writeLoop() {
	for {
		select {
		case <-fs.closed:
			return
		case raw := <-fs.out:
			if _, err := fs.conn.Write(raw); err != nil {
				return
			}
		}
	}
}

func (fs *fakeServer) send(msgType string, fields ...fixmsg.Field) {
	seq := int(fs.seq.Add(1))
	fs.sendRaw(codec.Encode(msgType, fields, serverIDs, seq, time.Now()))
}

func (fs *fakeServer) sendRaw(raw []byte) {
	select {
	case fs.out <- raw:
	case <-fs.closed:
	}
}

func (fs *fakeServer) close() {
	fs.closeOnce.Do(func() {
		close(fs.closed)
		_ = fs.conn.Close()
	})
}

// next returns the next message the session wrote.
func (fs *fakeServer) next(t *testing.T) *fixmsg.Message {
	t.Helper()
	select {
	case msg, ok := <-fs.in:
		require.True(t, ok, "connection closed before next message")
		return msg
	case <-time.After(waitTimeout):
		require.FailNow(t, "no message from session")
		return nil
	}
}

// expect skips messages until one of msgType arrives.
func (fs *fakeServer) expect(t *testing.T, msgType string) *fixmsg.Message {
	t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case msg, ok := <-fs.in:
			require.True(t, ok, "connection closed waiting for %s", constants.MsgTypeName(msgType))
			if msg.MsgType() == msgType {
				return msg
			}
		case <-deadline:
			require.FailNowf(t, "timeout", "no %s from session", constants.MsgTypeName(msgType))
			return nil
		}
	}
}

type pipeDialer struct {
	logon         logonMode
	answerTestReq bool
	failFirst     int32
	dials         atomic.Int32
	servers       chan *fakeServer
}

func newPipeDialer(logon logonMode) *pipeDialer {
	return &pipeDialer{logon: logon, servers: make(chan *fakeServer, 16)}
}

func (d *pipeDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	if n := d.dials.Add(1); n <= d.failFirst {
		return nil, errors.New("connection refused")
	}
	client, server := net.Pipe()
	d.servers <- newFakeServer(server, d.logon, d.answerTestReq)
	return client, nil
}

func (d *pipeDialer) server(t *testing.T) *fakeServer {
	t.Helper()
	select {
	case fs := <-d.servers:
		t.Cleanup(fs.close)
		return fs
	case <-time.After(waitTimeout):
		require.FailNow(t, "no dial")
		return nil
	}
}

// connectPair logs a session on to a fresh fake server and consumes its
// Logon.
func connectPair(t *testing.T, cfg Config, opts ...Option) (*Session, *fakeServer) {
	t.Helper()
	d := newPipeDialer(logonAck)
	return connectWith(t, d, cfg, opts...)
}

func connectWith(t *testing.T, d *pipeDialer, cfg Config, opts ...Option) (*Session, *fakeServer) {
	t.Helper()
	opts = append([]Option{WithLogger(zaptest.NewLogger(t)), WithDialer(d)}, opts...)
	s, err := Connect(context.Background(), cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		s.Disconnect()
		s.Wait()
	})

	fs := d.server(t)
	fs.expect(t, constants.MsgTypeLogon)
	return s, fs
}

type reqResult struct {
	msg  *fixmsg.Message
	msgs []*fixmsg.Message
	err  error
}

func goRequest(s *Session, msgType string, fields []fixmsg.Field, responseType, reqID string, timeout time.Duration) <-chan reqResult {
	ch := make(chan reqResult, 1)
	go func() {
		msg, err := s.Request(msgType, fields, responseType, reqID, timeout)
		ch <- reqResult{msg: msg, err: err}
	}()
	return ch
}

func goRequestMulti(s *Session, msgType string, fields []fixmsg.Field, responseType, reqID string, timeout time.Duration) <-chan reqResult {
	ch := make(chan reqResult, 1)
	go func() {
		msgs, err := s.RequestMulti(msgType, fields, responseType, reqID, timeout)
		ch <- reqResult{msgs: msgs, err: err}
	}()
	return ch
}

func await(t *testing.T, ch <-chan reqResult) reqResult {
	t.Helper()
	select {
	case res := <-ch:
		return res
	case <-time.After(waitTimeout):
		require.FailNow(t, "request never resolved")
		return reqResult{}
	}
}

func waitDone(t *testing.T, s *Session) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(waitTimeout):
		require.FailNow(t, "session not torn down")
	}
}

// recordingLogFactory captures wire traffic.
type recordingLogFactory struct {
	log *recordingLog
}

func (f *recordingLogFactory) Create() (quickfix.Log, error) {
	return f.log, nil
}

func (f *recordingLogFactory) CreateSessionLog(quickfix.SessionID) (quickfix.Log, error) {
	return f.log, nil
}

type recordingLog struct {
	mu     sync.Mutex
	in     []string
	out    []string
	events []string
}

func (l *recordingLog) OnIncoming(b []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.in = append(l.in, string(b))
}

func (l *recordingLog) OnOutgoing(b []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out = append(l.out, string(b))
}

func (l *recordingLog) OnEvent(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, s)
}

func (l *recordingLog) OnEventf(format string, args ...interface{}) {
	l.OnEvent(fmt.Sprintf(format, args...))
}

func (l *recordingLog) entries() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.in) + len(l.out) + len(l.events)
}

func (l *recordingLog) outgoing() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.out...)
}
