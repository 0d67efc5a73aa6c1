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

// Package session runs one FIX 4.4 session over a TLS connection: logon,
// heartbeats, teardown, and correlation of responses to pending requests.
package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"ctrader-fix-go/builder"
	"ctrader-fix-go/codec"
	"ctrader-fix-go/constants"
	"ctrader-fix-go/fixmsg"

	"github.com/quickfixgo/quickfix"
	"go.uber.org/zap"
)

// Session owns one connection. It is single-use: after teardown a new
// Session must be connected.
type Session struct {
	cfg     Config
	ids     codec.Identifiers
	opts    options
	log     *zap.Logger
	wireLog quickfix.Log
	metrics sessionMetrics
	corr    *correlator
	conn    net.Conn

	// writeMu serializes sequence assignment and the socket write.
	writeMu sync.Mutex
	nextSeq int

	mu    sync.Mutex
	state State
	err   error

	lastRecv  atomic.Int64
	loggedIn  chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

type writeError struct {
	err error
}

func (e *writeError) Error() string { return "fix: write: " + e.err.Error() }
func (e *writeError) Unwrap() error { return e.err }

// Connect dials cfg, logs on and waits for the counterparty's Logon. It
// fails with ErrDial, ErrLogonTimeout or ErrLogonRejected.
func Connect(ctx context.Context, cfg Config, opts ...Option) (*Session, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.dialer == nil {
		o.dialer = tlsDialer(cfg)
	}
	if o.metrics == nil {
		o.metrics = NewMetrics(nil)
	}

	s := newSession(cfg, o)
	s.setState(StateConnecting)

	conn, err := o.dialer.DialContext(ctx, "tcp", cfg.Addr())
	if err != nil {
		s.setState(StateFailed)
		return nil, fmt.Errorf("%w: %s: %v", ErrDial, cfg.Addr(), err)
	}
	s.conn = conn
	s.lastRecv.Store(time.Now().UnixNano())
	s.wireLog.OnEventf("Connected to %s", cfg.Addr())

	s.wg.Add(1)
	go s.readLoop()

	s.setState(StateAwaitingLogonAck)
	if err := s.sendAdmin(constants.MsgTypeLogon, builder.BuildLogon(cfg.heartBtSeconds(), cfg.Username, cfg.Password)); err != nil {
		s.teardown(err, StateFailed)
		return nil, err
	}

	timer := time.NewTimer(cfg.LogonTimeout)
	defer timer.Stop()

	select {
	case <-s.loggedIn:
		s.log.Info("logged in", zap.String("addr", cfg.Addr()))
		return s, nil
	case <-s.done:
		return nil, s.logonFailure()
	case <-timer.C:
		err := fmt.Errorf("%w after %s", ErrLogonTimeout, cfg.LogonTimeout)
		s.teardown(err, StateFailed)
		return nil, err
	case <-ctx.Done():
		s.teardown(ctx.Err(), StateFailed)
		return nil, ctx.Err()
	}
}

func newSession(cfg Config, o options) *Session {
	logger := o.logger.Named("fix").Named(cfg.SenderSubID)
	metrics := sessionMetrics{m: o.metrics, session: cfg.SenderSubID}

	wireLog, err := o.logFactory.CreateSessionLog(cfg.SessionID())
	if err != nil {
		logger.Warn("wire log unavailable", zap.Error(err))
		wireLog, _ = quickfix.NewNullLogFactory().Create()
	}

	return &Session{
		cfg:      cfg,
		ids:      cfg.identifiers(),
		opts:     o,
		log:      logger,
		wireLog:  wireLog,
		metrics:  metrics,
		corr:     newCorrelator(metrics),
		nextSeq:  1,
		loggedIn: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (s *Session) logonFailure() error {
	if err := s.Err(); err != nil {
		if errors.Is(err, ErrLogonRejected) {
			return err
		}
		return closedError(err)
	}
	return ErrConnectionClosed
}

func (s *Session) Config() Config {
	return s.cfg
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	s.metrics.state(st)
}

func (s *Session) IsLoggedIn() bool {
	return s.State() == StateLoggedIn
}

// Done is closed when the session has been torn down.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err returns the teardown cause. It is nil while the session is open and
// after a clean logout.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// NextSeqNum is the MsgSeqNum the next outbound message will carry.
func (s *Session) NextSeqNum() int {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.nextSeq
}

// PendingRequests counts requests still awaiting a response.
func (s *Session) PendingRequests() int {
	single, multi, _ := s.corr.counts()
	return single + multi
}

// Send writes an application message without waiting for a response.
func (s *Session) Send(msgType string, fields []fixmsg.Field) error {
	return s.send(msgType, fields, nil)
}

// Request sends a message and waits for the response of responseType whose
// identifying field equals reqID. It fails with a *TimeoutError if nothing
// arrives within timeout, a *RejectError if the counterparty rejects the
// message, or ErrConnectionClosed on teardown.
func (s *Session) Request(msgType string, fields []fixmsg.Field, responseType, reqID string, timeout time.Duration) (*fixmsg.Message, error) {
	if _, ok := responseIDTags[responseType]; !ok {
		return nil, fmt.Errorf("fix: %s responses cannot be correlated", constants.MsgTypeName(responseType))
	}
	p := newPending(msgType, responseType, reqID, timeout, false)
	if err := s.send(msgType, fields, p); err != nil {
		return nil, err
	}
	res := <-p.done
	return res.msg, res.err
}

// RequestMulti collects every response of responseType for reqID until the
// stream reports completion, reports no results, or timeout passes. A
// timeout returns what has arrived so far without error.
func (s *Session) RequestMulti(msgType string, fields []fixmsg.Field, responseType, reqID string, timeout time.Duration) ([]*fixmsg.Message, error) {
	if _, ok := responseIDTags[responseType]; !ok {
		return nil, fmt.Errorf("fix: %s responses cannot be correlated", constants.MsgTypeName(responseType))
	}
	p := newPending(msgType, responseType, reqID, timeout, true)
	if err := s.send(msgType, fields, p); err != nil {
		return nil, err
	}
	res := <-p.done
	return res.msgs, res.err
}

// Disconnect logs out if logged in and tears the session down. Safe to call
// more than once.
func (s *Session) Disconnect() {
	s.mu.Lock()
	wasLoggedIn := s.state == StateLoggedIn
	if wasLoggedIn {
		s.state = StateLoggingOut
	}
	s.mu.Unlock()

	if wasLoggedIn {
		s.metrics.state(StateLoggingOut)
		if err := s.sendAdmin(constants.MsgTypeLogout, builder.BuildLogout("")); err != nil {
			s.log.Debug("logout not sent", zap.Error(err))
		}
	}
	s.teardown(nil, StateDisconnected)
}

func (s *Session) sendAdmin(msgType string, fields []fixmsg.Field) error {
	return s.send(msgType, fields, nil)
}

func (s *Session) send(msgType string, fields []fixmsg.Field, p *pendingRequest) error {
	s.writeMu.Lock()
	err := s.sendLocked(msgType, fields, p)
	s.writeMu.Unlock()

	var we *writeError
	if errors.As(err, &we) {
		s.teardown(we.err, StateFailed)
		return closedError(we.err)
	}
	return err
}

func (s *Session) sendLocked(msgType string, fields []fixmsg.Field, p *pendingRequest) error {
	st := s.State()
	if constants.IsAdmin(msgType) {
		if !st.canSendAdmin() {
			return fmt.Errorf("%w: state %s", ErrNotConnected, st)
		}
	} else if st != StateLoggedIn {
		return fmt.Errorf("%w: state %s", ErrNotConnected, st)
	}

	seq := s.nextSeq
	if p != nil {
		p.seq = seq
		if err := s.corr.register(p); err != nil {
			return err
		}
	}

	if err := s.writeLocked(msgType, seq, fields); err != nil {
		if p != nil {
			s.corr.discard(p)
		}
		return err
	}
	s.nextSeq++
	return nil
}

// writeLocked encodes and writes one message with the given MsgSeqNum.
// The caller holds writeMu.
func (s *Session) writeLocked(msgType string, seq int, fields []fixmsg.Field) error {
	raw := codec.Encode(msgType, fields, s.ids, seq, time.Now())

	if s.opts.writeTimeout > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.opts.writeTimeout))
	}
	if _, err := s.conn.Write(raw); err != nil {
		return &writeError{err: err}
	}

	if msgType == constants.MsgTypeLogon {
		raw = codec.Mask(raw, constants.TagPassword)
	}
	s.wireLog.OnOutgoing(raw)
	s.metrics.sent(msgType)
	s.log.Debug("sent", zap.Int("seq", seq), zap.String("msg_type", constants.MsgTypeName(msgType)))
	return nil
}

func (s *Session) readLoop() {
	defer s.wg.Done()

	buf := make([]byte, 8192)
	var pending []byte
	for {
		n, err := s.conn.Read(buf)
		if n > 0 {
			s.lastRecv.Store(time.Now().UnixNano())
			var frames [][]byte
			frames, pending = codec.Split(append(pending, buf[:n]...))
			for _, frame := range frames {
				s.handleFrame(frame)
			}
		}
		if err != nil {
			s.teardown(fmt.Errorf("read: %w", err), StateFailed)
			return
		}
	}
}

func (s *Session) handleFrame(frame []byte) {
	s.wireLog.OnIncoming(frame)
	if err := codec.Validate(frame); err != nil {
		s.metrics.garbled()
		s.log.Warn("garbled message", zap.Error(err))
	}

	msg := codec.Parse(frame)
	s.metrics.received(msg.MsgType())
	s.log.Debug("received", zap.Int("seq", msg.SeqNum()), zap.String("msg_type", constants.MsgTypeName(msg.MsgType())))
	s.dispatch(msg)
}

// dispatch routes each inbound message to exactly one handler.
func (s *Session) dispatch(msg *fixmsg.Message) {
	switch msg.MsgType() {
	case constants.MsgTypeLogon:
		s.onLogon()
	case constants.MsgTypeHeartbeat:
	case constants.MsgTypeTestRequest:
		if err := s.sendAdmin(constants.MsgTypeHeartbeat, builder.BuildHeartbeat(msg.Get(constants.TagTestReqID))); err != nil {
			s.log.Warn("test request not answered", zap.Error(err))
		}
	case constants.MsgTypeResendRequest:
		s.onResendRequest(msg)
	case constants.MsgTypeSequenceReset:
		s.log.Debug("sequence reset", zap.Int("new_seq", msg.GetInt(constants.TagNewSeqNo)))
	case constants.MsgTypeLogout:
		s.onLogout(msg)
	case constants.MsgTypeReject:
		s.routeSessionReject(msg)
	case constants.MsgTypeOrderCancelReject:
		s.routeCancelReject(msg)
	case constants.MsgTypeBusinessMessageReject:
		s.routeBusinessReject(msg)
	case constants.MsgTypeMarketDataRequestReject:
		s.routeMarketDataReject(msg)
	default:
		if s.corr.resolve(msg) {
			return
		}
		if s.opts.onMessage != nil {
			s.opts.onMessage(msg)
			return
		}
		s.log.Debug("unsolicited message", zap.String("msg_type", constants.MsgTypeName(msg.MsgType())))
	}
}

func (s *Session) onLogon() {
	s.mu.Lock()
	if s.state != StateAwaitingLogonAck {
		st := s.state
		s.mu.Unlock()
		s.log.Warn("unexpected logon", zap.Stringer("state", st))
		return
	}
	s.state = StateLoggedIn
	s.mu.Unlock()

	s.metrics.state(StateLoggedIn)
	s.wireLog.OnEvent("Received logon response")
	s.wg.Add(1)
	go s.heartbeatLoop()
	close(s.loggedIn)
}

func (s *Session) onLogout(msg *fixmsg.Message) {
	text := msg.Get(constants.TagText)
	s.wireLog.OnEventf("Received logout: %s", text)

	switch st := s.State(); st {
	case StateConnecting, StateAwaitingLogonAck:
		s.teardown(fmt.Errorf("%w: %s", ErrLogonRejected, text), StateFailed)
	case StateLoggedIn:
		s.setState(StateLoggingOut)
		if err := s.sendAdmin(constants.MsgTypeLogout, builder.BuildLogout("")); err != nil {
			s.log.Debug("logout ack not sent", zap.Error(err))
		}
		s.teardown(fmt.Errorf("%w: counterparty logout: %s", ErrConnectionClosed, text), StateDisconnected)
	default:
		s.teardown(nil, StateDisconnected)
	}
}

// onResendRequest answers with a gap fill, since no outbound history is
// kept. The PossDup gap fill reuses BeginSeqNo and does not advance the
// outbound sequence.
func (s *Session) onResendRequest(msg *fixmsg.Message) {
	begin := msg.GetInt(constants.TagBeginSeqNo)

	s.writeMu.Lock()
	var err error
	if st := s.State(); !st.canSendAdmin() {
		err = fmt.Errorf("%w: state %s", ErrNotConnected, st)
	} else if next := s.nextSeq; begin > 0 && begin < next {
		err = s.writeLocked(constants.MsgTypeSequenceReset, begin, builder.BuildPossDupGapFill(next, time.Now()))
	} else if err = s.writeLocked(constants.MsgTypeSequenceReset, next, builder.BuildSequenceResetGapFill(next+1)); err == nil {
		s.nextSeq++
	}
	s.writeMu.Unlock()

	var we *writeError
	if errors.As(err, &we) {
		s.teardown(we.err, StateFailed)
		return
	}
	if err != nil {
		s.log.Warn("resend request not answered", zap.Error(err))
	}
}

// heartbeatLoop sends a Heartbeat every HeartBtInt on its own ticker. A
// finer watch ticker sends a TestRequest after two intervals of inbound
// silence and tears down if one more interval passes without an answer.
func (s *Session) heartbeatLoop() {
	defer s.wg.Done()

	interval := s.cfg.HeartBtInt
	tick := interval / 4
	if tick < 5*time.Millisecond {
		tick = 5 * time.Millisecond
	}
	beat := time.NewTicker(interval)
	defer beat.Stop()
	watch := time.NewTicker(tick)
	defer watch.Stop()

	var testReqAt time.Time
	for {
		select {
		case <-s.done:
			return
		case <-beat.C:
			if err := s.sendAdmin(constants.MsgTypeHeartbeat, builder.BuildHeartbeat("")); err != nil {
				return
			}
		case now := <-watch.C:
			lastRecv := time.Unix(0, s.lastRecv.Load())

			if !testReqAt.IsZero() {
				if lastRecv.After(testReqAt) {
					testReqAt = time.Time{}
				} else if now.Sub(testReqAt) >= interval {
					s.teardown(ErrHeartbeatTimeout, StateFailed)
					return
				}
			}

			if testReqAt.IsZero() && now.Sub(lastRecv) >= 2*interval {
				id := "TEST-" + strconv.FormatInt(now.UnixMilli(), 10)
				if err := s.sendAdmin(constants.MsgTypeTestRequest, builder.BuildTestRequest(id)); err != nil {
					return
				}
				testReqAt = now
			}
		}
	}
}

// teardown closes the connection, fails every pending request and runs the
// close hook before Done is closed. Only the first call has any effect.
func (s *Session) teardown(cause error, final State) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		prev := s.state
		s.state = final
		s.err = cause
		s.mu.Unlock()
		s.metrics.state(final)

		if s.conn != nil {
			_ = s.conn.Close()
		}
		s.corr.closeAll(closedError(cause))

		if cause != nil {
			s.log.Warn("session closed", zap.Stringer("state", prev), zap.Error(cause))
			s.wireLog.OnEventf("Session closed: %v", cause)
		} else {
			s.log.Info("session closed", zap.Stringer("state", prev))
			s.wireLog.OnEvent("Session closed")
		}

		if s.opts.onClose != nil {
			s.opts.onClose(cause)
		}
		close(s.done)
	})
}

// Wait blocks until the session's goroutines have exited.
func (s *Session) Wait() {
	<-s.done
	s.wg.Wait()
}
