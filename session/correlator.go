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
	"sync"
	"time"

	"ctrader-fix-go/constants"
	"ctrader-fix-go/fixmsg"
)

// responseIDTags maps each correlated response type to the field that
// echoes the caller's request ID.
var responseIDTags = map[string]constants.Tag{
	constants.MsgTypeCollateralReport:   constants.TagCollInquiryID,
	constants.MsgTypeExecutionReport:    constants.TagClOrdID,
	constants.MsgTypeMarketDataSnapshot: constants.TagMDReqID,
	constants.MsgTypePositionReport:     constants.TagPosReqID,
	constants.MsgTypeSecurityList:       constants.TagSecurityReqID,
}

type requestKey struct {
	responseType string
	reqID        string
}

type result struct {
	msg  *fixmsg.Message
	msgs []*fixmsg.Message
	err  error
}

type pendingRequest struct {
	key      requestKey
	msgType  string
	multi    bool
	timeout  time.Duration
	seq      int
	started  time.Time
	acc      []*fixmsg.Message
	expected int
	timer    *time.Timer
	done     chan result
}

func newPending(msgType, responseType, reqID string, timeout time.Duration, multi bool) *pendingRequest {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &pendingRequest{
		key:     requestKey{responseType: responseType, reqID: reqID},
		msgType: msgType,
		multi:   multi,
		timeout: timeout,
		done:    make(chan result, 1),
	}
}

func (p *pendingRequest) kind() string {
	if p.multi {
		return "multi"
	}
	return "single"
}

// correlator holds the single and multi pending tables and the
// sequence-to-key map used by the reject router. A pending request leaves
// its table exactly once, and whoever removes it delivers its result.
type correlator struct {
	mu       sync.Mutex
	closed   bool
	closeErr error
	singles  map[requestKey]*pendingRequest
	multis   map[requestKey]*pendingRequest
	bySeq    map[int]requestKey
	metrics  sessionMetrics
}

func newCorrelator(metrics sessionMetrics) *correlator {
	return &correlator{
		singles: make(map[requestKey]*pendingRequest),
		multis:  make(map[requestKey]*pendingRequest),
		bySeq:   make(map[int]requestKey),
		metrics: metrics,
	}
}

func (c *correlator) table(multi bool) map[requestKey]*pendingRequest {
	if multi {
		return c.multis
	}
	return c.singles
}

func (c *correlator) register(p *pendingRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return c.closeErr
	}
	if _, ok := c.singles[p.key]; ok {
		return ErrDuplicateRequest
	}
	if _, ok := c.multis[p.key]; ok {
		return ErrDuplicateRequest
	}

	c.table(p.multi)[p.key] = p
	if p.seq > 0 {
		c.bySeq[p.seq] = p.key
	}
	p.started = time.Now()
	p.timer = time.AfterFunc(p.timeout, func() { c.expire(p) })
	c.metrics.pending(p.kind(), 1)
	return nil
}

// removeLocked takes p out of every table if it is still the registered
// entry for its key.
func (c *correlator) removeLocked(p *pendingRequest) bool {
	t := c.table(p.multi)
	if t[p.key] != p {
		return false
	}
	delete(t, p.key)
	if p.seq > 0 && c.bySeq[p.seq] == p.key {
		delete(c.bySeq, p.seq)
	}
	if p.timer != nil {
		p.timer.Stop()
	}
	c.metrics.pending(p.kind(), -1)
	return true
}

func (c *correlator) deliverLocked(p *pendingRequest, res result, outcome string) {
	if !c.removeLocked(p) {
		return
	}
	c.metrics.observe(p.key.responseType, outcome, p.started)
	p.done <- res
}

// discard drops p without delivering, used when its send failed.
func (c *correlator) discard(p *pendingRequest) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(p)
}

func (c *correlator) expire(p *pendingRequest) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !p.multi {
		c.deliverLocked(p, result{err: &TimeoutError{
			MsgType:      p.msgType,
			ResponseType: p.key.responseType,
			ReqID:        p.key.reqID,
			Timeout:      p.timeout,
		}}, outcomeTimeout)
		return
	}
	c.deliverLocked(p, result{msgs: p.acc}, outcomeTimeout)
}

// resolve offers an inbound message to the pending tables and reports
// whether a request claimed it.
func (c *correlator) resolve(msg *fixmsg.Message) bool {
	idTag, ok := responseIDTags[msg.MsgType()]
	if !ok {
		return false
	}
	key := requestKey{responseType: msg.MsgType(), reqID: msg.Get(idTag)}

	c.mu.Lock()
	defer c.mu.Unlock()

	if p, ok := c.singles[key]; ok {
		c.deliverLocked(p, result{msg: msg}, outcomeOK)
		return true
	}
	if p, ok := c.multis[key]; ok {
		c.accumulateLocked(p, msg)
		return true
	}
	return false
}

// accumulateLocked applies the multi-response termination rules.
func (c *correlator) accumulateLocked(p *pendingRequest, msg *fixmsg.Message) {
	if msg.Has(constants.TagPosReqResult) && msg.GetInt(constants.TagPosReqResult) != constants.PosReqResultValid {
		c.deliverLocked(p, result{}, outcomeEmpty)
		return
	}
	if msg.Has(constants.TagSecurityRequestResult) && msg.GetInt(constants.TagSecurityRequestResult) != constants.SecurityRequestResultOK {
		c.deliverLocked(p, result{}, outcomeEmpty)
		return
	}

	p.acc = append(p.acc, msg)

	if msg.Has(constants.TagSecurityRequestResult) {
		c.deliverLocked(p, result{msgs: p.acc}, outcomeOK)
		return
	}
	if total := msg.GetInt(constants.TagTotalNumPosReports); total > 0 {
		p.expected = total
	}
	if p.expected > 0 && len(p.acc) >= p.expected {
		c.deliverLocked(p, result{msgs: p.acc}, outcomeOK)
	}
}

// failBySeq resolves the request whose send used seq. A multi request that
// already holds results returns them instead of the error.
func (c *correlator) failBySeq(seq int, err error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	key, ok := c.bySeq[seq]
	if !ok {
		return false
	}
	if p, ok := c.singles[key]; ok && p.seq == seq {
		c.deliverLocked(p, result{err: err}, outcomeRejected)
		return true
	}
	if p, ok := c.multis[key]; ok && p.seq == seq {
		c.failMultiLocked(p, err)
		return true
	}
	delete(c.bySeq, seq)
	return false
}

// failKey resolves the request registered under key with err.
func (c *correlator) failKey(key requestKey, err error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if p, ok := c.singles[key]; ok {
		c.deliverLocked(p, result{err: err}, outcomeRejected)
		return true
	}
	if p, ok := c.multis[key]; ok {
		c.failMultiLocked(p, err)
		return true
	}
	return false
}

func (c *correlator) failMultiLocked(p *pendingRequest, err error) {
	if len(p.acc) > 0 {
		c.deliverLocked(p, result{msgs: p.acc}, outcomeRejected)
		return
	}
	c.deliverLocked(p, result{err: err}, outcomeRejected)
}

// answerKey resolves the request under key with a synthesized response
// rather than an error.
func (c *correlator) answerKey(key requestKey, msg *fixmsg.Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if p, ok := c.singles[key]; ok {
		c.deliverLocked(p, result{msg: msg}, outcomeRejected)
		return true
	}
	if p, ok := c.multis[key]; ok {
		p.acc = append(p.acc, msg)
		c.deliverLocked(p, result{msgs: p.acc}, outcomeRejected)
		return true
	}
	return false
}

// closeAll fails every pending request with err and refuses new ones.
func (c *correlator) closeAll(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.closeErr = err

	for _, p := range c.singles {
		c.deliverLocked(p, result{err: err}, outcomeClosed)
	}
	for _, p := range c.multis {
		c.deliverLocked(p, result{err: err}, outcomeClosed)
	}
	c.bySeq = make(map[int]requestKey)
}

func (c *correlator) counts() (single, multi, seqs int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.singles), len(c.multis), len(c.bySeq)
}
