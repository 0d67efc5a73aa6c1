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
	"errors"
	"fmt"
	"time"

	"ctrader-fix-go/constants"
)

var (
	ErrDial             = errors.New("fix: dial failed")
	ErrLogonTimeout     = errors.New("fix: logon timed out")
	ErrLogonRejected    = errors.New("fix: logon rejected")
	ErrConnectionClosed = errors.New("fix: connection closed")
	ErrNotConnected     = errors.New("fix: session not logged in")
	ErrTimeout          = errors.New("fix: request timed out")
	ErrRejected         = errors.New("fix: request rejected")
	ErrDuplicateRequest = errors.New("fix: request already pending")
	ErrHeartbeatTimeout = errors.New("fix: counterparty heartbeat timeout")
	ErrManagerClosed    = errors.New("fix: session manager closed")
)

// TimeoutError is returned by Request when no response arrives in time.
type TimeoutError struct {
	MsgType      string
	ResponseType string
	ReqID        string
	Timeout      time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("fix: %s timed out after %s waiting for %s %q",
		constants.MsgTypeName(e.MsgType), e.Timeout, constants.MsgTypeName(e.ResponseType), e.ReqID)
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

type RejectKind string

const (
	RejectSession    RejectKind = "session"
	RejectCancel     RejectKind = "cancel"
	RejectBusiness   RejectKind = "business"
	RejectMarketData RejectKind = "market_data"
	RejectUnrouted   RejectKind = "unrouted"
)

// RejectError carries the fields of a Reject, BusinessMessageReject or
// MarketDataRequestReject routed to a pending request.
type RejectError struct {
	Kind       RejectKind
	RefSeqNum  int
	RefMsgType string
	RefTagID   int
	Reason     int
	Text       string
}

func (e *RejectError) Error() string {
	msg := fmt.Sprintf("fix: %s reject", e.Kind)
	if e.RefSeqNum > 0 {
		msg += fmt.Sprintf(" of seq %d", e.RefSeqNum)
	}
	if e.RefMsgType != "" {
		msg += fmt.Sprintf(" (%s)", constants.MsgTypeName(e.RefMsgType))
	}
	if e.RefTagID > 0 {
		msg += fmt.Sprintf(" tag %d", e.RefTagID)
	}
	if e.Reason != 0 {
		msg += fmt.Sprintf(" reason %d", e.Reason)
	}
	if e.Text != "" {
		msg += ": " + e.Text
	}
	return msg
}

func (e *RejectError) Is(target error) bool {
	return target == ErrRejected
}

// closedError is the error every pending request sees at teardown.
func closedError(cause error) error {
	switch {
	case cause == nil:
		return ErrConnectionClosed
	case errors.Is(cause, ErrConnectionClosed):
		return cause
	default:
		return fmt.Errorf("%w: %v", ErrConnectionClosed, cause)
	}
}
