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
	"ctrader-fix-go/constants"
	"ctrader-fix-go/fixmsg"

	"go.uber.org/zap"
)

// routeSessionReject fails the request whose send carried RefSeqNum.
func (s *Session) routeSessionReject(msg *fixmsg.Message) {
	rejErr := &RejectError{
		Kind:       RejectSession,
		RefSeqNum:  msg.GetInt(constants.TagRefSeqNum),
		RefMsgType: msg.Get(constants.TagRefMsgType),
		RefTagID:   msg.GetInt(constants.TagRefTagID),
		Reason:     msg.GetInt(constants.TagSessionRejectReason),
		Text:       msg.Get(constants.TagText),
	}
	s.routed(RejectSession, rejErr, s.corr.failBySeq(rejErr.RefSeqNum, rejErr))
}

// routeCancelReject answers the ExecutionReport request for ClOrdID with a
// rejected report.
func (s *Session) routeCancelReject(msg *fixmsg.Message) {
	clOrdID := msg.Get(constants.TagClOrdID)
	report := rejectedReport(msg, clOrdID, constants.TagCxlRejReason)
	key := requestKey{responseType: constants.MsgTypeExecutionReport, reqID: clOrdID}

	rejErr := &RejectError{
		Kind:   RejectCancel,
		Reason: msg.GetInt(constants.TagCxlRejReason),
		Text:   msg.Get(constants.TagText),
	}
	s.routed(RejectCancel, rejErr, s.corr.answerKey(key, report))
}

// routeBusinessReject answers the ExecutionReport request for
// BusinessRejectRefID, falling back to RefSeqNum.
func (s *Session) routeBusinessReject(msg *fixmsg.Message) {
	refID := msg.Get(constants.TagBusinessRejectRefID)
	rejErr := &RejectError{
		Kind:       RejectBusiness,
		RefSeqNum:  msg.GetInt(constants.TagRefSeqNum),
		RefMsgType: msg.Get(constants.TagRefMsgType),
		Reason:     msg.GetInt(constants.TagBusinessRejectReason),
		Text:       msg.Get(constants.TagText),
	}

	if refID != "" {
		key := requestKey{responseType: constants.MsgTypeExecutionReport, reqID: refID}
		if s.corr.answerKey(key, rejectedReport(msg, refID, constants.TagBusinessRejectReason)) {
			s.routed(RejectBusiness, rejErr, true)
			return
		}
	}
	s.routed(RejectBusiness, rejErr, rejErr.RefSeqNum > 0 && s.corr.failBySeq(rejErr.RefSeqNum, rejErr))
}

func (s *Session) routeMarketDataReject(msg *fixmsg.Message) {
	mdReqID := msg.Get(constants.TagMDReqID)
	rejErr := &RejectError{
		Kind:   RejectMarketData,
		Reason: msg.GetInt(constants.TagMDReqRejReason),
		Text:   msg.Get(constants.TagText),
	}
	key := requestKey{responseType: constants.MsgTypeMarketDataSnapshot, reqID: mdReqID}
	s.routed(RejectMarketData, rejErr, s.corr.failKey(key, rejErr))
}

func (s *Session) routed(kind RejectKind, rejErr *RejectError, ok bool) {
	if !ok {
		s.metrics.reject(RejectUnrouted)
		s.log.Warn("unrouted reject", zap.String("kind", string(kind)), zap.Error(rejErr))
		return
	}
	s.metrics.reject(kind)
	s.log.Info("reject routed", zap.Error(rejErr))
}

// rejectedReport builds the failed report handed to a caller awaiting an
// ExecutionReport. It keeps the inbound reject's MsgType.
func rejectedReport(msg *fixmsg.Message, clOrdID string, reasonTag constants.Tag) *fixmsg.Message {
	report := fixmsg.New(msg.MsgType()).
		Set(constants.TagClOrdID, clOrdID).
		Set(constants.TagExecType, constants.ExecTypeRejected).
		Set(constants.TagOrdStatus, constants.OrdStatusRejected).
		Set(constants.TagText, msg.Get(constants.TagText))
	if reason, ok := msg.Lookup(reasonTag); ok {
		report.Set(reasonTag, reason)
	}
	for _, tag := range []constants.Tag{constants.TagOrderID, constants.TagOrigClOrdID} {
		if v, ok := msg.Lookup(tag); ok {
			report.Set(tag, v)
		}
	}
	return report
}
