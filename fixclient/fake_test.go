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

package fixclient

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"ctrader-fix-go/constants"
	"ctrader-fix-go/fixmsg"

	"go.uber.org/zap/zaptest"
)

// call is one message the client handed to the fake session.
type call struct {
	msgType      string
	msg          *fixmsg.Message
	responseType string
	reqID        string
	timeout      time.Duration
}

// responder answers a request. Single requests use the first message.
type responder func(c call) ([]*fixmsg.Message, error)

type fakeRequester struct {
	mu         sync.Mutex
	calls      []call
	responders map[string]responder
}

func newFakeRequester() *fakeRequester {
	return &fakeRequester{responders: make(map[string]responder)}
}

func (f *fakeRequester) on(msgType string, r responder) *fakeRequester {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responders[msgType] = r
	return f
}

func (f *fakeRequester) record(c call) responder {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	return f.responders[c.msgType]
}

func (f *fakeRequester) Send(msgType string, fields []fixmsg.Field) error {
	f.record(call{msgType: msgType, msg: fixmsg.FromFields(fields)})
	return nil
}

func (f *fakeRequester) Request(msgType string, fields []fixmsg.Field, responseType, reqID string, timeout time.Duration) (*fixmsg.Message, error) {
	msgs, err := f.RequestMulti(msgType, fields, responseType, reqID, timeout)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, fmt.Errorf("fake: no response for %s", constants.MsgTypeName(msgType))
	}
	return msgs[0], nil
}

func (f *fakeRequester) RequestMulti(msgType string, fields []fixmsg.Field, responseType, reqID string, timeout time.Duration) ([]*fixmsg.Message, error) {
	c := call{msgType: msgType, msg: fixmsg.FromFields(fields), responseType: responseType, reqID: reqID, timeout: timeout}
	r := f.record(c)
	if r == nil {
		return nil, fmt.Errorf("fake: unexpected %s", constants.MsgTypeName(msgType))
	}
	return r(c)
}

// sent returns the calls of one message type in order.
func (f *fakeRequester) sent(msgType string) []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []call
	for _, c := range f.calls {
		if c.msgType == msgType {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeRequester) provider() Provider {
	return func(context.Context) (Requester, error) {
		return f, nil
	}
}

func fld(tag constants.Tag, value string) fixmsg.Field {
	return fixmsg.Field{Tag: tag, Value: value}
}

func msgOf(msgType string, fields ...fixmsg.Field) *fixmsg.Message {
	m := fixmsg.New(msgType)
	for _, f := range fields {
		m.Set(f.Tag, f.Value)
	}
	return m
}

// fill answers an order with a filled report echoing its ClOrdID, symbol,
// side and quantity.
func fill(c call) ([]*fixmsg.Message, error) {
	return []*fixmsg.Message{msgOf(constants.MsgTypeExecutionReport,
		fld(constants.TagClOrdID, c.reqID),
		fld(constants.TagOrderID, "ord-"+c.reqID),
		fld(constants.TagExecType, "F"),
		fld(constants.TagOrdStatus, constants.OrdStatusFilled),
		fld(constants.TagSymbol, c.msg.Get(constants.TagSymbol)),
		fld(constants.TagSide, c.msg.Get(constants.TagSide)),
		fld(constants.TagOrderQty, c.msg.Get(constants.TagOrderQty)),
		fld(constants.TagCumQty, c.msg.Get(constants.TagOrderQty)),
		fld(constants.TagLeavesQty, "0"),
		fld(constants.TagAvgPx, "1.08512"),
		fld(constants.TagPositionID, "pos-9"),
	)}, nil
}

func securityList(c call) ([]*fixmsg.Message, error) {
	return []*fixmsg.Message{msgOf(constants.MsgTypeSecurityList,
		fld(constants.TagSecurityReqID, c.reqID),
		fld(constants.TagSecurityRequestResult, "0"),
		fld(constants.TagNoRelatedSym, "3"),
		fld(constants.TagSymbol, "1"), fld(constants.TagLegSymbol, "EURUSD"), fld(constants.TagSymbolDigits, "5"),
		fld(constants.TagSymbol, "2"), fld(constants.TagLegSymbol, "GBPUSD"), fld(constants.TagSymbolDigits, "5"),
		fld(constants.TagSymbol, "41"), fld(constants.TagSymbolName, "XAUUSD"), fld(constants.TagSymbolDigits, "2"),
	)}, nil
}

func positionReport(reqID, id, symbol string, long, short, price string) *fixmsg.Message {
	return msgOf(constants.MsgTypePositionReport,
		fld(constants.TagPosReqID, reqID),
		fld(constants.TagPosReqResult, "0"),
		fld(constants.TagTotalNumPosReports, "2"),
		fld(constants.TagPositionID, id),
		fld(constants.TagSymbol, symbol),
		fld(constants.TagLongQty, long),
		fld(constants.TagShortQty, short),
		fld(constants.TagSettlPrice, price),
	)
}

func twoPositions(c call) ([]*fixmsg.Message, error) {
	return []*fixmsg.Message{
		positionReport(c.reqID, "101", "1", "10000", "0", "1.08000"),
		positionReport(c.reqID, "102", "2", "0", "5000", "1.27000"),
	}, nil
}

func testClient(t *testing.T, trade, quote *fakeRequester) *Client {
	t.Helper()
	var quoteProvider Provider
	if quote != nil {
		quoteProvider = quote.provider()
	}
	return NewClient(trade.provider(), quoteProvider,
		WithClientLogger(zaptest.NewLogger(t)),
		WithIDGenerator(NewIDGenerator("test")),
		WithTimeouts(time.Second, 2*time.Second))
}
