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
	"strings"

	"ctrader-fix-go/constants"
	"ctrader-fix-go/fixmsg"

	"github.com/shopspring/decimal"
)

// Symbol is one entry of the broker's instrument list. ID is the numeric
// cTrader symbol ID that orders and market data requests carry in tag 55.
type Symbol struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Digits int    `json:"digits"`
}

// Position is an open position as reported by a PositionReport.
type Position struct {
	ID         string          `json:"id"`
	Symbol     string          `json:"symbol"`
	Side       string          `json:"side"` // "1" long, "2" short
	Qty        decimal.Decimal `json:"qty"`
	EntryPrice decimal.Decimal `json:"entryPrice"`
	StopLoss   decimal.Decimal `json:"stopLoss"`
	TakeProfit decimal.Decimal `json:"takeProfit"`
}

// ExecutionReport is a decimal view of an ExecutionReport (8). A cancel or
// business reject routed to an order surfaces here with OrdStatus "8".
type ExecutionReport struct {
	MsgType      string          `json:"msgType"`
	ClOrdID      string          `json:"clOrdId"`
	OrigClOrdID  string          `json:"origClOrdId,omitempty"`
	OrderID      string          `json:"orderId"`
	ExecID       string          `json:"execId"`
	PositionID   string          `json:"positionId,omitempty"`
	Symbol       string          `json:"symbol"`
	Side         string          `json:"side"`
	OrdType      string          `json:"ordType"`
	OrdStatus    string          `json:"ordStatus"`
	ExecType     string          `json:"execType"`
	OrderQty     decimal.Decimal `json:"orderQty"`
	Price        decimal.Decimal `json:"price"`
	StopPx       decimal.Decimal `json:"stopPx"`
	AvgPx        decimal.Decimal `json:"avgPx"`
	CumQty       decimal.Decimal `json:"cumQty"`
	LeavesQty    decimal.Decimal `json:"leavesQty"`
	OrdRejReason int             `json:"ordRejReason,omitempty"`
	TransactTime string          `json:"transactTime,omitempty"`
	Text         string          `json:"text,omitempty"`
}

// Rejected reports whether the order or the request behind this report failed.
func (er *ExecutionReport) Rejected() bool {
	return er.OrdStatus == constants.OrdStatusRejected || er.ExecType == constants.ExecTypeRejected
}

// AccountInfo is the collateral summary of the trading account.
type AccountInfo struct {
	Equity          decimal.Decimal `json:"equity"`
	MarginExcess    decimal.Decimal `json:"marginExcess"`
	CashOutstanding decimal.Decimal `json:"cashOutstanding"`
	Currency        string          `json:"currency,omitempty"`
}

// Quote is the top of book for one symbol.
type Quote struct {
	Symbol  string          `json:"symbol"`
	Bid     decimal.Decimal `json:"bid"`
	Ask     decimal.Decimal `json:"ask"`
	BidSize decimal.Decimal `json:"bidSize"`
	AskSize decimal.Decimal `json:"askSize"`
}

func (q Quote) Spread() decimal.Decimal {
	if q.Bid.IsZero() || q.Ask.IsZero() {
		return decimal.Zero
	}
	return q.Ask.Sub(q.Bid)
}

func parseExecutionReport(msg *fixmsg.Message) *ExecutionReport {
	return &ExecutionReport{
		MsgType:      msg.MsgType(),
		ClOrdID:      msg.Get(constants.TagClOrdID),
		OrigClOrdID:  msg.Get(constants.TagOrigClOrdID),
		OrderID:      msg.Get(constants.TagOrderID),
		ExecID:       msg.Get(constants.TagExecID),
		PositionID:   msg.Get(constants.TagPositionID),
		Symbol:       msg.Get(constants.TagSymbol),
		Side:         msg.Get(constants.TagSide),
		OrdType:      msg.Get(constants.TagOrdType),
		OrdStatus:    msg.Get(constants.TagOrdStatus),
		ExecType:     msg.Get(constants.TagExecType),
		OrderQty:     msg.GetDecimal(constants.TagOrderQty),
		Price:        msg.GetDecimal(constants.TagPrice),
		StopPx:       msg.GetDecimal(constants.TagStopPx),
		AvgPx:        msg.GetDecimal(constants.TagAvgPx),
		CumQty:       msg.GetDecimal(constants.TagCumQty),
		LeavesQty:    msg.GetDecimal(constants.TagLeavesQty),
		OrdRejReason: msg.GetInt(constants.TagOrdRejReason),
		TransactTime: msg.Get(constants.TagTransactTime),
		Text:         msg.Get(constants.TagText),
	}
}

// parsePosition reads one PositionReport. Reports that only carry the
// request result, as sent when there are no positions, yield false.
func parsePosition(msg *fixmsg.Message) (Position, bool) {
	id := msg.Get(constants.TagPositionID)
	if id == "" {
		return Position{}, false
	}

	pos := Position{
		ID:         id,
		Symbol:     msg.Get(constants.TagSymbol),
		EntryPrice: msg.GetDecimal(constants.TagSettlPrice),
		StopLoss:   msg.GetDecimal(constants.TagStopLossPrice),
		TakeProfit: msg.GetDecimal(constants.TagTakeProfitPrice),
	}

	long := msg.GetDecimal(constants.TagLongQty)
	short := msg.GetDecimal(constants.TagShortQty)
	if long.GreaterThan(decimal.Zero) {
		pos.Side = constants.SideBuy
		pos.Qty = long
	} else {
		pos.Side = constants.SideSell
		pos.Qty = short
	}
	return pos, true
}

func parsePositions(msgs []*fixmsg.Message) []Position {
	var out []Position
	for _, msg := range msgs {
		if pos, ok := parsePosition(msg); ok {
			out = append(out, pos)
		}
	}
	return out
}

// parseSymbols walks the SecurityList instrument group. The readable name
// comes from LegSymbol, falling back to the custom name tag.
func parseSymbols(msg *fixmsg.Message) []Symbol {
	records := msg.Group(constants.TagSymbol,
		constants.TagLegSymbol, constants.TagSymbolName, constants.TagSymbolDigits)

	out := make([]Symbol, 0, len(records))
	for _, rec := range records {
		name := rec.Get(constants.TagLegSymbol)
		if name == "" {
			name = rec.Get(constants.TagSymbolName)
		}
		out = append(out, Symbol{
			ID:     rec.Get(constants.TagSymbol),
			Name:   name,
			Digits: rec.GetInt(constants.TagSymbolDigits),
		})
	}
	return out
}

func parseAccountInfo(msg *fixmsg.Message) AccountInfo {
	return AccountInfo{
		Equity:          msg.GetDecimal(constants.TagTotalNetValue),
		MarginExcess:    msg.GetDecimal(constants.TagMarginExcess),
		CashOutstanding: msg.GetDecimal(constants.TagCashOutstanding),
		Currency:        msg.Get(constants.TagCurrency),
	}
}

// parseQuote takes the first bid and offer entries of a snapshot.
func parseQuote(msg *fixmsg.Message, symbol string) Quote {
	q := Quote{Symbol: symbol}
	var haveBid, haveAsk bool
	for _, entry := range msg.Group(constants.TagMDEntryType, constants.TagMDEntryPx, constants.TagMDEntrySize) {
		switch entry.Get(constants.TagMDEntryType) {
		case constants.MdEntryTypeBid:
			if !haveBid {
				q.Bid = entry.GetDecimal(constants.TagMDEntryPx)
				q.BidSize = entry.GetDecimal(constants.TagMDEntrySize)
				haveBid = true
			}
		case constants.MdEntryTypeOffer:
			if !haveAsk {
				q.Ask = entry.GetDecimal(constants.TagMDEntryPx)
				q.AskSize = entry.GetDecimal(constants.TagMDEntrySize)
				haveAsk = true
			}
		}
	}
	return q
}

// isSymbolID reports whether s is already a numeric cTrader symbol ID.
func isSymbolID(s string) bool {
	if s == "" {
		return false
	}
	return strings.Trim(s, "0123456789") == ""
}

func sideName(side string) string {
	switch side {
	case constants.SideBuy:
		return "Buy"
	case constants.SideSell:
		return "Sell"
	default:
		return side
	}
}

func oppositeSide(side string) string {
	if side == constants.SideBuy {
		return constants.SideSell
	}
	return constants.SideBuy
}

func ordStatusName(status string) string {
	switch status {
	case constants.OrdStatusNew:
		return "New"
	case constants.OrdStatusPartiallyFilled:
		return "PartiallyFilled"
	case constants.OrdStatusFilled:
		return "Filled"
	case constants.OrdStatusCanceled:
		return "Canceled"
	case constants.OrdStatusReplaced:
		return "Replaced"
	case constants.OrdStatusRejected:
		return "Rejected"
	case constants.OrdStatusExpired:
		return "Expired"
	default:
		return status
	}
}
