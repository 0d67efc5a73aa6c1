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

package builder

import (
	"strconv"
	"time"

	"ctrader-fix-go/codec"
	"ctrader-fix-go/constants"
	"ctrader-fix-go/fixmsg"

	"github.com/shopspring/decimal"
)

type fieldList []fixmsg.Field

func (fl *fieldList) setString(tag constants.Tag, value string) {
	*fl = append(*fl, fixmsg.Field{Tag: tag, Value: value})
}

func (fl *fieldList) setOptional(tag constants.Tag, value string) {
	if value != "" {
		fl.setString(tag, value)
	}
}

func (fl *fieldList) setDecimal(tag constants.Tag, value decimal.Decimal) {
	if !value.IsZero() {
		fl.setString(tag, value.String())
	}
}

func transactTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return codec.FormatTime(t)
}

func BuildLogon(heartBtSeconds int, username, password string) []fixmsg.Field {
	var fl fieldList
	fl.setString(constants.TagEncryptMethod, constants.EncryptMethodNone)
	fl.setString(constants.TagHeartBtInt, strconv.Itoa(heartBtSeconds))
	fl.setString(constants.TagResetSeqNumFlag, constants.ResetSeqNumYes)
	fl.setString(constants.TagUsername, username)
	fl.setString(constants.TagPassword, password)
	return fl
}

// BuildHeartbeat echoes testReqID when answering a TestRequest.
func BuildHeartbeat(testReqID string) []fixmsg.Field {
	var fl fieldList
	fl.setOptional(constants.TagTestReqID, testReqID)
	return fl
}

func BuildTestRequest(testReqID string) []fixmsg.Field {
	var fl fieldList
	fl.setString(constants.TagTestReqID, testReqID)
	return fl
}

func BuildLogout(text string) []fixmsg.Field {
	var fl fieldList
	fl.setOptional(constants.TagText, text)
	return fl
}

func BuildSequenceResetGapFill(newSeqNo int) []fixmsg.Field {
	var fl fieldList
	fl.setString(constants.TagGapFillFlag, constants.FlagYes)
	fl.setString(constants.TagNewSeqNo, strconv.Itoa(newSeqNo))
	return fl
}

// BuildPossDupGapFill is a gap fill sent in place of resent messages.
func BuildPossDupGapFill(newSeqNo int, origSendingTime time.Time) []fixmsg.Field {
	var fl fieldList
	fl.setString(constants.TagPossDupFlag, constants.FlagYes)
	fl.setString(constants.TagOrigSendingTime, codec.FormatTime(origSendingTime))
	fl.setString(constants.TagGapFillFlag, constants.FlagYes)
	fl.setString(constants.TagNewSeqNo, strconv.Itoa(newSeqNo))
	return fl
}

// OrderParams describes a NewOrderSingle. Symbol is the cTrader numeric symbol
// ID. PositionID set on an order closes or reduces that position.
type OrderParams struct {
	ClOrdID      string
	Symbol       string
	Side         string
	OrdType      string
	Qty          decimal.Decimal
	Price        decimal.Decimal
	StopPx       decimal.Decimal
	TimeInForce  string
	PositionID   string
	StopLoss     decimal.Decimal
	TakeProfit   decimal.Decimal
	TrailingStop decimal.Decimal
	TransactTime time.Time
}

func BuildNewOrderSingle(p OrderParams) []fixmsg.Field {
	ordType := p.OrdType
	if ordType == "" {
		ordType = constants.OrdTypeMarket
	}

	var fl fieldList
	fl.setString(constants.TagClOrdID, p.ClOrdID)
	fl.setString(constants.TagSymbol, p.Symbol)
	fl.setString(constants.TagSide, p.Side)
	fl.setString(constants.TagTransactTime, transactTime(p.TransactTime))
	fl.setString(constants.TagOrderQty, p.Qty.String())
	fl.setString(constants.TagOrdType, ordType)
	if ordType == constants.OrdTypeLimit {
		fl.setDecimal(constants.TagPrice, p.Price)
	}
	if ordType == constants.OrdTypeStop {
		fl.setDecimal(constants.TagStopPx, p.StopPx)
	}
	fl.setOptional(constants.TagTimeInForce, p.TimeInForce)
	fl.setOptional(constants.TagPositionID, p.PositionID)
	fl.setDecimal(constants.TagStopLossPrice, p.StopLoss)
	fl.setDecimal(constants.TagTakeProfitPrice, p.TakeProfit)
	fl.setDecimal(constants.TagTrailingStop, p.TrailingStop)
	return fl
}

func BuildOrderCancelRequest(clOrdID, origClOrdID, orderID, side, symbol string) []fixmsg.Field {
	var fl fieldList
	fl.setString(constants.TagOrigClOrdID, origClOrdID)
	fl.setOptional(constants.TagOrderID, orderID)
	fl.setString(constants.TagClOrdID, clOrdID)
	fl.setOptional(constants.TagSide, side)
	fl.setOptional(constants.TagSymbol, symbol)
	fl.setString(constants.TagTransactTime, transactTime(time.Time{}))
	return fl
}

// AmendParams describes an OrderCancelReplaceRequest. With PositionID set it
// replaces the protection of an open position instead of a resting order.
type AmendParams struct {
	ClOrdID      string
	OrigClOrdID  string
	OrderID      string
	PositionID   string
	Symbol       string
	Side         string
	OrdType      string
	Qty          decimal.Decimal
	Price        decimal.Decimal
	StopPx       decimal.Decimal
	StopLoss     decimal.Decimal
	TakeProfit   decimal.Decimal
	TrailingStop decimal.Decimal
}

func BuildOrderCancelReplaceRequest(p AmendParams) []fixmsg.Field {
	var fl fieldList
	fl.setString(constants.TagOrigClOrdID, p.OrigClOrdID)
	fl.setOptional(constants.TagOrderID, p.OrderID)
	fl.setString(constants.TagClOrdID, p.ClOrdID)
	fl.setOptional(constants.TagSymbol, p.Symbol)
	fl.setOptional(constants.TagSide, p.Side)
	fl.setString(constants.TagTransactTime, transactTime(time.Time{}))
	fl.setDecimal(constants.TagOrderQty, p.Qty)
	fl.setOptional(constants.TagOrdType, p.OrdType)
	fl.setDecimal(constants.TagPrice, p.Price)
	fl.setDecimal(constants.TagStopPx, p.StopPx)
	fl.setOptional(constants.TagPositionID, p.PositionID)
	fl.setDecimal(constants.TagStopLossPrice, p.StopLoss)
	fl.setDecimal(constants.TagTakeProfitPrice, p.TakeProfit)
	fl.setDecimal(constants.TagTrailingStop, p.TrailingStop)
	return fl
}

func BuildOrderStatusRequest(clOrdID, side, symbol string) []fixmsg.Field {
	var fl fieldList
	fl.setString(constants.TagClOrdID, clOrdID)
	fl.setOptional(constants.TagSide, side)
	fl.setOptional(constants.TagSymbol, symbol)
	return fl
}

func BuildRequestForPositions(posReqID string) []fixmsg.Field {
	var fl fieldList
	fl.setString(constants.TagPosReqID, posReqID)
	fl.setString(constants.TagPosReqType, constants.PosReqTypePositions)
	return fl
}

func BuildSecurityListRequest(securityReqID string) []fixmsg.Field {
	var fl fieldList
	fl.setString(constants.TagSecurityReqID, securityReqID)
	fl.setString(constants.TagSecurityListRequestType, constants.SecurityListTypeAll)
	return fl
}

func BuildCollateralInquiry(inquiryID string) []fixmsg.Field {
	var fl fieldList
	fl.setString(constants.TagCollInquiryID, inquiryID)
	return fl
}

// BuildMarketDataRequest asks for the bid and offer of one symbol. Subscribing
// requests full refreshes so every update arrives as a snapshot.
func BuildMarketDataRequest(mdReqID, symbol, subscriptionType string, depth int) []fixmsg.Field {
	var fl fieldList
	fl.setString(constants.TagMDReqID, mdReqID)
	fl.setString(constants.TagSubscriptionRequestType, subscriptionType)
	fl.setString(constants.TagMarketDepth, strconv.Itoa(depth))
	if subscriptionType == constants.SubscriptionRequestTypeSubscribe {
		fl.setString(constants.TagMDUpdateType, constants.MdUpdateTypeFullRefresh)
	}

	entryTypes := []string{constants.MdEntryTypeBid, constants.MdEntryTypeOffer}
	fl.setString(constants.TagNoMDEntryTypes, strconv.Itoa(len(entryTypes)))
	for _, entryType := range entryTypes {
		fl.setString(constants.TagMDEntryType, entryType)
	}

	fl.setString(constants.TagNoRelatedSym, "1")
	fl.setString(constants.TagSymbol, symbol)
	return fl
}
