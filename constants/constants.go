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

package constants

// Tag is a FIX field number.
type Tag int

const (
	SOH = byte(0x01)

	FixTimeFormat     = "20060102-15:04:05.000"
	BeginStringFIX44  = "FIX.4.4"
	EncryptMethodNone = "0"
	ResetSeqNumYes    = "Y"
	FlagYes           = "Y"

	SubIDTrade = "TRADE"
	SubIDQuote = "QUOTE"
)

// Administrative message types
const (
	MsgTypeHeartbeat     = "0"
	MsgTypeTestRequest   = "1"
	MsgTypeResendRequest = "2"
	MsgTypeReject        = "3"
	MsgTypeSequenceReset = "4"
	MsgTypeLogout        = "5"
	MsgTypeLogon         = "A"
)

// Application message types
const (
	MsgTypeExecutionReport           = "8"
	MsgTypeOrderCancelReject         = "9"
	MsgTypeNewOrderSingle            = "D"
	MsgTypeOrderCancelRequest        = "F"
	MsgTypeOrderCancelReplaceRequest = "G"
	MsgTypeOrderStatusRequest        = "H"
	MsgTypeBusinessMessageReject     = "j"
	MsgTypeMarketDataRequest         = "V"
	MsgTypeMarketDataSnapshot        = "W"
	MsgTypeMarketDataIncremental     = "X"
	MsgTypeMarketDataRequestReject   = "Y"
	MsgTypeSecurityListRequest       = "x"
	MsgTypeSecurityList              = "y"
	MsgTypeRequestForPositions       = "AN"
	MsgTypePositionReport            = "AP"
	MsgTypeCollateralInquiry         = "BB"
	MsgTypeCollateralReport          = "BA"
)

const (
	SideBuy  = "1"
	SideSell = "2"

	OrdTypeMarket = "1"
	OrdTypeLimit  = "2"
	OrdTypeStop   = "3"

	TimeInForceGTC = "1"
	TimeInForceIOC = "3"
	TimeInForceGTD = "6"

	OrdStatusNew             = "0"
	OrdStatusPartiallyFilled = "1"
	OrdStatusFilled          = "2"
	OrdStatusCanceled        = "4"
	OrdStatusReplaced        = "5"
	OrdStatusPendingCancel   = "6"
	OrdStatusRejected        = "8"
	OrdStatusPendingNew      = "A"
	OrdStatusExpired         = "C"
	OrdStatusPendingReplace  = "E"

	ExecTypeCanceled = "4"
	ExecTypeReplaced = "5"
	ExecTypeRejected = "8"

	PosReqTypePositions                = "0"
	PosReqResultValid                  = 0
	PosReqResultNoPositions            = 2
	SecurityListTypeAll                = "0"
	SecurityRequestResultOK            = 0
	SubscriptionRequestTypeSnapshot    = "0"
	SubscriptionRequestTypeSubscribe   = "1"
	SubscriptionRequestTypeUnsubscribe = "2"

	MdEntryTypeBid   = "0"
	MdEntryTypeOffer = "1"

	MdUpdateTypeFullRefresh = "0"
)

const (
	TagAccount         = Tag(1)
	TagAvgPx           = Tag(6)
	TagBeginSeqNo      = Tag(7)
	TagBeginString     = Tag(8)
	TagBodyLength      = Tag(9)
	TagCheckSum        = Tag(10)
	TagClOrdID         = Tag(11)
	TagCumQty          = Tag(14)
	TagCurrency        = Tag(15)
	TagEndSeqNo        = Tag(16)
	TagExecID          = Tag(17)
	TagMsgSeqNum       = Tag(34)
	TagMsgType         = Tag(35)
	TagNewSeqNo        = Tag(36)
	TagOrderID         = Tag(37)
	TagOrderQty        = Tag(38)
	TagOrdStatus       = Tag(39)
	TagOrdType         = Tag(40)
	TagOrigClOrdID     = Tag(41)
	TagPossDupFlag     = Tag(43)
	TagPrice           = Tag(44)
	TagRefSeqNum       = Tag(45)
	TagSenderCompID    = Tag(49)
	TagSenderSubID     = Tag(50)
	TagSendingTime     = Tag(52)
	TagSide            = Tag(54)
	TagSymbol          = Tag(55)
	TagTargetCompID    = Tag(56)
	TagTargetSubID     = Tag(57)
	TagText            = Tag(58)
	TagTimeInForce     = Tag(59)
	TagTransactTime    = Tag(60)
	TagPositionEffect  = Tag(77)
	TagEncryptMethod   = Tag(98)
	TagStopPx          = Tag(99)
	TagCxlRejReason    = Tag(102)
	TagOrdRejReason    = Tag(103)
	TagHeartBtInt      = Tag(108)
	TagTestReqID       = Tag(112)
	TagOrigSendingTime = Tag(122)
	TagGapFillFlag     = Tag(123)
	TagResetSeqNumFlag = Tag(141)
	TagExecType        = Tag(150)
	TagLeavesQty       = Tag(151)
	TagUsername        = Tag(553)
	TagPassword        = Tag(554)

	// Market data
	TagNoRelatedSym            = Tag(146)
	TagMDReqID                 = Tag(262)
	TagSubscriptionRequestType = Tag(263)
	TagMarketDepth             = Tag(264)
	TagMDUpdateType            = Tag(265)
	TagNoMDEntryTypes          = Tag(267)
	TagNoMDEntries             = Tag(268)
	TagMDEntryType             = Tag(269)
	TagMDEntryPx               = Tag(270)
	TagMDEntrySize             = Tag(271)
	TagMDReqRejReason          = Tag(281)

	// Rejects
	TagRefTagID             = Tag(371)
	TagRefMsgType           = Tag(372)
	TagSessionRejectReason  = Tag(373)
	TagBusinessRejectRefID  = Tag(379)
	TagBusinessRejectReason = Tag(380)
	TagCxlRejResponseTo     = Tag(434)

	// Security list
	TagSecurityReqID           = Tag(320)
	TagSecurityResponseID      = Tag(322)
	TagTotNoRelatedSym         = Tag(393)
	TagSecurityListRequestType = Tag(559)
	TagSecurityRequestResult   = Tag(560)
	TagLegSymbol               = Tag(1007)

	// Positions
	TagAccountType        = Tag(581)
	TagNoPositions        = Tag(702)
	TagPosType            = Tag(703)
	TagLongQty            = Tag(704)
	TagShortQty           = Tag(705)
	TagPosReqID           = Tag(710)
	TagPosMaintRptID      = Tag(721)
	TagPosReqType         = Tag(724)
	TagTotalNumPosReports = Tag(727)
	TagPosReqResult       = Tag(728)
	TagSettlPrice         = Tag(730)

	// Collateral
	TagMarginExcess    = Tag(899)
	TagTotalNetValue   = Tag(900)
	TagCashOutstanding = Tag(901)
	TagCollRptID       = Tag(908)
	TagCollInquiryID   = Tag(909)

	// cTrader custom tags, opaque pass-through
	TagSymbolName      = Tag(9013)
	TagSymbolDigits    = Tag(9014)
	TagStopLossPrice   = Tag(9025)
	TagTakeProfitPrice = Tag(9026)
	TagTrailingStop    = Tag(9027)
)

// TagPositionID is the position identifier carried on orders and position reports.
const TagPositionID = TagPosMaintRptID

var msgTypeNames = map[string]string{
	MsgTypeHeartbeat:                 "Heartbeat",
	MsgTypeTestRequest:               "TestRequest",
	MsgTypeResendRequest:             "ResendRequest",
	MsgTypeReject:                    "Reject",
	MsgTypeSequenceReset:             "SequenceReset",
	MsgTypeLogout:                    "Logout",
	MsgTypeLogon:                     "Logon",
	MsgTypeExecutionReport:           "ExecutionReport",
	MsgTypeOrderCancelReject:         "OrderCancelReject",
	MsgTypeNewOrderSingle:            "NewOrderSingle",
	MsgTypeOrderCancelRequest:        "OrderCancelRequest",
	MsgTypeOrderCancelReplaceRequest: "OrderCancelReplaceRequest",
	MsgTypeOrderStatusRequest:        "OrderStatusRequest",
	MsgTypeBusinessMessageReject:     "BusinessMessageReject",
	MsgTypeMarketDataRequest:         "MarketDataRequest",
	MsgTypeMarketDataSnapshot:        "MarketDataSnapshot",
	MsgTypeMarketDataIncremental:     "MarketDataIncrementalRefresh",
	MsgTypeMarketDataRequestReject:   "MarketDataRequestReject",
	MsgTypeSecurityListRequest:       "SecurityListRequest",
	MsgTypeSecurityList:              "SecurityList",
	MsgTypeRequestForPositions:       "RequestForPositions",
	MsgTypePositionReport:            "PositionReport",
	MsgTypeCollateralInquiry:         "CollateralInquiry",
	MsgTypeCollateralReport:          "CollateralReport",
}

// MsgTypeName returns a readable name for a MsgType value, or the raw value if unknown.
func MsgTypeName(msgType string) string {
	if name, ok := msgTypeNames[msgType]; ok {
		return name
	}
	return msgType
}

// IsAdmin reports whether msgType is a session-level message.
func IsAdmin(msgType string) bool {
	switch msgType {
	case MsgTypeHeartbeat, MsgTypeTestRequest, MsgTypeResendRequest,
		MsgTypeReject, MsgTypeSequenceReset, MsgTypeLogout, MsgTypeLogon:
		return true
	}
	return false
}
