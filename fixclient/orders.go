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
	"errors"
	"fmt"

	"ctrader-fix-go/builder"
	"ctrader-fix-go/constants"
	"ctrader-fix-go/fixmsg"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PlaceOrder sends a NewOrderSingle and waits for its first execution
// report. A rejected order returns the report together with an error
// wrapping ErrOrderRejected. Symbol may be a name or a numeric ID.
func (c *Client) PlaceOrder(ctx context.Context, p builder.OrderParams) (*ExecutionReport, error) {
	if err := positiveQty(p.Qty); err != nil {
		return nil, err
	}
	if p.Side != constants.SideBuy && p.Side != constants.SideSell {
		return nil, fmt.Errorf("invalid side %q", p.Side)
	}
	switch p.OrdType {
	case "", constants.OrdTypeMarket:
		p.OrdType = constants.OrdTypeMarket
	case constants.OrdTypeLimit:
		if !p.Price.IsPositive() {
			return nil, errors.New("limit order requires a price")
		}
	case constants.OrdTypeStop:
		if !p.StopPx.IsPositive() {
			return nil, errors.New("stop order requires a stop price")
		}
	default:
		return nil, fmt.Errorf("unsupported order type %q", p.OrdType)
	}

	symbolID, err := c.ResolveSymbol(ctx, p.Symbol)
	if err != nil {
		return nil, err
	}
	p.Symbol = symbolID
	if p.ClOrdID == "" {
		p.ClOrdID = c.ids.Next("ord")
	}

	s, err := c.trade(ctx)
	if err != nil {
		return nil, err
	}

	c.orders.Track(p)
	msg, err := s.Request(constants.MsgTypeNewOrderSingle, builder.BuildNewOrderSingle(p),
		constants.MsgTypeExecutionReport, p.ClOrdID, c.requestTimeout)
	if err != nil {
		return nil, fmt.Errorf("order %s: %w", p.ClOrdID, err)
	}

	er := c.record(msg)
	c.log.Info("order placed",
		zap.String("cl_ord_id", er.ClOrdID),
		zap.String("side", sideName(p.Side)),
		zap.String("symbol", c.SymbolName(p.Symbol)),
		zap.Stringer("qty", p.Qty),
		zap.String("status", ordStatusName(er.OrdStatus)))

	if er.Rejected() {
		return er, fmt.Errorf("%w: %s", ErrOrderRejected, rejectText(er))
	}
	return er, nil
}

// MarketOrder places a market order with optional protective prices. Zero
// sl or tp leaves that side unprotected.
func (c *Client) MarketOrder(ctx context.Context, symbol, side string, qty, sl, tp decimal.Decimal) (*ExecutionReport, error) {
	return c.PlaceOrder(ctx, builder.OrderParams{
		Symbol:     symbol,
		Side:       side,
		OrdType:    constants.OrdTypeMarket,
		Qty:        qty,
		StopLoss:   sl,
		TakeProfit: tp,
	})
}

// ClosePosition reduces or closes a position with an opposite-side market
// order. Zero qty closes all of it.
func (c *Client) ClosePosition(ctx context.Context, positionID string, qty decimal.Decimal) (*ExecutionReport, error) {
	positions, err := c.Positions(ctx)
	if err != nil {
		return nil, err
	}
	for _, pos := range positions {
		if pos.ID == positionID {
			return c.closePosition(ctx, pos, qty)
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrPositionNotFound, positionID)
}

func (c *Client) closePosition(ctx context.Context, pos Position, qty decimal.Decimal) (*ExecutionReport, error) {
	if qty.IsZero() {
		qty = pos.Qty
	}
	if qty.IsNegative() || qty.GreaterThan(pos.Qty) {
		return nil, fmt.Errorf("%w: %s of position %s holding %s", ErrInvalidQty, qty, pos.ID, pos.Qty)
	}
	return c.PlaceOrder(ctx, builder.OrderParams{
		Symbol:     pos.Symbol,
		Side:       oppositeSide(pos.Side),
		OrdType:    constants.OrdTypeMarket,
		Qty:        qty,
		PositionID: pos.ID,
	})
}

// CloseAll closes every open position. Closes are attempted for all
// positions and their errors are joined.
func (c *Client) CloseAll(ctx context.Context) ([]*ExecutionReport, error) {
	return c.closeMatching(ctx, func(Position) bool { return true })
}

// CloseSymbol closes every open position in one symbol.
func (c *Client) CloseSymbol(ctx context.Context, symbol string) ([]*ExecutionReport, error) {
	symbolID, err := c.ResolveSymbol(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return c.closeMatching(ctx, func(pos Position) bool { return pos.Symbol == symbolID })
}

func (c *Client) closeMatching(ctx context.Context, match func(Position) bool) ([]*ExecutionReport, error) {
	positions, err := c.Positions(ctx)
	if err != nil {
		return nil, err
	}

	var reports []*ExecutionReport
	var errs []error
	for _, pos := range positions {
		if !match(pos) {
			continue
		}
		er, err := c.closePosition(ctx, pos, decimal.Zero)
		if err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", pos.ID, err))
			continue
		}
		reports = append(reports, er)
	}
	return reports, errors.Join(errs...)
}

// ModifyPosition replaces the stop loss and take profit of an open position.
// A zero price keeps the position's current value for that side.
func (c *Client) ModifyPosition(ctx context.Context, positionID string, sl, tp decimal.Decimal) (*ExecutionReport, error) {
	if sl.IsNegative() || tp.IsNegative() || (sl.IsZero() && tp.IsZero()) {
		return nil, errors.New("modify requires a positive stop loss or take profit")
	}
	positions, err := c.Positions(ctx)
	if err != nil {
		return nil, err
	}
	var pos *Position
	for i := range positions {
		if positions[i].ID == positionID {
			pos = &positions[i]
			break
		}
	}
	if pos == nil {
		return nil, fmt.Errorf("%w: %s", ErrPositionNotFound, positionID)
	}
	if sl.IsZero() {
		sl = pos.StopLoss
	}
	if tp.IsZero() {
		tp = pos.TakeProfit
	}

	s, err := c.trade(ctx)
	if err != nil {
		return nil, err
	}
	p := builder.AmendParams{
		ClOrdID:     c.ids.Next("mod"),
		OrigClOrdID: pos.ID,
		PositionID:  pos.ID,
		Symbol:      pos.Symbol,
		Side:        pos.Side,
		Qty:         pos.Qty,
		StopLoss:    sl,
		TakeProfit:  tp,
	}
	msg, err := s.Request(constants.MsgTypeOrderCancelReplaceRequest, builder.BuildOrderCancelReplaceRequest(p),
		constants.MsgTypeExecutionReport, p.ClOrdID, c.requestTimeout)
	if err != nil {
		return nil, fmt.Errorf("modify %s: %w", positionID, err)
	}

	er := c.record(msg)
	if er.Rejected() {
		return er, fmt.Errorf("%w: %s", ErrModifyRejected, rejectText(er))
	}
	c.log.Info("position modified",
		zap.String("position_id", positionID),
		zap.Stringer("stop_loss", sl),
		zap.Stringer("take_profit", tp))
	return er, nil
}

// Deals returns up to limit executed orders seen by this client, newest
// first. The broker offers no deal history over FIX, so only fills reported
// since start are known.
func (c *Client) Deals(limit int) []*Order {
	if limit <= 0 {
		limit = DefaultDealsLimit
	}
	filled := c.orders.filter(func(o *Order) bool { return o.CumQty.IsPositive() })
	deals := make([]*Order, 0, min(limit, len(filled)))
	for i := len(filled) - 1; i >= 0 && len(deals) < limit; i-- {
		deals = append(deals, filled[i])
	}
	return deals
}

// CancelOrder asks the broker to cancel a resting order.
func (c *Client) CancelOrder(ctx context.Context, origClOrdID string) (*ExecutionReport, error) {
	s, err := c.trade(ctx)
	if err != nil {
		return nil, err
	}

	var orderID, side, symbol string
	if order := c.orders.Get(origClOrdID); order != nil {
		orderID, side, symbol = order.OrderID, order.Side, order.Symbol
	}

	clOrdID := c.ids.Next("cxl")
	msg, err := s.Request(constants.MsgTypeOrderCancelRequest,
		builder.BuildOrderCancelRequest(clOrdID, origClOrdID, orderID, side, symbol),
		constants.MsgTypeExecutionReport, clOrdID, c.requestTimeout)
	if err != nil {
		return nil, fmt.Errorf("cancel %s: %w", origClOrdID, err)
	}

	er := c.record(msg)
	if er.Rejected() {
		return er, fmt.Errorf("%w: %s", ErrCancelRejected, rejectText(er))
	}
	c.log.Info("order canceled", zap.String("orig_cl_ord_id", origClOrdID), zap.String("cl_ord_id", clOrdID))
	return er, nil
}

// AmendOrder replaces price, quantity or protection of a resting order.
// Fields left empty in p are taken from the stored order when known.
func (c *Client) AmendOrder(ctx context.Context, p builder.AmendParams) (*ExecutionReport, error) {
	if p.OrigClOrdID == "" {
		return nil, errors.New("amend requires the original ClOrdID")
	}
	s, err := c.trade(ctx)
	if err != nil {
		return nil, err
	}

	if order := c.orders.Get(p.OrigClOrdID); order != nil {
		setString(&p.OrderID, order.OrderID)
		setString(&p.Symbol, order.Symbol)
		setString(&p.Side, order.Side)
		setString(&p.OrdType, order.OrdType)
		if p.Qty.IsZero() {
			p.Qty = order.OrderQty
		}
	}
	if p.ClOrdID == "" {
		p.ClOrdID = c.ids.Next("amd")
	}

	msg, err := s.Request(constants.MsgTypeOrderCancelReplaceRequest, builder.BuildOrderCancelReplaceRequest(p),
		constants.MsgTypeExecutionReport, p.ClOrdID, c.requestTimeout)
	if err != nil {
		return nil, fmt.Errorf("amend %s: %w", p.OrigClOrdID, err)
	}

	er := c.record(msg)
	if er.Rejected() {
		return er, fmt.Errorf("%w: %s", ErrCancelRejected, rejectText(er))
	}
	return er, nil
}

// OrderStatus asks the broker for the current state of an order.
func (c *Client) OrderStatus(ctx context.Context, clOrdID string) (*ExecutionReport, error) {
	s, err := c.trade(ctx)
	if err != nil {
		return nil, err
	}

	var side, symbol string
	if order := c.orders.Get(clOrdID); order != nil {
		side, symbol = order.Side, order.Symbol
	}

	msg, err := s.Request(constants.MsgTypeOrderStatusRequest, builder.BuildOrderStatusRequest(clOrdID, side, symbol),
		constants.MsgTypeExecutionReport, clOrdID, c.requestTimeout)
	if err != nil {
		return nil, fmt.Errorf("status %s: %w", clOrdID, err)
	}
	return c.record(msg), nil
}

func (c *Client) record(msg *fixmsg.Message) *ExecutionReport {
	er := parseExecutionReport(msg)
	c.orders.Update(er)
	return er
}

func rejectText(er *ExecutionReport) string {
	if er.Text != "" {
		return er.Text
	}
	if er.OrdRejReason != 0 {
		return fmt.Sprintf("reason %d", er.OrdRejReason)
	}
	return "no reason given"
}
