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

// Package fixclient is the trading layer over FIX sessions: order entry,
// position and account queries, quotes, and an interactive console.
package fixclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"ctrader-fix-go/builder"
	"ctrader-fix-go/constants"
	"ctrader-fix-go/fixmsg"
	"ctrader-fix-go/session"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	DefaultRequestTimeout = 10 * time.Second
	DefaultStreamTimeout  = 15 * time.Second
	DefaultDealsLimit     = 50
)

var (
	ErrOrderRejected    = errors.New("order rejected")
	ErrCancelRejected   = errors.New("cancel rejected")
	ErrModifyRejected   = errors.New("modify rejected")
	ErrPositionNotFound = errors.New("position not found")
	ErrUnknownSymbol    = errors.New("unknown symbol")
	ErrInvalidQty       = errors.New("invalid quantity")
	ErrNoQuoteSession   = errors.New("no quote session configured")
)

// Requester is the request surface of a logged-in session.
type Requester interface {
	Send(msgType string, fields []fixmsg.Field) error
	Request(msgType string, fields []fixmsg.Field, responseType, reqID string, timeout time.Duration) (*fixmsg.Message, error)
	RequestMulti(msgType string, fields []fixmsg.Field, responseType, reqID string, timeout time.Duration) ([]*fixmsg.Message, error)
}

// Provider returns a logged-in session, connecting if needed.
type Provider func(ctx context.Context) (Requester, error)

// SessionProvider hands out the manager's live session.
func SessionProvider(m *session.Manager) Provider {
	return func(ctx context.Context) (Requester, error) {
		s, err := m.Session(ctx)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// IDGenerator produces request IDs that stay unique across restarts and
// concurrent callers.
type IDGenerator struct {
	prefix string
	n      atomic.Uint64
}

func NewIDGenerator(prefix string) *IDGenerator {
	return &IDGenerator{prefix: prefix}
}

// Next returns "<prefix>-<kind>-<unix millis>-<counter>".
func (g *IDGenerator) Next(kind string) string {
	id := fmt.Sprintf("%s-%d-%d", kind, time.Now().UnixMilli(), g.n.Add(1))
	if g.prefix == "" {
		return id
	}
	return g.prefix + "-" + id
}

type ClientOption func(*Client)

func WithClientLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.log = logger
		}
	}
}

func WithOrderStore(store *OrderStore) ClientOption {
	return func(c *Client) {
		if store != nil {
			c.orders = store
		}
	}
}

func WithIDGenerator(ids *IDGenerator) ClientOption {
	return func(c *Client) {
		if ids != nil {
			c.ids = ids
		}
	}
}

// WithTimeouts sets the wait for single responses and for report streams.
func WithTimeouts(request, stream time.Duration) ClientOption {
	return func(c *Client) {
		if request > 0 {
			c.requestTimeout = request
		}
		if stream > 0 {
			c.streamTimeout = stream
		}
	}
}

// Client runs trading operations against the TRADE session and quotes
// against the QUOTE session.
type Client struct {
	trade          Provider
	quote          Provider
	orders         *OrderStore
	ids            *IDGenerator
	log            *zap.Logger
	requestTimeout time.Duration
	streamTimeout  time.Duration

	symbolsMu sync.Mutex
	symbols   []Symbol
}

// NewClient builds a client. quote may be nil when no QUOTE session is
// configured.
func NewClient(trade, quote Provider, opts ...ClientOption) *Client {
	c := &Client{
		trade:          trade,
		quote:          quote,
		orders:         NewOrderStore(DefaultOrderStoreSize),
		ids:            NewIDGenerator(""),
		log:            zap.NewNop(),
		requestTimeout: DefaultRequestTimeout,
		streamTimeout:  DefaultStreamTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.Named("client")
	return c
}

func (c *Client) Orders() *OrderStore {
	return c.orders
}

// Symbols fetches the broker's instrument list and caches it for symbol
// name lookups.
func (c *Client) Symbols(ctx context.Context) ([]Symbol, error) {
	s, err := c.trade(ctx)
	if err != nil {
		return nil, err
	}

	reqID := c.ids.Next("sec")
	msgs, err := s.RequestMulti(constants.MsgTypeSecurityListRequest, builder.BuildSecurityListRequest(reqID),
		constants.MsgTypeSecurityList, reqID, c.streamTimeout)
	if err != nil {
		return nil, fmt.Errorf("security list: %w", err)
	}

	var symbols []Symbol
	for _, msg := range msgs {
		symbols = append(symbols, parseSymbols(msg)...)
	}

	c.symbolsMu.Lock()
	c.symbols = symbols
	c.symbolsMu.Unlock()

	c.log.Debug("security list received", zap.Int("symbols", len(symbols)))
	return symbols, nil
}

// ResolveSymbol maps a symbol name such as "EURUSD" to its numeric ID.
// Numeric input is returned unchanged.
func (c *Client) ResolveSymbol(ctx context.Context, symbol string) (string, error) {
	if isSymbolID(symbol) {
		return symbol, nil
	}
	if id, ok := c.lookupSymbol(symbol); ok {
		return id, nil
	}
	if _, err := c.Symbols(ctx); err != nil {
		return "", err
	}
	if id, ok := c.lookupSymbol(symbol); ok {
		return id, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
}

// SymbolName maps a numeric ID back to its cached name, or returns id.
func (c *Client) SymbolName(id string) string {
	c.symbolsMu.Lock()
	defer c.symbolsMu.Unlock()
	for _, sym := range c.symbols {
		if sym.ID == id && sym.Name != "" {
			return sym.Name
		}
	}
	return id
}

func (c *Client) lookupSymbol(name string) (string, bool) {
	c.symbolsMu.Lock()
	defer c.symbolsMu.Unlock()
	for _, sym := range c.symbols {
		if strings.EqualFold(sym.Name, name) {
			return sym.ID, true
		}
	}
	return "", false
}

// Positions lists open positions. An account with none returns an empty
// slice.
func (c *Client) Positions(ctx context.Context) ([]Position, error) {
	s, err := c.trade(ctx)
	if err != nil {
		return nil, err
	}

	reqID := c.ids.Next("pos")
	msgs, err := s.RequestMulti(constants.MsgTypeRequestForPositions, builder.BuildRequestForPositions(reqID),
		constants.MsgTypePositionReport, reqID, c.streamTimeout)
	if err != nil {
		return nil, fmt.Errorf("positions: %w", err)
	}
	return parsePositions(msgs), nil
}

// Balance returns the account's collateral summary.
func (c *Client) Balance(ctx context.Context) (AccountInfo, error) {
	s, err := c.trade(ctx)
	if err != nil {
		return AccountInfo{}, err
	}

	reqID := c.ids.Next("coll")
	msg, err := s.Request(constants.MsgTypeCollateralInquiry, builder.BuildCollateralInquiry(reqID),
		constants.MsgTypeCollateralReport, reqID, c.requestTimeout)
	if err != nil {
		return AccountInfo{}, fmt.Errorf("collateral inquiry: %w", err)
	}
	return parseAccountInfo(msg), nil
}

// Quote subscribes to the top of book on the QUOTE session, takes the first
// snapshot, and unsubscribes.
func (c *Client) Quote(ctx context.Context, symbol string) (Quote, error) {
	if c.quote == nil {
		return Quote{}, ErrNoQuoteSession
	}
	symbolID, err := c.ResolveSymbol(ctx, symbol)
	if err != nil {
		return Quote{}, err
	}
	s, err := c.quote(ctx)
	if err != nil {
		return Quote{}, err
	}

	reqID := c.ids.Next("md")
	msg, err := s.Request(constants.MsgTypeMarketDataRequest,
		builder.BuildMarketDataRequest(reqID, symbolID, constants.SubscriptionRequestTypeSubscribe, 1),
		constants.MsgTypeMarketDataSnapshot, reqID, c.requestTimeout)
	if err != nil {
		return Quote{}, fmt.Errorf("quote %s: %w", symbol, err)
	}

	unsubscribe := builder.BuildMarketDataRequest(reqID, symbolID, constants.SubscriptionRequestTypeUnsubscribe, 1)
	if err := s.Send(constants.MsgTypeMarketDataRequest, unsubscribe); err != nil {
		c.log.Warn("unsubscribe failed", zap.String("md_req_id", reqID), zap.Error(err))
	}

	q := parseQuote(msg, symbol)
	c.log.Debug("quote", zap.String("symbol", symbol), zap.Stringer("bid", q.Bid), zap.Stringer("ask", q.Ask))
	return q, nil
}

// HandleUnsolicited records execution reports that no request was waiting
// for, such as fills of resting orders or stop-outs.
func (c *Client) HandleUnsolicited(msg *fixmsg.Message) {
	if msg.MsgType() != constants.MsgTypeExecutionReport {
		c.log.Debug("unsolicited message ignored", zap.String("msg_type", constants.MsgTypeName(msg.MsgType())))
		return
	}
	order := c.orders.Update(parseExecutionReport(msg))
	if order == nil {
		return
	}
	c.log.Info("order update",
		zap.String("cl_ord_id", order.ClOrdID),
		zap.String("status", ordStatusName(order.OrdStatus)),
		zap.String("symbol", order.Symbol),
		zap.Stringer("cum_qty", order.CumQty))
}

func positiveQty(qty decimal.Decimal) error {
	if !qty.IsPositive() {
		return fmt.Errorf("%w: %s", ErrInvalidQty, qty)
	}
	return nil
}
