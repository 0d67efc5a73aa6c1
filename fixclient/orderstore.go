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
	"sync"
	"time"

	"ctrader-fix-go/builder"
	"ctrader-fix-go/constants"

	"github.com/shopspring/decimal"
)

const DefaultOrderStoreSize = 1000

// Order is the client's view of one order, merged from every report seen
// for its ClOrdID.
type Order struct {
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
	ClOrdID     string          `json:"clOrdId"`
	OrigClOrdID string          `json:"origClOrdId,omitempty"`
	OrderID     string          `json:"orderId"`
	PositionID  string          `json:"positionId,omitempty"`
	Symbol      string          `json:"symbol"`
	Side        string          `json:"side"`
	OrdType     string          `json:"ordType"`
	OrdStatus   string          `json:"ordStatus"`
	ExecType    string          `json:"execType"`
	OrderQty    decimal.Decimal `json:"orderQty"`
	Price       decimal.Decimal `json:"price"`
	StopPx      decimal.Decimal `json:"stopPx"`
	AvgPx       decimal.Decimal `json:"avgPx"`
	CumQty      decimal.Decimal `json:"cumQty"`
	LeavesQty   decimal.Decimal `json:"leavesQty"`
	Text        string          `json:"text,omitempty"`
}

// OrderStore is a bounded record of orders keyed by ClOrdID. When full the
// oldest order is evicted.
type OrderStore struct {
	mu      sync.RWMutex
	orders  map[string]*Order
	order   []string // ClOrdIDs, oldest first
	maxSize int
}

func NewOrderStore(maxSize int) *OrderStore {
	if maxSize <= 0 {
		maxSize = DefaultOrderStoreSize
	}
	return &OrderStore{
		orders:  make(map[string]*Order),
		maxSize: maxSize,
	}
}

// Track records an order as submitted, before any report arrives.
func (s *OrderStore) Track(p builder.OrderParams) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orders[p.ClOrdID]; exists {
		return
	}
	now := time.Now()
	s.insertLocked(&Order{
		CreatedAt:  now,
		UpdatedAt:  now,
		ClOrdID:    p.ClOrdID,
		PositionID: p.PositionID,
		Symbol:     p.Symbol,
		Side:       p.Side,
		OrdType:    p.OrdType,
		OrdStatus:  constants.OrdStatusPendingNew,
		OrderQty:   p.Qty,
		Price:      p.Price,
		StopPx:     p.StopPx,
	})
}

// Update merges an execution report and returns a copy of the result. A
// cancel or replace also moves the original order to its final status.
func (s *OrderStore) Update(er *ExecutionReport) *Order {
	if er == nil || er.ClOrdID == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	orig := s.orders[er.OrigClOrdID]

	order, exists := s.orders[er.ClOrdID]
	if !exists {
		order = &Order{ClOrdID: er.ClOrdID, CreatedAt: now}
		if orig != nil {
			seed := *orig
			seed.ClOrdID = er.ClOrdID
			seed.OrigClOrdID = er.OrigClOrdID
			seed.CreatedAt = now
			order = &seed
		}
		s.insertLocked(order)
	}

	if orig != nil && orig != order && !er.Rejected() {
		switch {
		case er.ExecType == constants.ExecTypeReplaced:
			orig.OrdStatus = constants.OrdStatusReplaced
			orig.UpdatedAt = now
		case er.OrdStatus == constants.OrdStatusCanceled:
			orig.OrdStatus = constants.OrdStatusCanceled
			orig.UpdatedAt = now
		}
	}

	order.UpdatedAt = now
	order.OrdStatus = er.OrdStatus
	order.ExecType = er.ExecType
	setString(&order.OrigClOrdID, er.OrigClOrdID)
	setString(&order.OrderID, er.OrderID)
	setString(&order.PositionID, er.PositionID)
	setString(&order.Symbol, er.Symbol)
	setString(&order.Side, er.Side)
	setString(&order.OrdType, er.OrdType)
	setString(&order.Text, er.Text)
	setDecimal(&order.OrderQty, er.OrderQty)
	setDecimal(&order.Price, er.Price)
	setDecimal(&order.StopPx, er.StopPx)
	setDecimal(&order.AvgPx, er.AvgPx)
	setDecimal(&order.CumQty, er.CumQty)
	order.LeavesQty = er.LeavesQty

	copy := *order
	return &copy
}

// Get returns a copy of the order, or nil.
func (s *OrderStore) Get(clOrdID string) *Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if order, exists := s.orders[clOrdID]; exists {
		copy := *order
		return &copy
	}
	return nil
}

// All returns copies of every order, oldest first.
func (s *OrderStore) All() []*Order {
	return s.filter(func(*Order) bool { return true })
}

// Open returns the orders still working at the broker, oldest first.
func (s *OrderStore) Open() []*Order {
	return s.filter(func(o *Order) bool { return isOpenStatus(o.OrdStatus) })
}

func (s *OrderStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}

func (s *OrderStore) filter(keep func(*Order) bool) []*Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Order, 0, len(s.order))
	for _, id := range s.order {
		if order := s.orders[id]; keep(order) {
			copy := *order
			result = append(result, &copy)
		}
	}
	return result
}

func (s *OrderStore) insertLocked(order *Order) {
	if len(s.order) >= s.maxSize {
		delete(s.orders, s.order[0])
		s.order = s.order[1:]
	}
	s.orders[order.ClOrdID] = order
	s.order = append(s.order, order.ClOrdID)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDecimal(dst *decimal.Decimal, v decimal.Decimal) {
	if !v.IsZero() {
		*dst = v
	}
}

func isOpenStatus(status string) bool {
	switch status {
	case constants.OrdStatusNew, constants.OrdStatusPartiallyFilled, constants.OrdStatusPendingCancel,
		constants.OrdStatusPendingNew, constants.OrdStatusPendingReplace:
		return true
	default:
		return false
	}
}
