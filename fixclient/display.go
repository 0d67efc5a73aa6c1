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
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
)

func displayHelp(w io.Writer) {
	fmt.Fprint(w, `Commands:
  buy <symbol> <qty> [flags...]   - Open or add to a long position
  sell <symbol> <qty> [flags...]  - Open or add to a short position
  close <positionId> [qty]        - Close a position, fully or in part
  modify <positionId> [flags...]  - Change a position's --sl and --tp
  closeall [symbol]               - Close every position, or those in one symbol
  positions                       - Show open positions
  orders [--all]                  - Show working orders (--all includes finished ones)
  deals [n]                       - Show the last n fills (default 50)
  symbols [filter]                - Show the instrument list
  balance                         - Show account collateral
  quote <symbol>                  - Show top of book
  cancel <clOrdID>                - Cancel a resting order
  amend <clOrdID> [flags...]      - Replace a resting order (--qty --price --stop --sl --tp --trail)
  status <clOrdID>                - Ask the broker for an order's state
  help                            - Show this help message
  version, exit

Order Flags:
  --sl <price>                    - Stop loss
  --tp <price>                    - Take profit
  --trail <distance>              - Trailing stop distance
  --limit <price>                 - Limit order at price
  --stop <price>                  - Stop order triggered at price

Symbols may be given by name (EURUSD) or by numeric cTrader ID (1).
Quantities are in units: 100000 is one standard lot.

Examples:
  buy EURUSD 10000 --sl 1.0750 --tp 1.0950
  sell GBPUSD 5000 --limit 1.2700
  close 283746 5000
  modify 283746 --sl 1.0800
  amend 3000001-ord-1700000000000-3 --price 1.2650
  closeall EURUSD
`)
}

func displayReport(w io.Writer, c *Client, er *ExecutionReport) {
	fmt.Fprintf(w, "%s %s %s %s - %s",
		ordStatusName(er.OrdStatus), sideName(er.Side), c.SymbolName(er.Symbol), formatQty(er.OrderQty), er.ClOrdID)
	if er.OrderID != "" {
		fmt.Fprintf(w, " (order %s)", er.OrderID)
	}
	if er.PositionID != "" {
		fmt.Fprintf(w, " position %s", er.PositionID)
	}
	if !er.AvgPx.IsZero() {
		fmt.Fprintf(w, " @ %s", er.AvgPx)
	}
	if er.Text != "" {
		fmt.Fprintf(w, ": %s", er.Text)
	}
	fmt.Fprintln(w)
}

func displayPositions(w io.Writer, c *Client, positions []Position) {
	if len(positions) == 0 {
		fmt.Fprintln(w, "No open positions")
		return
	}

	fmt.Fprint(w, `┌────────────┬─────────────┬──────┬──────────────┬─────────────┬─────────────┬─────────────┐
│ Position   │ Symbol      │ Side │ Qty          │ Entry       │ Stop Loss   │ Take Profit │
├────────────┼─────────────┼──────┼──────────────┼─────────────┼─────────────┼─────────────┤
`)
	for _, p := range positions {
		fmt.Fprintf(w, "│ %-10s │ %-11s │ %-4s │ %-12s │ %-11s │ %-11s │ %-11s │\n",
			p.ID, c.SymbolName(p.Symbol), sideName(p.Side), formatQty(p.Qty),
			formatPrice(p.EntryPrice), formatPrice(p.StopLoss), formatPrice(p.TakeProfit))
	}
	fmt.Fprintln(w, "└────────────┴─────────────┴──────┴──────────────┴─────────────┴─────────────┴─────────────┘")
}

func displayOrders(w io.Writer, c *Client, orders []*Order) {
	if len(orders) == 0 {
		fmt.Fprintln(w, "No orders")
		return
	}

	fmt.Fprint(w, `┌──────────────────────┬─────────────┬──────┬──────────────┬─────────────────┬─────────────┬──────────┐
│ ClOrdID              │ Symbol      │ Side │ Qty          │ Status          │ Avg Px      │ Updated  │
├──────────────────────┼─────────────┼──────┼──────────────┼─────────────────┼─────────────┼──────────┤
`)
	for _, o := range orders {
		fmt.Fprintf(w, "│ %-20s │ %-11s │ %-4s │ %-12s │ %-15s │ %-11s │ %-8s │\n",
			truncate(o.ClOrdID, 20), c.SymbolName(o.Symbol), sideName(o.Side), formatQty(o.OrderQty),
			ordStatusName(o.OrdStatus), formatPrice(o.AvgPx), o.UpdatedAt.Format("15:04:05"))
	}
	fmt.Fprintln(w, "└──────────────────────┴─────────────┴──────┴──────────────┴─────────────────┴─────────────┴──────────┘")
}

func displayDeals(w io.Writer, c *Client, deals []*Order) {
	if len(deals) == 0 {
		fmt.Fprintln(w, "No deals")
		return
	}

	fmt.Fprint(w, `┌──────────────────────┬─────────────┬──────┬──────────────┬─────────────┬────────────┬──────────┐
│ ClOrdID              │ Symbol      │ Side │ Filled       │ Avg Px      │ Position   │ Time     │
├──────────────────────┼─────────────┼──────┼──────────────┼─────────────┼────────────┼──────────┤
`)
	for _, d := range deals {
		fmt.Fprintf(w, "│ %-20s │ %-11s │ %-4s │ %-12s │ %-11s │ %-10s │ %-8s │\n",
			truncate(d.ClOrdID, 20), c.SymbolName(d.Symbol), sideName(d.Side), formatQty(d.CumQty),
			formatPrice(d.AvgPx), truncate(d.PositionID, 10), d.UpdatedAt.Format("15:04:05"))
	}
	fmt.Fprintln(w, "└──────────────────────┴─────────────┴──────┴──────────────┴─────────────┴────────────┴──────────┘")
}

func displaySymbols(w io.Writer, symbols []Symbol, filter string) {
	filter = strings.ToUpper(filter)
	var shown []Symbol
	for _, s := range symbols {
		if filter == "" || strings.Contains(strings.ToUpper(s.Name), filter) {
			shown = append(shown, s)
		}
	}
	if len(shown) == 0 {
		fmt.Fprintln(w, "No matching symbols")
		return
	}

	fmt.Fprint(w, `┌────────┬──────────────────┬────────┐
│ ID     │ Name             │ Digits │
├────────┼──────────────────┼────────┤
`)
	for _, s := range shown {
		fmt.Fprintf(w, "│ %-6s │ %-16s │ %-6d │\n", s.ID, truncate(s.Name, 16), s.Digits)
	}
	fmt.Fprintln(w, "└────────┴──────────────────┴────────┘")
	fmt.Fprintf(w, "%d of %d symbols\n", len(shown), len(symbols))
}

func displayBalance(w io.Writer, info AccountInfo) {
	currency := info.Currency
	if currency == "" {
		currency = "-"
	}
	fmt.Fprint(w, `┌──────────────────┬──────────────────┐
│ Field            │ Value            │
├──────────────────┼──────────────────┤
`)
	fmt.Fprintf(w, "│ %-16s │ %-16s │\n", "Equity", info.Equity.StringFixed(2))
	fmt.Fprintf(w, "│ %-16s │ %-16s │\n", "Free Margin", info.MarginExcess.StringFixed(2))
	fmt.Fprintf(w, "│ %-16s │ %-16s │\n", "Cash Outstanding", info.CashOutstanding.StringFixed(2))
	fmt.Fprintf(w, "│ %-16s │ %-16s │\n", "Currency", currency)
	fmt.Fprintln(w, "└──────────────────┴──────────────────┘")
}

func displayQuote(w io.Writer, q Quote) {
	fmt.Fprint(w, `┌─────────────┬─────────────┬─────────────┬─────────────┐
│ Symbol      │ Bid         │ Ask         │ Spread      │
├─────────────┼─────────────┼─────────────┼─────────────┤
`)
	fmt.Fprintf(w, "│ %-11s │ %-11s │ %-11s │ %-11s │\n",
		q.Symbol, formatPrice(q.Bid), formatPrice(q.Ask), formatPrice(q.Spread()))
	fmt.Fprintln(w, "└─────────────┴─────────────┴─────────────┴─────────────┘")
}

func formatPrice(d decimal.Decimal) string {
	if d.IsZero() {
		return "-"
	}
	return d.String()
}

func formatQty(d decimal.Decimal) string {
	if d.IsZero() {
		return "0"
	}
	return d.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-(n-3):]
}
