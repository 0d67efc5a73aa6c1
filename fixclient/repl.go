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
	"io"
	"strconv"
	"strings"

	"ctrader-fix-go/builder"
	"ctrader-fix-go/constants"
	"ctrader-fix-go/utils"

	"github.com/chzyer/readline"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var errExit = errors.New("exit")

// Repl runs the interactive console until exit, EOF, or ctx is done.
func Repl(ctx context.Context, client *Client) error {
	completer := readline.NewPrefixCompleter(
		readline.PcItem("buy",
			readline.PcItem("EURUSD", readline.PcItem("--sl"), readline.PcItem("--tp"), readline.PcItem("--limit"), readline.PcItem("--stop"), readline.PcItem("--trail")),
			readline.PcItem("GBPUSD", readline.PcItem("--sl"), readline.PcItem("--tp"), readline.PcItem("--limit"), readline.PcItem("--stop"), readline.PcItem("--trail")),
		),
		readline.PcItem("sell",
			readline.PcItem("EURUSD", readline.PcItem("--sl"), readline.PcItem("--tp"), readline.PcItem("--limit"), readline.PcItem("--stop"), readline.PcItem("--trail")),
			readline.PcItem("GBPUSD", readline.PcItem("--sl"), readline.PcItem("--tp"), readline.PcItem("--limit"), readline.PcItem("--stop"), readline.PcItem("--trail")),
		),
		readline.PcItem("close"),
		readline.PcItem("modify", readline.PcItem("--sl"), readline.PcItem("--tp")),
		readline.PcItem("amend",
			readline.PcItem("--qty"), readline.PcItem("--price"), readline.PcItem("--stop"),
			readline.PcItem("--sl"), readline.PcItem("--tp"), readline.PcItem("--trail"),
		),
		readline.PcItem("closeall"),
		readline.PcItem("positions"),
		readline.PcItem("orders", readline.PcItem("--all")),
		readline.PcItem("deals"),
		readline.PcItem("symbols"),
		readline.PcItem("balance"),
		readline.PcItem("quote", readline.PcItem("EURUSD"), readline.PcItem("GBPUSD")),
		readline.PcItem("cancel"),
		readline.PcItem("status"),
		readline.PcItem("help"),
		readline.PcItem("version"),
		readline.PcItem("exit"),
	)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "cTrader> ",
		HistoryFile:     "/tmp/ctrader_fix_history",
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	go func() {
		<-ctx.Done()
		rl.Close()
	}()

	con := &console{client: client, out: rl.Stdout()}
	for {
		line, err := rl.Readline()
		if err != nil {
			// EOF, interrupt, or closed by ctx
			return nil
		}
		if err := con.execute(ctx, line); errors.Is(err, errExit) {
			return nil
		}
	}
}

// console executes one command line at a time against a client.
type console struct {
	client *Client
	out    io.Writer
}

func (c *console) execute(ctx context.Context, line string) error {
	parts := strings.Fields(strings.TrimSpace(line))
	if len(parts) == 0 {
		return nil
	}

	var err error
	switch cmd := strings.ToLower(parts[0]); cmd {
	case "buy", "sell":
		err = c.handleOrder(ctx, cmd, parts[1:])
	case "close":
		err = c.handleClose(ctx, parts[1:])
	case "modify":
		err = c.handleModify(ctx, parts[1:])
	case "amend":
		err = c.handleAmend(ctx, parts[1:])
	case "closeall":
		err = c.handleCloseAll(ctx, parts[1:])
	case "positions":
		err = c.handlePositions(ctx)
	case "orders":
		c.handleOrders(parts[1:])
	case "deals":
		err = c.handleDeals(parts[1:])
	case "symbols":
		err = c.handleSymbols(ctx, parts[1:])
	case "balance":
		err = c.handleBalance(ctx)
	case "quote":
		err = c.handleQuote(ctx, parts[1:])
	case "cancel":
		err = c.handleCancel(ctx, parts[1:])
	case "status":
		err = c.handleStatus(ctx, parts[1:])
	case "help":
		displayHelp(c.out)
	case "version":
		fmt.Fprintln(c.out, utils.FullVersion())
	case "exit", "quit":
		return errExit
	default:
		fmt.Fprintln(c.out, "Unknown command. Type 'help' for available commands.")
	}

	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		c.client.log.Debug("command failed", zap.String("command", parts[0]), zap.Error(err))
	}
	return err
}

// parseOrderArgs reads "<symbol> <qty> [--sl p] [--tp p] [--trail d] [--limit p|--stop p]".
func parseOrderArgs(side string, args []string) (builder.OrderParams, error) {
	p := builder.OrderParams{OrdType: constants.OrdTypeMarket}
	switch side {
	case "buy":
		p.Side = constants.SideBuy
	case "sell":
		p.Side = constants.SideSell
	default:
		return p, fmt.Errorf("invalid side %q", side)
	}

	if len(args) < 2 {
		return p, fmt.Errorf("usage: %s <symbol> <qty> [--sl price] [--tp price] [--trail distance] [--limit price|--stop price]", side)
	}
	p.Symbol = strings.ToUpper(args[0])

	qty, err := decimal.NewFromString(args[1])
	if err != nil {
		return p, fmt.Errorf("%w: %s", ErrInvalidQty, args[1])
	}
	p.Qty = qty

	err = decimalFlags(args[2:], func(flag string, v decimal.Decimal) error {
		switch flag {
		case "--sl":
			p.StopLoss = v
		case "--tp":
			p.TakeProfit = v
		case "--trail":
			p.TrailingStop = v
		case "--limit":
			if p.OrdType == constants.OrdTypeStop {
				return errors.New("--limit and --stop are exclusive")
			}
			p.OrdType = constants.OrdTypeLimit
			p.Price = v
			p.TimeInForce = constants.TimeInForceGTC
		case "--stop":
			if p.OrdType == constants.OrdTypeLimit {
				return errors.New("--limit and --stop are exclusive")
			}
			p.OrdType = constants.OrdTypeStop
			p.StopPx = v
			p.TimeInForce = constants.TimeInForceGTC
		default:
			return fmt.Errorf("unknown flag %s", flag)
		}
		return nil
	})
	return p, err
}

// parseModifyArgs reads "<positionId> [--sl p] [--tp p]".
func parseModifyArgs(args []string) (positionID string, sl, tp decimal.Decimal, err error) {
	if len(args) < 2 {
		return "", sl, tp, errors.New("usage: modify <positionId> [--sl price] [--tp price]")
	}
	err = decimalFlags(args[1:], func(flag string, v decimal.Decimal) error {
		switch flag {
		case "--sl":
			sl = v
		case "--tp":
			tp = v
		default:
			return fmt.Errorf("unknown flag %s", flag)
		}
		return nil
	})
	return args[0], sl, tp, err
}

// parseAmendArgs reads "<clOrdID> [--qty q] [--price p] [--stop p] [--sl p] [--tp p] [--trail d]".
func parseAmendArgs(args []string) (builder.AmendParams, error) {
	if len(args) < 2 {
		return builder.AmendParams{}, errors.New("usage: amend <clOrdID> [--qty q] [--price p] [--stop p] [--sl p] [--tp p] [--trail d]")
	}
	p := builder.AmendParams{OrigClOrdID: args[0]}
	err := decimalFlags(args[1:], func(flag string, v decimal.Decimal) error {
		switch flag {
		case "--qty":
			p.Qty = v
		case "--price":
			p.Price = v
		case "--stop":
			p.StopPx = v
		case "--sl":
			p.StopLoss = v
		case "--tp":
			p.TakeProfit = v
		case "--trail":
			p.TrailingStop = v
		default:
			return fmt.Errorf("unknown flag %s", flag)
		}
		return nil
	})
	return p, err
}

// decimalFlags walks "--flag value" pairs. Every value must be a positive
// decimal.
func decimalFlags(args []string, set func(flag string, v decimal.Decimal) error) error {
	for i := 0; i < len(args); i++ {
		flag := args[i]
		if i+1 >= len(args) {
			return fmt.Errorf("%s requires a value", flag)
		}
		i++
		v, err := decimal.NewFromString(args[i])
		if err != nil || !v.IsPositive() {
			return fmt.Errorf("invalid value for %s: %s", flag, args[i])
		}
		if err := set(flag, v); err != nil {
			return err
		}
	}
	return nil
}

func (c *console) handleOrder(ctx context.Context, side string, args []string) error {
	p, err := parseOrderArgs(side, args)
	if err != nil {
		return err
	}
	er, err := c.client.PlaceOrder(ctx, p)
	if er != nil {
		displayReport(c.out, c.client, er)
	}
	return err
}

func (c *console) handleClose(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: close <positionId> [qty]")
	}
	qty := decimal.Zero
	if len(args) > 1 {
		var err error
		if qty, err = decimal.NewFromString(args[1]); err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidQty, args[1])
		}
	}
	er, err := c.client.ClosePosition(ctx, args[0], qty)
	if er != nil {
		displayReport(c.out, c.client, er)
	}
	return err
}

func (c *console) handleModify(ctx context.Context, args []string) error {
	positionID, sl, tp, err := parseModifyArgs(args)
	if err != nil {
		return err
	}
	er, err := c.client.ModifyPosition(ctx, positionID, sl, tp)
	if er != nil {
		displayReport(c.out, c.client, er)
	}
	return err
}

func (c *console) handleAmend(ctx context.Context, args []string) error {
	p, err := parseAmendArgs(args)
	if err != nil {
		return err
	}
	er, err := c.client.AmendOrder(ctx, p)
	if er != nil {
		displayReport(c.out, c.client, er)
	}
	return err
}

func (c *console) handleCloseAll(ctx context.Context, args []string) error {
	var reports []*ExecutionReport
	var err error
	if len(args) > 0 {
		reports, err = c.client.CloseSymbol(ctx, strings.ToUpper(args[0]))
	} else {
		reports, err = c.client.CloseAll(ctx)
	}
	for _, er := range reports {
		displayReport(c.out, c.client, er)
	}
	if err == nil && len(reports) == 0 {
		fmt.Fprintln(c.out, "No positions to close")
	}
	return err
}

func (c *console) handlePositions(ctx context.Context) error {
	positions, err := c.client.Positions(ctx)
	if err != nil {
		return err
	}
	displayPositions(c.out, c.client, positions)
	return nil
}

func (c *console) handleOrders(args []string) {
	orders := c.client.Orders().Open()
	if len(args) > 0 && args[0] == "--all" {
		orders = c.client.Orders().All()
	}
	displayOrders(c.out, c.client, orders)
}

func (c *console) handleDeals(args []string) error {
	limit := DefaultDealsLimit
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid deal count: %s", args[0])
		}
		limit = n
	}
	displayDeals(c.out, c.client, c.client.Deals(limit))
	return nil
}

func (c *console) handleSymbols(ctx context.Context, args []string) error {
	symbols, err := c.client.Symbols(ctx)
	if err != nil {
		return err
	}
	filter := ""
	if len(args) > 0 {
		filter = args[0]
	}
	displaySymbols(c.out, symbols, filter)
	return nil
}

func (c *console) handleBalance(ctx context.Context) error {
	info, err := c.client.Balance(ctx)
	if err != nil {
		return err
	}
	displayBalance(c.out, info)
	return nil
}

func (c *console) handleQuote(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: quote <symbol>")
	}
	q, err := c.client.Quote(ctx, strings.ToUpper(args[0]))
	if err != nil {
		return err
	}
	displayQuote(c.out, q)
	return nil
}

func (c *console) handleCancel(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: cancel <clOrdID>")
	}
	er, err := c.client.CancelOrder(ctx, args[0])
	if er != nil {
		displayReport(c.out, c.client, er)
	}
	return err
}

func (c *console) handleStatus(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: status <clOrdID>")
	}
	er, err := c.client.OrderStatus(ctx, args[0])
	if er != nil {
		displayReport(c.out, c.client, er)
	}
	return err
}
