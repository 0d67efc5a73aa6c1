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

package main

import (
	"context"
	"net"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"ctrader-fix-go/codec"
	"ctrader-fix-go/constants"
	"ctrader-fix-go/database"
	"ctrader-fix-go/fixclient"
	"ctrader-fix-go/fixmsg"
	"ctrader-fix-go/formatter"
	"ctrader-fix-go/session"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/quickfixgo/quickfix"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var brokerIDs = codec.Identifiers{
	SenderCompID: "cServer",
	TargetCompID: "demo.ctrader.3000001",
	SenderSubID:  constants.SubIDTrade,
	TargetSubID:  constants.SubIDTrade,
}

// broker is a scripted cTrader TRADE endpoint holding one open position.
type broker struct {
	conn net.Conn
	seq  atomic.Int64
}

func (b *broker) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	client, server := net.Pipe()
	b.conn = server
	go b.serve()
	return client, nil
}

func (b *broker) serve() {
	out := make(chan []byte, 64)
	go func() {
		for raw := range out {
			if _, err := b.conn.Write(raw); err != nil {
				return
			}
		}
	}()
	defer close(out)

	buf := make([]byte, 4096)
	var pending []byte
	for {
		n, err := b.conn.Read(buf)
		if n > 0 {
			var msgs []*fixmsg.Message
			msgs, pending = codec.Decode(append(pending, buf[:n]...))
			for _, msg := range msgs {
				for _, reply := range b.respond(msg) {
					seq := int(b.seq.Add(1))
					out <- codec.Encode(reply.MsgType(), reply.Fields()[1:], brokerIDs, seq, time.Now())
				}
			}
		}
		if err != nil {
			return
		}
	}
}

func reply(msgType string, kv ...string) *fixmsg.Message {
	m := fixmsg.New(msgType)
	for i := 0; i+1 < len(kv); i += 2 {
		tag, _ := strconv.Atoi(kv[i])
		m.Set(constants.Tag(tag), kv[i+1])
	}
	return m
}

func (b *broker) respond(msg *fixmsg.Message) []*fixmsg.Message {
	switch msg.MsgType() {
	case constants.MsgTypeLogon:
		return []*fixmsg.Message{reply(constants.MsgTypeLogon, "98", "0", "108", "30")}
	case constants.MsgTypeLogout:
		return []*fixmsg.Message{reply(constants.MsgTypeLogout)}
	case constants.MsgTypeSecurityListRequest:
		return []*fixmsg.Message{reply(constants.MsgTypeSecurityList,
			"320", msg.Get(constants.TagSecurityReqID), "560", "0", "146", "2",
			"55", "1", "1007", "EURUSD", "9014", "5",
			"55", "2", "1007", "GBPUSD", "9014", "5")}
	case constants.MsgTypeNewOrderSingle:
		return []*fixmsg.Message{reply(constants.MsgTypeExecutionReport,
			"37", "9001", "11", msg.Get(constants.TagClOrdID), "17", "e-1", "150", "F", "39", "2",
			"55", msg.Get(constants.TagSymbol), "54", msg.Get(constants.TagSide),
			"38", msg.Get(constants.TagOrderQty), "14", msg.Get(constants.TagOrderQty), "151", "0",
			"6", "1.08512", "721", "283746")}
	case constants.MsgTypeRequestForPositions:
		return []*fixmsg.Message{reply(constants.MsgTypePositionReport,
			"710", msg.Get(constants.TagPosReqID), "721", "283746", "727", "1", "728", "0",
			"55", "1", "704", "10000", "705", "0", "730", "1.08512")}
	case constants.MsgTypeCollateralInquiry:
		return []*fixmsg.Message{reply(constants.MsgTypeCollateralReport,
			"909", msg.Get(constants.TagCollInquiryID), "15", "USD", "899", "9120.55", "900", "10234.1", "901", "10000")}
	}
	return nil
}

func TestTradingRoundTrip(t *testing.T) {
	logger := zaptest.NewLogger(t)

	journal, err := database.NewJournalDB(filepath.Join(t.TempDir(), "journal.db"), logger)
	require.NoError(t, err)
	defer journal.Close()

	metrics := session.NewMetrics(prometheus.NewRegistry())
	cfg := session.Config{
		Host:         "demo.ctrader.test",
		Port:         session.DefaultTradePort,
		SenderCompID: "demo.ctrader.3000001",
		TargetCompID: "cServer",
		SenderSubID:  constants.SubIDTrade,
		TargetSubID:  constants.SubIDTrade,
		Username:     "3000001",
		Password:     "hunter2",
		LogonTimeout: time.Second,
	}

	var client *fixclient.Client
	trade := session.NewManager(cfg,
		session.WithLogger(logger),
		session.WithDialer(&broker{}),
		session.WithMetrics(metrics),
		session.WithLogFactory(formatter.NewTeeLogFactory(formatter.NewZapLogFactory(logger), journal)),
		session.WithMessageHandler(func(msg *fixmsg.Message) { client.HandleUnsolicited(msg) }),
	)
	client = fixclient.NewClient(fixclient.SessionProvider(trade), nil, fixclient.WithClientLogger(logger))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	er, err := client.MarketOrder(ctx, "EURUSD", constants.SideBuy, decimal.NewFromInt(10000), decimal.Zero, decimal.Zero)
	require.NoError(t, err)
	assert.Equal(t, constants.OrdStatusFilled, er.OrdStatus)
	assert.Equal(t, "283746", er.PositionID)

	positions, err := client.Positions(ctx)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, "1", positions[0].Symbol)
	assert.Equal(t, constants.SideBuy, positions[0].Side)

	info, err := client.Balance(ctx)
	require.NoError(t, err)
	assert.Equal(t, "10234.1", info.Equity.String())

	s, err := trade.Session(ctx)
	require.NoError(t, err)
	assert.Zero(t, s.PendingRequests())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.MessagesSent.WithLabelValues(constants.SubIDTrade, constants.MsgTypeNewOrderSingle)))

	trade.Close()
	s.Wait()
	assert.Equal(t, session.StateDisconnected, s.State())

	runID := journalRun(t, journal, cfg.SessionID())
	messages, err := journal.Messages(runID)
	require.NoError(t, err)
	require.NotEmpty(t, messages)

	logon := messages[0]
	assert.Equal(t, database.DirectionOut, logon.Direction)
	assert.Equal(t, constants.MsgTypeLogon, logon.MsgType)
	assert.Contains(t, logon.Raw, "554=****|")
	assert.NotContains(t, logon.Raw, "hunter2")

	var types []string
	for _, m := range messages {
		types = append(types, m.Direction+":"+m.MsgType)
	}
	joined := strings.Join(types, ",")
	for _, want := range []string{"out:D", "in:8", "out:AN", "in:AP", "out:BB", "in:BA", "out:5"} {
		assert.Contains(t, joined, want)
	}
}

// journalRun finds the run the session log created.
func journalRun(t *testing.T, journal *database.JournalDB, id quickfix.SessionID) string {
	t.Helper()
	runs, err := journal.Runs()
	require.NoError(t, err)
	for _, r := range runs {
		if r.SenderSubID == id.SenderSubID {
			return r.RunID
		}
	}
	require.FailNow(t, "no journal run for session")
	return ""
}
