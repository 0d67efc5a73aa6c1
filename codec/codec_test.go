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

package codec

import (
	"bytes"
	"strconv"
	"strings"
	"testing"
	"time"

	"ctrader-fix-go/constants"
	"ctrader-fix-go/fixmsg"

	"github.com/quickfixgo/quickfix"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testIDs = Identifiers{
		SenderCompID: "demo.ctrader.3000001",
		TargetCompID: "cServer",
		SenderSubID:  "TRADE",
		TargetSubID:  "TRADE",
	}
	testTime = time.Date(2025, 1, 2, 3, 4, 5, 678_000_000, time.UTC)
)

func pipes(s string) []byte {
	return []byte(strings.ReplaceAll(s, "|", "\x01"))
}

func TestEncodeGoldenHeartbeat(t *testing.T) {
	got := Encode(constants.MsgTypeHeartbeat, nil, testIDs, 1, testTime)
	want := pipes("8=FIX.4.4|9=88|35=0|49=demo.ctrader.3000001|56=cServer|34=1|52=20250102-03:04:05.678|50=TRADE|57=TRADE|10=026|")
	assert.Equal(t, string(want), string(got))
}

func TestEncodeGoldenLogon(t *testing.T) {
	body := []fixmsg.Field{
		{Tag: constants.TagEncryptMethod, Value: "0"},
		{Tag: constants.TagHeartBtInt, Value: "30"},
		{Tag: constants.TagResetSeqNumFlag, Value: "Y"},
		{Tag: constants.TagUsername, Value: "3000001"},
		{Tag: constants.TagPassword, Value: "secret"},
	}
	got := Encode(constants.MsgTypeLogon, body, testIDs, 1, testTime)
	want := pipes("8=FIX.4.4|9=129|35=A|49=demo.ctrader.3000001|56=cServer|34=1|52=20250102-03:04:05.678|50=TRADE|57=TRADE|98=0|108=30|141=Y|553=3000001|554=secret|10=046|")
	assert.Equal(t, string(want), string(got))
}

func TestEncodeOmitsEmptySubIDs(t *testing.T) {
	ids := Identifiers{SenderCompID: "S", TargetCompID: "T"}
	got := Encode(constants.MsgTypeHeartbeat, nil, ids, 3, testTime)
	assert.NotContains(t, string(got), "\x0150=")
	assert.NotContains(t, string(got), "\x0157=")
	require.NoError(t, Validate(got))
}

func TestFormatTimeUsesUTC(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	assert.Equal(t, "20250102-03:04:05.678", FormatTime(testTime.In(loc)))
}

func sampleBodies() [][]fixmsg.Field {
	return [][]fixmsg.Field{
		nil,
		{{Tag: constants.TagTestReqID, Value: "TEST-1"}},
		{
			{Tag: constants.TagClOrdID, Value: "ord-1"},
			{Tag: constants.TagSymbol, Value: "1"},
			{Tag: constants.TagSide, Value: constants.SideBuy},
			{Tag: constants.TagTransactTime, Value: "20250102-03:04:05.678"},
			{Tag: constants.TagOrderQty, Value: "10000"},
			{Tag: constants.TagOrdType, Value: constants.OrdTypeMarket},
			{Tag: constants.TagStopLossPrice, Value: "1.07500"},
			{Tag: constants.TagTakeProfitPrice, Value: "1.09500"},
		},
		{
			{Tag: constants.TagSecurityReqID, Value: "sec-1"},
			{Tag: constants.TagSymbol, Value: "1"},
			{Tag: constants.TagLegSymbol, Value: "EURUSD"},
			{Tag: constants.TagSymbol, Value: "2"},
			{Tag: constants.TagLegSymbol, Value: "GBPUSD"},
		},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for i, body := range sampleBodies() {
		raw := Encode(constants.MsgTypeNewOrderSingle, body, testIDs, 10+i, testTime)

		msgs, rest := Decode(raw)
		require.Len(t, msgs, 1)
		assert.Empty(t, rest)

		fields := msgs[0].Fields()
		// 8, 9, 35, 49, 56, 34, 52, 50, 57 then body then 10
		require.Len(t, fields, 9+len(body)+1)
		assert.Equal(t, constants.TagBeginString, fields[0].Tag)
		assert.Equal(t, constants.TagBodyLength, fields[1].Tag)
		assert.Equal(t, constants.MsgTypeNewOrderSingle, msgs[0].MsgType())
		assert.Equal(t, 10+i, msgs[0].SeqNum())
		if len(body) > 0 {
			assert.Equal(t, body, fields[9:9+len(body)])
		}

		last := fields[len(fields)-1]
		assert.Equal(t, constants.TagCheckSum, last.Tag)
		trailer := bytes.LastIndex(raw, []byte("\x0110=")) + 1
		assert.Equal(t, Checksum(raw[:trailer]), last.Value)
	}
}

func TestBodyLengthMatchesSpan(t *testing.T) {
	for i, body := range sampleBodies() {
		raw := Encode(constants.MsgTypeExecutionReport, body, testIDs, i+1, testTime)

		msg := Parse(raw)
		declared := msg.GetInt(constants.TagBodyLength)

		start := bytes.Index(raw, []byte("\x0135=")) + 1
		end := bytes.LastIndex(raw, []byte("\x0110=")) + 1
		assert.Equal(t, end-start, declared)
		require.NoError(t, Validate(raw))
	}
}

func TestChecksum(t *testing.T) {
	assert.Equal(t, "000", Checksum(nil))
	assert.Equal(t, "065", Checksum([]byte("A")))
	assert.Equal(t, "001", Checksum(bytes.Repeat([]byte{0x01}, 257)))
}

func TestValidateDetectsCorruption(t *testing.T) {
	raw := Encode(constants.MsgTypeHeartbeat, nil, testIDs, 1, testTime)

	badSum := bytes.Replace(raw, []byte("10=026"), []byte("10=027"), 1)
	assert.ErrorIs(t, Validate(badSum), ErrChecksum)

	badLen := bytes.Replace(raw, []byte("9=88"), []byte("9=87"), 1)
	assert.ErrorIs(t, Validate(badLen), ErrBodyLength)

	assert.ErrorIs(t, Validate([]byte("garbage")), ErrMalformed)
	assert.ErrorIs(t, Validate(pipes("8=FIX.4.4|35=0|10=000|")), ErrMalformed)
}

func TestParseSkipsMalformedFields(t *testing.T) {
	msg := Parse(pipes("8=FIX.4.4|9=5|abc=1|=x|noequals|-3=neg|35=0|58=a=b|10=000|"))
	assert.Equal(t, "0", msg.MsgType())
	assert.Equal(t, "a=b", msg.Get(constants.TagText))
	assert.Equal(t, 5, msg.Len())
}

func stream() []byte {
	var buf bytes.Buffer
	buf.WriteString("junk")
	buf.Write(Encode(constants.MsgTypeLogon, sampleBodies()[1], testIDs, 1, testTime))
	buf.Write(Encode(constants.MsgTypeNewOrderSingle, sampleBodies()[2], testIDs, 2, testTime))
	buf.WriteString("\x01\x01")
	buf.Write(Encode(constants.MsgTypeSecurityList, sampleBodies()[3], testIDs, 3, testTime))
	buf.Write(Encode(constants.MsgTypeHeartbeat, nil, testIDs, 4, testTime)[:20])
	return buf.Bytes()
}

func render(msgs []*fixmsg.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.String())
	}
	return out
}

func TestDecodeSplitAtEveryOffset(t *testing.T) {
	data := stream()
	whole, wholeRest := Decode(data)
	require.Len(t, whole, 3)
	want := render(whole)

	for k := 0; k <= len(data); k++ {
		first, rest := Decode(data[:k])
		next := append(append([]byte{}, rest...), data[k:]...)
		second, finalRest := Decode(next)

		got := append(render(first), render(second)...)
		require.Equal(t, want, got, "split at offset %d", k)
		require.Equal(t, wholeRest, finalRest, "remainder at offset %d", k)
	}
}

func TestDecodeByteAtATime(t *testing.T) {
	data := stream()
	whole, _ := Decode(data)

	var got []*fixmsg.Message
	var rest []byte
	for _, b := range data {
		var msgs []*fixmsg.Message
		msgs, rest = Decode(append(rest, b))
		got = append(got, msgs...)
	}
	assert.Equal(t, render(whole), render(got))
	assert.NotEmpty(t, rest)
}

func TestSplitKeepsIncompleteFrame(t *testing.T) {
	raw := Encode(constants.MsgTypeHeartbeat, nil, testIDs, 1, testTime)
	frames, rest := Split(raw[:len(raw)-1])
	assert.Empty(t, frames)
	assert.Equal(t, raw[:len(raw)-1], rest)

	frames, rest = Split(append(rest, raw[len(raw)-1]))
	require.Len(t, frames, 1)
	assert.Equal(t, raw, frames[0])
	assert.Empty(t, rest)
}

func TestSplitDropsTruncatedFrame(t *testing.T) {
	heartbeat := Encode(constants.MsgTypeHeartbeat, nil, testIDs, 1, testTime)
	report := Encode(constants.MsgTypeExecutionReport, []fixmsg.Field{
		{Tag: constants.TagClOrdID, Value: "ord-1"},
		{Tag: constants.TagOrdStatus, Value: constants.OrdStatusFilled},
	}, testIDs, 2, testTime)

	buf := append(append([]byte{}, heartbeat[:len(heartbeat)/2]...), report...)
	msgs, rest := Decode(buf)
	require.Len(t, msgs, 1)
	assert.Equal(t, constants.MsgTypeExecutionReport, msgs[0].MsgType())
	assert.Equal(t, "ord-1", msgs[0].Get(constants.TagClOrdID))
	assert.Equal(t, 2, msgs[0].SeqNum())
	assert.Empty(t, rest)

	frames, _ := Split(buf)
	require.Len(t, frames, 1)
	assert.Equal(t, report, frames[0])
	assert.NoError(t, Validate(frames[0]))
}

func TestSplitDropsGarbageWithoutMarker(t *testing.T) {
	frames, rest := Split([]byte("no fix here 8=FI"))
	assert.Empty(t, frames)
	assert.Equal(t, []byte("8=FI"), rest)
}

func TestEncodeAgreesWithQuickfixParser(t *testing.T) {
	body := sampleBodies()[2]
	raw := Encode(constants.MsgTypeNewOrderSingle, body, testIDs, 7, testTime)

	msg := quickfix.NewMessage()
	require.NoError(t, quickfix.ParseMessage(msg, bytes.NewBuffer(raw)))

	header := map[constants.Tag]string{
		constants.TagBeginString:  "FIX.4.4",
		constants.TagBodyLength:   Parse(raw).Get(constants.TagBodyLength),
		constants.TagMsgType:      constants.MsgTypeNewOrderSingle,
		constants.TagSenderCompID: testIDs.SenderCompID,
		constants.TagTargetCompID: testIDs.TargetCompID,
		constants.TagMsgSeqNum:    "7",
		constants.TagSendingTime:  "20250102-03:04:05.678",
		constants.TagSenderSubID:  testIDs.SenderSubID,
		constants.TagTargetSubID:  testIDs.TargetSubID,
	}
	for tag, want := range header {
		got, err := msg.Header.GetString(quickfix.Tag(tag))
		require.Nil(t, err, "header tag %d", tag)
		assert.Equal(t, want, got, "header tag %d", tag)
	}

	for _, f := range body {
		got, err := msg.Body.GetString(quickfix.Tag(f.Tag))
		require.Nil(t, err, "body tag %d", f.Tag)
		assert.Equal(t, f.Value, got, "body tag %d", f.Tag)
	}

	sum, err := msg.Trailer.GetString(quickfix.Tag(constants.TagCheckSum))
	require.Nil(t, err)
	assert.Equal(t, Parse(raw).Get(constants.TagCheckSum), sum)
}

func TestSequenceNumbersEncodeAsDecimal(t *testing.T) {
	for _, seq := range []int{1, 9, 10, 99999} {
		raw := Encode(constants.MsgTypeHeartbeat, nil, testIDs, seq, testTime)
		assert.Contains(t, string(raw), "\x0134="+strconv.Itoa(seq)+"\x01")
	}
}

func TestMask(t *testing.T) {
	frame := pipes("8=FIX.4.4|9=20|35=A|553=3000001|554=secret|10=046|")
	got := Mask(frame, constants.TagPassword)
	assert.Equal(t, string(pipes("8=FIX.4.4|9=20|35=A|553=3000001|554=****|10=046|")), string(got))
	assert.Equal(t, string(pipes("8=FIX.4.4|9=20|35=A|553=3000001|554=secret|10=046|")), string(frame), "input untouched")

	// 5540 is a different tag
	other := pipes("35=0|5540=x|")
	assert.Equal(t, string(other), string(Mask(other, constants.TagPassword)))
}

func TestPrintable(t *testing.T) {
	assert.Equal(t, "8=FIX.4.4|35=0|", Printable(pipes("8=FIX.4.4|35=0|")))
}
