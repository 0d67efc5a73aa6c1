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

// Package codec converts between fixmsg messages and FIX tag=value bytes.
package codec

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"time"

	"ctrader-fix-go/constants"
	"ctrader-fix-go/fixmsg"
)

var (
	ErrMalformed  = errors.New("malformed FIX frame")
	ErrBodyLength = errors.New("BodyLength mismatch")
	ErrChecksum   = errors.New("CheckSum mismatch")
)

var (
	beginMarker    = []byte("8=FIX")
	bodyLengthTag  = []byte("9=")
	checksumMarker = []byte{constants.SOH, '1', '0', '='}
)

// Identifiers are the header fields that identify both ends of a session.
// An empty BeginString encodes as FIX.4.4.
type Identifiers struct {
	BeginString  string
	SenderCompID string
	TargetCompID string
	SenderSubID  string
	TargetSubID  string
}

// Encode serializes one message. The header is written in the order
// 8, 9, 35, 49, 56, 34, 52, [50], [57], then body, then 10.
func Encode(msgType string, body []fixmsg.Field, ids Identifiers, seqNum int, sendingTime time.Time) []byte {
	rest := make([]byte, 0, 128+16*len(body))
	rest = appendField(rest, constants.TagMsgType, msgType)
	rest = appendField(rest, constants.TagSenderCompID, ids.SenderCompID)
	rest = appendField(rest, constants.TagTargetCompID, ids.TargetCompID)
	rest = appendField(rest, constants.TagMsgSeqNum, strconv.Itoa(seqNum))
	rest = appendField(rest, constants.TagSendingTime, FormatTime(sendingTime))
	if ids.SenderSubID != "" {
		rest = appendField(rest, constants.TagSenderSubID, ids.SenderSubID)
	}
	if ids.TargetSubID != "" {
		rest = appendField(rest, constants.TagTargetSubID, ids.TargetSubID)
	}
	for _, f := range body {
		rest = appendField(rest, f.Tag, f.Value)
	}

	beginString := ids.BeginString
	if beginString == "" {
		beginString = constants.BeginStringFIX44
	}

	out := make([]byte, 0, len(rest)+32)
	out = appendField(out, constants.TagBeginString, beginString)
	out = appendField(out, constants.TagBodyLength, strconv.Itoa(len(rest)))
	out = append(out, rest...)
	return appendField(out, constants.TagCheckSum, Checksum(out))
}

func appendField(b []byte, tag constants.Tag, value string) []byte {
	b = strconv.AppendInt(b, int64(tag), 10)
	b = append(b, '=')
	b = append(b, value...)
	return append(b, constants.SOH)
}

// Checksum is the byte sum of b modulo 256 as three digits.
func Checksum(b []byte) string {
	var sum int
	for _, c := range b {
		sum += int(c)
	}
	return fmt.Sprintf("%03d", sum%256)
}

func FormatTime(t time.Time) string {
	return t.UTC().Format(constants.FixTimeFormat)
}

// Split cuts complete frames out of buf. A frame runs from "8=FIX" through
// the SOH that ends the CheckSum field. rest holds the incomplete tail and
// must be prepended to the next read. Bytes ahead of the first frame start
// are dropped, apart from a trailing partial start marker. A frame cut short
// by the start of the next one is dropped too.
func Split(buf []byte) (frames [][]byte, rest []byte) {
	pos := 0
	for pos < len(buf) {
		start := bytes.Index(buf[pos:], beginMarker)
		if start < 0 {
			keep := len(buf) - pos
			if keep > len(beginMarker)-1 {
				keep = len(beginMarker) - 1
			}
			return frames, clone(buf[len(buf)-keep:])
		}
		start += pos

		cs := bytes.Index(buf[start:], checksumMarker)
		if cs < 0 {
			return frames, clone(buf[start:])
		}
		if next := frameStart(buf[start+1 : start+cs]); next >= 0 {
			pos = start + 1 + next
			continue
		}
		valueAt := start + cs + len(checksumMarker)
		end := bytes.IndexByte(buf[valueAt:], constants.SOH)
		if end < 0 {
			return frames, clone(buf[start:])
		}
		end += valueAt + 1

		frames = append(frames, buf[start:end])
		pos = end
	}
	return frames, nil
}

// frameStart returns the offset of the first "8=FIX" in b whose field is
// followed by BodyLength, or -1. A field value cannot hold SOH, so this never
// matches inside a value.
func frameStart(b []byte) int {
	for off := 0; off < len(b); {
		i := bytes.Index(b[off:], beginMarker)
		if i < 0 {
			return -1
		}
		i += off
		if soh := bytes.IndexByte(b[i:], constants.SOH); soh >= 0 && bytes.HasPrefix(b[i+soh+1:], bodyLengthTag) {
			return i
		}
		off = i + 1
	}
	return -1
}

func clone(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Parse splits a frame into fields. Fields without a numeric tag are skipped.
func Parse(frame []byte) *fixmsg.Message {
	var fields []fixmsg.Field
	for _, raw := range bytes.Split(frame, []byte{constants.SOH}) {
		eq := bytes.IndexByte(raw, '=')
		if eq <= 0 {
			continue
		}
		tag, err := strconv.Atoi(string(raw[:eq]))
		if err != nil || tag <= 0 {
			continue
		}
		fields = append(fields, fixmsg.Field{Tag: constants.Tag(tag), Value: string(raw[eq+1:])})
	}
	return fixmsg.FromFields(fields)
}

// Decode is Split followed by Parse on every frame.
func Decode(buf []byte) ([]*fixmsg.Message, []byte) {
	frames, rest := Split(buf)
	msgs := make([]*fixmsg.Message, 0, len(frames))
	for _, f := range frames {
		msgs = append(msgs, Parse(f))
	}
	return msgs, rest
}

// Validate checks the BodyLength and CheckSum of a complete frame.
func Validate(frame []byte) error {
	if !bytes.HasPrefix(frame, []byte("8=")) {
		return fmt.Errorf("%w: missing BeginString", ErrMalformed)
	}
	first := bytes.IndexByte(frame, constants.SOH)
	if first < 0 || !bytes.HasPrefix(frame[first+1:], []byte("9=")) {
		return fmt.Errorf("%w: missing BodyLength", ErrMalformed)
	}
	lenStart := first + 3
	lenEnd := bytes.IndexByte(frame[lenStart:], constants.SOH)
	if lenEnd < 0 {
		return fmt.Errorf("%w: unterminated BodyLength", ErrMalformed)
	}
	declared, err := strconv.Atoi(string(frame[lenStart : lenStart+lenEnd]))
	if err != nil {
		return fmt.Errorf("%w: BodyLength %q", ErrMalformed, frame[lenStart:lenStart+lenEnd])
	}
	bodyStart := lenStart + lenEnd + 1

	cs := bytes.LastIndex(frame, checksumMarker)
	if cs < 0 || cs+1 < bodyStart {
		return fmt.Errorf("%w: missing CheckSum", ErrMalformed)
	}
	trailer := cs + 1
	if actual := trailer - bodyStart; actual != declared {
		return fmt.Errorf("%w: declared %d, actual %d", ErrBodyLength, declared, actual)
	}

	got := bytes.TrimSuffix(frame[trailer+len("10="):], []byte{constants.SOH})
	if want := Checksum(frame[:trailer]); string(got) != want {
		return fmt.Errorf("%w: declared %s, computed %s", ErrChecksum, got, want)
	}
	return nil
}

// Mask returns a copy of frame with every value of tag replaced by "****",
// for logging. The copy no longer carries a valid BodyLength or CheckSum.
func Mask(frame []byte, tag constants.Tag) []byte {
	prefix := strconv.AppendInt(nil, int64(tag), 10)
	prefix = append(prefix, '=')

	out := make([]byte, 0, len(frame))
	for len(frame) > 0 {
		end := bytes.IndexByte(frame, constants.SOH)
		field := frame
		if end >= 0 {
			field = frame[:end+1]
		}
		if bytes.HasPrefix(field, prefix) {
			out = append(out, prefix...)
			out = append(out, "****"...)
			if end >= 0 {
				out = append(out, constants.SOH)
			}
		} else {
			out = append(out, field...)
		}
		frame = frame[len(field):]
	}
	return out
}

// Printable renders a frame with each SOH shown as '|'.
func Printable(frame []byte) string {
	return string(bytes.ReplaceAll(frame, []byte{constants.SOH}, []byte{'|'}))
}
