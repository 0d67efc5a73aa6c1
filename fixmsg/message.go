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

package fixmsg

import (
	"strconv"
	"strings"

	"ctrader-fix-go/constants"

	"github.com/shopspring/decimal"
)

// Field is one tag=value pair.
type Field struct {
	Tag   constants.Tag
	Value string
}

// Message is an ordered multimap of FIX fields. Insertion order is kept so
// repeating groups can be recovered by rescanning, and a tag may appear more
// than once. Accessors return zero values for missing or malformed fields.
type Message struct {
	fields []Field
}

// New returns a message whose first field is MsgType.
func New(msgType string) *Message {
	m := &Message{}
	return m.Set(constants.TagMsgType, msgType)
}

// FromFields wraps a copy of fields.
func FromFields(fields []Field) *Message {
	m := &Message{fields: make([]Field, len(fields))}
	copy(m.fields, fields)
	return m
}

func (m *Message) Set(tag constants.Tag, value string) *Message {
	m.fields = append(m.fields, Field{Tag: tag, Value: value})
	return m
}

func (m *Message) SetInt(tag constants.Tag, value int) *Message {
	return m.Set(tag, strconv.Itoa(value))
}

func (m *Message) SetDecimal(tag constants.Tag, value decimal.Decimal) *Message {
	return m.Set(tag, value.String())
}

// Lookup returns the first value stored under tag.
func (m *Message) Lookup(tag constants.Tag) (string, bool) {
	for _, f := range m.fields {
		if f.Tag == tag {
			return f.Value, true
		}
	}
	return "", false
}

func (m *Message) Has(tag constants.Tag) bool {
	_, ok := m.Lookup(tag)
	return ok
}

func (m *Message) Get(tag constants.Tag) string {
	v, _ := m.Lookup(tag)
	return v
}

func (m *Message) GetInt(tag constants.Tag) int {
	n, err := strconv.Atoi(m.Get(tag))
	if err != nil {
		return 0
	}
	return n
}

func (m *Message) GetFloat(tag constants.Tag) float64 {
	f, err := strconv.ParseFloat(m.Get(tag), 64)
	if err != nil {
		return 0
	}
	return f
}

func (m *Message) GetDecimal(tag constants.Tag) decimal.Decimal {
	d, err := decimal.NewFromString(m.Get(tag))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// GetBool reports whether tag is present with the FIX boolean "Y".
func (m *Message) GetBool(tag constants.Tag) bool {
	return m.Get(tag) == constants.FlagYes
}

// All returns every value of tag in order.
func (m *Message) All(tag constants.Tag) []string {
	var out []string
	for _, f := range m.fields {
		if f.Tag == tag {
			out = append(out, f.Value)
		}
	}
	return out
}

func (m *Message) MsgType() string {
	return m.Get(constants.TagMsgType)
}

func (m *Message) SeqNum() int {
	return m.GetInt(constants.TagMsgSeqNum)
}

// Fields returns a copy of the fields in insertion order.
func (m *Message) Fields() []Field {
	out := make([]Field, len(m.fields))
	copy(out, m.fields)
	return out
}

func (m *Message) Len() int {
	return len(m.fields)
}

// Group extracts a repeating group. A new record starts at each occurrence of
// delimiter, and the member fields that follow are added to it until the next
// delimiter. Member fields before the first delimiter and fields outside the
// group are ignored.
func (m *Message) Group(delimiter constants.Tag, members ...constants.Tag) []*Message {
	inGroup := make(map[constants.Tag]struct{}, len(members))
	for _, t := range members {
		inGroup[t] = struct{}{}
	}

	var records []*Message
	var current *Message
	for _, f := range m.fields {
		if f.Tag == delimiter {
			if current != nil {
				records = append(records, current)
			}
			current = &Message{fields: []Field{f}}
			continue
		}
		if current == nil {
			continue
		}
		if _, ok := inGroup[f.Tag]; ok {
			current.fields = append(current.fields, f)
		}
	}
	if current != nil {
		records = append(records, current)
	}
	return records
}

func (m *Message) String() string {
	var sb strings.Builder
	for i, f := range m.fields {
		if i > 0 {
			sb.WriteString(" | ")
		}
		sb.WriteString(strconv.Itoa(int(f.Tag)))
		sb.WriteByte('=')
		sb.WriteString(f.Value)
	}
	return sb.String()
}
