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

package formatter

import (
	"fmt"

	"ctrader-fix-go/codec"
	"ctrader-fix-go/constants"

	"github.com/quickfixgo/quickfix"
	"go.uber.org/zap"
)

// Readable renders a raw frame for logs: the MsgType name followed by the
// fields with SOH shown as '|' and the password masked.
func Readable(frame []byte) string {
	msgType := codec.Parse(frame).MsgType()
	return constants.MsgTypeName(msgType) + " " + codec.Printable(codec.Mask(frame, constants.TagPassword))
}

// ZapLogFactory sends wire traffic to a zap logger at debug level.
type ZapLogFactory struct {
	logger *zap.Logger
}

func NewZapLogFactory(logger *zap.Logger) *ZapLogFactory {
	return &ZapLogFactory{logger: logger.Named("wire")}
}

func (f *ZapLogFactory) Create() (quickfix.Log, error) {
	return &ZapLog{logger: f.logger}, nil
}

func (f *ZapLogFactory) CreateSessionLog(sessionID quickfix.SessionID) (quickfix.Log, error) {
	return &ZapLog{
		SessionID: sessionID,
		logger:    f.logger.With(zap.String("session", sessionID.SenderSubID)),
	}, nil
}

type ZapLog struct {
	SessionID quickfix.SessionID
	logger    *zap.Logger
}

func (l *ZapLog) OnIncoming(msg []byte) {
	if ce := l.logger.Check(zap.DebugLevel, "in"); ce != nil {
		ce.Write(zap.String("raw", Readable(msg)))
	}
}

func (l *ZapLog) OnOutgoing(msg []byte) {
	if ce := l.logger.Check(zap.DebugLevel, "out"); ce != nil {
		ce.Write(zap.String("raw", Readable(msg)))
	}
}

func (l *ZapLog) OnEvent(msg string) {
	l.logger.Info(msg)
}

func (l *ZapLog) OnEventf(format string, args ...interface{}) {
	l.OnEvent(fmt.Sprintf(format, args...))
}

// TeeLogFactory fans every log call out to several factories.
type TeeLogFactory struct {
	factories []quickfix.LogFactory
}

func NewTeeLogFactory(factories ...quickfix.LogFactory) *TeeLogFactory {
	return &TeeLogFactory{factories: factories}
}

func (f *TeeLogFactory) Create() (quickfix.Log, error) {
	logs := make(TeeLog, 0, len(f.factories))
	for _, factory := range f.factories {
		l, err := factory.Create()
		if err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, nil
}

func (f *TeeLogFactory) CreateSessionLog(sessionID quickfix.SessionID) (quickfix.Log, error) {
	logs := make(TeeLog, 0, len(f.factories))
	for _, factory := range f.factories {
		l, err := factory.CreateSessionLog(sessionID)
		if err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, nil
}

type TeeLog []quickfix.Log

func (t TeeLog) OnIncoming(msg []byte) {
	for _, l := range t {
		l.OnIncoming(msg)
	}
}

func (t TeeLog) OnOutgoing(msg []byte) {
	for _, l := range t {
		l.OnOutgoing(msg)
	}
}

func (t TeeLog) OnEvent(msg string) {
	for _, l := range t {
		l.OnEvent(msg)
	}
}

func (t TeeLog) OnEventf(format string, args ...interface{}) {
	t.OnEvent(fmt.Sprintf(format, args...))
}
