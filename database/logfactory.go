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

package database

import (
	"fmt"

	"github.com/quickfixgo/quickfix"
	"go.uber.org/zap"
)

// Create opens a run with no session identity.
func (jdb *JournalDB) Create() (quickfix.Log, error) {
	return jdb.CreateSessionLog(quickfix.SessionID{})
}

// CreateSessionLog opens a new run. Each session connect gets its own.
func (jdb *JournalDB) CreateSessionLog(sessionID quickfix.SessionID) (quickfix.Log, error) {
	runID, err := jdb.CreateRun(sessionID)
	if err != nil {
		return nil, err
	}
	jdb.log.Debug("run created", zap.String("run_id", runID), zap.String("session", sessionID.String()))
	return &JournalLog{db: jdb, RunID: runID}, nil
}

// JournalLog writes through to the journal. Write failures are logged and
// never reach the session.
type JournalLog struct {
	db    *JournalDB
	RunID string
}

func (l *JournalLog) OnIncoming(msg []byte) {
	l.check(l.db.StoreMessage(l.RunID, DirectionIn, msg))
}

func (l *JournalLog) OnOutgoing(msg []byte) {
	l.check(l.db.StoreMessage(l.RunID, DirectionOut, msg))
}

func (l *JournalLog) OnEvent(text string) {
	l.check(l.db.StoreEvent(l.RunID, text))
}

func (l *JournalLog) OnEventf(format string, args ...interface{}) {
	l.OnEvent(fmt.Sprintf(format, args...))
}

func (l *JournalLog) check(err error) {
	if err != nil {
		l.db.log.Warn("journal write failed", zap.String("run_id", l.RunID), zap.Error(err))
	}
}
