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

// Package database keeps a write-only SQLite audit journal of FIX traffic.
// Nothing reads it back to recover session state.
package database

import (
	"database/sql"
	"fmt"
	"time"

	"ctrader-fix-go/codec"
	"ctrader-fix-go/constants"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/quickfixgo/quickfix"
	"go.uber.org/zap"
)

const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

type JournalDB struct {
	db  *sql.DB
	log *zap.Logger
}

type RunRecord struct {
	RunID        string
	BeginString  string
	SenderCompID string
	SenderSubID  string
	TargetCompID string
	TargetSubID  string
	StartedAt    time.Time
}

type MessageRecord struct {
	ID        int64
	RunID     string
	Direction string
	MsgType   string
	SeqNum    int
	Raw       string
	LoggedAt  time.Time
}

type EventRecord struct {
	ID       int64
	RunID    string
	Text     string
	LoggedAt time.Time
}

func NewJournalDB(dbPath string, logger *zap.Logger) (*JournalDB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=1000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	jdb := &JournalDB{db: db, log: logger.Named("journal")}
	if err := jdb.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	jdb.log.Info("journal opened", zap.String("path", dbPath))
	return jdb, nil
}

func (jdb *JournalDB) Close() error {
	return jdb.db.Close()
}

// CreateRun starts a new run for sessionID and returns its ID.
func (jdb *JournalDB) CreateRun(sessionID quickfix.SessionID) (string, error) {
	runID := uuid.NewString()
	_, err := jdb.db.Exec(insertRunQuery, runID,
		sessionID.BeginString, sessionID.SenderCompID, sessionID.SenderSubID,
		sessionID.TargetCompID, sessionID.TargetSubID, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("create run: %w", err)
	}
	return runID, nil
}

// StoreMessage records one raw frame. The password is masked and SOH is
// stored as '|'.
func (jdb *JournalDB) StoreMessage(runID, direction string, frame []byte) error {
	msg := codec.Parse(frame)
	raw := codec.Printable(codec.Mask(frame, constants.TagPassword))
	_, err := jdb.db.Exec(insertMessageQuery, runID, direction, msg.MsgType(), msg.SeqNum(), raw, time.Now().UTC())
	return err
}

func (jdb *JournalDB) StoreEvent(runID, text string) error {
	_, err := jdb.db.Exec(insertEventQuery, runID, text, time.Now().UTC())
	return err
}

func (jdb *JournalDB) Messages(runID string) ([]MessageRecord, error) {
	rows, err := jdb.db.Query(selectMessagesQuery, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MessageRecord
	for rows.Next() {
		var r MessageRecord
		if err := rows.Scan(&r.ID, &r.RunID, &r.Direction, &r.MsgType, &r.SeqNum, &r.Raw, &r.LoggedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (jdb *JournalDB) Events(runID string) ([]EventRecord, error) {
	rows, err := jdb.db.Query(selectEventsQuery, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EventRecord
	for rows.Next() {
		var r EventRecord
		if err := rows.Scan(&r.ID, &r.RunID, &r.Text, &r.LoggedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Runs lists every run, oldest first.
func (jdb *JournalDB) Runs() ([]RunRecord, error) {
	rows, err := jdb.db.Query(selectRunsQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(&r.RunID, &r.BeginString, &r.SenderCompID, &r.SenderSubID,
			&r.TargetCompID, &r.TargetSubID, &r.StartedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
