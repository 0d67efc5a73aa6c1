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
	_ "embed"
)

//go:embed schema.sql
var schemaSQL string

const (
	insertRunQuery = `INSERT INTO runs (run_id, begin_string, sender_comp_id, sender_sub_id, target_comp_id, target_sub_id, started_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?)`

	insertMessageQuery = `INSERT INTO messages (run_id, direction, msg_type, seq_num, raw, logged_at)
			  VALUES (?, ?, ?, ?, ?, ?)`

	insertEventQuery = `INSERT INTO events (run_id, text, logged_at) VALUES (?, ?, ?)`

	selectMessagesQuery = `SELECT id, run_id, direction, msg_type, seq_num, raw, logged_at
			  FROM messages WHERE run_id = ? ORDER BY id`

	selectEventsQuery = `SELECT id, run_id, text, logged_at FROM events WHERE run_id = ? ORDER BY id`

	selectRunsQuery = `SELECT run_id, begin_string, sender_comp_id, sender_sub_id, target_comp_id, target_sub_id, started_at
			  FROM runs ORDER BY started_at, run_id`
)

func (jdb *JournalDB) initSchema() error {
	_, err := jdb.db.Exec(schemaSQL)
	return err
}
