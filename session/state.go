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

package session

type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateAwaitingLogonAck
	StateLoggedIn
	StateLoggingOut
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting"
	case StateAwaitingLogonAck:
		return "AwaitingLogonAck"
	case StateLoggedIn:
		return "LoggedIn"
	case StateLoggingOut:
		return "LoggingOut"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// canSendAdmin reports whether session-level messages may be written.
func (s State) canSendAdmin() bool {
	switch s {
	case StateConnecting, StateAwaitingLogonAck, StateLoggedIn, StateLoggingOut:
		return true
	}
	return false
}
