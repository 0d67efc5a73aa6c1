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

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"ctrader-fix-go/codec"
	"ctrader-fix-go/constants"

	"github.com/quickfixgo/quickfix"
	"github.com/quickfixgo/quickfix/config"
)

const (
	DefaultHeartBtInt     = 30 * time.Second
	DefaultLogonTimeout   = 10 * time.Second
	DefaultTradePort      = 5212
	DefaultQuotePort      = 5211
	DefaultWriteTimeout   = 10 * time.Second
	DefaultRequestTimeout = 30 * time.Second
)

// Credentials are supplied by the owner, never read from the settings file.
type Credentials struct {
	Username string
	Password string
}

// Config holds the connection parameters of one logical session. It is
// passed by value and never changed after Connect.
type Config struct {
	Host               string
	Port               int
	BeginString        string
	SenderCompID       string
	TargetCompID       string
	SenderSubID        string
	TargetSubID        string
	Username           string
	Password           string
	HeartBtInt         time.Duration
	LogonTimeout       time.Duration
	InsecureSkipVerify bool
}

func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// SessionID names the session for wire logs.
func (c Config) SessionID() quickfix.SessionID {
	return quickfix.SessionID{
		BeginString:  c.BeginString,
		SenderCompID: c.SenderCompID,
		SenderSubID:  c.SenderSubID,
		TargetCompID: c.TargetCompID,
		TargetSubID:  c.TargetSubID,
	}
}

func (c Config) identifiers() codec.Identifiers {
	return codec.Identifiers{
		BeginString:  c.BeginString,
		SenderCompID: c.SenderCompID,
		TargetCompID: c.TargetCompID,
		SenderSubID:  c.SenderSubID,
		TargetSubID:  c.TargetSubID,
	}
}

func (c Config) withDefaults() Config {
	if c.BeginString == "" {
		c.BeginString = constants.BeginStringFIX44
	}
	if c.TargetSubID == "" {
		c.TargetSubID = c.SenderSubID
	}
	if c.Port == 0 {
		c.Port = DefaultTradePort
		if c.SenderSubID == constants.SubIDQuote {
			c.Port = DefaultQuotePort
		}
	}
	if c.HeartBtInt <= 0 {
		c.HeartBtInt = DefaultHeartBtInt
	}
	if c.LogonTimeout <= 0 {
		c.LogonTimeout = DefaultLogonTimeout
	}
	return c
}

func (c Config) Validate() error {
	var errs []error
	if c.Host == "" {
		errs = append(errs, errors.New("missing host"))
	}
	if c.SenderCompID == "" {
		errs = append(errs, errors.New("missing SenderCompID"))
	}
	if c.TargetCompID == "" {
		errs = append(errs, errors.New("missing TargetCompID"))
	}
	if c.Username == "" || c.Password == "" {
		errs = append(errs, errors.New("missing credentials"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid session config %s: %w", c.SenderSubID, err)
	}
	return nil
}

// heartBtSeconds is the HeartBtInt announced at logon, at least one second.
func (c Config) heartBtSeconds() int {
	secs := int((c.HeartBtInt + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

// LoadConfigs builds one Config per [SESSION] block, keyed by SenderSubID.
// Session values override [DEFAULT].
func LoadConfigs(settings *quickfix.Settings, creds Credentials) (map[string]Config, error) {
	global := settings.GlobalSettings()
	configs := make(map[string]Config)

	for _, ss := range settings.SessionSettings() {
		lookup := func(key string) string {
			for _, s := range []*quickfix.SessionSettings{ss, global} {
				if s == nil || !s.HasSetting(key) {
					continue
				}
				if v, err := s.Setting(key); err == nil {
					return v
				}
			}
			return ""
		}

		cfg := Config{
			Host:               lookup(config.SocketConnectHost),
			BeginString:        lookup(config.BeginString),
			SenderCompID:       lookup(config.SenderCompID),
			TargetCompID:       lookup(config.TargetCompID),
			SenderSubID:        lookup(config.SenderSubID),
			TargetSubID:        lookup(config.TargetSubID),
			Username:           creds.Username,
			Password:           creds.Password,
			InsecureSkipVerify: lookup(config.SocketInsecureSkipVerify) == "Y",
		}
		if cfg.SenderSubID == "" {
			return nil, fmt.Errorf("session %s->%s: missing %s", cfg.SenderCompID, cfg.TargetCompID, config.SenderSubID)
		}

		var err error
		if cfg.Port, err = intSetting(lookup, config.SocketConnectPort); err != nil {
			return nil, err
		}
		secs, err := intSetting(lookup, config.HeartBtInt)
		if err != nil {
			return nil, err
		}
		cfg.HeartBtInt = time.Duration(secs) * time.Second
		if secs, err = intSetting(lookup, config.LogonTimeout); err != nil {
			return nil, err
		}
		cfg.LogonTimeout = time.Duration(secs) * time.Second

		if _, dup := configs[cfg.SenderSubID]; dup {
			return nil, fmt.Errorf("duplicate session for %s %s", config.SenderSubID, cfg.SenderSubID)
		}
		configs[cfg.SenderSubID] = cfg.withDefaults()
	}

	if len(configs) == 0 {
		return nil, errors.New("no [SESSION] blocks in settings")
	}
	return configs, nil
}

func intSetting(lookup func(string) string, key string) (int, error) {
	v := lookup(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("setting %s=%q: %w", key, v, err)
	}
	return n, nil
}
