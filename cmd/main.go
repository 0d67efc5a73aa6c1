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
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ctrader-fix-go/constants"
	"ctrader-fix-go/database"
	"ctrader-fix-go/fixclient"
	"ctrader-fix-go/fixmsg"
	"ctrader-fix-go/formatter"
	"ctrader-fix-go/session"
	"ctrader-fix-go/utils"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/quickfixgo/quickfix"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const connectTimeout = time.Minute

func main() {
	fmt.Printf("%s\n\n", utils.FullVersion())

	if err := utils.LoadEnv(); err != nil {
		log.Fatal(err)
	}

	logger, err := formatter.NewLogger(utils.GetEnv("LOG_LEVEL", "info"))
	if err != nil {
		log.Fatal("logger initialization failed:", err)
	}

	if err := run(logger); err != nil {
		logger.Error("exiting", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

func run(logger *zap.Logger) error {
	settings, err := utils.LoadSettings(utils.GetEnv("FIX_CONFIG", "fix.cfg"))
	if err != nil {
		return err
	}

	configs, err := session.LoadConfigs(settings, session.Credentials{
		Username: os.Getenv("CTRADER_FIX_USERNAME"),
		Password: os.Getenv("CTRADER_FIX_PASSWORD"),
	})
	if err != nil {
		return err
	}
	tradeCfg, ok := configs[constants.SubIDTrade]
	if !ok {
		return fmt.Errorf("fix.cfg has no %s session", constants.SubIDTrade)
	}

	factories := []quickfix.LogFactory{formatter.NewZapLogFactory(logger)}
	if path := os.Getenv("FIX_JOURNAL"); path != "" {
		journal, err := database.NewJournalDB(path, logger)
		if err != nil {
			return fmt.Errorf("journal initialization failed: %w", err)
		}
		defer journal.Close()
		factories = append(factories, journal)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	var client *fixclient.Client
	opts := []session.Option{
		session.WithLogger(logger),
		session.WithLogFactory(formatter.NewTeeLogFactory(factories...)),
		session.WithMetrics(session.NewMetrics(reg)),
		session.WithMessageHandler(func(msg *fixmsg.Message) {
			client.HandleUnsolicited(msg)
		}),
	}

	trade := session.NewManager(tradeCfg, opts...)
	defer trade.Close()

	var quote fixclient.Provider
	if quoteCfg, ok := configs[constants.SubIDQuote]; ok {
		m := session.NewManager(quoteCfg, opts...)
		defer m.Close()
		quote = fixclient.SessionProvider(m)
	}

	client = fixclient.NewClient(fixclient.SessionProvider(trade), quote,
		fixclient.WithClientLogger(logger),
		fixclient.WithIDGenerator(fixclient.NewIDGenerator(tradeCfg.Username)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	_, err = trade.Session(connectCtx)
	cancel()
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	if addr := os.Getenv("FIX_METRICS_ADDR"); addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		g.Go(func() error {
			logger.Info("metrics listening", zap.String("addr", addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}
	g.Go(func() error {
		defer stop()
		return fixclient.Repl(gctx, client)
	})

	return g.Wait()
}
