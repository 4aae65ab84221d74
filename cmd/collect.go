// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (c) 2026 Kesselwerk

package cmd

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kesselwerk/emscollect/pkg/collector"
)

// transportRetryDelay is how long collect waits before reopening a
// failed transport.
const transportRetryDelay = 10 * time.Second

var collectCmd = &cobra.Command{
	Use:   "collect <target>",
	Short: "Run the collector daemon",
	Long: `Collect telemetry from the bus and serve operator interfaces.

The daemon decodes every bus frame into typed values, keeps the
latest-value cache, republishes values via MQTT and the data socket,
and accepts commands on the command socket and the MQTT control topic.
On transport failure the connection is reopened after a delay.`,
	Args: cobra.ExactArgs(1),
	RunE: runCollect,
}

func init() {
	rootCmd.AddCommand(collectCmd)
}

func runCollect(cmd *cobra.Command, args []string) error {
	cfg := buildConfig(args[0])

	sinks, err := collector.NewDebugSinks(viper.GetString("debug"))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for {
		err := runOnce(ctx, cfg, sinks)
		if ctx.Err() != nil {
			return nil
		}
		log.WithError(err).Errorf("transport failed, retrying in %s", transportRetryDelay)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(transportRetryDelay):
		}
	}
}

// runOnce drives one transport session from open to failure.
func runOnce(ctx context.Context, cfg collector.Config, sinks *collector.DebugSinks) error {
	conn, writable, err := OpenTarget(cfg.Target, viper.GetInt("baud"))
	if err != nil {
		return err
	}

	engine := collector.NewEngine(cfg, conn, sinks, log.WithField("target", cfg.Target))

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.DataPort != 0 {
		dataServer, err := collector.NewDataServer(cfg.DataPort, log.WithField("server", "data"))
		if err != nil {
			conn.Close()
			return err
		}
		engine.Subscribe(dataServer.HandleValue)
		go dataServer.Serve(sessionCtx)
	}

	if cfg.MQTTBroker != "" {
		adapter := collector.NewMQTTAdapter(engine, cfg, log.WithField("adapter", "mqtt"))
		engine.Subscribe(adapter.HandleValue)
		defer adapter.Stop()
	}

	if cfg.CommandPort != 0 {
		if writable {
			cmdServer, err := collector.NewCommandServer(engine, cfg.CommandPort,
				log.WithField("server", "command"))
			if err != nil {
				conn.Close()
				return err
			}
			go cmdServer.Serve(sessionCtx)
		} else {
			log.Warn("read-only transport, command interface disabled")
		}
	}

	log.WithField("target", cfg.Target).Info("collector running")
	err = engine.Run(sessionCtx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
