// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (c) 2026 Kesselwerk

package cmd

import (
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/kesselwerk/emscollect/pkg/collector"
)

var (
	configFile string
	log        = logrus.New()
)

var rootCmd = &cobra.Command{
	Use:   "emscollect",
	Short: "Buderus/Bosch EMS bus collector and command gateway",
	Long: `emscollect - a collector and command gateway for Buderus/Bosch heating
systems speaking the EMS and EMS-plus bus protocols.

It decodes bus telemetry into typed values, republishes them via MQTT
and a TCP data socket, and translates operator commands from a
line-based TCP socket or MQTT control topics into framed bus writes.

Transport targets:
  serial:<dev>      read-only serial device
  tx-serial:<dev>   serial device with write access
  tcp:<host>:<port> TCP bus gateway
  ws:<url>          WebSocket bus bridge (ws:// or wss://)`,
	Version:           "1.2.0",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configFile, "config", "c", "", "Configuration file (YAML)")
	flags.StringP("rc-type", "R", "rc35", "Room controller generation (rc30 or rc35)")
	flags.UintP("rate-limit", "r", 60, "Rate limit (in s) for republishing numeric sensor values")
	flags.StringP("debug", "d", "none", "Debug sinks: all, none, or list like io,message=/tmp/m.log,data")
	flags.IntP("command-port", "C", 7777, "TCP port of the command interface (0 to disable)")
	flags.IntP("data-port", "D", 7778, "TCP port for broadcasting live sensor data (0 to disable)")
	flags.String("mqtt-broker", "", "MQTT broker address (tcp://<host>:<port>)")
	flags.String("mqtt-prefix", "/ems", "MQTT topic prefix")
	flags.String("mqtt-user", "", "MQTT user name")
	flags.String("mqtt-pass", "", "MQTT password")
	flags.Int("baud", 9600, "Baud rate for serial targets")
	flags.String("log-level", "info", "Log level (trace..panic)")
	flags.String("log-file", "", "Log file (rotated); empty logs to stderr")

	must(viper.BindPFlags(flags))
	viper.SetEnvPrefix("EMSCOLLECT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

// setup loads the optional config file and initialises logging before
// any subcommand runs.
func setup(cmd *cobra.Command, args []string) error {
	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return err
		}
	}

	level, err := logrus.ParseLevel(viper.GetString("log-level"))
	if err != nil {
		return err
	}
	log.SetLevel(level)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if file := viper.GetString("log-file"); file != "" {
		log.SetOutput(&lumberjack.Logger{
			Filename:   file,
			MaxSize:    20, // MB
			MaxBackups: 5,
			Compress:   true,
		})
	}
	return nil
}

// buildConfig assembles the immutable collector configuration.
func buildConfig(target string) collector.Config {
	return collector.Config{
		Target:       target,
		CommandPort:  viper.GetInt("command-port"),
		DataPort:     viper.GetInt("data-port"),
		MQTTBroker:   viper.GetString("mqtt-broker"),
		MQTTPrefix:   viper.GetString("mqtt-prefix"),
		MQTTUsername: viper.GetString("mqtt-user"),
		MQTTPassword: viper.GetString("mqtt-pass"),
		RCType:       viper.GetString("rc-type"),
		RateLimit:    time.Duration(viper.GetUint("rate-limit")) * time.Second,
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
