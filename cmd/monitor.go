// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (c) 2026 Kesselwerk

package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kesselwerk/emscollect/pkg/collector"
	"github.com/kesselwerk/emscollect/pkg/ems"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor <target>",
	Short: "Decode and print bus traffic without sending anything",
	Long: `Passively decode the bus and print every value as it arrives.

Works on all transports including read-only serial converters. Use the
--debug flag to additionally dump raw bytes or frame headers.`,
	Args: cobra.ExactArgs(1),
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	sinks, err := collector.NewDebugSinks(viper.GetString("debug"))
	if err != nil {
		return err
	}

	conn, _, err := OpenTarget(args[0], viper.GetInt("baud"))
	if err != nil {
		return err
	}
	defer conn.Close()

	rcType := ems.RCUnknown
	switch strings.ToLower(viper.GetString("rc-type")) {
	case "rc30":
		rcType = ems.RC30
	case "rc35":
		rcType = ems.RC35
	}

	printValue := func(v ems.Value) {
		name := ems.QuantityName(v.Quantity)
		if name == "" {
			return
		}
		if sub := ems.SubsystemName(v.Subsystem); sub != "" {
			name = sub + " " + name
		}
		fmt.Printf("%s = %s\n", name, ems.FormatValue(v))
	}

	// monitor mode has no subscriber feeding a cache, so the decoder
	// keeps its own
	latest := make(map[[2]int]ems.Value)
	decoder := &ems.Decoder{
		RCType: rcType,
		Cache: func(q ems.Quantity, s ems.Subsystem) *ems.Value {
			if v, ok := latest[[2]int{int(q), int(s)}]; ok {
				return &v
			}
			return nil
		},
	}
	decoder.Values = func(v ems.Value) {
		latest[[2]int{int(v.Quantity), int(v.Subsystem)}] = v
		printValue(v)
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	link := ems.NewLinkDecoder()
	buf := make([]byte, 256)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if sinks.IO.Enabled() {
			sinks.IO.Printf("got bytes % 02x", buf[:n])
		}
		for _, b := range buf[:n] {
			data, err := link.DecodeByte(b)
			if err != nil {
				log.WithError(err).Debug("link decode")
				continue
			}
			if data == nil {
				continue
			}
			frame, err := ems.DecodeFrame(data)
			if err != nil {
				continue
			}
			sinks.Message.Printf("%s", frame)
			decoder.Handle(frame)
		}
	}
}
