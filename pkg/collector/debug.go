// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (c) 2026 Kesselwerk

package collector

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Sink is one debug output channel. Disabled sinks swallow their input
// without formatting it.
type Sink struct {
	entry   *logrus.Entry
	enabled bool
}

// Enabled reports whether the sink produces output.
func (s *Sink) Enabled() bool {
	return s != nil && s.enabled
}

// Printf writes a formatted line to the sink.
func (s *Sink) Printf(format string, args ...interface{}) {
	if !s.Enabled() {
		return
	}
	s.entry.Debug(fmt.Sprintf(format, args...))
}

// DebugSinks groups the three collector debug channels: raw transport
// bytes, composed and received frames, and decoded data.
type DebugSinks struct {
	IO      *Sink
	Message *Sink
	Data    *Sink
}

// NewDebugSinks builds the sinks from a selector string: "none", "all",
// or a comma list of sink names, each optionally with "=<file>" to
// write that sink to a rotated file instead of stderr.
//
//	io,message=/tmp/messages.log,data
func NewDebugSinks(selector string) (*DebugSinks, error) {
	sinks := &DebugSinks{
		IO:      &Sink{},
		Message: &Sink{},
		Data:    &Sink{},
	}
	byName := map[string]*Sink{
		"io":      sinks.IO,
		"message": sinks.Message,
		"data":    sinks.Data,
	}

	if selector == "" || selector == "none" {
		return sinks, nil
	}

	if selector == "all" {
		for name, sink := range byName {
			enableSink(sink, name, "")
		}
		return sinks, nil
	}

	for _, part := range strings.Split(selector, ",") {
		name, file, _ := strings.Cut(part, "=")
		sink, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown debug sink %q", name)
		}
		enableSink(sink, name, file)
	}
	return sinks, nil
}

func enableSink(sink *Sink, name, file string) {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)
	logger.SetFormatter(&logrus.TextFormatter{
		TimestampFormat: "2006-01-02 15:04:05.000",
		FullTimestamp:   true,
	})
	switch file {
	case "", "stderr":
		logger.SetOutput(os.Stderr)
	case "stdout":
		logger.SetOutput(os.Stdout)
	default:
		logger.SetOutput(&lumberjack.Logger{
			Filename:   file,
			MaxSize:    20, // MB
			MaxBackups: 3,
		})
	}
	sink.entry = logger.WithField("sink", name)
	sink.enabled = true
}
