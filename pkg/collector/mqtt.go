// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (c) 2026 Kesselwerk

package collector

import (
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/kesselwerk/emscollect/pkg/ems"
)

// MQTT reconnect backoff bounds.
const (
	mqttMinRetryDelay = 5 * time.Second
	mqttMaxRetryDelay = 320 * time.Second
)

// MQTTAdapter publishes decoded values to
// <prefix>/sensor/<subsystem>/<quantity>/value and accepts commands on
// <prefix>/control/#: the topic tail, slashes replaced by spaces and
// the payload appended, is one command line. Command feedback goes to
// <prefix>/response.
type MQTTAdapter struct {
	engine *Engine
	client mqtt.Client
	prefix string
	log    *logrus.Entry

	rateLimit time.Duration
	lastPub   map[cacheKey]time.Time // engine loop only

	retryDelay  time.Duration
	retryCancel func()
}

// NewMQTTAdapter creates the adapter and starts connecting. Reconnects
// use exponential backoff with a capped delay; the handle stays usable
// while disconnected (values are simply dropped).
func NewMQTTAdapter(engine *Engine, cfg Config, log *logrus.Entry) *MQTTAdapter {
	a := &MQTTAdapter{
		engine:     engine,
		prefix:     cfg.MQTTPrefix,
		log:        log,
		rateLimit:  cfg.RateLimit,
		lastPub:    make(map[cacheKey]time.Time),
		retryDelay: mqttMinRetryDelay,
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID("emscollect").
		SetAutoReconnect(false).
		SetConnectTimeout(10 * time.Second).
		SetOnConnectHandler(a.onConnect).
		SetConnectionLostHandler(a.onConnectionLost)
	if cfg.MQTTUsername != "" {
		opts.SetUsername(cfg.MQTTUsername)
		opts.SetPassword(cfg.MQTTPassword)
	}

	a.client = mqtt.NewClient(opts)
	a.connect()
	return a
}

// Stop disconnects and cancels a pending retry.
func (a *MQTTAdapter) Stop() {
	a.engine.Do(func() {
		if a.retryCancel != nil {
			a.retryCancel()
			a.retryCancel = nil
		}
	})
	a.client.Disconnect(250)
}

func (a *MQTTAdapter) connect() {
	go func() {
		token := a.client.Connect()
		token.Wait()
		if err := token.Error(); err != nil {
			a.log.WithError(err).Warn("mqtt connect failed")
			a.scheduleRetry()
		}
	}()
}

func (a *MQTTAdapter) scheduleRetry() {
	a.engine.Do(func() {
		delay := a.retryDelay
		a.retryDelay *= 2
		if a.retryDelay > mqttMaxRetryDelay {
			a.retryDelay = mqttMaxRetryDelay
		}
		a.log.WithField("delay", delay).Info("scheduling mqtt reconnect")
		a.retryCancel = a.engine.after(delay, a.connect)
	})
}

func (a *MQTTAdapter) onConnect(client mqtt.Client) {
	a.engine.Do(func() { a.retryDelay = mqttMinRetryDelay })
	topic := a.prefix + "/control/#"
	token := client.Subscribe(topic, 2, a.onControlMessage)
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			a.log.WithError(err).WithField("topic", topic).Warn("mqtt subscribe failed")
		}
	}()
}

func (a *MQTTAdapter) onConnectionLost(client mqtt.Client, err error) {
	a.log.WithError(err).Warn("mqtt connection lost")
	a.scheduleRetry()
}

// onControlMessage translates a control topic into a command line.
func (a *MQTTAdapter) onControlMessage(client mqtt.Client, msg mqtt.Message) {
	tail := strings.TrimPrefix(msg.Topic(), a.prefix+"/control/")
	command := strings.ReplaceAll(tail, "/", " ")
	if payload := string(msg.Payload()); payload != "" {
		command += " " + payload
	}

	a.engine.Submit(command, func(response string) {
		a.client.Publish(a.prefix+"/response", 0, false, response)
	})
}

// HandleValue publishes one value. It is registered as an engine value
// subscriber and therefore runs on the engine loop. Numeric readings
// are throttled per key by the configured rate limit.
func (a *MQTTAdapter) HandleValue(v ems.Value) {
	if !a.client.IsConnected() {
		return
	}
	if !v.Valid {
		// sensor reports no reading; consumers see nothing rather
		// than a bogus number
		return
	}
	quantity := ems.QuantityName(v.Quantity)
	if quantity == "" {
		return
	}

	if _, numeric := v.Reading.(ems.Numeric); numeric && a.rateLimit > 0 {
		key := cacheKey{v.Quantity, v.Subsystem}
		now := time.Now()
		if last, ok := a.lastPub[key]; ok && now.Sub(last) < a.rateLimit {
			return
		}
		a.lastPub[key] = now
	}

	topic := a.prefix + "/sensor/"
	if sub := ems.SubsystemName(v.Subsystem); sub != "" {
		topic += sub + "/"
	}
	topic += quantity + "/value"

	a.client.Publish(topic, 0, false, ems.FormatValue(v))
}
