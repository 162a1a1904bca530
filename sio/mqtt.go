/* Copyright 2019 Comcast Cable Communications Management, LLC
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package sio

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/Comcast/gait/crew"
	"github.com/Comcast/gait/util"
)

// MQTT couples the engine to an MQTT broker.
//
// Payloads on the subscribed topics are statements.  A JSON object
// with an "op" is a request; anything else is data for the routes,
// with the topic injected into maps (or wrapped with it).  Outputs
// are published as JSON to Pub.
type MQTT struct {
	Broker   string `yaml:"broker" json:"broker"`
	ClientId string `yaml:"clientId,omitempty" json:"clientId,omitempty"`
	Username string `yaml:"username,omitempty" json:"username,omitempty"`
	Password string `yaml:"password,omitempty" json:"password,omitempty"`

	// KeepAlive is in seconds.
	KeepAlive int `yaml:"keepAlive,omitempty" json:"keepAlive,omitempty"`

	Reconnect bool `yaml:"reconnect,omitempty" json:"reconnect,omitempty"`

	// Sub is a comma-separated list of TOPIC or TOPIC:QOS.
	Sub string `yaml:"sub" json:"sub"`

	// Pub is TOPIC or TOPIC:QOS for outputs.
	Pub string `yaml:"pub" json:"pub"`

	InjectTopic bool `yaml:"injectTopic,omitempty" json:"injectTopic,omitempty"`

	// Quiesce is the disconnection quiescence in milliseconds.
	Quiesce uint `yaml:"quiesce,omitempty" json:"quiesce,omitempty"`

	// InTimeout bounds how long an incoming message waits to be
	// queued.
	InTimeout time.Duration `yaml:"-" json:"-"`

	Client mqtt.Client `yaml:"-" json:"-"`
}

// Options makes the client options.
func (m *MQTT) Options() *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(m.Broker)
	opts.SetClientID(m.ClientId)
	keepAlive := m.KeepAlive
	if keepAlive <= 0 {
		keepAlive = 10
	}
	opts.SetKeepAlive(time.Second * time.Duration(keepAlive))
	opts.Username = m.Username
	opts.Password = m.Password
	opts.AutoReconnect = m.Reconnect
	opts.CleanSession = true
	return opts
}

// Couple connects, subscribes, and publishes outputs until the
// context is done.
func (m *MQTT) Couple(ctx context.Context, e *Engine) error {
	if m.InTimeout == 0 {
		m.InTimeout = time.Second
	}

	c := e.Attach("mqtt:" + m.Broker)

	opts := m.Options()
	opts.OnConnectionLost = func(client mqtt.Client, err error) {
		e.Logger.Warn("mqtt connection lost", "err", err)
	}
	opts.DefaultPublishHandler = func(client mqtt.Client, msg mqtt.Message) {
		m.inHandler(ctx, e, c, msg)
	}
	if m.Client == nil {
		m.Client = mqtt.NewClient(opts)
	}

	e.Logger.Info("mqtt connecting", "broker", m.Broker)
	if t := m.Client.Connect(); t.Wait() && t.Error() != nil {
		e.Detach(c)
		return t.Error()
	}

	for _, topic := range strings.Split(m.Sub, ",") {
		topic, qos := parseTopic(strings.TrimSpace(topic))
		if topic == "" {
			continue
		}
		e.Logger.Info("mqtt subscribing", "topic", topic, "qos", qos)
		if t := m.Client.Subscribe(topic, qos, nil); t.Wait() && t.Error() != nil {
			e.Detach(c)
			return t.Error()
		}
	}

	go m.outLoop(ctx, c)

	go func() {
		<-ctx.Done()
		e.Logger.Info("mqtt disconnecting")
		m.Client.Disconnect(m.Quiesce)
	}()

	return nil
}

// Payload turns a message into what the engine should see.
func (m *MQTT) Payload(topic string, payload []byte) interface{} {
	var x interface{}
	if err := json.Unmarshal(payload, &x); err != nil {
		return map[string]interface{}{
			"topic":   topic,
			"payload": string(payload),
		}
	}
	if mm, is := x.(map[string]interface{}); is {
		if _, req := mm["op"]; !req && m.InjectTopic {
			mm["topic"] = topic
		}
	}
	return x
}

func (m *MQTT) inHandler(ctx context.Context, e *Engine, c *crew.Connection, msg mqtt.Message) {
	util.Logf("mqtt incoming %s %s", msg.Topic(), msg.Payload())

	x := m.Payload(msg.Topic(), msg.Payload())
	js, err := json.Marshal(x)
	if err != nil {
		e.Logger.Warn("mqtt payload", "topic", msg.Topic(), "err", err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, m.InTimeout)
	defer cancel()
	if err := e.Submit(ctx, c, js); err != nil {
		e.Logger.Warn("mqtt not forwarding", "topic", msg.Topic(), "err", err)
	}
}

func (m *MQTT) outLoop(ctx context.Context, c *crew.Connection) {
	topic, qos := parseTopic(m.Pub)
	for {
		select {
		case <-ctx.Done():
			return
		case o, ok := <-c.Out():
			if !ok {
				return
			}
			if topic == "" {
				continue
			}
			js, err := json.Marshal(o)
			if err != nil {
				util.Logf("mqtt marshal error %s", err)
				continue
			}
			t := m.Client.Publish(topic, qos, false, js)
			if t.Wait() && t.Error() != nil {
				util.Logf("mqtt publish error %s", t.Error())
			}
		}
	}
}

// parseTopic can extract QoS from a topic name of the form TOPIC:QOS.
func parseTopic(s string) (string, byte) {
	i := strings.LastIndex(s, ":")
	if i < 0 {
		return s, 0
	}
	var qos byte
	if _, err := fmt.Sscanf(s[i+1:], "%d", &qos); err != nil || 2 < qos {
		return s, 0
	}
	return s[:i], qos
}
