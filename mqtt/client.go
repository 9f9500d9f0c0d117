/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package mqtt mirrors time and health information onto an MQTT broker:
// a client wrapper with the fixed publish policy plus the two background
// publishers (heartbeat and health change).
package mqtt

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// Fixed subtopics under the base topic.
const (
	TopicHeartbeat    = "heartbeat"
	TopicHealthChange = "health-change"
)

// DefaultBaseTopic prefixes every published topic unless configured.
const DefaultBaseTopic = "time-api"

const (
	clientID          = "timeapi"
	keepAlive         = 30 * time.Second
	connectTimeout    = 5 * time.Second
	publishTimeout    = 5 * time.Second
	disconnectQuiesce = 250 // ms, drain window for in-flight messages

	// every message is a retained state update, not an event stream
	qosAtLeastOnce byte = 1
)

// Publisher is the narrow surface the background publishers depend on, so
// tests run against fakes instead of a broker.
type Publisher interface {
	Publish(subtopic string, payload interface{}) error
}

// ClientConfig carries the broker settings. Username and Password are
// optional; an empty BaseTopic means DefaultBaseTopic.
type ClientConfig struct {
	Broker    string
	Username  string
	Password  string
	BaseTopic string
}

// Client publishes JSON documents under a common base topic, always retained
// at QoS 1: subscribers see the latest state immediately and at least once.
type Client struct {
	mqtt      paho.Client
	baseTopic string
}

// BrokerAddr translates an mqtt:// or mqtts:// URL into the tcp:// or ssl://
// form paho dials, filling in the scheme's default port (1883 or 8883).
func BrokerAddr(broker string) (string, error) {
	u, err := url.Parse(broker)
	if err != nil {
		return "", fmt.Errorf("parsing broker URL %q: %w", broker, err)
	}
	var scheme, port string
	switch u.Scheme {
	case "mqtt":
		scheme, port = "tcp", "1883"
	case "mqtts":
		scheme, port = "ssl", "8883"
	default:
		return "", fmt.Errorf("unsupported broker scheme %q (want mqtt or mqtts)", u.Scheme)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("broker URL %q has no host", broker)
	}
	if p := u.Port(); p != "" {
		port = p
	}
	return fmt.Sprintf("%s://%s:%s", scheme, u.Hostname(), port), nil
}

// NewClient builds the client without connecting. Reconnects after a
// successful initial connect are automatic; the initial connect itself is
// the caller's one-shot decision via Connect.
func NewClient(cfg ClientConfig) (*Client, error) {
	addr, err := BrokerAddr(cfg.Broker)
	if err != nil {
		return nil, err
	}
	opts := paho.NewClientOptions().
		AddBroker(addr).
		SetClientID(clientID).
		SetKeepAlive(keepAlive).
		SetAutoReconnect(true)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	baseTopic := cfg.BaseTopic
	if baseTopic == "" {
		baseTopic = DefaultBaseTopic
	}
	return &Client{
		mqtt:      paho.NewClient(opts),
		baseTopic: baseTopic,
	}, nil
}

// Connect dials the broker, bounded by a fixed timeout.
func (c *Client) Connect() error {
	token := c.mqtt.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("connecting to broker: timed out after %v", connectTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connecting to broker: %w", err)
	}
	return nil
}

// Publish marshals payload as JSON and publishes it retained at QoS 1 under
// "<base topic>/<subtopic>", waiting out delivery with a bounded timeout.
func (c *Client) Publish(subtopic string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling %s payload: %w", subtopic, err)
	}
	topic := c.baseTopic + "/" + subtopic
	token := c.mqtt.Publish(topic, qosAtLeastOnce, true, data)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publishing to %s: timed out after %v", topic, publishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}
	return nil
}

// Disconnect waits briefly for in-flight messages, then drops the
// connection.
func (c *Client) Disconnect() {
	c.mqtt.Disconnect(disconnectQuiesce)
}
