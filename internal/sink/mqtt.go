package sink

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/kb9irk/ook433decode/internal/events"
)

// MQTTSink publishes every decoded event as a JSON payload to a configured
// topic, with a generated client ID when none is given, auto-reconnect,
// and QoS 0 for best-effort telemetry. Connection failures are logged as
// WARNING and retried by the client library's own auto-reconnect — never
// fatal to the decode pipeline itself.
type MQTTSink struct {
	client mqtt.Client
	topic  string
}

// NewMQTTSink connects to broker and returns a sink publishing to topic.
// clientID is generated if empty.
func NewMQTTSink(broker, topic, clientID, username, password string) (*MQTTSink, error) {
	if clientID == "" {
		clientID = generateClientID()
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	if username != "" {
		opts.SetUsername(username)
	}
	if password != "" {
		opts.SetPassword(password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(10 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		log.Println("sink: mqtt: connected to broker")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Printf("sink: mqtt: WARNING: connection lost: %v", err)
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("sink: mqtt: connect to %s: %w", broker, token.Error())
	}

	return &MQTTSink{client: client, topic: topic}, nil
}

// Deliver publishes d as JSON at QoS 0 (best-effort — dropping the
// occasional telemetry reading on a flaky link is acceptable; the decode
// pipeline itself never blocks on it).
func (s *MQTTSink) Deliver(d events.Decoded) {
	payload, err := json.Marshal(d)
	if err != nil {
		log.Printf("sink: mqtt: marshal error: %v", err)
		return
	}
	token := s.client.Publish(s.topic, 0, false, payload)
	go func() {
		if token.Wait() && token.Error() != nil {
			log.Printf("sink: mqtt: WARNING: publish failed: %v", token.Error())
		}
	}()
}

// Close disconnects from the broker, waiting up to 250ms for in-flight
// publishes to drain.
func (s *MQTTSink) Close() error {
	s.client.Disconnect(250)
	return nil
}

func generateClientID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return "ook433_" + hex.EncodeToString(b)
}
