// Package mqtt publishes accepted incidents to an MQTT broker.
package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"weaponwatch/internal/logger"
	"weaponwatch/internal/model"
)

const (
	qos            = 1
	connectTimeout = 5 * time.Second
	publishTimeout = 2 * time.Second
)

// ErrNotConnected is returned while the broker connection is down.
var ErrNotConnected = errors.New("mqtt not connected")

// publisher is the part of paho.Client the emitter uses.
type publisher interface {
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Disconnect(quiesce uint)
}

// Emitter publishes one JSON message per incident on "<topic>/<label>". Publishing never
// waits for the broker acknowledgement.
type Emitter struct {
	client publisher
	topic  string
	logger *logger.Logger

	wg sync.WaitGroup
}

// Connect dials broker (host:port or a full URL) with auto-reconnect enabled.
func Connect(broker, clientID, topic string, logger *logger.Logger) (*Emitter, error) {
	opts := paho.NewClientOptions()
	opts.AddBroker(brokerURL(broker))
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(paho.Client) {
		logger.Info("📡 MQTT connection established (%s)", broker)
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		logger.Warning("MQTT connection lost, will auto-reconnect: %v", err)
	}

	client := paho.NewClient(opts)

	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		// With ConnectRetry the client keeps trying in the background.
		logger.Warning("MQTT broker %s not reachable yet, retrying in background", broker)
	} else if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connection failed: %w", err)
	}

	return newEmitter(client, topic, logger), nil
}

func newEmitter(client publisher, topic string, logger *logger.Logger) *Emitter {
	return &Emitter{client: client, topic: topic, logger: logger}
}

// Name identifies the sink in logs.
func (e *Emitter) Name() string {
	return "mqtt"
}

// Emit queues inc for publishing.
func (e *Emitter) Emit(inc model.Incident) error {
	if !e.client.IsConnected() {
		return ErrNotConnected
	}

	payload, err := json.Marshal(inc)
	if err != nil {
		return fmt.Errorf("failed to marshal incident: %w", err)
	}

	topic := e.topic + "/" + inc.Label
	token := e.client.Publish(topic, qos, false, payload)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if !token.WaitTimeout(publishTimeout) {
			e.logger.Warning("MQTT publish of incident %s timed out", inc.ID)
			return
		}
		if err := token.Error(); err != nil {
			e.logger.Error("MQTT publish of incident %s failed: %v", inc.ID, err)
		}
	}()
	return nil
}

// Close waits for pending acknowledgements and disconnects.
func (e *Emitter) Close() error {
	e.wg.Wait()
	e.client.Disconnect(250)
	return nil
}

func brokerURL(broker string) string {
	for _, scheme := range []string{"tcp://", "ssl://", "ws://", "wss://", "mqtt://", "mqtts://"} {
		if strings.HasPrefix(broker, scheme) {
			return broker
		}
	}
	return "tcp://" + broker
}
