package agtingestor

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	config "gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.Config"
	"gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.IngestorService/client"
	logger "gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.Logger"
)

// TelemetryPusher forwards collected payload batches to the API Service.
type TelemetryPusher interface {
	PushTelemetry(ctx context.Context, payloads []map[string]interface{}) (*client.TelemetryBatchResponse, error)
}

// envelope is one device payload taken off the broker, annotated with
// where and when it arrived.
type envelope struct {
	Topic      string
	Payload    map[string]interface{}
	ReceivedAt time.Time
}

// Ingestor subscribes to the telemetry topic, buffers device payloads and
// forwards them to the API Service in batches.
type Ingestor struct {
	cfg        *config.IngestorConfig
	api        TelemetryPusher
	mqttClient mqtt.Client
	msgCh      chan envelope
	done       chan struct{}
	wg         sync.WaitGroup
	logger     *logger.Logger
}

func New(cfg *config.IngestorConfig, api TelemetryPusher, log *logger.Logger) *Ingestor {
	return &Ingestor{
		cfg:    cfg,
		api:    api,
		msgCh:  make(chan envelope, 4096),
		done:   make(chan struct{}),
		logger: log.WithComponent("mqtt-ingestor"),
	}
}

func (i *Ingestor) Start(ctx context.Context) error {
	opts := mqtt.NewClientOptions().
		AddBroker(i.cfg.GetMQTTBrokerURL()).
		SetClientID(i.cfg.MQTT.ClientID).
		SetOrderMatters(false).
		SetKeepAlive(i.cfg.MQTT.KeepAlive).
		SetPingTimeout(i.cfg.MQTT.PingTimeout).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetCleanSession(false)

	if i.cfg.MQTT.BrokerUser != "" {
		opts.SetUsername(i.cfg.MQTT.BrokerUser)
		opts.SetPassword(i.cfg.MQTT.BrokerPass)
	}

	if i.cfg.MQTT.UseTLS {
		tlsCfg, err := i.tlsConfig(i.cfg.MQTT.CACertPath)
		if err != nil {
			return err
		}
		opts.SetTLSConfig(tlsCfg)
	}

	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		i.logger.ErrorWithError(err, "MQTT connection lost")
	}
	opts.OnConnect = func(c mqtt.Client) {
		topic := i.cfg.MQTT.Topic
		if i.cfg.MQTT.SharedGroup != "" {
			topic = fmt.Sprintf("$share/%s/%s", i.cfg.MQTT.SharedGroup, i.cfg.MQTT.Topic)
		}
		i.logger.Info(fmt.Sprintf("MQTT connected, subscribing to %s", topic))
		if token := c.Subscribe(topic, 1, i.onMessage); token.Wait() && token.Error() != nil {
			i.logger.ErrorWithError(token.Error(), fmt.Sprintf("Failed to subscribe to %s", topic))
		}
	}

	i.mqttClient = mqtt.NewClient(opts)
	if tk := i.mqttClient.Connect(); tk.Wait() && tk.Error() != nil {
		return tk.Error()
	}

	// batch forwarder
	i.wg.Add(1)
	go func() {
		defer i.wg.Done()
		i.batchWriter(ctx)
	}()

	return nil
}

// Stop disconnects from the broker and flushes what is queued. The message
// channel stays open: a handler the broker quiesce did not catch drops its
// envelope on the done signal instead of hitting a closed channel.
func (i *Ingestor) Stop() {
	if i.mqttClient != nil && i.mqttClient.IsConnected() {
		i.mqttClient.Disconnect(500)
	}
	close(i.done)
	i.wg.Wait()
}

func (i *Ingestor) IsConnected() bool {
	return i.mqttClient != nil && i.mqttClient.IsConnected()
}

// onMessage decodes a broker message and queues it for forwarding.
// Devices publish on telemetry/<mac_address>; when a payload omits its
// mac_address the topic segment fills it in.
func (i *Ingestor) onMessage(_ mqtt.Client, m mqtt.Message) {
	var payload map[string]interface{}
	if err := json.Unmarshal(m.Payload(), &payload); err != nil {
		i.logger.Warn(fmt.Sprintf("Dropping non-JSON message on %s", m.Topic()))
		return
	}

	if mac, ok := payload["mac_address"].(string); !ok || mac == "" {
		if topicMac := macFromTopic(m.Topic()); topicMac != "" {
			payload["mac_address"] = topicMac
		}
	}

	select {
	case i.msgCh <- envelope{Topic: m.Topic(), Payload: payload, ReceivedAt: time.Now().UTC()}:
	case <-i.done:
	}
}

// macFromTopic extracts the device address from a telemetry/<mac_address>
// topic. Wildcard subscriptions deliver deeper topics too, only the first
// segment after the prefix is the address.
func macFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) < 2 || parts[1] == "" {
		return ""
	}
	return parts[1]
}

// batchWriter drains the message channel and pushes a batch whenever the
// size threshold or the batch window is reached.
func (i *Ingestor) batchWriter(ctx context.Context) {
	batch := make([]map[string]interface{}, 0, i.cfg.BatchSize)
	timer := time.NewTimer(i.cfg.BatchWindow)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}

		resp, err := i.api.PushTelemetry(ctx, batch)
		if err != nil {
			i.logger.ErrorWithError(err, fmt.Sprintf("Failed to push batch of %d payloads", len(batch)))
		} else {
			i.logger.Info(fmt.Sprintf("Pushed batch: %d accepted, %d rejected", resp.Accepted, resp.Rejected))
			for _, msg := range resp.Errors {
				i.logger.Warn("Payload rejected by API Service: " + msg)
			}
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case <-i.done:
			// Drain what the handlers already queued, then go.
			for {
				select {
				case env := <-i.msgCh:
					batch = append(batch, env.Payload)
				default:
					flush()
					return
				}
			}
		case env := <-i.msgCh:
			batch = append(batch, env.Payload)
			if len(batch) >= i.cfg.BatchSize {
				flush()
				if !timer.Stop() {
					<-timer.C
				}
				timer.Reset(i.cfg.BatchWindow)
			}
		case <-timer.C:
			flush()
			timer.Reset(i.cfg.BatchWindow)
		}
	}
}

func (i *Ingestor) tlsConfig(caFile string) (*tls.Config, error) {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if caFile == "" {
		return cfg, nil
	}
	ca, err := os.ReadFile(caFile)
	if err != nil {
		return nil, err
	}
	cp := x509.NewCertPool()
	if !cp.AppendCertsFromPEM(ca) {
		return nil, fmt.Errorf("bad CA file")
	}
	cfg.RootCAs = cp
	return cfg, nil
}
