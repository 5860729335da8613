package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/tphakala/seamless-recorder/internal/errors"
	"github.com/tphakala/seamless-recorder/internal/logger"
	"github.com/tphakala/seamless-recorder/internal/recorder"
)

// signalMessage is the JSON payload form: {"signal": "call_began"}
type signalMessage struct {
	Signal string `json:"signal"`
}

// Source delivers signals received on the configured topic
type Source struct {
	config Config
	log    logger.Logger
	// newClient is replaced in tests
	newClient func(*mqtt.ClientOptions) mqtt.Client
}

// NewSource returns a source for cfg
func NewSource(cfg Config) *Source {
	return &Source{
		config:    cfg,
		log:       logger.Global().Module("mqtt"),
		newClient: mqtt.NewClient,
	}
}

// ParseMessage extracts a signal from a message. The payload may be a bare
// signal name or a JSON object with a "signal" field; an empty payload falls
// back to the last topic level, so "seamrec/signals/call_began" works too.
func ParseMessage(topic string, payload []byte) (recorder.Signal, error) {
	body := strings.TrimSpace(string(payload))

	name := body
	if strings.HasPrefix(body, "{") {
		var msg signalMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			return 0, fmt.Errorf("invalid signal payload: %w", err)
		}
		name = msg.Signal
	}
	if name == "" {
		name = topic[strings.LastIndex(topic, "/")+1:]
	}
	return recorder.ParseSignal(name)
}

// subscribe waits for the broker to acknowledge the subscription
func (s *Source) subscribe(c mqtt.Client, handler mqtt.MessageHandler) error {
	token := c.Subscribe(s.config.Topic, s.config.QoS, handler)
	if !token.WaitTimeout(s.config.ConnectTimeout) {
		return errors.Newf("subscribe to %s timed out after %s", s.config.Topic, s.config.ConnectTimeout).
			Component("mqtt").
			Category(errors.CategoryNetwork).
			Build()
	}
	return token.Error()
}

// Run connects, subscribes and forwards signals to out until ctx is done.
// Messages that do not parse are logged and dropped.
func (s *Source) Run(ctx context.Context, out chan<- recorder.Signal) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(s.config.Broker)
	opts.SetClientID(s.config.ClientID)
	opts.SetUsername(s.config.Username)
	opts.SetPassword(s.config.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(s.config.ConnectTimeout)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		s.log.Warn("connection to MQTT broker lost", logger.String("broker", s.config.Broker), logger.Error(err))
	})

	handler := s.messageHandler(ctx, out)
	// resubscribe after every reconnect, clean sessions drop subscriptions
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		s.log.Info("connected to MQTT broker", logger.String("broker", s.config.Broker))
		if err := s.subscribe(c, handler); err != nil {
			s.log.Error("MQTT subscribe failed", logger.String("topic", s.config.Topic), logger.Error(err))
		}
	})

	client := s.newClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(s.config.ConnectTimeout) {
		return s.connectError(errors.NewStd("connection timeout"))
	}
	if err := token.Error(); err != nil {
		return s.connectError(err)
	}

	<-ctx.Done()

	if client.IsConnected() {
		client.Unsubscribe(s.config.Topic).WaitTimeout(s.config.DisconnectTimeout)
	}
	client.Disconnect(uint(s.config.DisconnectTimeout.Milliseconds()))
	s.log.Info("disconnected from MQTT broker")
	return nil
}

func (s *Source) connectError(err error) error {
	return errors.New(err).
		Component("mqtt").
		Category(errors.CategoryNetwork).
		Context("broker", s.config.Broker).
		Build()
}

func (s *Source) messageHandler(ctx context.Context, out chan<- recorder.Signal) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		sig, err := ParseMessage(msg.Topic(), msg.Payload())
		if err != nil {
			s.log.Warn("ignoring MQTT message",
				logger.String("topic", msg.Topic()),
				logger.Error(err))
			return
		}

		s.log.Debug("MQTT signal", logger.String("topic", msg.Topic()), logger.String("signal", sig.String()))
		select {
		case out <- sig:
		case <-ctx.Done():
		}
	}
}
