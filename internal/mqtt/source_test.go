package mqtt

import (
	"context"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/seamless-recorder/internal/conf"
	"github.com/tphakala/seamless-recorder/internal/errors"
	"github.com/tphakala/seamless-recorder/internal/recorder"
)

// fakeMessage implements mqtt.Message
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

// doneToken is an already completed mqtt.Token
type doneToken struct{ err error }

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t doneToken) Error() error { return t.err }

// pendingToken never completes
type pendingToken struct{ doneToken }

func (pendingToken) WaitTimeout(time.Duration) bool { return false }

// fakeClient covers the mqtt.Client methods Source uses
type fakeClient struct {
	mqtt.Client
	opts       *mqtt.ClientOptions
	connectErr error
	subToken   mqtt.Token

	mu           sync.Mutex
	connected    bool
	handler      mqtt.MessageHandler
	subscribed   string
	unsubscribed bool
}

func (c *fakeClient) Connect() mqtt.Token {
	if c.connectErr != nil {
		return doneToken{err: c.connectErr}
	}
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
	if c.opts.OnConnect != nil {
		c.opts.OnConnect(c)
	}
	return doneToken{}
}

func (c *fakeClient) Subscribe(topic string, _ byte, cb mqtt.MessageHandler) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribed = topic
	c.handler = cb
	if c.subToken != nil {
		return c.subToken
	}
	return doneToken{}
}

func (c *fakeClient) Unsubscribe(...string) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unsubscribed = true
	return doneToken{}
}

func (c *fakeClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeClient) Disconnect(uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
}

func (c *fakeClient) deliver(topic, payload string) {
	c.mu.Lock()
	h := c.handler
	c.mu.Unlock()
	h(c, fakeMessage{topic: topic, payload: []byte(payload)})
}

func (c *fakeClient) subscribedHandler() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handler != nil
}

func newTestSource(fc *fakeClient) *Source {
	s := NewSource(Config{
		Broker:            "tcp://broker.test:1883",
		ClientID:          "seamrec-test",
		Topic:             "seamrec/signals/#",
		QoS:               1,
		ConnectTimeout:    time.Second,
		DisconnectTimeout: 10 * time.Millisecond,
	})
	s.newClient = func(opts *mqtt.ClientOptions) mqtt.Client {
		fc.opts = opts
		return fc
	}
	return s
}

func TestParseMessage(t *testing.T) {
	tests := []struct {
		name    string
		topic   string
		payload string
		want    recorder.Signal
		wantErr bool
	}{
		{"bare name", "seamrec/signals", "call_began", recorder.SignalCallBegan, false},
		{"alias", "seamrec/signals", " hangup\n", recorder.SignalCallEnded, false},
		{"json", "seamrec/signals", `{"signal":"appBackgrounded"}`, recorder.SignalAppBackgrounded, false},
		{"topic suffix", "seamrec/signals/app_foregrounded", "", recorder.SignalAppForegrounded, false},
		{"json empty uses topic", "seamrec/signals/int", `{}`, recorder.SignalSessionInterruptionBegan, false},
		{"bad json", "seamrec/signals", `{"signal":`, 0, true},
		{"unknown", "seamrec/signals", "doorbell", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMessage(tt.topic, []byte(tt.payload))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRunForwardsSignals(t *testing.T) {
	fc := &fakeClient{}
	s := newTestSource(fc)

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan recorder.Signal, 4)
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, out) }()

	require.Eventually(t, fc.subscribedHandler, time.Second, 5*time.Millisecond)
	assert.Equal(t, "seamrec/signals/#", fc.subscribed)

	fc.deliver("seamrec/signals", "call_began")
	fc.deliver("seamrec/signals", "nonsense")
	fc.deliver("seamrec/signals/call_ended", "")

	assert.Equal(t, recorder.SignalCallBegan, <-out)
	assert.Equal(t, recorder.SignalCallEnded, <-out)

	cancel()
	require.NoError(t, <-done)
	assert.True(t, fc.unsubscribed)
	assert.False(t, fc.IsConnected())
}

func TestRunConnectFailure(t *testing.T) {
	fc := &fakeClient{connectErr: errors.NewStd("connection refused")}
	s := newTestSource(fc)

	err := s.Run(context.Background(), make(chan recorder.Signal))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryNetwork))
}

func TestSubscribeReportsTimeoutAndFailure(t *testing.T) {
	tests := []struct {
		name  string
		token mqtt.Token
		want  string
	}{
		{"timeout", pendingToken{}, "timed out"},
		{"rejected", doneToken{err: errors.NewStd("not authorized")}, "not authorized"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := &fakeClient{subToken: tt.token}
			s := newTestSource(fc)

			err := s.subscribe(fc, func(mqtt.Client, mqtt.Message) {})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	s := newTestSource(&fakeClient{})
	assert.NoError(t, s.subscribe(&fakeClient{}, func(mqtt.Client, mqtt.Message) {}))
}

func TestConfigFromSettings(t *testing.T) {
	settings := &conf.Settings{}
	settings.Main.Name = "kitchen"
	settings.Control.MQTT = conf.MQTTSettings{
		Broker: "tcp://localhost:1883",
		Topic:  "seamrec/signals",
		QoS:    2,
	}

	cfg := ConfigFromSettings(settings)
	assert.Equal(t, "seamrec-kitchen", cfg.ClientID)
	assert.Equal(t, byte(2), cfg.QoS)
	assert.Equal(t, 10*time.Second, cfg.ConnectTimeout)

	settings.Control.MQTT.ClientID = "custom"
	assert.Equal(t, "custom", ConfigFromSettings(settings).ClientID)
}
