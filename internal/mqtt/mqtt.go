// Package mqtt subscribes to an MQTT topic and turns its messages into
// interruption signals for the recording session.
package mqtt

import (
	"time"

	"github.com/tphakala/seamless-recorder/internal/conf"
)

// Config holds the configuration for the MQTT signal source.
type Config struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string // topic filter, may end in a wildcard
	QoS      byte
	// Connection timeouts
	ConnectTimeout    time.Duration
	DisconnectTimeout time.Duration
}

// ConfigFromSettings builds a Config, deriving the client id from the
// instance name when none is set.
func ConfigFromSettings(settings *conf.Settings) Config {
	m := settings.Control.MQTT
	cfg := Config{
		Broker:            m.Broker,
		ClientID:          m.ClientID,
		Username:          m.Username,
		Password:          m.Password,
		Topic:             m.Topic,
		QoS:               m.QoS,
		ConnectTimeout:    m.Timeout,
		DisconnectTimeout: 250 * time.Millisecond,
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "seamrec-" + settings.Main.Name
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	return cfg
}
