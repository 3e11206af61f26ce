package mqttengine

import (
	"github.com/golang-io/requests"
	"github.com/mqttcore/engine/packet"
	"github.com/prometheus/client_golang/prometheus"
)

// Will is the client's last-will-and-testament message, sent by the broker
// on an ungraceful disconnect.
type Will struct {
	Topic   string
	Payload []byte
	QoS     uint8
	Retain  bool
}

// Config is the snapshot of client configuration the engine consumes on
// connect_to_host; section 3 of the engine spec. It is built once via
// functional options, matching the teacher's newOptions(opts...) pattern.
type Config struct {
	Hostname        string
	Port            int
	ClientID        string
	ProtocolVersion byte
	KeepAlive       uint16
	CleanSession    bool
	Will            *Will
	Username        string
	Password        string

	Logger   Logger
	registry *prometheus.Registry
}

// Option configures a Config.
type Option func(*Config)

func newConfig(opts ...Option) Config {
	cfg := Config{
		ClientID:        "mqtt-" + requests.GenId(),
		ProtocolVersion: packet.VERSION311,
		KeepAlive:       60,
		CleanSession:    true,
		Logger:          noopLogger{},
	}
	for _, o := range opts {
		o(&cfg)
	}
	return cfg
}

func WithHostPort(hostname string, port int) Option {
	return func(c *Config) {
		c.Hostname = hostname
		c.Port = port
	}
}

func WithClientID(id string) Option {
	return func(c *Config) { c.ClientID = id }
}

func WithProtocolVersion(version byte) Option {
	return func(c *Config) { c.ProtocolVersion = version }
}

func WithKeepAlive(seconds uint16) Option {
	return func(c *Config) { c.KeepAlive = seconds }
}

func WithCleanSession(clean bool) Option {
	return func(c *Config) { c.CleanSession = clean }
}

func WithCredentials(username, password string) Option {
	return func(c *Config) {
		c.Username = username
		c.Password = password
	}
}

func WithWill(will Will) Option {
	return func(c *Config) { c.Will = &will }
}

func WithLogger(logger Logger) Option {
	return func(c *Config) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// WithMetrics registers the engine's Prometheus metrics into reg. Without
// this option metric updates are cheap no-ops against an unregistered
// Metrics value.
func WithMetrics(reg *prometheus.Registry) Option {
	return func(c *Config) { c.registry = reg }
}
