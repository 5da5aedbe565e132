package config

import (
	"crypto/tls"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tickstream-protocol/tickstream-go/pkg/normalization"
)

// Config is the daemon's top-level configuration.
type Config struct {
	Listen    ListenConfig    `yaml:"listen"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Delivery  DeliveryConfig  `yaml:"delivery"`
	Auth      AuthConfig      `yaml:"auth"`
	Schemes   []SchemeConfig  `yaml:"schemes"`
	Feed      FeedConfig      `yaml:"feed"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ListenConfig configures the protocol listener.
type ListenConfig struct {
	Address  string `yaml:"address"`
	CertFile string `yaml:"certFile"`
	KeyFile  string `yaml:"keyFile"`
	// MaxMessageSize caps inbound frames in bytes.
	MaxMessageSize uint32 `yaml:"maxMessageSize"`
}

// MetricsConfig configures the Prometheus endpoint. Disabled when the
// address is empty.
type MetricsConfig struct {
	Address string `yaml:"address"`
}

// DiscoveryConfig configures zeroconf peer discovery.
type DiscoveryConfig struct {
	Enabled      bool   `yaml:"enabled"`
	InstanceName string `yaml:"instanceName"`
}

// DeliveryConfig sizes the flush worker pool.
type DeliveryConfig struct {
	Workers   int `yaml:"workers"`
	QueueSize int `yaml:"queueSize"`
}

// AuthConfig configures the handshake authenticator. An empty user list
// means any non-empty user name is accepted.
type AuthConfig struct {
	Users []string `yaml:"users"`
}

// SchemeConfig defines one normalization scheme.
type SchemeConfig struct {
	Name  string       `yaml:"name"`
	Rules []RuleConfig `yaml:"rules"`
}

// RuleConfig defines one rule in a scheme's chain. Type selects the
// rule; the remaining fields are its parameters.
type RuleConfig struct {
	Type   string   `yaml:"type"`
	Names  []string `yaml:"names,omitempty"`
	From   string   `yaml:"from,omitempty"`
	To     string   `yaml:"to,omitempty"`
	Field  string   `yaml:"field,omitempty"`
	Out    string   `yaml:"out,omitempty"`
	Factor float64  `yaml:"factor,omitempty"`
}

// Duration is a time.Duration that unmarshals from YAML strings like
// "250ms" or "2s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// FeedConfig configures the packaged simulated feed.
type FeedConfig struct {
	Simulated bool     `yaml:"simulated"`
	Symbols   []string `yaml:"symbols"`
	Interval  Duration `yaml:"interval"`
}

// LoggingConfig configures application and protocol logging.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	// EventFile enables the CBOR protocol event capture when set.
	EventFile string `yaml:"eventFile"`
}

// Default returns a runnable configuration: plain TCP on the default
// port, one pass-through scheme over a simulated three-symbol feed.
func Default() *Config {
	return &Config{
		Listen: ListenConfig{Address: ":9125"},
		Delivery: DeliveryConfig{
			Workers:   4,
			QueueSize: 1024,
		},
		Schemes: []SchemeConfig{
			{
				Name: "StandardRules",
				Rules: []RuleConfig{
					{Type: "mid_price"},
				},
			},
		},
		Feed: FeedConfig{
			Simulated: true,
			Symbols:   []string{"AAPL", "MSFT", "GOOG"},
			Interval:  Duration(250 * time.Millisecond),
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads and validates a YAML configuration file. Missing fields
// take their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

// Parse parses and validates YAML configuration bytes.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration and fills remaining defaults.
func (c *Config) Validate() error {
	if c.Listen.Address == "" {
		c.Listen.Address = ":9125"
	}
	if (c.Listen.CertFile == "") != (c.Listen.KeyFile == "") {
		return fmt.Errorf("listen: certFile and keyFile must be set together")
	}
	if c.Delivery.Workers < 0 || c.Delivery.QueueSize < 0 {
		return fmt.Errorf("delivery: workers and queueSize must not be negative")
	}
	if len(c.Schemes) == 0 {
		return fmt.Errorf("at least one normalization scheme is required")
	}
	seen := make(map[string]struct{}, len(c.Schemes))
	for i, sc := range c.Schemes {
		if sc.Name == "" {
			return fmt.Errorf("schemes[%d]: name is required", i)
		}
		if _, dup := seen[sc.Name]; dup {
			return fmt.Errorf("schemes[%d]: duplicate scheme %q", i, sc.Name)
		}
		seen[sc.Name] = struct{}{}
		for j, rc := range sc.Rules {
			if _, err := rc.build(); err != nil {
				return fmt.Errorf("scheme %q rules[%d]: %w", sc.Name, j, err)
			}
		}
	}
	if c.Feed.Simulated && len(c.Feed.Symbols) == 0 {
		return fmt.Errorf("feed: simulated feed needs at least one symbol")
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging: unknown level %q", c.Logging.Level)
	}
	return nil
}

// TLSConfig loads the listener's TLS material, nil when TLS is not
// configured.
func (c *Config) TLSConfig() (*tls.Config, error) {
	if c.Listen.CertFile == "" {
		return nil, nil
	}
	cert, err := tls.LoadX509KeyPair(c.Listen.CertFile, c.Listen.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("loading TLS key pair: %w", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// BuildSchemes constructs the configured normalization schemes.
func (c *Config) BuildSchemes() ([]*normalization.Scheme, error) {
	schemes := make([]*normalization.Scheme, 0, len(c.Schemes))
	for _, sc := range c.Schemes {
		rules := make([]normalization.Rule, 0, len(sc.Rules))
		for j, rc := range sc.Rules {
			rule, err := rc.build()
			if err != nil {
				return nil, fmt.Errorf("scheme %q rules[%d]: %w", sc.Name, j, err)
			}
			rules = append(rules, rule)
		}
		schemes = append(schemes, normalization.NewScheme(sc.Name, rules...))
	}
	return schemes, nil
}

// build constructs the rule a RuleConfig describes.
func (rc RuleConfig) build() (normalization.Rule, error) {
	switch rc.Type {
	case "required_fields":
		if len(rc.Names) == 0 {
			return nil, fmt.Errorf("required_fields: names is required")
		}
		return normalization.RequiredFields{Names: rc.Names}, nil

	case "rename_field":
		if rc.From == "" || rc.To == "" {
			return nil, fmt.Errorf("rename_field: from and to are required")
		}
		return normalization.RenameField{From: rc.From, To: rc.To}, nil

	case "field_filter":
		if len(rc.Names) == 0 {
			return nil, fmt.Errorf("field_filter: names is required")
		}
		return normalization.FieldFilter{Allow: rc.Names}, nil

	case "scale_field":
		if rc.Field == "" {
			return nil, fmt.Errorf("scale_field: field is required")
		}
		if rc.Factor == 0 {
			return nil, fmt.Errorf("scale_field: factor must be non-zero")
		}
		return normalization.ScaleField{Field: rc.Field, Factor: rc.Factor}, nil

	case "mid_price":
		// Parameter-free form uses the well-known price fields.
		if rc.Field == "" && rc.Out == "" {
			return normalization.StandardMidPrice(), nil
		}
		if rc.Out == "" {
			return nil, fmt.Errorf("mid_price: out is required")
		}
		r := normalization.StandardMidPrice()
		r.Out = rc.Out
		return r, nil

	case "change_delta":
		if rc.Field == "" || rc.Out == "" {
			return nil, fmt.Errorf("change_delta: field and out are required")
		}
		return normalization.ChangeDelta{Field: rc.Field, Out: rc.Out}, nil

	case "stale_flag":
		if rc.Field == "" || rc.Out == "" {
			return nil, fmt.Errorf("stale_flag: field and out are required")
		}
		return normalization.StaleFlag{Field: rc.Field, Out: rc.Out}, nil

	default:
		return nil, fmt.Errorf("unknown rule type %q", rc.Type)
	}
}
