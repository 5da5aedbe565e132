package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFullConfig(t *testing.T) {
	yaml := `
listen:
  address: ":9200"
metrics:
  address: ":9300"
discovery:
  enabled: true
  instanceName: tick-eu
delivery:
  workers: 8
  queueSize: 2048
auth:
  users: [alice, bob]
schemes:
  - name: StandardRules
    rules:
      - type: required_fields
        names: [BID, ASK]
      - type: mid_price
  - name: Cents
    rules:
      - type: scale_field
        field: LAST
        factor: 0.01
feed:
  simulated: true
  symbols: [AAPL]
  interval: 50ms
logging:
  level: debug
  eventFile: /tmp/events.cbor
`
	cfg, err := Parse([]byte(yaml))
	require.NoError(t, err)

	assert.Equal(t, ":9200", cfg.Listen.Address)
	assert.Equal(t, ":9300", cfg.Metrics.Address)
	assert.True(t, cfg.Discovery.Enabled)
	assert.Equal(t, "tick-eu", cfg.Discovery.InstanceName)
	assert.Equal(t, 8, cfg.Delivery.Workers)
	assert.Equal(t, []string{"alice", "bob"}, cfg.Auth.Users)
	assert.Equal(t, 50*time.Millisecond, cfg.Feed.Interval.Std())
	assert.Equal(t, "debug", cfg.Logging.Level)

	schemes, err := cfg.BuildSchemes()
	require.NoError(t, err)
	require.Len(t, schemes, 2)
	assert.Equal(t, "StandardRules", schemes[0].Name())
	assert.Len(t, schemes[0].Rules(), 2)
	assert.Equal(t, "Cents", schemes[1].Name())
}

func TestParseEmptyUsesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(""))
	require.NoError(t, err)

	assert.Equal(t, ":9125", cfg.Listen.Address)
	assert.NotEmpty(t, cfg.Schemes)
	assert.True(t, cfg.Feed.Simulated)
}

func TestValidateRejectsBadConfig(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{
			name: "cert without key",
			yaml: "listen:\n  certFile: /tmp/cert.pem\n",
		},
		{
			name: "duplicate scheme",
			yaml: "schemes:\n  - name: A\n  - name: A\n",
		},
		{
			name: "unnamed scheme",
			yaml: "schemes:\n  - rules: []\n",
		},
		{
			name: "unknown rule type",
			yaml: "schemes:\n  - name: A\n    rules:\n      - type: frobnicate\n",
		},
		{
			name: "scale without factor",
			yaml: "schemes:\n  - name: A\n    rules:\n      - type: scale_field\n        field: LAST\n",
		},
		{
			name: "rename missing to",
			yaml: "schemes:\n  - name: A\n    rules:\n      - type: rename_field\n        from: X\n",
		},
		{
			name: "simulated feed without symbols",
			yaml: "feed:\n  simulated: true\n  symbols: []\n",
		},
		{
			name: "bad log level",
			yaml: "logging:\n  level: loud\n",
		},
		{
			name: "bad duration",
			yaml: "feed:\n  interval: soon\n",
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := Parse([]byte(c.yaml))
			assert.Error(t, err)
		})
	}
}

func TestTLSConfigAbsent(t *testing.T) {
	cfg := Default()
	tlsConfig, err := cfg.TLSConfig()
	require.NoError(t, err)
	assert.Nil(t, tlsConfig)
}

func TestDurationRoundTrip(t *testing.T) {
	d := Duration(1500 * time.Millisecond)
	v, err := d.MarshalYAML()
	require.NoError(t, err)
	assert.Equal(t, "1.5s", v)
}
