package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewConfig 测试创建默认配置
func TestNewConfig(t *testing.T) {
	cfg := NewConfig()
	require.NotNil(t, cfg)
	assert.NoError(t, cfg.Validate())

	assert.Equal(t, 200*time.Millisecond, cfg.Writer.HeartbeatPeriod.Duration())
	assert.Equal(t, 200*time.Millisecond, cfg.Writer.NackResponseDelay.Duration())
	assert.Zero(t, cfg.Writer.NackSuppressionDuration)
	assert.Equal(t, 500*time.Millisecond, cfg.Reader.HeartbeatResponseDelay.Duration())
	assert.Equal(t, 50*time.Millisecond, cfg.Participant.TickInterval.Duration())
	assert.Equal(t, TransportUDP, cfg.Transport.Kind)
}

// TestConfig_Validate 测试各子配置的验证
func TestConfig_Validate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"DomainID", func(c *Config) { c.Participant.DomainID = 300 }},
		{"GuidPrefix", func(c *Config) { c.Participant.GuidPrefix = "zz" }},
		{"TickInterval", func(c *Config) { c.Participant.TickInterval = 0 }},
		{"MaxDatagramSize", func(c *Config) { c.Participant.MaxDatagramSize = 10 }},
		{"Endianness", func(c *Config) { c.Participant.Endianness = "middle" }},
		{"HeartbeatPeriod", func(c *Config) { c.Writer.HeartbeatPeriod = 0 }},
		{"NackSuppression", func(c *Config) { c.Writer.NackSuppressionDuration = Duration(-time.Second) }},
		{"HeartbeatResponseDelay", func(c *Config) { c.Reader.HeartbeatResponseDelay = Duration(-1) }},
		{"TransportKind", func(c *Config) { c.Transport.Kind = "tcp" }},
		{"MulticastGroup", func(c *Config) { c.Transport.MulticastGroup = "10.0.0.1" }},
		{"Address", func(c *Config) { c.Transport.Address = "nowhere" }},
		{"LogLevel", func(c *Config) { c.Log.Level = "verbose" }},
		{"MetricsNamespace", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Namespace = "1bad-name" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := NewConfig()
			tc.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}

	var nilCfg *Config
	assert.ErrorIs(t, nilCfg.Validate(), ErrInvalidConfig)
}

// TestFromJSON 测试 JSON 加载与保存
func TestFromJSON(t *testing.T) {
	cfg, err := FromJSON([]byte(`{
		"participant": {"domain_id": 2, "guid_prefix": "01.02.03.04.05.06.07.08.09.0a.0b.0c"},
		"writer": {"heartbeat_period": "75ms", "nack_suppression_duration": 1},
		"transport": {"kind": "memory"}
	}`))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 2, cfg.Participant.DomainID)
	assert.Equal(t, 75*time.Millisecond, cfg.Writer.HeartbeatPeriod.Duration())
	assert.Equal(t, time.Millisecond, cfg.Writer.NackSuppressionDuration.Duration())
	// 未出现的字段保留默认值
	assert.Equal(t, 200*time.Millisecond, cfg.Writer.NackResponseDelay.Duration())
	assert.Equal(t, TransportMemory, cfg.Transport.Kind)

	prefix, err := cfg.Participant.ParseGuidPrefix()
	require.NoError(t, err)
	assert.Equal(t, [12]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}, prefix)

	data, err := cfg.ToJSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"heartbeat_period": "75ms"`)

	back, err := FromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, cfg, back)

	_, err = FromJSON([]byte(`{"writer": {"heartbeat_period": "soon"}}`))
	assert.Error(t, err)
}

// TestApplyPreset 测试预设
func TestApplyPreset(t *testing.T) {
	for _, name := range []string{PresetDefault, PresetLAN, PresetLossy, PresetTest} {
		cfg, err := NewPresetConfig(name)
		require.NoError(t, err, name)
		assert.NoError(t, cfg.Validate(), name)
	}

	cfg, err := NewPresetConfig(PresetLossy)
	require.NoError(t, err)
	assert.Equal(t, 100*time.Millisecond, cfg.Writer.NackSuppressionDuration.Duration())

	cfg, err = NewPresetConfig(PresetTest)
	require.NoError(t, err)
	assert.Equal(t, TransportMemory, cfg.Transport.Kind)
	assert.Zero(t, cfg.Reader.HeartbeatResponseDelay)

	_, err = NewPresetConfig("mobile")
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.ErrorIs(t, ApplyPreset(nil, PresetLAN), ErrInvalidConfig)
}

// TestTransportConfig_MulticastPort 测试组播端口计算
func TestTransportConfig_MulticastPort(t *testing.T) {
	cfg := DefaultTransportConfig()
	assert.Equal(t, 7400, cfg.MulticastPortFor(0))
	assert.Equal(t, 7650, cfg.MulticastPortFor(1))

	cfg.MulticastPort = 9000
	assert.Equal(t, 9000, cfg.MulticastPortFor(1))
}

// TestClone 测试拷贝互不影响
func TestClone(t *testing.T) {
	cfg := NewConfig()
	clone := cfg.Clone()
	clone.Participant.DomainID = 7
	assert.Equal(t, 0, cfg.Participant.DomainID)
}
