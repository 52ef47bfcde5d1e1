// Package config 提供统一的配置管理
//
// 本包采用混合配置模式：
//   - 主 Config 结构体嵌入所有子配置
//   - 每个子配置在独立文件中定义
//   - 支持从 JSON 加载和保存配置
//   - 支持预设配置（default/lan/lossy/test）
//
// 使用示例：
//
//	// 创建默认配置
//	cfg := config.NewConfig()
//	cfg.Participant.DomainID = 3
//	cfg.Writer.HeartbeatPeriod = config.Duration(100 * time.Millisecond)
//
//	// 应用预设
//	config.ApplyPreset(cfg, "lossy")
//
//	// 从 JSON 加载
//	cfg, err := config.FromJSON(data)
package config

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidConfig 配置无效
var ErrInvalidConfig = errors.New("invalid config")

// Config 是 go-dds 的完整配置结构
//
// 配置按照功能模块组织：
//   - Participant: 参与者标识与驱动周期
//   - Writer: 可靠写者定时
//   - Reader: 可靠读者定时
//   - Transport: 传输（UDP 单播/组播或进程内）
//   - Log: 日志
//   - Metrics: 协议指标
type Config struct {
	// Participant 参与者配置
	Participant ParticipantConfig `json:"participant"`

	// Writer 写者定时配置
	Writer WriterTimingConfig `json:"writer"`

	// Reader 读者定时配置
	Reader ReaderTimingConfig `json:"reader"`

	// Transport 传输配置
	Transport TransportConfig `json:"transport"`

	// Log 日志配置
	Log LogConfig `json:"log"`

	// Metrics 指标配置
	Metrics MetricsConfig `json:"metrics"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	return &Config{
		Participant: DefaultParticipantConfig(),
		Writer:      DefaultWriterTimingConfig(),
		Reader:      DefaultReaderTimingConfig(),
		Transport:   DefaultTransportConfig(),
		Log:         DefaultLogConfig(),
		Metrics:     DefaultMetricsConfig(),
	}
}

// Validate 验证配置的有效性
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalidConfig)
	}
	validators := []interface{ Validate() error }{
		c.Participant, c.Writer, c.Reader, c.Transport, c.Log, c.Metrics,
	}
	for _, v := range validators {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// FromJSON 从 JSON 数据创建配置
//
// 未出现的字段保留默认值。
//
// 示例 JSON:
//
//	{
//	  "participant": {"domain_id": 1},
//	  "writer": {"heartbeat_period": "100ms"},
//	  "transport": {"kind": "udp", "multicast_group": "239.255.0.1"}
//	}
func FromJSON(data []byte) (*Config, error) {
	cfg := NewConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// ToJSON 序列化配置
func (c *Config) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// Clone 深拷贝配置
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}
