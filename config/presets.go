package config

import (
	"fmt"
	"time"
)

// 预设名称
const (
	// PresetDefault 默认配置
	PresetDefault = "default"

	// PresetLAN 低延迟局域网：更短的心跳与驱动周期
	PresetLAN = "lan"

	// PresetLossy 高丢包链路：更快的修复并抑制重复 nack
	PresetLossy = "lossy"

	// PresetTest 进程内测试：内存传输、无响应延迟
	PresetTest = "test"
)

// ApplyPreset 应用预设配置
func ApplyPreset(cfg *Config, name string) error {
	if cfg == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalidConfig)
	}

	switch name {
	case "", PresetDefault:
		return nil
	case PresetLAN:
		cfg.Participant.TickInterval = Duration(10 * time.Millisecond)
		cfg.Writer.HeartbeatPeriod = Duration(100 * time.Millisecond)
		cfg.Writer.NackResponseDelay = Duration(10 * time.Millisecond)
		cfg.Reader.HeartbeatResponseDelay = Duration(10 * time.Millisecond)
	case PresetLossy:
		cfg.Writer.HeartbeatPeriod = Duration(50 * time.Millisecond)
		cfg.Writer.NackResponseDelay = Duration(20 * time.Millisecond)
		cfg.Writer.NackSuppressionDuration = Duration(100 * time.Millisecond)
		cfg.Reader.HeartbeatResponseDelay = Duration(20 * time.Millisecond)
	case PresetTest:
		cfg.Transport.Kind = TransportMemory
		cfg.Participant.TickInterval = Duration(5 * time.Millisecond)
		cfg.Writer.HeartbeatPeriod = Duration(20 * time.Millisecond)
		cfg.Writer.NackResponseDelay = 0
		cfg.Reader.HeartbeatResponseDelay = 0
		cfg.Log.Level = "warn"
	default:
		return fmt.Errorf("%w: unknown preset %q", ErrInvalidConfig, name)
	}
	return nil
}

// NewPresetConfig 创建应用了预设的默认配置
func NewPresetConfig(name string) (*Config, error) {
	cfg := NewConfig()
	if err := ApplyPreset(cfg, name); err != nil {
		return nil, err
	}
	return cfg, nil
}
