package config

import (
	"fmt"
	"time"
)

// WriterTimingConfig 可靠写者定时配置
type WriterTimingConfig struct {
	// HeartbeatPeriod 心跳周期
	HeartbeatPeriod Duration `json:"heartbeat_period"`

	// NackResponseDelay 收到 AckNack 后开始修复前的延迟
	NackResponseDelay Duration `json:"nack_response_delay"`

	// NackSuppressionDuration 修复后忽略重复 nack 的时间窗，0 表示不抑制
	NackSuppressionDuration Duration `json:"nack_suppression_duration"`
}

// DefaultWriterTimingConfig 返回默认写者定时
func DefaultWriterTimingConfig() WriterTimingConfig {
	return WriterTimingConfig{
		HeartbeatPeriod:   Duration(200 * time.Millisecond),
		NackResponseDelay: Duration(200 * time.Millisecond),
	}
}

// Validate 验证写者定时
func (c WriterTimingConfig) Validate() error {
	if c.HeartbeatPeriod <= 0 {
		return fmt.Errorf("%w: heartbeat_period must be positive", ErrInvalidConfig)
	}
	if c.NackResponseDelay < 0 || c.NackSuppressionDuration < 0 {
		return fmt.Errorf("%w: writer delays must not be negative", ErrInvalidConfig)
	}
	return nil
}

// ReaderTimingConfig 可靠读者定时配置
type ReaderTimingConfig struct {
	// HeartbeatResponseDelay 收到心跳后发送 AckNack 前的延迟
	HeartbeatResponseDelay Duration `json:"heartbeat_response_delay"`
}

// DefaultReaderTimingConfig 返回默认读者定时
func DefaultReaderTimingConfig() ReaderTimingConfig {
	return ReaderTimingConfig{
		HeartbeatResponseDelay: Duration(500 * time.Millisecond),
	}
}

// Validate 验证读者定时
func (c ReaderTimingConfig) Validate() error {
	if c.HeartbeatResponseDelay < 0 {
		return fmt.Errorf("%w: heartbeat_response_delay must not be negative", ErrInvalidConfig)
	}
	return nil
}
