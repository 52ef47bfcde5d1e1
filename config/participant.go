package config

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// ParticipantConfig 参与者配置
type ParticipantConfig struct {
	// DomainID 域编号，决定默认组播端口
	DomainID int `json:"domain_id"`

	// GuidPrefix 12 字节 GUID 前缀（十六进制），空表示随机生成
	GuidPrefix string `json:"guid_prefix,omitempty"`

	// TickInterval 协议驱动周期
	TickInterval Duration `json:"tick_interval"`

	// MaxDatagramSize 单个数据报上限（字节）
	MaxDatagramSize int `json:"max_datagram_size"`

	// Endianness 编码字节序：big 或 little
	Endianness string `json:"endianness"`
}

// DefaultParticipantConfig 返回默认参与者配置
func DefaultParticipantConfig() ParticipantConfig {
	return ParticipantConfig{
		DomainID:        0,
		TickInterval:    Duration(50 * time.Millisecond),
		MaxDatagramSize: 64000,
		Endianness:      "little",
	}
}

// Validate 验证参与者配置
func (c ParticipantConfig) Validate() error {
	if c.DomainID < 0 || c.DomainID > 232 {
		return fmt.Errorf("%w: domain_id %d out of range [0, 232]", ErrInvalidConfig, c.DomainID)
	}
	if c.GuidPrefix != "" {
		if _, err := c.ParseGuidPrefix(); err != nil {
			return err
		}
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("%w: tick_interval must be positive", ErrInvalidConfig)
	}
	// 至少能容纳消息头加一个最小子消息
	if c.MaxDatagramSize < 64 {
		return fmt.Errorf("%w: max_datagram_size %d too small", ErrInvalidConfig, c.MaxDatagramSize)
	}
	switch strings.ToLower(c.Endianness) {
	case "big", "little":
	default:
		return fmt.Errorf("%w: endianness %q", ErrInvalidConfig, c.Endianness)
	}
	return nil
}

// ParseGuidPrefix 解析十六进制 GUID 前缀
func (c ParticipantConfig) ParseGuidPrefix() ([12]byte, error) {
	var p [12]byte
	b, err := hex.DecodeString(strings.ReplaceAll(c.GuidPrefix, ".", ""))
	if err != nil || len(b) != len(p) {
		return p, fmt.Errorf("%w: guid_prefix %q must be 12 hex bytes", ErrInvalidConfig, c.GuidPrefix)
	}
	copy(p[:], b)
	return p, nil
}

// LittleEndian 是否以小端编码
func (c ParticipantConfig) LittleEndian() bool {
	return strings.EqualFold(c.Endianness, "little")
}
