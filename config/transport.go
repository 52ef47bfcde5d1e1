package config

import (
	"fmt"
	"net"
)

// 传输种类
const (
	// TransportUDP UDP 单播 + 组播
	TransportUDP = "udp"

	// TransportMemory 进程内传输（测试用）
	TransportMemory = "memory"
)

const (
	portBase       = 7400
	domainIDGain   = 250
	defaultMcGroup = "239.255.0.1"
)

// TransportConfig 传输层配置
type TransportConfig struct {
	// Kind 传输种类：udp 或 memory
	Kind string `json:"kind"`

	// Address 单播绑定地址，空表示所有地址
	Address string `json:"address,omitempty"`

	// Port 单播端口，0 表示由系统分配
	Port int `json:"port"`

	// MulticastGroup 组播组地址，空表示不加入组播
	MulticastGroup string `json:"multicast_group,omitempty"`

	// MulticastPort 组播端口，0 表示按域编号计算
	MulticastPort int `json:"multicast_port,omitempty"`

	// Interface 组播网卡名
	Interface string `json:"interface,omitempty"`

	// MulticastTTL 组播 TTL
	MulticastTTL int `json:"multicast_ttl"`

	// MulticastLoopback 是否接收本机发出的组播
	MulticastLoopback bool `json:"multicast_loopback"`
}

// DefaultTransportConfig 返回默认传输配置
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		Kind:              TransportUDP,
		MulticastGroup:    defaultMcGroup,
		MulticastTTL:      1,
		MulticastLoopback: true,
	}
}

// Validate 验证传输配置
func (c TransportConfig) Validate() error {
	switch c.Kind {
	case TransportUDP, TransportMemory:
	default:
		return fmt.Errorf("%w: transport kind %q", ErrInvalidConfig, c.Kind)
	}
	if c.Port < 0 || c.Port > 65535 || c.MulticastPort < 0 || c.MulticastPort > 65535 {
		return fmt.Errorf("%w: port out of range", ErrInvalidConfig)
	}
	if c.Address != "" && net.ParseIP(c.Address) == nil {
		return fmt.Errorf("%w: address %q", ErrInvalidConfig, c.Address)
	}
	if c.MulticastGroup != "" {
		ip := net.ParseIP(c.MulticastGroup)
		if ip == nil || !ip.IsMulticast() {
			return fmt.Errorf("%w: multicast_group %q is not a multicast address", ErrInvalidConfig, c.MulticastGroup)
		}
	}
	if c.MulticastTTL < 0 || c.MulticastTTL > 255 {
		return fmt.Errorf("%w: multicast_ttl %d", ErrInvalidConfig, c.MulticastTTL)
	}
	return nil
}

// MulticastPortFor 返回域的组播端口（PB + DG * domainID）
func (c TransportConfig) MulticastPortFor(domainID int) int {
	if c.MulticastPort != 0 {
		return c.MulticastPort
	}
	return portBase + domainIDGain*domainID
}
