package types

import (
	"fmt"
	"net"
	"strings"
)

// ============================================================================
//                              Locator - 定位器
// ============================================================================

// LocatorKind 定位器种类
type LocatorKind int32

const (
	// LocatorKindInvalid 无效
	LocatorKindInvalid LocatorKind = -1
	// LocatorKindReserved 保留
	LocatorKindReserved LocatorKind = 0
	// LocatorKindUDPv4 UDP over IPv4
	LocatorKindUDPv4 LocatorKind = 1
	// LocatorKindUDPv6 UDP over IPv6
	LocatorKindUDPv6 LocatorKind = 2
)

// Locator 传输层地址
//
// IPv4 地址存放在 Address 的最后 4 个字节。
type Locator struct {
	Kind    LocatorKind
	Port    uint32
	Address [16]byte
}

// LocatorInvalid 无效定位器
var LocatorInvalid = Locator{Kind: LocatorKindInvalid}

// NewUDPv4Locator 创建 UDPv4 定位器
func NewUDPv4Locator(ip net.IP, port uint32) Locator {
	l := Locator{Kind: LocatorKindUDPv4, Port: port}
	if v4 := ip.To4(); v4 != nil {
		copy(l.Address[12:], v4)
	}
	return l
}

// NewUDPv6Locator 创建 UDPv6 定位器
func NewUDPv6Locator(ip net.IP, port uint32) Locator {
	l := Locator{Kind: LocatorKindUDPv6, Port: port}
	copy(l.Address[:], ip.To16())
	return l
}

// IP 返回定位器的 IP 地址
func (l Locator) IP() net.IP {
	switch l.Kind {
	case LocatorKindUDPv4:
		return net.IPv4(l.Address[12], l.Address[13], l.Address[14], l.Address[15])
	case LocatorKindUDPv6:
		ip := make(net.IP, net.IPv6len)
		copy(ip, l.Address[:])
		return ip
	default:
		return nil
	}
}

// UDPAddr 转换为 net.UDPAddr
func (l Locator) UDPAddr() *net.UDPAddr {
	return &net.UDPAddr{IP: l.IP(), Port: int(l.Port)}
}

// IsMulticast 检查是否为组播地址
func (l Locator) IsMulticast() bool {
	ip := l.IP()
	return ip != nil && ip.IsMulticast()
}

// String 返回 udpv4://1.2.3.4:7400 格式
func (l Locator) String() string {
	switch l.Kind {
	case LocatorKindUDPv4:
		return fmt.Sprintf("udpv4://%s:%d", l.IP(), l.Port)
	case LocatorKindUDPv6:
		return fmt.Sprintf("udpv6://[%s]:%d", l.IP(), l.Port)
	default:
		return fmt.Sprintf("locator(%d)", l.Kind)
	}
}

// LocatorList 定位器列表
type LocatorList []Locator

// Key 返回列表的稳定字符串键，用于按目标分组
func (ll LocatorList) Key() string {
	parts := make([]string, len(ll))
	for i, l := range ll {
		parts[i] = l.String()
	}
	return strings.Join(parts, ",")
}
