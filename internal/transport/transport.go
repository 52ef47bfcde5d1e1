package transport

//go:generate mockgen -destination=mock_transport.go -package=transport . Sender,Transport

import (
	"context"
	"errors"

	"github.com/dep2p/go-dds/pkg/types"
)

var (
	// ErrClosed 传输已关闭
	ErrClosed = errors.New("transport closed")

	// ErrUnsupportedLocator 不支持的定位器种类
	ErrUnsupportedLocator = errors.New("unsupported locator kind")

	// ErrUnreachable 目标不可达（内存网络中无人监听）
	ErrUnreachable = errors.New("destination unreachable")
)

// Handler 数据报处理函数
//
// datagram 只在调用期间有效，需要保留时调用方自行复制。
type Handler func(datagram []byte, from types.Locator)

// Sender 发送数据报
type Sender interface {
	// Send 把同一个数据报发往所有目标
	//
	// 各目标的失败被组合为一个错误返回；不重试。
	Send(ctx context.Context, datagram []byte, destinations []types.Locator) error
}

// Transport 完整的数据报传输
type Transport interface {
	Sender

	// Serve 持续接收数据报并交给 handler，直到 ctx 结束或传输关闭
	Serve(ctx context.Context, handler Handler) error

	// LocalLocators 返回本地可被对端寻址的定位器
	LocalLocators() types.LocatorList

	// Close 关闭传输
	Close() error
}
