// Package memory 提供进程内数据报网络
//
// 行为与 UDP 一致：发送不阻塞，接收队列满时丢包，不保证送达。
// SetDropFunc 可以按数据报和目标注入丢包，用于可靠性测试。
package memory

import (
	"context"
	"fmt"
	"net"
	"sync"

	"go.uber.org/multierr"

	"github.com/dep2p/go-dds/internal/transport"
	"github.com/dep2p/go-dds/pkg/lib/log"
	"github.com/dep2p/go-dds/pkg/types"
)

var logger = log.Logger("transport/memory")

// 首个分配的端口
const basePort = 7410

// 每个端点的接收队列长度
const inboxSize = 1024

// DropFunc 返回 true 时丢弃发往 dest 的数据报
type DropFunc func(datagram []byte, dest types.Locator) bool

// Network 进程内网络
type Network struct {
	mu       sync.RWMutex
	nextPort uint32
	members  map[types.Locator][]*Transport
	drop     DropFunc
}

// NewNetwork 创建网络
func NewNetwork() *Network {
	return &Network{
		nextPort: basePort,
		members:  make(map[types.Locator][]*Transport),
	}
}

// SetDropFunc 设置丢包函数，nil 表示不丢包
func (n *Network) SetDropFunc(fn DropFunc) {
	n.mu.Lock()
	n.drop = fn
	n.mu.Unlock()
}

// NewTransport 在网络上创建一个端点，分配 127.0.0.1 上的唯一端口
func (n *Network) NewTransport() *Transport {
	n.mu.Lock()
	defer n.mu.Unlock()

	local := types.NewUDPv4Locator(net.IPv4(127, 0, 0, 1), n.nextPort)
	n.nextPort++

	t := &Transport{
		network: n,
		local:   local,
		inbox:   make(chan packet, inboxSize),
		closed:  make(chan struct{}),
	}
	n.members[local] = append(n.members[local], t)
	return t
}

func (n *Network) join(loc types.Locator, t *Transport) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, m := range n.members[loc] {
		if m == t {
			return
		}
	}
	n.members[loc] = append(n.members[loc], t)
}

func (n *Network) leaveAll(t *Transport) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for loc, ms := range n.members {
		kept := ms[:0]
		for _, m := range ms {
			if m != t {
				kept = append(kept, m)
			}
		}
		if len(kept) == 0 {
			delete(n.members, loc)
		} else {
			n.members[loc] = kept
		}
	}
}

type packet struct {
	data []byte
	from types.Locator
}

// ============================================================================
//                              Transport
// ============================================================================

// Transport 网络上的一个端点
type Transport struct {
	network   *Network
	local     types.Locator
	inbox     chan packet
	closed    chan struct{}
	closeOnce sync.Once
}

var _ transport.Transport = (*Transport)(nil)

// JoinGroup 加入组播定位器
func (t *Transport) JoinGroup(group types.Locator) {
	t.network.join(group, t)
}

// LocalLocators 实现 transport.Transport
func (t *Transport) LocalLocators() types.LocatorList {
	return types.LocatorList{t.local}
}

// Send 实现 transport.Sender
func (t *Transport) Send(ctx context.Context, datagram []byte, destinations []types.Locator) error {
	select {
	case <-t.closed:
		return transport.ErrClosed
	default:
	}

	var errs error
	for _, dest := range destinations {
		if err := ctx.Err(); err != nil {
			return multierr.Append(errs, err)
		}

		t.network.mu.RLock()
		drop := t.network.drop
		targets := append([]*Transport(nil), t.network.members[dest]...)
		t.network.mu.RUnlock()

		if drop != nil && drop(datagram, dest) {
			continue
		}
		if len(targets) == 0 {
			if !dest.IsMulticast() {
				errs = multierr.Append(errs, fmt.Errorf("%w: %s", transport.ErrUnreachable, dest))
			}
			continue
		}
		for _, target := range targets {
			target.deliver(packet{data: append([]byte(nil), datagram...), from: t.local})
		}
	}
	return errs
}

func (t *Transport) deliver(p packet) {
	select {
	case <-t.closed:
	case t.inbox <- p:
	default:
		logger.Debug("接收队列已满，丢弃数据报", "local", t.local.String(), "bytes", len(p.data))
	}
}

// Serve 实现 transport.Transport
func (t *Transport) Serve(ctx context.Context, handler transport.Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.closed:
			return transport.ErrClosed
		case p := <-t.inbox:
			handler(p.data, p.from)
		}
	}
}

// Close 实现 transport.Transport
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		close(t.closed)
		t.network.leaveAll(t)
	})
	return nil
}
