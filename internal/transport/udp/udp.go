// Package udp 实现 UDPv4 数据报传输
//
// 单播套接字负责发送与单播接收；配置了组播组时另开一个
// 绑定组播端口的套接字，通过 golang.org/x/net/ipv4 加入组。
package udp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/net/ipv4"
	"golang.org/x/sync/errgroup"

	"github.com/dep2p/go-dds/internal/transport"
	"github.com/dep2p/go-dds/pkg/lib/log"
	"github.com/dep2p/go-dds/pkg/types"
)

var logger = log.Logger("transport/udp")

// maxDatagramSize UDP 载荷上限
const maxDatagramSize = 65507

// Config UDP 传输配置
type Config struct {
	// Address 单播绑定地址，空表示 0.0.0.0
	Address string

	// Port 单播端口，0 表示由系统分配
	Port int

	// MulticastGroup 组播组地址，空表示不接收组播
	MulticastGroup string

	// MulticastPort 组播端口
	MulticastPort int

	// Interface 组播网卡名，空表示系统默认
	Interface string

	// MulticastTTL 组播 TTL
	MulticastTTL int

	// MulticastLoopback 是否接收本机发出的组播
	MulticastLoopback bool
}

// Transport UDP 传输
type Transport struct {
	unicast *net.UDPConn
	mcast   *net.UDPConn

	locators types.LocatorList

	closed    chan struct{}
	closeOnce sync.Once
}

var _ transport.Transport = (*Transport)(nil)

// New 绑定套接字并加入组播组
func New(cfg Config) (*Transport, error) {
	ip := net.IPv4zero
	if cfg.Address != "" {
		if ip = net.ParseIP(cfg.Address); ip == nil || ip.To4() == nil {
			return nil, fmt.Errorf("%w: bad unicast address %q", types.ErrInvalidLocator, cfg.Address)
		}
	}

	unicast, err := net.ListenUDP("udp4", &net.UDPAddr{IP: ip, Port: cfg.Port})
	if err != nil {
		return nil, fmt.Errorf("listen unicast: %w", err)
	}

	t := &Transport{unicast: unicast, closed: make(chan struct{})}
	port := uint32(unicast.LocalAddr().(*net.UDPAddr).Port)
	t.locators = unicastLocators(ip, port)

	var ifi *net.Interface
	if cfg.Interface != "" {
		if ifi, err = net.InterfaceByName(cfg.Interface); err != nil {
			unicast.Close()
			return nil, fmt.Errorf("multicast interface: %w", err)
		}
	}

	// 经单播套接字发出的组播使用的参数
	pc := ipv4.NewPacketConn(unicast)
	if cfg.MulticastTTL > 0 {
		if err := pc.SetMulticastTTL(cfg.MulticastTTL); err != nil {
			logger.Warn("设置组播 TTL 失败", "error", err)
		}
	}
	if err := pc.SetMulticastLoopback(cfg.MulticastLoopback); err != nil {
		logger.Warn("设置组播回环失败", "error", err)
	}
	if ifi != nil {
		if err := pc.SetMulticastInterface(ifi); err != nil {
			logger.Warn("设置组播网卡失败", "error", err)
		}
	}

	if cfg.MulticastGroup != "" {
		if err := t.joinGroup(cfg, ifi); err != nil {
			unicast.Close()
			return nil, err
		}
	}

	logger.Info("UDP 传输已启动", "locators", t.locators.Key())
	return t, nil
}

func (t *Transport) joinGroup(cfg Config, ifi *net.Interface) error {
	group := net.ParseIP(cfg.MulticastGroup)
	if group == nil || !group.IsMulticast() || group.To4() == nil {
		return fmt.Errorf("%w: bad multicast group %q", types.ErrInvalidLocator, cfg.MulticastGroup)
	}

	lc := net.ListenConfig{Control: reuseAddr}
	conn, err := lc.ListenPacket(context.Background(), "udp4", fmt.Sprintf("0.0.0.0:%d", cfg.MulticastPort))
	if err != nil {
		return fmt.Errorf("listen multicast: %w", err)
	}
	mcast := conn.(*net.UDPConn)

	pc := ipv4.NewPacketConn(mcast)
	if err := pc.JoinGroup(ifi, &net.UDPAddr{IP: group}); err != nil {
		mcast.Close()
		return fmt.Errorf("join group %s: %w", group, err)
	}
	if err := pc.SetMulticastLoopback(cfg.MulticastLoopback); err != nil {
		logger.Warn("设置组播回环失败", "error", err)
	}

	t.mcast = mcast
	t.locators = append(t.locators, types.NewUDPv4Locator(group, uint32(cfg.MulticastPort)))
	return nil
}

func unicastLocators(bound net.IP, port uint32) types.LocatorList {
	if !bound.IsUnspecified() {
		return types.LocatorList{types.NewUDPv4Locator(bound, port)}
	}
	var out types.LocatorList
	addrs, err := net.InterfaceAddrs()
	if err == nil {
		for _, a := range addrs {
			ipnet, ok := a.(*net.IPNet)
			if !ok || ipnet.IP.To4() == nil || ipnet.IP.IsLoopback() {
				continue
			}
			out = append(out, types.NewUDPv4Locator(ipnet.IP, port))
		}
	}
	if len(out) == 0 {
		out = append(out, types.NewUDPv4Locator(net.IPv4(127, 0, 0, 1), port))
	}
	return out
}

// LocalLocators 实现 transport.Transport
func (t *Transport) LocalLocators() types.LocatorList {
	return append(types.LocatorList(nil), t.locators...)
}

// Send 实现 transport.Sender
func (t *Transport) Send(ctx context.Context, datagram []byte, destinations []types.Locator) error {
	select {
	case <-t.closed:
		return transport.ErrClosed
	default:
	}
	if len(datagram) > maxDatagramSize {
		return fmt.Errorf("datagram of %d bytes exceeds %d", len(datagram), maxDatagramSize)
	}

	var errs error
	for _, dest := range destinations {
		if err := ctx.Err(); err != nil {
			return multierr.Append(errs, err)
		}
		if dest.Kind != types.LocatorKindUDPv4 {
			errs = multierr.Append(errs, fmt.Errorf("%w: %s", transport.ErrUnsupportedLocator, dest))
			continue
		}
		if _, err := t.unicast.WriteToUDP(datagram, dest.UDPAddr()); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("send to %s: %w", dest, err))
		}
	}
	return errs
}

// Serve 实现 transport.Transport
func (t *Transport) Serve(ctx context.Context, handler transport.Handler) error {
	g, gctx := errgroup.WithContext(ctx)

	conns := []*net.UDPConn{t.unicast}
	if t.mcast != nil {
		conns = append(conns, t.mcast)
	}
	for _, conn := range conns {
		conn := conn
		g.Go(func() error { return t.readLoop(conn, handler) })
	}

	// ctx 结束时让阻塞的读取立即返回
	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-t.closed:
		}
		for _, conn := range conns {
			_ = conn.SetReadDeadline(time.Now())
		}
		return nil
	})

	err := g.Wait()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (t *Transport) readLoop(conn *net.UDPConn, handler transport.Handler) error {
	buf := make([]byte, maxDatagramSize)
	for {
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-t.closed:
				return transport.ErrClosed
			default:
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				return nil
			}
			return fmt.Errorf("read %s: %w", conn.LocalAddr(), err)
		}
		handler(buf[:n], types.NewUDPv4Locator(from.IP, uint32(from.Port)))
	}
}

// Close 实现 transport.Transport
func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.closed)
		err = t.unicast.Close()
		if t.mcast != nil {
			err = multierr.Append(err, t.mcast.Close())
		}
	})
	return err
}
