package reader

import (
	"fmt"
	"time"

	"github.com/dep2p/go-dds/internal/rtps/messages"
	"github.com/dep2p/go-dds/pkg/types"
)

// WriterProxy 读者对一个匹配写者的接收状态
//
// 实现不是并发安全的，由所属读者串行调用。
type WriterProxy interface {
	// RemoteWriterGUID 返回远端写者 GUID
	RemoteWriterGUID() types.GUID

	// Locators 返回远端写者的单播定位器列表（AckNack 的目标）
	Locators() types.LocatorList

	// Reliable 是否为可靠代理
	Reliable() bool

	// ReceiveData 处理一个变更
	ReceiveData(c *types.CacheChange) Delivery

	// ReceiveGap 处理 Gap
	ReceiveGap(g *messages.Gap) Delivery

	// ReceiveHeartbeat 处理 Heartbeat
	ReceiveHeartbeat(now time.Time, hb *messages.Heartbeat) Delivery

	// Produce 执行一次驱动，返回到期的 AckNack
	Produce(now time.Time) []messages.Submessage
}

// Delivery 一次处理的结果
type Delivery struct {
	// Released 按序列号升序释放给上层的变更
	Released []*types.CacheChange

	// Lost 确认无法再收到的变更数
	Lost int
}

func (d *Delivery) merge(o Delivery) {
	d.Released = append(d.Released, o.Released...)
	d.Lost += o.Lost
}

// ProxyConfig 代理的创建参数
type ProxyConfig struct {
	// RemoteWriterGUID 远端写者 GUID
	RemoteWriterGUID types.GUID

	// Locators 远端写者的单播定位器列表
	Locators types.LocatorList
}

type proxyBase struct {
	remote   types.GUID
	locators types.LocatorList
}

func newProxyBase(cfg ProxyConfig) proxyBase {
	return proxyBase{
		remote:   cfg.RemoteWriterGUID,
		locators: append(types.LocatorList(nil), cfg.Locators...),
	}
}

// RemoteWriterGUID 实现 WriterProxy
func (b *proxyBase) RemoteWriterGUID() types.GUID {
	return b.remote
}

// Locators 实现 WriterProxy
func (b *proxyBase) Locators() types.LocatorList {
	return b.locators
}

// ============================================================================
//                              Data -> CacheChange
// ============================================================================

// ChangeFromData 由 Data 子消息还原变更
//
// 变更种类来自内联 QoS 中的 PID_STATUS_INFO（缺省为 Alive），
// 实例句柄来自 PID_KEY_HASH；没有键哈希时句柄为 HandleNil，
// 由上层根据负载计算。
func ChangeFromData(writer types.GUID, d *messages.Data, ts *types.Time) (*types.CacheChange, error) {
	kind := types.ChangeKindAlive
	if v, ok := d.InlineQos.Find(messages.PIDStatusInfo); ok {
		k, err := messages.KindFromStatusInfo(v)
		if err != nil {
			return nil, err
		}
		kind = k
	}
	if !kind.IsAlive() && !d.Key && len(d.SerializedPayload) > 0 {
		return nil, fmt.Errorf("%w: %s change carries a data payload", messages.ErrInvalidData, kind)
	}

	var handle types.InstanceHandle
	if v, ok := d.InlineQos.Find(messages.PIDKeyHash); ok {
		if len(v) != len(handle) {
			return nil, fmt.Errorf("%w: key hash needs %d bytes, got %d", messages.ErrInvalidData, len(handle), len(v))
		}
		copy(handle[:], v)
	}

	var stamp *types.Time
	if ts != nil {
		t := *ts
		stamp = &t
	}
	return &types.CacheChange{
		Kind:            kind,
		WriterGUID:      writer,
		SequenceNumber:  d.WriterSN,
		InstanceHandle:  handle,
		Data:            d.SerializedPayload,
		SourceTimestamp: stamp,
	}, nil
}
