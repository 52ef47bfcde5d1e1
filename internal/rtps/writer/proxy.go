package writer

import (
	"time"

	"github.com/dep2p/go-dds/internal/rtps/history"
	"github.com/dep2p/go-dds/internal/rtps/messages"
	"github.com/dep2p/go-dds/pkg/types"
)

// ReaderProxy 写者对一个匹配读者的投递状态
//
// 实现不是并发安全的，由所属写者串行调用。
type ReaderProxy interface {
	// RemoteReaderGUID 返回远端读者 GUID
	RemoteReaderGUID() types.GUID

	// Locators 返回远端读者的定位器列表
	Locators() types.LocatorList

	// Reliable 是否为可靠代理
	Reliable() bool

	// NotifyChange 记录一个新变更为未发送
	NotifyChange(sn types.SequenceNumber)

	// Produce 执行一次驱动，返回按序列号升序的子消息
	//
	// view 为写者历史的只读视图，lastSN 为写者最后分配的序列号。
	Produce(now time.Time, view history.View, lastSN types.SequenceNumber) []messages.Submessage

	// ProcessAckNack 处理读者的 AckNack，被接受时返回 true
	ProcessAckNack(now time.Time, an *messages.AckNack) bool

	// AckedUpTo 返回该读者不再需要的最大序列号
	AckedUpTo() types.SequenceNumber
}

// ProxyConfig 代理的创建参数
type ProxyConfig struct {
	// RemoteReaderGUID 远端读者 GUID
	RemoteReaderGUID types.GUID

	// Locators 远端读者的定位器列表
	Locators types.LocatorList

	// ExpectsInlineQos 读者要求 Data 总是携带内联 QoS（键哈希）
	ExpectsInlineQos bool
}

// proxyBase 两种代理共享的字段与子消息构造
type proxyBase struct {
	remote           types.GUID
	locators         types.LocatorList
	writerID         types.EntityID
	expectsInlineQos bool
}

func newProxyBase(writerID types.EntityID, cfg ProxyConfig) proxyBase {
	return proxyBase{
		remote:           cfg.RemoteReaderGUID,
		locators:         append(types.LocatorList(nil), cfg.Locators...),
		writerID:         writerID,
		expectsInlineQos: cfg.ExpectsInlineQos,
	}
}

// RemoteReaderGUID 实现 ReaderProxy
func (b *proxyBase) RemoteReaderGUID() types.GUID {
	return b.remote
}

// Locators 实现 ReaderProxy
func (b *proxyBase) Locators() types.LocatorList {
	return b.locators
}

// changeOrGap 历史中存在则发 Data，否则发 Gap 让读者跳过
func (b *proxyBase) changeOrGap(view history.View, sn types.SequenceNumber) messages.Submessage {
	if c, ok := view.Get(sn); ok {
		return DataForChange(c, b.remote.EntityID, b.writerID, b.expectsInlineQos)
	}
	return messages.NewGap(b.remote.EntityID, b.writerID, sn)
}

// DataForChange 为变更构造 Data 子消息
//
// 生命周期事件以键载荷发送，并在内联 QoS 中携带状态信息与键哈希。
func DataForChange(c *types.CacheChange, readerID, writerID types.EntityID, withKeyHash bool) *messages.Data {
	return &messages.Data{
		ReaderID:          readerID,
		WriterID:          writerID,
		WriterSN:          c.SequenceNumber,
		InlineQos:         messages.InlineQosForChange(c, withKeyHash),
		SerializedPayload: c.Data,
		Key:               !c.Kind.IsAlive(),
	}
}
