package writer

import (
	"context"
	"fmt"
	"sync"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"

	"github.com/dep2p/go-dds/internal/metrics"
	"github.com/dep2p/go-dds/internal/rtps/history"
	"github.com/dep2p/go-dds/internal/rtps/messages"
	"github.com/dep2p/go-dds/internal/transport"
	"github.com/dep2p/go-dds/pkg/types"
)

// DefaultMaxDatagramSize 单个数据报的默认上限
const DefaultMaxDatagramSize = 64000

// Options 写者的公共依赖
type Options struct {
	// Sender 数据报发送者
	Sender transport.Sender

	// Clock 时钟，nil 表示系统时钟
	Clock clock.Clock

	// Reporter 指标，nil 表示不记录
	Reporter metrics.Reporter

	// MaxDatagramSize 单个数据报上限，<= 0 表示默认值
	MaxDatagramSize int

	// Endianness 编码字节序
	Endianness messages.Endianness
}

// core 两种写者共享的状态：历史缓存、序列号分配与数据报构造
type core struct {
	mu sync.Mutex

	guid     types.GUID
	history  *history.HistoryCache
	lastSN   types.SequenceNumber
	sender   transport.Sender
	clock    clock.Clock
	reporter metrics.Reporter
	maxSize  int
	endian   messages.Endianness

	// kick 在本地写入或收到 AckNack 后通知驱动立即执行一次 Tick
	kick chan struct{}
}

func newCore(guid types.GUID, opts Options) core {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Reporter == nil {
		opts.Reporter = (*metrics.Counter)(nil)
	}
	if opts.MaxDatagramSize <= 0 {
		opts.MaxDatagramSize = DefaultMaxDatagramSize
	}
	return core{
		guid:     guid,
		history:  history.New(),
		sender:   opts.Sender,
		clock:    opts.Clock,
		reporter: opts.Reporter,
		maxSize:  opts.MaxDatagramSize,
		endian:   opts.Endianness,
		kick:     make(chan struct{}, 1),
	}
}

// GUID 返回写者 GUID
func (c *core) GUID() types.GUID {
	return c.guid
}

// Trigger 返回立即驱动的通知通道
func (c *core) Trigger() <-chan struct{} {
	return c.kick
}

func (c *core) notify() {
	select {
	case c.kick <- struct{}{}:
	default:
	}
}

// LastSequenceNumber 返回最后分配的序列号
func (c *core) LastSequenceNumber() types.SequenceNumber {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSN
}

// Changes 返回历史缓存快照
func (c *core) Changes() []*types.CacheChange {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.history.Changes()
}

// RemoveChange 从历史中移除满足条件的变更
//
// 仍未发送给某读者的变更被移除后，该读者会收到 Gap。
func (c *core) RemoveChange(pred func(*types.CacheChange) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.history.RemoveChange(pred)
}

// newChange 分配下一个序列号并写入历史，调用方持有锁
func (c *core) newChange(kind types.ChangeKind, handle types.InstanceHandle, data []byte, ts *types.Time) *types.CacheChange {
	c.lastSN++
	change := &types.CacheChange{
		Kind:            kind,
		WriterGUID:      c.guid,
		SequenceNumber:  c.lastSN,
		InstanceHandle:  handle,
		Data:            data,
		SourceTimestamp: ts,
	}
	c.history.AddChange(change)
	return change
}

// ============================================================================
//                              数据报构造与发送
// ============================================================================

// outbound 一个代理在一次驱动中的产出
type outbound struct {
	locators types.LocatorList
	dst      types.GuidPrefix
	subs     []messages.Submessage
}

// datagram 编码完成待发送的数据报
type datagram struct {
	data     []byte
	locators types.LocatorList
}

// build 按目标定位器列表分组并编码，调用方持有锁
//
// 同一组内每个代理的子消息前插入 InfoDestination（目标前缀未知时省略），
// 携带源时间戳的 Data 前插入 InfoTimestamp。超过数据报上限时切分，
// 新数据报重新带上 InfoDestination，时间戳上下文从头开始。
func (c *core) build(outs []outbound) []datagram {
	var keys []string
	groups := make(map[string][]outbound)
	for _, o := range outs {
		k := o.locators.Key()
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], o)
	}

	header := (&messages.Message{Header: messages.NewHeader(c.guid.Prefix)}).Encode(c.endian)

	var result []datagram
	for _, k := range keys {
		group := groups[k]
		b := &datagramBuilder{core: c, header: header, locators: group[0].locators}
		for _, o := range group {
			b.startSegment(o.dst)
			for _, sm := range o.subs {
				b.add(sm)
			}
		}
		result = append(result, b.finish()...)
	}
	return result
}

type datagramBuilder struct {
	core     *core
	header   []byte
	locators types.LocatorList

	buf    []byte
	done   []datagram
	dst    *types.GuidPrefix
	ts     *types.Time
	hasSub bool
}

func (b *datagramBuilder) reset() {
	b.buf = append([]byte(nil), b.header...)
	b.ts = nil
	b.hasSub = false
}

func (b *datagramBuilder) flush() {
	if b.hasSub {
		b.done = append(b.done, datagram{data: b.buf, locators: b.locators})
	}
	b.reset()
}

func (b *datagramBuilder) startSegment(dst types.GuidPrefix) {
	if b.buf == nil {
		b.reset()
	}
	if dst.IsUnknown() {
		b.dst = nil
		return
	}
	b.dst = &dst
	b.append(messages.AppendSubmessage(nil, &messages.InfoDestination{GuidPrefix: dst}, b.core.endian), false)
}

// add 追加一个子消息（必要时带上 InfoTimestamp）
func (b *datagramBuilder) add(sm messages.Submessage) {
	e := b.core.endian
	var unit []byte
	var ts *types.Time

	if d, ok := sm.(*messages.Data); ok {
		if c, ok := b.core.history.Get(d.WriterSN); ok {
			ts = c.SourceTimestamp
		}
		unit = b.timestampFor(ts)
	}
	unit = messages.AppendSubmessage(unit, sm, e)

	if len(b.buf)+len(unit) > b.core.maxSize && b.hasSub {
		b.flush()
		if b.dst != nil {
			b.append(messages.AppendSubmessage(nil, &messages.InfoDestination{GuidPrefix: *b.dst}, e), false)
		}
		// 新数据报没有时间戳上下文，重新计算
		unit = nil
		if _, ok := sm.(*messages.Data); ok {
			unit = b.timestampFor(ts)
		}
		unit = messages.AppendSubmessage(unit, sm, e)
	}
	if _, ok := sm.(*messages.Data); ok {
		b.ts = ts
	}
	b.append(unit, true)
	b.core.reporter.LogSubmessage(metrics.Sent, sm.Kind().String())
}

// timestampFor 在时间戳上下文变化时生成 InfoTimestamp
func (b *datagramBuilder) timestampFor(ts *types.Time) []byte {
	e := b.core.endian
	switch {
	case ts != nil && (b.ts == nil || *b.ts != *ts):
		return messages.AppendSubmessage(nil, &messages.InfoTimestamp{Timestamp: *ts}, e)
	case ts == nil && b.ts != nil:
		return messages.AppendSubmessage(nil, &messages.InfoTimestamp{Invalidate: true}, e)
	default:
		return nil
	}
}

func (b *datagramBuilder) append(unit []byte, isSub bool) {
	b.buf = append(b.buf, unit...)
	if isSub {
		b.hasSub = true
	}
}

func (b *datagramBuilder) finish() []datagram {
	b.flush()
	return b.done
}

// send 发送数据报，失败不重试
func (c *core) send(ctx context.Context, dgs []datagram) error {
	var errs error
	for _, dg := range dgs {
		if err := c.sender.Send(ctx, dg.data, dg.locators); err != nil {
			c.reporter.LogSendError()
			logger.Warn("发送数据报失败", "writer", c.guid.String(), "locators", dg.locators.Key(), "error", err)
			errs = multierr.Append(errs, fmt.Errorf("send to %s: %w", dg.locators.Key(), err))
			continue
		}
		c.reporter.LogSentDatagram(int64(len(dg.data)))
	}
	return errs
}
