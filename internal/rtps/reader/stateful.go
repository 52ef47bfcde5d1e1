package reader

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"

	"github.com/dep2p/go-dds/internal/metrics"
	"github.com/dep2p/go-dds/internal/rtps/messages"
	"github.com/dep2p/go-dds/internal/transport"
	"github.com/dep2p/go-dds/pkg/qos"
	"github.com/dep2p/go-dds/pkg/types"
)

// Timing 可靠读者的定时参数
type Timing struct {
	// HeartbeatResponseDelay 收到需要回应的 Heartbeat 后延迟多久发送 AckNack
	HeartbeatResponseDelay time.Duration
}

// DefaultTiming 返回默认定时参数
func DefaultTiming() Timing {
	return Timing{HeartbeatResponseDelay: 500 * time.Millisecond}
}

// Listener 接收读者按序释放的变更
//
// 回调在读者的锁内执行，不能再调用同一个读者。
type Listener interface {
	// OnChange 一个变更被释放
	OnChange(c *types.CacheChange)

	// OnSamplesLost 来自某写者的 n 个变更确认丢失
	OnSamplesLost(writer types.GUID, n int)
}

// Config 有状态读者配置
type Config struct {
	// GUID 读者 GUID
	GUID types.GUID

	// Reliability 读者请求的可靠性
	Reliability qos.ReliabilityKind

	// Timing 可靠代理的定时参数
	Timing Timing
}

// Options 读者的公共依赖
type Options struct {
	// Sender 发送 AckNack 的数据报发送者
	Sender transport.Sender

	// Clock 时钟，nil 表示系统时钟
	Clock clock.Clock

	// Reporter 指标，nil 表示不记录
	Reporter metrics.Reporter

	// Endianness 编码字节序
	Endianness messages.Endianness

	// Listener 变更接收者
	Listener Listener
}

// StatefulReader 为每个匹配写者维护代理的读者
type StatefulReader struct {
	mu sync.Mutex

	guid        types.GUID
	reliability qos.ReliabilityKind
	timing      Timing
	proxies     map[types.GUID]WriterProxy

	sender   transport.Sender
	clock    clock.Clock
	reporter metrics.Reporter
	endian   messages.Endianness
	listener Listener

	kick chan struct{}
}

// NewStatefulReader 创建有状态读者
func NewStatefulReader(cfg Config, opts Options) *StatefulReader {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Reporter == nil {
		opts.Reporter = (*metrics.Counter)(nil)
	}
	return &StatefulReader{
		guid:        cfg.GUID,
		reliability: cfg.Reliability,
		timing:      cfg.Timing,
		proxies:     make(map[types.GUID]WriterProxy),
		sender:      opts.Sender,
		clock:       opts.Clock,
		reporter:    opts.Reporter,
		endian:      opts.Endianness,
		listener:    opts.Listener,
		kick:        make(chan struct{}, 1),
	}
}

// GUID 返回读者 GUID
func (r *StatefulReader) GUID() types.GUID {
	return r.guid
}

// Reliability 返回读者可靠性
func (r *StatefulReader) Reliability() qos.ReliabilityKind {
	return r.reliability
}

// Trigger 返回立即驱动的通知通道
func (r *StatefulReader) Trigger() <-chan struct{} {
	return r.kick
}

func (r *StatefulReader) notify() {
	select {
	case r.kick <- struct{}{}:
	default:
	}
}

// MatchWriter 添加匹配写者
//
// 读者与写者都为 RELIABLE 时创建可靠代理。重复匹配同一写者时保留原代理。
func (r *StatefulReader) MatchWriter(cfg ProxyConfig, offered qos.ReliabilityKind) WriterProxy {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.proxies[cfg.RemoteWriterGUID]; ok {
		return p
	}
	var p WriterProxy
	if r.reliability == qos.Reliable && offered == qos.Reliable {
		p = NewReliableProxy(r.guid.EntityID, cfg, r.timing)
	} else {
		p = NewBestEffortProxy(cfg)
	}
	r.proxies[cfg.RemoteWriterGUID] = p
	logger.Debug("匹配写者", "reader", r.guid.String(), "writer", cfg.RemoteWriterGUID.String(), "reliable", p.Reliable())
	return p
}

// UnmatchWriter 移除匹配写者，丢弃其缓冲与确认状态
func (r *StatefulReader) UnmatchWriter(guid types.GUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.proxies[guid]; !ok {
		return false
	}
	delete(r.proxies, guid)
	logger.Debug("取消匹配写者", "reader", r.guid.String(), "writer", guid.String())
	return true
}

// MatchedWriters 返回已匹配写者（按 GUID 排序）
func (r *StatefulReader) MatchedWriters() []types.GUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sortedWriters()
}

func (r *StatefulReader) sortedWriters() []types.GUID {
	out := make([]types.GUID, 0, len(r.proxies))
	for g := range r.proxies {
		out = append(out, g)
	}
	slices.SortFunc(out, func(a, b types.GUID) int {
		ab, bb := a.Bytes(), b.Bytes()
		return bytes.Compare(ab[:], bb[:])
	})
	return out
}

// addressed 检查子消息的目标读者是否为本读者
func (r *StatefulReader) addressed(readerID types.EntityID) bool {
	return readerID == types.EntityIDUnknown || readerID == r.guid.EntityID
}

// proxyFor 查找子消息来源写者的代理，调用方持有锁
func (r *StatefulReader) proxyFor(source types.GuidPrefix, readerID, writerID types.EntityID) (WriterProxy, bool) {
	if !r.addressed(readerID) {
		return nil, false
	}
	p, ok := r.proxies[types.NewGUID(source, writerID)]
	return p, ok
}

// ============================================================================
//                              子消息处理
// ============================================================================

// ProcessData 处理来自 source 参与者的 Data
//
// ts 为当前 InfoTimestamp 上下文（可为 nil）。未匹配写者的 Data 被忽略并返回 false；
// 无法还原为变更的 Data 返回错误。
func (r *StatefulReader) ProcessData(source types.GuidPrefix, d *messages.Data, ts *types.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.proxyFor(source, d.ReaderID, d.WriterID)
	if !ok {
		return false, nil
	}
	c, err := ChangeFromData(p.RemoteWriterGUID(), d, ts)
	if err != nil {
		return false, fmt.Errorf("data %d from %s: %w", d.WriterSN, p.RemoteWriterGUID(), err)
	}
	r.deliver(p, p.ReceiveData(c))
	return true, nil
}

// ProcessGap 处理 Gap
func (r *StatefulReader) ProcessGap(source types.GuidPrefix, g *messages.Gap) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.proxyFor(source, g.ReaderID, g.WriterID)
	if !ok {
		return false
	}
	r.deliver(p, p.ReceiveGap(g))
	return true
}

// ProcessHeartbeat 处理 Heartbeat
func (r *StatefulReader) ProcessHeartbeat(source types.GuidPrefix, hb *messages.Heartbeat) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.proxyFor(source, hb.ReaderID, hb.WriterID)
	if !ok {
		return false
	}
	r.deliver(p, p.ReceiveHeartbeat(r.clock.Now(), hb))
	r.notify()
	return true
}

// deliver 把释放结果交给 Listener，调用方持有锁
func (r *StatefulReader) deliver(p WriterProxy, d Delivery) {
	if r.listener == nil {
		return
	}
	if d.Lost > 0 {
		r.listener.OnSamplesLost(p.RemoteWriterGUID(), d.Lost)
	}
	for _, c := range d.Released {
		r.listener.OnChange(c)
	}
}

// ============================================================================
//                              驱动
// ============================================================================

// Tick 驱动所有代理一次并发送到期的 AckNack
//
// 每个写者的 AckNack 单独成一个数据报，前置 InfoDestination。发送失败不重试。
func (r *StatefulReader) Tick(ctx context.Context) error {
	type pending struct {
		data     []byte
		locators types.LocatorList
		writer   types.GUID
	}

	r.mu.Lock()
	now := r.clock.Now()
	var out []pending
	for _, guid := range r.sortedWriters() {
		p := r.proxies[guid]
		subs := p.Produce(now)
		if len(subs) == 0 || len(p.Locators()) == 0 {
			continue
		}
		msg := messages.Message{
			Header:      messages.NewHeader(r.guid.Prefix),
			Submessages: append([]messages.Submessage{&messages.InfoDestination{GuidPrefix: guid.Prefix}}, subs...),
		}
		for _, sm := range subs {
			r.reporter.LogSubmessage(metrics.Sent, sm.Kind().String())
		}
		out = append(out, pending{data: msg.Encode(r.endian), locators: p.Locators(), writer: guid})
	}
	r.mu.Unlock()

	var errs error
	for _, o := range out {
		if err := r.sender.Send(ctx, o.data, o.locators); err != nil {
			r.reporter.LogSendError()
			logger.Warn("发送 AckNack 失败", "reader", r.guid.String(), "writer", o.writer.String(), "error", err)
			errs = multierr.Append(errs, fmt.Errorf("send to %s: %w", o.locators.Key(), err))
			continue
		}
		r.reporter.LogSentDatagram(int64(len(o.data)))
	}
	return errs
}
