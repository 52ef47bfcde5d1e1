package writer

import (
	"bytes"
	"context"
	"slices"

	"github.com/dep2p/go-dds/internal/rtps/messages"
	"github.com/dep2p/go-dds/pkg/qos"
	"github.com/dep2p/go-dds/pkg/types"
)

// Config 有状态写者配置
type Config struct {
	// GUID 写者 GUID
	GUID types.GUID

	// Reliability 写者提供的可靠性
	Reliability qos.ReliabilityKind

	// Timing 可靠代理的定时参数
	Timing Timing
}

// StatefulWriter 为每个匹配读者维护代理的写者
type StatefulWriter struct {
	core

	reliability qos.ReliabilityKind
	timing      Timing
	proxies     map[types.GUID]ReaderProxy
}

// NewStatefulWriter 创建有状态写者
func NewStatefulWriter(cfg Config, opts Options) *StatefulWriter {
	return &StatefulWriter{
		core:        newCore(cfg.GUID, opts),
		reliability: cfg.Reliability,
		timing:      cfg.Timing,
		proxies:     make(map[types.GUID]ReaderProxy),
	}
}

// Reliability 返回写者可靠性
func (w *StatefulWriter) Reliability() qos.ReliabilityKind {
	return w.reliability
}

// MatchReader 添加匹配读者
//
// 写者与读者都为 RELIABLE 时创建可靠代理，否则创建尽力而为代理。
// 历史中已有的变更全部标记为未发送。重复匹配同一读者时保留原代理。
func (w *StatefulWriter) MatchReader(cfg ProxyConfig, requested qos.ReliabilityKind) ReaderProxy {
	w.mu.Lock()
	defer w.mu.Unlock()

	if p, ok := w.proxies[cfg.RemoteReaderGUID]; ok {
		return p
	}

	var p ReaderProxy
	if w.reliability == qos.Reliable && requested == qos.Reliable {
		p = NewReliableProxy(w.guid.EntityID, cfg, w.timing)
	} else {
		p = NewBestEffortProxy(w.guid.EntityID, cfg)
	}
	w.history.Range(func(c *types.CacheChange) bool {
		p.NotifyChange(c.SequenceNumber)
		return true
	})
	w.proxies[cfg.RemoteReaderGUID] = p

	logger.Debug("匹配读者", "writer", w.guid.String(), "reader", cfg.RemoteReaderGUID.String(),
		"reliable", p.Reliable(), "locators", cfg.Locators.Key())
	w.notify()
	return p
}

// UnmatchReader 移除匹配读者，放弃其全部未完成的投递义务
func (w *StatefulWriter) UnmatchReader(guid types.GUID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.proxies[guid]; !ok {
		return false
	}
	delete(w.proxies, guid)
	logger.Debug("取消匹配读者", "writer", w.guid.String(), "reader", guid.String())
	return true
}

// MatchedReaders 返回已匹配读者（按 GUID 排序）
func (w *StatefulWriter) MatchedReaders() []types.GUID {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sortedReaders()
}

func (w *StatefulWriter) sortedReaders() []types.GUID {
	out := make([]types.GUID, 0, len(w.proxies))
	for g := range w.proxies {
		out = append(out, g)
	}
	slices.SortFunc(out, func(a, b types.GUID) int {
		ab, bb := a.Bytes(), b.Bytes()
		return bytes.Compare(ab[:], bb[:])
	})
	return out
}

// NewChange 分配序列号、写入历史并通知所有代理
func (w *StatefulWriter) NewChange(kind types.ChangeKind, handle types.InstanceHandle, data []byte, ts *types.Time) *types.CacheChange {
	w.mu.Lock()
	defer w.mu.Unlock()

	c := w.newChange(kind, handle, data, ts)
	for _, p := range w.proxies {
		p.NotifyChange(c.SequenceNumber)
	}
	w.notify()
	return c
}

// ProcessAckNack 把 AckNack 交给发送它的读者的代理
//
// source 为 AckNack 所在消息的 GuidPrefix。未匹配的读者被忽略。
func (w *StatefulWriter) ProcessAckNack(source types.GuidPrefix, an *messages.AckNack) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	p, ok := w.proxies[types.NewGUID(source, an.ReaderID)]
	if !ok {
		return false
	}
	if !p.ProcessAckNack(w.clock.Now(), an) {
		return false
	}
	w.notify()
	return true
}

// IsAckedByAll 检查序列号是否已被所有可靠读者确认
func (w *StatefulWriter) IsAckedByAll(sn types.SequenceNumber) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, p := range w.proxies {
		if p.Reliable() && p.AckedUpTo() < sn {
			return false
		}
	}
	return true
}

// RemoveAcknowledged 移除所有读者都不再需要的变更，返回移除数量
//
// 没有匹配读者时不移除任何变更。
func (w *StatefulWriter) RemoveAcknowledged() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.proxies) == 0 {
		return 0
	}
	upTo := w.lastSN
	for _, p := range w.proxies {
		if a := p.AckedUpTo(); a < upTo {
			upTo = a
		}
	}
	return w.history.RemoveUpTo(upTo)
}

// Tick 驱动所有代理一次并发送产出
func (w *StatefulWriter) Tick(ctx context.Context) error {
	w.mu.Lock()
	now := w.clock.Now()
	var outs []outbound
	for _, guid := range w.sortedReaders() {
		p := w.proxies[guid]
		subs := p.Produce(now, w.history, w.lastSN)
		if len(subs) == 0 {
			continue
		}
		outs = append(outs, outbound{locators: p.Locators(), dst: guid.Prefix, subs: subs})
	}
	dgs := w.build(outs)
	w.mu.Unlock()

	return w.send(ctx, dgs)
}
