package reader

import (
	"time"

	"github.com/dep2p/go-dds/internal/rtps/history"
	"github.com/dep2p/go-dds/internal/rtps/messages"
	"github.com/dep2p/go-dds/pkg/lib/log"
	"github.com/dep2p/go-dds/pkg/types"
)

var logger = log.Logger("rtps/reader")

// ReliableProxy 可靠代理
//
// 不变量：released 及之前的所有序列号都已交付或被确认为无关/丢失；
// buffer 与 irrelevant 只包含大于 released 的序列号。
type ReliableProxy struct {
	proxyBase

	readerID types.EntityID
	timing   Timing

	released   types.SequenceNumber
	available  types.SequenceNumber
	buffer     *history.HistoryCache
	irrelevant history.SeqSet

	gotHeartbeat       bool
	lastHeartbeatCount types.Count

	mustAck      bool
	ackDue       time.Time
	ackNackCount types.Count
}

var _ WriterProxy = (*ReliableProxy)(nil)

// NewReliableProxy 创建可靠代理
func NewReliableProxy(readerID types.EntityID, cfg ProxyConfig, timing Timing) *ReliableProxy {
	return &ReliableProxy{
		proxyBase: newProxyBase(cfg),
		readerID:  readerID,
		timing:    timing,
		buffer:    history.New(),
	}
}

// Reliable 实现 WriterProxy
func (p *ReliableProxy) Reliable() bool { return true }

// maxAhead 缓冲区最多超前 released 的序列号跨度
//
// 与 AckNack 能表示的窗口一致，超出部分由之后的修复重新获取。
const maxAhead = messages.SequenceNumberSetWindow

// ReceiveData 实现 WriterProxy
//
// 重复的变更被忽略；乱序到达的变更先缓冲，补齐前面的序列号后再释放。
// 超出 released+maxAhead 的变更被丢弃。
func (p *ReliableProxy) ReceiveData(c *types.CacheChange) Delivery {
	sn := c.SequenceNumber
	if sn <= p.released || p.irrelevant.Contains(sn) {
		return Delivery{}
	}
	if sn-p.released > maxAhead {
		logger.Debug("变更超出接收窗口", "writer", p.remote.String(), "seq", sn, "released", p.released)
		return Delivery{}
	}
	if !p.buffer.AddChange(c) {
		return Delivery{}
	}
	if sn > p.available {
		p.available = sn
	}
	return Delivery{Released: p.release()}
}

// ReceiveGap 实现 WriterProxy
func (p *ReliableProxy) ReceiveGap(g *messages.Gap) Delivery {
	for _, sn := range g.Irrelevant() {
		if sn <= p.released || sn-p.released > maxAhead {
			continue
		}
		// 已缓冲的变更仍然有效
		if _, ok := p.buffer.Get(sn); ok {
			continue
		}
		p.irrelevant.Add(sn)
		if sn > p.available {
			p.available = sn
		}
	}
	return Delivery{Released: p.release()}
}

// ReceiveHeartbeat 实现 WriterProxy
//
// count 不大于上次已处理值的 Heartbeat 被忽略。FirstSN 之前仍缺失的
// 变更已被写者移除，计为丢失。
func (p *ReliableProxy) ReceiveHeartbeat(now time.Time, hb *messages.Heartbeat) Delivery {
	if p.gotHeartbeat && hb.Count <= p.lastHeartbeatCount {
		return Delivery{}
	}
	if hb.FirstSN < 1 || hb.LastSN < hb.FirstSN-1 {
		return Delivery{}
	}
	p.gotHeartbeat = true
	p.lastHeartbeatCount = hb.Count

	var d Delivery
	if hb.FirstSN-1 > p.released {
		d = p.skipTo(hb.FirstSN - 1)
	}
	if hb.LastSN > p.available {
		p.available = hb.LastSN
	}
	d.Released = append(d.Released, p.release()...)

	if !hb.Final || len(p.Missing()) > 0 {
		if !p.mustAck {
			p.mustAck = true
			p.ackDue = now.Add(p.timing.HeartbeatResponseDelay)
		}
	}
	return d
}

// skipTo 把 upTo 及之前的序列号视为不可再得：已缓冲的按序释放，其余计为丢失
func (p *ReliableProxy) skipTo(upTo types.SequenceNumber) Delivery {
	var d Delivery
	received := 0
	p.buffer.Range(func(c *types.CacheChange) bool {
		if c.SequenceNumber > upTo {
			return false
		}
		d.Released = append(d.Released, c)
		return true
	})
	received += len(d.Released)
	p.buffer.RemoveUpTo(upTo)

	for _, sn := range p.irrelevant.Items() {
		if sn > upTo {
			break
		}
		received++
	}
	p.irrelevant.RemoveUpTo(upTo)

	d.Lost = int(upTo-p.released) - received
	if d.Lost > 0 {
		logger.Debug("变更丢失", "writer", p.remote.String(), "from", p.released+1, "to", upTo, "lost", d.Lost)
	}
	p.released = upTo
	if p.available < upTo {
		p.available = upTo
	}
	return d
}

// release 释放紧接 released 的连续变更
func (p *ReliableProxy) release() []*types.CacheChange {
	var out []*types.CacheChange
	for {
		next := p.released + 1
		if c, ok := p.buffer.RemoveSequenceNumber(next); ok {
			out = append(out, c)
		} else if !p.irrelevant.Remove(next) {
			return out
		}
		p.released = next
	}
}

// Missing 返回 (released, available] 中既未收到也未被标记无关的序列号
//
// 结果截断到一个 SequenceNumberSet 窗口内。
func (p *ReliableProxy) Missing() []types.SequenceNumber {
	var out []types.SequenceNumber
	limit := p.released + messages.SequenceNumberSetWindow
	for sn := p.released + 1; sn <= p.available && sn <= limit; sn++ {
		if _, ok := p.buffer.Get(sn); ok {
			continue
		}
		if p.irrelevant.Contains(sn) {
			continue
		}
		out = append(out, sn)
	}
	return out
}

// Produce 实现 WriterProxy
func (p *ReliableProxy) Produce(now time.Time) []messages.Submessage {
	if !p.mustAck || now.Before(p.ackDue) {
		return nil
	}
	p.mustAck = false

	missing := p.Missing()
	set, err := messages.NewSequenceNumberSet(p.released+1, missing...)
	if err != nil {
		// Missing 已限定在窗口内
		panic(err)
	}
	p.ackNackCount++
	return []messages.Submessage{&messages.AckNack{
		ReaderID:      p.readerID,
		WriterID:      p.remote.EntityID,
		ReaderSNState: set,
		Count:         p.ackNackCount,
		Final:         len(missing) == 0,
	}}
}

// Released 返回已连续交付（或跳过）的最大序列号
func (p *ReliableProxy) Released() types.SequenceNumber {
	return p.released
}

// Buffered 返回等待前序变更的缓冲数量
func (p *ReliableProxy) Buffered() int {
	return p.buffer.Len()
}
