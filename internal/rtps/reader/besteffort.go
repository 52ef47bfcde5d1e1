package reader

import (
	"time"

	"github.com/dep2p/go-dds/internal/rtps/messages"
	"github.com/dep2p/go-dds/pkg/types"
)

// BestEffortProxy 尽力而为代理
//
// 只接受序列号大于已收到最大值的变更，不发送 AckNack。
type BestEffortProxy struct {
	proxyBase

	highest types.SequenceNumber
}

var _ WriterProxy = (*BestEffortProxy)(nil)

// NewBestEffortProxy 创建尽力而为代理
func NewBestEffortProxy(cfg ProxyConfig) *BestEffortProxy {
	return &BestEffortProxy{proxyBase: newProxyBase(cfg)}
}

// Reliable 实现 WriterProxy
func (p *BestEffortProxy) Reliable() bool { return false }

// ReceiveData 实现 WriterProxy
func (p *BestEffortProxy) ReceiveData(c *types.CacheChange) Delivery {
	if c.SequenceNumber <= p.highest {
		return Delivery{}
	}
	lost := int(c.SequenceNumber - p.highest - 1)
	p.highest = c.SequenceNumber
	return Delivery{Released: []*types.CacheChange{c}, Lost: lost}
}

// ReceiveGap 实现 WriterProxy
//
// 只有紧接已收到最大值的无关序列号才推进接收位置。
func (p *BestEffortProxy) ReceiveGap(g *messages.Gap) Delivery {
	for _, sn := range g.Irrelevant() {
		if sn == p.highest+1 {
			p.highest = sn
		}
	}
	return Delivery{}
}

// ReceiveHeartbeat 实现 WriterProxy
func (p *BestEffortProxy) ReceiveHeartbeat(time.Time, *messages.Heartbeat) Delivery {
	return Delivery{}
}

// Produce 实现 WriterProxy
func (p *BestEffortProxy) Produce(time.Time) []messages.Submessage {
	return nil
}

// HighestReceived 返回已收到的最大序列号
func (p *BestEffortProxy) HighestReceived() types.SequenceNumber {
	return p.highest
}
