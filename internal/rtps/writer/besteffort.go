package writer

import (
	"time"

	"github.com/dep2p/go-dds/internal/rtps/history"
	"github.com/dep2p/go-dds/internal/rtps/messages"
	"github.com/dep2p/go-dds/pkg/types"
)

// BestEffortProxy 尽力而为代理
//
// 每个序列号只处理一次，丢失即永久丢失。
type BestEffortProxy struct {
	proxyBase

	unsent    history.SeqSet
	highestSN types.SequenceNumber
}

var _ ReaderProxy = (*BestEffortProxy)(nil)

// NewBestEffortProxy 创建尽力而为代理
func NewBestEffortProxy(writerID types.EntityID, cfg ProxyConfig) *BestEffortProxy {
	return &BestEffortProxy{proxyBase: newProxyBase(writerID, cfg)}
}

// Reliable 实现 ReaderProxy
func (p *BestEffortProxy) Reliable() bool { return false }

// NotifyChange 实现 ReaderProxy
func (p *BestEffortProxy) NotifyChange(sn types.SequenceNumber) {
	p.unsent.Add(sn)
	if sn > p.highestSN {
		p.highestSN = sn
	}
}

// Produce 实现 ReaderProxy
func (p *BestEffortProxy) Produce(_ time.Time, view history.View, _ types.SequenceNumber) []messages.Submessage {
	if p.unsent.IsEmpty() {
		return nil
	}
	sns := p.unsent.Drain()
	out := make([]messages.Submessage, 0, len(sns))
	for _, sn := range sns {
		out = append(out, p.changeOrGap(view, sn))
	}
	return out
}

// ProcessAckNack 实现 ReaderProxy，尽力而为代理忽略确认
func (p *BestEffortProxy) ProcessAckNack(time.Time, *messages.AckNack) bool {
	return false
}

// AckedUpTo 实现 ReaderProxy：已推出的变更即视为不再需要
func (p *BestEffortProxy) AckedUpTo() types.SequenceNumber {
	if min, ok := p.unsent.Min(); ok {
		return min - 1
	}
	return p.highestSN
}

// UnsentCount 返回未发送变更数
func (p *BestEffortProxy) UnsentCount() int {
	return p.unsent.Len()
}
