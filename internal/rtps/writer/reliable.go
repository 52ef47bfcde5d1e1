package writer

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/dep2p/go-dds/internal/rtps/history"
	"github.com/dep2p/go-dds/internal/rtps/messages"
	"github.com/dep2p/go-dds/pkg/lib/log"
	"github.com/dep2p/go-dds/pkg/types"
)

var logger = log.Logger("rtps/writer")

// ============================================================================
//                              状态
// ============================================================================

// State 可靠代理在某条轨道上的状态
type State int

const (
	// StateIdle 没有未发送也没有未确认的变更
	StateIdle State = iota
	// StatePushing 有未发送变更
	StatePushing
	// StateAnnouncing 全部已发送但仍有未确认变更，周期发送心跳
	StateAnnouncing
	// StateWaiting 没有待修复的请求
	StateWaiting
	// StateMustRepair 有待修复请求，仍在 nack 响应延迟内
	StateMustRepair
	// StateRepairing 响应延迟已过，本次驱动执行修复
	StateRepairing
)

// String 返回状态名
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePushing:
		return "pushing"
	case StateAnnouncing:
		return "announcing"
	case StateWaiting:
		return "waiting"
	case StateMustRepair:
		return "must_repair"
	case StateRepairing:
		return "repairing"
	default:
		return "unknown"
	}
}

// ============================================================================
//                              ReliableProxy
// ============================================================================

// ReliableProxy 可靠代理
//
// 推送轨道：unsent 非空时推送；否则若有未确认变更且距上次发送
// 已满一个心跳周期，发送心跳。
// 修复轨道：AckNack 把请求放入 requested，nack 响应延迟过后
// 按请求重发（不在历史中的发 Gap）。
type ReliableProxy struct {
	proxyBase
	timing Timing

	unsent    history.SeqSet
	requested history.SeqSet

	highestSent types.SequenceNumber
	ackedUpTo   types.SequenceNumber

	lastAckNackCount types.Count
	gotAckNack       bool
	heartbeatCount   types.Count

	lastSent     time.Time
	nackReceived time.Time

	// suppress 限制接受 nack 请求的频率，nil 表示不抑制
	suppress *rate.Limiter
}

var _ ReaderProxy = (*ReliableProxy)(nil)

// NewReliableProxy 创建可靠代理
func NewReliableProxy(writerID types.EntityID, cfg ProxyConfig, timing Timing) *ReliableProxy {
	p := &ReliableProxy{
		proxyBase: newProxyBase(writerID, cfg),
		timing:    timing,
	}
	if timing.NackSuppressionDuration > 0 {
		p.suppress = rate.NewLimiter(rate.Every(timing.NackSuppressionDuration), 1)
	}
	return p
}

// Reliable 实现 ReaderProxy
func (p *ReliableProxy) Reliable() bool { return true }

// NotifyChange 实现 ReaderProxy
func (p *ReliableProxy) NotifyChange(sn types.SequenceNumber) {
	if sn > p.ackedUpTo {
		p.unsent.Add(sn)
	}
}

// PushState 返回推送轨道的状态
func (p *ReliableProxy) PushState(lastSN types.SequenceNumber) State {
	switch {
	case !p.unsent.IsEmpty():
		return StatePushing
	case p.ackedUpTo < lastSN:
		return StateAnnouncing
	default:
		return StateIdle
	}
}

// RepairState 返回修复轨道的状态
func (p *ReliableProxy) RepairState(now time.Time) State {
	switch {
	case p.requested.IsEmpty():
		return StateWaiting
	case now.Sub(p.nackReceived) >= p.timing.NackResponseDelay:
		return StateRepairing
	default:
		return StateMustRepair
	}
}

// Produce 实现 ReaderProxy
//
// 修复的序列号都不大于已发送的最大序列号，放在推送之前，
// 保证一次产出整体按序列号升序。
func (p *ReliableProxy) Produce(now time.Time, view history.View, lastSN types.SequenceNumber) []messages.Submessage {
	var out []messages.Submessage

	if p.RepairState(now) == StateRepairing {
		for _, sn := range p.requested.Drain() {
			out = append(out, p.changeOrGap(view, sn))
		}
		p.lastSent = now
	}

	switch p.PushState(lastSN) {
	case StatePushing:
		for _, sn := range p.unsent.Drain() {
			out = append(out, p.changeOrGap(view, sn))
			if sn > p.highestSent {
				p.highestSent = sn
			}
		}
		p.lastSent = now
	case StateAnnouncing:
		if len(out) > 0 || now.Sub(p.lastSent) >= p.timing.HeartbeatPeriod {
			out = append(out, p.heartbeat(view, lastSN))
			p.lastSent = now
		}
	}
	return out
}

func (p *ReliableProxy) heartbeat(view history.View, lastSN types.SequenceNumber) *messages.Heartbeat {
	first, ok := view.SeqNumMin()
	if !ok {
		first = lastSN + 1
	}
	p.heartbeatCount++
	return &messages.Heartbeat{
		ReaderID: p.remote.EntityID,
		WriterID: p.writerID,
		FirstSN:  first,
		LastSN:   lastSN,
		Count:    p.heartbeatCount,
	}
}

// ProcessAckNack 实现 ReaderProxy
//
// 只接受发给 ENTITYID_UNKNOWN 或本写者的 AckNack；count 不大于
// 上次已处理值的视为重放并忽略。
func (p *ReliableProxy) ProcessAckNack(now time.Time, an *messages.AckNack) bool {
	if an.WriterID != types.EntityIDUnknown && an.WriterID != p.writerID {
		return false
	}
	if p.gotAckNack && an.Count <= p.lastAckNackCount {
		return false
	}
	p.gotAckNack = true
	p.lastAckNackCount = an.Count

	// 读者不能确认尚未发送的变更
	if acked := min(an.ReaderSNState.Base-1, p.highestSent); acked > p.ackedUpTo {
		p.ackedUpTo = acked
	}
	p.requested.RemoveUpTo(p.ackedUpTo)
	p.unsent.RemoveUpTo(p.ackedUpTo)

	var wanted []types.SequenceNumber
	for _, sn := range an.ReaderSNState.Set() {
		// 未发送的变更会由推送轨道处理
		if sn > p.ackedUpTo && sn <= p.highestSent {
			wanted = append(wanted, sn)
		}
	}
	if len(wanted) == 0 {
		return true
	}
	if p.suppress != nil && !p.suppress.AllowN(now, 1) {
		if logger.Enabled(log.LevelDebug) {
			logger.Debug("nack 被抑制", "reader", p.remote.String(), "count", an.Count)
		}
		return true
	}

	if p.requested.IsEmpty() {
		p.nackReceived = now
	}
	for _, sn := range wanted {
		p.requested.Add(sn)
	}
	return true
}

// AckedUpTo 实现 ReaderProxy
func (p *ReliableProxy) AckedUpTo() types.SequenceNumber {
	return p.ackedUpTo
}

// Requested 返回待修复的序列号
func (p *ReliableProxy) Requested() []types.SequenceNumber {
	return p.requested.Items()
}

// UnsentCount 返回未发送变更数
func (p *ReliableProxy) UnsentCount() int {
	return p.unsent.Len()
}
