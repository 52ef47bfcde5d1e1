// Package receiver 解码数据报并把子消息路由到本地端点
//
// 每个数据报维护独立的接收上下文：源 GuidPrefix 来自消息头，
// InfoDestination 改变目标前缀，InfoTimestamp 设置或清除
// 之后 Data 的源时间戳。目标前缀不是本参与者时，
// 直到下一个 InfoDestination 之前的子消息都被跳过。
//
// 格式错误的子消息被丢弃并计入指标，同一数据报中其余子消息照常处理。
package receiver

import (
	"sync"

	"go.uber.org/multierr"

	"github.com/dep2p/go-dds/internal/metrics"
	"github.com/dep2p/go-dds/internal/rtps/messages"
	"github.com/dep2p/go-dds/pkg/lib/log"
	"github.com/dep2p/go-dds/pkg/types"
)

var logger = log.Logger("rtps/receiver")

// WriterEndpoint 接收 AckNack 的本地写者
type WriterEndpoint interface {
	GUID() types.GUID
	ProcessAckNack(source types.GuidPrefix, an *messages.AckNack) bool
}

// ReaderEndpoint 接收 Data/Gap/Heartbeat 的本地读者
type ReaderEndpoint interface {
	GUID() types.GUID
	ProcessData(source types.GuidPrefix, d *messages.Data, ts *types.Time) (bool, error)
	ProcessGap(source types.GuidPrefix, g *messages.Gap) bool
	ProcessHeartbeat(source types.GuidPrefix, hb *messages.Heartbeat) bool
}

// Receiver 本参与者的消息接收者
type Receiver struct {
	prefix   types.GuidPrefix
	reporter metrics.Reporter

	mu      sync.RWMutex
	writers map[types.EntityID]WriterEndpoint
	readers map[types.EntityID]ReaderEndpoint
}

// New 创建接收者
func New(prefix types.GuidPrefix, reporter metrics.Reporter) *Receiver {
	if reporter == nil {
		reporter = (*metrics.Counter)(nil)
	}
	return &Receiver{
		prefix:   prefix,
		reporter: reporter,
		writers:  make(map[types.EntityID]WriterEndpoint),
		readers:  make(map[types.EntityID]ReaderEndpoint),
	}
}

// AddWriter 注册本地写者
func (r *Receiver) AddWriter(w WriterEndpoint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writers[w.GUID().EntityID] = w
}

// RemoveWriter 注销本地写者
func (r *Receiver) RemoveWriter(id types.EntityID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.writers, id)
}

// AddReader 注册本地读者
func (r *Receiver) AddReader(rd ReaderEndpoint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.readers[rd.GUID().EntityID] = rd
}

// RemoveReader 注销本地读者
func (r *Receiver) RemoveReader(id types.EntityID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.readers, id)
}

// receiveState 单个数据报的接收上下文
type receiveState struct {
	source    types.GuidPrefix
	dest      types.GuidPrefix
	timestamp *types.Time
}

// Handle 处理一个数据报，签名与 transport.Handler 一致
func (r *Receiver) Handle(datagram []byte, from types.Locator) {
	r.reporter.LogRecvDatagram(int64(len(datagram)))

	msg, err := messages.Decode(datagram)
	if msg == nil {
		r.reporter.LogDecodeError()
		logger.Debug("丢弃数据报", "from", from.String(), "error", err)
		return
	}
	if err != nil {
		for range multierr.Errors(err) {
			r.reporter.LogDecodeError()
		}
		logger.Debug("丢弃子消息", "from", from.String(), "source", msg.Header.GuidPrefix.String(), "error", err)
	}

	st := receiveState{source: msg.Header.GuidPrefix, dest: r.prefix}
	for _, sm := range msg.Submessages {
		r.reporter.LogSubmessage(metrics.Received, sm.Kind().String())
		r.dispatch(&st, sm)
	}
}

func (r *Receiver) dispatch(st *receiveState, sm messages.Submessage) {
	switch m := sm.(type) {
	case *messages.InfoDestination:
		if m.GuidPrefix.IsUnknown() {
			st.dest = r.prefix
		} else {
			st.dest = m.GuidPrefix
		}
		return
	case *messages.InfoTimestamp:
		if m.Invalidate {
			st.timestamp = nil
		} else {
			ts := m.Timestamp
			st.timestamp = &ts
		}
		return
	}

	if st.dest != r.prefix {
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	switch m := sm.(type) {
	case *messages.Data:
		for _, rd := range r.readersFor(m.ReaderID) {
			if _, err := rd.ProcessData(st.source, m, st.timestamp); err != nil {
				r.reporter.LogDecodeError()
				logger.Debug("丢弃 Data", "reader", rd.GUID().String(), "error", err)
			}
		}
	case *messages.Gap:
		for _, rd := range r.readersFor(m.ReaderID) {
			rd.ProcessGap(st.source, m)
		}
	case *messages.Heartbeat:
		for _, rd := range r.readersFor(m.ReaderID) {
			rd.ProcessHeartbeat(st.source, m)
		}
	case *messages.AckNack:
		for _, w := range r.writersFor(m.WriterID) {
			w.ProcessAckNack(st.source, m)
		}
	}
}

// readersFor 返回目标读者，ENTITYID_UNKNOWN 表示全部读者，调用方持有读锁
func (r *Receiver) readersFor(id types.EntityID) []ReaderEndpoint {
	if id != types.EntityIDUnknown {
		if rd, ok := r.readers[id]; ok {
			return []ReaderEndpoint{rd}
		}
		return nil
	}
	out := make([]ReaderEndpoint, 0, len(r.readers))
	for _, rd := range r.readers {
		out = append(out, rd)
	}
	return out
}

// writersFor 返回目标写者，调用方持有读锁
func (r *Receiver) writersFor(id types.EntityID) []WriterEndpoint {
	if id != types.EntityIDUnknown {
		if w, ok := r.writers[id]; ok {
			return []WriterEndpoint{w}
		}
		return nil
	}
	out := make([]WriterEndpoint, 0, len(r.writers))
	for _, w := range r.writers {
		out = append(out, w)
	}
	return out
}
