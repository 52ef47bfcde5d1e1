package messages

import (
	"fmt"

	"github.com/dep2p/go-dds/pkg/types"
)

// ============================================================================
//                              子消息种类与标志
// ============================================================================

// SubmessageKind 子消息标识
type SubmessageKind uint8

// 子消息标识
const (
	KindPad             SubmessageKind = 0x01
	KindAckNack         SubmessageKind = 0x06
	KindHeartbeat       SubmessageKind = 0x07
	KindGap             SubmessageKind = 0x08
	KindInfoTimestamp   SubmessageKind = 0x09
	KindInfoSource      SubmessageKind = 0x0c
	KindInfoDestination SubmessageKind = 0x0e
	KindNackFrag        SubmessageKind = 0x12
	KindHeartbeatFrag   SubmessageKind = 0x13
	KindData            SubmessageKind = 0x15
	KindDataFrag        SubmessageKind = 0x16
)

// String 返回子消息名称
func (k SubmessageKind) String() string {
	switch k {
	case KindPad:
		return "PAD"
	case KindAckNack:
		return "ACKNACK"
	case KindHeartbeat:
		return "HEARTBEAT"
	case KindGap:
		return "GAP"
	case KindInfoTimestamp:
		return "INFO_TS"
	case KindInfoSource:
		return "INFO_SRC"
	case KindInfoDestination:
		return "INFO_DST"
	case KindNackFrag:
		return "NACK_FRAG"
	case KindHeartbeatFrag:
		return "HEARTBEAT_FRAG"
	case KindData:
		return "DATA"
	case KindDataFrag:
		return "DATA_FRAG"
	default:
		return fmt.Sprintf("UNKNOWN(0x%02x)", uint8(k))
	}
}

const (
	flagEndianness uint8 = 0x01

	flagAckNackFinal uint8 = 0x02

	flagHeartbeatFinal      uint8 = 0x02
	flagHeartbeatLiveliness uint8 = 0x04

	flagDataInlineQos uint8 = 0x02
	flagDataData      uint8 = 0x04
	flagDataKey       uint8 = 0x08

	flagInfoTsInvalidate uint8 = 0x02
)

// Submessage 子消息
type Submessage interface {
	// Kind 返回子消息标识
	Kind() SubmessageKind

	flags() uint8
	encodeBody(w *writer)
}

// ============================================================================
//                              AckNack
// ============================================================================

// AckNack 读者确认 ReaderSNState.Base 之前的全部变更并请求集合中的变更
type AckNack struct {
	ReaderID      types.EntityID
	WriterID      types.EntityID
	ReaderSNState SequenceNumberSet
	Count         types.Count
	Final         bool
}

// Kind 实现 Submessage
func (*AckNack) Kind() SubmessageKind { return KindAckNack }

func (m *AckNack) flags() uint8 {
	if m.Final {
		return flagAckNackFinal
	}
	return 0
}

func (m *AckNack) encodeBody(w *writer) {
	w.entityID(m.ReaderID)
	w.entityID(m.WriterID)
	w.sequenceNumberSet(m.ReaderSNState)
	w.i32(int32(m.Count))
}

func decodeAckNack(r *reader, flags uint8) (*AckNack, error) {
	m := &AckNack{Final: flags&flagAckNackFinal != 0}
	var err error
	if m.ReaderID, err = r.entityID("acknack reader id"); err != nil {
		return nil, err
	}
	if m.WriterID, err = r.entityID("acknack writer id"); err != nil {
		return nil, err
	}
	if m.ReaderSNState, err = r.sequenceNumberSet("acknack reader sn state"); err != nil {
		return nil, err
	}
	// 序列号从 1 开始，base 至少为 1
	if m.ReaderSNState.Base < 1 {
		return nil, fmt.Errorf("%w: acknack base %d", ErrInvalidData, m.ReaderSNState.Base)
	}
	count, err := r.i32("acknack count")
	if err != nil {
		return nil, err
	}
	m.Count = types.Count(count)
	return m, nil
}

// ============================================================================
//                              Heartbeat
// ============================================================================

// Heartbeat 写者宣告 [FirstSN, LastSN] 可用
type Heartbeat struct {
	ReaderID   types.EntityID
	WriterID   types.EntityID
	FirstSN    types.SequenceNumber
	LastSN     types.SequenceNumber
	Count      types.Count
	Final      bool
	Liveliness bool
}

// Kind 实现 Submessage
func (*Heartbeat) Kind() SubmessageKind { return KindHeartbeat }

func (m *Heartbeat) flags() uint8 {
	var f uint8
	if m.Final {
		f |= flagHeartbeatFinal
	}
	if m.Liveliness {
		f |= flagHeartbeatLiveliness
	}
	return f
}

func (m *Heartbeat) encodeBody(w *writer) {
	w.entityID(m.ReaderID)
	w.entityID(m.WriterID)
	w.sequenceNumber(m.FirstSN)
	w.sequenceNumber(m.LastSN)
	w.i32(int32(m.Count))
}

func decodeHeartbeat(r *reader, flags uint8) (*Heartbeat, error) {
	m := &Heartbeat{
		Final:      flags&flagHeartbeatFinal != 0,
		Liveliness: flags&flagHeartbeatLiveliness != 0,
	}
	var err error
	if m.ReaderID, err = r.entityID("heartbeat reader id"); err != nil {
		return nil, err
	}
	if m.WriterID, err = r.entityID("heartbeat writer id"); err != nil {
		return nil, err
	}
	if m.FirstSN, err = r.sequenceNumber("heartbeat first sn"); err != nil {
		return nil, err
	}
	if m.LastSN, err = r.sequenceNumber("heartbeat last sn"); err != nil {
		return nil, err
	}
	// 空区间表示为 LastSN = FirstSN - 1
	if m.FirstSN < 1 || m.LastSN < m.FirstSN-1 {
		return nil, fmt.Errorf("%w: heartbeat range [%d, %d]", ErrInvalidData, m.FirstSN, m.LastSN)
	}
	count, err := r.i32("heartbeat count")
	if err != nil {
		return nil, err
	}
	m.Count = types.Count(count)
	return m, nil
}

// ============================================================================
//                              Gap
// ============================================================================

// Gap 告知 [GapStart, GapList.Base) 以及 GapList 中的序列号不再可用
type Gap struct {
	ReaderID types.EntityID
	WriterID types.EntityID
	GapStart types.SequenceNumber
	GapList  SequenceNumberSet
}

// NewGap 创建只跳过单个序列号的 Gap
func NewGap(readerID, writerID types.EntityID, sn types.SequenceNumber) *Gap {
	return &Gap{
		ReaderID: readerID,
		WriterID: writerID,
		GapStart: sn,
		GapList:  SequenceNumberSet{Base: sn + 1},
	}
}

// Irrelevant 返回该 Gap 覆盖的全部序列号
func (m *Gap) Irrelevant() []types.SequenceNumber {
	var out []types.SequenceNumber
	for sn := m.GapStart; sn < m.GapList.Base; sn++ {
		out = append(out, sn)
	}
	return append(out, m.GapList.Set()...)
}

// Kind 实现 Submessage
func (*Gap) Kind() SubmessageKind { return KindGap }

func (*Gap) flags() uint8 { return 0 }

func (m *Gap) encodeBody(w *writer) {
	w.entityID(m.ReaderID)
	w.entityID(m.WriterID)
	w.sequenceNumber(m.GapStart)
	w.sequenceNumberSet(m.GapList)
}

func decodeGap(r *reader) (*Gap, error) {
	m := &Gap{}
	var err error
	if m.ReaderID, err = r.entityID("gap reader id"); err != nil {
		return nil, err
	}
	if m.WriterID, err = r.entityID("gap writer id"); err != nil {
		return nil, err
	}
	if m.GapStart, err = r.sequenceNumber("gap start"); err != nil {
		return nil, err
	}
	if m.GapList, err = r.sequenceNumberSet("gap list"); err != nil {
		return nil, err
	}
	if m.GapStart < 1 {
		return nil, fmt.Errorf("%w: gap start %d", ErrInvalidData, m.GapStart)
	}
	if m.GapList.Base < m.GapStart {
		return nil, fmt.Errorf("%w: gap list base %d below gap start %d", ErrInvalidData, m.GapList.Base, m.GapStart)
	}
	// 限制区间长度，防止对端用一个 Gap 触发超大循环
	if span := uint64(m.GapList.Base - m.GapStart); span > maxGapRange {
		return nil, fmt.Errorf("%w: gap range %d too large", ErrInvalidData, span)
	}
	return m, nil
}

const maxGapRange = 1 << 16

// ============================================================================
//                              Data
// ============================================================================

// Data 携带一个变更
//
// Key 为 true 时 SerializedPayload 是序列化键（生命周期事件），
// 否则是完整样本。InlineQos 为 nil 表示不携带内联 QoS。
type Data struct {
	ReaderID          types.EntityID
	WriterID          types.EntityID
	WriterSN          types.SequenceNumber
	InlineQos         ParameterList
	SerializedPayload []byte
	Key               bool
}

const dataOctetsToInlineQos = 16

// Kind 实现 Submessage
func (*Data) Kind() SubmessageKind { return KindData }

func (m *Data) flags() uint8 {
	var f uint8
	if m.InlineQos != nil {
		f |= flagDataInlineQos
	}
	if len(m.SerializedPayload) > 0 {
		if m.Key {
			f |= flagDataKey
		} else {
			f |= flagDataData
		}
	}
	return f
}

func (m *Data) encodeBody(w *writer) {
	w.u16(0) // extraFlags
	w.u16(dataOctetsToInlineQos)
	w.entityID(m.ReaderID)
	w.entityID(m.WriterID)
	w.sequenceNumber(m.WriterSN)
	if m.InlineQos != nil {
		w.parameterList(m.InlineQos)
	}
	if len(m.SerializedPayload) > 0 {
		w.bytes(m.SerializedPayload)
		w.pad4()
	}
}

func decodeData(r *reader, flags uint8) (*Data, error) {
	m := &Data{Key: flags&flagDataKey != 0}
	if _, err := r.u16("data extra flags"); err != nil {
		return nil, err
	}
	octetsToInlineQos, err := r.u16("data octets to inline qos")
	if err != nil {
		return nil, err
	}
	start := r.pos
	if m.ReaderID, err = r.entityID("data reader id"); err != nil {
		return nil, err
	}
	if m.WriterID, err = r.entityID("data writer id"); err != nil {
		return nil, err
	}
	if m.WriterSN, err = r.sequenceNumber("data writer sn"); err != nil {
		return nil, err
	}
	if m.WriterSN < 1 {
		return nil, fmt.Errorf("%w: data writer sn %d", ErrInvalidData, m.WriterSN)
	}
	if int(octetsToInlineQos) < r.pos-start {
		return nil, fmt.Errorf("%w: octets to inline qos %d", ErrInvalidData, octetsToInlineQos)
	}
	if err := r.skip(int(octetsToInlineQos)-(r.pos-start), "data header extension"); err != nil {
		return nil, err
	}
	if flags&flagDataInlineQos != 0 {
		if m.InlineQos, err = r.parameterList(); err != nil {
			return nil, err
		}
		if m.InlineQos == nil {
			m.InlineQos = ParameterList{}
		}
	}
	if flags&(flagDataData|flagDataKey) != 0 {
		payload, _ := r.bytes(r.remaining(), "data payload")
		m.SerializedPayload = append([]byte(nil), payload...)
	}
	return m, nil
}

// ============================================================================
//                              InfoTimestamp / InfoDestination
// ============================================================================

// InfoTimestamp 为同一消息中的后续子消息设置源时间戳
type InfoTimestamp struct {
	Timestamp  types.Time
	Invalidate bool
}

// Kind 实现 Submessage
func (*InfoTimestamp) Kind() SubmessageKind { return KindInfoTimestamp }

func (m *InfoTimestamp) flags() uint8 {
	if m.Invalidate {
		return flagInfoTsInvalidate
	}
	return 0
}

func (m *InfoTimestamp) encodeBody(w *writer) {
	if !m.Invalidate {
		w.time(m.Timestamp)
	}
}

func decodeInfoTimestamp(r *reader, flags uint8) (*InfoTimestamp, error) {
	m := &InfoTimestamp{Invalidate: flags&flagInfoTsInvalidate != 0}
	if m.Invalidate {
		return m, nil
	}
	var err error
	if m.Timestamp, err = r.time("info timestamp"); err != nil {
		return nil, err
	}
	return m, nil
}

// InfoDestination 为同一消息中的后续子消息设置目标参与者
type InfoDestination struct {
	GuidPrefix types.GuidPrefix
}

// Kind 实现 Submessage
func (*InfoDestination) Kind() SubmessageKind { return KindInfoDestination }

func (*InfoDestination) flags() uint8 { return 0 }

func (m *InfoDestination) encodeBody(w *writer) {
	w.bytes(m.GuidPrefix[:])
}

func decodeInfoDestination(r *reader) (*InfoDestination, error) {
	b, err := r.bytes(12, "info destination guid prefix")
	if err != nil {
		return nil, err
	}
	return &InfoDestination{GuidPrefix: types.GuidPrefix(b)}, nil
}

// ============================================================================
//                              分派
// ============================================================================

// decodeBody 解码子消息体，未知或不处理的种类返回 nil, nil
func decodeBody(kind SubmessageKind, flags uint8, body []byte) (Submessage, error) {
	r := newReader(endiannessFromFlags(flags), body)
	switch kind {
	case KindAckNack:
		return decodeAckNack(r, flags)
	case KindHeartbeat:
		return decodeHeartbeat(r, flags)
	case KindGap:
		return decodeGap(r)
	case KindData:
		return decodeData(r, flags)
	case KindInfoTimestamp:
		return decodeInfoTimestamp(r, flags)
	case KindInfoDestination:
		return decodeInfoDestination(r)
	default:
		return nil, nil
	}
}
