package dds

import (
	"context"
	"fmt"
	"time"

	"github.com/dep2p/go-dds/internal/dcps/datareader"
	"github.com/dep2p/go-dds/internal/dcps/datawriter"
	"github.com/dep2p/go-dds/internal/dcps/typesupport"
	"github.com/dep2p/go-dds/internal/participant"
	"github.com/dep2p/go-dds/pkg/cdr"
	"github.com/dep2p/go-dds/pkg/qos"
	"github.com/dep2p/go-dds/pkg/types"
)

// ============================================================================
//                              类型描述
// ============================================================================

// Codec 类型 T 的 CDR 编解码函数
//
// MarshalKey 为 nil 表示无键类型，所有样本属于同一个实例。
type Codec[T any] struct {
	Marshal    func(enc *cdr.Encoder, v T) error
	Unmarshal  func(dec *cdr.Decoder) (T, error)
	MarshalKey func(enc *cdr.Encoder, v T) error
}

// Type 主题数据类型
type Type[T any] struct {
	ts *typesupport.Type[T]
}

// NewType 创建主题数据类型
func NewType[T any](name string, codec Codec[T]) *Type[T] {
	return &Type[T]{ts: typesupport.New(name, typesupport.Codec[T](codec))}
}

// Name 返回类型名
func (t *Type[T]) Name() string {
	return t.ts.TypeName()
}

// HasKey 检查类型是否带键
func (t *Type[T]) HasKey() bool {
	return t.ts.HasKey()
}

// InstanceHandle 计算 v 所属实例的句柄
func (t *Type[T]) InstanceHandle(v T) (types.InstanceHandle, error) {
	key, err := t.ts.Key(v)
	if err != nil {
		return types.HandleNil, err
	}
	if key == nil {
		return types.HandleNil, nil
	}
	return typesupport.KeyHash(key), nil
}

// ============================================================================
//                              查询与样本
// ============================================================================

type (
	// Query read/take 筛选条件
	Query = datareader.Query
	// SampleInfo 样本元信息
	SampleInfo = datareader.SampleInfo
	// SampleState 样本状态
	SampleState = datareader.SampleState
	// ViewState 视图状态
	ViewState = datareader.ViewState
	// InstanceState 实例状态
	InstanceState = datareader.InstanceState

	// WriterInfo 写者的匹配描述
	WriterInfo = participant.WriterInfo
	// ReaderInfo 读者的匹配描述
	ReaderInfo = participant.ReaderInfo
)

// AnyQuery 返回不做任何限制的查询
func AnyQuery() Query {
	return datareader.AnyQuery()
}

// NotReadQuery 返回只取未读样本的查询
func NotReadQuery() Query {
	q := datareader.AnyQuery()
	q.SampleStates = datareader.SampleStateNotRead
	return q
}

// Sample 类型化样本
//
// Info.ValidData 为 false 时 Value 为零值，样本只表示实例状态变化。
type Sample[T any] struct {
	Value T
	Info  SampleInfo
}

// ============================================================================
//                              Writer
// ============================================================================

// Writer 类型化写者
type Writer[T any] struct {
	domain *Domain
	typ    *Type[T]
	dw     *datawriter.DataWriter
}

// CreateWriter 在域上创建写者
func CreateWriter[T any](d *Domain, t *Type[T], q qos.WriterQos) (*Writer[T], error) {
	dw, err := d.participant.CreateWriter(q, t.ts)
	if err != nil {
		return nil, err
	}
	return &Writer[T]{domain: d, typ: t, dw: dw}, nil
}

// GUID 返回写者 GUID
func (w *Writer[T]) GUID() types.GUID {
	return w.dw.GUID()
}

// Info 返回写者的匹配描述，供远端读者匹配
func (w *Writer[T]) Info() WriterInfo {
	return w.domain.participant.DescribeWriter(w.dw)
}

// Write 以当前时间为源时间戳发布样本
func (w *Writer[T]) Write(v T) (types.InstanceHandle, error) {
	payload, err := w.typ.ts.Serialize(v)
	if err != nil {
		return types.HandleNil, err
	}
	return w.dw.Write(payload)
}

// WriteWithTimestamp 以指定源时间戳发布样本
func (w *Writer[T]) WriteWithTimestamp(v T, at time.Time) (types.InstanceHandle, error) {
	payload, err := w.typ.ts.Serialize(v)
	if err != nil {
		return types.HandleNil, err
	}
	return w.dw.WriteWithTimestamp(payload, at)
}

// Register 注册 v 所属的实例
func (w *Writer[T]) Register(v T) (types.InstanceHandle, error) {
	payload, err := w.typ.ts.Serialize(v)
	if err != nil {
		return types.HandleNil, err
	}
	return w.dw.RegisterInstance(payload)
}

// Dispose 销毁 v 所属的实例
func (w *Writer[T]) Dispose(v T) error {
	h, err := w.lookup(v)
	if err != nil {
		return err
	}
	return w.dw.Dispose(h)
}

// Unregister 注销 v 所属的实例
func (w *Writer[T]) Unregister(v T) error {
	h, err := w.lookup(v)
	if err != nil {
		return err
	}
	return w.dw.UnregisterInstance(h)
}

func (w *Writer[T]) lookup(v T) (types.InstanceHandle, error) {
	key, err := w.typ.ts.Key(v)
	if err != nil {
		return types.HandleNil, err
	}
	h, ok := w.dw.LookupInstance(key)
	if !ok {
		return types.HandleNil, fmt.Errorf("%w: %s", ErrUnknownInstance, typesupport.KeyHash(key))
	}
	return h, nil
}

// WaitForAcknowledgments 等待已发布的数据被所有可靠读者确认
func (w *Writer[T]) WaitForAcknowledgments(ctx context.Context) error {
	return w.dw.WaitForAcknowledgments(ctx)
}

// MatchRemote 匹配一个远端读者
func (w *Writer[T]) MatchRemote(r ReaderInfo) error {
	return w.domain.participant.MatchReader(w.dw.GUID(), r)
}

// UnmatchRemote 解除与读者的匹配
func (w *Writer[T]) UnmatchRemote(reader types.GUID) error {
	return w.domain.participant.UnmatchReader(w.dw.GUID(), reader)
}

// Close 删除写者
func (w *Writer[T]) Close() error {
	return w.domain.participant.DeleteWriter(w.dw.GUID())
}

// ============================================================================
//                              Reader
// ============================================================================

// Reader 类型化读者
type Reader[T any] struct {
	domain *Domain
	typ    *Type[T]
	dr     *datareader.DataReader
}

// CreateReader 在域上创建读者
func CreateReader[T any](d *Domain, t *Type[T], q qos.ReaderQos) (*Reader[T], error) {
	dr, err := d.participant.CreateReader(q, t.ts)
	if err != nil {
		return nil, err
	}
	return &Reader[T]{domain: d, typ: t, dr: dr}, nil
}

// GUID 返回读者 GUID
func (r *Reader[T]) GUID() types.GUID {
	return r.dr.GUID()
}

// Info 返回读者的匹配描述，供远端写者匹配
func (r *Reader[T]) Info() ReaderInfo {
	return r.domain.participant.DescribeReader(r.dr)
}

// DataAvailable 返回数据到达通知通道
func (r *Reader[T]) DataAvailable() <-chan struct{} {
	return r.dr.DataAvailable()
}

// Read 读取样本（保留在读者中并标记为已读）
func (r *Reader[T]) Read(q Query) ([]Sample[T], error) {
	return r.decode(r.dr.Read(q))
}

// Take 取走样本
func (r *Reader[T]) Take(q Query) ([]Sample[T], error) {
	return r.decode(r.dr.Take(q))
}

// ReadInstance 读取指定实例的样本
func (r *Reader[T]) ReadInstance(h types.InstanceHandle, q Query) ([]Sample[T], error) {
	return r.decode(r.dr.ReadInstance(h, q))
}

// TakeInstance 取走指定实例的样本
func (r *Reader[T]) TakeInstance(h types.InstanceHandle, q Query) ([]Sample[T], error) {
	return r.decode(r.dr.TakeInstance(h, q))
}

// TakeNextInstance 取走句柄序在 previous 之后的下一个有数据实例的样本
func (r *Reader[T]) TakeNextInstance(previous types.InstanceHandle, q Query) ([]Sample[T], error) {
	return r.decode(r.dr.TakeNextInstance(previous, q))
}

// LookupInstance 查找 v 所属实例的句柄
func (r *Reader[T]) LookupInstance(v T) (types.InstanceHandle, bool) {
	key, err := r.typ.ts.Key(v)
	if err != nil {
		return types.HandleNil, false
	}
	return r.dr.LookupInstance(key)
}

// SampleRejectedStatus 读取并复位样本拒绝状态
func (r *Reader[T]) SampleRejectedStatus() datareader.SampleRejectedStatus {
	return r.dr.SampleRejectedStatus()
}

// SampleLostStatus 读取并复位样本丢失状态
func (r *Reader[T]) SampleLostStatus() datareader.SampleLostStatus {
	return r.dr.SampleLostStatus()
}

// MatchRemote 匹配一个远端写者
func (r *Reader[T]) MatchRemote(w WriterInfo) error {
	return r.domain.participant.MatchWriter(r.dr.GUID(), w)
}

// UnmatchRemote 解除与写者的匹配
func (r *Reader[T]) UnmatchRemote(writer types.GUID) error {
	return r.domain.participant.UnmatchWriter(r.dr.GUID(), writer)
}

// Close 删除读者
func (r *Reader[T]) Close() error {
	return r.domain.participant.DeleteReader(r.dr.GUID())
}

func (r *Reader[T]) decode(raw []datareader.Sample, err error) ([]Sample[T], error) {
	if err != nil {
		return nil, err
	}
	out := make([]Sample[T], len(raw))
	for i, s := range raw {
		out[i].Info = s.Info
		if !s.Info.ValidData {
			continue
		}
		v, err := r.typ.ts.Deserialize(s.Data)
		if err != nil {
			return nil, err
		}
		out[i].Value = v
	}
	return out, nil
}

// ============================================================================
//                              匹配
// ============================================================================

// Match 双向匹配写者与读者
//
// 两端可以属于同一个或不同的 Domain，但域编号必须相同。
func Match[T any](w *Writer[T], r *Reader[T]) error {
	if w.domain.DomainID() != r.domain.DomainID() {
		return fmt.Errorf("%w: %d != %d", ErrDifferentDomain, w.domain.DomainID(), r.domain.DomainID())
	}
	if err := w.MatchRemote(r.Info()); err != nil {
		return err
	}
	if err := r.MatchRemote(w.Info()); err != nil {
		_ = w.UnmatchRemote(r.GUID())
		return err
	}
	return nil
}
