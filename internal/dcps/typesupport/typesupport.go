package typesupport

import (
	"errors"
	"fmt"

	"github.com/dep2p/go-dds/pkg/cdr"
)

// ErrKeyPayload 键载荷无法解析
var ErrKeyPayload = errors.New("typesupport: invalid key payload")

// TypeSupport 主题数据类型描述
//
// 读写路径只处理序列化后的载荷，类型知识全部集中在这里。
type TypeSupport interface {
	// TypeName 返回类型名
	TypeName() string

	// HasKey 类型是否带键
	HasKey() bool

	// SerializedKey 从完整样本载荷（含封装头）提取大端序列化键
	SerializedKey(payload []byte) ([]byte, error)
}

// KeyFromKeyPayload 从键载荷（Data 子消息 K 标志）提取大端序列化键
//
// 本实现发送的键载荷总是 CDR_BE 封装，体即为序列化键。
func KeyFromKeyPayload(payload []byte) ([]byte, error) {
	e, body, err := cdr.SplitPayload(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeyPayload, err)
	}
	if e != cdr.BigEndian {
		return nil, fmt.Errorf("%w: key payload must be big-endian", ErrKeyPayload)
	}
	return body, nil
}

// KeyPayload 将大端序列化键封装为键载荷
func KeyPayload(serializedKey []byte) []byte {
	out := make([]byte, 0, cdr.EncapsulationHeaderSize+len(serializedKey))
	out = append(out, cdr.EncapsulationCDRBE[0], cdr.EncapsulationCDRBE[1], 0, 0)
	return append(out, serializedKey...)
}

// ============================================================================
//                              Type - 泛型实现
// ============================================================================

// Codec 类型 T 的 CDR 编解码函数
type Codec[T any] struct {
	// Marshal 编码完整样本
	Marshal func(enc *cdr.Encoder, v T) error

	// Unmarshal 解码完整样本
	Unmarshal func(dec *cdr.Decoder) (T, error)

	// MarshalKey 编码键字段，nil 表示无键类型
	MarshalKey func(enc *cdr.Encoder, v T) error
}

// Type 由 Codec 构造的 TypeSupport
type Type[T any] struct {
	name   string
	codec  Codec[T]
	endian cdr.Endianness
}

var _ TypeSupport = (*Type[struct{}])(nil)

// New 创建类型描述，样本以小端序列化
func New[T any](name string, codec Codec[T]) *Type[T] {
	return &Type[T]{name: name, codec: codec, endian: cdr.LittleEndian}
}

// TypeName 实现 TypeSupport
func (t *Type[T]) TypeName() string { return t.name }

// HasKey 实现 TypeSupport
func (t *Type[T]) HasKey() bool { return t.codec.MarshalKey != nil }

// Serialize 序列化样本（含封装头）
func (t *Type[T]) Serialize(v T) ([]byte, error) {
	enc := cdr.NewPayloadEncoder(t.endian)
	if err := t.codec.Marshal(enc, v); err != nil {
		return nil, fmt.Errorf("serialize %s: %w", t.name, err)
	}
	return enc.Bytes(), nil
}

// Deserialize 反序列化样本
func (t *Type[T]) Deserialize(payload []byte) (T, error) {
	var zero T
	dec, err := cdr.PayloadDecoder(payload)
	if err != nil {
		return zero, fmt.Errorf("deserialize %s: %w", t.name, err)
	}
	v, err := t.codec.Unmarshal(dec)
	if err != nil {
		return zero, fmt.Errorf("deserialize %s: %w", t.name, err)
	}
	return v, nil
}

// Key 以大端序列化 v 的键字段
func (t *Type[T]) Key(v T) ([]byte, error) {
	if t.codec.MarshalKey == nil {
		return nil, nil
	}
	enc := cdr.NewEncoder(cdr.BigEndian)
	if err := t.codec.MarshalKey(enc, v); err != nil {
		return nil, fmt.Errorf("serialize key of %s: %w", t.name, err)
	}
	return enc.Bytes(), nil
}

// SerializedKey 实现 TypeSupport
func (t *Type[T]) SerializedKey(payload []byte) ([]byte, error) {
	if t.codec.MarshalKey == nil {
		return nil, nil
	}
	v, err := t.Deserialize(payload)
	if err != nil {
		return nil, err
	}
	return t.Key(v)
}
