package cdr

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Endianness 字节序
type Endianness uint8

const (
	// BigEndian 大端
	BigEndian Endianness = iota
	// LittleEndian 小端
	LittleEndian
)

type byteOrder interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

func (e Endianness) order() byteOrder {
	if e == LittleEndian {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// String 返回字节序名称
func (e Endianness) String() string {
	if e == LittleEndian {
		return "little-endian"
	}
	return "big-endian"
}

// ============================================================================
//                              Encoder
// ============================================================================

// Encoder CDR 编码器
//
// 基本类型的写入不会失败；只有 char、string、sequence 长度
// 这类受约束的值返回错误。
type Encoder struct {
	buf    []byte
	origin int
	order  byteOrder
	endian Endianness
}

// NewEncoder 创建编码器，对齐以缓冲起点为基准
func NewEncoder(e Endianness) *Encoder {
	return &Encoder{order: e.order(), endian: e}
}

// Endianness 返回编码字节序
func (enc *Encoder) Endianness() Endianness {
	return enc.endian
}

// Bytes 返回已编码的数据
func (enc *Encoder) Bytes() []byte {
	return enc.buf
}

// Len 返回已编码的字节数
func (enc *Encoder) Len() int {
	return len(enc.buf) - enc.origin
}

func (enc *Encoder) align(n int) {
	for (len(enc.buf)-enc.origin)%n != 0 {
		enc.buf = append(enc.buf, 0)
	}
}

// Bool 写入布尔值
func (enc *Encoder) Bool(v bool) {
	if v {
		enc.buf = append(enc.buf, 1)
	} else {
		enc.buf = append(enc.buf, 0)
	}
}

// Uint8 写入 octet
func (enc *Encoder) Uint8(v uint8) { enc.buf = append(enc.buf, v) }

// Int8 写入 int8
func (enc *Encoder) Int8(v int8) { enc.buf = append(enc.buf, uint8(v)) }

// Uint16 写入 u16
func (enc *Encoder) Uint16(v uint16) {
	enc.align(2)
	enc.buf = enc.order.AppendUint16(enc.buf, v)
}

// Int16 写入 i16
func (enc *Encoder) Int16(v int16) { enc.Uint16(uint16(v)) }

// Uint32 写入 u32
func (enc *Encoder) Uint32(v uint32) {
	enc.align(4)
	enc.buf = enc.order.AppendUint32(enc.buf, v)
}

// Int32 写入 i32
func (enc *Encoder) Int32(v int32) { enc.Uint32(uint32(v)) }

// Uint64 写入 u64
func (enc *Encoder) Uint64(v uint64) {
	enc.align(8)
	enc.buf = enc.order.AppendUint64(enc.buf, v)
}

// Int64 写入 i64
func (enc *Encoder) Int64(v int64) { enc.Uint64(uint64(v)) }

// Float32 写入 f32
func (enc *Encoder) Float32(v float32) { enc.Uint32(math.Float32bits(v)) }

// Float64 写入 f64
func (enc *Encoder) Float64(v float64) { enc.Uint64(math.Float64bits(v)) }

// Char 写入单个 ASCII 字符
func (enc *Encoder) Char(r rune) error {
	if r < 0 || r > 0x7f {
		return fmt.Errorf("%w: %q", ErrNonASCII, r)
	}
	enc.buf = append(enc.buf, byte(r))
	return nil
}

// String 写入 ASCII 字符串
func (enc *Encoder) String(s string) error {
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7f {
			return fmt.Errorf("%w: byte 0x%02x at offset %d", ErrNonASCII, s[i], i)
		}
	}
	if err := enc.length(uint64(len(s)) + 1); err != nil {
		return err
	}
	enc.buf = append(enc.buf, s...)
	enc.buf = append(enc.buf, 0)
	return nil
}

// SequenceLength 写入 sequence 的元素个数，元素由调用方随后写入
func (enc *Encoder) SequenceLength(n int) error {
	return enc.length(uint64(n))
}

// Octets 写入 sequence<octet>
func (enc *Encoder) Octets(b []byte) error {
	if err := enc.length(uint64(len(b))); err != nil {
		return err
	}
	enc.buf = append(enc.buf, b...)
	return nil
}

// FixedOctets 写入定长 octet 数组（无长度前缀）
func (enc *Encoder) FixedOctets(b []byte) {
	enc.buf = append(enc.buf, b...)
}

func (enc *Encoder) length(n uint64) error {
	if n > math.MaxUint32 {
		return fmt.Errorf("%w: %d", ErrTooLong, n)
	}
	enc.Uint32(uint32(n))
	return nil
}
