package cdr

import (
	"fmt"
	"math"
)

// Decoder CDR 解码器
type Decoder struct {
	data  []byte
	pos   int
	order byteOrder
}

// NewDecoder 创建解码器，对齐以 data 起点为基准
func NewDecoder(data []byte, e Endianness) *Decoder {
	return &Decoder{data: data, order: e.order()}
}

// Remaining 返回未读字节数
func (d *Decoder) Remaining() int {
	return len(d.data) - d.pos
}

func (d *Decoder) take(n int) ([]byte, error) {
	if n < 0 || d.Remaining() < n {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, %d left", ErrTruncated, n, d.pos, d.Remaining())
	}
	b := d.data[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

func (d *Decoder) align(n int) error {
	if pad := (n - d.pos%n) % n; pad > 0 {
		_, err := d.take(pad)
		return err
	}
	return nil
}

// Bool 读取布尔值
func (d *Decoder) Bool() (bool, error) {
	v, err := d.Uint8()
	return v != 0, err
}

// Uint8 读取 octet
func (d *Decoder) Uint8() (uint8, error) {
	b, err := d.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// Int8 读取 int8
func (d *Decoder) Int8() (int8, error) {
	v, err := d.Uint8()
	return int8(v), err
}

// Uint16 读取 u16
func (d *Decoder) Uint16() (uint16, error) {
	if err := d.align(2); err != nil {
		return 0, err
	}
	b, err := d.take(2)
	if err != nil {
		return 0, err
	}
	return d.order.Uint16(b), nil
}

// Int16 读取 i16
func (d *Decoder) Int16() (int16, error) {
	v, err := d.Uint16()
	return int16(v), err
}

// Uint32 读取 u32
func (d *Decoder) Uint32() (uint32, error) {
	if err := d.align(4); err != nil {
		return 0, err
	}
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	return d.order.Uint32(b), nil
}

// Int32 读取 i32
func (d *Decoder) Int32() (int32, error) {
	v, err := d.Uint32()
	return int32(v), err
}

// Uint64 读取 u64
func (d *Decoder) Uint64() (uint64, error) {
	if err := d.align(8); err != nil {
		return 0, err
	}
	b, err := d.take(8)
	if err != nil {
		return 0, err
	}
	return d.order.Uint64(b), nil
}

// Int64 读取 i64
func (d *Decoder) Int64() (int64, error) {
	v, err := d.Uint64()
	return int64(v), err
}

// Float32 读取 f32
func (d *Decoder) Float32() (float32, error) {
	v, err := d.Uint32()
	return math.Float32frombits(v), err
}

// Float64 读取 f64
func (d *Decoder) Float64() (float64, error) {
	v, err := d.Uint64()
	return math.Float64frombits(v), err
}

// Char 读取单个 ASCII 字符
func (d *Decoder) Char() (rune, error) {
	v, err := d.Uint8()
	if err != nil {
		return 0, err
	}
	if v > 0x7f {
		return 0, fmt.Errorf("%w: byte 0x%02x", ErrNonASCII, v)
	}
	return rune(v), nil
}

// String 读取 ASCII 字符串
func (d *Decoder) String() (string, error) {
	n, err := d.Uint32()
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", fmt.Errorf("%w: zero length", ErrInvalidString)
	}
	b, err := d.take(int(n))
	if err != nil {
		return "", err
	}
	if b[n-1] != 0 {
		return "", fmt.Errorf("%w: missing NUL terminator", ErrInvalidString)
	}
	for i, c := range b[:n-1] {
		if c > 0x7f {
			return "", fmt.Errorf("%w: byte 0x%02x at offset %d", ErrNonASCII, c, i)
		}
	}
	return string(b[:n-1]), nil
}

// SequenceLength 读取 sequence 的元素个数
//
// 个数超过剩余字节数时判定为截断，避免按对端声明的长度预分配。
func (d *Decoder) SequenceLength() (int, error) {
	n, err := d.Uint32()
	if err != nil {
		return 0, err
	}
	if int64(n) > int64(d.Remaining()) {
		return 0, fmt.Errorf("%w: sequence of %d elements with %d bytes left", ErrTruncated, n, d.Remaining())
	}
	return int(n), nil
}

// Octets 读取 sequence<octet>
func (d *Decoder) Octets() ([]byte, error) {
	n, err := d.SequenceLength()
	if err != nil {
		return nil, err
	}
	b, err := d.take(n)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), b...), nil
}

// FixedOctets 读取定长 octet 数组
func (d *Decoder) FixedOctets(n int) ([]byte, error) {
	b, err := d.take(n)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), b...), nil
}
