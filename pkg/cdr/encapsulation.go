package cdr

import "fmt"

// ============================================================================
//                              封装头
// ============================================================================

// EncapsulationHeaderSize 封装头长度
const EncapsulationHeaderSize = 4

// 封装标识
var (
	EncapsulationCDRBE = [2]byte{0x00, 0x00}
	EncapsulationCDRLE = [2]byte{0x00, 0x01}
)

// Marshaler 可编码为 CDR 的类型
type Marshaler interface {
	MarshalCDR(enc *Encoder) error
}

// Unmarshaler 可由 CDR 解码的类型
type Unmarshaler interface {
	UnmarshalCDR(dec *Decoder) error
}

// MarshalFunc 函数形式的 Marshaler
type MarshalFunc func(enc *Encoder) error

// MarshalCDR 实现 Marshaler
func (f MarshalFunc) MarshalCDR(enc *Encoder) error { return f(enc) }

// NewPayloadEncoder 创建带封装头的编码器，对齐从封装头之后开始计算
func NewPayloadEncoder(e Endianness) *Encoder {
	id := EncapsulationCDRBE
	if e == LittleEndian {
		id = EncapsulationCDRLE
	}
	enc := NewEncoder(e)
	enc.buf = append(enc.buf, id[0], id[1], 0, 0)
	enc.origin = EncapsulationHeaderSize
	return enc
}

// Serialize 以封装头 + CDR 体的形式序列化
func Serialize(v Marshaler, e Endianness) ([]byte, error) {
	enc := NewPayloadEncoder(e)
	if err := v.MarshalCDR(enc); err != nil {
		return nil, err
	}
	return enc.Bytes(), nil
}

// PayloadDecoder 解析封装头并返回定位到 CDR 体的解码器
func PayloadDecoder(data []byte) (*Decoder, error) {
	e, body, err := SplitPayload(data)
	if err != nil {
		return nil, err
	}
	return NewDecoder(body, e), nil
}

// SplitPayload 解析封装头，返回字节序与 CDR 体
func SplitPayload(data []byte) (Endianness, []byte, error) {
	if len(data) < EncapsulationHeaderSize {
		return 0, nil, fmt.Errorf("%w: encapsulation header needs %d bytes, got %d",
			ErrTruncated, EncapsulationHeaderSize, len(data))
	}
	switch [2]byte(data[:2]) {
	case EncapsulationCDRBE:
		return BigEndian, data[EncapsulationHeaderSize:], nil
	case EncapsulationCDRLE:
		return LittleEndian, data[EncapsulationHeaderSize:], nil
	default:
		return 0, nil, fmt.Errorf("%w: 0x%02x%02x", ErrUnsupportedEncapsulation, data[0], data[1])
	}
}

// Deserialize 解析封装头并解码到 v
func Deserialize(data []byte, v Unmarshaler) error {
	dec, err := PayloadDecoder(data)
	if err != nil {
		return err
	}
	return v.UnmarshalCDR(dec)
}
