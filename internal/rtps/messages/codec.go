package messages

import (
	"encoding/binary"
	"fmt"

	"github.com/dep2p/go-dds/pkg/types"
)

// Endianness 子消息体字节序
type Endianness uint8

const (
	// BigEndian 大端（E 标志为 0）
	BigEndian Endianness = iota
	// LittleEndian 小端（E 标志为 1）
	LittleEndian
)

// DefaultEndianness 本实现发送时使用的字节序
const DefaultEndianness = LittleEndian

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

func (e Endianness) flag() uint8 {
	if e == LittleEndian {
		return flagEndianness
	}
	return 0
}

func endiannessFromFlags(flags uint8) Endianness {
	if flags&flagEndianness != 0 {
		return LittleEndian
	}
	return BigEndian
}

// ============================================================================
//                              写缓冲
// ============================================================================

type writer struct {
	buf   []byte
	order byteOrder
}

func newWriter(e Endianness, buf []byte) *writer {
	return &writer{buf: buf, order: e.order()}
}

func (w *writer) u8(v uint8)   { w.buf = append(w.buf, v) }
func (w *writer) u16(v uint16) { w.buf = w.order.AppendUint16(w.buf, v) }
func (w *writer) u32(v uint32) { w.buf = w.order.AppendUint32(w.buf, v) }
func (w *writer) i32(v int32)  { w.buf = w.order.AppendUint32(w.buf, uint32(v)) }
func (w *writer) bytes(b []byte) {
	w.buf = append(w.buf, b...)
}

func (w *writer) pad4() {
	for len(w.buf)%4 != 0 {
		w.buf = append(w.buf, 0)
	}
}

func (w *writer) entityID(id types.EntityID) {
	b := id.Bytes()
	w.bytes(b[:])
}

func (w *writer) sequenceNumber(sn types.SequenceNumber) {
	w.i32(sn.High())
	w.u32(sn.Low())
}

func (w *writer) time(t types.Time) {
	w.i32(t.Seconds)
	w.u32(t.Fraction)
}

// ============================================================================
//                              读缓冲
// ============================================================================

type reader struct {
	data  []byte
	pos   int
	order byteOrder
}

func newReader(e Endianness, data []byte) *reader {
	return &reader{data: data, order: e.order()}
}

func (r *reader) remaining() int {
	return len(r.data) - r.pos
}

func (r *reader) need(n int, what string) error {
	if n < 0 || r.remaining() < n {
		return fmt.Errorf("%w: %s needs %d bytes, %d left", ErrTruncated, what, n, r.remaining())
	}
	return nil
}

func (r *reader) u8(what string) (uint8, error) {
	if err := r.need(1, what); err != nil {
		return 0, err
	}
	v := r.data[r.pos]
	r.pos++
	return v, nil
}

func (r *reader) u16(what string) (uint16, error) {
	if err := r.need(2, what); err != nil {
		return 0, err
	}
	v := r.order.Uint16(r.data[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *reader) u32(what string) (uint32, error) {
	if err := r.need(4, what); err != nil {
		return 0, err
	}
	v := r.order.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *reader) i32(what string) (int32, error) {
	v, err := r.u32(what)
	return int32(v), err
}

func (r *reader) bytes(n int, what string) ([]byte, error) {
	if err := r.need(n, what); err != nil {
		return nil, err
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) skip(n int, what string) error {
	if err := r.need(n, what); err != nil {
		return err
	}
	r.pos += n
	return nil
}

func (r *reader) entityID(what string) (types.EntityID, error) {
	b, err := r.bytes(4, what)
	if err != nil {
		return types.EntityID{}, err
	}
	return types.EntityIDFromBytes([4]byte(b)), nil
}

func (r *reader) sequenceNumber(what string) (types.SequenceNumber, error) {
	high, err := r.i32(what)
	if err != nil {
		return 0, err
	}
	low, err := r.u32(what)
	if err != nil {
		return 0, err
	}
	return types.SequenceNumberFromParts(high, low), nil
}

func (r *reader) time(what string) (types.Time, error) {
	sec, err := r.i32(what)
	if err != nil {
		return types.Time{}, err
	}
	frac, err := r.u32(what)
	if err != nil {
		return types.Time{}, err
	}
	return types.Time{Seconds: sec, Fraction: frac}, nil
}
