package messages

import (
	"fmt"

	"github.com/dep2p/go-dds/pkg/types"
)

// ============================================================================
//                              SequenceNumberSet
// ============================================================================

const (
	// SequenceNumberSetWindow 一个集合可表示的序列号跨度
	SequenceNumberSetWindow = 256

	bitmapWords = SequenceNumberSetWindow / 32
)

// SequenceNumberSet [Base, Base+255] 窗口内的稀疏序列号集合
//
// 第 i 位（相对 Base）存放在 Bitmap[i/32] 的 1<<(31-i%32)，
// 即每个字内高位在前。NumBits 为最高已表示偏移 + 1，
// 编码时只输出 ceil(NumBits/32) 个字。
type SequenceNumberSet struct {
	Base    types.SequenceNumber
	NumBits uint32
	Bitmap  [bitmapWords]uint32
}

// NewSequenceNumberSet 由基准与成员创建集合
//
// 任一成员不在 [base, base+255] 内时返回 ErrOutOfWindow。
func NewSequenceNumberSet(base types.SequenceNumber, members ...types.SequenceNumber) (SequenceNumberSet, error) {
	s := SequenceNumberSet{Base: base}
	for _, sn := range members {
		if err := s.Add(sn); err != nil {
			return SequenceNumberSet{}, err
		}
	}
	return s, nil
}

// Add 添加成员
func (s *SequenceNumberSet) Add(sn types.SequenceNumber) error {
	if !s.InWindow(sn) {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrOutOfWindow, sn, s.Base, s.Base+SequenceNumberSetWindow-1)
	}
	off := uint32(sn - s.Base)
	s.Bitmap[off/32] |= 1 << (31 - off%32)
	if off+1 > s.NumBits {
		s.NumBits = off + 1
	}
	return nil
}

// InWindow 检查序列号是否在可表示窗口内
func (s *SequenceNumberSet) InWindow(sn types.SequenceNumber) bool {
	return sn >= s.Base && sn-s.Base < SequenceNumberSetWindow
}

// Contains 检查成员
func (s *SequenceNumberSet) Contains(sn types.SequenceNumber) bool {
	if !s.InWindow(sn) {
		return false
	}
	off := uint32(sn - s.Base)
	if off >= s.NumBits {
		return false
	}
	return s.Bitmap[off/32]&(1<<(31-off%32)) != 0
}

// Set 返回升序成员列表
func (s *SequenceNumberSet) Set() []types.SequenceNumber {
	var out []types.SequenceNumber
	for off := uint32(0); off < s.NumBits; off++ {
		if s.Bitmap[off/32]&(1<<(31-off%32)) != 0 {
			out = append(out, s.Base+types.SequenceNumber(off))
		}
	}
	return out
}

// IsEmpty 检查是否无成员
func (s *SequenceNumberSet) IsEmpty() bool {
	for i := uint32(0); i < words(s.NumBits); i++ {
		if s.Bitmap[i] != 0 {
			return false
		}
	}
	return true
}

// Len 返回成员数量
func (s *SequenceNumberSet) Len() int {
	return len(s.Set())
}

func words(numBits uint32) uint32 {
	return (numBits + 31) / 32
}

// ============================================================================
//                              编解码
// ============================================================================

// EncodeSequenceNumberSet 以指定字节序编码
//
// 线路布局：base_high:i32 base_low:u32 num_bits:u32 bitmap[M]:i32，M = ceil(num_bits/32)。
func EncodeSequenceNumberSet(s SequenceNumberSet, e Endianness) []byte {
	w := newWriter(e, make([]byte, 0, 12+4*int(words(s.NumBits))))
	w.sequenceNumberSet(s)
	return w.buf
}

// DecodeSequenceNumberSet 以指定字节序解码
func DecodeSequenceNumberSet(data []byte, e Endianness) (SequenceNumberSet, error) {
	return newReader(e, data).sequenceNumberSet("sequence number set")
}

func (w *writer) sequenceNumberSet(s SequenceNumberSet) {
	w.sequenceNumber(s.Base)
	w.u32(s.NumBits)
	for i := uint32(0); i < words(s.NumBits); i++ {
		w.i32(int32(s.Bitmap[i]))
	}
}

func (r *reader) sequenceNumberSet(what string) (SequenceNumberSet, error) {
	var s SequenceNumberSet
	base, err := r.sequenceNumber(what)
	if err != nil {
		return s, err
	}
	numBits, err := r.u32(what)
	if err != nil {
		return s, err
	}
	// 对端不能借此强迫分配超大位图
	if numBits > SequenceNumberSetWindow {
		return s, fmt.Errorf("%w: %s num_bits %d exceeds %d", ErrInvalidData, what, numBits, SequenceNumberSetWindow)
	}
	s.Base = base
	s.NumBits = numBits
	for i := uint32(0); i < words(numBits); i++ {
		v, err := r.u32(what)
		if err != nil {
			return SequenceNumberSet{}, err
		}
		s.Bitmap[i] = v
	}
	// 清除 num_bits 之外的多余位
	if tail := numBits % 32; tail != 0 {
		s.Bitmap[numBits/32] &= ^uint32(0) << (32 - tail)
	}
	return s, nil
}
