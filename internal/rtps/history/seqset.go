package history

import (
	"sort"

	"github.com/dep2p/go-dds/pkg/types"
)

// SeqSet 有序序列号集合
//
// 代理用它记录未发送、已请求或缺失的序列号。零值可直接使用。
type SeqSet struct {
	items []types.SequenceNumber
}

func (s *SeqSet) search(sn types.SequenceNumber) int {
	return sort.Search(len(s.items), func(i int) bool { return s.items[i] >= sn })
}

// Add 添加序列号，已存在时返回 false
func (s *SeqSet) Add(sn types.SequenceNumber) bool {
	n := len(s.items)
	if n == 0 || s.items[n-1] < sn {
		s.items = append(s.items, sn)
		return true
	}
	i := s.search(sn)
	if s.items[i] == sn {
		return false
	}
	s.items = append(s.items, 0)
	copy(s.items[i+1:], s.items[i:])
	s.items[i] = sn
	return true
}

// Remove 移除序列号
func (s *SeqSet) Remove(sn types.SequenceNumber) bool {
	i := s.search(sn)
	if i == len(s.items) || s.items[i] != sn {
		return false
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	return true
}

// RemoveUpTo 移除 <= sn 的所有序列号，返回移除数量
func (s *SeqSet) RemoveUpTo(sn types.SequenceNumber) int {
	i := s.search(sn + 1)
	s.items = append(s.items[:0], s.items[i:]...)
	return i
}

// Contains 检查是否包含
func (s *SeqSet) Contains(sn types.SequenceNumber) bool {
	i := s.search(sn)
	return i < len(s.items) && s.items[i] == sn
}

// Min 返回最小值
func (s *SeqSet) Min() (types.SequenceNumber, bool) {
	if len(s.items) == 0 {
		return 0, false
	}
	return s.items[0], true
}

// Max 返回最大值
func (s *SeqSet) Max() (types.SequenceNumber, bool) {
	if len(s.items) == 0 {
		return 0, false
	}
	return s.items[len(s.items)-1], true
}

// Len 返回元素个数
func (s *SeqSet) Len() int {
	return len(s.items)
}

// IsEmpty 检查是否为空
func (s *SeqSet) IsEmpty() bool {
	return len(s.items) == 0
}

// Items 返回升序快照
func (s *SeqSet) Items() []types.SequenceNumber {
	return append([]types.SequenceNumber(nil), s.items...)
}

// Drain 返回全部元素（升序）并清空集合
func (s *SeqSet) Drain() []types.SequenceNumber {
	out := s.items
	s.items = nil
	return out
}

// Clear 清空集合
func (s *SeqSet) Clear() {
	s.items = nil
}
