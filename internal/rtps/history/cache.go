package history

import (
	"sort"

	"github.com/dep2p/go-dds/pkg/types"
)

// ============================================================================
//                              只读视图
// ============================================================================

// View 历史缓存的只读视图
//
// 读者代理在一次驱动周期内持有该视图，只能查询不能修改。
type View interface {
	// Get 按序列号查找变更
	Get(sn types.SequenceNumber) (*types.CacheChange, bool)

	// SeqNumMin 返回最小序列号，缓存为空时 ok 为 false
	SeqNumMin() (types.SequenceNumber, bool)

	// SeqNumMax 返回最大序列号，缓存为空时 ok 为 false
	SeqNumMax() (types.SequenceNumber, bool)
}

// ============================================================================
//                              HistoryCache
// ============================================================================

// HistoryCache 按序列号有序的变更集合
type HistoryCache struct {
	changes []*types.CacheChange
}

var _ View = (*HistoryCache)(nil)

// New 创建空的历史缓存
func New() *HistoryCache {
	return &HistoryCache{}
}

// AddChange 插入变更
//
// 若已存在相同序列号的变更返回 false，缓存不变。
// 写者侧的序列号单调递增，走尾部追加的快速路径。
func (h *HistoryCache) AddChange(c *types.CacheChange) bool {
	n := len(h.changes)
	if n == 0 || h.changes[n-1].SequenceNumber < c.SequenceNumber {
		h.changes = append(h.changes, c)
		return true
	}

	i := h.search(c.SequenceNumber)
	if i < n && h.changes[i].SequenceNumber == c.SequenceNumber {
		return false
	}
	h.changes = append(h.changes, nil)
	copy(h.changes[i+1:], h.changes[i:])
	h.changes[i] = c
	return true
}

// RemoveChange 移除所有满足条件的变更，返回移除数量
func (h *HistoryCache) RemoveChange(pred func(*types.CacheChange) bool) int {
	kept := h.changes[:0]
	removed := 0
	for _, c := range h.changes {
		if pred(c) {
			removed++
			continue
		}
		kept = append(kept, c)
	}
	for i := len(kept); i < len(h.changes); i++ {
		h.changes[i] = nil
	}
	h.changes = kept
	return removed
}

// RemoveSequenceNumber 移除指定序列号的变更
func (h *HistoryCache) RemoveSequenceNumber(sn types.SequenceNumber) (*types.CacheChange, bool) {
	i := h.search(sn)
	if i >= len(h.changes) || h.changes[i].SequenceNumber != sn {
		return nil, false
	}
	c := h.changes[i]
	h.changes = append(h.changes[:i], h.changes[i+1:]...)
	return c, true
}

// RemoveUpTo 移除序列号 <= sn 的所有变更，返回移除数量
func (h *HistoryCache) RemoveUpTo(sn types.SequenceNumber) int {
	i := h.search(sn + 1)
	if i == 0 {
		return 0
	}
	h.changes = append(h.changes[:0], h.changes[i:]...)
	return i
}

// Get 按序列号查找变更
func (h *HistoryCache) Get(sn types.SequenceNumber) (*types.CacheChange, bool) {
	i := h.search(sn)
	if i < len(h.changes) && h.changes[i].SequenceNumber == sn {
		return h.changes[i], true
	}
	return nil, false
}

// SeqNumMin 返回最小序列号
func (h *HistoryCache) SeqNumMin() (types.SequenceNumber, bool) {
	if len(h.changes) == 0 {
		return 0, false
	}
	return h.changes[0].SequenceNumber, true
}

// SeqNumMax 返回最大序列号
func (h *HistoryCache) SeqNumMax() (types.SequenceNumber, bool) {
	if len(h.changes) == 0 {
		return 0, false
	}
	return h.changes[len(h.changes)-1].SequenceNumber, true
}

// Len 返回变更数量
func (h *HistoryCache) Len() int {
	return len(h.changes)
}

// Changes 返回按序列号升序的变更快照
func (h *HistoryCache) Changes() []*types.CacheChange {
	out := make([]*types.CacheChange, len(h.changes))
	copy(out, h.changes)
	return out
}

// Range 按序列号升序遍历，fn 返回 false 时停止
func (h *HistoryCache) Range(fn func(*types.CacheChange) bool) {
	for _, c := range h.changes {
		if !fn(c) {
			return
		}
	}
}

// search 返回第一个序列号 >= sn 的下标
func (h *HistoryCache) search(sn types.SequenceNumber) int {
	return sort.Search(len(h.changes), func(i int) bool {
		return h.changes[i].SequenceNumber >= sn
	})
}
