package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-dds/pkg/types"
)

func change(sn types.SequenceNumber) *types.CacheChange {
	return &types.CacheChange{Kind: types.ChangeKindAlive, SequenceNumber: sn}
}

func sequenceNumbers(h *HistoryCache) []types.SequenceNumber {
	var out []types.SequenceNumber
	h.Range(func(c *types.CacheChange) bool {
		out = append(out, c.SequenceNumber)
		return true
	})
	return out
}

func TestHistoryCache_Empty(t *testing.T) {
	h := New()

	_, ok := h.SeqNumMin()
	assert.False(t, ok)
	_, ok = h.SeqNumMax()
	assert.False(t, ok)
	_, ok = h.Get(1)
	assert.False(t, ok)
	assert.Equal(t, 0, h.Len())
}

func TestHistoryCache_AddChange(t *testing.T) {
	h := New()
	require.True(t, h.AddChange(change(1)))
	require.True(t, h.AddChange(change(2)))
	require.True(t, h.AddChange(change(5)))

	min, ok := h.SeqNumMin()
	require.True(t, ok)
	max, _ := h.SeqNumMax()
	assert.Equal(t, types.SequenceNumber(1), min)
	assert.Equal(t, types.SequenceNumber(5), max)

	c, ok := h.Get(2)
	require.True(t, ok)
	assert.Equal(t, types.SequenceNumber(2), c.SequenceNumber)
}

func TestHistoryCache_AddChange_OutOfOrder(t *testing.T) {
	h := New()
	for _, sn := range []types.SequenceNumber{4, 1, 3, 2} {
		require.True(t, h.AddChange(change(sn)))
	}
	assert.Equal(t, []types.SequenceNumber{1, 2, 3, 4}, sequenceNumbers(h))
}

func TestHistoryCache_AddChange_Duplicate(t *testing.T) {
	h := New()
	require.True(t, h.AddChange(change(3)))
	require.True(t, h.AddChange(change(7)))

	assert.False(t, h.AddChange(change(3)))
	assert.False(t, h.AddChange(change(7)))
	assert.Equal(t, 2, h.Len())
}

func TestHistoryCache_Remove(t *testing.T) {
	h := New()
	for sn := types.SequenceNumber(1); sn <= 6; sn++ {
		h.AddChange(change(sn))
	}

	n := h.RemoveChange(func(c *types.CacheChange) bool { return c.SequenceNumber%2 == 0 })
	assert.Equal(t, 3, n)
	assert.Equal(t, []types.SequenceNumber{1, 3, 5}, sequenceNumbers(h))

	removed, ok := h.RemoveSequenceNumber(3)
	require.True(t, ok)
	assert.Equal(t, types.SequenceNumber(3), removed.SequenceNumber)
	_, ok = h.RemoveSequenceNumber(3)
	assert.False(t, ok)

	assert.Equal(t, 1, h.RemoveUpTo(4))
	assert.Equal(t, []types.SequenceNumber{5}, sequenceNumbers(h))
	assert.Equal(t, 0, h.RemoveUpTo(2))
}

func TestHistoryCache_ChangesIsSnapshot(t *testing.T) {
	h := New()
	h.AddChange(change(1))
	snapshot := h.Changes()
	h.AddChange(change(2))

	assert.Len(t, snapshot, 1)
	assert.Equal(t, 2, h.Len())
}
