package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGuidPrefix(t *testing.T) {
	t.Run("NewGuidPrefix", func(t *testing.T) {
		a := NewGuidPrefix(VendorIDGoDDS)
		b := NewGuidPrefix(VendorIDGoDDS)

		assert.Equal(t, VendorIDGoDDS[0], a[0])
		assert.Equal(t, VendorIDGoDDS[1], a[1])
		assert.NotEqual(t, a, b)
		assert.False(t, a.IsUnknown())
	})

	t.Run("Unknown", func(t *testing.T) {
		assert.True(t, GuidPrefixUnknown.IsUnknown())
	})
}

func TestEntityID(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		id := NewEntityID(0x010203, EntityKindWriterWithKey)
		assert.Equal(t, [4]byte{1, 2, 3, 0x02}, id.Bytes())
		assert.Equal(t, id, EntityIDFromBytes(id.Bytes()))
	})

	t.Run("Kinds", func(t *testing.T) {
		assert.True(t, NewEntityID(1, EntityKindWriterWithKey).IsWriter())
		assert.True(t, NewEntityID(1, EntityKindReaderNoKey).IsReader())
		assert.False(t, EntityIDUnknown.IsWriter())
		assert.False(t, EntityIDUnknown.IsReader())
	})
}

func TestGUID(t *testing.T) {
	prefix := GuidPrefix{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	g := NewGUID(prefix, NewEntityID(7, EntityKindReaderWithKey))

	b := g.Bytes()
	assert.Equal(t, prefix[:], b[:12])
	assert.Equal(t, []byte{0, 0, 7, 0x07}, b[12:])
	assert.Equal(t, InstanceHandle(b), g.InstanceHandle())
	assert.Equal(t, "0102030405060708090a0b0c:00000707", g.String())
}
