package typesupport

import (
	"crypto/md5"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-dds/pkg/cdr"
	"github.com/dep2p/go-dds/pkg/types"
)

type shape struct {
	Color string
	X, Y  int32
}

func shapeType() *Type[shape] {
	return New("ShapeType", Codec[shape]{
		Marshal: func(enc *cdr.Encoder, v shape) error {
			if err := enc.String(v.Color); err != nil {
				return err
			}
			enc.Int32(v.X)
			enc.Int32(v.Y)
			return nil
		},
		Unmarshal: func(dec *cdr.Decoder) (shape, error) {
			var v shape
			var err error
			if v.Color, err = dec.String(); err != nil {
				return v, err
			}
			if v.X, err = dec.Int32(); err != nil {
				return v, err
			}
			v.Y, err = dec.Int32()
			return v, err
		},
		MarshalKey: func(enc *cdr.Encoder, v shape) error {
			return enc.String(v.Color)
		},
	})
}

func TestKeyHash_Short(t *testing.T) {
	h := KeyHash([]byte{0, 0, 0, 4, 'R', 'E', 'D', 0})
	assert.Equal(t, types.InstanceHandle{0, 0, 0, 4, 'R', 'E', 'D', 0}, h)
}

func TestKeyHash_Long(t *testing.T) {
	key := []byte(strings.Repeat("k", 17))
	assert.Equal(t, types.InstanceHandle(md5.Sum(key)), KeyHash(key))
}

func TestType_SerializeRoundTrip(t *testing.T) {
	ts := shapeType()
	assert.True(t, ts.HasKey())
	assert.Equal(t, "ShapeType", ts.TypeName())

	payload, err := ts.Serialize(shape{Color: "BLUE", X: 1, Y: 2})
	require.NoError(t, err)

	v, err := ts.Deserialize(payload)
	require.NoError(t, err)
	assert.Equal(t, shape{Color: "BLUE", X: 1, Y: 2}, v)

	key, err := ts.SerializedKey(payload)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 5, 'B', 'L', 'U', 'E', 0}, key)
}

func TestType_SerializeNonASCII(t *testing.T) {
	_, err := shapeType().Serialize(shape{Color: "grün"})
	assert.ErrorIs(t, err, cdr.ErrNonASCII)
}

func TestResolver_SameKeySameHandle(t *testing.T) {
	ts := shapeType()
	r := NewResolver(ts, 8)

	p1, err := ts.Serialize(shape{Color: "RED", X: 1})
	require.NoError(t, err)
	p2, err := ts.Serialize(shape{Color: "RED", X: 2})
	require.NoError(t, err)
	p3, err := ts.Serialize(shape{Color: "GREEN", X: 1})
	require.NoError(t, err)

	h1, err := r.FromPayload(p1)
	require.NoError(t, err)
	h2, err := r.FromPayload(p2)
	require.NoError(t, err)
	h3, err := r.FromPayload(p3)
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.Equal(t, 3, r.CacheLen())

	again, err := r.FromPayload(p1)
	require.NoError(t, err)
	assert.Equal(t, h1, again)
	assert.Equal(t, 3, r.CacheLen())
}

func TestResolver_KeyPayload(t *testing.T) {
	ts := shapeType()
	r := NewResolver(ts, 0)

	payload, err := ts.Serialize(shape{Color: "RED"})
	require.NoError(t, err)
	fromSample, err := r.FromPayload(payload)
	require.NoError(t, err)

	key, err := ts.Key(shape{Color: "RED"})
	require.NoError(t, err)
	fromKey, err := r.FromKeyPayload(KeyPayload(key))
	require.NoError(t, err)
	assert.Equal(t, fromSample, fromKey)

	_, err = r.FromKeyPayload([]byte{0, 1, 0, 0, 1})
	assert.ErrorIs(t, err, ErrKeyPayload)
}

func TestResolver_Keyless(t *testing.T) {
	ts := New("Blob", Codec[[]byte]{
		Marshal:   func(enc *cdr.Encoder, v []byte) error { return enc.Octets(v) },
		Unmarshal: func(dec *cdr.Decoder) ([]byte, error) { return dec.Octets() },
	})
	assert.False(t, ts.HasKey())

	r := NewResolver(ts, 0)
	payload, err := ts.Serialize([]byte{1, 2, 3})
	require.NoError(t, err)
	h, err := r.FromPayload(payload)
	require.NoError(t, err)
	assert.True(t, h.IsNil())
}
