package cdr

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncoder_Alignment(t *testing.T) {
	enc := NewEncoder(BigEndian)
	enc.Uint8(1)
	enc.Uint16(2)
	enc.Uint32(3)
	enc.Uint8(4)
	enc.Uint64(5)

	want := []byte{
		1, 0, // u8 + pad
		0, 2, // u16
		0, 0, 0, 3, // u32
		4, 0, 0, 0, 0, 0, 0, 0, // u8 + pad to 16
		0, 0, 0, 0, 0, 0, 0, 5, // u64
	}
	assert.Equal(t, want, enc.Bytes())
}

func TestEncoder_Endianness(t *testing.T) {
	be := NewEncoder(BigEndian)
	be.Uint32(0x01020304)
	le := NewEncoder(LittleEndian)
	le.Uint32(0x01020304)

	assert.Equal(t, []byte{1, 2, 3, 4}, be.Bytes())
	assert.Equal(t, []byte{4, 3, 2, 1}, le.Bytes())
}

func TestEncoder_String(t *testing.T) {
	enc := NewEncoder(LittleEndian)
	require.NoError(t, enc.String("abc"))
	assert.Equal(t, []byte{4, 0, 0, 0, 'a', 'b', 'c', 0}, enc.Bytes())

	dec := NewDecoder(enc.Bytes(), LittleEndian)
	s, err := dec.String()
	require.NoError(t, err)
	assert.Equal(t, "abc", s)
	assert.Zero(t, dec.Remaining())
}

func TestEncoder_NonASCII(t *testing.T) {
	enc := NewEncoder(BigEndian)
	assert.ErrorIs(t, enc.String("héllo"), ErrNonASCII)
	assert.ErrorIs(t, enc.Char('é'), ErrNonASCII)
	assert.Empty(t, enc.Bytes())

	require.NoError(t, enc.Char('x'))
	assert.Equal(t, []byte{'x'}, enc.Bytes())
}

func TestEncoder_TooLong(t *testing.T) {
	if math.MaxInt == math.MaxInt32 {
		t.Skip("needs 64-bit int")
	}
	n := uint64(math.MaxUint32) + 1
	enc := NewEncoder(BigEndian)
	assert.ErrorIs(t, enc.SequenceLength(int(n)), ErrTooLong)
}

func TestDecoder_Truncated(t *testing.T) {
	dec := NewDecoder([]byte{0, 0, 0}, BigEndian)
	_, err := dec.Uint32()
	assert.ErrorIs(t, err, ErrTruncated)

	// 声明 1000 个元素但只有 4 字节
	dec = NewDecoder([]byte{0, 0, 0x03, 0xe8, 1, 2, 3, 4}, BigEndian)
	_, err = dec.Octets()
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestDecoder_InvalidString(t *testing.T) {
	dec := NewDecoder([]byte{0, 0, 0, 2, 'a', 'b'}, BigEndian)
	_, err := dec.String()
	assert.ErrorIs(t, err, ErrInvalidString)

	dec = NewDecoder([]byte{0, 0, 0, 2, 0xc3, 0}, BigEndian)
	_, err = dec.String()
	assert.ErrorIs(t, err, ErrNonASCII)
}

type shape struct {
	Color string
	X     int32
	Y     int32
	Size  int64
	Tags  []string
	Ok    bool
	Ratio float64
}

func (s *shape) MarshalCDR(enc *Encoder) error {
	if err := enc.String(s.Color); err != nil {
		return err
	}
	enc.Int32(s.X)
	enc.Int32(s.Y)
	enc.Int64(s.Size)
	if err := enc.SequenceLength(len(s.Tags)); err != nil {
		return err
	}
	for _, tag := range s.Tags {
		if err := enc.String(tag); err != nil {
			return err
		}
	}
	enc.Bool(s.Ok)
	enc.Float64(s.Ratio)
	return nil
}

func (s *shape) UnmarshalCDR(dec *Decoder) error {
	var err error
	if s.Color, err = dec.String(); err != nil {
		return err
	}
	if s.X, err = dec.Int32(); err != nil {
		return err
	}
	if s.Y, err = dec.Int32(); err != nil {
		return err
	}
	if s.Size, err = dec.Int64(); err != nil {
		return err
	}
	n, err := dec.SequenceLength()
	if err != nil {
		return err
	}
	s.Tags = make([]string, n)
	for i := range s.Tags {
		if s.Tags[i], err = dec.String(); err != nil {
			return err
		}
	}
	if s.Ok, err = dec.Bool(); err != nil {
		return err
	}
	s.Ratio, err = dec.Float64()
	return err
}

func TestSerialize_RoundTrip(t *testing.T) {
	in := &shape{Color: "BLUE", X: 10, Y: -3, Size: 1 << 40, Tags: []string{"a", "bc"}, Ok: true, Ratio: 0.5}

	for _, e := range []Endianness{BigEndian, LittleEndian} {
		data, err := Serialize(in, e)
		require.NoError(t, err)

		endian, _, err := SplitPayload(data)
		require.NoError(t, err)
		assert.Equal(t, e, endian)

		out := &shape{}
		require.NoError(t, Deserialize(data, out))
		assert.Equal(t, in, out)
	}
}

func TestSerialize_AlignmentAfterHeader(t *testing.T) {
	data, err := Serialize(MarshalFunc(func(enc *Encoder) error {
		enc.Uint8(7)
		enc.Uint64(9)
		return nil
	}), LittleEndian)
	require.NoError(t, err)

	assert.Equal(t, []byte{0, 1, 0, 0}, data[:4])
	assert.Len(t, data, 4+16)
	assert.Equal(t, byte(9), data[12])
}

func TestSplitPayload_Errors(t *testing.T) {
	_, _, err := SplitPayload([]byte{0, 0})
	assert.ErrorIs(t, err, ErrTruncated)

	_, _, err = SplitPayload([]byte{0, 3, 0, 0})
	assert.ErrorIs(t, err, ErrUnsupportedEncapsulation)
}
