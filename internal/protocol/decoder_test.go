package protocol

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bengfarrell/thelearningtablet/internal/packet"
)

func TestDecodeRange(t *testing.T) {
	t.Parallel()

	m := &RangeMapping{ByteIndex: 1, Min: 10, Max: 210}

	t.Run("min decodes to zero and max to one", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, 0.0, DecodeRange(m, packet.RawPacket{0x02, 10}))
		assert.Equal(t, 1.0, DecodeRange(m, packet.RawPacket{0x02, 210}))
	})

	t.Run("intermediate value is normalized linearly", func(t *testing.T) {
		t.Parallel()
		assert.InDelta(t, 0.5, DecodeRange(m, packet.RawPacket{0x02, 110}), 1e-9)
	})

	t.Run("values outside the bounds are clamped", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, 0.0, DecodeRange(m, packet.RawPacket{0x02, 5}))
		assert.Equal(t, 1.0, DecodeRange(m, packet.RawPacket{0x02, 250}))
	})

	t.Run("equal bounds always decode to zero", func(t *testing.T) {
		t.Parallel()
		flat := &RangeMapping{ByteIndex: 1, Min: 42, Max: 42}
		assert.Equal(t, 0.0, DecodeRange(flat, packet.RawPacket{0x02, 42}))
		assert.Equal(t, 0.0, DecodeRange(flat, packet.RawPacket{0x02, 200}))
	})

	t.Run("out of bounds index decodes to zero", func(t *testing.T) {
		t.Parallel()
		far := &RangeMapping{ByteIndex: 9, Min: 0, Max: 255}
		assert.Equal(t, 0.0, DecodeRange(far, packet.RawPacket{0x02, 7}))
	})
}

func TestDecodeMultiByteRange(t *testing.T) {
	t.Parallel()

	m := &MultiByteRangeMapping{ByteIndex: []int{1, 2}, Min: 0, Max: 65535}

	t.Run("combines bytes little endian", func(t *testing.T) {
		t.Parallel()
		assert.InDelta(t, 255.0/65535.0, DecodeMultiByteRange(m, packet.RawPacket{0x02, 0xFF, 0x00}), 1e-9)
	})

	t.Run("full and zero values hit the exact bounds", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, 1.0, DecodeMultiByteRange(m, packet.RawPacket{0x02, 0xFF, 0xFF}))
		assert.Equal(t, 0.0, DecodeMultiByteRange(m, packet.RawPacket{0x02, 0x00, 0x00}))
	})

	t.Run("out of bounds index in the list decodes to zero", func(t *testing.T) {
		t.Parallel()
		wide := &MultiByteRangeMapping{ByteIndex: []int{1, 5}, Min: 0, Max: 65535}
		assert.Equal(t, 0.0, DecodeMultiByteRange(wide, packet.RawPacket{0x02, 0xFF}))
	})
}

func TestDecodeBipolarRange(t *testing.T) {
	t.Parallel()

	m := &BipolarRangeMapping{
		ByteIndex:   1,
		PositiveMin: 128, PositiveMax: 255,
		NegativeMin: 0, NegativeMax: 127,
	}

	t.Run("positive sub-range", func(t *testing.T) {
		t.Parallel()
		got := DecodeBipolarRange(m, packet.RawPacket{0x02, 200})
		assert.InDelta(t, float64(200-128)/float64(255-128), got, 1e-9)
	})

	t.Run("negative sub-range stays within minus one and zero", func(t *testing.T) {
		t.Parallel()
		got := DecodeBipolarRange(m, packet.RawPacket{0x02, 50})
		assert.Less(t, got, 0.0)
		assert.GreaterOrEqual(t, got, -1.0)
	})

	t.Run("positive minimum decodes to exactly zero", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, 0.0, DecodeBipolarRange(m, packet.RawPacket{0x02, 128}))
	})

	t.Run("equal sub-range bounds decode to zero", func(t *testing.T) {
		t.Parallel()
		flat := &BipolarRangeMapping{ByteIndex: 1, PositiveMin: 100, PositiveMax: 100, NegativeMin: 0, NegativeMax: 0}
		assert.Equal(t, 0.0, DecodeBipolarRange(flat, packet.RawPacket{0x02, 100}))
		assert.Equal(t, 0.0, DecodeBipolarRange(flat, packet.RawPacket{0x02, 0}))
	})

	t.Run("value in neither sub-range decodes to zero", func(t *testing.T) {
		t.Parallel()
		narrow := &BipolarRangeMapping{ByteIndex: 1, PositiveMin: 200, PositiveMax: 240, NegativeMin: 20, NegativeMax: 60}
		assert.Equal(t, 0.0, DecodeBipolarRange(narrow, packet.RawPacket{0x02, 100}))
	})

	t.Run("out of bounds index decodes to zero", func(t *testing.T) {
		t.Parallel()
		far := &BipolarRangeMapping{ByteIndex: 9, PositiveMin: 128, PositiveMax: 255, NegativeMin: 0, NegativeMax: 127}
		assert.Equal(t, 0.0, DecodeBipolarRange(far, packet.RawPacket{0x02, 1}))
	})
}

func TestDecodeBitFlags(t *testing.T) {
	t.Parallel()

	m := &BitFlagsMapping{ByteIndex: 1, ButtonCount: 8}

	t.Run("each bit maps to its own button key", func(t *testing.T) {
		t.Parallel()
		got := DecodeBitFlags(m, packet.RawPacket{0x02, 0b00000101})
		assert.True(t, got["button1"])
		assert.False(t, got["button2"])
		assert.True(t, got["button3"])
		for i := 4; i <= 8; i++ {
			assert.False(t, got["button"+strconv.Itoa(i)])
		}
	})

	t.Run("all bits set and cleared", func(t *testing.T) {
		t.Parallel()
		allOn := DecodeBitFlags(m, packet.RawPacket{0x02, 0xFF})
		allOff := DecodeBitFlags(m, packet.RawPacket{0x02, 0x00})
		assert.Len(t, allOn, 8)
		assert.Len(t, allOff, 8)
		for key, v := range allOn {
			assert.True(t, v, key)
		}
		for key, v := range allOff {
			assert.False(t, v, key)
		}
	})

	t.Run("button count limits the produced keys", func(t *testing.T) {
		t.Parallel()
		small := &BitFlagsMapping{ByteIndex: 1, ButtonCount: 2}
		got := DecodeBitFlags(small, packet.RawPacket{0x02, 0xFF})
		assert.Len(t, got, 2)
	})

	t.Run("out of bounds index produces no keys", func(t *testing.T) {
		t.Parallel()
		far := &BitFlagsMapping{ByteIndex: 9, ButtonCount: 8}
		assert.Empty(t, DecodeBitFlags(far, packet.RawPacket{0x02, 0xFF}))
	})
}

func TestDecodeCode(t *testing.T) {
	t.Parallel()

	m := &CodeMapping{
		ByteIndex: 1,
		Values:    CodeValues{160: {State: "stylus"}},
	}

	t.Run("known code returns the mapped value", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, CodeValue{State: "stylus"}, DecodeCode(m, packet.RawPacket{0x02, 160}))
	})

	t.Run("unknown code is preserved as its decimal string", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, "99", DecodeCode(m, packet.RawPacket{0x02, 99}))
	})

	t.Run("out of bounds index returns nil", func(t *testing.T) {
		t.Parallel()
		far := &CodeMapping{ByteIndex: 9, Values: CodeValues{}}
		assert.Nil(t, DecodeCode(far, packet.RawPacket{0x02, 1}))
	})
}

func TestDecode(t *testing.T) {
	t.Parallel()

	mappings := ByteCodeMappings{
		"x":             &MultiByteRangeMapping{ByteIndex: []int{1, 2}, Min: 0, Max: 65535},
		"pressure":      &RangeMapping{ByteIndex: 3, Min: 0, Max: 255},
		"tiltX":         &BipolarRangeMapping{ByteIndex: 4, PositiveMin: 128, PositiveMax: 255, NegativeMin: 0, NegativeMax: 127},
		"tabletButtons": &BitFlagsMapping{ByteIndex: 5, ButtonCount: 2},
		"status":        &CodeMapping{ByteIndex: 6, Values: CodeValues{160: {State: "hover"}}},
	}

	t.Run("applies every mapping of a matching report", func(t *testing.T) {
		t.Parallel()
		p := packet.RawPacket{0x02, 0xFF, 0xFF, 255, 128, 0b01, 160}
		got := Decode(mappings, 0x02, 0, p)

		assert.Equal(t, 1.0, got["x"])
		assert.Equal(t, 1.0, got["pressure"])
		assert.Equal(t, 0.0, got["tiltX"])
		assert.Equal(t, true, got["button1"])
		assert.Equal(t, false, got["button2"])
		assert.Equal(t, CodeValue{State: "hover"}, got["status"])
	})

	t.Run("mismatched report id decodes to an empty result", func(t *testing.T) {
		t.Parallel()
		p := packet.RawPacket{0x05, 0xFF, 0xFF, 255, 128, 0b01, 160}
		assert.Empty(t, Decode(mappings, 0x02, 0, p))
	})

	t.Run("is deterministic for the same packet", func(t *testing.T) {
		t.Parallel()
		p := packet.RawPacket{0x02, 0x10, 0x20, 9, 130, 0b10, 7}
		assert.Equal(t, Decode(mappings, 0x02, 0, p), Decode(mappings, 0x02, 0, p))
	})
}
