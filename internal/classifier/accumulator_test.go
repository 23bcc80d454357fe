package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bengfarrell/thelearningtablet/internal/protocol"
)

func TestAccumulatorAdd(t *testing.T) {
	t.Parallel()

	t.Run("claims every byte of a mapping", func(t *testing.T) {
		t.Parallel()
		acc := NewAccumulator()
		require.NoError(t, acc.Add("x", &protocol.MultiByteRangeMapping{ByteIndex: []int{1, 2}, Min: 0, Max: 32000}))

		claimed := acc.Claimed()
		assert.Equal(t, "x", claimed[1])
		assert.Equal(t, "x", claimed[2])
		assert.Equal(t, 1, acc.Len())
	})

	t.Run("overlapping claims fail with a conflict", func(t *testing.T) {
		t.Parallel()
		acc := NewAccumulator()
		require.NoError(t, acc.Add("x", &protocol.MultiByteRangeMapping{ByteIndex: []int{1, 2}, Min: 0, Max: 32000}))

		err := acc.Add("pressure", &protocol.RangeMapping{ByteIndex: 2, Min: 0, Max: 255})
		var conflict *ConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, "pressure", conflict.Channel)
		assert.Equal(t, "x", conflict.ClaimedBy)
		assert.Equal(t, 2, conflict.ByteIndex)

		_, present := acc.Mappings()["pressure"]
		assert.False(t, present)
	})

	t.Run("code mappings on the same byte merge their value tables", func(t *testing.T) {
		t.Parallel()
		acc := NewAccumulator()
		require.NoError(t, acc.Add("status", &protocol.CodeMapping{
			ByteIndex: 9,
			Values:    protocol.CodeValues{160: {State: "hover"}},
		}))
		require.NoError(t, acc.Add("status", &protocol.CodeMapping{
			ByteIndex: 9,
			Values:    protocol.CodeValues{160: {State: "ignored"}, 161: {State: "contact"}},
		}))

		merged := acc.Mappings()["status"].(*protocol.CodeMapping)
		assert.Equal(t, "hover", merged.Values[160].State)
		assert.Equal(t, "contact", merged.Values[161].State)
		assert.Equal(t, 1, acc.Len())
	})

	t.Run("mappings returns an isolated copy", func(t *testing.T) {
		t.Parallel()
		acc := NewAccumulator()
		require.NoError(t, acc.Add("pressure", &protocol.RangeMapping{ByteIndex: 5, Min: 0, Max: 255}))

		snapshot := acc.Mappings()
		snapshot["pressure"] = &protocol.RangeMapping{ByteIndex: 6}
		original := acc.Mappings()["pressure"].(*protocol.RangeMapping)
		assert.Equal(t, 5, original.ByteIndex)
	})
}
