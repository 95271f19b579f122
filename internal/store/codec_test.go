package store

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeDecodeAmountRoundTrip(t *testing.T) {
	cases := []float64{0, 19.9, -5.5, 1e9, math.SmallestNonzeroFloat64}
	for _, v := range cases {
		got, ok := decodeAmount(encodeAmount(v))
		assert.True(t, ok)
		assert.Equal(t, v, got)
	}
}

func TestDecodeAmountRejectsShortBuffer(t *testing.T) {
	_, ok := decodeAmount([]byte{1, 2, 3})
	assert.False(t, ok)
}
