package sqlite

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEmbeddingCodecRoundTrip(t *testing.T) {
	vectors := [][]float32{
		{0.1, -0.2, 0.3},
		{0},
		{math.MaxFloat32, -math.MaxFloat32, math.SmallestNonzeroFloat32},
	}
	for _, v := range vectors {
		require.Equal(t, v, decodeEmbedding(encodeEmbedding(v)))
	}
}

func TestDecodeEmbeddingBadInput(t *testing.T) {
	require.Nil(t, decodeEmbedding(nil))
	require.Nil(t, decodeEmbedding([]byte{}))
	// Truncated blobs are rejected rather than misread.
	require.Nil(t, decodeEmbedding([]byte{1, 2, 3}))
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float32
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
		{"mismatched dims", []float32{1, 2}, []float32{1, 2, 3}, 0},
		{"both empty", nil, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.InDelta(t, tt.want, cosineSimilarity(tt.a, tt.b), 1e-6)
		})
	}
}

func TestCosineSimilarityScaleInvariant(t *testing.T) {
	a := []float32{0.3, -0.7, 0.2, 0.9}
	scaled := make([]float32, len(a))
	for i, v := range a {
		scaled[i] = v * 100
	}
	require.InDelta(t, 1.0, cosineSimilarity(a, scaled), 1e-6)
}

func TestMarshalStringListRoundTrip(t *testing.T) {
	for _, list := range [][]string{nil, {}, {"a"}, {"with space", "unicode-日本語"}} {
		raw, err := marshalStringList(list)
		require.NoError(t, err)
		back, err := unmarshalStringList(raw)
		require.NoError(t, err)
		if len(list) == 0 {
			require.Empty(t, back)
		} else {
			require.Equal(t, list, back)
		}
	}
}
