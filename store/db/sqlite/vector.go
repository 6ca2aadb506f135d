package sqlite

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

// encodeEmbedding encodes a float32 slice into a little-endian BLOB. The
// length is derived from the BLOB size on decode, so no prefix is stored.
func encodeEmbedding(vec []float32) []byte {
	b := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return b
}

// decodeEmbedding decodes a BLOB produced by encodeEmbedding.
func decodeEmbedding(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, errors.Errorf("invalid embedding blob length %d (not multiple of 4)", len(b))
	}
	vec := make([]float32, len(b)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return vec, nil
}

// cosineSimilarity computes the cosine similarity between two vectors.
// A zero-magnitude vector has no direction, so it scores -1 and its
// passages rank last, matching how pgvector distance orders them.
func cosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, errors.Errorf("cosine similarity dimension mismatch: %d vs %d", len(a), len(b))
	}
	var dot, na2, nb2 float64
	for i := range a {
		va := float64(a[i])
		vb := float64(b[i])
		dot += va * vb
		na2 += va * va
		nb2 += vb * vb
	}
	if na2 == 0 || nb2 == 0 {
		return -1, nil
	}
	return dot / (math.Sqrt(na2) * math.Sqrt(nb2)), nil
}

// relevanceScore maps cosine similarity from [-1, 1] into [0, 1], matching
// the 1 - distance/2 score the postgres driver computes with pgvector.
func relevanceScore(cosine float64) float64 {
	return (1 + cosine) / 2
}
