package vectorindex

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// DefaultHashingDimensions is used when HashingEmbedder.Dimensions is not set.
const DefaultHashingDimensions = 256

// HashingEmbedder maps each lowercase token to a bucket of a fixed size vector.
// It needs no network access, which makes it usable offline and in tests.
type HashingEmbedder struct {
	Dimensions int
}

func (h HashingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	dims := h.Dimensions
	if dims <= 0 {
		dims = DefaultHashingDimensions
	}

	vectors := make([][]float32, 0, len(texts))
	for _, text := range texts {
		vectors = append(vectors, hashText(text, dims))
	}

	return vectors, nil
}

func hashText(text string, dims int) []float32 {
	vec := make([]float32, dims)

	for _, token := range tokenize(text) {
		hasher := fnv.New32a()
		_, _ = hasher.Write([]byte(token))
		vec[hasher.Sum32()%uint32(dims)]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}

	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}

	return vec
}

// tokenize keeps characters like '+', '#' and '.' so that "C++" and "node.js" stay distinct tokens.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '+' || r == '#' || r == '.')
	})

	tokens := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, ".")
		if f != "" {
			tokens = append(tokens, f)
		}
	}

	return tokens
}
