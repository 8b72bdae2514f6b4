package embedding

import (
	"context"
	"hash/fnv"
	"strings"
)

const DefaultDimension = 384

const (
	trigramWeight = 1.0
	tokenWeight   = 2.0
	bigramWeight  = 1.5
)

// LexicalEmbedder hashes character trigrams, tokens and token bigrams into a
// fixed number of buckets. It performs no I/O and is safe for concurrent use.
type LexicalEmbedder struct {
	dim int
}

func NewLexicalEmbedder(dim int) *LexicalEmbedder {
	if dim <= 0 {
		dim = DefaultDimension
	}
	return &LexicalEmbedder{dim: dim}
}

func (e *LexicalEmbedder) Dimension() int {
	return e.dim
}

// Embed never fails; it satisfies Embedder.
func (e *LexicalEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	return e.Vector(text), nil
}

// Vector returns the unit vector for text. Blank text yields the zero vector.
func (e *LexicalEmbedder) Vector(text string) []float32 {
	v := make([]float64, e.dim)
	norm := strings.ToLower(strings.TrimSpace(text))
	if norm == "" {
		return make([]float32, e.dim)
	}

	runes := []rune(norm)
	for i := 0; i+3 <= len(runes); i++ {
		v[e.bucket(string(runes[i:i+3]))] += trigramWeight
	}

	tokens := strings.Fields(norm)
	for _, tok := range tokens {
		v[e.bucket(tok)] += tokenWeight
	}
	for i := 0; i+1 < len(tokens); i++ {
		v[e.bucket(tokens[i]+" "+tokens[i+1])] += bigramWeight
	}

	return normalize(v)
}

func (e *LexicalEmbedder) bucket(s string) int {
	h := fnv.New32a()
	h.Write([]byte(s))
	return int(h.Sum32() % uint32(e.dim))
}
