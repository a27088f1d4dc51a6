package qdrant

import (
	"hash/fnv"
	"slices"
	"strings"
	"unicode"
)

type sparseVector struct {
	Indices []uint32  `json:"indices"`
	Values  []float32 `json:"values"`
}

// sparseEncoder hashes message terms into the "lexical" sparse vector. Documents carry the
// BM25 term-frequency component with length normalization; queries carry one unit weight per
// distinct term. Qdrant applies IDF at query time through the collection's idf modifier.
type sparseEncoder struct {
	k1        float64
	b         float64
	avgDocLen float64
	maxTerms  int
	stopwords map[string]struct{}
}

var messageEncoder = sparseEncoder{
	k1:        1.2,
	b:         0.75,
	avgDocLen: 16,
	maxTerms:  256,
	stopwords: makeSet("a", "an", "and", "are", "at", "be", "by", "for", "in", "is", "it", "of", "on", "or", "the", "to", "was", "with"),
}

func (e sparseEncoder) document(text string) sparseVector {
	terms := e.terms(text)
	if len(terms) == 0 {
		return sparseVector{}
	}
	tf := make(map[uint32]float64, len(terms))
	for _, term := range terms {
		tf[hashToken(term)]++
	}

	lengthNorm := 1 - e.b + e.b*float64(len(terms))/e.avgDocLen
	indices := e.topTerms(tf)
	values := make([]float32, len(indices))
	for i, idx := range indices {
		f := tf[idx]
		values[i] = float32(f * (e.k1 + 1) / (f + e.k1*lengthNorm))
	}
	return sparseVector{Indices: indices, Values: values}
}

func (e sparseEncoder) query(text string) sparseVector {
	terms := e.terms(text)
	if len(terms) == 0 {
		return sparseVector{}
	}
	tf := make(map[uint32]float64, len(terms))
	for _, term := range terms {
		tf[hashToken(term)] = 1
	}
	indices := e.topTerms(tf)
	values := make([]float32, len(indices))
	for i := range values {
		values[i] = 1
	}
	return sparseVector{Indices: indices, Values: values}
}

// terms drops stopwords unless nothing else is left, so "to be or to be" still matches itself.
func (e sparseEncoder) terms(text string) []string {
	tokens := tokenizeAlphaNum(text)
	kept := tokens[:0:0]
	for _, t := range tokens {
		if _, stop := e.stopwords[t]; !stop {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		return tokens
	}
	return kept
}

// topTerms keeps the maxTerms most frequent indices and returns them ascending, as Qdrant expects.
func (e sparseEncoder) topTerms(tf map[uint32]float64) []uint32 {
	indices := make([]uint32, 0, len(tf))
	for idx := range tf {
		indices = append(indices, idx)
	}
	if len(indices) > e.maxTerms {
		slices.SortFunc(indices, func(a, b uint32) int {
			switch {
			case tf[a] > tf[b]:
				return -1
			case tf[a] < tf[b]:
				return 1
			default:
				return int(int64(a) - int64(b))
			}
		})
		indices = indices[:e.maxTerms]
	}
	slices.Sort(indices)
	return indices
}

func hashToken(token string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(token))
	if sum := h.Sum32(); sum != 0 {
		return sum
	}
	return 1
}

func tokenizeAlphaNum(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func makeSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
