package graph

import (
	"math"
	"sort"
	"strings"

	"github.com/unclecode/doc2talk/internal/chunk"
)

// Okapi BM25 parameters.
const (
	k1 = 1.5
	b  = 0.75
)

// ScoredNode is a node id with its BM25 score.
type ScoredNode struct {
	ID    string
	Score float64
}

// Candidate is an (id, content) pair for ad-hoc scoring.
type Candidate struct {
	ID      string
	Content string
}

// Search runs Okapi BM25 over the inverted index. Document length is the
// whitespace-split token count; term frequency is the substring count of
// the token in the lowercased content. Candidates whose kind is in
// exclude are filtered out. Returns the topN highest-scoring nodes, ties
// broken by insertion order.
func (g *Graph) Search(query string, topN int, exclude map[chunk.Kind]bool) []ScoredNode {
	if topN <= 0 || len(g.Documents) == 0 {
		return nil
	}

	totalLen := 0
	for _, d := range g.Documents {
		totalLen += len(strings.Fields(d))
	}
	avgdl := float64(totalLen) / float64(len(g.Documents))
	n := float64(len(g.Documents))

	scores := make(map[string]float64)
	for _, token := range Tokenize(query) {
		postings := g.InvertedIndex[token]
		df := float64(len(postings))
		if df == 0 {
			continue
		}
		idf := math.Log((n-df+0.5)/(df+0.5) + 1)
		for _, id := range postings {
			node := g.Nodes[id]
			if exclude[node.Kind] {
				continue
			}
			doc := node.Content
			tf := float64(strings.Count(strings.ToLower(doc), token))
			dl := float64(len(strings.Fields(doc)))
			scores[id] += idf * (tf * (k1 + 1)) / (tf + k1*(1-b+b*dl/avgdl))
		}
	}

	ranked := make([]ScoredNode, 0, len(scores))
	for id, score := range scores {
		ranked = append(ranked, ScoredNode{ID: id, Score: score})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return g.insertionOrder(ranked[i].ID) < g.insertionOrder(ranked[j].ID)
	})

	if len(ranked) > topN {
		ranked = ranked[:topN]
	}
	return ranked
}

// ScoreCandidates runs the same BM25 formula over an arbitrary candidate
// list, recomputing document frequencies, N, and the average document
// length from the supplied candidates alone. Term frequency here is the
// token-equality count over the tokenized content.
func ScoreCandidates(query string, candidates []Candidate) map[string]float64 {
	scores := make(map[string]float64)
	if len(candidates) == 0 {
		return scores
	}

	totalLen := 0
	for _, c := range candidates {
		totalLen += len(strings.Fields(c.Content))
	}
	avgdl := float64(totalLen) / float64(len(candidates))
	n := float64(len(candidates))

	df := make(map[string]int)
	for _, c := range candidates {
		seen := make(map[string]bool)
		for _, token := range Tokenize(c.Content) {
			if !seen[token] {
				df[token]++
				seen[token] = true
			}
		}
	}

	queryTokens := Tokenize(query)
	for _, c := range candidates {
		docTokens := Tokenize(c.Content)
		dl := float64(len(docTokens))
		for _, token := range queryTokens {
			docFreq, ok := df[token]
			if !ok {
				continue
			}
			tf := 0.0
			for _, t := range docTokens {
				if t == token {
					tf++
				}
			}
			idf := math.Log((n-float64(docFreq)+0.5)/(float64(docFreq)+0.5) + 1)
			scores[c.ID] += idf * (tf * (k1 + 1)) / (tf + k1*(1-b+b*dl/avgdl))
		}
	}

	return scores
}
