package engine

import (
	"math"
	"sort"

	"github.com/unclecode/doc2talk/internal/chunk"
	"github.com/unclecode/doc2talk/internal/graph"
)

// QueryOptions tunes one retrieval pass.
type QueryOptions struct {
	// TopN is the number of documentation nodes retrieved by BM25.
	TopN int

	// TopM is the number of related classes kept after re-ranking.
	TopM int

	// FileCoverage is the selected/total chunk ratio at or above which
	// a file's sections are replaced by the whole file.
	FileCoverage float64
}

// DefaultQueryOptions returns the standard retrieval parameters.
func DefaultQueryOptions() QueryOptions {
	return QueryOptions{TopN: 10, TopM: 3, FileCoverage: 0.6}
}

// docMentionWeight scales a documentation node's normalized score when it
// mentions a candidate class.
const docMentionWeight = 0.7

// codeKinds are excluded from the documentation retrieval stage.
var codeKinds = map[chunk.Kind]bool{
	chunk.KindPythonClass:    true,
	chunk.KindPythonFunction: true,
}

// Query retrieves context for a question with default options.
func (d *DocGraph) Query(question string) string {
	return d.QueryWithOptions(question, DefaultQueryOptions())
}

// QueryWithOptions runs the full retrieval pipeline: documentation BM25,
// cross-edge class expansion, composite re-ranking, file-coverage
// promotion, and rendering.
func (d *DocGraph) QueryWithOptions(question string, opts QueryOptions) string {
	docNodes := d.Graph.Search(question, opts.TopN, codeKinds)
	classNodes := d.relatedClasses(docNodes, question)
	if len(classNodes) > opts.TopM {
		classNodes = classNodes[:opts.TopM]
	}
	return d.render(docNodes, classNodes, nil, opts.FileCoverage)
}

// relatedClasses expands the retrieved documentation nodes through their
// cross edges and re-ranks the candidate classes by a composite of their
// own BM25 score and a dampened documentation-mention score.
func (d *DocGraph) relatedClasses(docNodes []graph.ScoredNode, question string) []graph.ScoredNode {
	var candidates []string
	seen := make(map[string]bool)
	for _, dn := range docNodes {
		for _, cid := range d.Graph.CrossEdges[dn.ID] {
			if !seen[cid] {
				seen[cid] = true
				candidates = append(candidates, cid)
			}
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	contents := make([]graph.Candidate, len(candidates))
	for i, cid := range candidates {
		contents[i] = graph.Candidate{ID: cid, Content: d.Graph.Nodes[cid].Content}
	}
	classScores := graph.ScoreCandidates(question, contents)

	// An all-zero score map means no candidate relates to the question;
	// normalizing would divide by zero.
	maxClass := maxScore(classScores)
	if maxClass == 0 {
		return nil
	}
	for cid := range classScores {
		classScores[cid] /= maxClass
	}

	docNorm := make(map[string]float64, len(docNodes))
	maxDoc := 0.0
	for _, dn := range docNodes {
		if dn.Score > maxDoc {
			maxDoc = dn.Score
		}
	}
	if maxDoc > 0 {
		for _, dn := range docNodes {
			docNorm[dn.ID] = dn.Score / maxDoc
		}
	}

	mention := make(map[string]float64)
	for _, cid := range candidates {
		for _, dn := range docNodes {
			if containsID(d.Graph.CrossEdges[dn.ID], cid) {
				mention[cid] += docMentionWeight * docNorm[dn.ID]
			}
		}
	}
	if maxMention := maxScore(mention); maxMention > 0 {
		for cid := range mention {
			mention[cid] /= maxMention
		}
	}

	ranked := make([]graph.ScoredNode, 0, len(candidates))
	rank := make(map[string]int, len(candidates))
	for i, cid := range candidates {
		rank[cid] = i
		bm := classScores[cid]
		dampening := 1 / (1 + math.Pow(math.Abs(bm), 1.5))
		ranked = append(ranked, graph.ScoredNode{
			ID:    cid,
			Score: bm + mention[cid]*dampening,
		})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return rank[ranked[i].ID] < rank[ranked[j].ID]
	})
	return ranked
}

func maxScore(scores map[string]float64) float64 {
	max := 0.0
	for _, s := range scores {
		if s > max {
			max = s
		}
	}
	return max
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
