package engine

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/unclecode/doc2talk/internal/chunk"
	"github.com/unclecode/doc2talk/internal/graph"
)

// renderedDoc is one documentation entry of the rendered context: either
// a section chunk or a promoted whole file.
type renderedDoc struct {
	path     string
	content  string
	fullFile bool
}

// render produces the final markdown context. Documentation nodes are
// grouped by file; a file whose selected/total chunk ratio reaches the
// coverage threshold is emitted once as its whole content with a
// FULL FILE marker. The function appendix is a reserved slot: callers
// currently supply nil.
func (d *DocGraph) render(docNodes, classNodes, functionNodes []graph.ScoredNode, fileCoverage float64) string {
	finalDocs := d.promoteFiles(docNodes, fileCoverage)

	output := []string{"# Documentation Context\n"}

	limit := len(docNodes)
	if len(finalDocs) < limit {
		limit = len(finalDocs)
	}
	for _, doc := range finalDocs[:limit] {
		header := "## " + filepath.Base(doc.path)
		if doc.fullFile {
			header = "## FULL FILE: " + filepath.Base(doc.path)
		}
		output = append(output, fmt.Sprintf("%s\n```markdown\n%s\n```", header, doc.content))
	}

	if len(classNodes) > 0 {
		output = append(output, "\n# Related Classes\n")
		for _, cn := range classNodes {
			node := d.Graph.Nodes[cn.ID]
			output = append(output, fmt.Sprintf("## %s\n```python\n%s\n```", node.Name, node.Content))
		}
	}

	if len(functionNodes) > 0 {
		output = append(output, "\n# Related Functions\n")
		for _, fn := range functionNodes {
			node := d.Graph.Nodes[fn.ID]
			suffix := ""
			if node.Parent != "" {
				suffix = fmt.Sprintf(" (%s)", node.Parent)
			}
			output = append(output, fmt.Sprintf("## %s%s\n```python\n%s\n```", node.Name, suffix, node.Content))
		}
	}

	return strings.Join(output, "\n")
}

// promoteFiles applies the file-coverage threshold. The total chunk
// count per file is recomputed from the stored full content with the
// markdown chunker; when that is unavailable the section chunks are
// kept as-is.
func (d *DocGraph) promoteFiles(docNodes []graph.ScoredNode, fileCoverage float64) []renderedDoc {
	type fileGroup struct {
		path  string
		nodes []*graph.Node
	}
	var groups []*fileGroup
	byPath := make(map[string]*fileGroup)
	for _, dn := range docNodes {
		node := d.Graph.Nodes[dn.ID]
		g, ok := byPath[node.Path]
		if !ok {
			g = &fileGroup{path: node.Path}
			byPath[node.Path] = g
			groups = append(groups, g)
		}
		g.nodes = append(g.nodes, node)
	}

	var finalDocs []renderedDoc
	for _, g := range groups {
		full := g.nodes[0].FullContent
		total := 0
		if full != "" {
			total = len(chunk.Markdown(full, g.path))
		}
		if total > 0 && float64(len(g.nodes))/float64(total) >= fileCoverage {
			finalDocs = append(finalDocs, renderedDoc{path: g.path, content: full, fullFile: true})
			continue
		}
		for _, node := range g.nodes {
			finalDocs = append(finalDocs, renderedDoc{path: g.path, content: node.Content})
		}
	}
	return finalDocs
}
