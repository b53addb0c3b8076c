// Package graph implements the in-memory knowledge graph: content-
// addressed chunk nodes, an inverted token index, entity registries,
// markdown-to-class cross edges, and the BM25 scorers over them.
//
// A graph is built once and read-only afterwards, so a single instance
// is safe to share across sessions without locking.
package graph

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/unclecode/doc2talk/internal/chunk"
)

// Node is an immutable chunk stored in the graph.
type Node struct {
	Content     string     `msgpack:"content"`
	Kind        chunk.Kind `msgpack:"kind"`
	Path        string     `msgpack:"path"`
	Name        string     `msgpack:"name"`
	Parent      string     `msgpack:"parent"`
	Line        int        `msgpack:"line"`
	FullContent string     `msgpack:"full_content"`
}

// Graph is the knowledge graph.
type Graph struct {
	// Nodes maps node id (sha256 hex of content) to node.
	Nodes map[string]*Node

	// InvertedIndex maps lowercase token to the ordered postings list of
	// node ids containing it. Duplicate postings are kept.
	InvertedIndex map[string][]string

	// ClassRegistry maps lowercased class name to node id.
	ClassRegistry map[string]string

	// FunctionRegistry maps lowercased function name to node id.
	FunctionRegistry map[string]string

	// ParentMap maps function node id to its lowercased enclosing class.
	ParentMap map[string]string

	// CrossEdges maps markdown node id to the class node ids mentioned
	// in that section.
	CrossEdges map[string][]string

	// Documents holds one raw content string per AddNode call, in
	// insertion order. Its length is the N used by BM25.
	Documents []string

	// order maps node id to the position of its first insertion, for
	// deterministic tie-breaking. Rebuilt from Documents after a load.
	order map[string]int
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		Nodes:            make(map[string]*Node),
		InvertedIndex:    make(map[string][]string),
		ClassRegistry:    make(map[string]string),
		FunctionRegistry: make(map[string]string),
		ParentMap:        make(map[string]string),
		CrossEdges:       make(map[string][]string),
		order:            make(map[string]int),
	}
}

var tokenPattern = regexp.MustCompile(`[A-Za-z0-9_]+`)

// Tokenize returns the lowercase word tokens of text.
func Tokenize(text string) []string {
	return tokenPattern.FindAllString(strings.ToLower(text), -1)
}

// NodeID returns the stable id for a chunk content: the sha256 hex
// digest, so byte-identical chunks collapse to one node.
func NodeID(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// AddNode inserts a chunk and returns its node id. Content-duplicate
// insertions collapse to the existing node, but Documents still grows by
// one entry per call: BM25 length statistics count every insertion.
//
// Build order is significant: code chunks must be inserted before
// markdown chunks so the class registry is populated when cross edges
// are computed.
func (g *Graph) AddNode(c *chunk.Chunk) string {
	id := NodeID(c.Content)
	_, seen := g.Nodes[id]
	if !seen {
		g.order[id] = len(g.Documents)
	}

	g.Nodes[id] = &Node{
		Content:     c.Content,
		Kind:        c.Kind,
		Path:        c.Path,
		Name:        c.Name,
		Parent:      c.Parent,
		Line:        c.Line,
		FullContent: c.FullContent,
	}
	g.Documents = append(g.Documents, c.Content)

	switch c.Kind {
	case chunk.KindPythonClass:
		g.ClassRegistry[strings.ToLower(c.Name)] = id
	case chunk.KindPythonFunction:
		g.FunctionRegistry[strings.ToLower(c.Name)] = id
		if c.Parent != "" {
			g.ParentMap[id] = strings.ToLower(c.Parent)
		}
	}

	// Re-inserting identical content must leave the index and the cross
	// edges unchanged.
	if !seen {
		for _, token := range Tokenize(c.Content) {
			g.InvertedIndex[token] = append(g.InvertedIndex[token], id)
		}
		if c.Kind == chunk.KindMarkdownSection {
			g.linkClasses(id, c.Content)
		}
	}

	return id
}

// linkClasses records a cross edge from a markdown node to every class
// whose exact lowercased name appears in the section's token stream.
func (g *Graph) linkClasses(id, content string) {
	linked := make(map[string]bool)
	for _, token := range Tokenize(content) {
		classID, ok := g.ClassRegistry[token]
		if !ok || linked[classID] {
			continue
		}
		linked[classID] = true
		g.CrossEdges[id] = append(g.CrossEdges[id], classID)
	}
}

// RebuildOrder reconstructs insertion order from Documents. Called after
// loading a persisted graph, where only the documents sequence survives.
func (g *Graph) RebuildOrder() {
	g.order = make(map[string]int, len(g.Nodes))
	for i, content := range g.Documents {
		id := NodeID(content)
		if _, ok := g.order[id]; !ok {
			g.order[id] = i
		}
	}
}

// insertionOrder returns the tie-break rank for a node id.
func (g *Graph) insertionOrder(id string) int {
	if pos, ok := g.order[id]; ok {
		return pos
	}
	return len(g.Documents)
}
