package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclecode/doc2talk/internal/chunk"
)

func classChunk(name, content string) *chunk.Chunk {
	return &chunk.Chunk{Content: content, Kind: chunk.KindPythonClass, Path: "a.py", Name: name, Line: 1}
}

func funcChunk(name, parent, content string) *chunk.Chunk {
	return &chunk.Chunk{Content: content, Kind: chunk.KindPythonFunction, Path: "a.py", Name: name, Parent: parent, Line: 1}
}

func mdChunk(content, full string) *chunk.Chunk {
	return &chunk.Chunk{Content: content, Kind: chunk.KindMarkdownSection, Path: "a.md", FullContent: full}
}

func TestGraph_AddNode_ContentAddressing(t *testing.T) {
	g := New()
	id := g.AddNode(classChunk("Foo", "class Foo: pass"))

	assert.Equal(t, NodeID("class Foo: pass"), id)
	require.Contains(t, g.Nodes, id)
	assert.Equal(t, "class Foo: pass", g.Nodes[id].Content)
	assert.Len(t, g.Documents, 1)
}

func TestGraph_AddNode_Registries(t *testing.T) {
	g := New()
	classID := g.AddNode(classChunk("Foo", "class Foo: pass"))
	funcID := g.AddNode(funcChunk("bar", "foo", "def bar(self): pass"))

	assert.Equal(t, classID, g.ClassRegistry["foo"])
	assert.Equal(t, funcID, g.FunctionRegistry["bar"])
	assert.Equal(t, "foo", g.ParentMap[funcID])
}

func TestGraph_AddNode_TopLevelFunctionHasNoParent(t *testing.T) {
	g := New()
	id := g.AddNode(funcChunk("standalone", "", "def standalone(): pass"))

	assert.NotContains(t, g.ParentMap, id)
}

func TestGraph_AddNode_LastWriterWinsOnDuplicateNames(t *testing.T) {
	g := New()
	g.AddNode(classChunk("Foo", "class Foo: pass"))
	second := g.AddNode(classChunk("Foo", "class Foo:\n    x = 1"))

	assert.Equal(t, second, g.ClassRegistry["foo"])
}

func TestGraph_AddNode_DuplicateContentQuirk(t *testing.T) {
	g := New()
	first := g.AddNode(classChunk("Foo", "class Foo: pass"))
	indexBefore := len(g.InvertedIndex["foo"])

	second := g.AddNode(classChunk("Foo", "class Foo: pass"))

	// Same id, one node, untouched index -- but documents grows by one,
	// so BM25 statistics count every insertion call.
	assert.Equal(t, first, second)
	assert.Len(t, g.Nodes, 1)
	assert.Len(t, g.Documents, 2)
	assert.Len(t, g.InvertedIndex["foo"], indexBefore)
}

func TestGraph_InvertedIndex_PostingsContainToken(t *testing.T) {
	g := New()
	g.AddNode(classChunk("Foo", "class Foo: pass"))
	g.AddNode(mdChunk("## Intro\nFoo is great", "## Intro\nFoo is great"))

	for token, postings := range g.InvertedIndex {
		for _, id := range postings {
			assert.Contains(t, Tokenize(g.Nodes[id].Content), token,
				"posting for %q must contain the token", token)
		}
	}
}

func TestGraph_CrossEdges_LinkMarkdownToClasses(t *testing.T) {
	g := New()
	fooID := g.AddNode(classChunk("Foo", "class Foo: pass"))
	g.AddNode(classChunk("Bar", "class Bar: pass"))
	mdID := g.AddNode(mdChunk("## Intro\nFoo is great", "## Intro\nFoo is great"))

	require.Contains(t, g.CrossEdges, mdID)
	assert.Equal(t, []string{fooID}, g.CrossEdges[mdID])
}

func TestGraph_CrossEdges_AreSubsetOfClassRegistry(t *testing.T) {
	g := New()
	g.AddNode(classChunk("Foo", "class Foo: pass"))
	g.AddNode(mdChunk("## Intro\nFoo and Baz", "## Intro\nFoo and Baz"))

	classIDs := make(map[string]bool)
	for _, id := range g.ClassRegistry {
		classIDs[id] = true
	}
	for _, edges := range g.CrossEdges {
		for _, cid := range edges {
			assert.True(t, classIDs[cid])
		}
	}
}

func TestGraph_CrossEdges_RequireExactLowercasedName(t *testing.T) {
	g := New()
	g.AddNode(classChunk("Crawler", "class Crawler: pass"))
	mdID := g.AddNode(mdChunk("## Intro\nThe crawlers are fast", "x"))

	// "crawlers" is not an exact token match for "crawler".
	assert.NotContains(t, g.CrossEdges, mdID)
}

func TestGraph_RebuildOrder_MatchesInsertion(t *testing.T) {
	g := New()
	a := g.AddNode(classChunk("A", "class A: pass"))
	b := g.AddNode(classChunk("B", "class B: pass"))

	g.RebuildOrder()
	assert.Less(t, g.insertionOrder(a), g.insertionOrder(b))
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"class", "foo_bar", "pass", "42"}, Tokenize("Class Foo_Bar: pass 42"))
	assert.Empty(t, Tokenize("!!! ..."))
}
