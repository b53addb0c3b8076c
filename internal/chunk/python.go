package chunk

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	docerrors "github.com/unclecode/doc2talk/internal/errors"
)

// PythonChunker parses Python sources with tree-sitter and emits one
// chunk per class definition and one per function definition.
type PythonChunker struct {
	parser *sitter.Parser
}

// NewPythonChunker creates a parser bound to the Python grammar.
func NewPythonChunker() *PythonChunker {
	p := sitter.NewParser()
	p.SetLanguage(python.GetLanguage())
	return &PythonChunker{parser: p}
}

// Close releases parser resources.
func (c *PythonChunker) Close() {
	if c.parser != nil {
		c.parser.Close()
	}
}

// Chunk parses source and emits class and function chunks. Each chunk's
// content is the exact source segment spanning the definition; nested
// definitions produce their own chunks while remaining inside the outer
// chunk's span, so retrieval weights the outer container's full body.
func (c *PythonChunker) Chunk(ctx context.Context, source []byte, path string) ([]*Chunk, error) {
	tree, err := c.parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, docerrors.ParseError(path, err)
	}
	if tree == nil {
		return nil, docerrors.ParseError(path, fmt.Errorf("nil parse tree"))
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, docerrors.ParseError(path, fmt.Errorf("syntax error in source"))
	}

	v := &pythonVisitor{source: source, path: path}
	v.visit(root)
	return v.chunks, nil
}

// pythonVisitor walks the AST collecting definitions. The label stack
// holds "class X" / "def y" entries for parent chains; enclosingClass is
// the lowercased name of the innermost enclosing class.
type pythonVisitor struct {
	source         []byte
	path           string
	chunks         []*Chunk
	stack          []string
	enclosingClass string
}

func (v *pythonVisitor) visit(node *sitter.Node) {
	switch node.Type() {
	case "class_definition":
		v.visitClass(node)
		return
	case "function_definition":
		v.visitFunction(node)
		return
	}

	for i := 0; i < int(node.NamedChildCount()); i++ {
		v.visit(node.NamedChild(i))
	}
}

func (v *pythonVisitor) visitClass(node *sitter.Node) {
	name := v.definitionName(node)
	v.chunks = append(v.chunks, &Chunk{
		Content: node.Content(v.source),
		Kind:    KindPythonClass,
		Path:    v.path,
		Name:    name,
		Parent:  strings.Join(v.stack, " > "),
		Line:    int(node.StartPoint().Row) + 1,
	})

	prevClass := v.enclosingClass
	v.enclosingClass = strings.ToLower(name)
	v.stack = append(v.stack, "class "+name)

	for i := 0; i < int(node.NamedChildCount()); i++ {
		v.visit(node.NamedChild(i))
	}

	v.stack = v.stack[:len(v.stack)-1]
	v.enclosingClass = prevClass
}

func (v *pythonVisitor) visitFunction(node *sitter.Node) {
	name := v.definitionName(node)
	v.chunks = append(v.chunks, &Chunk{
		Content: node.Content(v.source),
		Kind:    KindPythonFunction,
		Path:    v.path,
		Name:    name,
		Parent:  v.enclosingClass,
		Line:    int(node.StartPoint().Row) + 1,
	})

	v.stack = append(v.stack, "def "+name)

	for i := 0; i < int(node.NamedChildCount()); i++ {
		v.visit(node.NamedChild(i))
	}

	v.stack = v.stack[:len(v.stack)-1]
}

// definitionName returns the identifier of a class or function node.
func (v *pythonVisitor) definitionName(node *sitter.Node) string {
	if n := node.ChildByFieldName("name"); n != nil {
		return n.Content(v.source)
	}
	return ""
}
