// Package chunk splits source files into retrievable units: markdown
// files into heading-bounded sections, Python files into structural
// class and function chunks via tree-sitter.
package chunk

// Kind identifies the structural kind of a chunk.
type Kind string

const (
	// KindMarkdownSection is a heading-bounded markdown section.
	KindMarkdownSection Kind = "markdown_section"
	// KindPythonClass is a Python class definition.
	KindPythonClass Kind = "python_class"
	// KindPythonFunction is a Python function or method definition.
	KindPythonFunction Kind = "python_function"
)

// Chunk is a unit of retrievable text with its structural metadata.
type Chunk struct {
	// Content is the textual body: the exact source segment for code,
	// the trimmed section text for markdown.
	Content string

	// Kind is the structural kind.
	Kind Kind

	// Path is the origin file.
	Path string

	// Name is the entity name; empty for markdown sections.
	Name string

	// Parent is the enclosing scope: for a class, the " > "-joined chain
	// of enclosing class/def labels; for a function, the lowercased name
	// of the immediately enclosing class. Empty at top level and for
	// markdown.
	Parent string

	// Line is the 1-based source line for code chunks.
	Line int

	// FullContent is the entire source file; markdown sections only.
	// Retained to enable whole-file promotion at query time.
	FullContent string
}
