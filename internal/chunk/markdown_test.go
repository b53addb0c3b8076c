package chunk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkdown_SplitsAtLevelTwoHeadings(t *testing.T) {
	content := `# Title

Intro paragraph.

## Section 1

Content for section 1.

## Section 2

Content for section 2.

### Subsection

Nested content stays with its parent split point.
`

	chunks := Markdown(content, "README.md")
	require.Len(t, chunks, 4)

	assert.Contains(t, chunks[0].Content, "# Title")
	assert.Contains(t, chunks[0].Content, "Intro paragraph")
	assert.Contains(t, chunks[1].Content, "## Section 1")
	assert.Contains(t, chunks[2].Content, "## Section 2")
	assert.Contains(t, chunks[3].Content, "### Subsection")

	for _, c := range chunks {
		assert.Equal(t, KindMarkdownSection, c.Kind)
		assert.Equal(t, "README.md", c.Path)
		assert.Empty(t, c.Name)
		assert.Empty(t, c.Parent)
		assert.Equal(t, content, c.FullContent)
	}
}

func TestMarkdown_HeadingAtStart(t *testing.T) {
	content := "## Only Section\n\nBody text.\n"

	chunks := Markdown(content, "a.md")
	require.Len(t, chunks, 1)
	assert.Equal(t, "## Only Section\n\nBody text.", chunks[0].Content)
}

func TestMarkdown_DiscardsEmptyFragments(t *testing.T) {
	content := "\n\n## A\ntext\n## B\n\n\n"

	chunks := Markdown(content, "a.md")
	require.Len(t, chunks, 2)
	assert.Equal(t, "## A\ntext", chunks[0].Content)
	assert.Equal(t, "## B", chunks[1].Content)
}

func TestMarkdown_LevelOneHeadingDoesNotSplit(t *testing.T) {
	content := "# One\ntext\n# Two\nmore\n"

	chunks := Markdown(content, "a.md")
	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0].Content, "# One")
	assert.Contains(t, chunks[0].Content, "# Two")
}

func TestMarkdown_EmptyFile(t *testing.T) {
	assert.Empty(t, Markdown("", "a.md"))
	assert.Empty(t, Markdown("   \n\t\n", "a.md"))
}

func TestMarkdown_ChunkContentIsTrimmed(t *testing.T) {
	content := "## Intro\nFoo is great\n\n"

	chunks := Markdown(content, "a.md")
	require.Len(t, chunks, 1)
	assert.Equal(t, "## Intro\nFoo is great", chunks[0].Content)
}
