package parser

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	slasherrors "slashc/internal/errors"
)

const helloDoc = "---\n" +
	"slash: hello\n" +
	"image: alpine:3\n" +
	"outputs:\n" +
	"  - out.txt\n" +
	"---\n" +
	"```bash name=w\n" +
	"echo hi > /out/out.txt\n" +
	"```\n"

func TestParse_ValidDocument(t *testing.T) {
	doc, err := Parse("hello.md", []byte(helloDoc))
	require.NoError(t, err)

	assert.Equal(t, "hello.md", doc.Path)
	assert.Equal(t, "hello", doc.FrontMatter.Raw["slash"])
	assert.Equal(t, "alpine:3", doc.FrontMatter.Raw["image"])
	assert.Equal(t, []any{"out.txt"}, doc.FrontMatter.Raw["outputs"])

	require.Len(t, doc.Blocks, 1)
	assert.Equal(t, "w", doc.Blocks[0].Name)
	assert.Equal(t, "echo hi > /out/out.txt", doc.Blocks[0].Body)
	assert.Equal(t, 7, doc.Blocks[0].Line)
}

func TestParse_BlocksInDocumentOrder(t *testing.T) {
	content := `

---
slash: build
image: golang:1.24
outputs: [bin/app]
---

` + "```bash name=deps\n  go mod download  \n```\n\n" +
		"   ```bash name=compile\n\ngo build -o /out/bin/app ./...\n\n   ```\n" +
		"```yaml\nignored: true\n```\n" +
		"```bash name=\"check\"\ntest -x /out/bin/app\n```\n\n\n"

	doc, err := Parse("build.md", []byte(content))
	require.NoError(t, err)

	assert.Equal(t, []string{"deps", "compile", "check"}, doc.Names())
	assert.Equal(t, []string{
		"go mod download",
		"go build -o /out/bin/app ./...",
		"test -x /out/bin/app",
	}, doc.Bodies())
}

func TestParse_FenceLikeLinesInsideBody(t *testing.T) {
	content := "---\nslash: s\nimage: i\noutputs: []\n---\n" +
		"````bash name=heredoc\n" +
		"cat > /out/README.md <<'EOF'\n" +
		"---\n" +
		"```bash name=inner\n" +
		"echo nested\n" +
		"```\n" +
		"EOF\n" +
		"````\n"

	doc, err := Parse("heredoc.md", []byte(content))
	require.NoError(t, err)
	require.Len(t, doc.Blocks, 1)
	assert.Equal(t, "heredoc", doc.Blocks[0].Name)
	assert.Contains(t, doc.Blocks[0].Body, "```bash name=inner")
	assert.True(t, strings.HasSuffix(doc.Blocks[0].Body, "EOF"))
}

func TestParse_BacktickLinesInsideFrontMatter(t *testing.T) {
	content := "---\nslash: s\nimage: i\ndescription: |\n  ```\n  not a fence\noutputs: []\n---\n" +
		"```bash name=a\ntrue\n```\n"

	doc, err := Parse("fm.md", []byte(content))
	require.NoError(t, err)
	assert.Contains(t, doc.FrontMatter.Raw["description"], "not a fence")
	require.Len(t, doc.Blocks, 1)
}

func TestParse_CRLFLineEndings(t *testing.T) {
	content := strings.ReplaceAll(helloDoc, "\n", "\r\n")

	doc, err := Parse("crlf.md", []byte(content))
	require.NoError(t, err)
	assert.Equal(t, "echo hi > /out/out.txt", doc.Blocks[0].Body)
}

func TestParse_Errors(t *testing.T) {
	const fm = "---\nslash: s\nimage: i\noutputs: [a]\n---\n"

	tests := []struct {
		name          string
		content       string
		expected      error
		causeContains string
	}{
		{
			name:     "empty document",
			content:  "",
			expected: slasherrors.ErrMissingFrontMatter,
		},
		{
			name:     "fence without front-matter",
			content:  "```bash name=a\ntrue\n```\n",
			expected: slasherrors.ErrMissingFrontMatter,
		},
		{
			name:          "unterminated front-matter",
			content:       "---\nslash: s\n```bash name=a\ntrue\n```\n",
			expected:      slasherrors.ErrMissingFrontMatter,
			causeContains: "never closed",
		},
		{
			name:     "blank front-matter",
			content:  "---\n\n---\n```bash name=a\ntrue\n```\n",
			expected: slasherrors.ErrMissingFrontMatter,
		},
		{
			name:     "comment-only front-matter",
			content:  "---\n# nothing\n---\n```bash name=a\ntrue\n```\n",
			expected: slasherrors.ErrMissingFrontMatter,
		},
		{
			name:     "malformed yaml",
			content:  "---\nslash: \"unclosed\nimage: i\n---\n```bash name=a\ntrue\n```\n",
			expected: slasherrors.ErrYAMLParse,
		},
		{
			name:     "yaml sequence at top level",
			content:  "---\n- a\n- b\n---\n```bash name=a\ntrue\n```\n",
			expected: slasherrors.ErrYAMLParse,
		},
		{
			name:          "prose before front-matter",
			content:       "# Title\n" + fm + "```bash name=a\ntrue\n```\n",
			expected:      slasherrors.ErrStrayContent,
			causeContains: "line 1",
		},
		{
			name:          "prose between blocks",
			content:       fm + "```bash name=a\ntrue\n```\nThis runs the build.\n```bash name=b\ntrue\n```\n",
			expected:      slasherrors.ErrStrayContent,
			causeContains: "line 9",
		},
		{
			name:     "trailing prose",
			content:  fm + "```bash name=a\ntrue\n```\nfin\n",
			expected: slasherrors.ErrStrayContent,
		},
		{
			name:          "fence without language",
			content:       fm + "```\ntrue\n```\n",
			expected:      slasherrors.ErrStrayContent,
			causeContains: "no language tag",
		},
		{
			name:          "fence with other language",
			content:       fm + "```python name=a\nprint(1)\n```\n",
			expected:      slasherrors.ErrStrayContent,
			causeContains: `"python"`,
		},
		{
			name:     "second front-matter block",
			content:  fm + "```bash name=a\ntrue\n```\n---\nx: 1\n---\n",
			expected: slasherrors.ErrStrayContent,
		},
		{
			name:          "unterminated fence",
			content:       fm + "```bash name=a\ntrue\n",
			expected:      slasherrors.ErrStrayContent,
			causeContains: "never closed",
		},
		{
			name:     "inline code span is prose",
			content:  fm + "```bash name=a\ntrue\n```\n```echo``` is a command\n",
			expected: slasherrors.ErrStrayContent,
		},
		{
			name:     "bash block without name",
			content:  fm + "```bash\ntrue\n```\n",
			expected: slasherrors.ErrMissingBlockName,
		},
		{
			name:     "bash block with empty name",
			content:  fm + "```bash name=\ntrue\n```\n",
			expected: slasherrors.ErrMissingBlockName,
		},
		{
			name:          "bash block with invalid name",
			content:       fm + "```bash name=build-all\ntrue\n```\n",
			expected:      slasherrors.ErrMissingBlockName,
			causeContains: "not an identifier",
		},
		{
			name:          "duplicate names adjacent",
			content:       fm + "```bash name=build\na\n```\n```bash name=build\nb\n```\n",
			expected:      slasherrors.ErrDuplicateBlockName,
			causeContains: "line 6",
		},
		{
			name: "duplicate names far apart",
			content: fm + "```bash name=build\na\n```\n```bash name=test\nb\n```\n" +
				"```yaml\nk: v\n```\n```bash name=build\nc\n```\n",
			expected: slasherrors.ErrDuplicateBlockName,
		},
		{
			name:     "only yaml fences",
			content:  fm + "```yaml\nk: v\n```\n",
			expected: slasherrors.ErrNoExecutableBlocks,
		},
		{
			name:     "front-matter only",
			content:  fm,
			expected: slasherrors.ErrNoExecutableBlocks,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Parse("doc.md", []byte(tt.content))
			require.Error(t, err)
			assert.Nil(t, doc)
			assert.True(t, errors.Is(err, tt.expected), "expected %v, got %v", tt.expected, err)

			var slashErr *slasherrors.SlashError
			require.True(t, errors.As(err, &slashErr))
			assert.Contains(t, slashErr.Context, "doc.md")
			if tt.causeContains != "" {
				assert.Contains(t, slashErr.Cause, tt.causeContains)
			}
		})
	}
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hello.md")
	require.NoError(t, os.WriteFile(path, []byte(helloDoc), 0644))

	doc, err := ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, doc.Path)

	_, err = ParseFile(filepath.Join(dir, "missing.md"))
	assert.ErrorIs(t, err, slasherrors.ErrFileNotFound)
}

func TestLex_Modes(t *testing.T) {
	content := "---\n```\n---\n\n```bash name=a\n---\n```\ntext\n---\n"
	tokens := lex(content)

	kinds := make([]tokenKind, 0, len(tokens))
	for _, tok := range tokens {
		kinds = append(kinds, tok.kind)
	}

	assert.Equal(t, []tokenKind{
		tokDelim, tokText, tokDelim,
		tokBlank,
		tokFenceOpen, tokText, tokFenceClose,
		tokText,
		tokDelim,
	}, kinds)
	assert.Equal(t, "bash name=a", tokens[4].info)
}

func TestAttribute(t *testing.T) {
	tests := []struct {
		fields []string
		value  string
		ok     bool
	}{
		{[]string{"name=build"}, "build", true},
		{[]string{"title=x", "name='quoted'"}, "quoted", true},
		{[]string{"name="}, "", false},
		{[]string{"names=x"}, "", false},
		{nil, "", false},
	}

	for _, tt := range tests {
		value, ok := attribute(tt.fields, "name")
		assert.Equal(t, tt.ok, ok, "%v", tt.fields)
		assert.Equal(t, tt.value, value, "%v", tt.fields)
	}
}
