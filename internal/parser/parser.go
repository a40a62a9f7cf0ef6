// Package parser reads slash command documents: a YAML front-matter block
// followed by named bash fences and nothing else.
package parser

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/goccy/go-yaml"

	slasherrors "slashc/internal/errors"
	"slashc/pkg/command"
)

var blockNamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

type parseState int

const (
	statePreamble parseState = iota
	stateFrontMatter
	stateBody
	stateFence
)

// ParseFile reads path and parses it.
func ParseFile(path string) (*command.Document, error) {
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, slasherrors.NewFileNotFoundError(path)
	}
	if err != nil {
		return nil, slasherrors.NewFileSystemError(
			fmt.Sprintf("Failed to read %s", path), err.Error(), "", err)
	}
	return Parse(path, content)
}

// Parse splits content into front-matter and bash blocks. path is only used
// in diagnostics. The typed front-matter fields are left empty; schema
// validation fills them.
func Parse(path string, content []byte) (*command.Document, error) {
	p := &docParser{path: path}
	if err := p.walk(lex(string(content))); err != nil {
		return nil, err
	}

	raw, err := p.decodeFrontMatter()
	if err != nil {
		return nil, err
	}

	if len(p.blocks) == 0 {
		return nil, p.fail(slasherrors.ErrNoExecutableBlocks, 0,
			"no ```bash name=<id> blocks found",
			"Add at least one fenced bash block with a name attribute")
	}

	slog.Debug("Parsed command document", "path", path, "blocks", len(p.blocks))
	return &command.Document{
		Path:        path,
		FrontMatter: command.FrontMatter{Raw: raw},
		Blocks:      p.blocks,
	}, nil
}

type docParser struct {
	path string

	frontMatter     []string
	frontMatterLine int
	frontMatterDone bool

	blocks []command.Block
	names  map[string]int

	// current fence
	fenceLine int
	fenceKeep bool
	fenceName string
	fenceBody []string
}

// walk runs the state machine over the token stream. The accepted grammar is
// blank* front-matter (blank | fence)*.
func (p *docParser) walk(tokens []token) error {
	state := statePreamble

	for _, tok := range tokens {
		switch state {
		case statePreamble:
			switch tok.kind {
			case tokBlank:
			case tokDelim:
				p.frontMatterLine = tok.line
				state = stateFrontMatter
			case tokFenceOpen:
				return p.fail(slasherrors.ErrMissingFrontMatter, tok.line,
					"document must start with a --- front-matter block",
					"Add front-matter with slash, image and outputs before the first fence")
			default:
				return p.stray(tok, "text before the front-matter block")
			}

		case stateFrontMatter:
			if tok.kind == tokDelim {
				p.frontMatterDone = true
				state = stateBody
				continue
			}
			p.frontMatter = append(p.frontMatter, tok.text)

		case stateBody:
			switch tok.kind {
			case tokBlank:
			case tokFenceOpen:
				if err := p.openFence(tok); err != nil {
					return err
				}
				state = stateFence
			case tokDelim:
				return p.stray(tok, "only one front-matter block is allowed")
			default:
				return p.stray(tok, "text outside a fenced block")
			}

		case stateFence:
			if tok.kind == tokFenceClose {
				p.closeFence()
				state = stateBody
				continue
			}
			p.fenceBody = append(p.fenceBody, tok.text)
		}
	}

	switch state {
	case statePreamble:
		return p.fail(slasherrors.ErrMissingFrontMatter, 0,
			"no --- front-matter block found",
			"Start the document with front-matter declaring slash, image and outputs")
	case stateFrontMatter:
		return p.fail(slasherrors.ErrMissingFrontMatter, p.frontMatterLine,
			"front-matter block is never closed with ---",
			"Close the front-matter with a line containing only ---")
	case stateFence:
		return p.fail(slasherrors.ErrStrayContent, p.fenceLine,
			"fenced block is never closed",
			"Close the block with a line containing only ```")
	}
	return nil
}

func (p *docParser) openFence(tok token) error {
	fields := strings.Fields(tok.info)
	lang := ""
	if len(fields) > 0 {
		lang = fields[0]
	}

	p.fenceLine = tok.line
	p.fenceBody = nil
	p.fenceKeep = false
	p.fenceName = ""

	switch lang {
	case "yaml":
		return nil
	case "bash":
	case "":
		return p.stray(tok, "fenced block has no language tag")
	default:
		return p.stray(tok, fmt.Sprintf("fenced block language %q is not allowed, only bash", lang))
	}

	name, ok := attribute(fields[1:], "name")
	if !ok {
		return p.fail(slasherrors.ErrMissingBlockName, tok.line,
			"bash block has no name= attribute",
			"Write the fence header as ```bash name=<identifier>")
	}
	if !blockNamePattern.MatchString(name) {
		return p.fail(slasherrors.ErrMissingBlockName, tok.line,
			fmt.Sprintf("bash block name %q is not an identifier", name),
			"Use only letters, digits and underscores in block names")
	}
	if first, dup := p.names[name]; dup {
		return p.fail(slasherrors.ErrDuplicateBlockName, tok.line,
			fmt.Sprintf("bash block name %q already used on line %d", name, first),
			"Give every bash block a unique name")
	}

	if p.names == nil {
		p.names = make(map[string]int)
	}
	p.names[name] = tok.line
	p.fenceKeep = true
	p.fenceName = name
	return nil
}

func (p *docParser) closeFence() {
	if !p.fenceKeep {
		return
	}
	p.blocks = append(p.blocks, command.Block{
		Name: p.fenceName,
		Body: strings.TrimSpace(strings.Join(p.fenceBody, "\n")),
		Line: p.fenceLine,
	})
}

func (p *docParser) decodeFrontMatter() (map[string]any, error) {
	source := strings.Join(p.frontMatter, "\n")
	if strings.TrimSpace(source) == "" {
		return nil, p.fail(slasherrors.ErrMissingFrontMatter, p.frontMatterLine,
			"front-matter block is empty",
			"Declare slash, image and outputs in the front-matter")
	}

	var raw map[string]any
	if err := yaml.Unmarshal([]byte(source), &raw); err != nil {
		return nil, slasherrors.NewSlashError(slasherrors.ErrYAMLParse,
			fmt.Sprintf("YAML parsing error in %s (front-matter starts on line %d)", p.path, p.frontMatterLine),
			err.Error(),
			"Fix the YAML syntax; the top level must be a mapping",
			err)
	}
	if raw == nil {
		return nil, p.fail(slasherrors.ErrMissingFrontMatter, p.frontMatterLine,
			"front-matter block contains no values",
			"Declare slash, image and outputs in the front-matter")
	}
	return raw, nil
}

func (p *docParser) stray(tok token, reason string) error {
	return p.fail(slasherrors.ErrStrayContent, tok.line,
		fmt.Sprintf("%s: %q", reason, strings.TrimSpace(tok.text)),
		"Only YAML front-matter and fenced ```bash name=<id> blocks are allowed")
}

func (p *docParser) fail(errType error, line int, cause, suggestion string) error {
	if line > 0 {
		cause = fmt.Sprintf("line %d: %s", line, cause)
	}
	return slasherrors.NewParseError(errType,
		fmt.Sprintf("Validation failed for %s", p.path), cause, suggestion)
}

// attribute finds key=value among fence header fields. Values may be quoted.
func attribute(fields []string, key string) (string, bool) {
	prefix := key + "="
	for _, f := range fields {
		if !strings.HasPrefix(f, prefix) {
			continue
		}
		value := strings.Trim(strings.TrimPrefix(f, prefix), `"'`)
		if value == "" {
			return "", false
		}
		return value, true
	}
	return "", false
}
