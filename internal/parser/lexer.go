package parser

import (
	"strings"
)

type tokenKind int

const (
	tokBlank tokenKind = iota
	tokText
	tokDelim
	tokFenceOpen
	tokFenceClose
)

func (k tokenKind) String() string {
	switch k {
	case tokBlank:
		return "blank"
	case tokText:
		return "text"
	case tokDelim:
		return "front-matter delimiter"
	case tokFenceOpen:
		return "fence open"
	case tokFenceClose:
		return "fence close"
	default:
		return "unknown"
	}
}

type token struct {
	kind tokenKind
	line int
	// text is the raw line without its line terminator.
	text string
	// info is the fence info string for tokFenceOpen, e.g. "bash name=build".
	info string
}

type lexMode int

const (
	modeOutside lexMode = iota
	modeFrontMatter
	modeFence
)

// lex splits content into line tokens. It is modal: inside the front-matter
// and inside a fence only the matching terminator is structural, every other
// line is text. A fence body line that looks like "---" or "```bash" therefore
// stays part of the body.
func lex(content string) []token {
	lines := splitLines(content)
	tokens := make([]token, 0, len(lines))

	mode := modeOutside
	frontMatterSeen := false
	fenceWidth := 0

	for i, line := range lines {
		tok := token{line: i + 1, text: line}

		switch mode {
		case modeFrontMatter:
			if isDelimiter(line) {
				tok.kind = tokDelim
				mode = modeOutside
				frontMatterSeen = true
			} else {
				tok.kind = tokText
			}

		case modeFence:
			if isFenceClose(line, fenceWidth) {
				tok.kind = tokFenceClose
				mode = modeOutside
			} else {
				tok.kind = tokText
			}

		default:
			if strings.TrimSpace(line) == "" {
				tok.kind = tokBlank
			} else if isDelimiter(line) {
				tok.kind = tokDelim
				if !frontMatterSeen {
					mode = modeFrontMatter
				}
			} else if width, info, ok := fenceOpen(line); ok {
				tok.kind = tokFenceOpen
				tok.info = info
				fenceWidth = width
				mode = modeFence
			} else {
				tok.kind = tokText
			}
		}

		tokens = append(tokens, tok)
	}

	return tokens
}

// splitLines splits on \n, dropping a trailing \r from each line and the empty
// element produced by a final newline.
func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	lines := strings.Split(content, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

func isDelimiter(line string) bool {
	return strings.TrimRight(line, " \t") == "---"
}

// fenceOpen recognises an opening backtick fence: optional indentation, at
// least three backticks, then an info string that contains no backtick.
func fenceOpen(line string) (int, string, bool) {
	trimmed := strings.TrimLeft(line, " \t")
	width := countBackticks(trimmed)
	if width < 3 {
		return 0, "", false
	}
	info := strings.TrimSpace(trimmed[width:])
	if strings.Contains(info, "`") {
		return 0, "", false
	}
	return width, info, true
}

func isFenceClose(line string, width int) bool {
	trimmed := strings.TrimSpace(line)
	n := countBackticks(trimmed)
	return n >= width && n == len(trimmed)
}

func countBackticks(s string) int {
	n := 0
	for n < len(s) && s[n] == '`' {
		n++
	}
	return n
}
