// Package docblock reads the leading documentation comment of a source file
// and the @key value pragmas declared inside it.
package docblock

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	docblockRe     = regexp.MustCompile(`^\s*(/\*\*?(?s:.)*?\*/)`)
	commentStartRe = regexp.MustCompile(`^/\*\*`)
	commentEndRe   = regexp.MustCompile(`\*/$`)
	wsRe           = regexp.MustCompile(`[\t ]+`)
	lineCommentRe  = regexp.MustCompile(`(?m)(^|\s+)//.*$`)
	stringStartRe  = regexp.MustCompile(`(\n|^) *\*`)
	propertyRe     = regexp.MustCompile(`(?:^|\n) *@(\S+) *([^\n]*)`)
)

// Pragmas maps a pragma name to its values in declaration order.
// A pragma declared more than once keeps every value.
type Pragmas map[string][]string

// Get returns the first value declared for key.
func (p Pragmas) Get(key string) (string, bool) {
	values := p[key]
	if len(values) == 0 {
		return "", false
	}
	return values[0], true
}

// First walks keys in priority order and returns the first value of the first
// key that carries a non-empty one.
func (p Pragmas) First(keys ...string) (string, bool) {
	for _, key := range keys {
		if value, ok := p.Get(key); ok && value != "" {
			return value, true
		}
	}
	return "", false
}

// Extract returns the block comment that opens contents, or "" when the file
// does not start (after whitespace) with one.
func Extract(contents string) string {
	match := docblockRe.FindString(contents)
	if match == "" {
		return ""
	}
	return strings.TrimLeftFunc(match, unicode.IsSpace)
}

// Parse collects the pragmas declared in a comment produced by Extract.
func Parse(comment string) Pragmas {
	text := strings.ReplaceAll(comment, "\r\n", "\n")
	text = commentStartRe.ReplaceAllString(text, "")
	text = commentEndRe.ReplaceAllString(text, "")
	text = wsRe.ReplaceAllString(text, " ")
	text = lineCommentRe.ReplaceAllString(text, "")
	text = stringStartRe.ReplaceAllString(text, "$1")
	text = strings.TrimSpace(joinContinuations(text))

	pragmas := Pragmas{}
	for _, match := range propertyRe.FindAllStringSubmatch(text, -1) {
		key := match[1]
		pragmas[key] = append(pragmas[key], strings.TrimSpace(match[2]))
	}
	return pragmas
}

// joinContinuations folds a plain text line into the pragma line above it so
// that a value wrapped over several lines reads as one. The last line is never
// folded.
func joinContinuations(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if strings.HasPrefix(strings.TrimLeft(line, " "), "@") {
			for i+1 < len(lines)-1 && isContinuation(lines[i+1]) {
				line = strings.TrimRight(line, " ") + " " + strings.Trim(lines[i+1], " ")
				i++
			}
		}
		out = append(out, line)
	}

	return strings.Join(out, "\n")
}

func isContinuation(line string) bool {
	trimmed := strings.Trim(line, " ")
	if len(trimmed) < 2 {
		return false
	}
	if trimmed[0] == '@' || unicode.IsSpace(rune(trimmed[0])) {
		return false
	}
	return !strings.Contains(trimmed, "//")
}
