// Package requires lists the module specifiers a JavaScript or TypeScript file
// depends on without building a full module graph.
package requires

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// Scanner produces the ordered dependency specifiers of a source file.
type Scanner interface {
	// Scan returns specifiers in source order with duplicates removed.
	// filePath only selects the grammar; content is never read from disk.
	Scan(ctx context.Context, filePath string, content []byte) ([]string, error)
}

// mockHelpers are member calls that load a module the same way require does.
var mockHelpers = map[string]map[string]bool{
	"require": {"requireActual": true, "requireMock": true},
	"jest":    {"requireActual": true, "requireMock": true, "genMockFromModule": true},
}

// treeSitterScanner walks a tree-sitter syntax tree looking for require calls,
// import/export declarations and dynamic imports.
type treeSitterScanner struct {
	typescript *sitter.Language
	tsx        *sitter.Language
}

// NewTreeSitterScanner creates a scanner backed by the tree-sitter TypeScript
// grammars. The TSX grammar is used for everything except .ts files so JSX in
// plain .js files still parses.
func NewTreeSitterScanner() Scanner {
	return &treeSitterScanner{
		typescript: sitter.NewLanguage(typescript.LanguageTypescript()),
		tsx:        sitter.NewLanguage(typescript.LanguageTSX()),
	}
}

// Scan parses content and collects every static dependency specifier.
func (s *treeSitterScanner) Scan(ctx context.Context, filePath string, content []byte) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	parser := sitter.NewParser()
	defer parser.Close()

	if err := parser.SetLanguage(s.languageFor(filePath)); err != nil {
		return nil, fmt.Errorf("failed to set grammar for %s: %w", filePath, err)
	}

	tree := parser.Parse(content, nil)
	if tree == nil {
		return nil, fmt.Errorf("failed to parse %s", filePath)
	}
	defer tree.Close()

	c := &collector{source: content, seen: make(map[string]bool), deps: []string{}}
	walkTree(tree.RootNode(), c.visit)

	return c.deps, nil
}

func (s *treeSitterScanner) languageFor(filePath string) *sitter.Language {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".ts", ".mts", ".cts":
		return s.typescript
	default:
		return s.tsx
	}
}

// collector accumulates specifiers in the order they are first seen.
type collector struct {
	source []byte
	seen   map[string]bool
	deps   []string
}

func (c *collector) add(specifier string) {
	if specifier == "" || c.seen[specifier] {
		return
	}
	c.seen[specifier] = true
	c.deps = append(c.deps, specifier)
}

func (c *collector) visit(n *sitter.Node) bool {
	switch n.Kind() {
	case "import_statement":
		if hasTypeKeyword(n) {
			return false
		}
		c.add(stringValue(sourceOf(n), c.source))
	case "import_require_clause":
		c.add(stringValue(sourceOf(n), c.source))
	case "export_statement":
		if hasTypeKeyword(n) {
			return false
		}
		c.add(stringValue(n.ChildByFieldName("source"), c.source))
	case "call_expression":
		if c.isLoaderCall(n.ChildByFieldName("function")) {
			c.add(firstStringArgument(n.ChildByFieldName("arguments"), c.source))
		}
	}
	return true
}

// isLoaderCall reports whether fn is require, import, or one of the mock helpers.
func (c *collector) isLoaderCall(fn *sitter.Node) bool {
	if fn == nil {
		return false
	}

	switch fn.Kind() {
	case "import":
		return true
	case "identifier":
		return fn.Utf8Text(c.source) == "require"
	case "member_expression":
		object := fn.ChildByFieldName("object")
		property := fn.ChildByFieldName("property")
		if object == nil || property == nil || object.Kind() != "identifier" {
			return false
		}
		return mockHelpers[object.Utf8Text(c.source)][property.Utf8Text(c.source)]
	default:
		return false
	}
}

// hasTypeKeyword reports whether an import or export is type-only
// (import type X from 'y', export type { X } from 'y').
func hasTypeKeyword(n *sitter.Node) bool {
	for i := uint(0); i < n.ChildCount(); i++ {
		child := n.Child(i)
		if child == nil {
			continue
		}
		if child.Kind() == "type" || child.Kind() == "typeof" {
			return true
		}
	}
	return false
}

// sourceOf returns the module string of an import. Older grammar versions do
// not name the string of an import_require_clause, so fall back to the first
// direct string child.
func sourceOf(n *sitter.Node) *sitter.Node {
	if source := n.ChildByFieldName("source"); source != nil {
		return source
	}
	if n.Kind() != "import_require_clause" {
		return nil
	}
	return findChildByType(n, "string")
}

// findChildByType finds the first child node with the given type.
func findChildByType(node *sitter.Node, nodeType string) *sitter.Node {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child != nil && child.Kind() == nodeType {
			return child
		}
	}
	return nil
}

// firstStringArgument returns the first argument when it is a string literal
// or a template literal without substitutions.
func firstStringArgument(args *sitter.Node, source []byte) string {
	if args == nil || args.NamedChildCount() == 0 {
		return ""
	}
	first := args.NamedChild(0)
	if first == nil {
		return ""
	}

	switch first.Kind() {
	case "string":
		return stringValue(first, source)
	case "template_string":
		if findChildByType(first, "template_substitution") != nil {
			return ""
		}
		return unquote(first.Utf8Text(source))
	default:
		return ""
	}
}

// stringValue strips the quotes from a string literal node.
func stringValue(n *sitter.Node, source []byte) string {
	if n == nil || n.Kind() != "string" {
		return ""
	}
	return unquote(n.Utf8Text(source))
}

// unquote drops the delimiters of a quoted literal.
func unquote(text string) string {
	if len(text) < 2 {
		return ""
	}
	return text[1 : len(text)-1]
}

// walkTree visits node and its descendants depth first. Returning false from
// visitor skips the node's children.
func walkTree(node *sitter.Node, visitor func(*sitter.Node) bool) {
	if node == nil {
		return
	}

	if !visitor(node) {
		return
	}

	for i := uint(0); i < node.ChildCount(); i++ {
		walkTree(node.Child(i), visitor)
	}
}
