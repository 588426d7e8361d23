package docblock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for Docblock:
// - Extract returns the leading block comment, trimmed of leading whitespace
// - Extract returns "" when code precedes the first comment
// - Extract returns "" for files without a comment
// - Parse reads a single-line /** @key value */ comment
// - Parse reads pragmas from a multi-line starred comment
// - Parse keeps every value of a repeated pragma in order
// - Parse records value-less pragmas with an empty value
// - Parse drops // line comments inside the block
// - Parse folds wrapped pragma values onto one line
// - First honours key priority and skips empty values

func TestExtract_LeadingComment(t *testing.T) {
	t.Parallel()

	contents := "\n\n  /**\n * @providesModule Foo\n */\nrequire('bar');\n/** not me */"
	assert.Equal(t, "/**\n * @providesModule Foo\n */", Extract(contents))
}

func TestExtract_CodeBeforeComment(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", Extract("const a = 1;\n/** @providesModule Foo */"))
}

func TestExtract_NoComment(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", Extract("module.exports = 1;\n"))
	assert.Equal(t, "", Extract(""))
}

func TestParse_SingleLine(t *testing.T) {
	t.Parallel()

	pragmas := Parse("/** @providesModule Foo */")

	value, ok := pragmas.Get("providesModule")
	require.True(t, ok)
	assert.Equal(t, "Foo", value)
}

func TestParse_MultiLine(t *testing.T) {
	t.Parallel()

	comment := `/**
 * Copyright (c) Example, Inc.
 *
 * @providesModule Bar
 * @flow
 */`
	pragmas := Parse(comment)

	assert.Equal(t, []string{"Bar"}, pragmas["providesModule"])
	assert.Equal(t, []string{""}, pragmas["flow"])
	assert.Len(t, pragmas, 2)
}

func TestParse_RepeatedPragma(t *testing.T) {
	t.Parallel()

	comment := "/**\n * @provides A\n * @provides B\n */"
	pragmas := Parse(comment)

	assert.Equal(t, []string{"A", "B"}, pragmas["provides"])
}

func TestParse_LineCommentsRemoved(t *testing.T) {
	t.Parallel()

	comment := "/**\n * @providesModule Baz // legacy name\n */"
	pragmas := Parse(comment)

	value, ok := pragmas.Get("providesModule")
	require.True(t, ok)
	assert.Equal(t, "Baz", value)
}

func TestParse_WrappedValue(t *testing.T) {
	t.Parallel()

	comment := "/**\n * @description first part\n * second part\n * @format\n */"
	pragmas := Parse(comment)

	assert.Equal(t, []string{"first part second part"}, pragmas["description"])
	assert.Equal(t, []string{""}, pragmas["format"])
}

func TestParse_CRLF(t *testing.T) {
	t.Parallel()

	pragmas := Parse("/**\r\n * @providesModule Win\r\n */")
	assert.Equal(t, []string{"Win"}, pragmas["providesModule"])
}

func TestParse_Empty(t *testing.T) {
	t.Parallel()

	assert.Empty(t, Parse(""))
	assert.Empty(t, Parse("/** just prose */"))
}

func TestPragmas_First(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		pragmas Pragmas
		want    string
		wantOK  bool
	}{
		{
			name:    "primary key wins",
			pragmas: Pragmas{"providesModule": {"Primary"}, "provides": {"Fallback"}},
			want:    "Primary",
			wantOK:  true,
		},
		{
			name:    "fallback used when primary missing",
			pragmas: Pragmas{"provides": {"Fallback", "Other"}},
			want:    "Fallback",
			wantOK:  true,
		},
		{
			name:    "empty primary falls through",
			pragmas: Pragmas{"providesModule": {""}, "provides": {"Fallback"}},
			want:    "Fallback",
			wantOK:  true,
		},
		{
			name:    "nothing declared",
			pragmas: Pragmas{"flow": {""}},
			wantOK:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := tt.pragmas.First("providesModule", "provides")
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
