package cli

// Test Plan for Serve Command:
// - serveRequests answers each request with one line, in submission order
// - serveRequests skips blank lines and reports malformed requests without stopping
// - serveRequests uses the default resolver for requests that name none
// - serveRequests writes a fatal response and stops when the resolver changes
// - serveRequests stops when the context is cancelled

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/project-haste/internal/worker"
)

const fileNameRules = `
[[rule]]
pattern = "**/*.js"
identity = "{name}"
`

func requestLines(t *testing.T, reqs ...worker.Request) string {
	t.Helper()

	var b strings.Builder
	for _, req := range reqs {
		line, err := json.Marshal(req)
		require.NoError(t, err)
		b.Write(line)
		b.WriteByte('\n')
	}
	return b.String()
}

func decodeResponses(t *testing.T, out string) []fileResponse {
	t.Helper()

	var responses []fileResponse
	dec := json.NewDecoder(strings.NewReader(out))
	for dec.More() {
		var resp fileResponse
		require.NoError(t, dec.Decode(&resp))
		responses = append(responses, resp)
	}
	return responses
}

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

func TestServeRequests_AnswersInOrder(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	button := writeSource(t, dir, "src/Button.js", moduleSource("Button", "react"))
	pkg := writeSource(t, dir, "pkg/package.json", `{"name": "pkg"}`)
	data := writeSource(t, dir, "data.json", `{"name": "not-a-package"}`)

	in := requestLines(t,
		worker.Request{FilePath: button},
		worker.Request{FilePath: pkg},
		worker.Request{FilePath: data},
	)

	var out bytes.Buffer
	err := serveRequests(context.Background(), strings.NewReader(in), &out, worker.New(), "", quietLogger())
	require.NoError(t, err)

	responses := decodeResponses(t, out.String())
	require.Len(t, responses, 3)

	assert.Equal(t, button, responses[0].FilePath)
	assert.Equal(t, "Button", responses[0].Result.Identity)
	assert.Equal(t, []string{"react"}, responses[0].Result.Dependencies)

	assert.Equal(t, pkg, responses[1].FilePath)
	assert.Equal(t, "pkg", responses[1].Result.Identity)
	assert.Equal(t, worker.KindPackage, responses[1].Result.Kind())

	assert.Equal(t, data, responses[2].FilePath)
	assert.Equal(t, worker.KindUnclassified, responses[2].Result.Kind())
	assert.Empty(t, responses[2].Result.Identity)
}

func TestServeRequests_SkipsBlankAndReportsMalformedLines(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	file := writeSource(t, dir, "a.js", "import b from './b';\n")

	in := "\n   \n{not json\n" + requestLines(t, worker.Request{FilePath: file})

	var out bytes.Buffer
	err := serveRequests(context.Background(), strings.NewReader(in), &out, worker.New(), "", quietLogger())
	require.NoError(t, err)

	responses := decodeResponses(t, out.String())
	require.Len(t, responses, 2)

	assert.Contains(t, responses[0].Error, "malformed request")
	assert.False(t, responses[0].Fatal)

	assert.Empty(t, responses[1].Error)
	assert.Equal(t, []string{"./b"}, responses[1].Result.Dependencies)
}

func TestServeRequests_UsesDefaultResolver(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	rules := writeSource(t, dir, "haste.toml", fileNameRules)
	file := writeSource(t, dir, "src/Picker.js", "")

	w := worker.New()
	var out bytes.Buffer
	err := serveRequests(context.Background(), strings.NewReader(requestLines(t, worker.Request{FilePath: file})), &out, w, rules, quietLogger())
	require.NoError(t, err)

	responses := decodeResponses(t, out.String())
	require.Len(t, responses, 1)
	assert.Equal(t, "Picker", responses[0].Result.Identity)
	assert.Equal(t, rules, w.ResolverPath())
}

func TestServeRequests_StopsOnResolverChange(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	first := writeSource(t, dir, "first.toml", fileNameRules)
	second := writeSource(t, dir, "second.toml", fileNameRules)
	file := writeSource(t, dir, "src/Button.js", "")

	in := requestLines(t,
		worker.Request{FilePath: file, ResolverPath: first},
		worker.Request{FilePath: file, ResolverPath: second},
		worker.Request{FilePath: file, ResolverPath: first},
	)

	var out bytes.Buffer
	err := serveRequests(context.Background(), strings.NewReader(in), &out, worker.New(), "", quietLogger())
	require.Error(t, err)
	assert.ErrorIs(t, err, worker.ErrResolverChanged)

	var cfgErr *worker.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, first, cfgErr.Bound)
	assert.Equal(t, second, cfgErr.Requested)

	responses := decodeResponses(t, out.String())
	require.Len(t, responses, 2, "no request after the fatal one is answered")

	assert.Equal(t, "Button", responses[0].Result.Identity)
	assert.True(t, responses[1].Fatal)
	assert.Nil(t, responses[1].Result)
	assert.Contains(t, responses[1].Error, filepath.Base(second))
}

func TestServeRequests_StopsOnCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	in := requestLines(t, worker.Request{FilePath: "/repo/a.js"})

	var out bytes.Buffer
	err := serveRequests(ctx, strings.NewReader(in), &out, worker.New(), "", quietLogger())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, out.String())
}
