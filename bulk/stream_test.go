package bulk

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamPages(t *testing.T) {
	ctx := context.Background()
	doc := &stubDocument{pages: []string{
		"first page",
		"second page",
		`has "quotes" and` + "\nnewlines",
	}}

	var buf bytes.Buffer
	require.NoError(t, StreamPages(ctx, doc, FormatText, &buf))

	scanner := bufio.NewScanner(&buf)
	var lines []pageLine
	for scanner.Scan() {
		var line pageLine
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &line), "every line must be valid JSON")
		lines = append(lines, line)
	}
	require.NoError(t, scanner.Err())

	require.Len(t, lines, 3)
	for i, line := range lines {
		assert.Equal(t, i+1, line.Page, "pages are 1-based and in order")
	}
	assert.Equal(t, "first page", lines[0].Content)
	assert.Equal(t, "has \"quotes\" and\nnewlines", lines[2].Content)
}

func TestStreamPagesHonorsFormat(t *testing.T) {
	ctx := context.Background()
	doc := &stubDocument{pages: []string{"alpha", "beta"}}

	var buf bytes.Buffer
	require.NoError(t, StreamPages(ctx, doc, FormatMarkdown, &buf))

	scanner := bufio.NewScanner(&buf)
	var lines []pageLine
	for scanner.Scan() {
		var line pageLine
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &line))
		lines = append(lines, line)
	}
	require.NoError(t, scanner.Err())

	require.Len(t, lines, 2)
	assert.Equal(t, "## Page 1\n\nalpha", lines[0].Content, "each page rendered in the requested format")
	assert.Equal(t, "## Page 2\n\nbeta", lines[1].Content)
}

func TestStreamPagesExportFailure(t *testing.T) {
	ctx := context.Background()
	doc := &stubDocument{pages: []string{"alpha"}, exportErr: errors.New("render failed")}

	var buf bytes.Buffer
	err := StreamPages(ctx, doc, FormatText, &buf)
	require.Error(t, err)
	assert.Zero(t, buf.Len())
}

func TestStreamPagesCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	doc := &stubDocument{pages: []string{"never sent"}}
	var buf bytes.Buffer

	err := StreamPages(ctx, doc, FormatText, &buf)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, buf.Len())
}

func TestStreamPagesEmptyDocument(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer

	require.NoError(t, StreamPages(ctx, &stubDocument{}, FormatText, &buf))
	assert.Zero(t, buf.Len())
}

func TestStreamText(t *testing.T) {
	ctx := context.Background()

	text := strings.Repeat("a", StreamChunkSize) + strings.Repeat("b", StreamChunkSize) + "tail"
	var buf bytes.Buffer
	require.NoError(t, StreamText(ctx, text, &buf))

	assert.Equal(t, text, buf.String(), "slicing must not lose or reorder bytes")
}

func TestStreamTextShortInput(t *testing.T) {
	ctx := context.Background()

	var buf bytes.Buffer
	require.NoError(t, StreamText(ctx, "short", &buf))
	assert.Equal(t, "short", buf.String())
}

func TestStreamTextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	err := StreamText(ctx, strings.Repeat("x", 10*StreamChunkSize), &buf)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, buf.Len())
}
