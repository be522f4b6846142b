package blog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderMarkdown(t *testing.T) {
	out, err := RenderMarkdown("## Heading 7\n\nBody of **post 7**.\n")
	require.NoError(t, err)

	html := string(out)
	assert.Contains(t, html, `<h2 id="heading-7">Heading 7</h2>`)
	assert.Contains(t, html, "<strong>post 7</strong>")
}

func TestRenderMarkdownSanitizes(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		forbidden string
	}{
		{"script tag", "hello <script>alert(1)</script>", "<script"},
		{"event handler", `<img src="x.png" onerror="alert(1)">`, "onerror"},
		{"javascript link", "[click](javascript:alert(1))", "javascript:"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := RenderMarkdown(tt.text)
			require.NoError(t, err)
			assert.NotContains(t, string(out), tt.forbidden)
		})
	}
}

func TestRenderMarkdownKeepsTables(t *testing.T) {
	out, err := RenderMarkdown("| a | b |\n|---|---|\n| 1 | 2 |\n")
	require.NoError(t, err)
	assert.Contains(t, string(out), "<table>")
}
