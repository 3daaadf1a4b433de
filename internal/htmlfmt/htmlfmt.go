// ABOUTME: Markdown to HTML rendering for chat-client display
// ABOUTME: Produces fragments for API responses and full pages for iframes

package htmlfmt

import (
	"bytes"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	htmlrenderer "github.com/yuin/goldmark/renderer/html"
)

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(
		htmlrenderer.WithHardWraps(),
	),
)

// Render converts markdown text to an HTML fragment. Agent replies are
// treated as markdown; plain text passes through wrapped in paragraphs. On a
// conversion failure the input is returned escaped rather than dropped.
func Render(text string) string {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(text), &buf); err != nil {
		return "<pre>" + html.EscapeString(text) + "</pre>"
	}
	return buf.String()
}

// pageTemplate is the iframe-friendly document shell. Kept inline, there is
// exactly one page shape and no theming.
const pageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>%s</title>
<style>
* { margin: 0; padding: 0; box-sizing: border-box; }
body {
  font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', sans-serif;
  line-height: 1.6; color: #333; padding: 20px;
}
.container {
  max-width: 900px; margin: 0 auto; background: white;
  border-radius: 12px; overflow: hidden;
}
.response-box {
  background: #f8f9fa; border-left: 4px solid #667eea;
  padding: 20px; border-radius: 8px; margin: 20px 0;
  word-wrap: break-word;
}
code {
  background: #f4f4f4; padding: 2px 6px; border-radius: 3px;
  font-family: 'Courier New', Courier, monospace; font-size: 13px;
}
.timestamp { color: #999; font-size: 11px; margin-top: 10px; }
</style>
</head>
<body>
<div class="container">
<h1>%s</h1>
<div class="response-box">
%s</div>
<div class="timestamp">Generated at: %s</div>
</div>
</body>
</html>
`

// Page wraps rendered content in a complete styled document for iframe
// display. The title is escaped; the content is the output of Render and is
// trusted HTML.
func Page(text, title string) string {
	if title == "" {
		title = "Agent Response"
	}
	escaped := html.EscapeString(title)
	return fmt.Sprintf(pageTemplate,
		escaped,
		escaped,
		strings.TrimRight(Render(text), "\n")+"\n",
		time.Now().Format("2006-01-02 15:04:05"),
	)
}
