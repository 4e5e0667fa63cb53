package service

import (
	"bytes"
	"html/template"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	commentEngine = goldmark.New(
		goldmark.WithExtensions(extension.Linkify),
		goldmark.WithRendererOptions(html.WithHardWraps()),
	)
	commentSanitizer = bluemonday.UGCPolicy()
)

// RenderCommentMarkdown renders a submission comment or plan note as safe
// HTML. Rendering failures degrade to the escaped source text rather than
// dropping the comment.
func RenderCommentMarkdown(markdown string) template.HTML {
	if markdown == "" {
		return ""
	}

	var buf bytes.Buffer
	if err := commentEngine.Convert([]byte(markdown), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(markdown))
	}

	return template.HTML(commentSanitizer.SanitizeBytes(buf.Bytes()))
}
