package clientsync

import (
	"fmt"
	stdhtml "html"
	"strings"
	"sync"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/suPer8Hu/ai-studio/internal/log"
	"go.uber.org/zap"
)

// StreamRenderer renders a growing markdown buffer. Partial input such as an
// unclosed code fence is normal mid-stream and must render.
type StreamRenderer struct {
	mu   sync.Mutex
	text strings.Builder
	html string
}

func NewStreamRenderer() *StreamRenderer {
	return &StreamRenderer{}
}

// Append adds a chunk and returns the html for everything so far.
func (r *StreamRenderer) Append(chunk string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.text.WriteString(chunk)
	r.html = renderMarkdown(r.text.String())
	return r.html
}

func (r *StreamRenderer) Text() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.text.String()
}

func (r *StreamRenderer) HTML() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.html
}

func (r *StreamRenderer) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.text.Reset()
	r.html = ""
}

func renderMarkdown(md string) (out string) {
	defer func() {
		if rec := recover(); rec != nil {
			log.L().Warn("markdown render panicked, falling back to plain text", zap.Any("panic", rec))
			out = fmt.Sprintf("<pre>%s</pre>", stdhtml.EscapeString(md))
		}
	}()

	// parsers keep state, so one per render
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags | html.HrefTargetBlank})
	return string(markdown.ToHTML([]byte(md), p, renderer))
}
