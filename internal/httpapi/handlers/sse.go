package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

type sseWriter struct {
	w       gin.ResponseWriter
	flusher http.Flusher
}

// startSSE commits the response as an event stream. Nothing can be sent
// as a JSON envelope afterwards.
func startSSE(c *gin.Context) (*sseWriter, bool) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		return nil, false
	}
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
	flusher.Flush()
	return &sseWriter{w: c.Writer, flusher: flusher}, true
}

func (s *sseWriter) send(event string, payload any) {
	b, err := json.Marshal(payload)
	if err != nil {
		// keep framing intact
		fmt.Fprintf(s.w, "event: error\ndata: {\"type\":\"error\",\"message\":\"json marshal failed\"}\n\n")
		s.flusher.Flush()
		return
	}
	fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, b)
	s.flusher.Flush()
}
