package ai

import (
	"bufio"
	"io"
	"strings"
)

// scanSSE calls fn for every data line together with the last seen event name.
// fn returns done=true once the provider's terminator arrives. A body that
// ends before that is a truncated reply and yields an UpstreamError.
func scanSSE(provider string, r io.Reader, fn func(event, data string) (done bool, err error)) error {
	sc := bufio.NewScanner(r)
	// Increase scanner buffer for long JSON lines.
	buf := make([]byte, 0, 64*1024)
	sc.Buffer(buf, 2*1024*1024)

	event := ""
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		switch {
		case line == "":
			event = ""
		case strings.HasPrefix(line, ":"):
			// comment / keep-alive
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			done, err := fn(event, data)
			if err != nil {
				return err
			}
			if done {
				return nil
			}
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return errStreamIncomplete(provider)
}

func errStreamIncomplete(provider string) *UpstreamError {
	return newUpstreamError(provider, 0, "stream ended before completion")
}
