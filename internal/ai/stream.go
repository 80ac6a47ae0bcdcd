package ai

import "context"

// StreamProvider is an optional interface. Providers may implement streaming chat.
// Both channels are closed when streaming ends; at most one error is sent.
type StreamProvider interface {
	StreamChat(ctx context.Context, req Request) (<-chan string, <-chan error)
}

func send(ctx context.Context, ch chan<- string, s string) bool {
	select {
	case ch <- s:
		return true
	case <-ctx.Done():
		return false
	}
}
