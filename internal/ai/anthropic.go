package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	errors "github.com/Laisky/errors/v2"
)

const (
	anthropicVersion          = "2023-06-01"
	anthropicDefaultMaxTokens = 4096
)

// AnthropicProvider speaks the Messages API.
type AnthropicProvider struct {
	BaseURL string
	APIKey  string
	Model   string
	// MaxTokens is required by the API; used when the request leaves it unset.
	MaxTokens int
	Client    *http.Client
}

type anthropicMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicReq struct {
	Model       string         `json:"model"`
	System      string         `json:"system,omitempty"`
	Messages    []anthropicMsg `json:"messages"`
	MaxTokens   int            `json:"max_tokens"`
	Temperature *float64       `json:"temperature,omitempty"`
	Stream      bool           `json:"stream"`
}

type anthropicResp struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

type anthropicEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func NewAnthropicProvider(b Binding, client *http.Client) *AnthropicProvider {
	baseURL := b.BaseURL
	if baseURL == "" {
		baseURL = "https://api.anthropic.com/v1"
	}
	maxTokens := b.MaxOutputTokens
	if maxTokens <= 0 || maxTokens > anthropicDefaultMaxTokens {
		maxTokens = anthropicDefaultMaxTokens
	}
	return &AnthropicProvider{
		BaseURL:   baseURL,
		APIKey:    b.APIKey,
		Model:     b.Model,
		MaxTokens: maxTokens,
		Client:    client,
	}
}

func (p *AnthropicProvider) newRequest(ctx context.Context, req Request, stream bool) (*http.Request, error) {
	if p.Client == nil {
		return nil, errors.New("anthropic: http client is nil")
	}
	if strings.TrimSpace(p.APIKey) == "" {
		return nil, errors.New("anthropic: api key is required")
	}

	body := anthropicReq{
		Model:       p.Model,
		MaxTokens:   p.MaxTokens,
		Temperature: req.Temperature,
		Stream:      stream,
	}
	if req.MaxTokens > 0 {
		body.MaxTokens = req.MaxTokens
	}

	var system []string
	for _, m := range req.Messages {
		if m.Role == RoleSystem {
			system = append(system, m.Content)
			continue
		}
		body.Messages = append(body.Messages, anthropicMsg{Role: m.Role, Content: m.Content})
	}
	body.System = strings.Join(system, "\n\n")

	b, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "marshal messages request")
	}

	url := fmt.Sprintf("%s/messages", strings.TrimRight(p.BaseURL, "/"))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, errors.Wrap(err, "build messages request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.APIKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)
	return httpReq, nil
}

func (p *AnthropicProvider) Chat(ctx context.Context, req Request) (string, error) {
	httpReq, err := p.newRequest(ctx, req, false)
	if err != nil {
		return "", err
	}

	resp, err := p.Client.Do(httpReq)
	if err != nil {
		return "", errors.Wrap(err, "anthropic: call messages")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", upstreamErrorFromResponse(ProviderAnthropic, resp)
	}

	var decoded anthropicResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", errors.Wrap(err, "anthropic: decode response")
	}

	var b strings.Builder
	for _, c := range decoded.Content {
		if c.Type == "text" {
			b.WriteString(c.Text)
		}
	}
	return b.String(), nil
}

func (p *AnthropicProvider) StreamChat(ctx context.Context, req Request) (<-chan string, <-chan error) {
	chunks := make(chan string, 16)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		httpReq, err := p.newRequest(ctx, req, true)
		if err != nil {
			errs <- err
			return
		}

		resp, err := p.Client.Do(httpReq)
		if err != nil {
			errs <- errors.Wrap(err, "anthropic: call messages")
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			errs <- upstreamErrorFromResponse(ProviderAnthropic, resp)
			return
		}

		err = scanSSE(ProviderAnthropic, resp.Body, func(_, data string) (bool, error) {
			var ev anthropicEvent
			if err := json.Unmarshal([]byte(data), &ev); err != nil {
				return false, errors.Wrap(err, "anthropic: decode stream event")
			}
			switch ev.Type {
			case "content_block_delta":
				if ev.Delta.Type == "text_delta" && ev.Delta.Text != "" {
					if !send(ctx, chunks, ev.Delta.Text) {
						return false, ctx.Err()
					}
				}
			case "message_stop":
				return true, nil
			case "error":
				return false, newUpstreamError(ProviderAnthropic, 0, ev.Error.Message+" ("+ev.Error.Type+")")
			}
			return false, nil
		})
		if err != nil {
			errs <- err
		}
	}()

	return chunks, errs
}
