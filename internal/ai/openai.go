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

// OpenAIProvider speaks the chat/completions protocol. It serves OpenAI itself
// and OpenAI-compatible gateways such as OpenRouter.
type OpenAIProvider struct {
	Name    string
	BaseURL string
	APIKey  string
	Model   string
	// Headers are extra request headers, e.g. OpenRouter's HTTP-Referer / X-Title.
	Headers map[string]string
	Client  *http.Client
}

type openAIMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatReq struct {
	Model       string      `json:"model"`
	Messages    []openAIMsg `json:"messages"`
	Stream      bool        `json:"stream"`
	Temperature *float64    `json:"temperature,omitempty"`
	MaxTokens   int         `json:"max_tokens,omitempty"`
}

type openAIChatResp struct {
	Choices []struct {
		Message openAIMsg `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type openAIStreamResp struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewOpenAIProvider(name string, b Binding, client *http.Client) *OpenAIProvider {
	baseURL := b.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &OpenAIProvider{
		Name:    name,
		BaseURL: baseURL,
		APIKey:  b.APIKey,
		Model:   b.Model,
		Headers: b.Headers,
		Client:  client,
	}
}

func (p *OpenAIProvider) newRequest(ctx context.Context, req Request, stream bool) (*http.Request, error) {
	if p.Client == nil {
		return nil, errors.Errorf("%s: http client is nil", p.Name)
	}
	if strings.TrimSpace(p.APIKey) == "" {
		return nil, errors.Errorf("%s: api key is required", p.Name)
	}
	model := strings.TrimSpace(p.Model)
	if model == "" {
		return nil, errors.Errorf("%s: model is required", p.Name)
	}

	reqBody := openAIChatReq{
		Model:       model,
		Stream:      stream,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Messages: func() []openAIMsg {
			out := make([]openAIMsg, 0, len(req.Messages))
			for _, m := range req.Messages {
				out = append(out, openAIMsg{Role: m.Role, Content: m.Content})
			}
			return out
		}(),
	}

	b, err := json.Marshal(reqBody)
	if err != nil {
		return nil, errors.Wrap(err, "marshal chat request")
	}

	url := fmt.Sprintf("%s/chat/completions", strings.TrimRight(p.BaseURL, "/"))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, errors.Wrap(err, "build chat request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.APIKey)
	for k, v := range p.Headers {
		if v != "" {
			httpReq.Header.Set(k, v)
		}
	}
	return httpReq, nil
}

func (p *OpenAIProvider) Chat(ctx context.Context, req Request) (string, error) {
	httpReq, err := p.newRequest(ctx, req, false)
	if err != nil {
		return "", err
	}

	resp, err := p.Client.Do(httpReq)
	if err != nil {
		return "", errors.Wrapf(err, "%s: call chat completions", p.Name)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", upstreamErrorFromResponse(p.Name, resp)
	}

	var decoded openAIChatResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", errors.Wrapf(err, "%s: decode response", p.Name)
	}
	if decoded.Error != nil && decoded.Error.Message != "" {
		return "", newUpstreamError(p.Name, 0, decoded.Error.Message)
	}
	if len(decoded.Choices) == 0 {
		return "", newUpstreamError(p.Name, 0, "empty response")
	}
	return decoded.Choices[0].Message.Content, nil
}

// StreamChat streams assistant content chunks via SSE.
func (p *OpenAIProvider) StreamChat(ctx context.Context, req Request) (<-chan string, <-chan error) {
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
			errs <- errors.Wrapf(err, "%s: call chat completions", p.Name)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			errs <- upstreamErrorFromResponse(p.Name, resp)
			return
		}

		err = scanSSE(p.Name, resp.Body, func(_, data string) (bool, error) {
			if data == "[DONE]" {
				return true, nil
			}
			var decoded openAIStreamResp
			if err := json.Unmarshal([]byte(data), &decoded); err != nil {
				return false, errors.Wrapf(err, "%s: decode stream event", p.Name)
			}
			if decoded.Error != nil && decoded.Error.Message != "" {
				return false, newUpstreamError(p.Name, 0, decoded.Error.Message)
			}
			if len(decoded.Choices) == 0 {
				return false, nil
			}
			if delta := decoded.Choices[0].Delta.Content; delta != "" {
				if !send(ctx, chunks, delta) {
					return false, ctx.Err()
				}
			}
			return false, nil
		})
		if err != nil {
			errs <- err
		}
	}()

	return chunks, errs
}
