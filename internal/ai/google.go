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

// GoogleProvider speaks the Gemini generateContent API.
type GoogleProvider struct {
	BaseURL string
	APIKey  string
	Model   string
	Client  *http.Client
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
}

type geminiReq struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiResp struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason,omitempty"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

func (r geminiResp) text() string {
	var b strings.Builder
	for _, c := range r.Candidates {
		for _, p := range c.Content.Parts {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

func (r geminiResp) finished() bool {
	for _, c := range r.Candidates {
		if c.FinishReason != "" {
			return true
		}
	}
	return false
}

func NewGoogleProvider(b Binding, client *http.Client) *GoogleProvider {
	baseURL := b.BaseURL
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	return &GoogleProvider{
		BaseURL: baseURL,
		APIKey:  b.APIKey,
		Model:   b.Model,
		Client:  client,
	}
}

func (p *GoogleProvider) newRequest(ctx context.Context, req Request, stream bool) (*http.Request, error) {
	if p.Client == nil {
		return nil, errors.New("google: http client is nil")
	}
	if strings.TrimSpace(p.APIKey) == "" {
		return nil, errors.New("google: api key is required")
	}

	var body geminiReq
	var system []geminiPart
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, geminiPart{Text: m.Content})
		case RoleAssistant:
			body.Contents = append(body.Contents, geminiContent{Role: "model", Parts: []geminiPart{{Text: m.Content}}})
		default:
			body.Contents = append(body.Contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: m.Content}}})
		}
	}
	if len(system) > 0 {
		body.SystemInstruction = &geminiContent{Parts: system}
	}
	if req.Temperature != nil || req.MaxTokens > 0 {
		body.GenerationConfig = &geminiGenerationConfig{Temperature: req.Temperature, MaxOutputTokens: req.MaxTokens}
	}

	b, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "marshal generateContent request")
	}

	action := "generateContent"
	if stream {
		action = "streamGenerateContent?alt=sse"
	}
	url := fmt.Sprintf("%s/models/%s:%s", strings.TrimRight(p.BaseURL, "/"), p.Model, action)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, errors.Wrap(err, "build generateContent request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", p.APIKey)
	return httpReq, nil
}

func (p *GoogleProvider) Chat(ctx context.Context, req Request) (string, error) {
	httpReq, err := p.newRequest(ctx, req, false)
	if err != nil {
		return "", err
	}

	resp, err := p.Client.Do(httpReq)
	if err != nil {
		return "", errors.Wrap(err, "google: call generateContent")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", upstreamErrorFromResponse(ProviderGoogle, resp)
	}

	var decoded geminiResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", errors.Wrap(err, "google: decode response")
	}
	if decoded.Error != nil {
		return "", newUpstreamError(ProviderGoogle, decoded.Error.Code, decoded.Error.Message+" ("+decoded.Error.Status+")")
	}
	return decoded.text(), nil
}

func (p *GoogleProvider) StreamChat(ctx context.Context, req Request) (<-chan string, <-chan error) {
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
			errs <- errors.Wrap(err, "google: call streamGenerateContent")
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			errs <- upstreamErrorFromResponse(ProviderGoogle, resp)
			return
		}

		err = scanSSE(ProviderGoogle, resp.Body, func(_, data string) (bool, error) {
			var decoded geminiResp
			if err := json.Unmarshal([]byte(data), &decoded); err != nil {
				return false, errors.Wrap(err, "google: decode stream event")
			}
			if decoded.Error != nil {
				return false, newUpstreamError(ProviderGoogle, decoded.Error.Code, decoded.Error.Message+" ("+decoded.Error.Status+")")
			}
			if t := decoded.text(); t != "" {
				if !send(ctx, chunks, t) {
					return false, ctx.Err()
				}
			}
			return decoded.finished(), nil
		})
		if err != nil {
			errs <- err
		}
	}()

	return chunks, errs
}
