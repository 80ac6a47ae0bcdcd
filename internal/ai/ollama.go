package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	errors "github.com/Laisky/errors/v2"
)

// OllamaProvider talks to a local Ollama runtime. It has no credential.
type OllamaProvider struct {
	BaseURL string
	Model   string
	Client  *http.Client
}

type ollamaMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
	NumPredict  int      `json:"num_predict,omitempty"`
}

type ollamaChatReq struct {
	Model    string         `json:"model"`
	Messages []ollamaMsg    `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  *ollamaOptions `json:"options,omitempty"`
}

type ollamaChatResp struct {
	Message ollamaMsg `json:"message"`
	Done    bool      `json:"done"`
	Error   string    `json:"error,omitempty"`
}

func NewOllamaProvider(b Binding, client *http.Client) *OllamaProvider {
	baseURL := b.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	model := b.Model
	if model == "" {
		model = "llama3:latest"
	}
	return &OllamaProvider{
		BaseURL: baseURL,
		Model:   model,
		Client:  client,
	}
}

func (p *OllamaProvider) newRequest(ctx context.Context, req Request, stream bool) (*http.Request, error) {
	if p.Client == nil {
		return nil, errors.New("ollama: http client is nil")
	}

	reqBody := ollamaChatReq{
		Model:  p.Model,
		Stream: stream,
		Messages: func() []ollamaMsg {
			out := make([]ollamaMsg, 0, len(req.Messages))
			for _, m := range req.Messages {
				out = append(out, ollamaMsg{Role: m.Role, Content: m.Content})
			}
			return out
		}(),
	}
	if req.Temperature != nil || req.MaxTokens > 0 {
		reqBody.Options = &ollamaOptions{Temperature: req.Temperature, NumPredict: req.MaxTokens}
	}

	b, err := json.Marshal(reqBody)
	if err != nil {
		return nil, errors.Wrap(err, "marshal ollama request")
	}

	url := fmt.Sprintf("%s/api/chat", p.BaseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, errors.Wrap(err, "build ollama request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	return httpReq, nil
}

func (p *OllamaProvider) Chat(ctx context.Context, req Request) (string, error) {
	httpReq, err := p.newRequest(ctx, req, false)
	if err != nil {
		return "", err
	}

	resp, err := p.Client.Do(httpReq)
	if err != nil {
		return "", errors.Wrap(err, "ollama: call chat")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", upstreamErrorFromResponse(ProviderOllama, resp)
	}

	var decoded ollamaChatResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", errors.Wrap(err, "ollama: decode response")
	}
	if decoded.Error != "" {
		return "", newUpstreamError(ProviderOllama, 0, decoded.Error)
	}
	return decoded.Message.Content, nil
}

// StreamChat streams assistant content chunks from newline delimited JSON.
// It returns immediately with two channels; both will be closed when streaming ends.
func (p *OllamaProvider) StreamChat(ctx context.Context, req Request) (<-chan string, <-chan error) {
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
			errs <- errors.Wrap(err, "ollama: call chat")
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			errs <- upstreamErrorFromResponse(ProviderOllama, resp)
			return
		}

		sc := bufio.NewScanner(resp.Body)
		// Increase scanner buffer for long JSON lines.
		buf := make([]byte, 0, 64*1024)
		sc.Buffer(buf, 2*1024*1024)

		for sc.Scan() {
			line := sc.Bytes()
			if len(line) == 0 {
				continue
			}

			var decoded ollamaChatResp
			if err := json.Unmarshal(line, &decoded); err != nil {
				errs <- errors.Wrap(err, "ollama: decode stream line")
				return
			}
			if decoded.Error != "" {
				errs <- newUpstreamError(ProviderOllama, 0, decoded.Error)
				return
			}

			if decoded.Message.Content != "" {
				if !send(ctx, chunks, decoded.Message.Content) {
					errs <- ctx.Err()
					return
				}
			}

			if decoded.Done {
				return
			}
		}

		if err := sc.Err(); err != nil {
			errs <- err
			return
		}
		errs <- errStreamIncomplete(ProviderOllama)
	}()

	return chunks, errs
}
