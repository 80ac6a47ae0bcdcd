package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func collect(chunks <-chan string, errs <-chan error) (string, error) {
	var b strings.Builder
	for c := range chunks {
		b.WriteString(c)
	}
	return b.String(), <-errs
}

func testRequest() Request {
	temp := 0.2
	return Request{
		Messages: []Message{
			{Role: RoleSystem, Content: "be brief"},
			{Role: RoleUser, Content: "hello"},
		},
		Temperature: &temp,
		MaxTokens:   100,
	}
}

func TestOpenAIProviderStream(t *testing.T) {
	var got openAIChatReq
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer sk-user", r.Header.Get("Authorization"))
		require.Equal(t, "studio", r.Header.Get("X-Title"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n")
		fmt.Fprint(w, ": keep-alive\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	p := NewOpenAIProvider(ProviderOpenRouter, Binding{
		Model:   "vendor/model",
		BaseURL: srv.URL,
		APIKey:  "sk-user",
		Headers: map[string]string{"X-Title": "studio", "HTTP-Referer": ""},
	}, srv.Client())

	text, err := collect(p.StreamChat(context.Background(), testRequest()))
	require.NoError(t, err)
	require.Equal(t, "Hello", text)

	require.True(t, got.Stream)
	require.Equal(t, "vendor/model", got.Model)
	require.Equal(t, 100, got.MaxTokens)
	require.Len(t, got.Messages, 2)
	require.Equal(t, RoleSystem, got.Messages[0].Role)
}

func TestOpenAIProviderRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"slow down","type":"requests"}}`)
	}))
	defer srv.Close()

	p := NewOpenAIProvider(ProviderOpenAI, Binding{Model: "gpt-4o", BaseURL: srv.URL, APIKey: "k"}, srv.Client())
	_, err := collect(p.StreamChat(context.Background(), testRequest()))
	require.Error(t, err)
	require.True(t, IsRateLimited(err))

	var ue *UpstreamError
	require.ErrorAs(t, err, &ue)
	require.Equal(t, http.StatusTooManyRequests, ue.Status)
	require.Contains(t, ue.Message, "slow down")
}

func TestOpenAIProviderRequiresKey(t *testing.T) {
	p := NewOpenAIProvider(ProviderOpenAI, Binding{Model: "gpt-4o"}, http.DefaultClient)
	_, err := p.Chat(context.Background(), testRequest())
	require.ErrorContains(t, err, "api key is required")
}

func TestAnthropicProviderStreamMovesSystemPrompt(t *testing.T) {
	var got anthropicReq
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/messages", r.URL.Path)
		require.Equal(t, "sk-ant", r.Header.Get("x-api-key"))
		require.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		fmt.Fprint(w, "event: message_start\ndata: {\"type\":\"message_start\"}\n\n")
		fmt.Fprint(w, "event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"Hi \"}}\n\n")
		fmt.Fprint(w, "event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"there\"}}\n\n")
		fmt.Fprint(w, "event: message_stop\ndata: {\"type\":\"message_stop\"}\n\n")
	}))
	defer srv.Close()

	p := NewAnthropicProvider(Binding{Model: "claude", BaseURL: srv.URL, APIKey: "sk-ant", MaxOutputTokens: 64000}, srv.Client())
	text, err := collect(p.StreamChat(context.Background(), testRequest()))
	require.NoError(t, err)
	require.Equal(t, "Hi there", text)

	require.Equal(t, "be brief", got.System)
	require.Len(t, got.Messages, 1)
	require.Equal(t, RoleUser, got.Messages[0].Role)
	require.Equal(t, 100, got.MaxTokens)
}

func TestAnthropicProviderStreamErrorEvent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"par\"}}\n\n")
		fmt.Fprint(w, "event: error\ndata: {\"type\":\"error\",\"error\":{\"type\":\"rate_limit_error\",\"message\":\"busy\"}}\n\n")
	}))
	defer srv.Close()

	p := NewAnthropicProvider(Binding{Model: "claude", BaseURL: srv.URL, APIKey: "k"}, srv.Client())
	text, err := collect(p.StreamChat(context.Background(), testRequest()))
	require.Equal(t, "par", text)
	require.True(t, IsRateLimited(err))
}

func TestGoogleProviderStream(t *testing.T) {
	var got geminiReq
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/models/gemini-2.0-flash:streamGenerateContent", r.URL.Path)
		require.Equal(t, "sse", r.URL.Query().Get("alt"))
		require.Equal(t, "g-key", r.Header.Get("x-goog-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		fmt.Fprint(w, "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"a\"}]}}]}\n\n")
		fmt.Fprint(w, "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"b\"}]},\"finishReason\":\"STOP\"}]}\n\n")
	}))
	defer srv.Close()

	p := NewGoogleProvider(Binding{Model: "gemini-2.0-flash", BaseURL: srv.URL, APIKey: "g-key"}, srv.Client())
	req := testRequest()
	req.Messages = append(req.Messages, Message{Role: RoleAssistant, Content: "earlier"}, Message{Role: RoleUser, Content: "again"})

	text, err := collect(p.StreamChat(context.Background(), req))
	require.NoError(t, err)
	require.Equal(t, "ab", text)

	require.NotNil(t, got.SystemInstruction)
	require.Equal(t, "be brief", got.SystemInstruction.Parts[0].Text)
	require.Len(t, got.Contents, 3)
	require.Equal(t, "model", got.Contents[1].Role)
	require.Equal(t, 100, got.GenerationConfig.MaxOutputTokens)
}

func TestGoogleProviderQuotaIsRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error":{"code":403,"message":"quota exceeded","status":"RESOURCE_EXHAUSTED"}}`)
	}))
	defer srv.Close()

	p := NewGoogleProvider(Binding{Model: "m", BaseURL: srv.URL, APIKey: "k"}, srv.Client())
	_, err := p.Chat(context.Background(), testRequest())
	require.True(t, IsRateLimited(err))
}

func TestOllamaProviderStreamAndChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if strings.Contains(string(body), `"stream":true`) {
			fmt.Fprintln(w, `{"message":{"role":"assistant","content":"x"},"done":false}`)
			fmt.Fprintln(w, `{"message":{"role":"assistant","content":"y"},"done":true}`)
			return
		}
		fmt.Fprint(w, `{"message":{"role":"assistant","content":"xy"},"done":true}`)
	}))
	defer srv.Close()

	p := NewOllamaProvider(Binding{BaseURL: srv.URL}, srv.Client())
	require.Equal(t, "llama3:latest", p.Model)

	text, err := collect(p.StreamChat(context.Background(), testRequest()))
	require.NoError(t, err)
	require.Equal(t, "xy", text)

	reply, err := p.Chat(context.Background(), testRequest())
	require.NoError(t, err)
	require.Equal(t, "xy", reply)
}

func TestProvidersRejectTruncatedStream(t *testing.T) {
	cases := []struct {
		name string
		body string
		open func(b Binding, c *http.Client) StreamProvider
		want string
	}{
		{
			name: "openai",
			body: "data: {\"choices\":[{\"delta\":{\"content\":\"half a rep\"}}]}\n\n",
			open: func(b Binding, c *http.Client) StreamProvider {
				return NewOpenAIProvider(ProviderOpenAI, b, c)
			},
			want: "half a rep",
		},
		{
			name: "anthropic",
			body: "event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"half\"}}\n\n",
			open: func(b Binding, c *http.Client) StreamProvider {
				return NewAnthropicProvider(b, c)
			},
			want: "half",
		},
		{
			name: "google",
			body: "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"ha\"}]}}]}\n\n",
			open: func(b Binding, c *http.Client) StreamProvider {
				return NewGoogleProvider(b, c)
			},
			want: "ha",
		},
		{
			name: "ollama",
			body: `{"message":{"role":"assistant","content":"x"},"done":false}` + "\n",
			open: func(b Binding, c *http.Client) StreamProvider {
				return NewOllamaProvider(b, c)
			},
			want: "x",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, tc.body)
			}))
			defer srv.Close()

			p := tc.open(Binding{Model: "m", BaseURL: srv.URL, APIKey: "k"}, srv.Client())
			text, err := collect(p.StreamChat(context.Background(), testRequest()))
			require.Equal(t, tc.want, text)

			var ue *UpstreamError
			require.ErrorAs(t, err, &ue)
			require.Contains(t, ue.Message, "ended before completion")
			require.False(t, ue.RateLimited)
		})
	}
}

func TestStreamCancelStopsProvider(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"first\"}}]}\n\n")
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	p := NewOpenAIProvider(ProviderOpenAI, Binding{Model: "m", BaseURL: srv.URL, APIKey: "k"}, srv.Client())
	chunks, errs := p.StreamChat(ctx, testRequest())

	require.Equal(t, "first", <-chunks)
	cancel()
	for range chunks {
	}
	require.Error(t, <-errs)
}
