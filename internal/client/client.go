// Package client is a Go client for the studio HTTP API.
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	errors "github.com/Laisky/errors/v2"
	"github.com/suPer8Hu/ai-studio/internal/models"
)

// ErrTruncatedStream means the event stream ended without a done event.
// The turn must be treated as failed even if text was received.
var ErrTruncatedStream = errors.New("chat stream ended before completion")

// APIError is a non-2xx envelope returned by the server.
type APIError struct {
	Status  int
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Details json.RawMessage `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("studio api: status %d code %d: %s", e.Status, e.Code, e.Message)
}

// StreamError is an error event received after streaming started.
type StreamError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("chat stream failed (code %d): %s", e.Code, e.Message)
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New builds a client. The http client has no overall timeout because chat
// streams are long lived; use contexts to bound calls.
func New(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Transport: &http.Transport{ResponseHeaderTimeout: 90 * time.Second}}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    httpClient,
	}
}

type ChatRequest struct {
	ProjectID   string   `json:"projectId"`
	Message     string   `json:"message"`
	Model       string   `json:"model,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"maxTokens,omitempty"`
}

// ChatResult is the summary of a completed stream.
type ChatResult struct {
	Text          string
	Model         string
	UserMessageID uint64
}

// FilePatch leaves nil fields unchanged.
type FilePatch struct {
	Content  *string `json:"content,omitempty"`
	Language *string `json:"language,omitempty"`
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "marshal request")
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	apiErr := &APIError{Status: resp.StatusCode}
	if err := json.Unmarshal(data, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(data))
	}
	return apiErr
}

// call sends a JSON request and decodes the envelope's data into out.
func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}

	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return errors.Wrap(err, "decode response")
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return errors.Wrap(err, "decode response data")
	}
	return nil
}

func (c *Client) ListProjects(ctx context.Context) ([]models.Project, error) {
	var out struct {
		Projects []models.Project `json:"projects"`
	}
	if err := c.call(ctx, http.MethodGet, "/projects", nil, &out); err != nil {
		return nil, err
	}
	return out.Projects, nil
}

func (c *Client) UpdateFile(ctx context.Context, fileID string, patch FilePatch) (*models.File, error) {
	var out struct {
		File models.File `json:"file"`
	}
	if err := c.call(ctx, http.MethodPatch, "/files/"+fileID, patch, &out); err != nil {
		return nil, err
	}
	return &out.File, nil
}

// StreamChat runs one chat turn, calling onChunk for every text delta in
// arrival order. A failure before streaming is an *APIError; an error event
// is a *StreamError; an early end of stream is ErrTruncatedStream.
func (c *Client) StreamChat(ctx context.Context, req ChatRequest, onChunk func(string)) (*ChatResult, error) {
	httpReq, err := c.newRequest(ctx, http.MethodPost, "/chat", req)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "post chat")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeError(resp)
	}

	res := &ChatResult{}
	var text strings.Builder
	err = readEvents(resp.Body, func(event string, data []byte) (bool, error) {
		switch event {
		case "chunk":
			var p struct {
				Delta string `json:"delta"`
			}
			if err := json.Unmarshal(data, &p); err != nil {
				return false, errors.Wrap(err, "decode chunk")
			}
			text.WriteString(p.Delta)
			if onChunk != nil {
				onChunk(p.Delta)
			}
		case "done":
			var p struct {
				Model         string `json:"model"`
				UserMessageID uint64 `json:"user_message_id"`
			}
			if err := json.Unmarshal(data, &p); err != nil {
				return false, errors.Wrap(err, "decode done")
			}
			res.Model, res.UserMessageID = p.Model, p.UserMessageID
			return true, nil
		case "error":
			se := &StreamError{}
			if err := json.Unmarshal(data, se); err != nil {
				se.Message = string(data)
			}
			return false, se
		}
		return false, nil
	})
	res.Text = text.String()
	return res, err
}

// readEvents parses server-sent events until handle reports completion.
// Reaching EOF first is ErrTruncatedStream.
func readEvents(r io.Reader, handle func(event string, data []byte) (bool, error)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var (
		event string
		data  bytes.Buffer
	)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if event == "" && data.Len() == 0 {
				continue
			}
			if event == "" {
				event = "message"
			}
			done, err := handle(event, data.Bytes())
			if err != nil || done {
				return err
			}
			event = ""
			data.Reset()
		case strings.HasPrefix(line, ":"):
			// comment
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := sc.Err(); err != nil {
		return errors.Wrap(err, "read event stream")
	}
	return ErrTruncatedStream
}
