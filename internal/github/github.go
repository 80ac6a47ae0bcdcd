// Package github is a read-only client for public repository contents.
package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	errors "github.com/Laisky/errors/v2"
	"github.com/suPer8Hu/ai-studio/internal/log"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var (
	ErrNotFound       = errors.New("github: not found")
	ErrInvalidRepoURL = errors.New("github: invalid repository url")
	ErrNotAFile       = errors.New("github: path is not a file")
)

type RateLimitError struct {
	Reset time.Time
}

func (e *RateLimitError) Error() string {
	if e.Reset.IsZero() {
		return "github: rate limit exceeded"
	}
	return fmt.Sprintf("github: rate limit exceeded, resets at %s", e.Reset.Format(time.RFC3339))
}

type Repo struct {
	FullName      string `json:"full_name"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	HTMLURL       string `json:"html_url"`
	DefaultBranch string `json:"default_branch"`
	Language      string `json:"language"`
	Stars         int    `json:"stargazers_count"`
	Private       bool   `json:"private"`
}

type Entry struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Type        string `json:"type"`
	Size        int64  `json:"size"`
	SHA         string `json:"sha"`
	DownloadURL string `json:"download_url"`
}

func (e Entry) IsFile() bool { return e.Type == "file" }

type File struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	Size    int64  `json:"size"`
	SHA     string `json:"sha"`
	Content string `json:"content"`
}

// Cache stores raw API responses. Get reports a miss as (nil, false, nil).
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
	Cache   Cache
	TTL     time.Duration

	group singleflight.Group
}

func NewClient(baseURL, token string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = "https://api.github.com"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    httpClient,
		TTL:     5 * time.Minute,
	}
}

// ParseRepoURL accepts https://github.com/o/r, github.com/o/r.git,
// git@github.com:o/r.git, URLs with /tree/... suffixes, and bare o/r.
func ParseRepoURL(raw string) (owner, repo string, err error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "git@github.com:")
	if strings.Contains(s, "://") {
		u, perr := url.Parse(s)
		if perr != nil {
			return "", "", errors.Wrapf(ErrInvalidRepoURL, "%q", raw)
		}
		if !strings.EqualFold(u.Hostname(), "github.com") && !strings.EqualFold(u.Hostname(), "www.github.com") {
			return "", "", errors.Wrapf(ErrInvalidRepoURL, "%q: host %s", raw, u.Hostname())
		}
		s = u.Path
	} else {
		s = strings.TrimPrefix(s, "www.")
		s = strings.TrimPrefix(s, "github.com/")
	}

	parts := strings.Split(strings.Trim(s, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", errors.Wrapf(ErrInvalidRepoURL, "%q", raw)
	}
	return parts[0], strings.TrimSuffix(parts[1], ".git"), nil
}

func (c *Client) GetRepo(ctx context.Context, owner, repo string) (*Repo, error) {
	var out Repo
	if err := c.getJSON(ctx, fmt.Sprintf("/repos/%s/%s", owner, repo), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListContents lists a directory. A file path yields a single entry.
func (c *Client) ListContents(ctx context.Context, owner, repo, path string) ([]Entry, error) {
	var raw json.RawMessage
	if err := c.getJSON(ctx, contentsPath(owner, repo, path), &raw); err != nil {
		return nil, err
	}
	if trimmed := strings.TrimSpace(string(raw)); strings.HasPrefix(trimmed, "{") {
		var e Entry
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, errors.Wrap(err, "github: decode entry")
		}
		return []Entry{e}, nil
	}
	var entries []Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, errors.Wrap(err, "github: decode entries")
	}
	return entries, nil
}

// GetFile returns a file with its content base64 decoded.
func (c *Client) GetFile(ctx context.Context, owner, repo, path string) (*File, error) {
	var raw json.RawMessage
	if err := c.getJSON(ctx, contentsPath(owner, repo, path), &raw); err != nil {
		return nil, err
	}
	if strings.HasPrefix(strings.TrimSpace(string(raw)), "[") {
		return nil, errors.Wrapf(ErrNotAFile, "%s", path)
	}

	var body struct {
		File
		Type     string `json:"type"`
		Encoding string `json:"encoding"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, errors.Wrap(err, "github: decode file")
	}
	if body.Type != "" && body.Type != "file" {
		return nil, errors.Wrapf(ErrNotAFile, "%s is a %s", path, body.Type)
	}

	f := body.File
	if body.Encoding == "base64" {
		decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(body.Content, "\n", ""))
		if err != nil {
			return nil, errors.Wrap(err, "github: decode base64 content")
		}
		f.Content = string(decoded)
	}
	return &f, nil
}

func contentsPath(owner, repo, path string) string {
	p := fmt.Sprintf("/repos/%s/%s/contents", owner, repo)
	if path = strings.Trim(path, "/"); path != "" {
		p += "/" + path
	}
	return p
}

// getJSON fetches path through the cache. Concurrent misses for the same
// path share one upstream request.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	key := "github:" + path

	if c.Cache != nil {
		if b, ok, err := c.Cache.Get(ctx, key); err != nil {
			log.L().Warn("github cache get failed", zap.String("key", key), zap.Error(err))
		} else if ok {
			return json.Unmarshal(b, out)
		}
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		b, err := c.fetch(ctx, path)
		if err != nil {
			return nil, err
		}
		if c.Cache != nil {
			if err := c.Cache.Set(context.WithoutCancel(ctx), key, b, c.TTL); err != nil {
				log.L().Warn("github cache set failed", zap.String("key", key), zap.Error(err))
			}
		}
		return b, nil
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(v.([]byte), out)
}

func (c *Client) fetch(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return nil, errors.Wrap(err, "github: build request")
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "github: request")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, errors.Wrapf(ErrNotFound, "%s", path)
	case resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0":
		return nil, &RateLimitError{Reset: parseReset(resp.Header.Get("X-RateLimit-Reset"))}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, errors.Errorf("github: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, errors.Wrap(err, "github: read body")
	}
	return b, nil
}

func parseReset(v string) time.Time {
	sec, err := strconv.ParseInt(v, 10, 64)
	if err != nil || sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
