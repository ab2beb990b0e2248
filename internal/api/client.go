// internal/api/client.go
//
// HTTP client for the staging server: the submission source (paged pending
// queue), the publish gateway, and the account/flair catalogs. The client
// is stateless and safe to call from command goroutines; all queue state
// lives with the caller.

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/kingrea/postdeck/internal/queue"
)

// Kind selects which media queue the staging server serves.
type Kind string

const (
	KindImages Kind = "images"
	KindVideos Kind = "videos"
)

// deleteType maps the queue kind onto the delete endpoint's singular type
// field.
func (k Kind) deleteType() string {
	if k == KindVideos {
		return "video"
	}
	return "image"
}

// Flair is one selectable flair template for the active account.
type Flair struct {
	ID    string `json:"id"`
	Label string `json:"text"`
}

// PublishInput carries everything one publish call needs.
type PublishInput struct {
	Account string
	Owner   string
	Caption string
	FlairID string
	NSFW    bool
	Media   []string
}

// Client talks to one staging server. Requests carry no timeout: a call
// runs until it completes, errors, or its context is canceled.
type Client struct {
	base  *url.URL
	kind  Kind
	httpc *http.Client
}

// Option customizes client construction.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client (used in tests).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpc = h
		}
	}
}

// WithKind selects the media queue; the default is images.
func WithKind(k Kind) Option {
	return func(c *Client) {
		if k == KindImages || k == KindVideos {
			c.kind = k
		}
	}
}

// New builds a client for the given base URL.
func New(baseURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("api: parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("api: base url must be http or https, got %q", baseURL)
	}
	c := &Client{
		base:  base,
		kind:  KindImages,
		httpc: &http.Client{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Kind returns the media queue this client serves.
func (c *Client) Kind() Kind { return c.kind }

// Accounts fetches the configured platform accounts.
func (c *Client) Accounts(ctx context.Context) ([]string, error) {
	var accounts []string
	if err := c.getJSON(ctx, "/api/accounts", nil, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

// Flairs fetches the flair catalog for one account.
func (c *Client) Flairs(ctx context.Context, account string) ([]Flair, error) {
	q := url.Values{"account": {account}}
	var flairs []Flair
	if err := c.getJSON(ctx, "/api/flairs", q, &flairs); err != nil {
		return nil, err
	}
	return flairs, nil
}

type pendingPost struct {
	Username     string   `json:"username"`
	Name         string   `json:"name"`
	TitlePreview string   `json:"titlePreview"`
	Files        []string `json:"files"`
	FileCount    int      `json:"fileCount"`
}

type pendingResponse struct {
	Posts   []pendingPost `json:"posts"`
	HasMore bool          `json:"hasMore"`
}

// PendingPage fetches one page of pending submissions.
func (c *Client) PendingPage(ctx context.Context, page, size int) ([]queue.Submission, bool, error) {
	q := url.Values{
		"page":  {strconv.Itoa(page)},
		"limit": {strconv.Itoa(size)},
		"type":  {string(c.kind)},
	}
	var resp pendingResponse
	if err := c.getJSON(ctx, "/api/posts/pending", q, &resp); err != nil {
		return nil, false, err
	}
	subs := make([]queue.Submission, 0, len(resp.Posts))
	for _, post := range resp.Posts {
		subs = append(subs, queue.Submission{
			Username:     post.Username,
			TitlePreview: post.TitlePreview,
			MediaItems:   post.Files,
			MediaCount:   len(post.Files),
		})
	}
	return subs, resp.HasMore, nil
}

type publishRequest struct {
	AccountUsername string   `json:"accountUsername"`
	Username        string   `json:"username"`
	Caption         string   `json:"caption"`
	FlairID         string   `json:"flairId"`
	IsNSFW          bool     `json:"isNsfw"`
	ImagesToUpload  []string `json:"imagesToUpload,omitempty"`
	VideoToUpload   string   `json:"videoToUpload,omitempty"`
}

type publishResponse struct {
	URL     string `json:"url"`
	Message string `json:"message"`
}

// PublishPart publishes the selected media of one part as a single post.
// It returns the published post's URL. Cancellation of ctx surfaces as the
// context error, never as a PublishError.
func (c *Client) PublishPart(ctx context.Context, in PublishInput) (string, error) {
	req := publishRequest{
		AccountUsername: in.Account,
		Username:        in.Owner,
		Caption:         in.Caption,
		FlairID:         in.FlairID,
		IsNSFW:          in.NSFW,
	}
	path := "/api/posts/upload"
	if c.kind == KindVideos {
		path = "/api/posts/upload_video"
		if len(in.Media) > 0 {
			req.VideoToUpload = in.Media[0]
		}
	} else {
		req.ImagesToUpload = in.Media
	}
	status, body, err := c.postJSON(ctx, path, req)
	if err != nil {
		return "", err
	}
	var resp publishResponse
	if jsonErr := json.Unmarshal(body, &resp); jsonErr != nil && status == http.StatusOK {
		return "", fmt.Errorf("api: decode publish response: %w", jsonErr)
	}
	if status != http.StatusOK {
		return "", &PublishError{Status: status, Message: statusMessage(status, resp.Message)}
	}
	return resp.URL, nil
}

type deleteRequest struct {
	Filename string `json:"filename"`
	Type     string `json:"type"`
}

// DeleteMedia permanently removes one stored media file from the queue.
func (c *Client) DeleteMedia(ctx context.Context, item string) error {
	status, body, err := c.postJSON(ctx, "/api/files/delete", deleteRequest{
		Filename: item,
		Type:     c.kind.deleteType(),
	})
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return &DeleteError{Status: status, Message: statusMessage(status, decodeMessage(body))}
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path, query), nil)
	if err != nil {
		return fmt.Errorf("api: build request: %w", err)
	}
	req.Header.Set("X-Request-ID", uuid.NewString())
	resp, err := c.httpc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &FetchError{Message: err.Error()}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &FetchError{Status: resp.StatusCode, Message: err.Error()}
	}
	if resp.StatusCode != http.StatusOK {
		return &FetchError{Status: resp.StatusCode, Message: statusMessage(resp.StatusCode, decodeMessage(body))}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &FetchError{Status: resp.StatusCode, Message: fmt.Sprintf("decode response: %v", err)}
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any) (int, []byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("api: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path, nil), bytes.NewReader(data))
	if err != nil {
		return 0, nil, fmt.Errorf("api: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	resp, err := c.httpc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, nil, ctx.Err()
		}
		return 0, nil, fmt.Errorf("api: %s: %w", path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return 0, nil, ctx.Err()
		}
		return 0, nil, fmt.Errorf("api: read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func decodeMessage(body []byte) string {
	var m struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &m); err != nil {
		return ""
	}
	return m.Message
}
