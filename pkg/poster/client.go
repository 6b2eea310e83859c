package poster

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Client talks to the external posting gateway. It issues exactly one
// outbound call per invocation; retry policy belongs to the caller so that
// attempt counts stay observable per post.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, requestTimeout time.Duration) *Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout:   requestTimeout,
			Transport: transport,
		},
	}
}

type MediaAttachment struct {
	Kind string `json:"kind"`
	URL  string `json:"url"`
}

type PostRequest struct {
	Platform          string            `json:"platform"`
	ChannelIdentifier string            `json:"channelIdentifier"`
	Credentials       string            `json:"credentials"`
	Content           string            `json:"content"`
	Media             []MediaAttachment `json:"media,omitempty"`
}

type PreviewRequest struct {
	Platform          string `json:"platform"`
	ChannelIdentifier string `json:"channelIdentifier"`
	Credentials       string `json:"credentials"`
	Content           string `json:"content,omitempty"`
}

// Receipt is the gateway's acknowledgement of a delivered post.
type Receipt struct {
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"publishedAt"`
}

type envelope struct {
	Success bool `json:"success"`
	Data    *struct {
		URL         string    `json:"url"`
		PublishedAt time.Time `json:"publishedAt"`
		Valid       bool      `json:"valid"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Send delivers one post through the gateway, bounded by deadline. A call
// still in flight when the deadline fires is abandoned, not awaited: the
// caller gets a retryable timeout error immediately and the HTTP exchange is
// left to finish on its own.
func (c *Client) Send(ctx context.Context, req PostRequest, deadline time.Duration) (Receipt, error) {
	type outcome struct {
		receipt Receipt
		err     error
	}

	done := make(chan outcome, 1)
	go func() {
		receipt, err := c.post(ctx, req)
		done <- outcome{receipt: receipt, err: err}
	}()

	timer := time.NewTimer(deadline)
	defer timer.Stop()

	select {
	case res := <-done:
		return res.receipt, res.err
	case <-timer.C:
		return Receipt{}, &GatewayError{
			Message:   fmt.Sprintf("Timeout reached (%v)", deadline),
			Retryable: true,
			Timeout:   true,
		}
	}
}

// Preview asks the gateway to validate channel credentials without posting.
// No mutation happens on either side.
func (c *Client) Preview(ctx context.Context, req PreviewRequest) error {
	env, status, err := c.call(ctx, "/preview", req)
	if err != nil {
		return err
	}
	if classified := classify(env, status); classified != nil {
		return classified
	}
	if env.Data == nil || !env.Data.Valid {
		return &GatewayError{Message: "gateway reported credentials invalid", Retryable: false}
	}
	return nil
}

func (c *Client) post(ctx context.Context, req PostRequest) (Receipt, error) {
	env, status, err := c.call(ctx, "/post", req)
	if err != nil {
		return Receipt{}, err
	}
	if classified := classify(env, status); classified != nil {
		return Receipt{}, classified
	}
	if env.Data == nil {
		return Receipt{}, &GatewayError{Message: "gateway response missing receipt", Retryable: false}
	}
	return Receipt{URL: env.Data.URL, PublishedAt: env.Data.PublishedAt}, nil
}

func (c *Client) call(ctx context.Context, path string, payload interface{}) (envelope, int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return envelope{}, 0, fmt.Errorf("marshal gateway payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return envelope{}, 0, fmt.Errorf("build gateway request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// Network-level failures are worth another attempt.
		return envelope{}, 0, &GatewayError{Message: err.Error(), Retryable: true}
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return envelope{}, 0, &GatewayError{
			Message:    fmt.Sprintf("malformed gateway response: %v", err),
			StatusCode: resp.StatusCode,
			Retryable:  resp.StatusCode >= 500,
		}
	}
	return env, resp.StatusCode, nil
}

// classify maps an HTTP status plus response envelope onto the error
// taxonomy: 4xx is terminal, 5xx is retryable, a declined 2xx is terminal.
func classify(env envelope, status int) *GatewayError {
	message := ""
	if env.Error != nil {
		message = env.Error.Message
	}

	switch {
	case status >= 200 && status < 300:
		if env.Success {
			return nil
		}
		if message == "" {
			message = "gateway declined the request"
		}
		return &GatewayError{Message: message, StatusCode: status, Retryable: false}
	case status >= 400 && status < 500:
		if message == "" {
			message = fmt.Sprintf("gateway rejected the request (%d)", status)
		}
		return &GatewayError{Message: message, StatusCode: status, Retryable: false}
	default:
		if message == "" {
			message = fmt.Sprintf("gateway unavailable (%d)", status)
		}
		return &GatewayError{Message: message, StatusCode: status, Retryable: true}
	}
}
