package httpclient

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
)

// Client wraps resty for HTTP calls to external generation APIs.
type Client struct {
	r *resty.Client
}

// New creates a new HTTP client with sensible defaults. Transport-level
// retries stay off here; retry policy belongs to the worker, which
// classifies failures first.
func New() *Client {
	r := resty.New().
		SetTimeout(120 * time.Second)

	return &Client{r: r}
}

// WithTimeout sets a custom timeout.
func (c *Client) WithTimeout(d time.Duration) *Client {
	c.r.SetTimeout(d)
	return c
}

// WithBearerToken sets a bearer token for authentication.
func (c *Client) WithBearerToken(token string) *Client {
	c.r.SetAuthToken(token)
	return c
}

// WithHeader sets a custom header on every request.
func (c *Client) WithHeader(key, value string) *Client {
	c.r.SetHeader(key, value)
	return c
}

// Get sends a GET request and returns body and status code.
func (c *Client) Get(ctx context.Context, url string) ([]byte, int, error) {
	resp, err := c.r.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, 0, err
	}
	return resp.Body(), resp.StatusCode(), nil
}

// Post sends a POST request with a JSON body and returns body and status
// code.
func (c *Client) Post(ctx context.Context, url string, body interface{}) ([]byte, int, error) {
	req := c.r.R().SetContext(ctx).SetHeader("Content-Type", "application/json")
	if body != nil {
		req.SetBody(body)
	}
	resp, err := req.Post(url)
	if err != nil {
		return nil, 0, err
	}
	return resp.Body(), resp.StatusCode(), nil
}
