// Package fetch provides the HTTP client shared by all upstream checkers.
// It handles conditional requests (ETag / Last-Modified validators), maps
// response statuses onto the upstream outcome taxonomy, retries transient
// failures with backoff, and caps response sizes.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkgwatch/pkgwatch/pkg/upstream"
)

const (
	// UserAgent identifies pkgwatch to upstream servers.
	UserAgent = "Mozilla/5.0 (compatible; pkgwatch/1.0; +https://github.com/pkgwatch/pkgwatch)"

	httpTimeout = 30 * time.Second

	// maxBody caps any single response. Directory listings on big mirrors
	// can be large, but anything past this is not a listing we can use.
	maxBody = 50 << 20
)

// Response is a fetched document plus the validator to store for the next
// conditional request. Validator is the ETag when the server sent one,
// otherwise the Last-Modified value, otherwise empty.
type Response struct {
	Body        []byte
	Validator   string
	ContentType string
	Disposition string
}

// Client performs conditional GET requests with retry. The zero value is
// not usable; construct with NewClient. Safe for concurrent use once
// configured.
type Client struct {
	http       *http.Client
	headers    map[string]string
	token      string
	hostTokens map[string]string
}

// NewClient creates a Client with the given default headers applied to
// every request. Pass nil when no extra headers are needed.
func NewClient(headers map[string]string) *Client {
	return &Client{
		http:    &http.Client{Timeout: httpTimeout},
		headers: headers,
	}
}

// WithAuth sets bearer tokens attached as Authorization headers: token
// goes to every host, hosts overrides it per hostname. Either may be
// empty. Returns the client for chaining.
func (c *Client) WithAuth(token string, hosts map[string]string) *Client {
	c.token = token
	c.hostTokens = hosts
	return c
}

func (c *Client) tokenFor(host string) string {
	if tok, ok := c.hostTokens[host]; ok {
		return tok
	}
	return c.token
}

// Get fetches url, sending validator as If-None-Match (or If-Modified-Since
// for date-shaped validators). A 304 response surfaces as
// upstream.ErrNotModified. Transient failures are retried with backoff
// before being reported as upstream.ErrUnreachable.
func (c *Client) Get(ctx context.Context, url, validator string) (*Response, error) {
	return c.GetWithHeaders(ctx, url, validator, nil)
}

// GetWithHeaders is Get with additional per-request headers merged over the
// client defaults.
func (c *Client) GetWithHeaders(ctx context.Context, url, validator string, headers map[string]string) (*Response, error) {
	var resp *Response
	err := RetryWithBackoff(ctx, func() error {
		r, err := c.doRequest(ctx, url, validator, headers)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// GetJSON fetches url and decodes the response body into v. Decode
// failures are reported as upstream.ErrMalformed.
func (c *Client) GetJSON(ctx context.Context, url, validator string, v any) (string, error) {
	resp, err := c.Get(ctx, url, validator)
	if err != nil {
		return "", err
	}
	if err := json.Unmarshal(resp.Body, v); err != nil {
		return "", fmt.Errorf("%w: decode %s: %v", upstream.ErrMalformed, url, err)
	}
	return resp.Validator, nil
}

func (c *Client) doRequest(ctx context.Context, url, validator string, headers map[string]string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", upstream.ErrUnreachable, err)
	}
	req.Header.Set("User-Agent", UserAgent)
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if tok := c.tokenFor(req.URL.Hostname()); tok != "" && req.Header.Get("Authorization") == "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	if validator != "" {
		if isHTTPDate(validator) {
			req.Header.Set("If-Modified-Since", validator)
		} else {
			req.Header.Set("If-None-Match", validator)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &RetryableError{Err: fmt.Errorf("%w: %v", upstream.ErrUnreachable, err)}
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		io.Copy(io.Discard, resp.Body)
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody+1))
	if err != nil {
		return nil, &RetryableError{Err: fmt.Errorf("%w: read %s: %v", upstream.ErrUnreachable, url, err)}
	}
	if len(body) > maxBody {
		return nil, fmt.Errorf("%w: response too large: %s", upstream.ErrMalformed, url)
	}

	v := resp.Header.Get("ETag")
	if v == "" {
		v = resp.Header.Get("Last-Modified")
	}
	return &Response{
		Body:        body,
		Validator:   v,
		ContentType: resp.Header.Get("Content-Type"),
		Disposition: resp.Header.Get("Content-Disposition"),
	}, nil
}

func checkStatus(resp *http.Response) error {
	code := resp.StatusCode
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusNotModified:
		return upstream.ErrNotModified
	case code == http.StatusTooManyRequests:
		return &upstream.RateLimitedError{RetryAfter: retryAfter(resp)}
	case code == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0":
		// GitHub reports exhausted quota as 403.
		return &upstream.RateLimitedError{RetryAfter: rateLimitReset(resp)}
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", upstream.ErrAuthRequired, code)
	case code >= 500:
		return &RetryableError{Err: fmt.Errorf("%w: status %d", upstream.ErrUnreachable, code)}
	default:
		return fmt.Errorf("%w: status %d", upstream.ErrUnreachable, code)
	}
}

// retryAfter parses a Retry-After header, which is either delay seconds or
// an HTTP date.
func retryAfter(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

func rateLimitReset(resp *http.Response) time.Duration {
	v := resp.Header.Get("X-RateLimit-Reset")
	if v == "" {
		return 0
	}
	if epoch, err := strconv.ParseInt(v, 10, 64); err == nil {
		if d := time.Until(time.Unix(epoch, 0)); d > 0 {
			return d
		}
	}
	return 0
}

// isHTTPDate distinguishes a Last-Modified style validator from an ETag.
func isHTTPDate(v string) bool {
	_, err := http.ParseTime(v)
	return err == nil
}

// LooksLikeHTML is a cheap sniff used by checkers that refuse to parse
// binary downloads served where a listing page was expected.
func LooksLikeHTML(contentType string) bool {
	switch {
	case contentType == "":
		return true
	case strings.HasPrefix(contentType, "text/"):
		return true
	case strings.HasPrefix(contentType, "application/xhtml"):
		return true
	default:
		return false
	}
}
