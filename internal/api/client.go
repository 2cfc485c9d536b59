// Package api is the HTTP client for the remote collection store. Status
// codes are mapped to domain error kinds here and nowhere else.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tidwall/gjson"

	apperrors "github.com/alexjbarnes/sealbox/internal/errors"
	"github.com/alexjbarnes/sealbox/internal/models"
)

// TransientError marks a failure that is likely temporary. Nothing in
// the client retries; the flag only shapes the message shown to users.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err (or any error in its chain) is a
// TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

const (
	// maxRedirects is the maximum number of HTTP redirects to follow
	// before giving up, matching the default net/http limit.
	maxRedirects = 10

	// DefaultTimeout applies when no custom http.Client is provided.
	DefaultTimeout = 30 * time.Second

	// maxAPIResponseBytes caps metadata response reads.
	maxAPIResponseBytes = 1024 * 1024

	// maxContentResponseBytes caps content downloads. Encrypted content
	// is at most 10 MiB, which is 20 MiB once hex encoded.
	maxContentResponseBytes = 64 * 1024 * 1024
)

// Client talks to the collection store REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// sameHostRedirectPolicy follows redirects only when the target host
// matches the original request host so the bearer token never leaks to
// a third-party domain.
func sameHostRedirectPolicy(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return errors.New("stopped after 10 redirects")
	}

	if len(via) > 0 {
		origHost := via[0].URL.Host
		if req.URL.Host != origHost {
			return fmt.Errorf("redirect to different host blocked: %s -> %s", origHost, req.URL.Host)
		}
	}

	return nil
}

// NewHTTPClient returns an http.Client with the given timeout and the
// same-host redirect policy. A non-positive timeout means DefaultTimeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &http.Client{
		Timeout:       timeout,
		CheckRedirect: sameHostRedirectPolicy,
	}
}

// NewClient creates an API client for baseURL authenticating with token.
// If httpClient is nil, NewHTTPClient(DefaultTimeout) is used.
func NewClient(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = NewHTTPClient(DefaultTimeout)
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
	}
}

// sanitizeResponseBody truncates and sanitizes a response body for
// inclusion in error messages. Limits to 256 bytes and replaces
// non-printable characters to prevent log injection.
func sanitizeResponseBody(body []byte) string {
	const maxLen = 256
	if len(body) > maxLen {
		body = body[:maxLen]
	}

	var clean []byte

	for len(body) > 0 {
		r, size := utf8.DecodeRune(body)
		if r == utf8.RuneError && size <= 1 {
			clean = append(clean, '?')
			body = body[1:]

			continue
		}

		if r < 0x20 && r != '\n' && r != '\r' && r != '\t' {
			clean = append(clean, '?')
		} else {
			clean = append(clean, body[:size]...)
		}

		body = body[size:]
	}

	return string(clean)
}

// response is a raw HTTP result with its body already read.
type response struct {
	status int
	body   []byte
}

func (r response) ok() bool {
	return r.status >= 200 && r.status < 300
}

// do sends one request. Transport failures are returned as APIRequest
// errors; any HTTP status is returned to the caller for mapping.
func (c *Client) do(ctx context.Context, op, method, endpoint string, body any, limit int64) (response, error) {
	var reader io.Reader

	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return response{}, fmt.Errorf("marshalling request body: %w", err)
		}

		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return response{}, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return response{}, apperrors.Wrap(apperrors.APIRequest, op, &TransientError{Err: err})
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return response{}, apperrors.Wrap(apperrors.APIRequest, op, fmt.Errorf("reading response: %w", err))
	}

	return response{status: resp.StatusCode, body: respBody}, nil
}

// statusRule maps an HTTP status, optionally qualified by the body's
// "reason" field, to a domain error kind.
type statusRule struct {
	status int
	reason string
	kind   apperrors.Kind
}

// fileNotFound collapses 400, 403 and 404 for file endpoints.
var fileNotFound = []statusRule{
	{status: http.StatusBadRequest, kind: apperrors.FileNotFound},
	{status: http.StatusForbidden, kind: apperrors.FileNotFound},
	{status: http.StatusNotFound, kind: apperrors.FileNotFound},
}

// check converts a non-2xx response into a domain error.
func check(op string, resp response, rules ...statusRule) error {
	if resp.ok() {
		return nil
	}

	reason := gjson.GetBytes(resp.body, "reason").String()

	for _, r := range rules {
		if r.status == resp.status && (r.reason == "" || r.reason == reason) {
			return apperrors.Newf(r.kind, op, "status %d", resp.status)
		}
	}

	cause := fmt.Errorf("status %d: %s", resp.status, sanitizeResponseBody(resp.body))
	if isTransientStatus(resp.status) {
		return apperrors.Wrap(apperrors.APIResponse, op, &TransientError{Err: cause})
	}

	return apperrors.Wrap(apperrors.APIResponse, op, cause)
}

// isTransientStatus returns true for HTTP status codes that indicate a
// temporary server-side problem.
func isTransientStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}

	return false
}

func decode(op string, data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return apperrors.Wrap(apperrors.APIResponse, op, fmt.Errorf("decoding response: %w", err))
	}

	return nil
}

func decodeUnit(op string, data []byte) (models.Unit, error) {
	u, err := models.DecodeUnit(data)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.APIResponse, op, err)
	}

	return u, nil
}

func collectionPath(collectionID string) string {
	return "/collections/" + url.PathEscape(collectionID)
}

// filesPath builds /collections/{id}/files[/{objID}][/{suffix}]. An empty
// objectID addresses the collection root.
func filesPath(collectionID, objectID, suffix string) string {
	p := collectionPath(collectionID) + "/files"
	if objectID != "" {
		p += "/" + url.PathEscape(objectID)
	}

	if suffix != "" {
		p += "/" + suffix
	}

	return p
}
