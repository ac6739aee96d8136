// Package api is the client for the portfolio backend REST API. Every call
// is made on behalf of the signed-in user, whose provider access token is
// forwarded as the bearer token.
package api

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"xfoli-web/internal/logger"
	"xfoli-web/internal/telemetry"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"golang.org/x/sync/singleflight"
)

type Client struct {
	baseURL string
	http    *http.Client
	flights singleflight.Group
}

type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTimeout bounds every call. AI analysis can take tens of seconds.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type accessTokenKey struct{}

// WithAccessToken attaches the bearer token used for calls made with ctx.
func WithAccessToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, accessTokenKey{}, token)
}

// AccessTokenFrom returns the bearer token attached to ctx, or "".
func AccessTokenFrom(ctx context.Context) string {
	tok, _ := ctx.Value(accessTokenKey{}).(string)
	return tok
}

// do runs one request. Identical concurrent requests from the same caller
// share a single backend call; nothing is kept once it returns. The shared
// call is detached from any one caller's cancellation and bounded by the HTTP
// client timeout instead. Each caller still stops waiting when its own ctx ends.
func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("api: encode request: %w", err)
		}
		payload = b
	}

	token := AccessTokenFrom(ctx)
	key := flightKey(method, path, payload, token)

	ch := c.flights.DoChan(key, func() (any, error) {
		return c.execute(context.WithoutCancel(ctx), method, path, payload, token)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return ctx.Err()
	}
	if res.Shared {
		logger.Debug("api request deduplicated", map[string]any{
			"method": method,
			"path":   path,
		})
	}
	if res.Err != nil {
		return res.Err
	}

	raw, _ := res.Val.([]byte)
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("api: decode %s %s: %w", method, path, err)
	}
	return nil
}

// flightKey identifies a request as METHOD:path:body, scoped to the caller's
// token so two users never share a response.
func flightKey(method, path string, payload []byte, token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:8]) + "|" + method + ":" + path + ":" + string(payload)
}

func (c *Client) execute(ctx context.Context, method, path string, payload []byte, token string) ([]byte, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "api "+method)
	defer span.End()
	span.SetAttributes(attribute.String("http.route", path))

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("api: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport")
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return nil, fmt.Errorf("api: %s %s: %w", method, path, context.DeadlineExceeded)
		}
		logger.Error("backend request failed", map[string]any{
			"method": method,
			"path":   path,
			"error":  err.Error(),
		})
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("api: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		span.SetStatus(codes.Error, resp.Status)
		return nil, &APIError{Status: resp.StatusCode, Detail: errorDetail(resp, raw)}
	}

	if resp.StatusCode == http.StatusNoContent || !isJSON(resp) {
		return nil, nil
	}
	return raw, nil
}

// errorDetail reads FastAPI's {"detail": "..."} body. Validation errors carry
// a list instead of a string and fall back to the status line.
func errorDetail(resp *http.Response, raw []byte) string {
	if isJSON(resp) {
		var body struct {
			Detail any `json:"detail"`
		}
		if err := json.Unmarshal(raw, &body); err == nil {
			if s, ok := body.Detail.(string); ok && s != "" {
				return s
			}
		}
	}
	return fmt.Sprintf("HTTP error %d", resp.StatusCode)
}

func isJSON(resp *http.Response) bool {
	return strings.Contains(resp.Header.Get("Content-Type"), "application/json")
}
