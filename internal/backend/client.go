// Package backend is the typed client for the lab backend REST API.
//
// Every call goes through one circuit breaker. Transport failures and 5xx
// responses count against it and surface as UPSTREAM_ERROR (502); 4xx
// responses are the backend's decision and pass through with their status.
// While the breaker is open calls fail fast with SERVICE_UNAVAILABLE (503).
// Nothing is retried.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/genelab/lab-portal/pkg/actor"
	"github.com/genelab/lab-portal/pkg/breaker"
	"github.com/genelab/lab-portal/pkg/config"
	"github.com/genelab/lab-portal/pkg/errors"
	"github.com/genelab/lab-portal/pkg/httputil"
	"github.com/genelab/lab-portal/pkg/i18n"
	"github.com/genelab/lab-portal/pkg/logger"
	"github.com/genelab/lab-portal/pkg/metrics"
)

const serviceName = "lab backend"

// Client talks to the lab backend
type Client struct {
	baseURL string
	// JSON calls are bounded by the configured timeout; transfers only by the caller's context
	httpClient     *http.Client
	transferClient *http.Client
	breaker        *gobreaker.CircuitBreaker
	metrics        *metrics.Metrics
	log            *logger.Logger
}

// NewClient creates a client for the backend at cfg.URL
func NewClient(cfg config.BackendConfig, log *logger.Logger, m *metrics.Metrics) *Client {
	return &Client{
		baseURL:        strings.TrimRight(cfg.URL, "/"),
		httpClient:     &http.Client{Timeout: cfg.Timeout},
		transferClient: &http.Client{},
		breaker:        breaker.New("lab-backend", breaker.Settings{}, log, m),
		metrics:        m,
		log:            log.WithComponent("backend"),
	}
}

type apiError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *apiError       `json:"error"`
	Meta    *ListMeta       `json:"meta"`
}

// call describes one outbound request
type call struct {
	op          string // metrics label
	method      string
	path        string
	query       url.Values
	body        io.Reader
	contentType string
	resource    string // name used in not-found errors
	stream      bool
}

// send executes c through the breaker and returns a response with status < 400.
// The caller owns the response body.
func (c *Client) send(ctx context.Context, cl call) (*http.Response, error) {
	start := time.Now()
	out, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, cl.method, c.url(cl.path, cl.query), cl.body)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		c.setHeaders(ctx, req, cl.contentType)

		client := c.httpClient
		if cl.stream {
			client = c.transferClient
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", cl.method, cl.path, err)
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			defer resp.Body.Close()
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return nil, fmt.Errorf("%s %s returned %d: %s", cl.method, cl.path, resp.StatusCode, body)
		}
		return resp, nil
	})
	c.metrics.ObserveUpstream("backend", cl.op, time.Since(start), err)

	if err != nil {
		if breaker.IsOpen(err) {
			return nil, errors.ServiceUnavailable(serviceName)
		}
		c.log.Error().Err(err).Str("op", cl.op).Msg("backend request failed")
		return nil, errors.Upstream(serviceName, err)
	}

	resp := out.(*http.Response)
	if resp.StatusCode >= http.StatusBadRequest {
		defer resp.Body.Close()
		return nil, clientError(resp, cl.resource)
	}
	return resp, nil
}

func (c *Client) url(path string, query url.Values) string {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// setHeaders forwards the caller's identity, locale and request ID
func (c *Client) setHeaders(ctx context.Context, req *http.Request, contentType string) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", i18n.GetLocaleFromContext(ctx))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if requestID := httputil.GetRequestID(ctx); requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}
	actor.FromContext(ctx).Apply(req.Header)
}

// clientError turns a 4xx response into an AppError carrying the backend's status
func clientError(resp *http.Response, resource string) error {
	var env envelope
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&env)

	apiErr := env.Error
	if apiErr == nil {
		apiErr = &apiError{}
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return errors.NotFound(resource)
	case resp.StatusCode == http.StatusConflict:
		return errors.Conflict(nonEmpty(apiErr.Message, "conflict")).WithDetails(apiErr.Details)
	case len(apiErr.Details) > 0 && (resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity):
		return errors.Validation(apiErr.Details)
	}

	code := apiErr.Code
	if code == "" {
		code = strings.ToUpper(strings.ReplaceAll(http.StatusText(resp.StatusCode), " ", "_"))
	}
	return errors.New(code, nonEmpty(apiErr.Message, http.StatusText(resp.StatusCode)), resp.StatusCode).
		WithDetails(apiErr.Details)
}

func nonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// doJSON sends an optional JSON body and decodes the envelope's data into out
func (c *Client) doJSON(ctx context.Context, cl call, in, out interface{}) (*ListMeta, error) {
	if in != nil {
		body, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("marshal %s request: %w", cl.op, err)
		}
		cl.body = bytes.NewReader(body)
		cl.contentType = "application/json"
	}

	resp, err := c.send(ctx, cl)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, errors.Upstream(serviceName, fmt.Errorf("decode %s response: %w", cl.op, err))
	}
	if !env.Success {
		msg := "request was not successful"
		if env.Error != nil && env.Error.Message != "" {
			msg = env.Error.Message
		}
		return nil, errors.Upstream(serviceName, fmt.Errorf("%s: %s", cl.op, msg))
	}

	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return nil, errors.Upstream(serviceName, fmt.Errorf("decode %s data: %w", cl.op, err))
		}
	}
	return env.Meta, nil
}

// download streams a file body back to the caller
func (c *Client) download(ctx context.Context, op, path, resource string) (*Download, error) {
	resp, err := c.send(ctx, call{op: op, method: http.MethodGet, path: path, resource: resource, stream: true})
	if err != nil {
		return nil, err
	}

	d := &Download{
		Body:          resp.Body,
		ContentType:   resp.Header.Get("Content-Type"),
		ContentLength: resp.ContentLength,
	}
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil {
			d.FileName = params["filename"]
		}
	}
	if d.ContentType == "" {
		d.ContentType = "application/octet-stream"
	}
	return d, nil
}

// Health checks that the backend answers
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.send(ctx, call{op: "health", method: http.MethodGet, path: "/health", resource: "health"})
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func pageQuery(page, perPage int) url.Values {
	q := url.Values{}
	if page > 0 {
		q.Set("page", fmt.Sprint(page))
	}
	if perPage > 0 {
		q.Set("per_page", fmt.Sprint(perPage))
	}
	return q
}
