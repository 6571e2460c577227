// Package extraction adapts the AI document-extraction service to ports.Extractor.
package extraction

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"carecheck/internal/verification/models"
	"carecheck/internal/verification/ports"
	"carecheck/pkg/platform/circuit"
)

const maxResponseBytes = 1 << 20

// Client calls the extraction service over HTTP. A circuit breaker short-circuits
// calls while the service is failing, so phases fail fast instead of waiting out
// their whole budget.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *circuit.Breaker
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures the Client.
type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(cl *Client) { cl.breaker = b }
}

func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		breaker:    circuit.New("extraction"),
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type wireDocument struct {
	Key         string `json:"key"`
	ContentType string `json:"content_type"`
	Data        string `json:"data"`
}

type wireRequest struct {
	Kind      string            `json:"kind"`
	Documents []wireDocument    `json:"documents"`
	Declared  map[string]string `json:"declared,omitempty"`
}

type wireResponse struct {
	Fields map[string]string `json:"fields"`
	Pass   *bool             `json:"pass"`
	Issues []string          `json:"issues"`
}

// Extract implements ports.Extractor.
func (c *Client) Extract(ctx context.Context, req ports.ExtractionRequest) (*ports.ExtractionResult, error) {
	if !c.breaker.Allow(c.now()) {
		return nil, newError(ErrorCircuitOpen, "extraction service unavailable", nil)
	}

	result, err := c.call(ctx, req)
	if err != nil {
		if countsAsFailure(CategoryOf(err)) {
			if _, change := c.breaker.RecordFailure(); change.Opened {
				c.logger.WarnContext(ctx, "extraction circuit opened", "error", err)
			}
		}
		return nil, err
	}
	if _, change := c.breaker.RecordSuccess(); change.Closed {
		c.logger.InfoContext(ctx, "extraction circuit closed")
	}
	return result, nil
}

func (c *Client) call(ctx context.Context, req ports.ExtractionRequest) (*ports.ExtractionResult, error) {
	body := wireRequest{Kind: string(req.Kind), Declared: req.Declared}
	for _, doc := range req.Documents {
		body.Documents = append(body.Documents, wireDocument{
			Key:         doc.Ref.Key,
			ContentType: doc.ContentType,
			Data:        base64.StdEncoding.EncodeToString(doc.Body),
		})
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, newError(ErrorInternal, "encode request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/extract", bytes.NewReader(payload))
	if err != nil {
		return nil, newError(ErrorInternal, "build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(httpReq.Header))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, newError(ErrorTimeout, "extraction timed out", err)
		}
		return nil, newError(ErrorOutage, "extraction request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, newError(ErrorOutage, "read response", err)
	}
	if category, failed := categoriseStatus(resp.StatusCode); failed {
		return nil, newError(category, fmt.Sprintf("extraction service returned %d", resp.StatusCode), nil)
	}

	var out wireResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, newError(ErrorContractMismatch, "decode response", err)
	}
	if out.Pass == nil {
		return nil, newError(ErrorContractMismatch, "response missing pass flag", nil)
	}
	return &ports.ExtractionResult{
		Fields: models.ExtractedFields(out.Fields),
		Pass:   *out.Pass,
		Issues: out.Issues,
	}, nil
}

func categoriseStatus(code int) (ErrorCategory, bool) {
	switch {
	case code >= 200 && code < 300:
		return "", false
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return ErrorTimeout, true
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return ErrorAuthentication, true
	case code == http.StatusTooManyRequests:
		return ErrorRateLimited, true
	case code == http.StatusBadRequest || code == http.StatusUnprocessableEntity || code == http.StatusRequestEntityTooLarge:
		return ErrorBadData, true
	case code >= 500:
		return ErrorOutage, true
	default:
		return ErrorContractMismatch, true
	}
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
