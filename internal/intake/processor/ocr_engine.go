package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/genelab/lab-portal/internal/intake/domain"
	"github.com/genelab/lab-portal/pkg/breaker"
	"github.com/genelab/lab-portal/pkg/config"
	"github.com/genelab/lab-portal/pkg/errors"
	"github.com/genelab/lab-portal/pkg/logger"
	"github.com/genelab/lab-portal/pkg/metrics"
)

const serviceName = "OCR engine"

// OCREngineProcessor sends scanned requisitions to the remote OCR engine.
// Calls are rate limited and guarded by a circuit breaker.
type OCREngineProcessor struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	metrics    *metrics.Metrics
}

// NewOCREngineProcessor creates a processor that calls the OCR engine at cfg.URL
func NewOCREngineProcessor(cfg config.OCRConfig, log *logger.Logger, m *metrics.Metrics) *OCREngineProcessor {
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	return &OCREngineProcessor{
		baseURL: cfg.URL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter: rate.NewLimiter(limit, burst),
		breaker: breaker.New("ocr-engine", breaker.Settings{
			MaxRequests: 2,
			Timeout:     2 * time.Minute,
		}, log, m),
		metrics: m,
	}
}

func (p *OCREngineProcessor) Name() string { return "ocr_engine" }

func (p *OCREngineProcessor) CanProcess(kind domain.ContentKind) bool {
	return kind == domain.KindImage || kind == domain.KindPDF
}

func (p *OCREngineProcessor) Process(ctx context.Context, data []byte, fileName string) (*domain.OCRResult, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("ocr: rate limit wait: %w", err)
	}

	start := time.Now()
	out, err := p.breaker.Execute(func() (interface{}, error) {
		return p.call(ctx, data, fileName)
	})
	p.metrics.ObserveUpstream("ocr", "extract", time.Since(start), err)

	if err != nil {
		if breaker.IsOpen(err) {
			return nil, errors.ServiceUnavailable(serviceName)
		}
		return nil, errors.Upstream(serviceName, err)
	}
	return out.(*domain.OCRResult), nil
}

func (p *OCREngineProcessor) call(ctx context.Context, data []byte, fileName string) (*domain.OCRResult, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("write document data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/v1/ocr", body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("engine returned %d: %s", resp.StatusCode, truncate(respBody, 200))
	}

	var result domain.OCRResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return &result, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
