// Package client provides the outbound HTTP client for the backend service.
package client

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"backend-gateway/internal/config"
	"backend-gateway/internal/metrics"
	"backend-gateway/internal/model"
)

// BackendClient sends requests to the backend service.
type BackendClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewBackendClient creates a BackendClient with connection pooling.
// Redirects are never followed: a 3xx from the backend is handed back as is.
// A zero upstream.timeout_seconds leaves the client without a timeout.
// The metrics parameter is optional; pass nil to disable upstream metrics recording.
func NewBackendClient(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *BackendClient {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cfg.Upstream.IdleConnections,
		MaxIdleConnsPerHost: cfg.Upstream.IdleConnections,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	return &BackendClient{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   time.Duration(cfg.Upstream.TimeoutSeconds) * time.Second,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger:  logger.With("component", "backend_client"),
		metrics: m,
	}
}

// Do executes an HTTP request against the backend and reads the whole body.
func (c *BackendClient) Do(req *http.Request) (*model.UpstreamResponse, error) {
	method := metrics.NormalizeMethod(req.Method)
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observeFailure(method, start, err)
		return nil, fmt.Errorf("backend request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.observeFailure(method, start, err)
		return nil, fmt.Errorf("read backend response: %w", err)
	}

	encoded := false
	if ce := resp.Header.Get("Content-Encoding"); ce != "" && !resp.Uncompressed {
		body, encoded, err = decodeBody(ce, body)
		if err != nil {
			c.observeFailure(method, start, err)
			return nil, fmt.Errorf("decode backend response: %w", err)
		}
		if !encoded {
			resp.Header.Del("Content-Encoding")
			resp.Header.Del("Content-Length")
		}
	}

	kind := model.ClassifyContentType(resp.Header.Get("Content-Type"))
	if c.metrics != nil {
		c.metrics.UpstreamDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
		c.metrics.UpstreamResponses.WithLabelValues(method, strconv.Itoa(resp.StatusCode), string(kind)).Inc()
	}

	return &model.UpstreamResponse{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header,
		Body:       body,
		Kind:       kind,
		Encoded:    encoded,
	}, nil
}

// decodeBody undoes a gzip or deflate Content-Encoding the transport left in
// place. Any other encoding is returned untouched with encoded set.
func decodeBody(contentEncoding string, body []byte) (decoded []byte, encoded bool, err error) {
	switch strings.ToLower(strings.TrimSpace(contentEncoding)) {
	case "identity":
		return body, false, nil
	case "gzip", "x-gzip":
		decoded, err = inflate(body, func(r io.Reader) (io.ReadCloser, error) { return gzip.NewReader(r) })
	case "deflate":
		// HTTP deflate is zlib-wrapped, but some servers send raw deflate.
		decoded, err = inflate(body, zlib.NewReader)
		if err != nil {
			decoded, err = inflate(body, func(r io.Reader) (io.ReadCloser, error) { return flate.NewReader(r), nil })
		}
	default:
		return body, true, nil
	}
	if err != nil {
		return nil, false, err
	}
	return decoded, false, nil
}

func inflate(body []byte, open func(io.Reader) (io.ReadCloser, error)) ([]byte, error) {
	r, err := open(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()
	return io.ReadAll(r)
}
