// Package service implements the core request forwarding logic.
package service

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"backend-gateway/internal/client"
	"backend-gateway/internal/config"
	"backend-gateway/internal/model"
)

// excludedRequestHeaders are never forwarded to the backend. Keys are lower-case.
var excludedRequestHeaders = map[string]bool{
	"host":              true,
	"connection":        true,
	"x-forwarded-host":  true,
	"x-forwarded-proto": true,
	// The transport negotiates gzip itself; the client decodes what it can
	// so that Content-Encoding can be dropped below.
	"accept-encoding": true,
}

// excludedResponseHeaders are never relayed to the caller. Keys are lower-case.
var excludedResponseHeaders = map[string]bool{
	"connection":        true,
	"keep-alive":        true,
	"transfer-encoding": true,
	"content-encoding":  true,
}

// docRewrites maps gateway-relative paths of the backend's API docs onto
// their real location under the backend API prefix.
var docRewrites = map[string]string{
	"docs":                 "docs/",
	"scalar.js":            "docs/scalar.js",
	"scalar.aspnetcore.js": "docs/scalar.aspnetcore.js",
}

// Forwarder relays gateway requests to the single configured backend.
type Forwarder struct {
	client *client.BackendClient
	cfg    *config.Config
	logger *slog.Logger
}

// NewForwarder creates a Forwarder.
func NewForwarder(c *client.BackendClient, cfg *config.Config, logger *slog.Logger) *Forwarder {
	return &Forwarder{
		client: c,
		cfg:    cfg,
		logger: logger.With("component", "forwarder"),
	}
}

// CarriesBody reports whether a request with the given method has its body
// forwarded. GET and DELETE never do.
func CarriesBody(method string) bool {
	return method != http.MethodGet && method != http.MethodDelete
}

// Forward sends a ForwardRequest to the backend and returns the fully read response.
// The backend origin is resolved on every call. Non-2xx statuses are not errors.
func (f *Forwarder) Forward(fr *model.ForwardRequest) (*model.UpstreamResponse, error) {
	origin, _ := f.cfg.Upstream.Origin()
	upstreamURL := f.buildUpstreamURL(origin, fr.Segments, fr.RawQuery)
	header := filterRequestHeaders(fr.Header)

	var body []byte
	if CarriesBody(fr.Method) {
		body = fr.Body
	}

	f.logger.Debug("forwarding request",
		"method", fr.Method,
		"url", upstreamURL,
	)

	resp, err := f.client.Send(fr.Ctx, fr.Method, upstreamURL, header, body)
	if err != nil {
		return nil, fmt.Errorf("forward to backend: %w", err)
	}

	f.logger.Info("backend response",
		"method", fr.Method,
		"url", upstreamURL,
		"status", resp.StatusCode,
		"content_type", resp.Header.Get("Content-Type"),
	)

	resp.Header = filterResponseHeaders(resp.Header, resp.Encoded)
	return resp, nil
}

// buildUpstreamURL maps the captured segments onto <origin><api-prefix>/<rest>
// and appends the raw query string unchanged.
func (f *Forwarder) buildUpstreamURL(origin string, segments []string, rawQuery string) string {
	rest := strings.Join(segments, "/")
	if f.cfg.Gateway.DocRewrites {
		if target, ok := docRewrites[rest]; ok {
			rest = target
		}
	}

	apiPrefix := f.cfg.Gateway.APIPrefix
	if apiPrefix == "" {
		apiPrefix = config.DefaultPrefix
	}

	u := origin + apiPrefix + "/" + rest
	if rawQuery != "" {
		u += "?" + rawQuery
	}
	return u
}

func filterRequestHeaders(src http.Header) http.Header {
	dst := make(http.Header, len(src))
	for key, vals := range src {
		if excludedRequestHeaders[strings.ToLower(key)] {
			continue
		}
		dst[key] = append([]string(nil), vals...)
	}
	return dst
}

// filterResponseHeaders drops the excluded response headers. Content-Encoding
// is kept only while the body is still encoded.
func filterResponseHeaders(src http.Header, encoded bool) http.Header {
	dst := make(http.Header, len(src))
	for key, vals := range src {
		lower := strings.ToLower(key)
		if excludedResponseHeaders[lower] && !(encoded && lower == "content-encoding") {
			continue
		}
		dst[key] = vals
	}
	return dst
}
