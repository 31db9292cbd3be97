// Package model defines shared types for the gateway.
package model

import (
	"context"
	"net/http"
	"strings"
)

// ForwardRequest represents an inbound call to be relayed to the backend.
type ForwardRequest struct {
	Ctx      context.Context
	Method   string
	Segments []string // path segments captured after the gateway prefix
	RawQuery string
	Header   http.Header
	Body     []byte // nil when the request carries no body
}

// ContentKind classifies a backend response body by its declared content type.
type ContentKind string

const (
	ContentHTML   ContentKind = "html"
	ContentJSON   ContentKind = "json"
	ContentBinary ContentKind = "binary"
)

// ClassifyContentType maps a Content-Type header value to a ContentKind.
func ClassifyContentType(contentType string) ContentKind {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "text/html"):
		return ContentHTML
	case strings.Contains(ct, "application/json"):
		return ContentJSON
	default:
		return ContentBinary
	}
}

// UpstreamResponse is a fully read backend response, ready to relay.
type UpstreamResponse struct {
	StatusCode int
	Status     string // e.g. "404 Not Found"
	Header     http.Header
	Body       []byte
	Kind       ContentKind
	// Encoded is set when Body is still compressed with the Content-Encoding
	// the backend declared, so the header has to travel with it.
	Encoded bool
}
