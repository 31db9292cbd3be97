package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"backend-gateway/internal/client"
	"backend-gateway/internal/config"
	"backend-gateway/internal/model"
	"backend-gateway/internal/service"
)

// errBackendUnavailable is the fixed error text of the synthesized 502 response.
const errBackendUnavailable = "Failed to connect to backend service"

// errInvalidPath is returned for paths that would leave the backend API prefix.
const errInvalidPath = "Invalid request path"

// ForwardedMethods are the methods accepted on the gateway route.
var ForwardedMethods = []string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPut,
	http.MethodDelete,
	http.MethodPatch,
}

// errorResponse is the body returned when the backend cannot be reached.
type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

// ProxyHandler relays gateway requests to the backend service.
type ProxyHandler struct {
	forwarder *service.Forwarder
	prefix    string
	logger    *slog.Logger
}

// NewProxyHandler creates a ProxyHandler.
func NewProxyHandler(f *service.Forwarder, cfg *config.Config, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{
		forwarder: f,
		prefix:    cfg.Gateway.Prefix,
		logger:    logger.With("component", "proxy_handler"),
	}
}

// Handle forwards the request to the backend and relays its status, headers
// and body. Backend failures become a 502 with a JSON error body.
func (h *ProxyHandler) Handle(c echo.Context) error {
	req := c.Request()

	segments := h.segments(req)
	if seg, ok := dotSegment(segments); ok {
		return c.JSON(http.StatusBadRequest, errorResponse{
			Error:   errInvalidPath,
			Details: fmt.Sprintf("path segment %q is not allowed", seg),
		})
	}

	fr := &model.ForwardRequest{
		Ctx:      req.Context(),
		Method:   req.Method,
		Segments: segments,
		RawQuery: req.URL.RawQuery,
		Header:   req.Header,
	}

	if service.CarriesBody(req.Method) {
		body, err := h.readBody(req)
		if err != nil {
			return err
		}
		fr.Body = body
	}

	resp, err := h.forwarder.Forward(fr)
	if err != nil {
		return h.mapError(c, err)
	}

	header := c.Response().Header()
	for key, vals := range resp.Header {
		header[key] = vals
	}
	c.Response().WriteHeader(resp.StatusCode)

	// The status is already on the wire; a failed write can only be logged.
	if _, err := c.Response().Write(resp.Body); err != nil {
		h.logger.Error("writing response body",
			"err", err,
			"path", req.URL.Path,
		)
	}

	return nil
}

// segments splits the still-escaped path after the gateway prefix.
func (h *ProxyHandler) segments(req *http.Request) []string {
	rest := strings.TrimPrefix(req.URL.EscapedPath(), h.prefix)
	rest = strings.TrimPrefix(rest, "/")
	return strings.Split(rest, "/")
}

// dotSegment reports the first segment that is "." or ".." once unescaped,
// including ones hidden behind an escaped slash such as "a%2F..".
func dotSegment(segments []string) (string, bool) {
	for _, seg := range segments {
		unescaped, err := url.PathUnescape(seg)
		if err != nil {
			unescaped = seg
		}
		for _, part := range strings.Split(strings.ReplaceAll(unescaped, `\`, "/"), "/") {
			if part == "." || part == ".." {
				return seg, true
			}
		}
	}
	return "", false
}

// readBody reads the inbound body. A failed read means no body, except when
// the body limit middleware rejects it, which is surfaced as its HTTP error.
func (h *ProxyHandler) readBody(req *http.Request) ([]byte, error) {
	if req.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(req.Body)
	if err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return nil, he
		}
		h.logger.Debug("request body unreadable; forwarding without body",
			"err", err,
			"path", req.URL.Path,
		)
		return nil, nil
	}
	return body, nil
}

func (h *ProxyHandler) mapError(c echo.Context, err error) error {
	h.logger.Error("proxy error",
		"err", err,
		"reason", client.FailureReason(err),
		"method", c.Request().Method,
		"path", c.Request().URL.Path,
	)

	return c.JSON(http.StatusBadGateway, errorResponse{
		Error:   errBackendUnavailable,
		Details: err.Error(),
	})
}
