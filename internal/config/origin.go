package config

import (
	"os"
	"strings"
)

// Environment variables consulted for the backend origin, in priority order.
const (
	EnvBackendAPIURL    = "BACKEND_API_URL"
	EnvNextPublicAPIURL = "NEXT_PUBLIC_API_URL"
)

// DefaultBackendOrigin is used when neither the config nor the environment names a backend.
const DefaultBackendOrigin = "http://localhost:5010"

// OriginSource records where a resolved backend origin came from.
type OriginSource string

const (
	SourceConfig           OriginSource = "config"
	SourceBackendAPIURL    OriginSource = EnvBackendAPIURL
	SourceNextPublicAPIURL OriginSource = EnvNextPublicAPIURL
	SourceDefault          OriginSource = "default"
)

// ResolveOrigin picks the backend origin: configured value, then
// BACKEND_API_URL, then NEXT_PUBLIC_API_URL, then DefaultBackendOrigin.
// Trailing slashes are trimmed so paths can be appended directly.
func ResolveOrigin(configured string, getenv func(string) string) (string, OriginSource) {
	if configured != "" {
		return strings.TrimRight(configured, "/"), SourceConfig
	}
	if v := getenv(EnvBackendAPIURL); v != "" {
		return strings.TrimRight(v, "/"), SourceBackendAPIURL
	}
	if v := getenv(EnvNextPublicAPIURL); v != "" {
		return strings.TrimRight(v, "/"), SourceNextPublicAPIURL
	}
	return DefaultBackendOrigin, SourceDefault
}

// Origin resolves the backend origin against the live process environment.
// It is called per request, so environment changes take effect without a restart.
func (u *UpstreamConfig) Origin() (string, OriginSource) {
	return ResolveOrigin(u.BaseURL, os.Getenv)
}
