package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/checkmarble/marble-frontend-sub003/pkg/pipeline"
)

// IPSourceType defines the source for client IP addresses
type IPSourceType string

const (
	// IPSourceRemoteAddr uses the request's RemoteAddr field
	IPSourceRemoteAddr IPSourceType = "remote_addr"

	// IPSourceXForwardedFor uses the X-Forwarded-For header
	IPSourceXForwardedFor IPSourceType = "x_forwarded_for"

	// IPSourceXRealIP uses the X-Real-IP header
	IPSourceXRealIP IPSourceType = "x_real_ip"

	// IPSourceCustomHeader uses a custom header specified in the configuration
	IPSourceCustomHeader IPSourceType = "custom_header"
)

// IPConfig defines configuration for IP extraction
type IPConfig struct {
	// Source specifies where to extract the client IP from
	Source IPSourceType

	// CustomHeader is the name of the custom header to use when Source is IPSourceCustomHeader
	CustomHeader string

	// TrustProxy determines whether to trust proxy headers like X-Forwarded-For
	// If false, RemoteAddr will be used as a fallback for all sources
	TrustProxy bool
}

// DefaultIPConfig returns the default IP configuration
func DefaultIPConfig() *IPConfig {
	return &IPConfig{
		Source:     IPSourceXForwardedFor,
		TrustProxy: true,
	}
}

// ClientIP returns a middleware publishing the client IP under ClientIPKey.
func ClientIP(config *IPConfig) *pipeline.Definition {
	if config == nil {
		config = DefaultIPConfig()
	}

	return pipeline.CreateMiddleware(nil, func(inv *pipeline.Invocation, next pipeline.NextFunc, exit pipeline.ExitFunc) (*pipeline.Result, error) {
		return next(pipeline.WithContext(pipeline.Context{
			ClientIPKey: extractClientIP(inv.Request, config),
		}))
	}, pipeline.WithName("client_ip"))
}

// GetClientIP returns the client IP published by ClientIP, or "".
func GetClientIP(c pipeline.Context) string {
	ip, _ := pipeline.Value[string](c, ClientIPKey)
	return ip
}

// extractClientIP extracts the client IP from the request based on the configuration
func extractClientIP(r *http.Request, config *IPConfig) string {
	var ip string

	switch config.Source {
	case IPSourceXForwardedFor:
		ip = extractIPFromXForwardedFor(r)
	case IPSourceXRealIP:
		ip = r.Header.Get("X-Real-IP")
	case IPSourceCustomHeader:
		ip = r.Header.Get(config.CustomHeader)
	case IPSourceRemoteAddr:
		ip = r.RemoteAddr
	default:
		ip = extractIPFromXForwardedFor(r)
	}

	// If we don't trust proxy headers or couldn't extract an IP, fall back to RemoteAddr
	if !config.TrustProxy || ip == "" {
		ip = r.RemoteAddr
	}

	return cleanIP(ip)
}

// extractIPFromXForwardedFor returns the leftmost (original client) entry
// of the X-Forwarded-For header.
func extractIPFromXForwardedFor(r *http.Request) string {
	xff := r.Header.Get("X-Forwarded-For")
	if xff == "" {
		return ""
	}
	first, _, _ := strings.Cut(xff, ",")
	return strings.TrimSpace(first)
}

// cleanIP removes the port from an address if present
func cleanIP(ip string) string {
	if host, _, err := net.SplitHostPort(ip); err == nil {
		return host
	}
	return strings.Trim(ip, "[]")
}
