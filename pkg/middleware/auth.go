package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/checkmarble/marble-frontend-sub003/pkg/pipeline"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// ErrUnauthenticated is returned by providers when a request carries no
// valid credentials.
var ErrUnauthenticated = errors.New("unauthenticated")

// AuthProvider defines an interface for authentication providers.
// Different authentication mechanisms implement it to be used with the
// Authentication middleware.
type AuthProvider interface {
	// Authenticate examines the request for credentials and returns the
	// authenticated user, or an error if the request is not authenticated.
	Authenticate(r *http.Request) (any, error)
}

// BasicAuthProvider provides HTTP Basic Authentication.
// It validates username and password credentials against a predefined map.
type BasicAuthProvider struct {
	Credentials map[string]string // username -> password
}

// Authenticate authenticates a request using HTTP Basic Authentication.
// The user is the username.
func (p *BasicAuthProvider) Authenticate(r *http.Request) (any, error) {
	username, password, ok := r.BasicAuth()
	if !ok {
		return nil, ErrUnauthenticated
	}

	expectedPassword, exists := p.Credentials[username]
	if !exists || password != expectedPassword {
		return nil, ErrUnauthenticated
	}
	return username, nil
}

// BearerTokenProvider provides Bearer Token Authentication.
// It maps valid tokens to their user.
type BearerTokenProvider struct {
	ValidTokens map[string]any // token -> user
}

// Authenticate authenticates a request using Bearer Token Authentication.
func (p *BearerTokenProvider) Authenticate(r *http.Request) (any, error) {
	token, ok := bearerToken(r)
	if !ok {
		return nil, ErrUnauthenticated
	}
	user, ok := p.ValidTokens[token]
	if !ok {
		return nil, ErrUnauthenticated
	}
	return user, nil
}

// APIKeyProvider provides API Key Authentication.
// It can validate API keys provided in a header or query parameter.
type APIKeyProvider struct {
	ValidKeys map[string]any // key -> user
	Header    string         // header name (e.g., "X-API-Key")
	Query     string         // query parameter name (e.g., "api_key")
}

// Authenticate checks for the API key in the header first, then in the
// query parameter.
func (p *APIKeyProvider) Authenticate(r *http.Request) (any, error) {
	if p.Header != "" {
		if user, ok := p.ValidKeys[r.Header.Get(p.Header)]; ok {
			return user, nil
		}
	}
	if p.Query != "" {
		if user, ok := p.ValidKeys[r.URL.Query().Get(p.Query)]; ok {
			return user, nil
		}
	}
	return nil, ErrUnauthenticated
}

// JWTProvider authenticates HMAC-signed JSON Web Tokens sent as a bearer
// token or in a cookie. The user is the token's *jwt.RegisteredClaims.
type JWTProvider struct {
	Secret []byte
	Issuer string // checked when not empty
	Cookie string // cookie name read when no Authorization header is present
}

// Authenticate parses and validates the token.
func (p *JWTProvider) Authenticate(r *http.Request) (any, error) {
	raw, ok := bearerToken(r)
	if !ok && p.Cookie != "" {
		if c, err := r.Cookie(p.Cookie); err == nil && c.Value != "" {
			raw, ok = c.Value, true
		}
	}
	if !ok {
		return nil, ErrUnauthenticated
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if p.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(p.Issuer))
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return p.Secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}
	return claims, nil
}

// SignJWT signs claims as an HS256 token. It is the counterpart of
// JWTProvider, used by login handlers and tests.
func SignJWT(secret []byte, claims jwt.RegisteredClaims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// AuthConfig configures the Authentication middleware.
type AuthConfig struct {
	Provider AuthProvider

	// RedirectTo, when set, sends unauthenticated callers to this location
	// with a 302 instead of answering 401.
	RedirectTo string

	// Optional lets unauthenticated requests through without a user.
	Optional bool

	Logger *zap.Logger
}

// Authentication returns a middleware that authenticates the request with
// the configured provider and publishes the user under UserKey. Failed
// authentication short-circuits the pipeline unless Optional is set.
func Authentication(config AuthConfig) *pipeline.Definition {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return pipeline.CreateMiddleware(nil, func(inv *pipeline.Invocation, next pipeline.NextFunc, exit pipeline.ExitFunc) (*pipeline.Result, error) {
		r := inv.Request
		user, err := config.Provider.Authenticate(r)
		if err == nil {
			logger.Debug("Authentication successful",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
			)
			return next(pipeline.WithContext(pipeline.Context{UserKey: user}))
		}

		if config.Optional {
			return next()
		}

		logger.Warn("Authentication failed",
			zap.Error(err),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote_addr", r.RemoteAddr),
		)
		if config.RedirectTo != "" {
			return exit(pipeline.Redirect(config.RedirectTo, http.StatusFound))
		}
		return exit(pipeline.Text(http.StatusUnauthorized, "Unauthorized"))
	}, pipeline.WithName("authentication"))
}

// GetUser returns the user published by Authentication as T.
func GetUser[T any](c pipeline.Context) (T, bool) {
	return pipeline.Value[T](c, UserKey)
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok || token == "" {
		return "", false
	}
	return token, true
}
