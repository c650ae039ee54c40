// Package bearerauth is the per-request authentication stage. It extracts a
// bearer token, verifies it, and hands verified claims to the configured
// resolver so a principal can be attached to the request. Extraction or
// verification failures never abort the request here: the request simply
// continues anonymous, and the authorization stage decides later, uniformly
// for missing and bad credentials.
package bearerauth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-router"
)

var (
	defaultTokenLookup = "header:" + router.HeaderAuthorization

	// ErrTokenMissing means no bearer token was present in the request.
	ErrTokenMissing = errors.New("missing or malformed bearer token")
)

// TokenValidator mirrors the root package's validator contract without an
// import cycle.
type TokenValidator interface {
	Validate(tokenString string) (AuthClaims, error)
}

// AuthClaims mirrors the root package's claims contract without an import
// cycle.
type AuthClaims interface {
	Subject() string
	UserID() string
	Username() string
	Roles() []string
	HasRole(role string) bool
}

// Config configures the authentication stage.
type Config struct {
	// Filter skips the stage entirely when it returns true.
	Filter func(router.Context) bool

	// TokenValidator is required; it verifies raw tokens.
	TokenValidator TokenValidator

	// OnAuthenticated runs after successful verification. It is where the
	// caller resolves the token subject against the credential store and
	// attaches the principal. Returning an error downgrades the request to
	// anonymous, it does not abort it; this covers accounts deleted after
	// the token was issued.
	OnAuthenticated func(ctx router.Context, claims AuthClaims) error

	// OnAnonymous, optional, observes why a request stayed anonymous.
	OnAnonymous func(ctx router.Context, reason error)

	// ContextEnricher propagates claims into the standard context after a
	// successful OnAuthenticated.
	ContextEnricher func(c context.Context, claims AuthClaims) context.Context

	// ContextKey is the router locals key for verified claims. It is only
	// written when no OnAuthenticated hook is configured.
	ContextKey string

	// TokenLookup is a comma-separated list of extraction sources, e.g.
	// "header:Authorization,query:auth_token,cookie:jwt".
	TokenLookup string

	// AuthScheme is the expected header scheme prefix.
	AuthScheme string
}

// New builds the middleware stage. The stage mutates only the per-request
// context: locals and the request's standard context. It performs no
// persistent writes and, through OnAuthenticated, at most one credential
// store read per request.
func New(config ...Config) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		cfg := withDefaults(config...)
		return func(ctx router.Context) error {
			if cfg.Filter != nil && cfg.Filter(ctx) {
				return ctx.Next()
			}

			raw, err := ExtractRawToken(ctx, cfg.getExtractors())
			if err != nil || raw == "" {
				cfg.anonymous(ctx, ErrTokenMissing)
				return ctx.Next()
			}

			claims, err := cfg.TokenValidator.Validate(raw)
			if err != nil {
				cfg.anonymous(ctx, err)
				return ctx.Next()
			}

			// the hook owns what gets attached to the request; raw
			// claims land in locals only when no hook is configured
			if cfg.OnAuthenticated != nil {
				if err := cfg.OnAuthenticated(ctx, claims); err != nil {
					cfg.anonymous(ctx, err)
					return ctx.Next()
				}
			} else {
				ctx.Locals(cfg.ContextKey, claims)
			}

			if cfg.ContextEnricher != nil {
				stdCtx := cfg.ContextEnricher(ctx.Context(), claims)
				ctx.SetContext(stdCtx)
			}

			return ctx.Next()
		}
	}
}

func (cfg *Config) anonymous(ctx router.Context, reason error) {
	if cfg.OnAnonymous != nil {
		cfg.OnAnonymous(ctx, reason)
	}
}

func withDefaults(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.TokenValidator == nil {
		panic("AUTH: bearerauth middleware configuration: TokenValidator is required.")
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = "claims"
	}

	if cfg.TokenLookup == "" {
		cfg.TokenLookup = defaultTokenLookup
	}

	if cfg.AuthScheme == "" {
		cfg.AuthScheme = "Bearer"
	}

	return cfg
}

func (cfg *Config) getExtractors() []TokenExtractor {
	return GetExtractors(cfg.TokenLookup, cfg.AuthScheme)
}

// ExtractRawToken runs the extractors in order and returns the first hit.
func ExtractRawToken(ctx router.Context, extractors []TokenExtractor) (string, error) {
	var raw string
	var err error

	for _, extractor := range extractors {
		raw, err = extractor(ctx)
		if raw != "" && err == nil {
			break
		}
	}

	return raw, err
}

// GetExtractors parses a token lookup string into extractor functions.
func GetExtractors(tokenLookup string, authSchemes ...string) []TokenExtractor {
	extractors := make([]TokenExtractor, 0)

	authScheme := "Bearer"
	if len(authSchemes) > 0 {
		authScheme = authSchemes[0]
	}

	// header:Authorization,cookie:jwt,query:auth_token,param:token
	rootParts := strings.Split(tokenLookup, ",")
	for _, rootPart := range rootParts {
		parts := strings.Split(strings.TrimSpace(rootPart), ":")
		if len(parts) < 2 {
			continue
		}

		for i, el := range parts {
			parts[i] = strings.TrimSpace(el)
		}

		switch parts[0] {
		case "header":
			extractors = append(extractors, tokenFromHeader(parts[1], authScheme))
		case "query":
			extractors = append(extractors, tokenFromQuery(parts[1]))
		case "param":
			extractors = append(extractors, tokenFromParam(parts[1]))
		case "cookie":
			extractors = append(extractors, tokenFromCookie(parts[1]))
		}
	}

	return extractors
}

type TokenExtractor func(c router.Context) (string, error)

// tokenFromHeader returns a function that extracts the token from the
// request header, requiring the configured scheme prefix.
func tokenFromHeader(header string, authScheme string) TokenExtractor {
	return func(c router.Context) (string, error) {
		a := c.GetString(header, "")
		l := len(authScheme)
		if l == 0 {
			fmt.Println("[WARNING] Missing auth scheme in config definition")
			return "", ErrTokenMissing
		}
		authScheme = strings.TrimSpace(authScheme)
		if len(a) > l+1 && strings.EqualFold(a[:l], authScheme) {
			return strings.TrimSpace(a[l:]), nil
		}
		return "", ErrTokenMissing
	}
}

// tokenFromQuery returns a function that extracts the token from the query string.
func tokenFromQuery(param string) TokenExtractor {
	return func(c router.Context) (string, error) {
		token := c.Query(param, "")
		if token == "" {
			return "", ErrTokenMissing
		}
		return token, nil
	}
}

// tokenFromParam returns a function that extracts the token from the url param string.
func tokenFromParam(param string) TokenExtractor {
	return func(c router.Context) (string, error) {
		token := c.Param(param)
		if token == "" {
			return "", ErrTokenMissing
		}
		return token, nil
	}
}

// tokenFromCookie returns a function that extracts the token from the named cookie.
func tokenFromCookie(name string) TokenExtractor {
	return func(c router.Context) (string, error) {
		token := c.Cookies(name)
		if token == "" {
			return "", ErrTokenMissing
		}
		return token, nil
	}
}
