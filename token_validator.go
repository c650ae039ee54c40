package users

import (
	"fmt"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
)

// TokenValidator validates tokens and extracts claims without tying callers
// to a specific signing implementation.
type TokenValidator interface {
	Validate(tokenString string) (AuthClaims, error)
}

// TokenValidatorFunc adapts a function into a TokenValidator.
type TokenValidatorFunc func(tokenString string) (AuthClaims, error)

// Validate satisfies the TokenValidator interface.
func (f TokenValidatorFunc) Validate(tokenString string) (AuthClaims, error) {
	if f == nil {
		return nil, ErrTokenMalformed
	}
	return f(tokenString)
}

// NewJWKSValidator builds a validator for externally issued tokens whose
// keys are published at the given JWK Set URLs. The key set refreshes in the
// background; the returned validator maps failures onto the same taxonomy
// the local TokenService uses.
func NewJWKSValidator(jwkSetURLs []string, logger Logger) (TokenValidator, error) {
	if logger == nil {
		logger = defLogger{}
	}

	opts := keyfunc.Options{
		RefreshErrorHandler: func(err error) {
			logger.Warn("background JWK set refresh failed", "error", err)
		},
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  time.Minute * 5,
		RefreshTimeout:    time.Second * 10,
		RefreshUnknownKID: true,
	}

	m := make(map[string]keyfunc.Options, len(jwkSetURLs))
	for _, url := range jwkSetURLs {
		m[url] = opts
	}

	multi, err := keyfunc.GetMultiple(m, keyfunc.MultipleOptions{
		KeySelector: keyfunc.KeySelectorFirst,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get JWK set URLs: %w", err)
	}

	return TokenValidatorFunc(func(tokenString string) (AuthClaims, error) {
		token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, multi.Keyfunc)
		if err != nil {
			switch {
			case IsMalformedError(err):
				return nil, ErrTokenMalformed
			case IsTokenExpiredError(err):
				return nil, ErrTokenExpired
			default:
				return nil, ErrTokenBadSignature.Clone().
					WithMetadata(map[string]any{"cause": err.Error()})
			}
		}
		claims, ok := token.Claims.(*JWTClaims)
		if !ok || !token.Valid {
			return nil, ErrTokenMalformed
		}
		return claims, nil
	}), nil
}

// MultiTokenValidator tries validators in order until one succeeds. It
// treats malformed and bad-signature results as "try next" and returns the
// last such error if every validator fails.
type MultiTokenValidator struct {
	validators []TokenValidator
}

// NewMultiTokenValidator filters nil validators and returns a composite validator.
func NewMultiTokenValidator(validators ...TokenValidator) *MultiTokenValidator {
	filtered := make([]TokenValidator, 0, len(validators))
	for _, v := range validators {
		if v != nil {
			filtered = append(filtered, v)
		}
	}
	return &MultiTokenValidator{validators: filtered}
}

// Validate satisfies the TokenValidator interface.
func (m *MultiTokenValidator) Validate(tokenString string) (AuthClaims, error) {
	var lastErr error
	for _, v := range m.validators {
		claims, err := v.Validate(tokenString)
		if err == nil {
			return claims, nil
		}
		if IsMalformedError(err) || IsBadSignatureError(err) {
			lastErr = err
			continue
		}
		return nil, err
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, ErrTokenMalformed
}
