package users

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// Stable text codes exposed in error payloads so clients can branch on them
// without parsing messages.
const (
	TextCodeInvalidCreds      = "INVALID_CREDENTIALS"
	TextCodeDuplicateUsername = "DUPLICATE_USERNAME"
	TextCodeDuplicateEmail    = "DUPLICATE_EMAIL"
	TextCodeTokenMalformed    = "TOKEN_MALFORMED"
	TextCodeTokenBadSignature = "TOKEN_BAD_SIGNATURE"
	TextCodeTokenExpired      = "TOKEN_EXPIRED"
	TextCodeRoleNotConfigured = "ROLE_NOT_CONFIGURED"
	TextCodeForbidden         = "FORBIDDEN"
	TextCodeUnauthorized      = "UNAUTHORIZED"
	TextCodeUserNotFound      = "USER_NOT_FOUND"
)

// ErrInvalidCredentials is returned for both unknown usernames and wrong
// passwords so a caller cannot tell which case occurred.
var ErrInvalidCredentials = goerrors.New("the credentials provided are invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(goerrors.CodeUnauthorized)

// ErrDuplicateUsername is the per-field signup conflict for usernames.
var ErrDuplicateUsername = goerrors.New("username is already taken", goerrors.CategoryConflict).
	WithTextCode(TextCodeDuplicateUsername).
	WithCode(goerrors.CodeBadRequest)

// ErrDuplicateEmail is the per-field signup conflict for emails.
var ErrDuplicateEmail = goerrors.New("email is already in use", goerrors.CategoryConflict).
	WithTextCode(TextCodeDuplicateEmail).
	WithCode(goerrors.CodeBadRequest)

// ErrTokenMalformed means the token string could not be parsed or decoded.
var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenBadSignature means the token parsed but its signature did not
// verify against the configured key. Tampering or a wrong key.
var ErrTokenBadSignature = goerrors.New("token signature is invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenBadSignature).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenExpired means the signature verified but the validity window has
// passed. A token is expired exactly at issuedAt + TTL.
var ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrRoleNotConfigured is returned when a signup names a role outside the
// closed role set and the deployment runs with strict role parsing.
var ErrRoleNotConfigured = goerrors.New("role is not configured", goerrors.CategoryValidation).
	WithTextCode(TextCodeRoleNotConfigured).
	WithCode(goerrors.CodeBadRequest)

// ErrUnauthorized is the entry-point rejection for requests that reach a
// protected route without a principal. It carries no detail about whether
// a token was missing, malformed, or expired.
var ErrUnauthorized = goerrors.New("full authentication is required to access this resource", goerrors.CategoryAuth).
	WithTextCode(TextCodeUnauthorized).
	WithCode(goerrors.CodeUnauthorized)

// ErrForbidden rejects an authenticated principal that lacks the authority
// a route requires.
var ErrForbidden = goerrors.New("access is denied", goerrors.CategoryAuthz).
	WithTextCode(TextCodeForbidden).
	WithCode(goerrors.CodeForbidden)

// ErrUserNotFound is the generic lookup miss for CRUD operations.
var ErrUserNotFound = goerrors.New("user not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeUserNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrNoEmptyString rejects empty passwords before they reach the hasher.
var ErrNoEmptyString = goerrors.New("value must not be empty", goerrors.CategoryValidation).
	WithCode(goerrors.CodeBadRequest)

// IsTokenExpiredError reports whether err represents an expired token,
// matching both our structured error and legacy jwt error strings.
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	if goerrors.Is(err, ErrTokenExpired) {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsBadSignatureError reports whether err represents a signature failure.
func IsBadSignatureError(err error) bool {
	if err == nil {
		return false
	}
	if goerrors.Is(err, ErrTokenBadSignature) {
		return true
	}
	return strings.Contains(err.Error(), "signature is invalid")
}

// IsMalformedError reports whether err represents an unparseable token.
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	if goerrors.Is(err, ErrTokenMalformed) {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}
