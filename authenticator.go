package users

import (
	"context"
	"reflect"
)

// Auther verifies credentials against the identity provider and mints
// bearer tokens. It holds no per-request state; one instance serves all
// requests concurrently.
type Auther struct {
	provider       IdentityProvider
	signingKey     []byte
	logger         Logger
	tokenService   TokenService
	tokenValidator TokenValidator
}

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(provider IdentityProvider, opts Config) *Auther {
	tokenService := NewTokenService(
		[]byte(opts.GetSigningKey()),
		opts.GetTokenExpiration(),
		opts.GetIssuer(),
		opts.GetAudience(),
		defLogger{},
	)

	return &Auther{
		provider:     provider,
		signingKey:   []byte(opts.GetSigningKey()),
		logger:       defLogger{},
		tokenService: tokenService,
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithTokenService replaces the default token service, mainly so tests can
// inject a fixed clock.
func (s *Auther) WithTokenService(ts TokenService) *Auther {
	if ts != nil {
		s.tokenService = ts
	}
	return s
}

// WithTokenValidator sets a custom token validator for externally issued tokens.
func (s *Auther) WithTokenValidator(validator TokenValidator) *Auther {
	s.tokenValidator = validator
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() TokenService {
	return s.tokenService
}

// Login verifies a username/password pair and returns a signed token. The
// provider reports the same error whether the username is unknown or the
// password is wrong; nothing here re-distinguishes them. No state is written.
func (s *Auther) Login(ctx context.Context, identifier, password string) (string, error) {
	var err error
	var identity Identity

	if identity, err = s.provider.VerifyIdentity(ctx, identifier, password); err != nil {
		s.logger.Debug("Login verify identity failed", "identifier", identifier)
		return "", err
	}

	if identity == nil || reflect.ValueOf(identity).IsZero() {
		s.logger.Error("Login identity is nil or zero value")
		return "", ErrInvalidCredentials
	}

	token, err := s.tokenService.Generate(identity)
	if err != nil {
		s.logger.Error("Login token generation failed", "error", err)
		return "", err
	}

	return token, nil
}

// SessionFromToken verifies a raw token and rebuilds the principal it
// asserts. Token verification is synchronous bounded computation; it has no
// cancellation semantics.
func (s Auther) SessionFromToken(raw string) (*Principal, error) {
	var validator TokenValidator = s.tokenService
	if s.tokenValidator != nil {
		validator = s.tokenValidator
	}

	claims, err := validator.Validate(raw)
	if err != nil {
		s.logger.Debug("SessionFromToken validation failed", "error", err)
		return nil, err
	}

	principal, err := PrincipalFromClaims(claims)
	if err != nil {
		s.logger.Error("SessionFromToken failed to build principal from claims", "error", err)
		return nil, err
	}

	return principal, nil
}

// IdentityFromSession re-reads the account a principal points at. The token
// subject is the username, so this is the single credential-store read the
// filter performs per request.
func (s *Auther) IdentityFromSession(ctx context.Context, session *Principal) (Identity, error) {
	if session == nil || session.Username == "" {
		return nil, ErrInvalidCredentials
	}

	identity, err := s.provider.FindIdentityByIdentifier(ctx, session.Username)
	if err != nil {
		s.logger.Debug("IdentityFromSession lookup failed", "username", session.Username)
		return nil, err
	}

	return identity, nil
}

var _ Authenticator = (*Auther)(nil)
