package users

import (
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/pyramidhq/go-users/middleware/bearerauth"
)

// HTTPGuard composes the request pipeline stages: bearer authentication,
// which runs on every request and never rejects, and authorization, which
// evaluates the route policy and is the only stage that rejects.
type HTTPGuard struct {
	auth               Authenticator
	cfg                Config
	policy             *AccessPolicy
	Logger             Logger
	UnauthorizedHandler func(c router.Context, err error) error
	ForbiddenHandler    func(c router.Context, err error) error
	ErrorHandler        func(c router.Context, err error) error
}

func NewHTTPGuard(auther Authenticator, cfg Config, policy *AccessPolicy) (*HTTPGuard, error) {
	if policy == nil {
		policy = NewAccessPolicy(DefaultPublicPatterns())
	}

	g := &HTTPGuard{
		cfg:    cfg,
		auth:   auther,
		policy: policy,
		Logger: defLogger{},
	}

	g.UnauthorizedHandler = g.defaultUnauthorizedHandler
	g.ForbiddenHandler = g.defaultForbiddenHandler
	g.ErrorHandler = g.defaultErrHandler

	return g, nil
}

// Authentication builds the filter stage. Requests with no token, or with
// a token that fails verification for any reason, continue anonymous; a
// verified token is resolved against the credential store and the
// resulting principal is attached to the request context. An account
// deleted after its token was issued also continues anonymous.
func (g *HTTPGuard) Authentication() router.MiddlewareFunc {
	return bearerauth.New(bearerauth.Config{
		TokenValidator: sessionValidator{auth: g.auth},
		AuthScheme:     g.cfg.GetAuthScheme(),
		ContextKey:     g.cfg.GetContextKey(),
		TokenLookup:    g.cfg.GetTokenLookup(),
		OnAuthenticated: func(ctx router.Context, claims bearerauth.AuthClaims) error {
			return g.attachPrincipal(ctx, claims)
		},
		OnAnonymous: func(ctx router.Context, reason error) {
			g.Logger.Debug(
				"request continues anonymous: %s %s: %s",
				ctx.Method(), ctx.Path(), reason,
			)
		},
	})
}

// Authorization builds the decision stage. It reads the principal attached
// by Authentication, never the raw token, and maps the policy outcome to a
// response: Allow passes through, Unauthorized and Forbidden reject.
func (g *HTTPGuard) Authorization() router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			principal, _ := RouterPrincipal(ctx, g.cfg.GetContextKey())

			switch g.policy.Evaluate(ctx.Method(), ctx.Path(), principal) {
			case Allow:
				return ctx.Next()
			case Forbidden:
				return g.ForbiddenHandler(ctx, ErrForbidden)
			default:
				return g.UnauthorizedHandler(ctx, ErrUnauthorized)
			}
		}
	}
}

// attachPrincipal turns verified claims into a request principal backed by
// the stored account: one credential store read per request, keyed by the
// token subject.
func (g *HTTPGuard) attachPrincipal(ctx router.Context, claims bearerauth.AuthClaims) error {
	authClaims, ok := claims.(AuthClaims)
	if !ok {
		return ErrTokenMalformed
	}

	session, err := PrincipalFromClaims(authClaims)
	if err != nil {
		return err
	}

	identity, err := g.auth.IdentityFromSession(ctx.Context(), session)
	if err != nil {
		return err
	}

	principal := PrincipalFromIdentity(identity)
	principal.Issuer = session.Issuer
	principal.Audience = session.Audience
	principal.IssuedAt = session.IssuedAt
	principal.ExpiresAt = session.ExpiresAt

	ctx.Locals(g.cfg.GetContextKey(), principal)

	stdCtx := WithPrincipal(ctx.Context(), principal)
	stdCtx = WithClaimsContext(stdCtx, authClaims)
	ctx.SetContext(stdCtx)

	return nil
}

func (g *HTTPGuard) defaultUnauthorizedHandler(c router.Context, err error) error {
	richErr := asRichError(err, errors.CategoryAuth, errors.CodeUnauthorized)

	g.Logger.Info(
		"unauthorized: %s %s text_code=%s",
		c.Method(), c.Path(), richErr.TextCode,
	)

	return c.JSON(richErr.Code, errorBody(richErr))
}

func (g *HTTPGuard) defaultForbiddenHandler(c router.Context, err error) error {
	richErr := asRichError(err, errors.CategoryAuthz, errors.CodeForbidden)

	g.Logger.Info(
		"forbidden: %s %s text_code=%s",
		c.Method(), c.Path(), richErr.TextCode,
	)

	return c.JSON(richErr.Code, errorBody(richErr))
}

func (g *HTTPGuard) defaultErrHandler(c router.Context, err error) error {
	richErr := asRichError(err, errors.CategoryInternal, errors.CodeInternal)

	g.Logger.Error(
		"request error: %s %s category=%s details=%s",
		c.Method(), c.Path(), richErr.Category,
		print.MaybePrettyJSON(richErr.Metadata),
	)

	switch richErr.Category {
	case errors.CategoryAuth:
		return g.UnauthorizedHandler(c, richErr)
	case errors.CategoryAuthz:
		return g.ForbiddenHandler(c, richErr)
	default:
		return c.JSON(richErr.Code, errorBody(richErr))
	}
}

func asRichError(err error, category errors.Category, code int) *errors.Error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, category, "request could not be completed").
			WithCode(code)
	}
	if richErr.Code == 0 {
		richErr.Code = code
	}
	return richErr
}

func errorBody(richErr *errors.Error) router.ViewContext {
	return router.ViewContext{
		"error": map[string]any{
			"message":   richErr.Message,
			"text_code": richErr.TextCode,
			"code":      richErr.Code,
		},
	}
}

// sessionValidator bridges the authenticator's token verification into the
// middleware package's validator contract.
type sessionValidator struct {
	auth Authenticator
}

func (v sessionValidator) Validate(tokenString string) (bearerauth.AuthClaims, error) {
	type tokenServicer interface {
		TokenService() TokenService
	}

	if ts, ok := v.auth.(tokenServicer); ok && ts.TokenService() != nil {
		claims, err := ts.TokenService().Validate(tokenString)
		if err != nil {
			return nil, err
		}
		return claims, nil
	}

	session, err := v.auth.SessionFromToken(tokenString)
	if err != nil {
		return nil, err
	}
	return principalClaims{session}, nil
}

// principalClaims adapts a reconstructed session to the claims contract
// for authenticators that expose no token service.
type principalClaims struct {
	session *Principal
}

func (p principalClaims) Subject() string  { return p.session.Username }
func (p principalClaims) UserID() string   { return p.session.AccountID }
func (p principalClaims) Username() string { return p.session.Username }
func (p principalClaims) Roles() []string  { return p.session.Authorities }
func (p principalClaims) HasRole(role string) bool {
	parsed, ok := ParseRole(role)
	if !ok {
		return false
	}
	return HasAuthority(p.session.Authorities, parsed)
}
