package bearerauth_test

import (
	"errors"
	"testing"

	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pyramidhq/go-users/middleware/bearerauth"
)

type stubClaims struct {
	subject string
	roles   []string
}

func (s stubClaims) Subject() string  { return s.subject }
func (s stubClaims) UserID() string   { return s.subject }
func (s stubClaims) Username() string { return s.subject }
func (s stubClaims) Roles() []string  { return s.roles }
func (s stubClaims) HasRole(role string) bool {
	for _, r := range s.roles {
		if r == role {
			return true
		}
	}
	return false
}

type stubValidator struct {
	claims bearerauth.AuthClaims
	err    error
	calls  int
	last   string
}

func (s *stubValidator) Validate(tokenString string) (bearerauth.AuthClaims, error) {
	s.calls++
	s.last = tokenString
	if s.err != nil {
		return nil, s.err
	}
	return s.claims, nil
}

func noopHandler(ctx router.Context) error { return nil }

func TestBearerAuthValidToken(t *testing.T) {
	validator := &stubValidator{claims: stubClaims{subject: "testuser", roles: []string{"ROLE_USER"}}}

	var authenticated bearerauth.AuthClaims
	middleware := bearerauth.New(bearerauth.Config{
		TokenValidator: validator,
		ContextKey:     "claims",
		OnAuthenticated: func(ctx router.Context, claims bearerauth.AuthClaims) error {
			authenticated = claims
			return nil
		},
	})

	ctx := router.NewMockContext()
	ctx.On("GetString", "Authorization", "").Return("Bearer raw-token")

	err := middleware(noopHandler)(ctx)
	require.NoError(t, err)

	assert.True(t, ctx.NextCalled)
	assert.Equal(t, 1, validator.calls)
	assert.Equal(t, "raw-token", validator.last)
	require.NotNil(t, authenticated)
	assert.Equal(t, "testuser", authenticated.Subject())

	// the hook owns request state, so the middleware itself does not
	// touch locals
	ctx.AssertNotCalled(t, "Locals", mock.Anything, mock.Anything)
}

func TestBearerAuthDefaultStoresClaims(t *testing.T) {
	validator := &stubValidator{claims: stubClaims{subject: "testuser"}}

	middleware := bearerauth.New(bearerauth.Config{
		TokenValidator: validator,
		ContextKey:     "claims",
	})

	ctx := router.NewMockContext()
	ctx.On("GetString", "Authorization", "").Return("Bearer raw-token")
	ctx.On("Locals", "claims", mock.Anything).Return(nil)

	err := middleware(noopHandler)(ctx)
	require.NoError(t, err)
	assert.True(t, ctx.NextCalled)

	claims, ok := ctx.LocalsMock["claims"].(bearerauth.AuthClaims)
	require.True(t, ok, "claims should be stored in locals")
	assert.Equal(t, "testuser", claims.Subject())
}

func TestBearerAuthMissingTokenContinuesAnonymous(t *testing.T) {
	validator := &stubValidator{claims: stubClaims{subject: "testuser"}}

	var reason error
	middleware := bearerauth.New(bearerauth.Config{
		TokenValidator: validator,
		OnAuthenticated: func(ctx router.Context, claims bearerauth.AuthClaims) error {
			t.Fatal("OnAuthenticated must not run without a token")
			return nil
		},
		OnAnonymous: func(ctx router.Context, err error) {
			reason = err
		},
	})

	ctx := router.NewMockContext()
	ctx.On("GetString", "Authorization", "").Return("")

	err := middleware(noopHandler)(ctx)
	require.NoError(t, err)

	assert.True(t, ctx.NextCalled, "request must continue without credentials")
	assert.Zero(t, validator.calls)
	assert.ErrorIs(t, reason, bearerauth.ErrTokenMissing)
}

func TestBearerAuthInvalidTokenContinuesAnonymous(t *testing.T) {
	wantErr := errors.New("token is expired")
	validator := &stubValidator{err: wantErr}

	var reason error
	middleware := bearerauth.New(bearerauth.Config{
		TokenValidator: validator,
		OnAuthenticated: func(ctx router.Context, claims bearerauth.AuthClaims) error {
			t.Fatal("OnAuthenticated must not run for a failed token")
			return nil
		},
		OnAnonymous: func(ctx router.Context, err error) {
			reason = err
		},
	})

	ctx := router.NewMockContext()
	ctx.On("GetString", "Authorization", "").Return("Bearer expired-token")

	err := middleware(noopHandler)(ctx)
	require.NoError(t, err)

	assert.True(t, ctx.NextCalled)
	assert.Equal(t, 1, validator.calls)
	assert.ErrorIs(t, reason, wantErr)
	// the failed claims never land in locals
	ctx.AssertNotCalled(t, "Locals", "claims", mock.Anything)
}

func TestBearerAuthResolverFailureContinuesAnonymous(t *testing.T) {
	validator := &stubValidator{claims: stubClaims{subject: "deleted-account"}}

	var reason error
	middleware := bearerauth.New(bearerauth.Config{
		TokenValidator: validator,
		OnAuthenticated: func(ctx router.Context, claims bearerauth.AuthClaims) error {
			return errors.New("user not found")
		},
		OnAnonymous: func(ctx router.Context, err error) {
			reason = err
		},
	})

	ctx := router.NewMockContext()
	ctx.On("GetString", "Authorization", "").Return("Bearer orphaned-token")

	err := middleware(noopHandler)(ctx)
	require.NoError(t, err)

	assert.True(t, ctx.NextCalled)
	require.Error(t, reason)
	assert.Contains(t, reason.Error(), "user not found")
	ctx.AssertNotCalled(t, "Locals", "claims", mock.Anything)
}

func TestBearerAuthFilterSkips(t *testing.T) {
	validator := &stubValidator{claims: stubClaims{subject: "testuser"}}

	middleware := bearerauth.New(bearerauth.Config{
		TokenValidator: validator,
		Filter: func(ctx router.Context) bool {
			return true
		},
	})

	ctx := router.NewMockContext()

	err := middleware(noopHandler)(ctx)
	require.NoError(t, err)

	assert.True(t, ctx.NextCalled)
	assert.Zero(t, validator.calls)
}

func TestBearerAuthCustomScheme(t *testing.T) {
	validator := &stubValidator{claims: stubClaims{subject: "testuser"}}

	middleware := bearerauth.New(bearerauth.Config{
		TokenValidator: validator,
		AuthScheme:     "Token",
		OnAuthenticated: func(ctx router.Context, claims bearerauth.AuthClaims) error {
			return nil
		},
	})

	ctx := router.NewMockContext()
	ctx.On("GetString", "Authorization", "").Return("Token raw-token")
	ctx.On("Locals", "claims", mock.Anything).Return(nil)

	err := middleware(noopHandler)(ctx)
	require.NoError(t, err)

	assert.True(t, ctx.NextCalled)
	assert.Equal(t, "raw-token", validator.last)
}

func TestGetExtractors(t *testing.T) {
	extractors := bearerauth.GetExtractors("header:Authorization,query:auth_token,cookie:jwt,param:token")
	assert.Len(t, extractors, 4)

	extractors = bearerauth.GetExtractors("bogus")
	assert.Empty(t, extractors)
}

func TestBearerAuthRequiresValidator(t *testing.T) {
	defer func() {
		recovered := recover()
		require.NotNil(t, recovered, "missing validator must panic at setup")
	}()

	middleware := bearerauth.New(bearerauth.Config{})
	_ = middleware(noopHandler)(router.NewMockContext())
}
