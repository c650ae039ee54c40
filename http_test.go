package users_test

import (
	"context"
	"testing"

	"github.com/goliatone/go-router"
	users "github.com/pyramidhq/go-users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newGuard(t *testing.T, provider users.IdentityProvider) *users.HTTPGuard {
	t.Helper()

	policy := users.NewAccessPolicy(
		users.DefaultPublicPatterns(),
		users.PolicyRule{
			Method:  "DELETE",
			Pattern: "/api/users",
			Class:   users.RoleRestricted,
			Role:    users.RoleAdmin,
		},
	)

	auther := users.NewAuthenticator(provider, newMockConfig())
	guard, err := users.NewHTTPGuard(auther, newMockConfig(), policy)
	require.NoError(t, err)
	return guard
}

func newRouteContext(method, path string) *router.MockContext {
	ctx := router.NewMockContext()
	ctx.On("Method").Return(method).Maybe()
	ctx.On("Path").Return(path).Maybe()
	return ctx
}

func noopHandler(ctx router.Context) error { return nil }

func TestAuthorizationAllowsPublicRouteAnonymously(t *testing.T) {
	guard := newGuard(t, new(MockIdentityProvider))
	handler := guard.Authorization()(noopHandler)

	ctx := newRouteContext("POST", "/api/auth/signin")

	err := handler(ctx)
	require.NoError(t, err)
	assert.True(t, ctx.NextCalled)
}

func TestAuthorizationRejectsAnonymousOnProtectedRoute(t *testing.T) {
	guard := newGuard(t, new(MockIdentityProvider))
	handler := guard.Authorization()(noopHandler)

	ctx := newRouteContext("GET", "/api/users")

	var payload router.ViewContext
	ctx.On("JSON", users.ErrUnauthorized.Code, mock.Anything).Run(func(args mock.Arguments) {
		payload = args.Get(1).(router.ViewContext)
	}).Return(nil)

	err := handler(ctx)
	require.NoError(t, err)
	assert.False(t, ctx.NextCalled)

	body, ok := payload["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, users.TextCodeUnauthorized, body["text_code"])
}

func TestAuthorizationForbidsRoleMismatch(t *testing.T) {
	guard := newGuard(t, new(MockIdentityProvider))
	handler := guard.Authorization()(noopHandler)

	ctx := newRouteContext("DELETE", "/api/users/some-id")
	ctx.LocalsMock["principal"] = &users.Principal{
		AccountID:   "account-1",
		Username:    "regular",
		Authorities: []string{"ROLE_USER"},
	}

	var payload router.ViewContext
	ctx.On("JSON", users.ErrForbidden.Code, mock.Anything).Run(func(args mock.Arguments) {
		payload = args.Get(1).(router.ViewContext)
	}).Return(nil)

	err := handler(ctx)
	require.NoError(t, err)
	assert.False(t, ctx.NextCalled)

	body, ok := payload["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, users.TextCodeForbidden, body["text_code"])
}

func TestAuthorizationAllowsMatchingRole(t *testing.T) {
	guard := newGuard(t, new(MockIdentityProvider))
	handler := guard.Authorization()(noopHandler)

	ctx := newRouteContext("DELETE", "/api/users/some-id")
	ctx.LocalsMock["principal"] = &users.Principal{
		AccountID:   "account-2",
		Username:    "root",
		Authorities: []string{"ROLE_ADMIN"},
	}

	err := handler(ctx)
	require.NoError(t, err)
	assert.True(t, ctx.NextCalled)
}

func TestAuthenticationAttachesStoreBackedPrincipal(t *testing.T) {
	identity := &TestIdentity{
		id:       "account-3",
		username: "testuser",
		email:    "test@example.com",
		roles:    []string{"ROLE_ADMIN"},
	}

	provider := new(MockIdentityProvider)
	provider.On("VerifyIdentity", mock.Anything, "testuser", "password123").
		Return(identity, nil)
	provider.On("FindIdentityByIdentifier", mock.Anything, "testuser").
		Return(identity, nil)

	auther := users.NewAuthenticator(provider, newMockConfig())
	token, err := auther.Login(context.TODO(), "testuser", "password123")
	require.NoError(t, err)

	guard, err := users.NewHTTPGuard(auther, newMockConfig(), nil)
	require.NoError(t, err)

	handler := guard.Authentication()(noopHandler)

	ctx := router.NewMockContext()
	ctx.On("Method").Return("GET").Maybe()
	ctx.On("Path").Return("/api/users").Maybe()
	ctx.On("GetString", "Authorization", "").Return("Bearer " + token)
	ctx.On("Context").Return(context.Background())
	ctx.On("Locals", "principal", mock.Anything).Return(nil)
	ctx.On("SetContext", mock.Anything).Return()

	err = handler(ctx)
	require.NoError(t, err)
	require.True(t, ctx.NextCalled)

	principal, ok := ctx.LocalsMock["principal"].(*users.Principal)
	require.True(t, ok, "principal should be attached to locals")
	assert.Equal(t, "account-3", principal.AccountID)
	assert.Equal(t, "testuser", principal.Username)
	assert.True(t, principal.HasRole(users.RoleAdmin))
	assert.Equal(t, "test-issuer", principal.Issuer)
}

func TestAuthenticationContinuesAnonymousOnBadToken(t *testing.T) {
	provider := new(MockIdentityProvider)

	auther := users.NewAuthenticator(provider, newMockConfig())
	guard, err := users.NewHTTPGuard(auther, newMockConfig(), nil)
	require.NoError(t, err)

	handler := guard.Authentication()(noopHandler)

	ctx := router.NewMockContext()
	ctx.On("Method").Return("GET").Maybe()
	ctx.On("Path").Return("/api/users").Maybe()
	ctx.On("GetString", "Authorization", "").Return("Bearer not-a-token")

	err = handler(ctx)
	require.NoError(t, err)
	assert.True(t, ctx.NextCalled)
	assert.NotContains(t, ctx.LocalsMock, "principal")
	provider.AssertNotCalled(t, "FindIdentityByIdentifier", mock.Anything, mock.Anything)
}

func TestAuthenticationContinuesAnonymousWhenAccountGone(t *testing.T) {
	identity := &TestIdentity{id: "account-4", username: "ghost"}

	provider := new(MockIdentityProvider)
	provider.On("VerifyIdentity", mock.Anything, "ghost", "password123").
		Return(identity, nil)
	provider.On("FindIdentityByIdentifier", mock.Anything, "ghost").
		Return(nil, users.ErrUserNotFound)

	auther := users.NewAuthenticator(provider, newMockConfig())
	token, err := auther.Login(context.TODO(), "ghost", "password123")
	require.NoError(t, err)

	guard, err := users.NewHTTPGuard(auther, newMockConfig(), nil)
	require.NoError(t, err)

	handler := guard.Authentication()(noopHandler)

	ctx := router.NewMockContext()
	ctx.On("Method").Return("GET").Maybe()
	ctx.On("Path").Return("/api/users").Maybe()
	ctx.On("GetString", "Authorization", "").Return("Bearer " + token)
	ctx.On("Context").Return(context.Background())

	err = handler(ctx)
	require.NoError(t, err)
	assert.True(t, ctx.NextCalled)
	assert.NotContains(t, ctx.LocalsMock, "principal")
}
