package users_test

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	users "github.com/pyramidhq/go-users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRoleNamesDefault(t *testing.T) {
	user := &users.User{ID: uuid.New(), Username: "testuser"}

	assert.Equal(t, []users.Role{users.RoleUser}, user.RoleNames())
	assert.Equal(t, []string{"ROLE_USER"}, user.Authorities())
}

func TestUserAuthorities(t *testing.T) {
	user := &users.User{
		ID:       uuid.New(),
		Username: "testuser",
		Roles: []*users.RoleRecord{
			{ID: uuid.New(), Name: string(users.RoleAdmin)},
			{ID: uuid.New(), Name: string(users.RoleUser)},
		},
	}

	assert.ElementsMatch(t, []string{"ROLE_ADMIN", "ROLE_USER"}, user.Authorities())
}

func TestUserEquals(t *testing.T) {
	id := uuid.New()
	a := &users.User{ID: id, Username: "a"}
	b := &users.User{ID: id, Username: "b"}
	c := &users.User{ID: uuid.New(), Username: "a"}

	assert.True(t, a.Equals(b), "same id means same account")
	assert.False(t, a.Equals(c))
	assert.False(t, a.Equals(nil))

	// accounts without ids never compare equal, not even to themselves
	zero := &users.User{Username: "a"}
	assert.False(t, zero.Equals(zero))
}

func TestUserJSONNeverLeaksPasswordHash(t *testing.T) {
	user := &users.User{
		ID:           uuid.New(),
		Username:     "testuser",
		Email:        "test@example.com",
		PasswordHash: "$2a$14$secret",
	}

	raw, err := json.Marshal(user)
	require.NoError(t, err)

	assert.NotContains(t, string(raw), "secret")
	assert.NotContains(t, string(raw), "password_hash")
}
