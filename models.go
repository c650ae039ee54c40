package users

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the account model. The password hash never serializes outward.
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID     `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Username      string        `bun:"username,notnull,unique" json:"username,omitempty"`
	Name          string        `bun:"name" json:"name,omitempty"`
	Email         string        `bun:"email,notnull,unique" json:"email,omitempty"`
	Phone         string        `bun:"phone_number" json:"phone_number,omitempty"`
	PasswordHash  string        `bun:"password_hash" json:"-"`
	Roles         []*RoleRecord `bun:"m2m:user_roles,join:User=Role" json:"roles,omitempty"`
	CreatedAt     *time.Time    `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time    `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt     *time.Time    `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// RoleNames returns the short role names attached to the account, defaulting
// to the user role when no rows are linked yet.
func (u *User) RoleNames() []Role {
	if len(u.Roles) == 0 {
		return []Role{RoleUser}
	}
	roles := make([]Role, 0, len(u.Roles))
	for _, r := range u.Roles {
		roles = append(roles, Role(r.Name))
	}
	return roles
}

// Authorities derives the granted-authority names for the account.
func (u *User) Authorities() []string {
	return AuthoritiesFor(u.RoleNames())
}

// Equals compares accounts by id once assigned. Pre-insert accounts (zero
// id) never compare equal by identity.
func (u *User) Equals(other *User) bool {
	if u == nil || other == nil {
		return false
	}
	if u.ID == uuid.Nil || other.ID == uuid.Nil {
		return false
	}
	return u.ID == other.ID
}

// RoleRecord is the persisted backing row for a Role variant.
type RoleRecord struct {
	bun.BaseModel `bun:"table:roles,alias:rol"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name          string     `bun:"name,notnull,unique" json:"name,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// UserToRole links accounts to their role rows.
type UserToRole struct {
	bun.BaseModel `bun:"table:user_roles,alias:usr_rol"`
	UserID        uuid.UUID   `bun:"user_id,pk,type:uuid"`
	User          *User       `bun:"rel:belongs-to,join:user_id=id"`
	RoleID        uuid.UUID   `bun:"role_id,pk,type:uuid"`
	Role          *RoleRecord `bun:"rel:belongs-to,join:role_id=id"`
}
