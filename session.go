package users

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Principal is the per-request reconstruction of an account's identity and
// granted authorities. It lives for exactly one request, attached to the
// request context by the authentication filter, and is never persisted.
type Principal struct {
	AccountID   string     `json:"account_id,omitempty"`
	Username    string     `json:"username,omitempty"`
	Email       string     `json:"email,omitempty"`
	Authorities []string   `json:"authorities,omitempty"`
	Issuer      string     `json:"issuer,omitempty"`
	Audience    []string   `json:"audience,omitempty"`
	IssuedAt    *time.Time `json:"issued_at,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// GetUserID returns the account id claim.
func (p *Principal) GetUserID() string {
	return p.AccountID
}

// GetUserUUID parses the account id as a UUID.
func (p *Principal) GetUserUUID() (uuid.UUID, error) {
	return uuid.Parse(p.AccountID)
}

// HasRole reports whether the principal holds the role's authority.
func (p *Principal) HasRole(role Role) bool {
	if p == nil {
		return false
	}
	return HasAuthority(p.Authorities, role)
}

// Authenticated reports whether the principal identifies an account.
func (p *Principal) Authenticated() bool {
	return p != nil && (p.AccountID != "" || p.Username != "")
}

func (p Principal) String() string {
	issuedAt := "<nil>"
	if p.IssuedAt != nil {
		issuedAt = p.IssuedAt.Format(time.RFC1123)
	}
	return fmt.Sprintf(
		"user=%s username=%s authorities=%v iss=%s iat=%s",
		p.AccountID,
		p.Username,
		p.Authorities,
		p.Issuer,
		issuedAt,
	)
}

// PrincipalFromIdentity builds a principal straight from a verified
// identity, the signin path.
func PrincipalFromIdentity(identity Identity) *Principal {
	if identity == nil {
		return nil
	}
	return &Principal{
		AccountID:   identity.ID(),
		Username:    identity.Username(),
		Email:       identity.Email(),
		Authorities: identity.Roles(),
	}
}

// PrincipalFromClaims builds a principal from verified token claims. The
// filter path follows this with a credential-store read to pick up the
// account's email and current role set.
func PrincipalFromClaims(claims AuthClaims) (*Principal, error) {
	if claims == nil {
		return nil, ErrTokenMalformed
	}

	issuedAt := claims.IssuedAt()
	expiresAt := claims.Expires()

	p := &Principal{
		AccountID:   claims.UserID(),
		Username:    claims.Username(),
		Authorities: claims.Roles(),
		IssuedAt:    &issuedAt,
		ExpiresAt:   &expiresAt,
	}

	if jc, ok := claims.(*JWTClaims); ok {
		p.Issuer = jc.RegisteredClaims.Issuer
		p.Audience = append(p.Audience, jc.RegisteredClaims.Audience...)
	}

	return p, nil
}

// PrincipalFromAccount builds the full principal from a stored account,
// the filter path after the per-request store read.
func PrincipalFromAccount(user *User) *Principal {
	if user == nil {
		return nil
	}
	return &Principal{
		AccountID:   user.ID.String(),
		Username:    user.Username,
		Email:       user.Email,
		Authorities: user.Authorities(),
	}
}
