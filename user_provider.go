package users

import (
	"context"

	"github.com/goliatone/go-errors"
)

// UserStore is the read contract the identity provider needs from the
// credential store. Reads must be safe under arbitrary concurrent readers.
type UserStore interface {
	GetByIdentifier(ctx context.Context, identifier string) (*User, error)
}

// NewUserStore narrows the Users repository to the provider's read
// contract.
func NewUserStore(users Users) UserStore {
	return userStoreAdapter{users: users}
}

type userStoreAdapter struct {
	users Users
}

func (a userStoreAdapter) GetByIdentifier(ctx context.Context, identifier string) (*User, error) {
	return a.users.GetByIdentifier(ctx, identifier)
}

// UserProvider resolves identities against the credential store.
type UserProvider struct {
	store  UserStore
	logger Logger
}

// NewUserProvider will create a new UserProvider
func NewUserProvider(store UserStore) *UserProvider {
	return &UserProvider{
		store:  store,
		logger: defLogger{},
	}
}

func (u *UserProvider) WithLogger(l Logger) *UserProvider {
	if l != nil {
		u.logger = l
	}
	return u
}

// VerifyIdentity finds the user, compares the password, and returns the
// identity. An unknown username and a wrong password produce the identical
// error; a bcrypt compare runs in both cases so the two are not separable by
// timing either. No side effects beyond the single read.
func (u UserProvider) VerifyIdentity(ctx context.Context, identifier, password string) (Identity, error) {
	user, err := u.store.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.IsNotFound(err) {
			// burn a compare against a throwaway hash
			_ = ComparePasswordAndHash(password, RandomPasswordHash())
			return nil, ErrInvalidCredentials
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to retrieve user during verification")
	}

	if err := ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		return nil, ErrInvalidCredentials
	}

	return identityFromUser(user), nil
}

// FindIdentityByIdentifier resolves an identity without a password check,
// the filter path after token verification.
func (u UserProvider) FindIdentityByIdentifier(ctx context.Context, identifier string) (Identity, error) {
	user, err := u.store.GetByIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}

	return identityFromUser(user), nil
}

func identityFromUser(user *User) authIdentity {
	return authIdentity{
		id:       user.ID.String(),
		email:    user.Email,
		username: user.Username,
		roles:    user.Authorities(),
	}
}

type authIdentity struct {
	id       string
	username string
	email    string
	roles    []string
}

func (a authIdentity) ID() string {
	return a.id
}

func (a authIdentity) Username() string {
	return a.username
}

func (a authIdentity) Email() string {
	return a.email
}

func (a authIdentity) Roles() []string {
	return a.roles
}
