package users

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Users is the credential-store contract for accounts. Account creation is
// transactional: the uniqueness checks and the insert run in one tx, so a
// race on username or email fails the whole operation.
type Users interface {
	// TEMP-DIAGNOSTIC: embedding removed, used methods declared inline
	CreateTx(ctx context.Context, tx bun.IDB, record *User, criteria ...repository.InsertCriteria) (*User, error)
	GetByID(ctx context.Context, id string, criteria ...repository.SelectCriteria) (*User, error)
	RawTx(ctx context.Context, tx bun.IDB, sql string, args ...any) ([]*User, error)
	Update(ctx context.Context, record *User, criteria ...repository.UpdateCriteria) (*User, error)

	GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*User, error)
	GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (*User, error)

	ExistsByUsernameTx(ctx context.Context, tx bun.IDB, username string) (bool, error)
	ExistsByEmailTx(ctx context.Context, tx bun.IDB, email string) (bool, error)

	Register(ctx context.Context, user *User, roles []Role) (*User, error)
	RegisterTx(ctx context.Context, tx bun.IDB, user *User, roles []Role) (*User, error)

	List(ctx context.Context) ([]*User, error)
	ListPage(ctx context.Context, page, size int, sortBy, direction string) ([]*User, int, error)

	UpdateProfile(ctx context.Context, id uuid.UUID, username, name, email string) (*User, error)
	Remove(ctx context.Context, id uuid.UUID) error
}

type usersRepo struct {
	repository.Repository[*User]
	db    *bun.DB
	roles Roles
}

var (
	_ Users = (*usersRepo)(nil)
)

// NewUsersRepository builds the Users repository over a bun DB handle.
func NewUsersRepository(db *bun.DB, roles Roles) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "username"
		},
	})

	return &usersRepo{
		Repository: repo,
		db:         db,
		roles:      roles,
	}
}

func (a *usersRepo) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*User, error) {
	return a.GetByIdentifierTx(ctx, a.db, identifier, criteria...)
}

func (a *usersRepo) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (*User, error) {
	options := resolveUserIdentifier(identifier)
	if len(options) == 0 {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{"identifier": identifier})
	}

	for _, opt := range options {
		record := &User{}
		q := tx.NewSelect().Model(record).Relation("Roles")

		for _, c := range criteria {
			q.Apply(c)
		}

		err := q.
			Where(fmt.Sprintf("?TableAlias.%s = ?", opt.column), opt.value).
			Limit(1).
			Scan(ctx)

		if err != nil {
			if repository.IsRecordNotFound(err) {
				continue
			}
			return nil, err
		}

		return record, nil
	}

	return nil, repository.NewRecordNotFound().
		WithMetadata(map[string]any{
			"identifier": identifier,
		})
}

func (a *usersRepo) ExistsByUsernameTx(ctx context.Context, tx bun.IDB, username string) (bool, error) {
	return tx.NewSelect().
		Model((*User)(nil)).
		Where("?TableAlias.username = ?", username).
		Exists(ctx)
}

func (a *usersRepo) ExistsByEmailTx(ctx context.Context, tx bun.IDB, email string) (bool, error) {
	return tx.NewSelect().
		Model((*User)(nil)).
		Where("?TableAlias.email = ?", email).
		Exists(ctx)
}

func (a *usersRepo) Register(ctx context.Context, user *User, roles []Role) (*User, error) {
	var out *User
	err := a.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		created, err := a.RegisterTx(ctx, tx, user, roles)
		if err != nil {
			return err
		}
		out = created
		return nil
	})
	return out, err
}

// RegisterTx creates the account and its role links. Uniqueness of username
// and email is checked inside the same transaction that inserts; the unique
// indexes back the check under concurrent registrations.
func (a *usersRepo) RegisterTx(ctx context.Context, tx bun.IDB, user *User, roles []Role) (*User, error) {
	taken, err := a.ExistsByUsernameTx(ctx, tx, user.Username)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrDuplicateUsername
	}

	taken, err = a.ExistsByEmailTx(ctx, tx, user.Email)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrDuplicateEmail
	}

	prepareUserDefaults(user)

	created, err := a.Repository.CreateTx(ctx, tx, user)
	if err != nil {
		return nil, err
	}

	if len(roles) == 0 {
		roles = []Role{RoleUser}
	}

	links := make([]*UserToRole, 0, len(roles))
	for _, role := range roles {
		record, err := a.roles.GetByNameTx(ctx, tx, role)
		if err != nil {
			return nil, err
		}
		links = append(links, &UserToRole{
			UserID: created.ID,
			RoleID: record.ID,
		})
		created.Roles = append(created.Roles, record)
	}

	if _, err := tx.NewInsert().Model(&links).Exec(ctx); err != nil {
		return nil, err
	}

	return created, nil
}

func (a *usersRepo) List(ctx context.Context) ([]*User, error) {
	records := []*User{}
	err := a.db.NewSelect().
		Model(&records).
		Relation("Roles").
		Order("usr.created_at ASC").
		Scan(ctx)
	return records, err
}

// ListPage returns one page of users plus the total row count. page is
// zero-based; direction is "asc" or "desc"; sortBy is restricted to a known
// column set so it cannot inject SQL.
func (a *usersRepo) ListPage(ctx context.Context, page, size int, sortBy, direction string) ([]*User, int, error) {
	if page < 0 {
		page = 0
	}
	if size <= 0 {
		size = 10
	}

	column := sortableUserColumn(sortBy)
	dir := "ASC"
	if strings.EqualFold(direction, "desc") {
		dir = "DESC"
	}

	records := []*User{}
	total, err := a.db.NewSelect().
		Model(&records).
		Relation("Roles").
		OrderExpr(fmt.Sprintf("usr.%s %s", column, dir)).
		Limit(size).
		Offset(page * size).
		ScanAndCount(ctx)

	return records, total, err
}

// UpdateProfile mutates the mutable account fields, keeping the email
// uniqueness invariant: moving onto an email another account owns fails.
func (a *usersRepo) UpdateProfile(ctx context.Context, id uuid.UUID, username, name, email string) (*User, error) {
	var out *User
	err := a.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := a.GetByIdentifierTx(ctx, tx, id.String())
		if err != nil {
			return err
		}

		if email != "" && email != record.Email {
			taken, err := a.ExistsByEmailTx(ctx, tx, email)
			if err != nil {
				return err
			}
			if taken {
				return ErrDuplicateEmail
			}
			record.Email = email
		}

		if username != "" && username != record.Username {
			taken, err := a.ExistsByUsernameTx(ctx, tx, username)
			if err != nil {
				return err
			}
			if taken {
				return ErrDuplicateUsername
			}
			record.Username = username
		}

		if name != "" {
			record.Name = name
		}

		updated, err := a.Repository.UpdateTx(ctx, tx, record)
		if err != nil {
			return err
		}
		out = updated
		return nil
	})
	return out, err
}

func (a *usersRepo) Remove(ctx context.Context, id uuid.UUID) error {
	res, err := a.db.NewDelete().
		Model((*User)(nil)).
		Where("?TableAlias.id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}

	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{"id": id.String()})
	}

	return nil
}

func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}

func sortableUserColumn(sortBy string) string {
	switch strings.ToLower(strings.TrimSpace(sortBy)) {
	case "username":
		return "username"
	case "email":
		return "email"
	case "name":
		return "name"
	case "created_at", "createdat", "created":
		return "created_at"
	default:
		return "id"
	}
}

type identifierOption struct {
	column string
	value  string
}

func resolveUserIdentifier(identifier string) []identifierOption {
	trimmed := strings.TrimSpace(identifier)
	if trimmed == "" {
		return nil
	}

	options := make([]identifierOption, 0, 3)

	if isUUID(trimmed) {
		options = append(options, identifierOption{
			column: "id",
			value:  trimmed,
		})
	}

	if isEmail(trimmed) {
		options = append(options, identifierOption{
			column: "email",
			value:  trimmed,
		})
	}

	options = append(options, identifierOption{
		column: "username",
		value:  trimmed,
	})

	return options
}

func isEmail(email string) bool {
	_, err := mail.ParseAddress(email)
	return err == nil
}

func isUUID(identifier string) bool {
	_, err := uuid.Parse(identifier)
	return err == nil
}
