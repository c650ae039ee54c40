package users

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Roles is the store for the persisted rows backing the closed role set.
type Roles interface {
	repository.Repository[*RoleRecord]

	GetByName(ctx context.Context, role Role) (*RoleRecord, error)
	GetByNameTx(ctx context.Context, tx bun.IDB, role Role) (*RoleRecord, error)
	EnsureDefaults(ctx context.Context) error
}

type rolesRepo struct {
	repository.Repository[*RoleRecord]
	db *bun.DB
}

var _ Roles = (*rolesRepo)(nil)

// NewRolesRepository builds the Roles repository over a bun DB handle.
func NewRolesRepository(db *bun.DB) Roles {
	repo := repository.NewRepository[*RoleRecord](db, repository.ModelHandlers[*RoleRecord]{
		NewRecord: func() *RoleRecord { return &RoleRecord{} },
		GetID: func(r *RoleRecord) uuid.UUID {
			if r == nil {
				return uuid.Nil
			}
			return r.ID
		},
		SetID: func(r *RoleRecord, id uuid.UUID) {
			if r != nil {
				r.ID = id
			}
		},
		GetIdentifier: func() string {
			return "name"
		},
	})

	return &rolesRepo{
		Repository: repo,
		db:         db,
	}
}

func (r *rolesRepo) GetByName(ctx context.Context, role Role) (*RoleRecord, error) {
	return r.GetByNameTx(ctx, r.db, role)
}

// GetByNameTx resolves a role variant to its persisted row. A valid variant
// with no backing row means the deployment skipped seeding; the caller gets
// the role-not-configured error rather than a silent default.
func (r *rolesRepo) GetByNameTx(ctx context.Context, tx bun.IDB, role Role) (*RoleRecord, error) {
	if !role.IsValid() {
		return nil, ErrRoleNotConfigured.Clone().
			WithMetadata(map[string]any{"role": string(role)})
	}

	record := &RoleRecord{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.name = ?", string(role)).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrRoleNotConfigured.Clone().
				WithMetadata(map[string]any{"role": string(role)})
		}
		return nil, err
	}

	return record, nil
}

// EnsureDefaults seeds the closed role set on startup. Existing rows are
// left untouched, so reruns are safe.
func (r *rolesRepo) EnsureDefaults(ctx context.Context) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, role := range AllRoles() {
			record := &RoleRecord{
				ID:   uuid.New(),
				Name: string(role),
			}
			_, err := tx.NewInsert().
				Model(record).
				On("CONFLICT (name) DO NOTHING").
				Exec(ctx)
			if err != nil {
				return err
			}
		}
		return nil
	})
}
