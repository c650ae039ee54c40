package users

import (
	"strconv"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// RegisterUserRoutes mounts the account CRUD endpoints. Which of these
// require a role is decided by the route policy, not here; the handlers
// assume authorization already happened.
func RegisterUserRoutes[T any](app router.Router[T], opts ...UserControllerOption) {
	controller := NewUserController(opts...)

	app.Get("/", controller.ListUsers).SetName("users-list.get")
	app.Get("/paginated", controller.ListUsersPaginated).SetName("users-paginated.get")
	app.Get("/email/:email", controller.GetUserByEmail).SetName("users-by-email.get")
	app.Get("/:id", controller.GetUser).SetName("users-show.get")
	app.Post("/", controller.CreateUser).SetName("users-create.post")
	app.Put("/:id", controller.UpdateUser).SetName("users-update.put")
	app.Delete("/:id", controller.DeleteUser).SetName("users-delete.delete")
}

type UserController struct {
	Logger       Logger
	Repo         RepositoryManager
	Config       Config
	ErrorHandler router.ErrorHandler
}

type UserControllerOption func(*UserController) *UserController

func NewUserController(opts ...UserControllerOption) *UserController {
	c := &UserController{
		Logger:       defLogger{},
		ErrorHandler: defaultControllerErrHandler,
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in user controller...")
	}

	if c.Config == nil {
		panic("Missing Config in user controller...")
	}

	return c
}

// UserResponse is the outward account shape. It never carries the password
// hash.
type UserResponse struct {
	ID        string     `json:"id"`
	Name      string     `json:"name,omitempty"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	Phone     string     `json:"phone,omitempty"`
	Roles     []string   `json:"roles"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

func toUserResponse(user *User) UserResponse {
	return UserResponse{
		ID:        user.ID.String(),
		Name:      user.Name,
		Username:  user.Username,
		Email:     user.Email,
		Phone:     user.Phone,
		Roles:     user.Authorities(),
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}

func toUserResponses(records []*User) []UserResponse {
	out := make([]UserResponse, 0, len(records))
	for _, record := range records {
		out = append(out, toUserResponse(record))
	}
	return out
}

// PageResponse is the pagination envelope.
type PageResponse struct {
	Content       []UserResponse `json:"content"`
	Page          int            `json:"page"`
	Size          int            `json:"size"`
	TotalElements int            `json:"totalElements"`
	TotalPages    int            `json:"totalPages"`
}

func (u *UserController) ListUsers(ctx router.Context) error {
	records, err := u.Repo.Users().List(ctx.Context())
	if err != nil {
		u.Logger.Error("list users: %s", err)
		return u.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, toUserResponses(records))
}

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

func (u *UserController) ListUsersPaginated(ctx router.Context) error {
	page := queryInt(ctx, "page", 0)
	size := queryInt(ctx, "size", defaultPageSize)
	sortBy := ctx.Query("sortBy", "id")
	direction := ctx.Query("direction", "asc")

	if page < 0 {
		page = 0
	}
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}

	records, total, err := u.Repo.Users().ListPage(ctx.Context(), page, size, sortBy, direction)
	if err != nil {
		u.Logger.Error("paginate users: %s", err)
		return u.ErrorHandler(ctx, err)
	}

	totalPages := total / size
	if total%size != 0 {
		totalPages++
	}

	return ctx.JSON(router.StatusOK, PageResponse{
		Content:       toUserResponses(records),
		Page:          page,
		Size:          size,
		TotalElements: total,
		TotalPages:    totalPages,
	})
}

func (u *UserController) GetUser(ctx router.Context) error {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return u.ErrorHandler(ctx, ErrUserNotFound)
	}

	record, err := u.Repo.Users().GetByIdentifier(ctx.Context(), id.String())
	if err != nil {
		return u.notFoundOr(ctx, err)
	}

	return ctx.JSON(router.StatusOK, toUserResponse(record))
}

func (u *UserController) GetUserByEmail(ctx router.Context) error {
	email := strings.TrimSpace(ctx.Param("email"))
	if email == "" {
		return u.ErrorHandler(ctx, ErrUserNotFound)
	}

	record, err := u.Repo.Users().GetByIdentifier(ctx.Context(), email)
	if err != nil {
		return u.notFoundOr(ctx, err)
	}

	return ctx.JSON(router.StatusOK, toUserResponse(record))
}

func (u *UserController) CreateUser(ctx router.Context) error {
	payload := new(SignupRequest)

	if err := ctx.Bind(payload); err != nil {
		u.Logger.Error("create user parse payload: %s", err)
		return u.ErrorHandler(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse request body").
			WithCode(goerrors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return validationError(ctx, err)
	}

	req := RegisterUserMessage{
		Name:        payload.Name,
		Username:    payload.Username,
		Email:       payload.Email,
		Phone:       payload.Phone,
		Password:    payload.Password,
		Roles:       payload.Roles,
		StrictRoles: u.Config.GetStrictRoles(),
	}

	registerUser := NewRegisterUserHandler(u.Repo, u.Config.GetBcryptCost())
	record, err := registerUser.Execute(ctx.Context(), req)
	if err != nil {
		u.Logger.Error("create user execute: %s", err)
		return u.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusCreated, toUserResponse(record))
}

// UpdateUserRequest carries the mutable profile fields. Empty fields are
// left untouched.
type UpdateUserRequest struct {
	Name     string `form:"name" json:"name"`
	Username string `form:"username" json:"username"`
	Email    string `form:"email" json:"email"`
}

// Validate will validate the payload
func (r UpdateUserRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Length(0, 200)),
		validation.Field(&r.Username, validation.Length(3, 50)),
		validation.Field(&r.Email, validation.Length(6, 100), is.Email),
	)
}

func (u *UserController) UpdateUser(ctx router.Context) error {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return u.ErrorHandler(ctx, ErrUserNotFound)
	}

	payload := new(UpdateUserRequest)
	if err := ctx.Bind(payload); err != nil {
		u.Logger.Error("update user parse payload: %s", err)
		return u.ErrorHandler(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse request body").
			WithCode(goerrors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return validationError(ctx, err)
	}

	record, err := u.Repo.Users().UpdateProfile(ctx.Context(), id, payload.Username, payload.Name, payload.Email)
	if err != nil {
		return u.notFoundOr(ctx, err)
	}

	return ctx.JSON(router.StatusOK, toUserResponse(record))
}

func (u *UserController) DeleteUser(ctx router.Context) error {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return u.ErrorHandler(ctx, ErrUserNotFound)
	}

	if err := u.Repo.Users().Remove(ctx.Context(), id); err != nil {
		return u.notFoundOr(ctx, err)
	}

	return ctx.JSON(router.StatusOK, MessageResponse{Message: "User deleted successfully!"})
}

func (u *UserController) notFoundOr(ctx router.Context, err error) error {
	if repository.IsRecordNotFound(err) || goerrors.IsNotFound(err) {
		return u.ErrorHandler(ctx, ErrUserNotFound)
	}
	u.Logger.Error("user request failed: %s", err)
	return u.ErrorHandler(ctx, err)
}

func queryInt(ctx router.Context, key string, def int) int {
	raw := ctx.Query(key, "")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
