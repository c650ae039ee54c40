package users

import (
	"context"
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/nyaruka/phonenumbers"
)

// HTTPAuthenticator is the slice of authenticator behavior the controllers
// need.
type HTTPAuthenticator interface {
	Login(ctx context.Context, identifier, password string) (string, error)
}

// RegisterAuthRoutes mounts the signin and signup endpoints.
func RegisterAuthRoutes[T any](app router.Router[T], opts ...AuthControllerOption) {
	controller := NewAuthController(opts...)

	app.Post(controller.Routes.Signin, controller.SigninPost).
		SetName("auth-signin.post")

	app.Post(controller.Routes.Signup, controller.SignupPost).
		SetName("auth-signup.post")
}

type AuthControllerRoutes struct {
	Signin string
	Signup string
}

type AuthController struct {
	Debug        bool
	Logger       Logger
	Repo         RepositoryManager
	Routes       *AuthControllerRoutes
	Auther       HTTPAuthenticator
	Config       Config
	ErrorHandler router.ErrorHandler
}

type AuthControllerOption func(*AuthController) *AuthController

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger:       defLogger{},
		ErrorHandler: defaultControllerErrHandler,
		Routes: &AuthControllerRoutes{
			Signin: "/signin",
			Signup: "/signup",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in auth controller...")
	}

	if c.Auther == nil {
		panic("Missing HTTPAuthenticator in auth controller...")
	}

	if c.Config == nil {
		panic("Missing Config in auth controller...")
	}

	return c
}

// SigninRequest payload
type SigninRequest struct {
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r SigninRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Username,
			validation.Required,
		),
		validation.Field(
			&r.Password,
			validation.Required,
		),
	)
}

// JwtResponse is the signin response body: the bearer token plus a summary
// of the authenticated account.
type JwtResponse struct {
	Token     string   `json:"token"`
	TokenType string   `json:"tokenType"`
	ID        string   `json:"id"`
	Username  string   `json:"username"`
	Email     string   `json:"email"`
	Roles     []string `json:"roles"`
}

func (a *AuthController) SigninPost(ctx router.Context) error {
	payload := new(SigninRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("signin parse payload: %s", err)
		return a.ErrorHandler(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse request body").
			WithCode(goerrors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return validationError(ctx, err)
	}

	token, err := a.Auther.Login(ctx.Context(), payload.Username, payload.Password)
	if err != nil {
		// every failure path reports the same credential error
		a.Logger.Info("signin rejected for identifier=%q", payload.Username)
		return a.ErrorHandler(ctx, ErrInvalidCredentials)
	}

	user, err := a.Repo.Users().GetByIdentifier(ctx.Context(), payload.Username)
	if err != nil {
		a.Logger.Error("signin account read: %s", err)
		return a.ErrorHandler(ctx, ErrInvalidCredentials)
	}

	if a.Debug {
		fmt.Println(print.MaybePrettyJSON(user))
	}

	return ctx.JSON(router.StatusOK, JwtResponse{
		Token:     token,
		TokenType: a.Config.GetAuthScheme(),
		ID:        user.ID.String(),
		Username:  user.Username,
		Email:     user.Email,
		Roles:     user.Authorities(),
	})
}

// SignupRequest is the registration payload. Roles is optional; an absent
// or empty list grants the default role.
type SignupRequest struct {
	Name     string   `form:"name" json:"name"`
	Username string   `form:"username" json:"username"`
	Email    string   `form:"email" json:"email"`
	Phone    string   `form:"phone" json:"phone"`
	Password string   `form:"password" json:"password"`
	Roles    []string `form:"roles" json:"roles"`
}

// Validate will validate the payload
func (r SignupRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Length(0, 200)),
		validation.Field(&r.Username, validation.Required, validation.Length(3, 50)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Phone, validation.By(ValidatePhoneNumber)),
		validation.Field(&r.Password, validation.Required, validation.Length(6, 100)),
	)
}

// MessageResponse is the minimal acknowledgment body for mutations that
// return no record.
type MessageResponse struct {
	Message string `json:"message"`
}

func (a *AuthController) SignupPost(ctx router.Context) error {
	payload := new(SignupRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("signup parse payload: %s", err)
		return a.ErrorHandler(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse request body").
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
		StrictRoles: a.Config.GetStrictRoles(),
	}

	registerUser := NewRegisterUserHandler(a.Repo, a.Config.GetBcryptCost())
	user, err := registerUser.Execute(ctx.Context(), req)
	if err != nil {
		a.Logger.Error("signup execute: %s", err)
		return a.ErrorHandler(ctx, err)
	}

	a.Logger.Info("registered user id=%s username=%s", user.ID, user.Username)

	return ctx.JSON(router.StatusCreated, MessageResponse{
		Message: "User registered successfully!",
	})
}

// ValidatePhoneNumber accepts an empty value or a parseable, valid phone
// number in international or US national format.
func ValidatePhoneNumber(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}

	num, err := phonenumbers.Parse(s, "US")
	if err != nil {
		return errors.New("must be a valid phone number")
	}

	if !phonenumbers.IsValidNumber(num) {
		return errors.New("must be a valid phone number")
	}

	return nil
}

// validationError renders ozzo validation failures as a field-to-message
// map with a 400 status.
func validationError(ctx router.Context, err error) error {
	return ctx.JSON(router.StatusBadRequest, router.ViewContext{
		"error": map[string]any{
			"message":   "validation failed",
			"text_code": "VALIDATION_ERROR",
			"code":      router.StatusBadRequest,
			"fields":    FormatValidationErrorToMap(err),
		},
	})
}

// FormatValidationErrorToMap flattens ozzo's error tree into field names
// and messages.
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		for field, ferr := range verrs {
			out[field] = ferr.Error()
		}
		return out
	}
	if err != nil {
		out["payload"] = err.Error()
	}
	return out
}

func defaultControllerErrHandler(c router.Context, err error) error {
	richErr := asRichError(err, goerrors.CategoryInternal, goerrors.CodeInternal)
	return c.JSON(richErr.Code, errorBody(richErr))
}
