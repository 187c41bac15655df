package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/carosello75/courseconnect/core/user"
)

type userApi struct {
	svc      user.Service
	auth     *authenticator
	validate *validator.Validate
}

func registerUserAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	auth *authenticator,
	svc user.Service,
	validate *validator.Validate,
) {
	api := userApi{
		svc:      svc,
		auth:     auth,
		validate: validate,
	}

	ug := g.Group("/users")

	// un-authed endpoints
	ug.POST("/register", api.register)
	ug.POST("/login", api.login)

	// authed endpoints
	ag := ug.Group("", jwt)
	ag.POST("/token-refresh", api.refreshToken)
	ag.GET("/me", api.me)
	ag.DELETE("/:id", api.destroy, adminMiddleware())
}

// Schemas

type RegisterRequest struct {
	Name            string `json:"name"`
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
	AsInstructor    bool   `json:"as_instructor"`
}

func (r RegisterRequest) newUser() user.NewUser {
	roles := user.StudentRoles
	if r.AsInstructor {
		roles = user.InstructorRoles
	}
	return user.NewUser{
		Name:            r.Name,
		Username:        r.Username,
		Email:           r.Email,
		Password:        r.Password,
		PasswordConfirm: r.PasswordConfirm,
		Roles:           append([]string(nil), roles...),
	}
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

// Handlers

func (api *userApi) register(ctx echo.Context) error {
	var data RegisterRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RegisterRequest")
	}
	usr, err := api.svc.Create(ctx.Request().Context(), data.newUser())
	if err != nil {
		return errors.Wrap(err, "creating user")
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (api *userApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	claims, err := api.auth.authenticate(ctx, data.Username, data.Password)
	if err != nil {
		return errors.Wrap(err, "authenticating user")
	}
	token, err := GenerateToken(api.auth.conf, claims)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, TokenResponse{Token: token})
}

func (api *userApi) refreshToken(ctx echo.Context) error {
	token, err := api.auth.refreshToken(ctx)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, TokenResponse{Token: token})
}

func (api *userApi) me(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) destroy(ctx echo.Context) error {
	ref, err := mustContextRef(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), ref, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting user")
	}
	return ctx.NoContent(http.StatusNoContent)
}
