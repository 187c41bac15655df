package echoapi

import (
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/carosello75/courseconnect/core"
	"github.com/carosello75/courseconnect/core/user"
)

const (
	contextTokenKey = "userToken"
	contextUserKey  = "user"
	tokenAudience   = "CourseConnect"
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64    `json:"oriat,omitempty"`
	Name         string   `json:"name,omitempty"`
	Username     string   `json:"username,omitempty"`
	Email        string   `json:"email,omitempty"`
	IsStudent    bool     `json:"is_student,omitempty"`
	IsInstructor bool     `json:"is_instructor,omitempty"`
	IsAdmin      bool     `json:"is_admin,omitempty"`
	Roles        []string `json:"roles,omitempty"`
}

// Ref returns the identity the core services act on behalf of.
func (c Claims) Ref() user.Ref {
	name := c.Name
	if name == "" {
		name = c.Username
	}
	return user.NewRef(c.Subject, name, c.Roles)
}

type authenticator struct {
	conf   *core.Config
	svc    user.Service
	config middleware.JWTConfig
}

func newAuthenticator(conf *core.Config, svc user.Service) *authenticator {
	return &authenticator{
		conf: conf,
		svc:  svc,
		config: middleware.JWTConfig{
			SigningKey:    []byte(conf.SecretKey),
			SigningMethod: middleware.AlgorithmHS256,
			ContextKey:    contextTokenKey,
			Claims:        new(Claims),
		},
	}
}

// required rejects requests without a valid token.
func (a *authenticator) required() echo.MiddlewareFunc {
	return middleware.JWTWithConfig(a.config)
}

// optional lets anonymous requests through; a token, when sent, must still be valid.
func (a *authenticator) optional() echo.MiddlewareFunc {
	cfg := a.config
	cfg.Skipper = func(ctx echo.Context) bool {
		return strings.TrimSpace(ctx.Request().Header.Get(echo.HeaderAuthorization)) == ""
	}
	return middleware.JWTWithConfig(cfg)
}

func GetUserClaims(conf *core.Config, usr user.User, origIat ...int64) *Claims {
	now := time.Now()
	nownix := now.Unix()

	oriat := nownix
	if len(origIat) > 0 {
		oriat = origIat[0]
	}

	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   usr.ID,
			Audience:  tokenAudience,
			ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt: oriat,
		Name:         usr.DisplayName(),
		Username:     usr.Username,
		Email:        usr.Email,
		IsStudent:    usr.IsStudent(),
		IsInstructor: usr.IsInstructor(),
		IsAdmin:      usr.IsAdmin(),
		Roles:        usr.Roles,
	}
}

// GenerateToken generates a signed JWT token string representing the user Claims.
func GenerateToken(conf *core.Config, claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.GetSigningMethod(middleware.AlgorithmHS256), claims)
	ss, err := token.SignedString([]byte(conf.SecretKey))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func (a *authenticator) authenticate(ctx echo.Context, uname, pwd string) (*Claims, error) {
	rctx := ctx.Request().Context()
	usr, err := a.svc.GetByUsernameOrEmail(rctx, uname)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return nil, errAuthenticationFailed
		}
		return nil, errors.Wrap(err, "finding user by username or email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return nil, errAuthenticationFailed
	}
	if !usr.Active() {
		return nil, errAccountDeactivated
	}
	if usr, err = a.svc.SetLastLogin(rctx, usr); err != nil {
		return nil, errors.Wrap(err, "setting lastLogin")
	}
	return GetUserClaims(a.conf, usr), nil
}

func (a *authenticator) refreshToken(ctx echo.Context) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context claims")
	}

	usr, err := getContextUser(ctx, a.svc)
	if err != nil {
		return "", errors.Wrap(err, "getting context user")
	}
	if !usr.Active() {
		return "", errAccountDeactivated
	}

	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(a.conf.Server.JWTRefreshExpirationDelta)
	if time.Now().After(expTime) {
		return "", errRefreshExpired
	}

	token, err := GenerateToken(a.conf, GetUserClaims(a.conf, usr, claims.OrigIssuedAt))
	return token, errors.Wrap(err, "generating token")
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

// getContextRef returns the authenticated viewer; nil when the request is anonymous.
func getContextRef(ctx echo.Context) *user.Ref {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return nil
	}
	ref := claims.Ref()
	return &ref
}

// mustContextRef is getContextRef for routes behind the required JWT middleware.
func mustContextRef(ctx echo.Context) (user.Ref, error) {
	ref := getContextRef(ctx)
	if ref == nil {
		return user.Ref{}, errUnauthorized
	}
	return *ref, nil
}

func getContextUser(ctx echo.Context, svc user.Service) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return user.User{}, errors.Wrap(err, "getting context claims")
	}
	usr, err := svc.GetByID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.User{}, errUnauthorized
		}
		return user.User{}, errors.Wrap(err, "finding user by ID")
	}
	ctx.Set(contextUserKey, usr)
	return usr, nil
}
