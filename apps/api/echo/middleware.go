package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

func adminMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.IsAdmin {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// teacherMiddleware lets admins and instructors through.
func teacherMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			ref, err := mustContextRef(ctx)
			if err != nil {
				return err
			}
			if ref.CanTeach {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}
