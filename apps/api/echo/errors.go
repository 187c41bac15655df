package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/carosello75/courseconnect/core"
	"github.com/carosello75/courseconnect/core/access"
	"github.com/carosello75/courseconnect/core/course"
	"github.com/carosello75/courseconnect/core/enrollment"
	"github.com/carosello75/courseconnect/core/progress"
	"github.com/carosello75/courseconnect/core/user"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errAccountDeactivated   = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errRefreshExpired       = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, core.ErrForbidden.Error())

	transientMessage = "temporarily unavailable"

	// domain errors and the status they are reported with
	domainErrStatus = []struct {
		err  error
		code int
	}{
		{core.ErrForbidden, http.StatusForbidden},
		{user.ErrNotFound, http.StatusNotFound},
		{course.ErrCourseNotFound, http.StatusNotFound},
		{course.ErrLessonNotFound, http.StatusNotFound},
		{enrollment.ErrAlreadyEnrolled, http.StatusConflict},
		{enrollment.ErrNotEnrolled, http.StatusForbidden},
		{access.ErrAccessDenied, http.StatusForbidden},
		{progress.ErrAlreadyCompleted, http.StatusBadRequest},
	}
)

// domainStatus returns the status of a domain error.
// Causes are compared, never hashed: validator.ValidationErrors is a slice.
func domainStatus(cause error) (int, bool) {
	for _, de := range domainErrStatus {
		if de.err == cause {
			return de.code, true
		}
	}
	return 0, false
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		cause := errors.Cause(err)
		if status, ok := domainStatus(cause); ok {
			code = status
			message = cause.Error()
		} else {
			switch origErr := cause.(type) {
			case *echo.HTTPError:
				if origErr == middleware.ErrJWTMissing {
					code = http.StatusUnauthorized
					message = origErr.Message
					break
				}
				if origErr.Internal != nil {
					if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
						origErr = herr
					}
				}
				code = origErr.Code
				message = origErr.Message
			case validator.ValidationErrors:
				fldErrs := make(map[string]string, len(origErr))
				for _, vErr := range origErr {
					fldErrs[vErr.Field()] = vErr.Translate(translator)
				}
				code = http.StatusBadRequest
				message = fldErrs
			case *core.ValidationError:
				if origErr.Fields != nil {
					fldErrs := make(map[string]string, len(origErr.Fields))
					for _, fErr := range origErr.Fields {
						fldErrs[fErr.Field] = fErr.Error
					}
					message = fldErrs
				} else {
					message = origErr.Error()
				}
				code = http.StatusBadRequest
			case *core.TransientError:
				code = http.StatusServiceUnavailable
				message = transientMessage
				logger.Warn(transientMessage, append([]interface{}{err}, contextLogArgs(ctx)...)...)
			default: // any other error is a server error
				code = http.StatusInternalServerError
				msg := http.StatusText(http.StatusInternalServerError)
				message = msg
				logger.Error(msg, append([]interface{}{errors.Wrap(err, msg)}, contextLogArgs(ctx)...)...)
			}
		}

		if ctx.Echo().Debug {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}

// contextLogArgs attaches the requesting user to log entries.
func contextLogArgs(ctx echo.Context) []interface{} {
	if ref := getContextRef(ctx); ref != nil {
		return []interface{}{*ref}
	}
	return nil
}
