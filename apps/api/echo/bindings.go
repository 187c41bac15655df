package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

const limitParam = "limit"

// bindLimit reads the optional ?limit= query param; 0 means unset.
func bindLimit(ctx echo.Context) (int, error) {
	val := ctx.QueryParam(limitParam)
	if val == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(val)
	if err != nil || limit < 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, limitParam+" must be a positive integer")
	}
	return limit, nil
}
