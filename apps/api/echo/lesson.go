package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/carosello75/courseconnect/core/access"
	"github.com/carosello75/courseconnect/core/enrollment"
	"github.com/carosello75/courseconnect/core/progress"
)

type lessonApi struct {
	access   *access.Service
	progress *progress.Tracker
}

func registerLessonAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	optionalJWT echo.MiddlewareFunc,
	gate *access.Service,
	tracker *progress.Tracker,
) {
	api := lessonApi{access: gate, progress: tracker}

	lg := g.Group("/lessons")
	lg.GET("/:id", api.retrieve, optionalJWT)
	lg.POST("/:id/complete", api.complete, jwt)
}

func (api *lessonApi) retrieve(ctx echo.Context) error {
	lv, err := api.access.GetLesson(ctx.Request().Context(), getContextRef(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting lesson")
	}
	return ctx.JSON(http.StatusOK, lv)
}

func (api *lessonApi) complete(ctx echo.Context) error {
	ref, err := mustContextRef(ctx)
	if err != nil {
		return err
	}
	res, err := api.progress.CompleteLesson(ctx.Request().Context(), ref, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "completing lesson")
	}
	return ctx.JSON(http.StatusOK, res)
}

type enrollmentApi struct {
	enrollments *enrollment.Service
}

func registerEnrollmentAPI(g *echo.Group, jwt echo.MiddlewareFunc, enrollments *enrollment.Service) {
	api := enrollmentApi{enrollments: enrollments}
	g.GET("/enrollments", api.query, jwt)
}

func (api *enrollmentApi) query(ctx echo.Context) error {
	ref, err := mustContextRef(ctx)
	if err != nil {
		return err
	}
	enrs, err := api.enrollments.ListForUser(ctx.Request().Context(), ref.ID)
	if err != nil {
		return errors.Wrap(err, "listing enrollments")
	}
	return ctx.JSON(http.StatusOK, enrs)
}
