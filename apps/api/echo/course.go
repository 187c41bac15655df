package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/carosello75/courseconnect/core/access"
	"github.com/carosello75/courseconnect/core/course"
	"github.com/carosello75/courseconnect/core/enrollment"
	"github.com/carosello75/courseconnect/core/progress"
)

type courseApi struct {
	courses     *course.Service
	access      *access.Service
	enrollments *enrollment.Service
	progress    *progress.Tracker
}

func registerCourseAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	optionalJWT echo.MiddlewareFunc,
	courses *course.Service,
	gate *access.Service,
	enrollments *enrollment.Service,
	tracker *progress.Tracker,
) {
	api := courseApi{
		courses:     courses,
		access:      gate,
		enrollments: enrollments,
		progress:    tracker,
	}

	cg := g.Group("/courses")

	// anonymous viewers allowed
	cg.GET("", api.query, optionalJWT)
	cg.GET("/:id", api.retrieve, optionalJWT)
	cg.GET("/:id/lessons", api.lessons, optionalJWT)

	cg.POST("", api.create, jwt, teacherMiddleware())
	cg.DELETE("/:id", api.destroy, jwt)
	cg.POST("/:id/lessons", api.addLesson, jwt)
	cg.POST("/:id/enroll", api.enroll, jwt)
	cg.GET("/:id/progress", api.getProgress, jwt)
}

// Schemas

type EnrollResponse struct {
	EnrollmentID       string `json:"enrollment_id"`
	ProgressPercentage int    `json:"progress_percentage"`
}

// Handlers

func (api *courseApi) query(ctx echo.Context) error {
	var filter course.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to course.QueryFilter")
	}
	courses, err := api.courses.List(ctx.Request().Context(), getContextRef(ctx), filter)
	if err != nil {
		return errors.Wrap(err, "listing courses")
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *courseApi) retrieve(ctx echo.Context) error {
	crs, err := api.courses.Get(ctx.Request().Context(), getContextRef(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting course")
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *courseApi) lessons(ctx echo.Context) error {
	views, err := api.access.ListLessons(ctx.Request().Context(), getContextRef(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing lessons")
	}
	return ctx.JSON(http.StatusOK, views)
}

func (api *courseApi) create(ctx echo.Context) error {
	ref, err := mustContextRef(ctx)
	if err != nil {
		return err
	}
	var data course.NewCourse
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to course.NewCourse")
	}
	crs, err := api.courses.Create(ctx.Request().Context(), ref, data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, crs)
}

func (api *courseApi) destroy(ctx echo.Context) error {
	ref, err := mustContextRef(ctx)
	if err != nil {
		return err
	}
	if err = api.courses.Delete(ctx.Request().Context(), ref, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *courseApi) addLesson(ctx echo.Context) error {
	ref, err := mustContextRef(ctx)
	if err != nil {
		return err
	}
	var data course.NewLesson
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to course.NewLesson")
	}
	lsn, err := api.courses.AddLesson(ctx.Request().Context(), ref, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "adding lesson")
	}
	return ctx.JSON(http.StatusCreated, lsn)
}

func (api *courseApi) enroll(ctx echo.Context) error {
	ref, err := mustContextRef(ctx)
	if err != nil {
		return err
	}
	enr, err := api.enrollments.Enroll(ctx.Request().Context(), ref, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "enrolling")
	}
	return ctx.JSON(http.StatusCreated, EnrollResponse{
		EnrollmentID:       enr.ID,
		ProgressPercentage: enr.ProgressPercentage,
	})
}

func (api *courseApi) getProgress(ctx echo.Context) error {
	ref, err := mustContextRef(ctx)
	if err != nil {
		return err
	}
	sum, err := api.progress.GetProgress(ctx.Request().Context(), ref, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting progress")
	}
	return ctx.JSON(http.StatusOK, sum)
}
