package course

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	pkgerrors "github.com/pkg/errors"

	"github.com/carosello75/courseconnect/core"
	"github.com/carosello75/courseconnect/core/metrics"
	"github.com/carosello75/courseconnect/core/notification"
	"github.com/carosello75/courseconnect/core/user"
)

var (
	// errors
	ErrCourseNotFound  = errors.New("course not found")
	ErrLessonNotFound  = errors.New("lesson not found")
	ErrOrderIndexTaken = errors.New("a lesson with this order index already exists in the course")

	domainErrs       = []error{ErrCourseNotFound, ErrLessonNotFound}
	lessonDomainErrs = []error{ErrCourseNotFound, ErrLessonNotFound, ErrOrderIndexTaken}
)

type (
	Repository interface {
		CreateCourse(ctx context.Context, crs Course) (Course, error)
		GetCourse(ctx context.Context, id string) (Course, error)
		// QueryCourses returns the courses matching filter, newest first.
		QueryCourses(ctx context.Context, filter QueryFilter, vis Visibility) ([]Course, error)
		// CountLessons returns the live lesson count of each course; missing courses count 0.
		CountLessons(ctx context.Context, courseIDs ...string) (map[string]int, error)
		ListCourseIDsByInstructors(ctx context.Context, ids ...string) ([]string, error)
		// DeleteCourse removes the lessons of the course, then the course.
		DeleteCourse(ctx context.Context, id string) error

		// CreateLesson returns ErrOrderIndexTaken when the course already has a lesson at lsn.OrderIndex.
		CreateLesson(ctx context.Context, lsn Lesson) (Lesson, error)
		GetLesson(ctx context.Context, id string) (Lesson, error)
		// ListLessons returns the lessons of a course ordered by OrderIndex.
		ListLessons(ctx context.Context, courseID string) ([]Lesson, error)
	}

	// EnrollmentChecker tells whether a user is enrolled in a course.
	EnrollmentChecker interface {
		Exists(ctx context.Context, userID, courseID string) (bool, error)
	}

	// Dependent owns records referencing a course; they are removed before it.
	Dependent interface {
		DeleteByCourse(ctx context.Context, courseID string) error
	}

	Service struct {
		txr         core.Transactor
		repo        Repository
		enrollments EnrollmentChecker
		emitter     notification.Emitter
		validate    *validator.Validate
		dependents  []Dependent
	}
)

var _ user.Dependent = (*Service)(nil)

// NewService returns the course catalog.
// dependents are cleaned in the given order when a course is deleted.
func NewService(
	txr core.Transactor,
	repo Repository,
	enrollments EnrollmentChecker,
	emitter notification.Emitter,
	validate *validator.Validate,
	dependents ...Dependent,
) *Service {
	return &Service{
		txr:         txr,
		repo:        repo,
		enrollments: enrollments,
		emitter:     emitter,
		validate:    validate,
		dependents:  dependents,
	}
}

// IsStaff reports whether viewer administers crs: an admin or its instructor.
func IsStaff(viewer *user.Ref, crs Course) bool {
	return viewer != nil && (viewer.IsAdmin || viewer.ID == crs.InstructorID)
}

func (svc *Service) canView(ctx context.Context, viewer *user.Ref, crs Course) (bool, error) {
	if !crs.IsPrivate || IsStaff(viewer, crs) {
		return true, nil
	}
	if viewer == nil {
		return false, nil
	}
	return svc.enrollments.Exists(ctx, viewer.ID, crs.ID)
}

// List returns the catalog as seen by viewer: private courses are hidden unless viewer is admin or their instructor.
func (svc *Service) List(ctx context.Context, viewer *user.Ref, filter QueryFilter) ([]Course, error) {
	filter.Clean()
	var vis Visibility
	if viewer != nil {
		vis = Visibility{AllPrivate: viewer.IsAdmin, InstructorID: viewer.ID}
	}

	courses, err := svc.repo.QueryCourses(ctx, filter, vis)
	if err != nil {
		return nil, metrics.Boundary("course.list", pkgerrors.Wrap(err, "querying courses"))
	}
	if len(courses) == 0 {
		return []Course{}, nil
	}

	ids := make([]string, 0, len(courses))
	for _, crs := range courses {
		ids = append(ids, crs.ID)
	}
	counts, err := svc.repo.CountLessons(ctx, ids...)
	if err != nil {
		return nil, metrics.Boundary("course.list", pkgerrors.Wrap(err, "counting lessons"))
	}
	for i := range courses {
		courses[i].TotalLessons = counts[courses[i].ID]
	}
	return courses, nil
}

// Get returns a course visible to viewer; private courses not visible to them are reported missing.
func (svc *Service) Get(ctx context.Context, viewer *user.Ref, id string) (Course, error) {
	crs, err := svc.get(ctx, viewer, id)
	return crs, metrics.Boundary("course.get", err, domainErrs...)
}

func (svc *Service) get(ctx context.Context, viewer *user.Ref, id string) (Course, error) {
	crs, err := svc.repo.GetCourse(ctx, id)
	if err != nil {
		return Course{}, err
	}
	ok, err := svc.canView(ctx, viewer, crs)
	if err != nil {
		return Course{}, pkgerrors.Wrap(err, "checking enrollment")
	}
	if !ok {
		return Course{}, ErrCourseNotFound
	}
	if crs.TotalLessons, err = svc.totalLessons(ctx, crs.ID); err != nil {
		return Course{}, err
	}
	return crs, nil
}

// TotalLessons counts the lessons of a course at call time.
func (svc *Service) TotalLessons(ctx context.Context, courseID string) (int, error) {
	n, err := svc.totalLessons(ctx, courseID)
	return n, metrics.Boundary("course.total_lessons", err)
}

func (svc *Service) totalLessons(ctx context.Context, courseID string) (int, error) {
	counts, err := svc.repo.CountLessons(ctx, courseID)
	if err != nil {
		return 0, pkgerrors.Wrap(err, "counting lessons")
	}
	return counts[courseID], nil
}

// GetCourse returns a course regardless of its visibility.
func (svc *Service) GetCourse(ctx context.Context, id string) (Course, error) {
	crs, err := svc.repo.GetCourse(ctx, id)
	return crs, metrics.Boundary("course.get_course", err, domainErrs...)
}

func (svc *Service) GetLesson(ctx context.Context, lessonID string) (Lesson, error) {
	lsn, err := svc.repo.GetLesson(ctx, lessonID)
	return lsn, metrics.Boundary("course.get_lesson", err, domainErrs...)
}

// ListLessons returns the lessons of a course ordered by OrderIndex.
func (svc *Service) ListLessons(ctx context.Context, courseID string) ([]Lesson, error) {
	lessons, err := svc.repo.ListLessons(ctx, courseID)
	if err != nil {
		return nil, metrics.Boundary("course.list_lessons", pkgerrors.Wrap(err, "listing lessons"))
	}
	if lessons == nil {
		lessons = []Lesson{}
	}
	return lessons, nil
}

// Create adds a course taught by author. Public courses are announced to other users.
func (svc *Service) Create(ctx context.Context, author user.Ref, nc NewCourse) (Course, error) {
	if !author.CanTeach {
		return Course{}, core.ErrForbidden
	}
	nc.Clean()
	if err := svc.validate.Struct(nc); err != nil {
		return Course{}, err
	}

	var crs Course
	err := svc.txr.WithinTx(ctx, func(ctx context.Context) error {
		now := time.Now().UTC()
		var err error
		crs, err = svc.repo.CreateCourse(ctx, Course{
			Title:        nc.Title,
			Description:  nc.Description,
			Category:     nc.Category,
			Type:         nc.Type,
			IsPrivate:    nc.IsPrivate,
			Price:        nc.Price,
			Level:        nc.Level,
			InstructorID: author.ID,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
		if err != nil {
			return pkgerrors.Wrap(err, "creating course")
		}

		if !crs.IsPrivate {
			svc.emitter.Emit(ctx, notification.Event{
				Type:         notification.TypeCoursePublished,
				Actor:        &author,
				CourseID:     crs.ID,
				CourseTitle:  crs.Title,
				InstructorID: crs.InstructorID,
			})
		}
		return nil
	})
	if err != nil {
		return Course{}, metrics.Boundary("course.create", err)
	}
	return crs, nil
}

// AddLesson appends a lesson to a course; only its instructor or an admin may do so.
func (svc *Service) AddLesson(ctx context.Context, author user.Ref, courseID string, nl NewLesson) (Lesson, error) {
	nl.Clean()
	if err := svc.validate.Struct(nl); err != nil {
		return Lesson{}, err
	}

	var lsn Lesson
	err := svc.txr.WithinTx(ctx, func(ctx context.Context) error {
		crs, err := svc.repo.GetCourse(ctx, courseID)
		if err != nil {
			return err
		}
		if !IsStaff(&author, crs) {
			return core.ErrForbidden
		}

		lsn, err = svc.repo.CreateLesson(ctx, Lesson{
			CourseID:        crs.ID,
			Title:           nl.Title,
			Content:         nl.Content,
			VideoURL:        nl.VideoURL,
			OrderIndex:      nl.OrderIndex,
			IsFree:          nl.IsFree,
			DurationMinutes: nl.DurationMinutes,
			CreatedAt:       time.Now().UTC(),
		})
		return err
	})
	if err != nil {
		if pkgerrors.Cause(err) == ErrOrderIndexTaken {
			return Lesson{}, core.NewValidationError(err, core.FieldError{Field: "order_index", Error: err.Error()})
		}
		return Lesson{}, metrics.Boundary("course.add_lesson", err, lessonDomainErrs...)
	}
	return lsn, nil
}

// Delete removes a course along with its lesson progress, enrollments and lessons, in that order.
func (svc *Service) Delete(ctx context.Context, actor user.Ref, courseID string) error {
	err := svc.txr.WithinTx(ctx, func(ctx context.Context) error {
		crs, err := svc.repo.GetCourse(ctx, courseID)
		if err != nil {
			return err
		}
		if !IsStaff(&actor, crs) {
			return core.ErrForbidden
		}
		return svc.deleteCascade(ctx, crs.ID)
	})
	return metrics.Boundary("course.delete", err, domainErrs...)
}

func (svc *Service) deleteCascade(ctx context.Context, courseID string) error {
	for _, dep := range svc.dependents {
		if err := dep.DeleteByCourse(ctx, courseID); err != nil {
			return pkgerrors.Wrap(err, fmt.Sprintf("deleting dependents of course %s", courseID))
		}
	}
	return pkgerrors.Wrap(svc.repo.DeleteCourse(ctx, courseID), "deleting course")
}

// DeleteByUsers removes the courses taught by the given users.
func (svc *Service) DeleteByUsers(ctx context.Context, ids ...string) error {
	courseIDs, err := svc.repo.ListCourseIDsByInstructors(ctx, ids...)
	if err != nil {
		return pkgerrors.Wrap(err, "listing taught courses")
	}
	for _, id := range courseIDs {
		if err := svc.deleteCascade(ctx, id); err != nil {
			return err
		}
	}
	return nil
}
