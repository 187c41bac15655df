package enrollment

import (
	"context"
	"errors"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/carosello75/courseconnect/core"
	"github.com/carosello75/courseconnect/core/course"
	"github.com/carosello75/courseconnect/core/metrics"
	"github.com/carosello75/courseconnect/core/notification"
	"github.com/carosello75/courseconnect/core/user"
)

var (
	// errors
	ErrAlreadyEnrolled = errors.New("already enrolled in this course")
	ErrNotEnrolled     = errors.New("not enrolled in this course")
)

type Enrollment struct {
	ID                 string     `json:"id"`
	UserID             string     `json:"user_id"`
	CourseID           string     `json:"course_id"`
	EnrolledAt         time.Time  `json:"enrolled_at"`  // UTC
	CompletedAt        *time.Time `json:"completed_at"` // UTC
	ProgressPercentage int        `json:"progress_percentage"`
}

type (
	Repository interface {
		// CreateEnrollment returns ErrAlreadyEnrolled when (UserID, CourseID) is taken.
		CreateEnrollment(ctx context.Context, enr Enrollment) (Enrollment, error)
		// GetEnrollment returns ErrNotEnrolled when missing.
		// With forUpdate, the record stays locked until the unit of work ends.
		GetEnrollment(ctx context.Context, userID, courseID string, forUpdate bool) (Enrollment, error)
		Exists(ctx context.Context, userID, courseID string) (bool, error)
		ListByUser(ctx context.Context, userID string) ([]Enrollment, error)
		// SetProgress stores the cached percentage and, when completedAt is set, the completion time.
		SetProgress(ctx context.Context, id string, percentage int, completedAt *time.Time) error
		DeleteByUsers(ctx context.Context, ids ...string) error
		DeleteByCourse(ctx context.Context, courseID string) error
	}

	Service struct {
		txr     core.Transactor
		repo    Repository
		courses *course.Service
		emitter notification.Emitter
	}
)

func NewService(
	txr core.Transactor,
	repo Repository,
	courses *course.Service,
	emitter notification.Emitter,
) *Service {
	return &Service{
		txr:     txr,
		repo:    repo,
		courses: courses,
		emitter: emitter,
	}
}

// Enroll registers viewer in a course visible to them and notifies its instructor.
func (svc *Service) Enroll(ctx context.Context, viewer user.Ref, courseID string) (Enrollment, error) {
	var enr Enrollment
	err := svc.txr.WithinTx(ctx, func(ctx context.Context) error {
		crs, err := svc.courses.Get(ctx, &viewer, courseID)
		if err != nil {
			return err
		}

		exists, err := svc.repo.Exists(ctx, viewer.ID, crs.ID)
		if err != nil {
			return pkgerrors.Wrap(err, "checking enrollment")
		}
		if exists {
			return ErrAlreadyEnrolled
		}

		enr, err = svc.repo.CreateEnrollment(ctx, Enrollment{
			UserID:             viewer.ID,
			CourseID:           crs.ID,
			EnrolledAt:         time.Now().UTC(),
			ProgressPercentage: 0,
		})
		if err != nil {
			return pkgerrors.Wrap(err, "creating enrollment")
		}

		svc.emitter.Emit(ctx, notification.Event{
			Type:         notification.TypeEnrollmentCreated,
			Actor:        &viewer,
			CourseID:     crs.ID,
			CourseTitle:  crs.Title,
			InstructorID: crs.InstructorID,
		})
		return nil
	})
	if err != nil {
		return Enrollment{}, metrics.Boundary("enrollment.enroll", err, ErrAlreadyEnrolled, course.ErrCourseNotFound)
	}
	metrics.EnrollmentsTotal.Inc()
	return enr, nil
}

func (svc *Service) IsEnrolled(ctx context.Context, userID, courseID string) (bool, error) {
	ok, err := svc.repo.Exists(ctx, userID, courseID)
	return ok, metrics.Boundary("enrollment.is_enrolled", err)
}

func (svc *Service) Get(ctx context.Context, userID, courseID string) (Enrollment, error) {
	enr, err := svc.repo.GetEnrollment(ctx, userID, courseID, false)
	return enr, metrics.Boundary("enrollment.get", err, ErrNotEnrolled)
}

// ListForUser returns the enrollments of userID, newest first.
func (svc *Service) ListForUser(ctx context.Context, userID string) ([]Enrollment, error) {
	enrs, err := svc.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, metrics.Boundary("enrollment.list_for_user", pkgerrors.Wrap(err, "listing enrollments"))
	}
	if enrs == nil {
		enrs = []Enrollment{}
	}
	return enrs, nil
}
