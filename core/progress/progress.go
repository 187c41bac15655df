package progress

import (
	"context"
	"errors"
	"fmt"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/carosello75/courseconnect/core"
	"github.com/carosello75/courseconnect/core/course"
	"github.com/carosello75/courseconnect/core/enrollment"
	"github.com/carosello75/courseconnect/core/metrics"
	"github.com/carosello75/courseconnect/core/notification"
	"github.com/carosello75/courseconnect/core/user"
)

var ErrAlreadyCompleted = errors.New("lesson already completed")

// LessonProgress records that a user completed a lesson.
type LessonProgress struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	LessonID    string    `json:"lesson_id"`
	CourseID    string    `json:"course_id"`
	CompletedAt time.Time `json:"completed_at"` // UTC
}

// Result is the outcome of completing a lesson.
type Result struct {
	ProgressPercentage int  `json:"progress_percentage"`
	CourseCompleted    bool `json:"course_completed"` // true only for the completion that finished the course
}

type Summary struct {
	ProgressPercentage int      `json:"progress_percentage"`
	CompletedLessonIDs []string `json:"completed_lesson_ids"`
	TotalLessons       int      `json:"total_lessons"`
}

type (
	Repository interface {
		// CreateProgress returns ErrAlreadyCompleted when (UserID, LessonID) is taken.
		CreateProgress(ctx context.Context, lp LessonProgress) (LessonProgress, error)
		Exists(ctx context.Context, userID, lessonID string) (bool, error)
		CountCompleted(ctx context.Context, userID, courseID string) (int, error)
		// ListCompletedLessonIDs returns the completed lessons of userID in a course, in completion order.
		ListCompletedLessonIDs(ctx context.Context, userID, courseID string) ([]string, error)
		DeleteByUsers(ctx context.Context, ids ...string) error
		DeleteByCourse(ctx context.Context, courseID string) error
	}

	Tracker struct {
		txr         core.Transactor
		repo        Repository
		courses     *course.Service
		enrollments enrollment.Repository
		emitter     notification.Emitter
		logger      core.Logger
	}
)

func NewTracker(
	txr core.Transactor,
	repo Repository,
	courses *course.Service,
	enrollments enrollment.Repository,
	emitter notification.Emitter,
	logger core.Logger,
) *Tracker {
	return &Tracker{
		txr:         txr,
		repo:        repo,
		courses:     courses,
		enrollments: enrollments,
		emitter:     emitter,
		logger:      logger,
	}
}

// Percentage is the rounded share of completed lessons.
// It is 0 for an empty course and never reaches 100 before every lesson is completed.
func Percentage(completed, total int) int {
	if total <= 0 || completed <= 0 {
		return 0
	}
	if completed >= total {
		return 100
	}
	pct := (200*completed + total) / (2 * total) // half up
	if pct > 99 {
		pct = 99
	}
	return pct
}

// CompleteLesson records that viewer completed a lesson of a course they are enrolled in
// and refreshes their course progress.
// Concurrent completions by the same user are serialized on the enrollment record,
// so the course completes exactly once.
func (t *Tracker) CompleteLesson(ctx context.Context, viewer user.Ref, lessonID string) (Result, error) {
	var res Result
	err := t.txr.WithinTx(ctx, func(ctx context.Context) error {
		lsn, err := t.courses.GetLesson(ctx, lessonID)
		if err != nil {
			return err
		}
		enr, err := t.enrollments.GetEnrollment(ctx, viewer.ID, lsn.CourseID, true /* forUpdate */)
		if err != nil {
			return err
		}

		done, err := t.repo.Exists(ctx, viewer.ID, lsn.ID)
		if err != nil {
			return pkgerrors.Wrap(err, "checking lesson progress")
		}
		if done {
			return ErrAlreadyCompleted
		}

		now := time.Now().UTC()
		if _, err = t.repo.CreateProgress(ctx, LessonProgress{
			UserID:      viewer.ID,
			LessonID:    lsn.ID,
			CourseID:    lsn.CourseID,
			CompletedAt: now,
		}); err != nil {
			return pkgerrors.Wrap(err, "creating lesson progress")
		}

		completed, err := t.repo.CountCompleted(ctx, viewer.ID, lsn.CourseID)
		if err != nil {
			return pkgerrors.Wrap(err, "counting completed lessons")
		}
		total, err := t.courses.TotalLessons(ctx, lsn.CourseID)
		if err != nil {
			return err
		}
		res.ProgressPercentage = Percentage(completed, total)

		var completedAt *time.Time
		if res.ProgressPercentage == 100 && enr.CompletedAt == nil {
			completedAt = &now
			res.CourseCompleted = true
		}
		if err = t.enrollments.SetProgress(ctx, enr.ID, res.ProgressPercentage, completedAt); err != nil {
			return pkgerrors.Wrap(err, "updating enrollment progress")
		}

		crs, err := t.courses.GetCourse(ctx, lsn.CourseID)
		if err != nil {
			return err
		}
		if res.CourseCompleted {
			t.emitter.Emit(ctx, notification.Event{
				Type:         notification.TypeCourseCompleted,
				Actor:        &viewer,
				CourseID:     crs.ID,
				CourseTitle:  crs.Title,
				InstructorID: crs.InstructorID,
			})
		}
		t.emitter.Emit(ctx, notification.Event{
			Type:         notification.TypeLessonCompleted,
			Actor:        &viewer,
			CourseID:     crs.ID,
			CourseTitle:  crs.Title,
			InstructorID: crs.InstructorID,
			LessonID:     lsn.ID,
			LessonTitle:  lsn.Title,
		})
		return nil
	})
	if err != nil {
		err = metrics.Boundary("progress.complete_lesson", err, course.ErrLessonNotFound, course.ErrCourseNotFound, enrollment.ErrNotEnrolled, ErrAlreadyCompleted)
		return Result{}, err
	}

	metrics.LessonCompletionsTotal.Inc()
	if res.CourseCompleted {
		metrics.CourseCompletionsTotal.Inc()
	}
	return res, nil
}

// GetProgress recomputes the progress of viewer in a course from their lesson completions.
// The percentage cached on the enrollment is checked against it; a mismatch is logged and the live value wins.
func (t *Tracker) GetProgress(ctx context.Context, viewer user.Ref, courseID string) (Summary, error) {
	sum, err := t.getProgress(ctx, viewer, courseID)
	return sum, metrics.Boundary("progress.get_progress", err, course.ErrCourseNotFound, enrollment.ErrNotEnrolled)
}

func (t *Tracker) getProgress(ctx context.Context, viewer user.Ref, courseID string) (Summary, error) {
	crs, err := t.courses.Get(ctx, &viewer, courseID)
	if err != nil {
		return Summary{}, err
	}
	enr, err := t.enrollments.GetEnrollment(ctx, viewer.ID, crs.ID, false)
	if err != nil {
		return Summary{}, err
	}

	ids, err := t.repo.ListCompletedLessonIDs(ctx, viewer.ID, crs.ID)
	if err != nil {
		return Summary{}, pkgerrors.Wrap(err, "listing completed lessons")
	}
	if ids == nil {
		ids = []string{}
	}

	sum := Summary{
		ProgressPercentage: Percentage(len(ids), crs.TotalLessons),
		CompletedLessonIDs: ids,
		TotalLessons:       crs.TotalLessons,
	}
	if sum.ProgressPercentage != enr.ProgressPercentage {
		t.logger.Warn(fmt.Sprintf(
			"progress.GetProgress: cached progress %d%% of enrollment %s differs from live %d%%",
			enr.ProgressPercentage, enr.ID, sum.ProgressPercentage,
		), viewer)
	}
	return sum, nil
}
