// Package access decides who may see the content of a lesson.
//
// The decision, in order: free lessons are open to everyone, anonymous viewers
// get nothing else, admins and the course instructor see everything, and
// everybody else needs an enrollment in the course.
package access

import (
	"context"
	"errors"

	pkgerrors "github.com/pkg/errors"

	"github.com/carosello75/courseconnect/core/course"
	"github.com/carosello75/courseconnect/core/metrics"
	"github.com/carosello75/courseconnect/core/user"
)

var ErrAccessDenied = errors.New("access to this lesson requires enrollment")

// CanAccess applies the access rules. enrolled is only consulted when the other rules do not decide.
func CanAccess(viewer *user.Ref, crs course.Course, lsn course.Lesson, enrolled bool) bool {
	switch {
	case lsn.IsFree:
		return true
	case viewer == nil:
		return false
	case viewer.IsAdmin:
		return true
	case viewer.ID == crs.InstructorID:
		return true
	}
	return enrolled
}

// NeedsEnrollmentCheck reports whether CanAccess depends on the enrollment of viewer.
func NeedsEnrollmentCheck(viewer *user.Ref, crs course.Course, lsn course.Lesson) bool {
	return !lsn.IsFree && viewer != nil && !viewer.IsAdmin && viewer.ID != crs.InstructorID
}

// LessonView is a lesson as shown to a viewer; Content and VideoURL are only set when accessible.
type LessonView struct {
	ID              string  `json:"id"`
	CourseID        string  `json:"course_id"`
	Title           string  `json:"title"`
	OrderIndex      int     `json:"order_index"`
	IsFree          bool    `json:"is_free"`
	DurationMinutes int     `json:"duration_minutes"`
	Accessible      bool    `json:"accessible"`
	Content         *string `json:"content,omitempty"`
	VideoURL        *string `json:"video_url,omitempty"`
}

func View(lsn course.Lesson, accessible bool) LessonView {
	lv := LessonView{
		ID:              lsn.ID,
		CourseID:        lsn.CourseID,
		Title:           lsn.Title,
		OrderIndex:      lsn.OrderIndex,
		IsFree:          lsn.IsFree,
		DurationMinutes: lsn.DurationMinutes,
		Accessible:      accessible,
	}
	if accessible {
		content, videoURL := lsn.Content, lsn.VideoURL
		lv.Content = &content
		lv.VideoURL = &videoURL
	}
	return lv
}

// EnrollmentChecker tells whether a user is enrolled in a course.
type EnrollmentChecker interface {
	IsEnrolled(ctx context.Context, userID, courseID string) (bool, error)
}

type Service struct {
	courses     *course.Service
	enrollments EnrollmentChecker
}

func NewService(courses *course.Service, enrollments EnrollmentChecker) *Service {
	return &Service{courses: courses, enrollments: enrollments}
}

func (svc *Service) isEnrolled(ctx context.Context, viewer *user.Ref, crs course.Course, lsn course.Lesson) (bool, error) {
	if !NeedsEnrollmentCheck(viewer, crs, lsn) {
		return false, nil
	}
	return svc.enrollments.IsEnrolled(ctx, viewer.ID, crs.ID)
}

// ListLessons returns the syllabus of a course visible to viewer, content included only where accessible.
func (svc *Service) ListLessons(ctx context.Context, viewer *user.Ref, courseID string) ([]LessonView, error) {
	crs, err := svc.courses.Get(ctx, viewer, courseID)
	if err != nil {
		return nil, err
	}
	lessons, err := svc.courses.ListLessons(ctx, crs.ID)
	if err != nil {
		return nil, err
	}

	var enrolled, checked bool
	views := make([]LessonView, 0, len(lessons))
	for _, lsn := range lessons {
		if !checked && NeedsEnrollmentCheck(viewer, crs, lsn) {
			if enrolled, err = svc.isEnrolled(ctx, viewer, crs, lsn); err != nil {
				return nil, metrics.Boundary("access.list_lessons", pkgerrors.Wrap(err, "checking enrollment"))
			}
			checked = true
		}
		views = append(views, View(lsn, CanAccess(viewer, crs, lsn, enrolled)))
	}
	return views, nil
}

// GetLesson returns a single lesson with its content, or ErrAccessDenied when viewer may not see it.
func (svc *Service) GetLesson(ctx context.Context, viewer *user.Ref, lessonID string) (LessonView, error) {
	lsn, err := svc.courses.GetLesson(ctx, lessonID)
	if err != nil {
		return LessonView{}, err
	}
	crs, err := svc.courses.Get(ctx, viewer, lsn.CourseID)
	if err != nil {
		if pkgerrors.Cause(err) == course.ErrCourseNotFound {
			return LessonView{}, course.ErrLessonNotFound
		}
		return LessonView{}, err
	}

	enrolled, err := svc.isEnrolled(ctx, viewer, crs, lsn)
	if err != nil {
		return LessonView{}, metrics.Boundary("access.get_lesson", pkgerrors.Wrap(err, "checking enrollment"))
	}
	if !CanAccess(viewer, crs, lsn, enrolled) {
		return LessonView{}, ErrAccessDenied
	}
	return View(lsn, true), nil
}
