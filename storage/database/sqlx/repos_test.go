package sqlxrepos_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carosello75/courseconnect/core"
	"github.com/carosello75/courseconnect/core/course"
	"github.com/carosello75/courseconnect/core/enrollment"
	"github.com/carosello75/courseconnect/core/notification"
	"github.com/carosello75/courseconnect/core/progress"
	"github.com/carosello75/courseconnect/core/user"
	"github.com/carosello75/courseconnect/storage/database"
	"github.com/carosello75/courseconnect/storage/database/sqlx"
	"github.com/carosello75/courseconnect/tests"
)

type stack struct {
	db            *sqlx.DB
	txr           *database.Transactor
	users         user.Repository
	courses       course.Repository
	enrollments   enrollment.Repository
	progress      progress.Repository
	notifications notification.Repository

	courseSvc     *course.Service
	enrollmentSvc *enrollment.Service
	tracker       *progress.Tracker
	userSvc       user.Service
}

// openStack runs against the postgres database named by TEST_DATABASE_URL, wiped clean.
func openStack(t *testing.T) *stack {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := database.OpenURL(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.Migrate(db))
	_, err = db.Exec(`TRUNCATE notifications, lesson_progress, enrollments, lessons, courses, users`)
	require.NoError(t, err)

	conf := core.NewTestConfig()
	logger := new(testutil.Logger)
	validate := core.NewValidator(core.NewTranslator())

	s := &stack{
		db:            db,
		txr:           database.NewTransactor(db),
		users:         sqlxrepos.NewUserRepository(db),
		courses:       sqlxrepos.NewCourseRepository(db),
		enrollments:   sqlxrepos.NewEnrollmentRepository(db),
		progress:      sqlxrepos.NewProgressRepository(db),
		notifications: sqlxrepos.NewNotificationRepository(db),
	}
	dispatcher := notification.NewDispatcher(conf, s.txr, s.notifications, s.users, logger)
	s.courseSvc = course.NewService(s.txr, s.courses, s.enrollments, dispatcher, validate, s.progress, s.enrollments)
	s.enrollmentSvc = enrollment.NewService(s.txr, s.enrollments, s.courseSvc, dispatcher)
	s.tracker = progress.NewTracker(s.txr, s.progress, s.courseSvc, s.enrollments, dispatcher, logger)
	s.userSvc = user.NewService(conf, s.txr, s.users, validate, nil, dispatcher, logger,
		s.notifications, s.progress, s.enrollments, s.courseSvc)
	return s
}

func TestRepositories_constraints(t *testing.T) {
	s := openStack(t)
	ctx := context.Background()

	teacher := testutil.CreateInstructor(t, s.users, "teacher")
	student := testutil.CreateStudent(t, s.users, "student")

	_, err := s.users.CreateUser(ctx, user.User{Username: "teacher", CreatedAt: time.Now().UTC()})
	assert.Equal(t, user.ErrUsernameExists, err)
	assert.Equal(t, user.ErrEmailExists, s.users.CheckUsernameUniqueness(ctx, "", "student@test.cd"))
	assert.NoError(t, s.users.CheckUsernameUniqueness(ctx, "student", "", student))

	crs := testutil.CreateCourse(t, s.courses, teacher.ID, "Go 101", false)
	testutil.CreateLesson(t, s.courses, crs.ID, "Intro", 0, true)
	_, err = s.courses.CreateLesson(ctx, course.Lesson{CourseID: crs.ID, Title: "Dupe", OrderIndex: 0, CreatedAt: time.Now().UTC()})
	assert.Equal(t, course.ErrOrderIndexTaken, err)

	_, err = s.courses.GetCourse(ctx, "lol")
	assert.Equal(t, course.ErrCourseNotFound, err)
	_, err = s.courses.GetLesson(ctx, "lol")
	assert.Equal(t, course.ErrLessonNotFound, err)

	testutil.Enroll(t, s.enrollments, student.ID, crs.ID)
	_, err = s.enrollments.CreateEnrollment(ctx, enrollment.Enrollment{UserID: student.ID, CourseID: crs.ID, EnrolledAt: time.Now().UTC()})
	assert.Equal(t, enrollment.ErrAlreadyEnrolled, err)
	_, err = s.enrollments.GetEnrollment(ctx, teacher.ID, crs.ID, false)
	assert.Equal(t, enrollment.ErrNotEnrolled, err)

	ids, err := s.users.ListActiveUserIDs(ctx, teacher.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{student.ID}, ids)
}

func TestRepositories_learningFlow(t *testing.T) {
	s := openStack(t)
	ctx := context.Background()

	teacher := testutil.CreateInstructor(t, s.users, "teacher")
	student := testutil.CreateStudent(t, s.users, "student")
	admin := testutil.CreateAdmin(t, s.users, "admin")

	crs, err := s.courseSvc.Create(ctx, *testutil.Ref(teacher), course.NewCourse{Title: "Go 101", Price: 9.99})
	require.NoError(t, err)
	assert.Equal(t, 9.99, crs.Price)
	for i, title := range []string{"Intro", "Types", "Interfaces"} {
		_, err = s.courseSvc.AddLesson(ctx, *testutil.Ref(teacher), crs.ID, course.NewLesson{Title: title, OrderIndex: i})
		require.NoError(t, err)
	}

	courses, err := s.courseSvc.List(ctx, nil, course.QueryFilter{Search: "GO"})
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, 3, courses[0].TotalLessons)

	_, err = s.enrollmentSvc.Enroll(ctx, *testutil.Ref(student), crs.ID)
	require.NoError(t, err)
	_, err = s.enrollmentSvc.Enroll(ctx, *testutil.Ref(student), crs.ID)
	assert.Equal(t, enrollment.ErrAlreadyEnrolled, pkgerrors.Cause(err))

	lessons, err := s.courseSvc.ListLessons(ctx, crs.ID)
	require.NoError(t, err)
	require.Len(t, lessons, 3)

	// concurrent completions of every lesson
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		completed int
	)
	for _, lsn := range lessons {
		for i := 0; i < 3; i++ {
			wg.Add(1)
			go func(lessonID string) {
				defer wg.Done()
				res, err := s.tracker.CompleteLesson(ctx, *testutil.Ref(student), lessonID)
				if pkgerrors.Cause(err) == progress.ErrAlreadyCompleted {
					return
				}
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				defer mu.Unlock()
				if res.CourseCompleted {
					completed++
				}
			}(lsn.ID)
		}
	}
	wg.Wait()
	assert.Equal(t, 1, completed)

	sum, err := s.tracker.GetProgress(ctx, *testutil.Ref(student), crs.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, sum.ProgressPercentage)
	assert.Len(t, sum.CompletedLessonIDs, 3)

	enr, err := s.enrollments.GetEnrollment(ctx, student.ID, crs.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 100, enr.ProgressPercentage)
	assert.NotNil(t, enr.CompletedAt)

	// enrollment, 3 lessons and the course completion
	inbox := testutil.Notifications(t, s.notifications, teacher.ID)
	assert.Len(t, inbox, 5)
	n, err := s.notifications.MarkRead(ctx, teacher.ID, []string{inbox[0].ID})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	unread, err := s.notifications.CountUnread(ctx, teacher.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, unread)

	require.NoError(t, s.userSvc.Delete(ctx, *testutil.Ref(admin), teacher.ID))
	_, err = s.courses.GetCourse(ctx, crs.ID)
	assert.Equal(t, course.ErrCourseNotFound, err)
	enrs, err := s.enrollments.ListByUser(ctx, student.ID)
	require.NoError(t, err)
	assert.Empty(t, enrs)

	// the student keeps their notifications, unlinked from the deleted teacher
	for _, n := range testutil.Notifications(t, s.notifications, student.ID) {
		if n.SenderID != nil {
			assert.NotEqual(t, teacher.ID, *n.SenderID)
		}
	}
}

func TestTransactor_savepoint(t *testing.T) {
	s := openStack(t)
	ctx := context.Background()

	teacher := testutil.CreateInstructor(t, s.users, "teacher")
	errBoom := pkgerrors.New("boom")

	var kept, dropped course.Course
	err := s.txr.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if kept, err = s.courses.CreateCourse(ctx, course.Course{Title: "Kept", InstructorID: teacher.ID, Type: course.TypeStandard, Level: course.LevelBeginner, CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC()}); err != nil {
			return err
		}
		innerErr := s.txr.WithinTx(ctx, func(ctx context.Context) error {
			if dropped, err = s.courses.CreateCourse(ctx, course.Course{Title: "Dropped", InstructorID: teacher.ID, Type: course.TypeStandard, Level: course.LevelBeginner, CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC()}); err != nil {
				return err
			}
			return errBoom
		})
		assert.Equal(t, errBoom, innerErr)
		return nil
	})
	require.NoError(t, err)

	_, err = s.courses.GetCourse(ctx, kept.ID)
	assert.NoError(t, err)
	_, err = s.courses.GetCourse(ctx, dropped.ID)
	assert.Equal(t, course.ErrCourseNotFound, err)
}
