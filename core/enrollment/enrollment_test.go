package enrollment_test

import (
	"context"
	"sync"
	"testing"

	pkgerrors "github.com/pkg/errors"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carosello75/courseconnect/core/course"
	"github.com/carosello75/courseconnect/core/enrollment"
	"github.com/carosello75/courseconnect/core/metrics"
	"github.com/carosello75/courseconnect/core/notification"
	"github.com/carosello75/courseconnect/tests"
)

func TestService_Enroll(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	teacher := testutil.CreateInstructor(t, env.UserRepo, "teacher")
	student := testutil.CreateStudent(t, env.UserRepo, "student")
	crs := testutil.CreateCourse(t, env.CourseRepo, teacher.ID, "Go 101", false)
	private := testutil.CreateCourse(t, env.CourseRepo, teacher.ID, "Secret", true)

	t.Run("success", func(t *testing.T) {
		before := promtestutil.ToFloat64(metrics.EnrollmentsTotal)

		enr, err := env.Enrollments.Enroll(ctx, *testutil.Ref(student), crs.ID)
		require.NoError(t, err)
		assert.NotEmpty(t, enr.ID)
		assert.Equal(t, student.ID, enr.UserID)
		assert.Equal(t, crs.ID, enr.CourseID)
		assert.Equal(t, 0, enr.ProgressPercentage)
		assert.Nil(t, enr.CompletedAt)
		assert.Equal(t, before+1, promtestutil.ToFloat64(metrics.EnrollmentsTotal))

		inbox := testutil.Notifications(t, env.NotificationRepo, teacher.ID)
		require.Len(t, inbox, 1)
		assert.Equal(t, notification.TypeEnrollmentCreated, inbox[0].Type)
		require.NotNil(t, inbox[0].SenderID)
		assert.Equal(t, student.ID, *inbox[0].SenderID)
		require.NotNil(t, inbox[0].CourseID)
		assert.Equal(t, crs.ID, *inbox[0].CourseID)

		ok, err := env.Enrollments.IsEnrolled(ctx, student.ID, crs.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		enrs, err := env.Enrollments.ListForUser(ctx, student.ID)
		require.NoError(t, err)
		require.Len(t, enrs, 1)
		assert.Equal(t, enr.ID, enrs[0].ID)
	})

	t.Run("errors", func(t *testing.T) {
		tests := []struct {
			name     string
			courseID string
			wantErr  error
		}{
			{name: "already enrolled", courseID: crs.ID, wantErr: enrollment.ErrAlreadyEnrolled},
			{name: "unknown course", courseID: "lol", wantErr: course.ErrCourseNotFound},
			{name: "private course", courseID: private.ID, wantErr: course.ErrCourseNotFound},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := env.Enrollments.Enroll(ctx, *testutil.Ref(student), tt.courseID)
				assert.Equal(t, tt.wantErr, pkgerrors.Cause(err))
			})
		}
		assert.Len(t, testutil.Notifications(t, env.NotificationRepo, teacher.ID), 1)
	})

	t.Run("instructor of the course", func(t *testing.T) {
		enr, err := env.Enrollments.Enroll(ctx, *testutil.Ref(teacher), private.ID)
		require.NoError(t, err)
		assert.Equal(t, teacher.ID, enr.UserID)
		// nobody to notify but themselves
		assert.Len(t, testutil.Notifications(t, env.NotificationRepo, teacher.ID), 1)
	})

	t.Run("concurrent", func(t *testing.T) {
		other := testutil.CreateStudent(t, env.UserRepo, "other")

		var (
			wg               sync.WaitGroup
			mu               sync.Mutex
			successes, dupes int
		)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := env.Enrollments.Enroll(ctx, *testutil.Ref(other), crs.ID)
				mu.Lock()
				defer mu.Unlock()
				switch pkgerrors.Cause(err) {
				case nil:
					successes++
				case enrollment.ErrAlreadyEnrolled:
					dupes++
				default:
					t.Errorf("Enroll() unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, successes)
		assert.Equal(t, 7, dupes)
		enrs, err := env.Enrollments.ListForUser(ctx, other.ID)
		require.NoError(t, err)
		assert.Len(t, enrs, 1)
	})
}

func TestService_Get(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	teacher := testutil.CreateInstructor(t, env.UserRepo, "teacher")
	student := testutil.CreateStudent(t, env.UserRepo, "student")
	crs := testutil.CreateCourse(t, env.CourseRepo, teacher.ID, "Go 101", false)

	_, err := env.Enrollments.Get(ctx, student.ID, crs.ID)
	assert.Equal(t, enrollment.ErrNotEnrolled, pkgerrors.Cause(err))

	want := testutil.Enroll(t, env.EnrollmentRepo, student.ID, crs.ID)
	got, err := env.Enrollments.Get(ctx, student.ID, crs.ID)
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)

	enrs, err := env.Enrollments.ListForUser(ctx, teacher.ID)
	require.NoError(t, err)
	assert.NotNil(t, enrs)
	assert.Empty(t, enrs)
}
