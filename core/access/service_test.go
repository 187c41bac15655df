package access_test

import (
	"context"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carosello75/courseconnect/core/access"
	"github.com/carosello75/courseconnect/core/course"
	"github.com/carosello75/courseconnect/core/user"
	"github.com/carosello75/courseconnect/tests"
)

func TestService(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	teacher := testutil.CreateInstructor(t, env.UserRepo, "teacher")
	student := testutil.CreateStudent(t, env.UserRepo, "student")
	enrolled := testutil.CreateStudent(t, env.UserRepo, "enrolled")
	admin := testutil.CreateAdmin(t, env.UserRepo, "admin")

	crs := testutil.CreateCourse(t, env.CourseRepo, teacher.ID, "Go 101", false)
	private := testutil.CreateCourse(t, env.CourseRepo, teacher.ID, "Secret", true)
	intro := testutil.CreateLesson(t, env.CourseRepo, crs.ID, "Intro", 0, true)
	deep := testutil.CreateLesson(t, env.CourseRepo, crs.ID, "Deep dive", 1, false)
	hidden := testutil.CreateLesson(t, env.CourseRepo, private.ID, "Hidden", 0, true)
	testutil.Enroll(t, env.EnrollmentRepo, enrolled.ID, crs.ID)

	t.Run("ListLessons", func(t *testing.T) {
		tests := []struct {
			name           string
			viewer         *user.Ref
			wantAccessible []bool
		}{
			{name: "anonymous", viewer: nil, wantAccessible: []bool{true, false}},
			{name: "student", viewer: testutil.Ref(student), wantAccessible: []bool{true, false}},
			{name: "enrolled student", viewer: testutil.Ref(enrolled), wantAccessible: []bool{true, true}},
			{name: "instructor", viewer: testutil.Ref(teacher), wantAccessible: []bool{true, true}},
			{name: "admin", viewer: testutil.Ref(admin), wantAccessible: []bool{true, true}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				views, err := env.Access.ListLessons(ctx, tt.viewer, crs.ID)
				require.NoError(t, err)
				require.Len(t, views, 2)
				assert.Equal(t, intro.ID, views[0].ID)
				assert.Equal(t, deep.ID, views[1].ID)
				for i, view := range views {
					assert.Equal(t, tt.wantAccessible[i], view.Accessible, views[i].Title)
					assert.Equal(t, tt.wantAccessible[i], view.Content != nil, views[i].Title)
				}
			})
		}
	})

	t.Run("GetLesson", func(t *testing.T) {
		tests := []struct {
			name     string
			viewer   *user.Ref
			lessonID string
			wantErr  error
		}{
			{name: "unknown lesson", viewer: testutil.Ref(student), lessonID: "lol", wantErr: course.ErrLessonNotFound},
			{name: "free lesson, anonymous", viewer: nil, lessonID: intro.ID},
			{name: "paid lesson, anonymous", viewer: nil, lessonID: deep.ID, wantErr: access.ErrAccessDenied},
			{name: "paid lesson, student", viewer: testutil.Ref(student), lessonID: deep.ID, wantErr: access.ErrAccessDenied},
			{name: "paid lesson, enrolled", viewer: testutil.Ref(enrolled), lessonID: deep.ID},
			{name: "paid lesson, instructor", viewer: testutil.Ref(teacher), lessonID: deep.ID},
			{name: "free lesson of an invisible course", viewer: testutil.Ref(student), lessonID: hidden.ID, wantErr: course.ErrLessonNotFound},
			{name: "free lesson of a private course, admin", viewer: testutil.Ref(admin), lessonID: hidden.ID},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				view, err := env.Access.GetLesson(ctx, tt.viewer, tt.lessonID)
				if pkgerrors.Cause(err) != tt.wantErr {
					t.Fatalf("GetLesson() error = %v, wantErr %v", err, tt.wantErr)
				}
				if tt.wantErr == nil {
					assert.True(t, view.Accessible)
					assert.NotNil(t, view.Content)
				}
			})
		}
	})

	t.Run("unknown course", func(t *testing.T) {
		_, err := env.Access.ListLessons(ctx, nil, "lol")
		assert.Equal(t, course.ErrCourseNotFound, pkgerrors.Cause(err))
	})
}
