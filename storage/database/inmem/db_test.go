package inmemdb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carosello75/courseconnect/core/course"
	"github.com/carosello75/courseconnect/core/enrollment"
)

var errBoom = errors.New("boom")

func TestDB_WithinTx(t *testing.T) {
	ctx := context.Background()

	t.Run("commit", func(t *testing.T) {
		db := Open()
		repo := NewCourseRepository(db)

		var id string
		err := db.WithinTx(ctx, func(ctx context.Context) error {
			crs, err := repo.CreateCourse(ctx, course.Course{Title: "Go", CreatedAt: time.Now().UTC()})
			id = crs.ID
			return err
		})
		require.NoError(t, err)
		_, err = repo.GetCourse(ctx, id)
		assert.NoError(t, err)
	})

	t.Run("rollback", func(t *testing.T) {
		db := Open()
		repo := NewCourseRepository(db)

		var id string
		err := db.WithinTx(ctx, func(ctx context.Context) error {
			crs, err := repo.CreateCourse(ctx, course.Course{Title: "Go"})
			if err != nil {
				return err
			}
			id = crs.ID
			return errBoom
		})
		assert.Equal(t, errBoom, err)
		_, err = repo.GetCourse(ctx, id)
		assert.Equal(t, course.ErrCourseNotFound, err)
	})

	t.Run("nested rollback keeps outer changes", func(t *testing.T) {
		db := Open()
		repo := NewCourseRepository(db)

		var outerID, innerID string
		err := db.WithinTx(ctx, func(ctx context.Context) error {
			crs, err := repo.CreateCourse(ctx, course.Course{Title: "Outer"})
			if err != nil {
				return err
			}
			outerID = crs.ID

			innerErr := db.WithinTx(ctx, func(ctx context.Context) error {
				crs, err := repo.CreateCourse(ctx, course.Course{Title: "Inner"})
				if err != nil {
					return err
				}
				innerID = crs.ID
				return errBoom
			})
			assert.Equal(t, errBoom, innerErr)
			return nil
		})
		require.NoError(t, err)

		_, err = repo.GetCourse(ctx, outerID)
		assert.NoError(t, err)
		_, err = repo.GetCourse(ctx, innerID)
		assert.Equal(t, course.ErrCourseNotFound, err)
	})

	t.Run("panic rolls back", func(t *testing.T) {
		db := Open()
		repo := NewCourseRepository(db)

		var id string
		assert.Panics(t, func() {
			_ = db.WithinTx(ctx, func(ctx context.Context) error {
				crs, _ := repo.CreateCourse(ctx, course.Course{Title: "Go"})
				id = crs.ID
				panic("oops")
			})
		})
		_, err := repo.GetCourse(ctx, id)
		assert.Equal(t, course.ErrCourseNotFound, err)

		// the lock was released
		_, err = repo.CreateCourse(ctx, course.Course{Title: "After"})
		assert.NoError(t, err)
	})
}

func TestCourseRepository(t *testing.T) {
	ctx := context.Background()
	db := Open()
	repo := NewCourseRepository(db)

	now := time.Now().UTC()
	older, err := repo.CreateCourse(ctx, course.Course{Title: "Old Go", InstructorID: "t1", Category: "dev", CreatedAt: now.Add(-time.Hour)})
	require.NoError(t, err)
	newer, err := repo.CreateCourse(ctx, course.Course{Title: "New Rust", InstructorID: "t2", Category: "dev", CreatedAt: now})
	require.NoError(t, err)
	private, err := repo.CreateCourse(ctx, course.Course{Title: "Secret Go", InstructorID: "t1", IsPrivate: true, CreatedAt: now})
	require.NoError(t, err)

	t.Run("QueryCourses", func(t *testing.T) {
		tests := []struct {
			name    string
			filter  course.QueryFilter
			vis     course.Visibility
			wantIDs []string
		}{
			{name: "anonymous", wantIDs: []string{newer.ID, older.ID}},
			{name: "instructor of the private course", vis: course.Visibility{InstructorID: "t1"}, wantIDs: []string{private.ID, newer.ID, older.ID}},
			{name: "another instructor", vis: course.Visibility{InstructorID: "t2"}, wantIDs: []string{newer.ID, older.ID}},
			{name: "admin", vis: course.Visibility{AllPrivate: true}, wantIDs: []string{private.ID, newer.ID, older.ID}},
			{name: "search", filter: course.QueryFilter{Search: "go"}, vis: course.Visibility{AllPrivate: true}, wantIDs: []string{private.ID, older.ID}},
			{name: "instructor filter", filter: course.QueryFilter{InstructorID: "t2"}, wantIDs: []string{newer.ID}},
			{name: "category", filter: course.QueryFilter{Category: "dev"}, vis: course.Visibility{AllPrivate: true}, wantIDs: []string{newer.ID, older.ID}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				courses, err := repo.QueryCourses(ctx, tt.filter, tt.vis)
				require.NoError(t, err)
				ids := make([]string, 0, len(courses))
				for _, crs := range courses {
					ids = append(ids, crs.ID)
				}
				assert.Equal(t, tt.wantIDs, ids)
			})
		}
	})

	t.Run("lessons", func(t *testing.T) {
		second, err := repo.CreateLesson(ctx, course.Lesson{CourseID: older.ID, Title: "Second", OrderIndex: 1})
		require.NoError(t, err)
		first, err := repo.CreateLesson(ctx, course.Lesson{CourseID: older.ID, Title: "First", OrderIndex: 0})
		require.NoError(t, err)

		_, err = repo.CreateLesson(ctx, course.Lesson{CourseID: older.ID, Title: "Dupe", OrderIndex: 1})
		assert.Equal(t, course.ErrOrderIndexTaken, err)
		_, err = repo.CreateLesson(ctx, course.Lesson{CourseID: "lol", Title: "Orphan"})
		assert.Equal(t, course.ErrCourseNotFound, err)

		lessons, err := repo.ListLessons(ctx, older.ID)
		require.NoError(t, err)
		require.Len(t, lessons, 2)
		assert.Equal(t, first.ID, lessons[0].ID)
		assert.Equal(t, second.ID, lessons[1].ID)

		counts, err := repo.CountLessons(ctx, older.ID, newer.ID)
		require.NoError(t, err)
		assert.Equal(t, map[string]int{older.ID: 2, newer.ID: 0}, counts)

		require.NoError(t, repo.DeleteCourse(ctx, older.ID))
		_, err = repo.GetLesson(ctx, first.ID)
		assert.Equal(t, course.ErrLessonNotFound, err)
	})
}

func TestEnrollmentRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewEnrollmentRepository(Open())

	enr, err := repo.CreateEnrollment(ctx, enrollment.Enrollment{UserID: "u1", CourseID: "c1", EnrolledAt: time.Now().UTC()})
	require.NoError(t, err)
	_, err = repo.CreateEnrollment(ctx, enrollment.Enrollment{UserID: "u1", CourseID: "c1"})
	assert.Equal(t, enrollment.ErrAlreadyEnrolled, err)

	_, err = repo.GetEnrollment(ctx, "u2", "c1", false)
	assert.Equal(t, enrollment.ErrNotEnrolled, err)

	require.NoError(t, repo.SetProgress(ctx, enr.ID, 50, nil))
	got, err := repo.GetEnrollment(ctx, "u1", "c1", true)
	require.NoError(t, err)
	assert.Equal(t, 50, got.ProgressPercentage)
	assert.Nil(t, got.CompletedAt)

	at := time.Now().UTC()
	require.NoError(t, repo.SetProgress(ctx, enr.ID, 100, &at))
	got, err = repo.GetEnrollment(ctx, "u1", "c1", false)
	require.NoError(t, err)
	assert.Equal(t, 100, got.ProgressPercentage)
	require.NotNil(t, got.CompletedAt)
	assert.True(t, at.Equal(*got.CompletedAt))
}
