package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/carosello75/courseconnect/core/course"
)

const (
	courseColumns = `id, title, description, category, type, is_private, price, level, instructor_id, created_at, updated_at`
	lessonColumns = `id, course_id, title, content, video_url, order_index, is_free, duration_minutes, created_at`
)

type courseRow struct {
	ID           string    `db:"id"`
	Title        string    `db:"title"`
	Description  string    `db:"description"`
	Category     string    `db:"category"`
	Type         string    `db:"type"`
	IsPrivate    bool      `db:"is_private"`
	Price        float64   `db:"price"`
	Level        string    `db:"level"`
	InstructorID string    `db:"instructor_id"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func newCourseRow(crs course.Course) courseRow {
	return courseRow{
		ID:           crs.ID,
		Title:        crs.Title,
		Description:  crs.Description,
		Category:     crs.Category,
		Type:         crs.Type,
		IsPrivate:    crs.IsPrivate,
		Price:        crs.Price,
		Level:        crs.Level,
		InstructorID: crs.InstructorID,
		CreatedAt:    crs.CreatedAt.UTC(),
		UpdatedAt:    crs.UpdatedAt.UTC(),
	}
}

func (row courseRow) course() course.Course {
	return course.Course{
		ID:           row.ID,
		Title:        row.Title,
		Description:  row.Description,
		Category:     row.Category,
		Type:         row.Type,
		IsPrivate:    row.IsPrivate,
		Price:        row.Price,
		Level:        row.Level,
		InstructorID: row.InstructorID,
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
	}
}

type lessonRow struct {
	ID              string    `db:"id"`
	CourseID        string    `db:"course_id"`
	Title           string    `db:"title"`
	Content         string    `db:"content"`
	VideoURL        string    `db:"video_url"`
	OrderIndex      int       `db:"order_index"`
	IsFree          bool      `db:"is_free"`
	DurationMinutes int       `db:"duration_minutes"`
	CreatedAt       time.Time `db:"created_at"`
}

func (row lessonRow) lesson() course.Lesson {
	return course.Lesson{
		ID:              row.ID,
		CourseID:        row.CourseID,
		Title:           row.Title,
		Content:         row.Content,
		VideoURL:        row.VideoURL,
		OrderIndex:      row.OrderIndex,
		IsFree:          row.IsFree,
		DurationMinutes: row.DurationMinutes,
		CreatedAt:       row.CreatedAt.UTC(),
	}
}

type courseRepository struct {
	repository
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *sqlx.DB) course.Repository {
	return &courseRepository{repository{db: db}}
}

func (repo courseRepository) CreateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	crs.ID = uuid.New().String()
	row := newCourseRow(crs)
	_, err := sqlx.NamedExecContext(ctx, repo.exec(ctx), `
		INSERT INTO courses (`+courseColumns+`)
		VALUES (:id, :title, :description, :category, :type, :is_private, :price, :level, :instructor_id, :created_at, :updated_at)`,
		row,
	)
	if err != nil {
		return course.Course{}, errors.Wrap(err, "inserting course")
	}
	return row.course(), nil
}

func (repo courseRepository) GetCourse(ctx context.Context, id string) (course.Course, error) {
	var row courseRow
	if err := repo.exec(ctx).GetContext(ctx, &row, `SELECT `+courseColumns+` FROM courses WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return course.Course{}, course.ErrCourseNotFound
		}
		return course.Course{}, errors.Wrap(err, "getting course")
	}
	return row.course(), nil
}

func (repo courseRepository) QueryCourses(ctx context.Context, filter course.QueryFilter, vis course.Visibility) ([]course.Course, error) {
	q := `SELECT ` + courseColumns + ` FROM courses WHERE TRUE`
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return "$" + itoa(len(args))
	}

	if !vis.AllPrivate {
		if vis.InstructorID != "" {
			q += ` AND (NOT is_private OR instructor_id = ` + arg(vis.InstructorID) + `)`
		} else {
			q += ` AND NOT is_private`
		}
	}
	if filter.Search != "" {
		p := arg("%" + filter.Search + "%")
		q += ` AND (title ILIKE ` + p + ` OR description ILIKE ` + p + `)`
	}
	if filter.Category != "" {
		q += ` AND category = ` + arg(filter.Category)
	}
	if filter.Type != "" {
		q += ` AND type = ` + arg(filter.Type)
	}
	if filter.Level != "" {
		q += ` AND level = ` + arg(filter.Level)
	}
	if filter.InstructorID != "" {
		q += ` AND instructor_id = ` + arg(filter.InstructorID)
	}
	q += ` ORDER BY created_at DESC, id`

	var rows []courseRow
	if err := repo.exec(ctx).SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	courses := make([]course.Course, 0, len(rows))
	for _, row := range rows {
		courses = append(courses, row.course())
	}
	return courses, nil
}

func (repo courseRepository) CountLessons(ctx context.Context, courseIDs ...string) (map[string]int, error) {
	counts := make(map[string]int, len(courseIDs))
	if len(courseIDs) == 0 {
		return counts, nil
	}
	for _, id := range courseIDs {
		counts[id] = 0
	}

	exec := repo.exec(ctx)
	q, args, err := in(exec, `SELECT course_id, COUNT(*) AS total FROM lessons WHERE course_id IN (?) GROUP BY course_id`, courseIDs)
	if err != nil {
		return nil, errors.Wrap(err, "building lesson count query")
	}
	var rows []struct {
		CourseID string `db:"course_id"`
		Total    int    `db:"total"`
	}
	if err = exec.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "counting lessons")
	}
	for _, row := range rows {
		counts[row.CourseID] = row.Total
	}
	return counts, nil
}

func (repo courseRepository) ListCourseIDsByInstructors(ctx context.Context, ids ...string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	exec := repo.exec(ctx)
	q, args, err := in(exec, `SELECT id FROM courses WHERE instructor_id IN (?) ORDER BY id`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "building course query")
	}
	var courseIDs []string
	if err = exec.SelectContext(ctx, &courseIDs, q, args...); err != nil {
		return nil, errors.Wrap(err, "listing courses by instructors")
	}
	return courseIDs, nil
}

func (repo courseRepository) DeleteCourse(ctx context.Context, id string) error {
	exec := repo.exec(ctx)
	if _, err := exec.ExecContext(ctx, `DELETE FROM lessons WHERE course_id = $1`, id); err != nil {
		return errors.Wrap(err, "deleting lessons")
	}
	if _, err := exec.ExecContext(ctx, `DELETE FROM courses WHERE id = $1`, id); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return nil
}

func (repo courseRepository) CreateLesson(ctx context.Context, lsn course.Lesson) (course.Lesson, error) {
	lsn.ID = uuid.New().String()
	lsn.CreatedAt = lsn.CreatedAt.UTC()
	row := lessonRow{
		ID:              lsn.ID,
		CourseID:        lsn.CourseID,
		Title:           lsn.Title,
		Content:         lsn.Content,
		VideoURL:        lsn.VideoURL,
		OrderIndex:      lsn.OrderIndex,
		IsFree:          lsn.IsFree,
		DurationMinutes: lsn.DurationMinutes,
		CreatedAt:       lsn.CreatedAt,
	}
	_, err := sqlx.NamedExecContext(ctx, repo.exec(ctx), `
		INSERT INTO lessons (`+lessonColumns+`)
		VALUES (:id, :course_id, :title, :content, :video_url, :order_index, :is_free, :duration_minutes, :created_at)`,
		row,
	)
	if err != nil {
		if isUniqueViolation(err, "lessons_course_id_order_index_key") {
			return course.Lesson{}, course.ErrOrderIndexTaken
		}
		return course.Lesson{}, errors.Wrap(err, "inserting lesson")
	}
	return lsn, nil
}

func (repo courseRepository) GetLesson(ctx context.Context, id string) (course.Lesson, error) {
	var row lessonRow
	if err := repo.exec(ctx).GetContext(ctx, &row, `SELECT `+lessonColumns+` FROM lessons WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return course.Lesson{}, course.ErrLessonNotFound
		}
		return course.Lesson{}, errors.Wrap(err, "getting lesson")
	}
	return row.lesson(), nil
}

func (repo courseRepository) ListLessons(ctx context.Context, courseID string) ([]course.Lesson, error) {
	var rows []lessonRow
	err := repo.exec(ctx).SelectContext(ctx, &rows,
		`SELECT `+lessonColumns+` FROM lessons WHERE course_id = $1 ORDER BY order_index`, courseID)
	if err != nil {
		return nil, errors.Wrap(err, "listing lessons")
	}
	lessons := make([]course.Lesson, 0, len(rows))
	for _, row := range rows {
		lessons = append(lessons, row.lesson())
	}
	return lessons, nil
}
