package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/carosello75/courseconnect/core/enrollment"
)

const enrollmentColumns = `id, user_id, course_id, enrolled_at, completed_at, progress_percentage`

type enrollmentRow struct {
	ID                 string    `db:"id"`
	UserID             string    `db:"user_id"`
	CourseID           string    `db:"course_id"`
	EnrolledAt         time.Time `db:"enrolled_at"`
	CompletedAt        null.Time `db:"completed_at"`
	ProgressPercentage int       `db:"progress_percentage"`
}

func (row enrollmentRow) enrollment() enrollment.Enrollment {
	enr := enrollment.Enrollment{
		ID:                 row.ID,
		UserID:             row.UserID,
		CourseID:           row.CourseID,
		EnrolledAt:         row.EnrolledAt.UTC(),
		ProgressPercentage: row.ProgressPercentage,
	}
	if row.CompletedAt.Valid {
		t := row.CompletedAt.Time.UTC()
		enr.CompletedAt = &t
	}
	return enr
}

type enrollmentRepository struct {
	repository
}

var _ enrollment.Repository = (*enrollmentRepository)(nil) // interface compliance check

func NewEnrollmentRepository(db *sqlx.DB) enrollment.Repository {
	return &enrollmentRepository{repository{db: db}}
}

func (repo enrollmentRepository) CreateEnrollment(ctx context.Context, enr enrollment.Enrollment) (enrollment.Enrollment, error) {
	enr.ID = uuid.New().String()
	enr.EnrolledAt = enr.EnrolledAt.UTC()
	_, err := repo.exec(ctx).ExecContext(ctx, `
		INSERT INTO enrollments (`+enrollmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		enr.ID, enr.UserID, enr.CourseID, enr.EnrolledAt, null.TimeFromPtr(enr.CompletedAt), enr.ProgressPercentage,
	)
	if err != nil {
		if isUniqueViolation(err, "enrollments_user_id_course_id_key") {
			return enrollment.Enrollment{}, enrollment.ErrAlreadyEnrolled
		}
		return enrollment.Enrollment{}, errors.Wrap(err, "inserting enrollment")
	}
	return enr, nil
}

func (repo enrollmentRepository) GetEnrollment(ctx context.Context, userID, courseID string, forUpdate bool) (enrollment.Enrollment, error) {
	q := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE user_id = $1 AND course_id = $2`
	if forUpdate {
		q += ` FOR UPDATE`
	}
	var row enrollmentRow
	if err := repo.exec(ctx).GetContext(ctx, &row, q, userID, courseID); err != nil {
		if err == sql.ErrNoRows {
			return enrollment.Enrollment{}, enrollment.ErrNotEnrolled
		}
		return enrollment.Enrollment{}, errors.Wrap(err, "getting enrollment")
	}
	return row.enrollment(), nil
}

func (repo enrollmentRepository) Exists(ctx context.Context, userID, courseID string) (bool, error) {
	var exists bool
	err := repo.exec(ctx).GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM enrollments WHERE user_id = $1 AND course_id = $2)`, userID, courseID)
	return exists, errors.Wrap(err, "checking enrollment")
}

func (repo enrollmentRepository) ListByUser(ctx context.Context, userID string) ([]enrollment.Enrollment, error) {
	var rows []enrollmentRow
	err := repo.exec(ctx).SelectContext(ctx, &rows,
		`SELECT `+enrollmentColumns+` FROM enrollments WHERE user_id = $1 ORDER BY enrolled_at DESC, id`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "listing enrollments")
	}
	enrs := make([]enrollment.Enrollment, 0, len(rows))
	for _, row := range rows {
		enrs = append(enrs, row.enrollment())
	}
	return enrs, nil
}

func (repo enrollmentRepository) SetProgress(ctx context.Context, id string, percentage int, completedAt *time.Time) error {
	var err error
	if completedAt != nil {
		_, err = repo.exec(ctx).ExecContext(ctx,
			`UPDATE enrollments SET progress_percentage = $2, completed_at = $3 WHERE id = $1`,
			id, percentage, completedAt.UTC())
	} else {
		_, err = repo.exec(ctx).ExecContext(ctx,
			`UPDATE enrollments SET progress_percentage = $2 WHERE id = $1`, id, percentage)
	}
	return errors.Wrap(err, "updating enrollment progress")
}

func (repo enrollmentRepository) DeleteByUsers(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	exec := repo.exec(ctx)
	q, args, err := in(exec, `DELETE FROM enrollments WHERE user_id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "building enrollment delete query")
	}
	_, err = exec.ExecContext(ctx, q, args...)
	return errors.Wrap(err, "deleting enrollments")
}

func (repo enrollmentRepository) DeleteByCourse(ctx context.Context, courseID string) error {
	_, err := repo.exec(ctx).ExecContext(ctx, `DELETE FROM enrollments WHERE course_id = $1`, courseID)
	return errors.Wrap(err, "deleting enrollments")
}
