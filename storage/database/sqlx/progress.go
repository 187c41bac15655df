package sqlxrepos

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/carosello75/courseconnect/core/progress"
)

type progressRepository struct {
	repository
}

var _ progress.Repository = (*progressRepository)(nil) // interface compliance check

func NewProgressRepository(db *sqlx.DB) progress.Repository {
	return &progressRepository{repository{db: db}}
}

func (repo progressRepository) CreateProgress(ctx context.Context, lp progress.LessonProgress) (progress.LessonProgress, error) {
	lp.ID = uuid.New().String()
	lp.CompletedAt = lp.CompletedAt.UTC()
	_, err := repo.exec(ctx).ExecContext(ctx, `
		INSERT INTO lesson_progress (id, user_id, lesson_id, course_id, completed_at)
		VALUES ($1, $2, $3, $4, $5)`,
		lp.ID, lp.UserID, lp.LessonID, lp.CourseID, lp.CompletedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "lesson_progress_user_id_lesson_id_key") {
			return progress.LessonProgress{}, progress.ErrAlreadyCompleted
		}
		return progress.LessonProgress{}, errors.Wrap(err, "inserting lesson progress")
	}
	return lp, nil
}

func (repo progressRepository) Exists(ctx context.Context, userID, lessonID string) (bool, error) {
	var exists bool
	err := repo.exec(ctx).GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM lesson_progress WHERE user_id = $1 AND lesson_id = $2)`, userID, lessonID)
	return exists, errors.Wrap(err, "checking lesson progress")
}

// CountCompleted only counts lessons the course still has.
func (repo progressRepository) CountCompleted(ctx context.Context, userID, courseID string) (int, error) {
	var count int
	err := repo.exec(ctx).GetContext(ctx, &count, `
		SELECT COUNT(*) FROM lesson_progress lp
		JOIN lessons l ON l.id = lp.lesson_id
		WHERE lp.user_id = $1 AND l.course_id = $2`,
		userID, courseID,
	)
	return count, errors.Wrap(err, "counting completed lessons")
}

func (repo progressRepository) ListCompletedLessonIDs(ctx context.Context, userID, courseID string) ([]string, error) {
	ids := make([]string, 0)
	err := repo.exec(ctx).SelectContext(ctx, &ids, `
		SELECT lp.lesson_id FROM lesson_progress lp
		JOIN lessons l ON l.id = lp.lesson_id
		WHERE lp.user_id = $1 AND l.course_id = $2
		ORDER BY lp.completed_at, lp.id`,
		userID, courseID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "listing completed lessons")
	}
	return ids, nil
}

func (repo progressRepository) DeleteByUsers(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	exec := repo.exec(ctx)
	q, args, err := in(exec, `DELETE FROM lesson_progress WHERE user_id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "building lesson progress delete query")
	}
	_, err = exec.ExecContext(ctx, q, args...)
	return errors.Wrap(err, "deleting lesson progress")
}

func (repo progressRepository) DeleteByCourse(ctx context.Context, courseID string) error {
	_, err := repo.exec(ctx).ExecContext(ctx, `DELETE FROM lesson_progress WHERE course_id = $1`, courseID)
	return errors.Wrap(err, "deleting lesson progress")
}
