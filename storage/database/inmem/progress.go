package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/carosello75/courseconnect/core/progress"
)

type progressRepository struct {
	db *DB
}

var _ progress.Repository = (*progressRepository)(nil) // interface compliance check

func NewProgressRepository(db *DB) progress.Repository {
	return &progressRepository{db: db}
}

func (repo *progressRepository) exists(userID, lessonID string) bool {
	for _, lp := range repo.db.t.progress {
		if lp.UserID == userID && lp.LessonID == lessonID {
			return true
		}
	}
	return false
}

func (repo *progressRepository) CreateProgress(ctx context.Context, lp progress.LessonProgress) (progress.LessonProgress, error) {
	defer repo.db.lock(ctx)()

	if repo.exists(lp.UserID, lp.LessonID) {
		return progress.LessonProgress{}, progress.ErrAlreadyCompleted
	}
	lp.ID = uuid.New().String()
	repo.db.t.progress[lp.ID] = lp
	repo.db.track(lp.ID)
	return lp, nil
}

func (repo *progressRepository) Exists(ctx context.Context, userID, lessonID string) (bool, error) {
	defer repo.db.lock(ctx)()
	return repo.exists(userID, lessonID), nil
}

func (repo *progressRepository) completed(userID, courseID string) []progress.LessonProgress {
	var lps []progress.LessonProgress
	for _, lp := range repo.db.t.progress {
		if lp.UserID == userID && lp.CourseID == courseID {
			lps = append(lps, lp)
		}
	}
	return lps
}

func (repo *progressRepository) CountCompleted(ctx context.Context, userID, courseID string) (int, error) {
	defer repo.db.lock(ctx)()
	return len(repo.completed(userID, courseID)), nil
}

func (repo *progressRepository) ListCompletedLessonIDs(ctx context.Context, userID, courseID string) ([]string, error) {
	defer repo.db.lock(ctx)()

	lps := repo.completed(userID, courseID)
	sort.Slice(lps, func(i, j int) bool { return repo.db.t.seq[lps[i].ID] < repo.db.t.seq[lps[j].ID] })
	ids := make([]string, 0, len(lps))
	for _, lp := range lps {
		ids = append(ids, lp.LessonID)
	}
	return ids, nil
}

func (repo *progressRepository) DeleteByUsers(ctx context.Context, ids ...string) error {
	defer repo.db.lock(ctx)()

	for id, lp := range repo.db.t.progress {
		if contains(ids, lp.UserID) {
			delete(repo.db.t.progress, id)
			delete(repo.db.t.seq, id)
		}
	}
	return nil
}

func (repo *progressRepository) DeleteByCourse(ctx context.Context, courseID string) error {
	defer repo.db.lock(ctx)()

	for id, lp := range repo.db.t.progress {
		if lp.CourseID == courseID {
			delete(repo.db.t.progress, id)
			delete(repo.db.t.seq, id)
		}
	}
	return nil
}
