package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/carosello75/courseconnect/core/enrollment"
)

type enrollmentRepository struct {
	db *DB
}

var _ enrollment.Repository = (*enrollmentRepository)(nil) // interface compliance check

func NewEnrollmentRepository(db *DB) enrollment.Repository {
	return &enrollmentRepository{db: db}
}

func (repo *enrollmentRepository) find(userID, courseID string) (enrollment.Enrollment, bool) {
	for _, enr := range repo.db.t.enrollments {
		if enr.UserID == userID && enr.CourseID == courseID {
			return enr, true
		}
	}
	return enrollment.Enrollment{}, false
}

func (repo *enrollmentRepository) CreateEnrollment(ctx context.Context, enr enrollment.Enrollment) (enrollment.Enrollment, error) {
	defer repo.db.lock(ctx)()

	if _, ok := repo.find(enr.UserID, enr.CourseID); ok {
		return enrollment.Enrollment{}, enrollment.ErrAlreadyEnrolled
	}
	enr.ID = uuid.New().String()
	repo.db.t.enrollments[enr.ID] = enr
	repo.db.track(enr.ID)
	return enr, nil
}

// GetEnrollment ignores forUpdate: the store is already locked for the whole unit of work.
func (repo *enrollmentRepository) GetEnrollment(ctx context.Context, userID, courseID string, _ bool) (enrollment.Enrollment, error) {
	defer repo.db.lock(ctx)()

	if enr, ok := repo.find(userID, courseID); ok {
		return enr, nil
	}
	return enrollment.Enrollment{}, enrollment.ErrNotEnrolled
}

func (repo *enrollmentRepository) Exists(ctx context.Context, userID, courseID string) (bool, error) {
	defer repo.db.lock(ctx)()

	_, ok := repo.find(userID, courseID)
	return ok, nil
}

func (repo *enrollmentRepository) ListByUser(ctx context.Context, userID string) ([]enrollment.Enrollment, error) {
	defer repo.db.lock(ctx)()

	enrs := make([]enrollment.Enrollment, 0)
	for _, enr := range repo.db.t.enrollments {
		if enr.UserID == userID {
			enrs = append(enrs, enr)
		}
	}
	sort.Slice(enrs, func(i, j int) bool {
		if !enrs[i].EnrolledAt.Equal(enrs[j].EnrolledAt) {
			return enrs[i].EnrolledAt.After(enrs[j].EnrolledAt)
		}
		return repo.db.t.seq[enrs[i].ID] > repo.db.t.seq[enrs[j].ID]
	})
	return enrs, nil
}

func (repo *enrollmentRepository) SetProgress(ctx context.Context, id string, percentage int, completedAt *time.Time) error {
	defer repo.db.lock(ctx)()

	enr, ok := repo.db.t.enrollments[id]
	if !ok {
		return enrollment.ErrNotEnrolled
	}
	enr.ProgressPercentage = percentage
	if completedAt != nil {
		at := completedAt.UTC()
		enr.CompletedAt = &at
	}
	repo.db.t.enrollments[id] = enr
	return nil
}

func (repo *enrollmentRepository) DeleteByUsers(ctx context.Context, ids ...string) error {
	defer repo.db.lock(ctx)()

	for id, enr := range repo.db.t.enrollments {
		if contains(ids, enr.UserID) {
			delete(repo.db.t.enrollments, id)
			delete(repo.db.t.seq, id)
		}
	}
	return nil
}

func (repo *enrollmentRepository) DeleteByCourse(ctx context.Context, courseID string) error {
	defer repo.db.lock(ctx)()

	for id, enr := range repo.db.t.enrollments {
		if enr.CourseID == courseID {
			delete(repo.db.t.enrollments, id)
			delete(repo.db.t.seq, id)
		}
	}
	return nil
}
