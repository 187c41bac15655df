package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/carosello75/courseconnect/core/course"
)

type courseRepository struct {
	db *DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *DB) course.Repository {
	return &courseRepository{db: db}
}

func (repo *courseRepository) CreateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	defer repo.db.lock(ctx)()

	crs.ID = uuid.New().String()
	crs.TotalLessons = 0
	repo.db.t.courses[crs.ID] = crs
	repo.db.track(crs.ID)
	return crs, nil
}

func (repo *courseRepository) GetCourse(ctx context.Context, id string) (course.Course, error) {
	defer repo.db.lock(ctx)()

	if crs, ok := repo.db.t.courses[id]; ok {
		return crs, nil
	}
	return course.Course{}, course.ErrCourseNotFound
}

func matchesFilter(crs course.Course, filter course.QueryFilter, vis course.Visibility) bool {
	if crs.IsPrivate && !vis.AllPrivate && (vis.InstructorID == "" || crs.InstructorID != vis.InstructorID) {
		return false
	}
	if filter.Search != "" {
		search := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(crs.Title), search) && !strings.Contains(strings.ToLower(crs.Description), search) {
			return false
		}
	}
	if filter.Category != "" && crs.Category != filter.Category {
		return false
	}
	if filter.Type != "" && crs.Type != filter.Type {
		return false
	}
	if filter.Level != "" && crs.Level != filter.Level {
		return false
	}
	if filter.InstructorID != "" && crs.InstructorID != filter.InstructorID {
		return false
	}
	return true
}

func (repo *courseRepository) QueryCourses(ctx context.Context, filter course.QueryFilter, vis course.Visibility) ([]course.Course, error) {
	defer repo.db.lock(ctx)()

	courses := make([]course.Course, 0)
	for _, crs := range repo.db.t.courses {
		if matchesFilter(crs, filter, vis) {
			courses = append(courses, crs)
		}
	}
	sort.Slice(courses, func(i, j int) bool {
		if !courses[i].CreatedAt.Equal(courses[j].CreatedAt) {
			return courses[i].CreatedAt.After(courses[j].CreatedAt)
		}
		return repo.db.t.seq[courses[i].ID] > repo.db.t.seq[courses[j].ID]
	})
	return courses, nil
}

func (repo *courseRepository) CountLessons(ctx context.Context, courseIDs ...string) (map[string]int, error) {
	defer repo.db.lock(ctx)()

	counts := make(map[string]int, len(courseIDs))
	for _, id := range courseIDs {
		counts[id] = 0
	}
	for _, lsn := range repo.db.t.lessons {
		if _, ok := counts[lsn.CourseID]; ok {
			counts[lsn.CourseID]++
		}
	}
	return counts, nil
}

func (repo *courseRepository) ListCourseIDsByInstructors(ctx context.Context, ids ...string) ([]string, error) {
	defer repo.db.lock(ctx)()

	var courseIDs []string
	for _, crs := range repo.db.t.courses {
		if contains(ids, crs.InstructorID) {
			courseIDs = append(courseIDs, crs.ID)
		}
	}
	sort.Strings(courseIDs)
	return courseIDs, nil
}

func (repo *courseRepository) DeleteCourse(ctx context.Context, id string) error {
	defer repo.db.lock(ctx)()

	for lid, lsn := range repo.db.t.lessons {
		if lsn.CourseID == id {
			delete(repo.db.t.lessons, lid)
			delete(repo.db.t.seq, lid)
		}
	}
	delete(repo.db.t.courses, id)
	delete(repo.db.t.seq, id)
	return nil
}

func (repo *courseRepository) CreateLesson(ctx context.Context, lsn course.Lesson) (course.Lesson, error) {
	defer repo.db.lock(ctx)()

	if _, ok := repo.db.t.courses[lsn.CourseID]; !ok {
		return course.Lesson{}, course.ErrCourseNotFound
	}
	for _, l := range repo.db.t.lessons {
		if l.CourseID == lsn.CourseID && l.OrderIndex == lsn.OrderIndex {
			return course.Lesson{}, course.ErrOrderIndexTaken
		}
	}
	lsn.ID = uuid.New().String()
	repo.db.t.lessons[lsn.ID] = lsn
	repo.db.track(lsn.ID)
	return lsn, nil
}

func (repo *courseRepository) GetLesson(ctx context.Context, id string) (course.Lesson, error) {
	defer repo.db.lock(ctx)()

	if lsn, ok := repo.db.t.lessons[id]; ok {
		return lsn, nil
	}
	return course.Lesson{}, course.ErrLessonNotFound
}

func (repo *courseRepository) ListLessons(ctx context.Context, courseID string) ([]course.Lesson, error) {
	defer repo.db.lock(ctx)()

	lessons := make([]course.Lesson, 0)
	for _, lsn := range repo.db.t.lessons {
		if lsn.CourseID == courseID {
			lessons = append(lessons, lsn)
		}
	}
	sort.Slice(lessons, func(i, j int) bool { return lessons[i].OrderIndex < lessons[j].OrderIndex })
	return lessons, nil
}
