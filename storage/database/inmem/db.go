// Package inmemdb is a process local store implementing the core repositories.
// It backs the test suites and the "memory" database driver.
package inmemdb

import (
	"context"
	"sync"

	"github.com/carosello75/courseconnect/core"
	"github.com/carosello75/courseconnect/core/course"
	"github.com/carosello75/courseconnect/core/enrollment"
	"github.com/carosello75/courseconnect/core/notification"
	"github.com/carosello75/courseconnect/core/progress"
	"github.com/carosello75/courseconnect/core/user"
)

type (
	tables struct {
		users         map[string]user.User
		courses       map[string]course.Course
		lessons       map[string]course.Lesson
		enrollments   map[string]enrollment.Enrollment
		progress      map[string]progress.LessonProgress
		notifications map[string]notification.Notification
		seq           map[string]int64 // insertion order of every row, for stable sorting
	}

	// DB holds all tables behind a single mutex.
	// A unit of work holds the mutex until it ends, so units of work never interleave.
	DB struct {
		mu      sync.Mutex
		t       tables
		counter int64
	}

	txKey   struct{}
	txState struct {
		db *DB
	}
)

var _ core.Transactor = (*DB)(nil)

func Open() *DB {
	return &DB{
		t: tables{
			users:         make(map[string]user.User),
			courses:       make(map[string]course.Course),
			lessons:       make(map[string]course.Lesson),
			enrollments:   make(map[string]enrollment.Enrollment),
			progress:      make(map[string]progress.LessonProgress),
			notifications: make(map[string]notification.Notification),
			seq:           make(map[string]int64),
		},
	}
}

// WithinTx runs fn with every table locked. Changes made by fn are undone when it fails or panics.
// Nested calls only undo their own changes.
func (db *DB) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if !db.inTx(ctx) {
		db.mu.Lock()
		defer db.mu.Unlock()
		ctx = context.WithValue(ctx, txKey{}, &txState{db: db})
	}

	snap := db.t.clone()
	defer func() {
		if p := recover(); p != nil {
			db.t = snap
			panic(p)
		}
		if err != nil {
			db.t = snap
		}
	}()
	return fn(ctx)
}

func (db *DB) inTx(ctx context.Context) bool {
	st, ok := ctx.Value(txKey{}).(*txState)
	return ok && st.db == db
}

// lock locks the tables for a single repository call made outside a unit of work.
func (db *DB) lock(ctx context.Context) func() {
	if db.inTx(ctx) {
		return func() {}
	}
	db.mu.Lock()
	return db.mu.Unlock
}

// track records the insertion rank of a new row.
func (db *DB) track(id string) {
	db.counter++
	db.t.seq[id] = db.counter
}

func (t tables) clone() tables {
	c := tables{
		users:         make(map[string]user.User, len(t.users)),
		courses:       make(map[string]course.Course, len(t.courses)),
		lessons:       make(map[string]course.Lesson, len(t.lessons)),
		enrollments:   make(map[string]enrollment.Enrollment, len(t.enrollments)),
		progress:      make(map[string]progress.LessonProgress, len(t.progress)),
		notifications: make(map[string]notification.Notification, len(t.notifications)),
		seq:           make(map[string]int64, len(t.seq)),
	}
	for k, v := range t.users {
		c.users[k] = v
	}
	for k, v := range t.courses {
		c.courses[k] = v
	}
	for k, v := range t.lessons {
		c.lessons[k] = v
	}
	for k, v := range t.enrollments {
		c.enrollments[k] = v
	}
	for k, v := range t.progress {
		c.progress[k] = v
	}
	for k, v := range t.notifications {
		c.notifications[k] = v
	}
	for k, v := range t.seq {
		c.seq[k] = v
	}
	return c
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
