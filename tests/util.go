// Package testutil sets up the core services over the in-memory store for tests.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/carosello75/courseconnect/core"
	"github.com/carosello75/courseconnect/core/access"
	"github.com/carosello75/courseconnect/core/course"
	"github.com/carosello75/courseconnect/core/enrollment"
	"github.com/carosello75/courseconnect/core/notification"
	"github.com/carosello75/courseconnect/core/progress"
	"github.com/carosello75/courseconnect/core/user"
	emailsvc "github.com/carosello75/courseconnect/services/email"
	inmemdb "github.com/carosello75/courseconnect/storage/database/inmem"
)

// LogEntry is a message written to a Logger.
type LogEntry struct {
	Level string
	Msg   string
	Args  []interface{}
}

// Logger is a core.Logger keeping entries in memory.
type Logger struct {
	mu      sync.Mutex
	entries []LogEntry
}

var _ core.Logger = (*Logger)(nil)

func (l *Logger) log(level, msg string, args []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, LogEntry{Level: level, Msg: msg, Args: args})
}

func (l *Logger) Debug(msg string, args ...interface{}) { l.log("debug", msg, args) }
func (l *Logger) Info(msg string, args ...interface{})  { l.log("info", msg, args) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.log("warn", msg, args) }
func (l *Logger) Error(msg string, args ...interface{}) { l.log("error", msg, args) }
func (l *Logger) Fatal(msg string, args ...interface{}) { panic(fmt.Sprintf("fatal: %s", msg)) }

// Entries returns the entries logged at level.
func (l *Logger) Entries(level string) []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	var found []LogEntry
	for _, e := range l.entries {
		if e.Level == level {
			found = append(found, e)
		}
	}
	return found
}

// Env is a fully wired app over a fresh in-memory store.
type Env struct {
	Conf       *core.Config
	DB         *inmemdb.DB
	Logger     *Logger
	Validate   *validator.Validate
	Translator ut.Translator
	Mail       *emailsvc.ConsoleService

	UserRepo         user.Repository
	CourseRepo       course.Repository
	EnrollmentRepo   enrollment.Repository
	ProgressRepo     progress.Repository
	NotificationRepo notification.Repository

	Dispatcher  *notification.Dispatcher
	Users       user.Service
	Courses     *course.Service
	Enrollments *enrollment.Service
	Access      *access.Service
	Tracker     *progress.Tracker
}

// Option tweaks an Env before its services get built.
type Option func(env *Env)

// WithNotificationRepository replaces the notification store, e.g. with one that fails.
func WithNotificationRepository(wrap func(notification.Repository) notification.Repository) Option {
	return func(env *Env) { env.NotificationRepo = wrap(env.NotificationRepo) }
}

// WithCourseRepository replaces the course store.
func WithCourseRepository(wrap func(course.Repository) course.Repository) Option {
	return func(env *Env) { env.CourseRepo = wrap(env.CourseRepo) }
}

func NewEnv(t *testing.T, opts ...Option) *Env {
	t.Helper()

	conf := core.NewTestConfig()
	logger := new(Logger)
	translator := core.NewTranslator()
	validate := core.NewValidator(translator)
	user.InitValidators(validate, translator)
	user.LoadCommonPasswords(logger)
	core.ParseEmailTemplates(logger)

	db := inmemdb.Open()
	env := &Env{
		Conf:             conf,
		DB:               db,
		Logger:           logger,
		Validate:         validate,
		Translator:       translator,
		Mail:             emailsvc.NewConsoleServiceMock(conf, logger),
		UserRepo:         inmemdb.NewUserRepository(db),
		CourseRepo:       inmemdb.NewCourseRepository(db),
		EnrollmentRepo:   inmemdb.NewEnrollmentRepository(db),
		ProgressRepo:     inmemdb.NewProgressRepository(db),
		NotificationRepo: inmemdb.NewNotificationRepository(db),
	}
	for _, opt := range opts {
		opt(env)
	}

	env.Dispatcher = notification.NewDispatcher(conf, db, env.NotificationRepo, env.UserRepo, logger)
	env.Courses = course.NewService(db, env.CourseRepo, env.EnrollmentRepo, env.Dispatcher, validate, env.ProgressRepo, env.EnrollmentRepo)
	env.Enrollments = enrollment.NewService(db, env.EnrollmentRepo, env.Courses, env.Dispatcher)
	env.Access = access.NewService(env.Courses, env.Enrollments)
	env.Tracker = progress.NewTracker(db, env.ProgressRepo, env.Courses, env.EnrollmentRepo, env.Dispatcher, logger)
	env.Users = user.NewService(
		conf, db, env.UserRepo, validate, env.Mail, env.Dispatcher, logger,
		env.NotificationRepo, env.ProgressRepo, env.EnrollmentRepo, env.Courses,
	)
	return env
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	usr.SetActive(isActive)
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateStudent(t *testing.T, repo user.Repository, uname string) user.User {
	t.Helper()
	return CreateUser(t, repo, uname, uname, uname+"@test.cd", "", []string{user.RoleStudent}, true)
}

func CreateInstructor(t *testing.T, repo user.Repository, uname string) user.User {
	t.Helper()
	return CreateUser(t, repo, uname, uname, uname+"@test.cd", "", []string{user.RoleInstructor}, true)
}

func CreateAdmin(t *testing.T, repo user.Repository, uname string) user.User {
	t.Helper()
	return CreateUser(t, repo, uname, uname, uname+"@test.cd", "", []string{user.RoleAdmin}, true)
}

// CreateCourse stores a course directly, bypassing the announcements.
func CreateCourse(t *testing.T, repo course.Repository, instructorID, title string, private bool) course.Course {
	t.Helper()

	now := time.Now().UTC()
	crs, err := repo.CreateCourse(context.Background(), course.Course{
		Title:        title,
		Type:         course.TypeStandard,
		Level:        course.LevelBeginner,
		IsPrivate:    private,
		InstructorID: instructorID,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}
	return crs
}

func CreateLesson(t *testing.T, repo course.Repository, courseID, title string, orderIndex int, free bool) course.Lesson {
	t.Helper()

	lsn, err := repo.CreateLesson(context.Background(), course.Lesson{
		CourseID:   courseID,
		Title:      title,
		Content:    title + " content",
		VideoURL:   "https://videos.test.cd/" + courseID + "/" + fmt.Sprint(orderIndex),
		OrderIndex: orderIndex,
		IsFree:     free,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateLesson() failed: %v", err)
	}
	return lsn
}

// Enroll stores an enrollment directly, bypassing the notifications.
func Enroll(t *testing.T, repo enrollment.Repository, userID, courseID string) enrollment.Enrollment {
	t.Helper()

	enr, err := repo.CreateEnrollment(context.Background(), enrollment.Enrollment{
		UserID:     userID,
		CourseID:   courseID,
		EnrolledAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("Enroll() failed: %v", err)
	}
	return enr
}

// Notifications returns every notification of recipientID, newest first.
func Notifications(t *testing.T, repo notification.Repository, recipientID string) []notification.Notification {
	t.Helper()

	items, err := repo.QueryNotifications(context.Background(), recipientID, 1000)
	if err != nil {
		t.Fatalf("Notifications() failed: %v", err)
	}
	return items
}

// Ref returns the identity of usr as the core services see it.
func Ref(usr user.User) *user.Ref {
	ref := usr.Ref()
	return &ref
}
