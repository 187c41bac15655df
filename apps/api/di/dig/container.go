package dig_container

import (
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/carosello75/courseconnect/apps/api/echo"
	"github.com/carosello75/courseconnect/core"
	"github.com/carosello75/courseconnect/core/access"
	"github.com/carosello75/courseconnect/core/course"
	"github.com/carosello75/courseconnect/core/enrollment"
	"github.com/carosello75/courseconnect/core/notification"
	"github.com/carosello75/courseconnect/core/progress"
	"github.com/carosello75/courseconnect/core/user"
	emailsvc "github.com/carosello75/courseconnect/services/email"
	logsvc "github.com/carosello75/courseconnect/services/logger"
	"github.com/carosello75/courseconnect/storage/database"
	inmemdb "github.com/carosello75/courseconnect/storage/database/inmem"
	sqlxrepos "github.com/carosello75/courseconnect/storage/database/sqlx"
)

const driverMemory = "memory"

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// DBCloser releases the storage when the app stops.
type DBCloser func() error

// Storage is the transactor and repositories of the configured database driver.
type Storage struct {
	dig.Out

	Transactor    core.Transactor
	Users         user.Repository
	Courses       course.Repository
	Enrollments   enrollment.Repository
	Progress      progress.Repository
	Notifications notification.Repository
	Close         DBCloser
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

func newStorage(conf *core.Config, loggerParam DBLoggerParam) Storage {
	if conf.Database.Driver == driverMemory {
		loggerParam.Logger.Warn("using the in-memory store: data is lost on shutdown")
		db := inmemdb.Open()
		return Storage{
			Transactor:    db,
			Users:         inmemdb.NewUserRepository(db),
			Courses:       inmemdb.NewCourseRepository(db),
			Enrollments:   inmemdb.NewEnrollmentRepository(db),
			Progress:      inmemdb.NewProgressRepository(db),
			Notifications: inmemdb.NewNotificationRepository(db),
			Close:         func() error { return nil },
		}
	}

	if err := database.CreateIfNotExist(conf); err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("creating database: %v", err), err)
	}
	db, err := database.Open(conf)
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}
	if err = database.Migrate(db); err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("migrating database: %v", err), err)
	}
	return Storage{
		Transactor:    database.NewTransactor(db),
		Users:         sqlxrepos.NewUserRepository(db),
		Courses:       sqlxrepos.NewCourseRepository(db),
		Enrollments:   sqlxrepos.NewEnrollmentRepository(db),
		Progress:      sqlxrepos.NewProgressRepository(db),
		Notifications: sqlxrepos.NewNotificationRepository(db),
		Close:         db.Close,
	}
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, log.New(os.Stdout, "MAIL : ", log.LstdFlags), logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newDispatcher(
	conf *core.Config,
	txr core.Transactor,
	repo notification.Repository,
	users user.Repository,
	logger core.Logger,
) *notification.Dispatcher {
	return notification.NewDispatcher(conf, txr, repo, users, logger)
}

// newCourseService wires the course dependents: progress goes before enrollments.
func newCourseService(
	txr core.Transactor,
	repo course.Repository,
	enrollments enrollment.Repository,
	progressRepo progress.Repository,
	dispatcher *notification.Dispatcher,
	validate *validator.Validate,
) *course.Service {
	return course.NewService(txr, repo, enrollments, dispatcher, validate, progressRepo, enrollments)
}

func newEnrollmentService(
	txr core.Transactor,
	repo enrollment.Repository,
	courses *course.Service,
	dispatcher *notification.Dispatcher,
) *enrollment.Service {
	return enrollment.NewService(txr, repo, courses, dispatcher)
}

func newAccessService(courses *course.Service, enrollments *enrollment.Service) *access.Service {
	return access.NewService(courses, enrollments)
}

func newTracker(
	txr core.Transactor,
	repo progress.Repository,
	courses *course.Service,
	enrollments enrollment.Repository,
	dispatcher *notification.Dispatcher,
	logger core.Logger,
) *progress.Tracker {
	return progress.NewTracker(txr, repo, courses, enrollments, dispatcher, logger)
}

type userServiceParams struct {
	dig.In

	Conf          *core.Config
	Transactor    core.Transactor
	Repo          user.Repository
	Validate      *validator.Validate
	MailSvc       core.EmailService
	Dispatcher    *notification.Dispatcher
	Logger        core.Logger
	Notifications notification.Repository
	Progress      progress.Repository
	Enrollments   enrollment.Repository
	Courses       *course.Service
}

// newUserService wires the user dependents in deletion order.
func newUserService(p userServiceParams) user.Service {
	return user.NewService(
		p.Conf, p.Transactor, p.Repo, p.Validate, p.MailSvc, p.Dispatcher, p.Logger,
		p.Notifications, p.Progress, p.Enrollments, p.Courses,
	)
}

type serverParams struct {
	dig.In

	Conf          *core.Config
	Logger        core.Logger
	Validate      *validator.Validate
	Translator    ut.Translator
	UserSvc       user.Service
	Courses       *course.Service
	Enrollments   *enrollment.Service
	Access        *access.Service
	Progress      *progress.Tracker
	Notifications *notification.Dispatcher
}

func newServer(p serverParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.Options{
		Conf:          p.Conf,
		Logger:        p.Logger,
		Validate:      p.Validate,
		Translator:    p.Translator,
		UserSvc:       p.UserSvc,
		Courses:       p.Courses,
		Enrollments:   p.Enrollments,
		Access:        p.Access,
		Progress:      p.Progress,
		Notifications: p.Notifications,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newStorage))
	must(c.Provide(newEmailService))
	must(c.Provide(validator.New))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newDispatcher))
	must(c.Provide(newCourseService))
	must(c.Provide(newEnrollmentService))
	must(c.Provide(newAccessService))
	must(c.Provide(newTracker))
	must(c.Provide(newUserService))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
