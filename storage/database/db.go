package database

import (
	"embed"
	"fmt"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"

	"github.com/carosello75/courseconnect/core"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsDir = "migrations"

func init() {
	goose.SetBaseFS(migrationsFS)
}

func dataSourceName(dbName string, admin bool, conf *core.Config) string {
	user := url.UserPassword(conf.Database.User, conf.Database.Password)
	if admin && conf.Database.AdminUser != "" {
		user = url.UserPassword(conf.Database.AdminUser, conf.Database.AdminPassword)
	}

	sslMode := "require"
	if conf.Database.DisableTLS {
		sslMode = "disable"
	}
	q := make(url.Values)
	q.Set("sslmode", sslMode)
	q.Set("timezone", "utc")

	u := url.URL{
		Scheme:   conf.Database.Engine,
		User:     user,
		Host:     conf.Database.Address(),
		Path:     dbName,
		RawQuery: q.Encode(),
	}
	return u.String()
}

func open(dbName string, admin bool, conf *core.Config) (*sqlx.DB, error) {
	return sqlx.Open(conf.Database.Engine, dataSourceName(dbName, admin, conf))
}

// Open opens the app database. The connection is not checked.
func Open(conf *core.Config) (*sqlx.DB, error) {
	db, err := open(conf.Database.Name, false, conf)
	if err != nil {
		return nil, err
	}
	if conf.Database.MaxOpenConns > 0 {
		db.SetMaxOpenConns(conf.Database.MaxOpenConns)
	}
	return db, nil
}

// OpenURL opens a database from a postgres connection URL (tests).
func OpenURL(dsn string) (*sqlx.DB, error) {
	return sqlx.Open("postgres", dsn)
}

// waitReady pings db until it answers, backing off 100ms more after each failed attempt.
func waitReady(db *sqlx.DB, attempts int) error {
	var err error
	for i := 1; i <= attempts; i++ {
		if err = db.Ping(); err == nil {
			return nil
		}
		time.Sleep(time.Duration(i) * 100 * time.Millisecond)
	}
	return errors.Wrap(err, "database not ready")
}

// ensure runs create unless the exists query, bound to name, reports the object is there.
func ensure(db *sqlx.DB, name, exists, create string) error {
	var found bool
	if err := db.Get(&found, exists, name); err != nil {
		return errors.Wrapf(err, "looking up %s", name)
	}
	if found {
		return nil
	}
	_, err := db.Exec(create)
	return errors.Wrapf(err, "creating %s", name)
}

// CreateIfNotExist creates the app role, connected as the admin user, then the app database as that role.
func CreateIfNotExist(conf *core.Config) error {
	adminDB, err := open("postgres", true, conf)
	if err != nil {
		return errors.Wrap(err, "opening database")
	}
	defer func() { _ = adminDB.Close() }()
	if err = waitReady(adminDB, 30); err != nil {
		return err
	}

	dbc := conf.Database
	if dbc.User != "" {
		// identifiers and passwords cannot be bound as parameters in DDL
		if err = ensure(adminDB, dbc.User,
			"SELECT EXISTS (SELECT 1 FROM pg_roles WHERE rolname = $1)",
			fmt.Sprintf("CREATE USER %s CREATEDB ENCRYPTED PASSWORD '%s'", dbc.User, dbc.Password),
		); err != nil {
			return err
		}
	}

	appDB, err := open("postgres", false, conf)
	if err != nil {
		return errors.Wrap(err, "opening database")
	}
	defer func() { _ = appDB.Close() }()
	return ensure(appDB, dbc.Name,
		"SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)",
		"CREATE DATABASE "+dbc.Name,
	)
}

// RunMigrations runs a goose command against the embedded migrations.
func RunMigrations(db *sqlx.DB, command string, args ...string) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.Run(command, db.DB, migrationsDir, args...)
}

func Migrate(db *sqlx.DB) error {
	if err := RunMigrations(db, "up"); err != nil {
		return errors.Wrap(err, "migrating database")
	}
	return nil
}
