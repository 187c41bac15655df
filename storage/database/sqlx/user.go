package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/carosello75/courseconnect/core/user"
)

type userRow struct {
	ID           string         `db:"id"`
	Name         null.String    `db:"name"`
	Username     null.String    `db:"username"`
	Email        null.String    `db:"email"`
	IsActive     null.Bool      `db:"is_active"`
	Roles        pq.StringArray `db:"roles"`
	PasswordHash null.Bytes     `db:"password_hash"`
	CreatedAt    null.Time      `db:"created_at"`
	UpdatedAt    null.Time      `db:"updated_at"`
	LastLogin    null.Time      `db:"last_login"`
}

func newUserRow(usr user.User) userRow {
	roles := usr.Roles
	if roles == nil {
		roles = []string{}
	}
	return userRow{
		ID:           usr.ID,
		Name:         null.NewString(usr.Name, usr.Name != ""),
		Username:     null.NewString(usr.Username, usr.Username != ""),
		Email:        null.NewString(usr.Email, usr.Email != ""),
		IsActive:     null.BoolFromPtr(usr.IsActive),
		Roles:        roles,
		PasswordHash: null.BytesFrom(usr.PasswordHash),
		CreatedAt:    null.NewTime(usr.CreatedAt.UTC(), !usr.CreatedAt.IsZero()),
		UpdatedAt:    null.NewTime(usr.UpdatedAt.UTC(), !usr.UpdatedAt.IsZero()),
		LastLogin:    null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
}

func (row userRow) user() user.User {
	return user.User{
		ID:           row.ID,
		Name:         row.Name.String,
		Username:     row.Username.String,
		Email:        row.Email.String,
		IsActive:     row.IsActive.Ptr(),
		Roles:        row.Roles,
		PasswordHash: row.PasswordHash.Bytes,
		CreatedAt:    row.CreatedAt.Time.UTC(),
		UpdatedAt:    row.UpdatedAt.Time.UTC(),
		LastLogin:    row.LastLogin.Time.UTC(),
	}
}

const userColumns = `id, name, username, email, is_active, roles, password_hash, created_at, updated_at, last_login`

type userRepository struct {
	repository
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{repository{db: db}}
}

// trapNoRowsErr maps psql "no rows" err to user.ErrNotFound
func (repo userRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return user.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

// trapUniqueErr maps unique violations on username or email to their domain errors
func (repo userRepository) trapUniqueErr(err error, msg string) error {
	switch {
	case isUniqueViolation(err, "users_username_key"):
		return user.ErrUsernameExists
	case isUniqueViolation(err, "users_email_key"):
		return user.ErrEmailExists
	}
	return errors.Wrap(err, msg)
}

func (repo userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	exec := repo.exec(ctx)
	excluded := make([]string, 0, len(excludedUsers)+1)
	excluded = append(excluded, "") // sqlx.In needs a non empty slice
	for _, u := range excludedUsers {
		excluded = append(excluded, u.ID)
	}

	q, args, err := in(exec, `
		SELECT username = ? AS username_taken
		FROM users
		WHERE (username = ? OR email = ?) AND id NOT IN (?)
		ORDER BY username_taken DESC
		LIMIT 1`,
		null.NewString(username, username != ""),
		null.NewString(username, username != ""),
		null.NewString(email, email != ""),
		excluded,
	)
	if err != nil {
		return errors.Wrap(err, "building uniqueness query")
	}

	var usernameTaken null.Bool
	if err = exec.GetContext(ctx, &usernameTaken, q, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil
		}
		return errors.Wrap(err, "checking user uniqueness")
	}
	if usernameTaken.Bool {
		return user.ErrUsernameExists
	}
	return user.ErrEmailExists
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = uuid.New().String()
	row := newUserRow(usr)
	_, err := sqlx.NamedExecContext(ctx, repo.exec(ctx), `
		INSERT INTO users (`+userColumns+`)
		VALUES (:id, :name, :username, :email, :is_active, :roles, :password_hash, :created_at, :updated_at, :last_login)`,
		row,
	)
	if err != nil {
		return user.User{}, repo.trapUniqueErr(err, "inserting user")
	}
	return row.user(), nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var row userRow
	var err error
	exec := repo.exec(ctx)

	switch {
	case filter.ID != "":
		err = exec.GetContext(ctx, &row, `SELECT `+userColumns+` FROM users WHERE id = $1`, filter.ID)
	case len(filter.UsernameOrEmail) > 0:
		var q string
		var args []interface{}
		q, args, err = in(exec,
			`SELECT `+userColumns+` FROM users WHERE username IN (?) OR email IN (?) ORDER BY created_at LIMIT 1`,
			filter.UsernameOrEmail, filter.UsernameOrEmail)
		if err != nil {
			return user.User{}, errors.Wrap(err, "building user query")
		}
		err = exec.GetContext(ctx, &row, q, args...)
	default:
		return user.User{}, user.ErrNotFound
	}

	if err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "getting user")
	}
	return row.user(), nil
}

func (repo userRepository) UpdateOrCreateUser(ctx context.Context, usr user.User) (user.User, error) {
	if usr.ID == "" {
		return repo.CreateUser(ctx, usr)
	}
	row := newUserRow(usr)
	_, err := sqlx.NamedExecContext(ctx, repo.exec(ctx), `
		INSERT INTO users (`+userColumns+`)
		VALUES (:id, :name, :username, :email, :is_active, :roles, :password_hash, :created_at, :updated_at, :last_login)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			username = EXCLUDED.username,
			email = EXCLUDED.email,
			is_active = EXCLUDED.is_active,
			roles = EXCLUDED.roles,
			password_hash = EXCLUDED.password_hash,
			updated_at = EXCLUDED.updated_at,
			last_login = EXCLUDED.last_login`,
		row,
	)
	if err != nil {
		return user.User{}, repo.trapUniqueErr(err, "saving user")
	}
	return row.user(), nil
}

func (repo userRepository) SetLastLogin(ctx context.Context, id string, at time.Time) error {
	res, err := repo.exec(ctx).ExecContext(ctx, `UPDATE users SET last_login = $1 WHERE id = $2`, at.UTC(), id)
	if err != nil {
		return errors.Wrap(err, "setting last login")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.ErrNotFound
	}
	return nil
}

func (repo userRepository) ListActiveUserIDs(ctx context.Context, excludedID string, limit int) ([]string, error) {
	ids := make([]string, 0, limit)
	err := repo.exec(ctx).SelectContext(ctx, &ids, `
		SELECT id FROM users
		WHERE is_active IS NOT FALSE AND id <> $1
		ORDER BY created_at DESC NULLS LAST, id
		LIMIT $2`,
		excludedID, limit,
	)
	if err != nil {
		return nil, errors.Wrap(err, "listing active users")
	}
	return ids, nil
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	exec := repo.exec(ctx)
	q, args, err := in(exec, `DELETE FROM users WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "building delete query")
	}
	if _, err = exec.ExecContext(ctx, q, args...); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return nil
}
