package user

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"
	pkgerrors "github.com/pkg/errors"

	"github.com/carosello75/courseconnect/core"
	"github.com/carosello75/courseconnect/core/metrics"
)

var (
	// errors
	ErrNotFound       = errors.New("user not found")
	ErrEmailExists    = errors.New("a user with this email already exists")
	ErrUsernameExists = errors.New("a user with this username already exists")
)

type (
	Repository interface {
		// CheckUsernameUniqueness returns ErrUsernameExists or ErrEmailExists when another user holds them.
		CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...User) error
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		// UpdateOrCreateUser saves all fields of usr, inserting it when usr.ID is empty.
		UpdateOrCreateUser(ctx context.Context, usr User) (User, error)
		SetLastLogin(ctx context.Context, id string, at time.Time) error
		// ListActiveUserIDs returns up to limit active user IDs, newest accounts first.
		ListActiveUserIDs(ctx context.Context, excludedID string, limit int) ([]string, error)
		DeleteUsersByID(ctx context.Context, ids ...string) error
	}

	// Dependent owns records referencing users; they are removed along with the users.
	Dependent interface {
		DeleteByUsers(ctx context.Context, ids ...string) error
	}

	// Notifier is told about accounts created through Service.Create.
	Notifier interface {
		UserRegistered(ctx context.Context, usr User)
	}

	Service interface {
		Create(ctx context.Context, nu NewUser) (User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByUsernameOrEmail(ctx context.Context, uname string) (User, error)
		SetLastLogin(ctx context.Context, usr User) (User, error)
		AddUser(ctx context.Context, uname, email, pwd string, isAdmin bool) (User, error)
		ResetPassword(ctx context.Context, uname, pwd string) error
		Delete(ctx context.Context, actor Ref, ids ...string) error
	}

	service struct {
		conf       *core.Config
		txr        core.Transactor
		repo       Repository
		validate   *validator.Validate
		mailSvc    core.EmailService
		notifier   Notifier
		dependents []Dependent
		logger     core.Logger
	}
)

var _ Service = (*service)(nil)

// NewService returns the user Service.
// dependents are cleaned in the given order before users get deleted.
func NewService(
	conf *core.Config,
	txr core.Transactor,
	repo Repository,
	validate *validator.Validate,
	mailSvc core.EmailService,
	notifier Notifier,
	logger core.Logger,
	dependents ...Dependent,
) Service {
	return &service{
		conf:       conf,
		txr:        txr,
		repo:       repo,
		validate:   validate,
		mailSvc:    mailSvc,
		notifier:   notifier,
		dependents: dependents,
		logger:     logger,
	}
}

func (svc *service) checkUniqueness(ctx context.Context, uname, email string, exclUsers ...User) error {
	if err := svc.repo.CheckUsernameUniqueness(ctx, uname, email, exclUsers...); err != nil {
		var field string
		switch err {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return err
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

// Create registers a new account, notifies them and sends the welcome email.
func (svc *service) Create(ctx context.Context, nu NewUser) (User, error) {
	nu.Clean()
	if err := svc.validate.Struct(nu); err != nil {
		return User{}, err
	}

	var usr User
	err := svc.txr.WithinTx(ctx, func(ctx context.Context) error {
		if err := svc.checkUniqueness(ctx, nu.Username, nu.Email); err != nil {
			return err
		}

		now := time.Now().UTC()
		usr = User{
			Name:      nu.Name,
			Username:  nu.Username,
			Email:     nu.Email,
			Roles:     nu.Roles,
			CreatedAt: now,
			UpdatedAt: now,
		}
		usr.SetActive(true)
		if err := usr.SetPassword(nu.Password); err != nil {
			return pkgerrors.Wrap(err, "hashing password")
		}

		var err error
		if usr, err = svc.repo.CreateUser(ctx, usr); err != nil {
			return pkgerrors.Wrap(err, "creating user")
		}
		if svc.notifier != nil {
			svc.notifier.UserRegistered(ctx, usr)
		}
		return nil
	})
	if err != nil {
		return User{}, metrics.Boundary("user.create", err, ErrUsernameExists, ErrEmailExists)
	}

	svc.sendWelcomeMail(usr)
	return usr, nil
}

func (svc *service) sendWelcomeMail(usr User) {
	if usr.Email == "" || svc.mailSvc == nil {
		return
	}
	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      fmt.Sprintf("Welcome to %s", svc.conf.AppName),
		TemplateName: "welcome",
		TemplateData: map[string]interface{}{
			"Name":     usr.DisplayName(),
			"Username": usr.Username,
		},
	}
	svc.mailSvc.SendMessages(msg)
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	usr, err := svc.repo.GetUser(ctx, GetFilter{ID: id})
	return usr, metrics.Boundary("user.get_by_id", err, ErrNotFound)
}

func (svc *service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	uname = core.CleanString(uname, true /* lower */)
	if uname == "" {
		return User{}, ErrNotFound
	}
	usr, err := svc.repo.GetUser(ctx, GetFilter{UsernameOrEmail: []string{uname}})
	return usr, metrics.Boundary("user.get_by_username_or_email", err, ErrNotFound)
}

func (svc *service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	now := time.Now().UTC()
	if err := svc.repo.SetLastLogin(ctx, usr.ID, now); err != nil {
		return User{}, metrics.Boundary("user.set_last_login", pkgerrors.Wrap(err, "setting last login"), ErrNotFound)
	}
	usr.LastLogin = now
	return usr, nil
}

// AddUser updates or creates an active user with the given credentials.
func (svc *service) AddUser(ctx context.Context, uname, email, pwd string, isAdmin bool) (User, error) {
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)

	usr, err := svc.repo.GetUser(ctx, GetFilter{UsernameOrEmail: []string{uname, email}})
	if err != nil {
		if pkgerrors.Cause(err) != ErrNotFound {
			return User{}, err
		}
		now := time.Now().UTC()
		usr = User{
			Name:      uname,
			Username:  uname,
			Email:     email,
			Roles:     []string{RoleStudent},
			CreatedAt: now,
		}
	}
	if isAdmin {
		usr.Roles = AllRoles
	}
	usr.SetActive(true)
	usr.UpdatedAt = time.Now().UTC()
	if err := usr.SetPassword(pwd); err != nil {
		return User{}, err
	}
	return svc.repo.UpdateOrCreateUser(ctx, usr)
}

func (svc *service) ResetPassword(ctx context.Context, uname, pwd string) error {
	usr, err := svc.repo.GetUser(ctx, GetFilter{UsernameOrEmail: []string{core.CleanString(uname, true /* lower */)}})
	if err != nil {
		return err
	}
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}
	usr.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.UpdateOrCreateUser(ctx, usr)
	return err
}

// Delete removes users and everything referencing them in one unit of work.
// Only admins may delete users and nobody may delete themselves.
func (svc *service) Delete(ctx context.Context, actor Ref, ids ...string) error {
	if !actor.IsAdmin {
		return core.ErrForbidden
	}
	for _, id := range ids {
		if id == actor.ID {
			return core.ErrForbidden
		}
	}
	if len(ids) == 0 {
		return nil
	}

	err := svc.txr.WithinTx(ctx, func(ctx context.Context) error {
		for _, id := range ids {
			if _, err := svc.repo.GetUser(ctx, GetFilter{ID: id}); err != nil {
				return err
			}
		}
		for _, dep := range svc.dependents {
			if err := dep.DeleteByUsers(ctx, ids...); err != nil {
				return pkgerrors.Wrap(err, "deleting user dependents")
			}
		}
		return pkgerrors.Wrap(svc.repo.DeleteUsersByID(ctx, ids...), "deleting users")
	})
	if err != nil {
		return metrics.Boundary("user.delete", err, ErrNotFound)
	}
	svc.logger.Info(fmt.Sprintf("users deleted: %v", ids), actor)
	return nil
}
