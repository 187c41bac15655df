package user

import (
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/carosello75/courseconnect/core"
)

// Roles
const (
	// Admin
	RoleAdmin      = "admin:"
	RoleAdminOwner = "admin:owner"

	// Instructor
	RoleInstructor = "instructor:"

	// Student
	RoleStudent = "student:"
)

var (
	AdminRoles      = []string{RoleAdmin, RoleAdminOwner}
	InstructorRoles = []string{RoleInstructor}
	StudentRoles    = []string{RoleStudent}
	AllRoles        = getAllRoles()

	Roles = []Role{
		{Name: "Student", Value: RoleStudent},
		{Name: "Instructor", Value: RoleInstructor},
		{Name: "Admin", Value: RoleAdmin},
		{Name: "Admin Owner", Value: RoleAdminOwner},
	}
)

func getAllRoles() []string {
	all := make([]string, 0, 4)
	all = append(all, AdminRoles...)
	all = append(all, InstructorRoles...)
	all = append(all, StudentRoles...)
	return all
}

func hasRolePrefix(roles []string, prefix string) bool {
	for _, role := range roles {
		if strings.HasPrefix(role, prefix) {
			return true
		}
	}
	return false
}

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	IsActive     *bool     `json:"is_active"`
	Roles        []string  `json:"roles"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
	LastLogin    time.Time `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) SetActive(active bool) {
	u.IsActive = &active
}

// Active reports whether the account may log in; a nil IsActive counts as active.
func (u *User) Active() bool {
	return u.IsActive == nil || *u.IsActive
}

func (u *User) IsAdmin() bool {
	return hasRolePrefix(u.Roles, RoleAdmin)
}

func (u *User) IsInstructor() bool {
	return hasRolePrefix(u.Roles, RoleInstructor)
}

func (u *User) IsStudent() bool {
	return hasRolePrefix(u.Roles, RoleStudent)
}

func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	if u.Username != "" {
		return u.Username
	}
	return u.Email
}

// Ref returns the identity the core services act on behalf of.
func (u *User) Ref() Ref {
	return NewRef(u.ID, u.DisplayName(), u.Roles)
}

// Ref identifies the user a core operation runs for.
// Operations that accept anonymous viewers take a *Ref and treat nil as anonymous.
type Ref struct {
	ID          string
	DisplayName string
	IsAdmin     bool
	CanTeach    bool // admins and instructors may author courses
}

func NewRef(id, displayName string, roles []string) Ref {
	isAdmin := hasRolePrefix(roles, RoleAdmin)
	return Ref{
		ID:          id,
		DisplayName: displayName,
		IsAdmin:     isAdmin,
		CanTeach:    isAdmin || hasRolePrefix(roles, RoleInstructor),
	}
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	Name            string   `json:"name" validate:"required"`
	Username        string   `json:"username" validate:"omitempty,min=3,alphanum_"`
	Email           string   `json:"email" validate:"omitempty,email"`
	Password        string   `json:"password" validate:"required"`
	PasswordConfirm string   `json:"password_confirm" validate:"required,eqfield=Password"`
	Roles           []string `json:"roles" validate:"omitempty,allroles"`
}

func (nu *NewUser) Clean() {
	nu.Name = core.CleanString(nu.Name)
	nu.Username = core.CleanString(nu.Username, true /* lower */)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
}

// GetFilter selects a single user. The first non empty field wins.
type GetFilter struct {
	ID              string
	UsernameOrEmail []string
}
