package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/carosello75/courseconnect/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

func isExcluded(usr user.User, excludedUsers []user.User) bool {
	for _, u := range excludedUsers {
		if u.ID == usr.ID {
			return true
		}
	}
	return false
}

func (repo *userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	defer repo.db.lock(ctx)()
	return repo.checkUniqueness(username, email, excludedUsers...)
}

func (repo *userRepository) checkUniqueness(username, email string, excludedUsers ...user.User) error {
	for _, usr := range repo.db.t.users {
		if isExcluded(usr, excludedUsers) {
			continue
		}
		if username != "" && usr.Username == username {
			return user.ErrUsernameExists
		}
		if email != "" && usr.Email == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	defer repo.db.lock(ctx)()
	return repo.insert(usr)
}

func (repo *userRepository) insert(usr user.User) (user.User, error) {
	if err := repo.checkUniqueness(usr.Username, usr.Email); err != nil {
		return user.User{}, err
	}
	usr.ID = uuid.New().String()
	repo.db.t.users[usr.ID] = usr
	repo.db.track(usr.ID)
	return usr, nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	defer repo.db.lock(ctx)()

	if filter.ID != "" {
		if usr, ok := repo.db.t.users[filter.ID]; ok {
			return usr, nil
		}
		return user.User{}, user.ErrNotFound
	}
	for _, uname := range filter.UsernameOrEmail {
		uname = strings.ToLower(uname)
		if uname == "" {
			continue
		}
		for _, usr := range repo.db.t.users {
			if usr.Username == uname || usr.Email == uname {
				return usr, nil
			}
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) UpdateOrCreateUser(ctx context.Context, usr user.User) (user.User, error) {
	defer repo.db.lock(ctx)()

	if _, ok := repo.db.t.users[usr.ID]; !ok || usr.ID == "" {
		return repo.insert(usr)
	}
	if err := repo.checkUniqueness(usr.Username, usr.Email, usr); err != nil {
		return user.User{}, err
	}
	repo.db.t.users[usr.ID] = usr
	return usr, nil
}

func (repo *userRepository) SetLastLogin(ctx context.Context, id string, at time.Time) error {
	defer repo.db.lock(ctx)()

	usr, ok := repo.db.t.users[id]
	if !ok {
		return user.ErrNotFound
	}
	usr.LastLogin = at.UTC()
	repo.db.t.users[id] = usr
	return nil
}

func (repo *userRepository) ListActiveUserIDs(ctx context.Context, excludedID string, limit int) ([]string, error) {
	defer repo.db.lock(ctx)()

	users := make([]user.User, 0, len(repo.db.t.users))
	for _, usr := range repo.db.t.users {
		if usr.ID != excludedID && usr.Active() {
			users = append(users, usr)
		}
	}
	sort.Slice(users, func(i, j int) bool {
		if !users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].CreatedAt.After(users[j].CreatedAt)
		}
		return repo.db.t.seq[users[i].ID] > repo.db.t.seq[users[j].ID]
	})
	if limit >= 0 && len(users) > limit {
		users = users[:limit]
	}

	ids := make([]string, 0, len(users))
	for _, usr := range users {
		ids = append(ids, usr.ID)
	}
	return ids, nil
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids ...string) error {
	defer repo.db.lock(ctx)()

	for _, id := range ids {
		delete(repo.db.t.users, id)
		delete(repo.db.t.seq, id)
	}
	return nil
}
