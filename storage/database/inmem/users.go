package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

type userRepository struct {
	db *DB
}

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

func copyUser(u user.User) user.User {
	u.Roles = append([]string{}, u.Roles...)
	u.PasswordHash = append([]byte(nil), u.PasswordHash...)
	return u
}

func checkUserUniqueness(t *tables, username, email, excludedID string) error {
	for _, u := range t.users {
		if u.ID == excludedID {
			continue
		}
		if username != "" && u.Username == username {
			return user.ErrUsernameExists
		}
		if email != "" && u.Email == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CheckUniqueness(_ context.Context, username, email, excludedID string) (err error) {
	repo.db.read(func(t *tables) {
		err = checkUserUniqueness(t, username, email, excludedID)
	})
	return err
}

func (repo *userRepository) Create(ctx context.Context, users ...user.User) error {
	return repo.db.write(ctx, func(t *tables) error {
		for _, u := range users {
			if err := checkUserUniqueness(t, u.Username, u.Email, u.ID); err != nil {
				return err
			}
			t.users[u.ID] = copyUser(u)
		}
		return nil
	})
}

func userMatches(u user.User, filter user.QueryFilter) bool {
	if filter.Search != "" {
		search := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(u.Name), search) &&
			!strings.Contains(u.Username, search) &&
			!strings.Contains(u.Email, search) {
			return false
		}
	}
	if len(filter.Roles) > 0 {
		found := false
		for _, prefix := range filter.Roles {
			if u.RoleStartsWith(prefix) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.IsActive != nil && u.IsActive != *filter.IsActive {
		return false
	}
	if !filter.CreatedFrom.IsZero() && u.CreatedAt.Before(filter.CreatedFrom) {
		return false
	}
	if !filter.CreatedTo.IsZero() && u.CreatedAt.After(filter.CreatedTo) {
		return false
	}
	if len(filter.IDs) > 0 && !inSlice(u.ID, filter.IDs) {
		return false
	}
	return true
}

// compareUsers compares a and b on field; -1, 0 or 1.
func compareUsers(a, b user.User, field string) int {
	cmpStr := func(x, y string) int { return strings.Compare(strings.ToLower(x), strings.ToLower(y)) }
	cmpTime := func(x, y time.Time) int {
		switch {
		case x.Before(y):
			return -1
		case x.After(y):
			return 1
		}
		return 0
	}
	switch field {
	case "name":
		return cmpStr(a.Name, b.Name)
	case "username":
		return cmpStr(a.Username, b.Username)
	case "email":
		return cmpStr(a.Email, b.Email)
	case "created_at":
		return cmpTime(a.CreatedAt, b.CreatedAt)
	case "last_login":
		var x, y time.Time
		if a.LastLogin != nil {
			x = *a.LastLogin
		}
		if b.LastLogin != nil {
			y = *b.LastLogin
		}
		return cmpTime(x, y)
	}
	return 0
}

func (repo *userRepository) Query(_ context.Context, filter user.QueryFilter) ([]user.User, error) {
	users := []user.User{}
	repo.db.read(func(t *tables) {
		for _, u := range t.users {
			if userMatches(u, filter) {
				users = append(users, copyUser(u))
			}
		}
	})

	ordering := filter.Ordering
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at", Ascending: false}}
	}
	sort.SliceStable(users, func(i, j int) bool {
		for _, ord := range ordering {
			c := compareUsers(users[i], users[j], ord.Field)
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return users[i].ID < users[j].ID
	})
	return users, nil
}

func (repo *userRepository) find(match func(u user.User) bool) (usr user.User, err error) {
	err = user.ErrNotFound
	repo.db.read(func(t *tables) {
		for _, u := range t.users {
			if match(u) {
				usr, err = copyUser(u), nil
				return
			}
		}
	})
	return usr, err
}

func (repo *userRepository) GetByID(_ context.Context, id string) (user.User, error) {
	return repo.find(func(u user.User) bool { return u.ID == id })
}

func (repo *userRepository) GetByEmail(_ context.Context, email string) (user.User, error) {
	return repo.find(func(u user.User) bool { return email != "" && u.Email == email })
}

func (repo *userRepository) GetByUsernameOrEmail(_ context.Context, uname string) (user.User, error) {
	return repo.find(func(u user.User) bool {
		return uname != "" && (u.Username == uname || u.Email == uname)
	})
}

func (repo *userRepository) Update(ctx context.Context, usr user.User) error {
	return repo.db.write(ctx, func(t *tables) error {
		if _, ok := t.users[usr.ID]; !ok {
			return user.ErrNotFound
		}
		if err := checkUserUniqueness(t, usr.Username, usr.Email, usr.ID); err != nil {
			return err
		}
		t.users[usr.ID] = copyUser(usr)
		return nil
	})
}

func (repo *userRepository) SetLastLogin(ctx context.Context, id string, at time.Time) error {
	return repo.db.write(ctx, func(t *tables) error {
		u, ok := t.users[id]
		if !ok {
			return user.ErrNotFound
		}
		at = at.UTC()
		u.LastLogin = &at
		t.users[id] = u
		return nil
	})
}

func (repo *userRepository) Delete(ctx context.Context, ids ...string) error {
	return repo.db.write(ctx, func(t *tables) error {
		for _, id := range ids {
			t.deleteUser(id)
		}
		return nil
	})
}
