package pgrepos

import (
	"context"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core/user"
)

const userColumns = `id, name, username, email, is_active, roles, password_hash, created_at, updated_at, last_login`

type userRow struct {
	ID           string         `db:"id"`
	Name         string         `db:"name"`
	Username     null.String    `db:"username"`
	Email        null.String    `db:"email"`
	IsActive     bool           `db:"is_active"`
	Roles        pq.StringArray `db:"roles"`
	PasswordHash []byte         `db:"password_hash"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
	LastLogin    null.Time      `db:"last_login"`
}

func nullString(s string) null.String {
	return null.NewString(s, s != "")
}

func newUserRow(u user.User) userRow {
	roles := pq.StringArray(u.Roles)
	if roles == nil {
		roles = pq.StringArray{}
	}
	return userRow{
		ID:           u.ID,
		Name:         u.Name,
		Username:     nullString(u.Username),
		Email:        nullString(u.Email),
		IsActive:     u.IsActive,
		Roles:        roles,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
		LastLogin:    null.TimeFromPtr(u.LastLogin),
	}
}

func (r userRow) model() user.User {
	roles := []string(r.Roles)
	if roles == nil {
		roles = []string{}
	}
	return user.User{
		ID:           r.ID,
		Name:         r.Name,
		Username:     r.Username.String,
		Email:        r.Email.String,
		IsActive:     r.IsActive,
		Roles:        roles,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
		LastLogin:    r.LastLogin.Ptr(),
	}
}

type userRepository struct {
	db *DB
}

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckUniqueness(ctx context.Context, username, email, excludedID string) error {
	var cond conditions
	cond.add("((? <> '' AND username = ?) OR (? <> '' AND email = ?))", username, username, email, email)
	if isUUID(excludedID) {
		cond.add("id <> ?", excludedID)
	}

	var rows []userRow
	if err := repo.db.selectAll(ctx, &rows, "SELECT "+userColumns+" FROM users"+cond.where()+" LIMIT 2", cond.args...); err != nil {
		return errors.Wrap(err, "checking uniqueness")
	}
	for _, r := range rows {
		if username != "" && r.Username.String == username {
			return user.ErrUsernameExists
		}
	}
	if len(rows) > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (repo *userRepository) Create(ctx context.Context, users ...user.User) error {
	return repo.db.WithinTx(ctx, func(ctx context.Context) error {
		for _, u := range users {
			err := repo.db.namedExec(ctx, `
				INSERT INTO users (`+userColumns+`)
				VALUES (:id, :name, :username, :email, :is_active, :roles, :password_hash, :created_at, :updated_at, :last_login)`,
				newUserRow(u),
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (repo *userRepository) Query(ctx context.Context, filter user.QueryFilter) ([]user.User, error) {
	var cond conditions
	if filter.Search != "" {
		pattern := likePattern(filter.Search)
		cond.add("(name ILIKE ? OR username ILIKE ? OR email ILIKE ?)", pattern, pattern, pattern)
	}
	if len(filter.Roles) > 0 {
		patterns := make(pq.StringArray, 0, len(filter.Roles))
		for _, prefix := range filter.Roles {
			patterns = append(patterns, strings.NewReplacer("%", `\%`, "_", `\_`).Replace(prefix)+"%")
		}
		cond.add("EXISTS (SELECT 1 FROM unnest(roles) AS role WHERE role LIKE ANY(?))", patterns)
	}
	if filter.IsActive != nil {
		cond.add("is_active = ?", *filter.IsActive)
	}
	if !filter.CreatedFrom.IsZero() {
		cond.add("created_at >= ?", filter.CreatedFrom)
	}
	if !filter.CreatedTo.IsZero() {
		cond.add("created_at <= ?", filter.CreatedTo)
	}
	cond.ids("id", filter.IDs)

	orderBy := make([]string, 0, len(filter.Ordering)+1)
	for _, ord := range filter.Ordering {
		if ord.Field == "last_login" {
			orderBy = append(orderBy, ord.String()+" NULLS LAST")
			continue
		}
		orderBy = append(orderBy, ord.String())
	}
	if len(orderBy) == 0 {
		orderBy = append(orderBy, "created_at DESC")
	}
	orderBy = append(orderBy, "id ASC")

	var rows []userRow
	q := "SELECT " + userColumns + " FROM users" + cond.where() + " ORDER BY " + strings.Join(orderBy, ", ")
	if err := repo.db.selectAll(ctx, &rows, q, cond.args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.model())
	}
	return users, nil
}

// getBy returns the first user matching clause, a condition on $1.
func (repo *userRepository) getBy(ctx context.Context, clause, value string) (user.User, error) {
	if value == "" {
		return user.User{}, user.ErrNotFound
	}
	var rows []userRow
	q := "SELECT " + userColumns + " FROM users WHERE " + clause + " LIMIT 1"
	if err := repo.db.selectAll(ctx, &rows, q, value); err != nil {
		return user.User{}, errors.Wrap(err, "getting user")
	}
	if len(rows) == 0 {
		return user.User{}, user.ErrNotFound
	}
	return rows[0].model(), nil
}

func (repo *userRepository) GetByID(ctx context.Context, id string) (user.User, error) {
	if !isUUID(id) {
		return user.User{}, user.ErrNotFound
	}
	return repo.getBy(ctx, "id = $1", id)
}

func (repo *userRepository) GetByEmail(ctx context.Context, email string) (user.User, error) {
	return repo.getBy(ctx, "email = $1", email)
}

func (repo *userRepository) GetByUsernameOrEmail(ctx context.Context, uname string) (user.User, error) {
	return repo.getBy(ctx, "(username = $1 OR email = $1)", uname)
}

func (repo *userRepository) Update(ctx context.Context, usr user.User) error {
	if !isUUID(usr.ID) {
		return user.ErrNotFound
	}
	res, err := repo.db.namedExecResult(ctx, `
		UPDATE users SET name = :name, username = :username, email = :email, is_active = :is_active,
			roles = :roles, password_hash = :password_hash, updated_at = :updated_at, last_login = :last_login
		WHERE id = :id`,
		newUserRow(usr),
	)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res, user.ErrNotFound)
}

func (repo *userRepository) SetLastLogin(ctx context.Context, id string, t time.Time) error {
	if !isUUID(id) {
		return user.ErrNotFound
	}
	return repo.db.exec(ctx, "UPDATE users SET last_login = $1 WHERE id = $2", t.UTC(), id)
}

func (repo *userRepository) Delete(ctx context.Context, ids ...string) error {
	valid := uuids(ids)
	if len(valid) == 0 {
		return nil
	}
	return repo.db.exec(ctx, "DELETE FROM users WHERE id = ANY($1::uuid[])", valid)
}
