package inmemdb

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
)

func TestDB_WithinTx(t *testing.T) {
	ctx := context.Background()
	db := Open()
	users := NewUserRepository(db)
	now := time.Now().UTC()

	newUser := func(id, uname string) user.User {
		return user.User{ID: id, Name: uname, Username: uname, IsActive: true, Roles: []string{}, CreatedAt: now, UpdatedAt: now}
	}

	t.Run("commit", func(t *testing.T) {
		err := db.WithinTx(ctx, func(ctx context.Context) error {
			return users.Create(ctx, newUser("u1", "first"))
		})
		require.NoError(t, err)
		_, err = users.GetByID(ctx, "u1")
		assert.NoError(t, err)
	})

	t.Run("rollback", func(t *testing.T) {
		boom := errors.New("boom")
		err := db.WithinTx(ctx, func(ctx context.Context) error {
			if err := users.Create(ctx, newUser("u2", "second")); err != nil {
				return err
			}
			// nested calls join the outer transaction
			return db.WithinTx(ctx, func(ctx context.Context) error {
				if err := users.Delete(ctx, "u1"); err != nil {
					return err
				}
				return boom
			})
		})
		assert.Equal(t, boom, err)

		_, err = users.GetByID(ctx, "u2")
		assert.Equal(t, user.ErrNotFound, err)
		_, err = users.GetByID(ctx, "u1")
		assert.NoError(t, err)
	})

	t.Run("unique violation", func(t *testing.T) {
		err := users.Create(ctx, newUser("u3", "first"))
		assert.Equal(t, user.ErrUsernameExists, err)
	})
}

func TestCascades(t *testing.T) {
	ctx := context.Background()
	db := Open()
	users := NewUserRepository(db)
	schools := NewSchoolRepository(db)
	now := time.Now().UTC()

	require.NoError(t, users.Create(ctx,
		user.User{ID: "u1", Name: "Jane", Username: "jane", Roles: []string{user.RoleStudent}, CreatedAt: now},
		user.User{ID: "u2", Name: "Mary", Username: "mary", Roles: []string{user.RoleParent}, CreatedAt: now},
	))
	require.NoError(t, schools.CreateParents(ctx, school.Parent{ID: "p1", UserID: "u2", CreatedAt: now}))
	require.NoError(t, schools.CreateStudents(ctx, school.Student{
		ID: "s1", UserID: "u1", StudentNumber: "S-1", ParentID: "p1", Gender: "F", CreatedAt: now,
	}))

	s, err := schools.GetStudent(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Jane", s.Name)

	require.NoError(t, users.Delete(ctx, "u2"))
	s, err = schools.GetStudent(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, s.ParentID)

	require.NoError(t, users.Delete(ctx, "u1"))
	_, err = schools.GetStudent(ctx, "s1")
	assert.True(t, core.IsNotFound(err))
}
