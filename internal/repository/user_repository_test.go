package repository

import (
	"context"
	"testing"

	"crew/internal/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepository_Create(t *testing.T) {
	repo := NewUserRepository(setup(t))
	ctx := context.Background()

	user := createUser(t, repo, "testuser")

	found, err := repo.FindByEmail(ctx, "testuser@example.com")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, user.ID, found.ID)

	byID, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, "testuser", byID.Name)
}

func TestUserRepository_NotFound(t *testing.T) {
	repo := NewUserRepository(setup(t))
	ctx := context.Background()

	found, err := repo.FindByEmail(ctx, "nobody@example.com")
	assert.NoError(t, err)
	assert.Nil(t, found)

	found, err = repo.FindByID(ctx, "missing")
	assert.NoError(t, err)
	assert.Nil(t, found)
}

func TestUserRepository_DuplicateEmail(t *testing.T) {
	repo := NewUserRepository(setup(t))
	ctx := context.Background()

	createUser(t, repo, "dup")
	err := repo.Create(ctx, &model.User{Name: "other", Email: "dup@example.com"})
	assert.Error(t, err)
}

func TestUserRepository_ForUpdateLocksRow(t *testing.T) {
	gdb, mock := newMockDBWithMatcher(t, sqlmock.QueryMatcherRegexp)
	repo := NewUserRepository(gdb)
	ctx := context.Background()

	rows := sqlmock.NewRows([]string{"id", "name", "email", "active"}).AddRow("u1", "Ann", "ann@example.com", true)
	mock.ExpectQuery(`SELECT \* FROM "users" WHERE id = \$1 .*FOR UPDATE`).WillReturnRows(rows)

	user, err := repo.WithTx(gdb).ForUpdate().FindByID(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "Ann", user.Name)

	// 未加锁的读取不带 FOR UPDATE
	mock.ExpectQuery(`SELECT \* FROM "users" WHERE id = \$1 ORDER BY "users"\."id" LIMIT \S+$`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	user, err = repo.FindByID(ctx, "u2")
	require.NoError(t, err)
	assert.Nil(t, user)

	require.NoError(t, mock.ExpectationsWereMet())
}
