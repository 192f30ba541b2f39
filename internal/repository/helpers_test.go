package repository

import (
	"context"
	"strings"
	"testing"

	"crew/internal/model"
	"crew/pkg/db"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	return newMockDBWithMatcher(t, prefixMatcher())
}

func newMockDBWithMatcher(t *testing.T, matcher sqlmock.QueryMatcher) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(matcher))
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDB, DriverName: "postgres"}), &gorm.Config{})
	require.NoError(t, err)

	return gdb, mock
}

func prefixMatcher() sqlmock.QueryMatcher {
	return sqlmock.QueryMatcherFunc(func(expected, actual string) error {
		normalize := func(s string) string { return strings.Join(strings.Fields(s), " ") }
		if strings.HasPrefix(normalize(actual), normalize(expected)) {
			return nil
		}
		return sqlmock.ErrCancelled
	})
}

func createGroup(t *testing.T, repo *GroupRepository, name string, parentID *string) *model.Group {
	t.Helper()
	g := &model.Group{Name: name, ParentID: parentID}
	require.NoError(t, repo.Create(context.Background(), g))
	require.NotEmpty(t, g.ID)
	return g
}

func createUser(t *testing.T, repo *UserRepository, name string) *model.User {
	t.Helper()
	u := &model.User{Name: name, Email: name + "@example.com", Active: true}
	require.NoError(t, repo.Create(context.Background(), u))
	return u
}

func setup(t *testing.T) *gorm.DB {
	t.Helper()
	return db.NewTestDB(t)
}
