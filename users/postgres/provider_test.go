package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/MrEthical07/sessionguard/jwt"
	"github.com/MrEthical07/sessionguard/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var userQuery = `(?s)^SELECT\s+u\.id,\s*u\.login,\s*u\.password,\s*u\.role,\s*u\.is_active,.*FROM\s+"auth"\."users"\s+u.*WHERE\s+u\.login\s*=\s*\$1\s+GROUP\s+BY\s+u\.id$`

func newProviderWithMock(t *testing.T) (*Provider, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return New(db, "auth"), mock, db
}

func columns() []string {
	return []string{"id", "login", "password", "role", "is_active", "subscriptions"}
}

func TestGetUserByLogin_Found(t *testing.T) {
	p, mock, db := newProviderWithMock(t)
	defer db.Close()

	mock.ExpectQuery(userQuery).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows(columns()).AddRow("u-1", "alice", "hash", "admin", true, "{premium,news}"))

	got, err := p.GetUserByLogin(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "u-1", got.UserID)
	assert.Equal(t, jwt.RoleAdmin, got.Role)
	assert.True(t, got.Active)
	assert.Equal(t, []string{"premium", "news"}, got.Subscriptions)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserByLogin_NotFound(t *testing.T) {
	p, mock, db := newProviderWithMock(t)
	defer db.Close()

	mock.ExpectQuery(userQuery).WithArgs("ghost").WillReturnError(sql.ErrNoRows)

	_, err := p.GetUserByLogin(context.Background(), "ghost")
	assert.ErrorIs(t, err, users.ErrNotFound)
}

func TestGetUserByLogin_DBError(t *testing.T) {
	p, mock, db := newProviderWithMock(t)
	defer db.Close()

	mock.ExpectQuery(userQuery).WithArgs("alice").WillReturnError(errors.New("db down"))

	_, err := p.GetUserByLogin(context.Background(), "alice")
	require.Error(t, err)
	assert.Regexp(t, regexp.MustCompile(`db error: .*db down`), err.Error())
}

func TestGetUserByLogin_UnknownRole(t *testing.T) {
	p, mock, db := newProviderWithMock(t)
	defer db.Close()

	mock.ExpectQuery(userQuery).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows(columns()).AddRow("u-1", "alice", "hash", "guest", true, "{}"))

	_, err := p.GetUserByLogin(context.Background(), "alice")
	assert.ErrorContains(t, err, "unknown role")
}
