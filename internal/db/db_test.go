package db

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplySchemaRunsFilesInOrder(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "002_members.sql"), []byte("CREATE TABLE b ()"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "001_auth.sql"), []byte("CREATE TABLE a ()"), 0o644))

	conn, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer conn.Close()

	mock.ExpectExec("CREATE TABLE a ()").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE b ()").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, ApplySchema(context.Background(), conn, dir))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplySchemaEmptyDir(t *testing.T) {
	conn, _, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	err = ApplySchema(context.Background(), conn, t.TempDir())
	assert.Error(t, err)
}
