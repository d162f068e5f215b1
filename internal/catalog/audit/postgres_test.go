package audit

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestPostgresSinkAppend(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS audit_trail").
		WillReturnResult(sqlmock.NewResult(0, 0))
	sink, err := NewPostgresSink(db)
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO audit_trail").
		WithArgs("rec-1", "2026-01-01T00:00:00Z", "owner", "acl.create", "job", 150001, "member=*").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = sink.Append(context.Background(), Record{
		ID:        "rec-1",
		Timestamp: "2026-01-01T00:00:00Z",
		Actor:     "owner",
		Action:    "acl.create",
		Kind:      "job",
		EntityID:  150001,
		Detail:    "member=*",
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSinkSchemaFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS audit_trail").
		WillReturnError(context.DeadlineExceeded)
	_, err = NewPostgresSink(db)
	require.Error(t, err)
}

func TestLogSwallowsSinkFailure(t *testing.T) {
	// A nil sink and a failing sink must both leave the caller untouched.
	Log(context.Background(), nil, "owner", "acl.create", "job", 1, "")

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS audit_trail").
		WillReturnResult(sqlmock.NewResult(0, 0))
	sink, err := NewPostgresSink(db)
	require.NoError(t, err)
	mock.ExpectExec("INSERT INTO audit_trail").
		WillReturnError(context.DeadlineExceeded)
	Log(context.Background(), sink, "owner", "acl.create", "job", 1, "")
	require.NoError(t, mock.ExpectationsWereMet())
}
