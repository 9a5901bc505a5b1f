package users

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/packsmith/internal/common"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func userRows(id int64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"user_id", "is_paid", "is_admin", "free_pack_uses", "paid_pack_uses", "adaptive_pack_name", "created_at",
	}).AddRow(id, false, false, 0, 0, "", time.Now())
}

func TestGet_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+user_id,\s*is_paid,\s*is_admin,\s*free_pack_uses,\s*paid_pack_uses,.*FROM\s+users\s+WHERE\s+user_id\s*=\s*\$1\s*$`

	mock.ExpectQuery(q).WithArgs(int64(42)).WillReturnRows(userRows(42))

	got, err := repo.Get(context.Background(), 42)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.ID != 42 || got.IsPaid {
		t.Fatalf("unexpected user: %+v", got)
	}
}

func TestGet_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT`).WithArgs(int64(7)).WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), 7)
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}

func TestGet_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT`).WithArgs(int64(7)).WillReturnError(errors.New("db down"))

	_, err := repo.Get(context.Background(), 7)
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestCreate_InsertsThenReads(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	ins := `(?s)^INSERT\s+INTO\s+users\s*\(user_id\)\s*VALUES\s*\(\$1\)\s*ON\s+CONFLICT\s*\(user_id\)\s*DO\s+NOTHING\s*$`

	mock.ExpectExec(ins).WithArgs(int64(42)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT`).WithArgs(int64(42)).WillReturnRows(userRows(42))

	got, err := repo.Create(context.Background(), 42)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if got.ID != 42 {
		t.Fatalf("unexpected user: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSetPaid_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^UPDATE\s+users\s+SET\s+is_paid\s*=\s*\$1\s+WHERE\s+user_id\s*=\s*\$2\s*$`

	mock.ExpectExec(q).WithArgs(true, int64(42)).WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.SetPaid(context.Background(), 42, true); err != nil {
		t.Fatalf("SetPaid error: %v", err)
	}
}

func TestSetPaid_MissingUser(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE\s+users`).WithArgs(true, int64(7)).WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SetPaid(context.Background(), 7, true)
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}

func TestSetAdaptivePackName_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^UPDATE\s+users\s+SET\s+adaptive_pack_name\s*=\s*\$1\s+WHERE\s+user_id\s*=\s*\$2\s*$`

	mock.ExpectExec(q).WithArgs("acr_42", int64(42)).WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.SetAdaptivePackName(context.Background(), 42, "acr_42"); err != nil {
		t.Fatalf("SetAdaptivePackName error: %v", err)
	}
}

func TestListIDs_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"user_id"}).AddRow(int64(1)).AddRow(int64(2)).AddRow(int64(3))
	mock.ExpectQuery(`SELECT\s+user_id\s+FROM\s+users\s+ORDER\s+BY\s+user_id`).WillReturnRows(rows)

	ids, err := repo.ListIDs(context.Background())
	if err != nil {
		t.Fatalf("ListIDs error: %v", err)
	}
	if len(ids) != 3 || ids[0] != 1 || ids[2] != 3 {
		t.Fatalf("unexpected ids: %v", ids)
	}
}

func TestListIDs_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT\s+user_id`).WillReturnError(errors.New("db err"))

	_, err := repo.ListIDs(context.Background())
	if err == nil || !regexp.MustCompile(`db error: .*db err`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}
