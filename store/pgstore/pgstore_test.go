package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/MrEthical07/rolegate/store"
)

func newMockStore(t *testing.T, now time.Time) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewWithClock(db, func() time.Time { return now }), mock
}

func roleRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "description", "protected", "updated_at", "permissions"})
}

func identityRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "email", "name", "password_hash", "status", "role_id", "account_version", "created_at"})
}

func TestFindRoleDecodesPermissions(t *testing.T) {
	ts := time.Date(2026, 4, 1, 10, 0, 0, 123000, time.UTC)
	s, mock := newMockStore(t, ts)

	mock.ExpectQuery("select r.id, r.name.*from roles r.*where r.id = \\$1").
		WithArgs("MARKETER").
		WillReturnRows(roleRows().AddRow("MARKETER", "Marketer", "", false, ts, []byte(`["campaigns:send","campaigns:view"]`)))

	role, err := s.FindRole(context.Background(), "MARKETER")
	if err != nil {
		t.Fatalf("FindRole: %v", err)
	}
	want := []string{"campaigns:send", "campaigns:view"}
	if !reflect.DeepEqual(role.Permissions, want) {
		t.Fatalf("expected %v, got %v", want, role.Permissions)
	}
	if role.Version() != ts.UnixNano() {
		t.Fatalf("expected version %d, got %d", ts.UnixNano(), role.Version())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestFindRoleNotFound(t *testing.T) {
	s, mock := newMockStore(t, time.Now())
	mock.ExpectQuery("from roles r").WithArgs("GONE").WillReturnError(sql.ErrNoRows)

	if _, err := s.FindRole(context.Background(), "GONE"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReplaceRolePermissionsRunsInOneTransaction(t *testing.T) {
	prev := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	s, mock := newMockStore(t, prev)

	mock.ExpectBegin()
	mock.ExpectQuery("select id, name, description, protected, updated_at.*for update").
		WithArgs("MARKETER").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "protected", "updated_at"}).
			AddRow("MARKETER", "Marketer", "", false, prev))
	mock.ExpectExec("delete from role_permissions").WithArgs("MARKETER").WillReturnResult(sqlmock.NewResult(0, 5))
	mock.ExpectExec("insert into role_permissions").WithArgs("MARKETER", "campaigns:view").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("insert into role_permissions").WithArgs("MARKETER", "templates:view").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("update roles set updated_at").WithArgs("MARKETER", prev.Add(time.Microsecond)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	role, err := s.ReplaceRolePermissions(context.Background(), "MARKETER", []string{"templates:view", "campaigns:view", "templates:view"})
	if err != nil {
		t.Fatalf("ReplaceRolePermissions: %v", err)
	}
	if !role.UpdatedAt.Equal(prev.Add(time.Microsecond)) {
		t.Fatalf("expected version to advance one step, got %v", role.UpdatedAt)
	}
	if !reflect.DeepEqual(role.Permissions, []string{"campaigns:view", "templates:view"}) {
		t.Fatalf("unexpected permissions %v", role.Permissions)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestReplaceRolePermissionsRollsBackOnFailure(t *testing.T) {
	prev := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	s, mock := newMockStore(t, prev)

	mock.ExpectBegin()
	mock.ExpectQuery("for update").WithArgs("MARKETER").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "protected", "updated_at"}).
			AddRow("MARKETER", "Marketer", "", false, prev))
	mock.ExpectExec("delete from role_permissions").WithArgs("MARKETER").WillReturnResult(sqlmock.NewResult(0, 5))
	mock.ExpectExec("insert into role_permissions").WithArgs("MARKETER", "campaigns:view").WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := s.ReplaceRolePermissions(context.Background(), "MARKETER", []string{"campaigns:view"})
	if !errors.Is(err, store.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestReplaceRolePermissionsMissingRole(t *testing.T) {
	s, mock := newMockStore(t, time.Now())

	mock.ExpectBegin()
	mock.ExpectQuery("for update").WithArgs("GONE").WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	if _, err := s.ReplaceRolePermissions(context.Background(), "GONE", nil); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDeleteRoleGuards(t *testing.T) {
	t.Run("protected", func(t *testing.T) {
		s, mock := newMockStore(t, time.Now())
		mock.ExpectBegin()
		mock.ExpectQuery("select protected from roles").WithArgs("SUPER_ADMIN").
			WillReturnRows(sqlmock.NewRows([]string{"protected"}).AddRow(true))
		mock.ExpectRollback()

		if err := s.DeleteRole(context.Background(), "SUPER_ADMIN"); !errors.Is(err, store.ErrProtectedRole) {
			t.Fatalf("expected ErrProtectedRole, got %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Fatalf("unmet expectations: %v", err)
		}
	})

	t.Run("in use", func(t *testing.T) {
		s, mock := newMockStore(t, time.Now())
		mock.ExpectBegin()
		mock.ExpectQuery("select protected from roles").WithArgs("MARKETER").
			WillReturnRows(sqlmock.NewRows([]string{"protected"}).AddRow(false))
		mock.ExpectQuery("select exists").WithArgs("MARKETER").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectRollback()

		if err := s.DeleteRole(context.Background(), "MARKETER"); !errors.Is(err, store.ErrInUse) {
			t.Fatalf("expected ErrInUse, got %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Fatalf("unmet expectations: %v", err)
		}
	})

	t.Run("foreign key race", func(t *testing.T) {
		s, mock := newMockStore(t, time.Now())
		mock.ExpectBegin()
		mock.ExpectQuery("select protected from roles").WithArgs("MARKETER").
			WillReturnRows(sqlmock.NewRows([]string{"protected"}).AddRow(false))
		mock.ExpectQuery("select exists").WithArgs("MARKETER").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectExec("delete from roles").WithArgs("MARKETER").
			WillReturnError(&pgconn.PgError{Code: pgErrForeignKeyViolation})
		mock.ExpectRollback()

		if err := s.DeleteRole(context.Background(), "MARKETER"); !errors.Is(err, store.ErrInUse) {
			t.Fatalf("expected ErrInUse, got %v", err)
		}
	})

	t.Run("deleted", func(t *testing.T) {
		s, mock := newMockStore(t, time.Now())
		mock.ExpectBegin()
		mock.ExpectQuery("select protected from roles").WithArgs("CLIENT").
			WillReturnRows(sqlmock.NewRows([]string{"protected"}).AddRow(false))
		mock.ExpectQuery("select exists").WithArgs("CLIENT").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectExec("delete from roles").WithArgs("CLIENT").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		if err := s.DeleteRole(context.Background(), "CLIENT"); err != nil {
			t.Fatalf("DeleteRole: %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Fatalf("unmet expectations: %v", err)
		}
	})
}

func TestCreateIdentityMapsConstraintErrors(t *testing.T) {
	cases := []struct {
		code string
		want error
	}{
		{pgErrUniqueViolation, store.ErrConflict},
		{pgErrForeignKeyViolation, store.ErrNotFound},
	}
	for _, tc := range cases {
		s, mock := newMockStore(t, time.Now())
		mock.ExpectQuery("insert into identities").WillReturnError(&pgconn.PgError{Code: tc.code})

		_, err := s.CreateIdentity(context.Background(), store.Identity{Email: "A@example.com", RoleID: "CLIENT"})
		if !errors.Is(err, tc.want) {
			t.Fatalf("code %s: expected %v, got %v", tc.code, tc.want, err)
		}
	}
}

func TestAssignRoleNoopFallsBackToRead(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s, mock := newMockStore(t, created)

	mock.ExpectQuery("update identities").WithArgs("u1", "CLIENT").WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("from identities").WithArgs("u1").
		WillReturnRows(identityRows().AddRow("u1", "a@example.com", "A", "h", "ACTIVE", "CLIENT", int64(3), created))

	ident, err := s.AssignRole(context.Background(), "u1", "CLIENT")
	if err != nil {
		t.Fatalf("AssignRole: %v", err)
	}
	if ident.AccountVersion != 3 || ident.RoleID != "CLIENT" {
		t.Fatalf("unexpected identity %+v", ident)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpdatePasswordHashMissing(t *testing.T) {
	s, mock := newMockStore(t, time.Now())
	mock.ExpectExec("update identities set password_hash").WithArgs("u1", "h").WillReturnResult(sqlmock.NewResult(0, 0))

	if err := s.UpdatePasswordHash(context.Background(), "u1", "h"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
