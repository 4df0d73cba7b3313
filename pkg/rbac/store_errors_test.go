package rbac

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

// The store wraps database failures rather than mapping them to
// not-found or validation outcomes: the engine relies on that to tell
// a missing customization apart from an unreachable database.

func TestStoreGetDatabaseFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT .* FROM tenant_role_customizations").
		WillReturnError(errors.New("connection refused"))

	store := NewSQLStore(db, nil)
	got, err := store.Get(context.Background(), "t1", "question_manager")
	if err == nil {
		t.Fatal("database failure must surface as an error, not as absence")
	}
	if got != nil {
		t.Error("failed Get must not return a customization")
	}
	if IsRoleNotFound(err) || IsValidation(err) {
		t.Errorf("infrastructure failure mapped to a domain error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestStoreUpsertDatabaseFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	mock.ExpectExec("INSERT INTO tenant_role_customizations").
		WillReturnError(errors.New("deadlock detected"))

	store := NewSQLStore(db, nil)
	upsertErr := store.Upsert(context.Background(), testCustomization("t1", "question_manager"))
	if upsertErr == nil {
		t.Fatal("database failure must surface as an error")
	}
	if IsValidation(upsertErr) {
		t.Errorf("infrastructure failure mapped to a validation error: %v", upsertErr)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestStoreDeleteDatabaseFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	mock.ExpectExec("DELETE FROM tenant_role_customizations").
		WillReturnError(errors.New("connection reset"))

	store := NewSQLStore(db, nil)
	if err := store.Delete(context.Background(), "t1", "question_manager"); err == nil {
		t.Fatal("database failure must surface as an error")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
