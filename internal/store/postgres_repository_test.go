package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsUniqueViolation(t *testing.T) {
	direct := &pgconn.PgError{Code: "23505"}
	if !isUniqueViolation(direct) {
		t.Fatal("expected code 23505 to be a unique violation")
	}

	wrapped := fmt.Errorf("failed to insert offer: %w", direct)
	if !isUniqueViolation(wrapped) {
		t.Fatal("expected a wrapped 23505 to be a unique violation")
	}

	other := &pgconn.PgError{Code: "23503"}
	if isUniqueViolation(other) {
		t.Fatal("foreign key violations are not unique violations")
	}

	if isUniqueViolation(errors.New("plain error")) {
		t.Fatal("plain errors are not unique violations")
	}
}
