package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestErrorClassification(t *testing.T) {
	exclusion := fmt.Errorf("insert booking: %w", &pgconn.PgError{Code: "23P01", ConstraintName: "bookings_no_overlap"})
	unique := &pgconn.PgError{Code: "23505", ConstraintName: "reschedule_one_pending"}

	if !IsExclusionViolation(exclusion) || IsUniqueViolation(exclusion) {
		t.Fatal("wrapped 23P01 should be an exclusion violation only")
	}
	if !IsUniqueViolation(unique) || IsExclusionViolation(unique) {
		t.Fatal("23505 should be a unique violation only")
	}
	if got := ConstraintName(exclusion); got != "bookings_no_overlap" {
		t.Fatalf("constraint name: got %q", got)
	}
	if !IsInvalidText(&pgconn.PgError{Code: "22P02"}) || IsInvalidText(unique) {
		t.Fatal("22P02 should be invalid text only")
	}
	if IsUniqueViolation(errors.New("plain")) || ConstraintName(nil) != "" {
		t.Fatal("non-Postgres errors must not classify")
	}
}

func TestReadyCheckWithoutPool(t *testing.T) {
	if err := ReadyCheck(nil)(context.Background()); err == nil {
		t.Fatal("expected error for nil pool")
	}
}
