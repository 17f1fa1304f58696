package storage

import (
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopslot/shopslot/services/booking-service/internal/booking"
	"github.com/shopslot/shopslot/services/booking-service/internal/rules"
)

func TestMapErr(t *testing.T) {
	cases := []struct {
		name string
		in   error
		want error
	}{
		{"no rows", fmt.Errorf("scan: %w", pgx.ErrNoRows), booking.ErrNotFound},
		{"bad uuid", &pgconn.PgError{Code: "22P02"}, booking.ErrNotFound},
		{"overlap", &pgconn.PgError{Code: "23P01", ConstraintName: "bookings_no_overlap"}, booking.ErrSlotAlreadyBooked},
		{"second pending request", &pgconn.PgError{Code: "23505", ConstraintName: pendingRequestIndex}, booking.ErrDuplicatePendingRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := mapErr(tc.in); !errors.Is(got, tc.want) {
				t.Fatalf("mapErr = %v, want %v", got, tc.want)
			}
		})
	}

	other := &pgconn.PgError{Code: "23505", ConstraintName: "bookings_pkey"}
	if got := mapErr(other); got != error(other) {
		t.Fatalf("unrelated unique violation must pass through, got %v", got)
	}
	if mapErr(nil) != nil {
		t.Fatal("nil must stay nil")
	}
	if !errors.Is(staleVersion(pgx.ErrNoRows), booking.ErrInvalidTransition) {
		t.Fatal("lost version race must be an invalid transition")
	}
}

func TestRuleRowRoundTrip(t *testing.T) {
	march := rules.Scope{Year: 2024, Month: time.March}
	in := rules.RuleSet{
		rules.DateRule{Scope: march, Date: civil.Date{Year: 2024, Month: time.March, Day: 4}, Slots: []rules.TimeSlot{{Start: "12:00", End: "13:00"}}},
		rules.RangeRule{Scope: march, Start: civil.Date{Year: 2024, Month: time.March, Day: 1}, End: civil.Date{Year: 2024, Month: time.March, Day: 10}, Slots: []rules.TimeSlot{}},
		rules.WeekdayRule{Scope: march, Weekday: time.Monday, Slots: []rules.TimeSlot{{Start: "09:00", End: "10:00"}}},
	}
	for i, rule := range in {
		row, err := encodeRule(rule)
		if err != nil {
			t.Fatalf("encode %d: %v", i, err)
		}
		if row.Kind != string(rule.Kind()) || row.Month != 3 {
			t.Fatalf("unexpected row %+v", row)
		}
		got, err := row.decode()
		if err != nil {
			t.Fatalf("decode %d: %v", i, err)
		}
		if !reflect.DeepEqual(got, rule) {
			t.Fatalf("round trip %d: got %#v, want %#v", i, got, rule)
		}
	}

	if _, err := (ruleRow{Kind: "weekday", Slots: []byte("[]")}).decode(); err == nil {
		t.Fatal("weekday row without weekday must fail")
	}
	if _, err := (ruleRow{Kind: "monthly", Slots: []byte("[]")}).decode(); err == nil {
		t.Fatal("unknown kind must fail")
	}
}

func TestQualified(t *testing.T) {
	got := qualified("b", "id::text, status,\n\tversion")
	if got != "b.id::text, b.status, b.version" {
		t.Fatalf("qualified = %q", got)
	}
}
