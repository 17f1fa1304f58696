package rules

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"cloud.google.com/go/civil"
)

func date(s string) civil.Date {
	d, err := civil.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

var march2024 = Scope{Year: 2024, Month: time.March}

func TestResolvePrecedence(t *testing.T) {
	dateSlots := []TimeSlot{{"12:00", "13:00"}}
	rangeSlots := []TimeSlot{{"10:00", "11:00"}}
	weekdaySlots := []TimeSlot{{"09:00", "10:00"}}

	// Declared lowest precedence first to show order between kinds is irrelevant.
	rs := RuleSet{
		WeekdayRule{Scope: march2024, Weekday: time.Monday, Slots: weekdaySlots},
		RangeRule{Scope: march2024, Start: date("2024-03-01"), End: date("2024-03-10"), Slots: rangeSlots},
		DateRule{Scope: march2024, Date: date("2024-03-04"), Slots: dateSlots},
	}

	cases := []struct {
		name string
		day  string
		want []TimeSlot
	}{
		{"date beats range and weekday", "2024-03-04", dateSlots},
		{"range beats weekday", "2024-03-05", rangeSlots},
		{"range bounds are inclusive", "2024-03-10", rangeSlots},
		{"weekday after range ends", "2024-03-11", weekdaySlots},
		{"no match is closed", "2024-03-12", []TimeSlot{}},
		{"weekday never leaks into another month", "2024-04-01", []TimeSlot{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Resolve(rs, date(tc.day))
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("Resolve(%s) = %v, want %v", tc.day, got, tc.want)
			}
		})
	}
}

func TestResolveFirstMatchWithinKindWins(t *testing.T) {
	first := []TimeSlot{{"09:00", "10:00"}}
	rs := RuleSet{
		WeekdayRule{Scope: march2024, Weekday: time.Monday, Slots: first},
		WeekdayRule{Scope: march2024, Weekday: time.Monday, Slots: []TimeSlot{{"14:00", "15:00"}}},
	}
	if got := Resolve(rs, date("2024-03-18")); !reflect.DeepEqual(got, first) {
		t.Fatalf("expected first weekday rule, got %v", got)
	}
}

func TestResolveMondayTuesdayScenario(t *testing.T) {
	slots := []TimeSlot{{"09:00", "10:00"}, {"10:00", "11:00"}}
	rs := RuleSet{WeekdayRule{Scope: march2024, Weekday: time.Monday, Slots: slots}}

	if got := Resolve(rs, date("2024-03-04")); !reflect.DeepEqual(got, slots) {
		t.Fatalf("Monday: got %v", got)
	}
	if got := Resolve(rs, date("2024-03-05")); len(got) != 0 {
		t.Fatalf("Tuesday: expected closed, got %v", got)
	}
}

func TestResolveEmptyRuleSetAndEmptySlots(t *testing.T) {
	if got := Resolve(nil, date("2024-03-04")); got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
	rs := RuleSet{DateRule{Scope: march2024, Date: date("2024-03-04")}}
	if got := Resolve(rs, date("2024-03-04")); len(got) != 0 {
		t.Fatalf("zero-slot rule should close the day, got %v", got)
	}
	// The zero-slot date rule still shadows the weekday template.
	rs = append(rs, WeekdayRule{Scope: march2024, Weekday: time.Monday, Slots: []TimeSlot{{"09:00", "10:00"}}})
	if got := Resolve(rs, date("2024-03-04")); len(got) != 0 {
		t.Fatalf("date override should win even when empty, got %v", got)
	}
}

func TestNormalizeRejectsBadRules(t *testing.T) {
	cases := []struct {
		name string
		rule Rule
	}{
		{"month out of range", WeekdayRule{Scope: Scope{2024, 13}, Weekday: time.Monday}},
		{"date outside scope", DateRule{Scope: march2024, Date: date("2024-04-01")}},
		{"range reversed", RangeRule{Scope: march2024, Start: date("2024-03-10"), End: date("2024-03-01")}},
		{"bad clock", WeekdayRule{Scope: march2024, Weekday: time.Monday, Slots: []TimeSlot{{"9am", "10:00"}}}},
		{"start not before end", WeekdayRule{Scope: march2024, Weekday: time.Monday, Slots: []TimeSlot{{"10:00", "10:00"}}}},
		{"overlapping slots", WeekdayRule{Scope: march2024, Weekday: time.Monday, Slots: []TimeSlot{{"09:00", "10:30"}, {"10:00", "11:00"}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := (RuleSet{tc.rule}).Normalize(); !errors.Is(err, ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestNormalizePadsHours(t *testing.T) {
	rs, err := RuleSet{WeekdayRule{Scope: march2024, Weekday: time.Monday, Slots: []TimeSlot{{"9:00", "9:30"}, {"10:00", "11:00"}}}}.Normalize()
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	got := rs[0].RuleSlots()
	if got[0] != (TimeSlot{"09:00", "09:30"}) {
		t.Fatalf("expected padded slot, got %v", got[0])
	}
	// Touching slots are fine.
	if _, err := (RuleSet{WeekdayRule{Scope: march2024, Weekday: time.Friday, Slots: []TimeSlot{{"09:00", "10:00"}, {"10:00", "11:00"}}}}).Normalize(); err != nil {
		t.Fatalf("touching slots should be valid: %v", err)
	}
}

func TestContainsIsSubset(t *testing.T) {
	slots := []TimeSlot{{"09:00", "10:00"}, {"13:00", "17:00"}}
	cases := []struct {
		want TimeSlot
		ok   bool
	}{
		{TimeSlot{"09:00", "10:00"}, true},
		{TimeSlot{"09:15", "09:45"}, true},
		{TimeSlot{"14:00", "17:00"}, true},
		{TimeSlot{"09:30", "10:30"}, false},
		{TimeSlot{"09:00", "13:30"}, false},
		{TimeSlot{"08:00", "09:00"}, false},
	}
	for _, tc := range cases {
		if got := Contains(slots, tc.want); got != tc.ok {
			t.Fatalf("Contains(%v) = %v, want %v", tc.want, got, tc.ok)
		}
	}
}

func TestWireDecodeFoldsWeekly(t *testing.T) {
	raw := `[
		{"type":"weekly","year":2024,"month":3,"weekday":"monday","slots":[{"start":"9:00","end":"10:00"}]},
		{"type":"range","year":2024,"month":3,"start":"2024-03-01","end":"2024-03-10","slots":[]},
		{"type":"date","year":2024,"month":3,"date":"2024-03-04","slots":[{"start":"12:00","end":"13:00"}]}
	]`
	var rs RuleSet
	if err := json.Unmarshal([]byte(raw), &rs); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(rs) != 3 || rs[0].Kind() != KindWeekday {
		t.Fatalf("unexpected rule set %#v", rs)
	}
	if wd := rs[0].(WeekdayRule).Weekday; wd != time.Monday {
		t.Fatalf("expected Monday, got %v", wd)
	}

	out, err := json.Marshal(rs)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var wires []Wire
	if err := json.Unmarshal(out, &wires); err != nil {
		t.Fatalf("unmarshal wires: %v", err)
	}
	if wires[0].Type != "weekday" || wires[0].Weekday != "Monday" {
		t.Fatalf("weekly must be emitted as weekday, got %+v", wires[0])
	}
	if wires[2].Date != "2024-03-04" {
		t.Fatalf("unexpected date wire %+v", wires[2])
	}
}

func TestWireDecodeRejectsUnknownType(t *testing.T) {
	var rs RuleSet
	err := json.Unmarshal([]byte(`[{"type":"monthly","year":2024,"month":3,"slots":[]}]`), &rs)
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestSlotOnUsesLocation(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Dhaka")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	start, end := TimeSlot{"09:00", "10:00"}.On(date("2024-03-04"), loc)
	if start.UTC().Hour() != 3 || end.Sub(start) != time.Hour {
		t.Fatalf("unexpected window %s - %s", start, end)
	}
	if got := SlotOf(start, end, loc); got != (TimeSlot{"09:00", "10:00"}) {
		t.Fatalf("SlotOf round trip: %v", got)
	}
}
