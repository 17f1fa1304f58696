package rules

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"
)

type Kind string

const (
	KindDate    Kind = "date"
	KindRange   Kind = "range"
	KindWeekday Kind = "weekday"
)

// Scope is the (year, month) a rule belongs to. A rule never applies outside it.
type Scope struct {
	Year  int
	Month time.Month
}

func ScopeOf(d civil.Date) Scope { return Scope{Year: d.Year, Month: d.Month} }

func (s Scope) validate() error {
	if s.Year <= 0 {
		return fmt.Errorf("%w: year must be positive", ErrInvalid)
	}
	if s.Month < time.January || s.Month > time.December {
		return fmt.Errorf("%w: month must be between 1 and 12", ErrInvalid)
	}
	return nil
}

// Rule is one of DateRule, RangeRule or WeekdayRule.
type Rule interface {
	Kind() Kind
	RuleScope() Scope
	RuleSlots() []TimeSlot
	matches(d civil.Date) bool
	normalize() (Rule, error)
}

type DateRule struct {
	Scope
	Date  civil.Date
	Slots []TimeSlot
}

type RangeRule struct {
	Scope
	Start civil.Date
	End   civil.Date
	Slots []TimeSlot
}

type WeekdayRule struct {
	Scope
	Weekday time.Weekday
	Slots   []TimeSlot
}

func (r DateRule) Kind() Kind               { return KindDate }
func (r DateRule) RuleScope() Scope         { return r.Scope }
func (r DateRule) RuleSlots() []TimeSlot    { return r.Slots }
func (r RangeRule) Kind() Kind              { return KindRange }
func (r RangeRule) RuleScope() Scope        { return r.Scope }
func (r RangeRule) RuleSlots() []TimeSlot   { return r.Slots }
func (r WeekdayRule) Kind() Kind            { return KindWeekday }
func (r WeekdayRule) RuleScope() Scope      { return r.Scope }
func (r WeekdayRule) RuleSlots() []TimeSlot { return r.Slots }

func (r DateRule) matches(d civil.Date) bool {
	return r.Scope == ScopeOf(d) && r.Date == d
}

func (r RangeRule) matches(d civil.Date) bool {
	return r.Scope == ScopeOf(d) && !d.Before(r.Start) && !d.After(r.End)
}

func (r WeekdayRule) matches(d civil.Date) bool {
	return r.Scope == ScopeOf(d) && d.In(time.UTC).Weekday() == r.Weekday
}

func (r DateRule) normalize() (Rule, error) {
	if err := r.Scope.validate(); err != nil {
		return nil, err
	}
	if !r.Date.IsValid() {
		return nil, fmt.Errorf("%w: date is not a valid calendar date", ErrInvalid)
	}
	if ScopeOf(r.Date) != r.Scope {
		return nil, fmt.Errorf("%w: date %s is outside %d-%02d", ErrInvalid, r.Date, r.Year, int(r.Month))
	}
	slots, err := normalizeSlots(r.Slots)
	if err != nil {
		return nil, err
	}
	r.Slots = slots
	return r, nil
}

func (r RangeRule) normalize() (Rule, error) {
	if err := r.Scope.validate(); err != nil {
		return nil, err
	}
	if !r.Start.IsValid() || !r.End.IsValid() {
		return nil, fmt.Errorf("%w: range bounds must be valid calendar dates", ErrInvalid)
	}
	if r.End.Before(r.Start) {
		return nil, fmt.Errorf("%w: range start %s is after end %s", ErrInvalid, r.Start, r.End)
	}
	slots, err := normalizeSlots(r.Slots)
	if err != nil {
		return nil, err
	}
	r.Slots = slots
	return r, nil
}

func (r WeekdayRule) normalize() (Rule, error) {
	if err := r.Scope.validate(); err != nil {
		return nil, err
	}
	if r.Weekday < time.Sunday || r.Weekday > time.Saturday {
		return nil, fmt.Errorf("%w: weekday out of range", ErrInvalid)
	}
	slots, err := normalizeSlots(r.Slots)
	if err != nil {
		return nil, err
	}
	r.Slots = slots
	return r, nil
}

// RuleSet is a shop's ordered rule collection. Order matters only between
// rules of the same kind: the first match wins.
type RuleSet []Rule

// Normalize validates every rule and returns a copy with normalised slots.
func (rs RuleSet) Normalize() (RuleSet, error) {
	out := make(RuleSet, 0, len(rs))
	for i, r := range rs {
		if r == nil {
			return nil, fmt.Errorf("rule %d: %w: missing rule", i, ErrInvalid)
		}
		n, err := r.normalize()
		if err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i, r.Kind(), err)
		}
		out = append(out, n)
	}
	return out, nil
}
