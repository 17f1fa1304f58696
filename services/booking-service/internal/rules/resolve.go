package rules

import "cloud.google.com/go/civil"

var precedence = [...]Kind{KindDate, KindRange, KindWeekday}

// Resolve returns the bookable slots for date. A date rule beats a range rule,
// which beats a weekday rule; the first matching rule of the winning kind is
// used as is and lower kinds are never merged in. No match means closed.
func Resolve(rs RuleSet, date civil.Date) []TimeSlot {
	if r := Match(rs, date); r != nil {
		return append([]TimeSlot(nil), r.RuleSlots()...)
	}
	return []TimeSlot{}
}

// Match returns the rule that decides date, or nil.
func Match(rs RuleSet, date civil.Date) Rule {
	for _, kind := range precedence {
		for _, r := range rs {
			if r.Kind() == kind && r.matches(date) {
				return r
			}
		}
	}
	return nil
}
