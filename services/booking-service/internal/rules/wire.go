package rules

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// Wire is the flat JSON shape of a rule, as stored and served:
//
//	{"type":"date","year":2024,"month":3,"date":"2024-03-04","slots":[...]}
//	{"type":"range","year":2024,"month":3,"start":"2024-03-01","end":"2024-03-10","slots":[...]}
//	{"type":"weekday","year":2024,"month":3,"weekday":"Monday","slots":[...]}
type Wire struct {
	Type    string     `json:"type"`
	Year    int        `json:"year"`
	Month   int        `json:"month"`
	Date    string     `json:"date,omitempty"`
	Start   string     `json:"start,omitempty"`
	End     string     `json:"end,omitempty"`
	Weekday string     `json:"weekday,omitempty"`
	Slots   []TimeSlot `json:"slots"`
}

// legacyWeekly is accepted on input and folded into KindWeekday.
const legacyWeekly = "weekly"

func ToWire(r Rule) Wire {
	sc := r.RuleScope()
	w := Wire{
		Type:  string(r.Kind()),
		Year:  sc.Year,
		Month: int(sc.Month),
		Slots: r.RuleSlots(),
	}
	if w.Slots == nil {
		w.Slots = []TimeSlot{}
	}
	switch v := r.(type) {
	case DateRule:
		w.Date = v.Date.String()
	case RangeRule:
		w.Start = v.Start.String()
		w.End = v.End.String()
	case WeekdayRule:
		w.Weekday = v.Weekday.String()
	}
	return w
}

func FromWire(w Wire) (Rule, error) {
	sc := Scope{Year: w.Year, Month: time.Month(w.Month)}
	switch strings.ToLower(strings.TrimSpace(w.Type)) {
	case string(KindDate):
		d, err := parseDate("date", w.Date)
		if err != nil {
			return nil, err
		}
		return DateRule{Scope: sc, Date: d, Slots: w.Slots}, nil
	case string(KindRange):
		start, err := parseDate("start", w.Start)
		if err != nil {
			return nil, err
		}
		end, err := parseDate("end", w.End)
		if err != nil {
			return nil, err
		}
		return RangeRule{Scope: sc, Start: start, End: end, Slots: w.Slots}, nil
	case string(KindWeekday), legacyWeekly:
		wd, err := ParseWeekday(w.Weekday)
		if err != nil {
			return nil, err
		}
		return WeekdayRule{Scope: sc, Weekday: wd, Slots: w.Slots}, nil
	default:
		return nil, fmt.Errorf("%w: unknown rule type %q", ErrInvalid, w.Type)
	}
}

// ParseWeekday accepts English weekday names in any case.
func ParseWeekday(s string) (time.Weekday, error) {
	s = strings.TrimSpace(s)
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), s) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown weekday %q", ErrInvalid, s)
}

func parseDate(field, s string) (civil.Date, error) {
	d, err := civil.ParseDate(strings.TrimSpace(s))
	if err != nil {
		return civil.Date{}, fmt.Errorf("%w: %s %q must be YYYY-MM-DD", ErrInvalid, field, s)
	}
	return d, nil
}

func (rs RuleSet) MarshalJSON() ([]byte, error) {
	out := make([]Wire, 0, len(rs))
	for _, r := range rs {
		out = append(out, ToWire(r))
	}
	return json.Marshal(out)
}

func (rs *RuleSet) UnmarshalJSON(data []byte) error {
	var in []Wire
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	set := make(RuleSet, 0, len(in))
	for i, w := range in {
		r, err := FromWire(w)
		if err != nil {
			return fmt.Errorf("rule %d: %w", i, err)
		}
		set = append(set, r)
	}
	*rs = set
	return nil
}
