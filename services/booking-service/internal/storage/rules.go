package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/jackc/pgx/v5"
	"github.com/shopslot/shopslot/services/booking-service/internal/rules"
)

// ruleRow is one availability_rules row. Only the columns of its kind are set.
type ruleRow struct {
	Kind      string
	Year      int
	Month     int
	RuleDate  *time.Time
	StartDate *time.Time
	EndDate   *time.Time
	Weekday   *int16
	Slots     []byte
}

func (t *txStore) Rules(ctx context.Context, shopID string) (rules.RuleSet, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT kind, year, month, rule_date, start_date, end_date, weekday, slots
		FROM availability_rules
		WHERE shop_id = $1
		ORDER BY position
	`, shopID)
	if err != nil {
		return nil, err
	}
	stored, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ruleRow, error) {
		var r ruleRow
		err := row.Scan(&r.Kind, &r.Year, &r.Month, &r.RuleDate, &r.StartDate, &r.EndDate, &r.Weekday, &r.Slots)
		return r, err
	})
	if err != nil {
		return nil, err
	}

	rs := make(rules.RuleSet, 0, len(stored))
	for i, r := range stored {
		rule, err := r.decode()
		if err != nil {
			return nil, fmt.Errorf("shop %s rule %d: %w", shopID, i, err)
		}
		rs = append(rs, rule)
	}
	return rs, nil
}

// ReplaceRules deletes the shop's rules and writes rs in order, all inside
// the caller's transaction, so readers never observe a partial set.
func (t *txStore) ReplaceRules(ctx context.Context, shopID string, rs rules.RuleSet) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM availability_rules WHERE shop_id = $1`, shopID); err != nil {
		return err
	}
	if len(rs) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i, rule := range rs {
		r, err := encodeRule(rule)
		if err != nil {
			return err
		}
		batch.Queue(`
			INSERT INTO availability_rules
				(shop_id, position, kind, year, month, rule_date, start_date, end_date, weekday, slots)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, shopID, i, r.Kind, r.Year, r.Month, r.RuleDate, r.StartDate, r.EndDate, r.Weekday, r.Slots)
	}
	return t.tx.SendBatch(ctx, batch).Close()
}

func encodeRule(rule rules.Rule) (ruleRow, error) {
	sc := rule.RuleScope()
	slots := rule.RuleSlots()
	if slots == nil {
		slots = []rules.TimeSlot{}
	}
	raw, err := json.Marshal(slots)
	if err != nil {
		return ruleRow{}, err
	}
	r := ruleRow{Kind: string(rule.Kind()), Year: sc.Year, Month: int(sc.Month), Slots: raw}
	switch v := rule.(type) {
	case rules.DateRule:
		r.RuleDate = dateValue(v.Date)
	case rules.RangeRule:
		r.StartDate, r.EndDate = dateValue(v.Start), dateValue(v.End)
	case rules.WeekdayRule:
		wd := int16(v.Weekday)
		r.Weekday = &wd
	default:
		return ruleRow{}, fmt.Errorf("unsupported rule %T", rule)
	}
	return r, nil
}

func (r ruleRow) decode() (rules.Rule, error) {
	var slots []rules.TimeSlot
	if err := json.Unmarshal(r.Slots, &slots); err != nil {
		return nil, err
	}
	sc := rules.Scope{Year: r.Year, Month: time.Month(r.Month)}
	switch rules.Kind(r.Kind) {
	case rules.KindDate:
		if r.RuleDate == nil {
			return nil, fmt.Errorf("date rule without rule_date")
		}
		return rules.DateRule{Scope: sc, Date: civil.DateOf(*r.RuleDate), Slots: slots}, nil
	case rules.KindRange:
		if r.StartDate == nil || r.EndDate == nil {
			return nil, fmt.Errorf("range rule without bounds")
		}
		return rules.RangeRule{Scope: sc, Start: civil.DateOf(*r.StartDate), End: civil.DateOf(*r.EndDate), Slots: slots}, nil
	case rules.KindWeekday:
		if r.Weekday == nil {
			return nil, fmt.Errorf("weekday rule without weekday")
		}
		return rules.WeekdayRule{Scope: sc, Weekday: time.Weekday(*r.Weekday), Slots: slots}, nil
	}
	return nil, fmt.Errorf("unknown rule kind %q", r.Kind)
}

// dateValue maps a calendar date to midnight UTC, which pgx writes as a DATE.
func dateValue(d civil.Date) *time.Time {
	t := d.In(time.UTC)
	return &t
}
