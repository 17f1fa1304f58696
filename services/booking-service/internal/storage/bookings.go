package storage

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/shopslot/shopslot/services/booking-service/internal/booking"
	"github.com/shopslot/shopslot/services/booking-service/internal/conflict"
	"github.com/shopslot/shopslot/services/booking-service/internal/model"
)

const bookingColumns = `id::text, customer_id, product_id, shop_id, start_time, end_time, status,
	version, owner_event_id, customer_event_id, created_at, updated_at`

func scanBooking(row pgx.Row) (model.Booking, error) {
	var b model.Booking
	err := row.Scan(
		&b.ID,
		&b.CustomerID,
		&b.ProductID,
		&b.ShopID,
		&b.StartTime,
		&b.EndTime,
		&b.Status,
		&b.Version,
		&b.OwnerEventID,
		&b.CustomerEventID,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	return b, err
}

func (t *txStore) Product(ctx context.Context, id string) (model.Product, error) {
	var p model.Product
	err := t.tx.QueryRow(ctx, `
		SELECT id, shop_id, name
		FROM products
		WHERE id = $1
	`, id).Scan(&p.ID, &p.ShopID, &p.Name)
	return p, mapErr(err)
}

func (t *txStore) Shop(ctx context.Context, id string) (model.Shop, error) {
	var s model.Shop
	err := t.tx.QueryRow(ctx, `
		SELECT id, owner_id, name, timezone
		FROM shops
		WHERE id = $1
	`, id).Scan(&s.ID, &s.OwnerID, &s.Name, &s.Timezone)
	return s, mapErr(err)
}

func (t *txStore) BookingsInWindow(ctx context.Context, shopID string, w conflict.Window) ([]conflict.Booked, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id::text, status, start_time, end_time
		FROM bookings
		WHERE shop_id = $1
			AND status IN ('pending', 'confirmed')
			AND start_time < $3
			AND end_time > $2
		ORDER BY start_time
	`, shopID, w.Start, w.End)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (conflict.Booked, error) {
		var b conflict.Booked
		err := row.Scan(&b.ID, &b.Status, &b.Start, &b.End)
		return b, err
	})
}

func (t *txStore) Booking(ctx context.Context, id string) (model.Booking, error) {
	b, err := scanBooking(t.tx.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id))
	return b, mapErr(err)
}

func (t *txStore) BookingForUpdate(ctx context.Context, id string) (model.Booking, error) {
	b, err := scanBooking(t.tx.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id))
	return b, mapErr(err)
}

func (t *txStore) InsertBooking(ctx context.Context, b model.Booking) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO bookings
			(id, customer_id, product_id, shop_id, start_time, end_time, status, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, b.ID, b.CustomerID, b.ProductID, b.ShopID, b.StartTime, b.EndTime, b.Status, b.Version, b.CreatedAt, b.UpdatedAt)
	return mapErr(err)
}

func (t *txStore) UpdateBookingStatus(ctx context.Context, id string, version int, to model.Status) (model.Booking, error) {
	b, err := scanBooking(t.tx.QueryRow(ctx, `
		UPDATE bookings
		SET status = $3,
			version = version + 1,
			updated_at = now()
		WHERE id = $1 AND version = $2
		RETURNING `+bookingColumns, id, version, to))
	return b, staleVersion(err)
}

func (t *txStore) UpdateBookingWindow(ctx context.Context, id string, version int, w conflict.Window) (model.Booking, error) {
	b, err := scanBooking(t.tx.QueryRow(ctx, `
		UPDATE bookings
		SET start_time = $3,
			end_time = $4,
			version = version + 1,
			updated_at = now()
		WHERE id = $1 AND version = $2
		RETURNING `+bookingColumns, id, version, w.Start, w.End))
	return b, staleVersion(err)
}

// staleVersion reports a lost version race as an invalid transition.
func staleVersion(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return booking.ErrInvalidTransition
	}
	return mapErr(err)
}

func (t *txStore) CustomerBookings(ctx context.Context, customerID string) ([]model.Booking, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE customer_id = $1
		ORDER BY created_at DESC
	`, customerID)
	if err != nil {
		return nil, err
	}
	return collectBookings(rows)
}

func (t *txStore) OwnerBookings(ctx context.Context, ownerID string) ([]model.Booking, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+qualified("b", bookingColumns)+`
		FROM bookings b
		JOIN shops s ON s.id = b.shop_id
		WHERE s.owner_id = $1 AND b.status <> 'cancelled'
		ORDER BY b.created_at DESC
	`, ownerID)
	if err != nil {
		return nil, err
	}
	return collectBookings(rows)
}

// qualified prefixes every column of cols with alias.
func qualified(alias, cols string) string {
	parts := strings.Split(cols, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

func collectBookings(rows pgx.Rows) ([]model.Booking, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Booking, error) {
		return scanBooking(row)
	})
}

// RecordCalendarEvents stores the external event ids reported for version.
// Reports for an older version than the one already stored are ignored.
func RecordCalendarEvents(ctx context.Context, tx pgx.Tx, evt booking.CalendarSynced) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE bookings
		SET owner_event_id = $3,
			customer_event_id = $4,
			calendar_version = $2
		WHERE id = $1 AND calendar_version < $2
	`, evt.BookingID, evt.Version, evt.OwnerEventID, evt.CustomerEventID)
	if err != nil {
		return false, mapErr(err)
	}
	return tag.RowsAffected() == 1, nil
}
