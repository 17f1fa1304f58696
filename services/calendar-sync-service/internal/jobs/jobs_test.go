package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/segmentio/kafka-go"
	"github.com/shopslot/shopslot/libs/kafkax"
	"github.com/shopslot/shopslot/libs/outbox"
	"github.com/shopslot/shopslot/services/calendar-sync-service/internal/gcal"
)

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func strPtr(s string) *string { return &s }

const confirmedPayload = `{"booking_id":"b-1","version":2,"status":"confirmed","customer_id":"cust-1","owner_id":"owner-1",
	"shop_name":"Salon","product_name":"Haircut","start_time":"2024-03-04T09:00:00Z","end_time":"2024-03-04T10:00:00Z"}`

func TestFromEvent(t *testing.T) {
	job, err := FromEvent(EventBookingConfirmed, []byte(confirmedPayload))
	if err != nil {
		t.Fatalf("FromEvent: %v", err)
	}
	if job.Action != ActionUpsert || job.Version != 2 || job.OwnerID != "owner-1" || job.CustomerID != "cust-1" {
		t.Fatalf("unexpected job %+v", job)
	}
	if job.Summary != "Haircut - Salon" || job.EndTime.Sub(job.StartTime) != time.Hour {
		t.Fatalf("unexpected summary or window %+v", job)
	}

	moved, err := FromEvent(EventBookingRescheduled, []byte(confirmedPayload))
	if err != nil || moved.Action != ActionUpsert || moved.Summary != "Haircut - Salon (rescheduled)" {
		t.Fatalf("rescheduled: %+v %v", moved, err)
	}
	if job, err := FromEvent(EventBookingCancelled, []byte(`{"booking_id":"b-1","version":3}`)); err != nil || job.Action != ActionRemove {
		t.Fatalf("cancelled: %+v %v", job, err)
	}

	bad := map[string]struct{ eventType, raw string }{
		"created is not synced": {"booking.created.v1", confirmedPayload},
		"malformed":             {EventBookingConfirmed, `{`},
		"no version":            {EventBookingConfirmed, `{"booking_id":"b-1"}`},
		"no window":             {EventBookingConfirmed, `{"booking_id":"b-1","version":1}`},
	}
	for name, tc := range bad {
		if _, err := FromEvent(tc.eventType, []byte(tc.raw)); !errors.Is(err, ErrUnsupportedEvent) {
			t.Fatalf("%s: err = %v", name, err)
		}
	}
}

type queueFunc func(Job) error

func (f queueFunc) Insert(_ context.Context, _ pgx.Tx, job Job) error { return f(job) }

func TestHandlerSkipsUnusablePayloads(t *testing.T) {
	var queued []Job
	h := Handler(queueFunc(func(j Job) error {
		queued = append(queued, j)
		return nil
	}))
	msg := kafka.Message{Topic: EventBookingConfirmed, Value: []byte(confirmedPayload)}
	if err := h(context.Background(), nil, msg); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if len(queued) != 1 || queued[0].BookingID != "b-1" {
		t.Fatalf("queued = %+v", queued)
	}
	err := h(context.Background(), nil, kafka.Message{Topic: EventBookingConfirmed, Value: []byte(`nope`)})
	if !errors.Is(err, kafkax.ErrSkip) {
		t.Fatalf("err = %v, want skip", err)
	}
}

type call struct{ op, userID, arg string }

type fakeCalendar struct {
	calls     []call
	connected map[string]bool
	failOn    string
	nextID    int
}

func (f *fakeCalendar) CreateEvent(_ context.Context, userID string, ev gcal.Event) (string, error) {
	f.calls = append(f.calls, call{"create", userID, ev.Summary})
	if !f.connected[userID] {
		return "", gcal.ErrNotConnected
	}
	if f.failOn == "create:"+userID {
		return "", errors.New("backend unavailable")
	}
	f.nextID++
	return fmt.Sprintf("%s-ev-%d", userID, f.nextID), nil
}

func (f *fakeCalendar) DeleteEvent(_ context.Context, userID, eventID string) error {
	f.calls = append(f.calls, call{"delete", userID, eventID})
	if f.failOn == "delete:"+userID {
		return errors.New("backend unavailable")
	}
	return nil
}

func upsertJob(version int) Job {
	start := time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC)
	return Job{ID: int64(version), BookingID: "b-1", Version: version, Action: ActionUpsert, OwnerID: "owner-1", CustomerID: "cust-1",
		Summary: "Haircut", StartTime: start, EndTime: start.Add(time.Hour), MaxAttempts: 3}
}

func TestApplyReplacesEvents(t *testing.T) {
	cal := &fakeCalendar{connected: map[string]bool{"owner-1": true, "cust-1": true}}
	cur := State{BookingID: "b-1", OwnerEventID: strPtr("old-o"), AppliedVersion: 2}

	next, err := Apply(context.Background(), cal, cur, upsertJob(3))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if next.AppliedVersion != 3 || next.OwnerEventID == nil || *next.OwnerEventID == "old-o" || next.CustomerEventID == nil {
		t.Fatalf("unexpected state %+v", next)
	}
	want := []call{{"delete", "owner-1", "old-o"}, {"create", "owner-1", "Haircut"}, {"create", "cust-1", "Haircut"}}
	if len(cal.calls) != len(want) {
		t.Fatalf("calls = %+v", cal.calls)
	}
	for i := range want {
		if cal.calls[i] != want[i] {
			t.Fatalf("call %d = %+v, want %+v", i, cal.calls[i], want[i])
		}
	}
	if *cur.OwnerEventID != "old-o" {
		t.Fatal("Apply must not mutate the current state")
	}
}

func TestApplyRemoveAndUnconnected(t *testing.T) {
	cal := &fakeCalendar{connected: map[string]bool{"owner-1": true}}
	next, err := Apply(context.Background(), cal, State{}, upsertJob(1))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if next.OwnerEventID == nil || next.CustomerEventID != nil {
		t.Fatalf("customer without calendar must be skipped: %+v", next)
	}

	job := upsertJob(2)
	job.Action = ActionRemove
	removed, err := Apply(context.Background(), cal, next, job)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if removed.OwnerEventID != nil || removed.CustomerEventID != nil || removed.AppliedVersion != 2 {
		t.Fatalf("unexpected state after remove %+v", removed)
	}
}

func TestApplyKeepsPartialProgress(t *testing.T) {
	cal := &fakeCalendar{connected: map[string]bool{"owner-1": true, "cust-1": true}, failOn: "create:cust-1"}
	next, err := Apply(context.Background(), cal, State{AppliedVersion: 1}, upsertJob(2))
	if err == nil {
		t.Fatal("expected error")
	}
	if next.OwnerEventID == nil {
		t.Fatal("the owner event created before the failure must be remembered")
	}
	if next.AppliedVersion != 1 {
		t.Fatalf("applied version advanced to %d on failure", next.AppliedVersion)
	}
}

type fakeRunner struct{}

func (fakeRunner) WithTx(_ context.Context, fn func(pgx.Tx) error) error { return fn(nil) }

type fakeStore struct {
	due       []Job
	state     State
	processed []int64
	failed    map[int64]int
}

func (s *fakeStore) FetchDue(_ context.Context, _ pgx.Tx, limit int) ([]Job, error) {
	if len(s.due) == 0 {
		return nil, nil
	}
	n := min(limit, len(s.due))
	out := s.due[:n]
	s.due = s.due[n:]
	return out, nil
}

func (s *fakeStore) MarkProcessed(_ context.Context, _ pgx.Tx, id int64) error {
	s.processed = append(s.processed, id)
	return nil
}

func (s *fakeStore) MarkFailed(_ context.Context, _ pgx.Tx, id int64, attempts, _ int, _ time.Time, _ string) error {
	s.failed[id] = attempts
	return nil
}

func (s *fakeStore) LockState(_ context.Context, _ pgx.Tx, bookingID string) (State, error) {
	st := s.state
	st.BookingID = bookingID
	return st, nil
}

func (s *fakeStore) SaveState(_ context.Context, _ pgx.Tx, st State) error {
	s.state = st
	return nil
}

type fakeOutbox struct{ events []outbox.Event }

func (o *fakeOutbox) Insert(_ context.Context, _ pgx.Tx, evt outbox.Event) error {
	o.events = append(o.events, evt)
	return nil
}

func TestWorkerPublishesSyncAndSkipsStale(t *testing.T) {
	store := &fakeStore{due: []Job{upsertJob(3), upsertJob(2)}, failed: map[int64]int{}}
	ob := &fakeOutbox{}
	cal := &fakeCalendar{connected: map[string]bool{"owner-1": true}}
	w := NewWorker(fakeRunner{}, store, ob, cal, discardLogger(), WorkerConfig{})

	if err := w.processBatch(context.Background()); err != nil {
		t.Fatalf("processBatch: %v", err)
	}
	if len(store.processed) != 2 {
		t.Fatalf("processed = %v", store.processed)
	}
	if len(ob.events) != 1 || ob.events[0].EventType != EventCalendarSynced {
		t.Fatalf("events = %+v", ob.events)
	}
	var synced syncedPayload
	if err := json.Unmarshal(ob.events[0].Payload, &synced); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if synced.Version != 3 || synced.OwnerEventID == nil || synced.CustomerEventID != nil {
		t.Fatalf("synced = %+v", synced)
	}
	if store.state.AppliedVersion != 3 {
		t.Fatalf("applied version = %d", store.state.AppliedVersion)
	}
}

func TestWorkerRetriesThenDeadLetters(t *testing.T) {
	job := upsertJob(1)
	job.Attempts = 1
	job.MaxAttempts = 3
	store := &fakeStore{due: []Job{job}, failed: map[int64]int{}}
	ob := &fakeOutbox{}
	cal := &fakeCalendar{connected: map[string]bool{"owner-1": true}, failOn: "create:owner-1"}
	w := NewWorker(fakeRunner{}, store, ob, cal, discardLogger(), WorkerConfig{})

	if err := w.processBatch(context.Background()); err != nil {
		t.Fatalf("processBatch: %v", err)
	}
	if store.failed[job.ID] != 2 || len(ob.events) != 0 {
		t.Fatalf("first failure: failed=%v events=%d", store.failed, len(ob.events))
	}

	job.Attempts = 2
	store.due = []Job{job}
	if err := w.processBatch(context.Background()); err != nil {
		t.Fatalf("processBatch: %v", err)
	}
	if store.failed[job.ID] != 3 || len(ob.events) != 1 || ob.events[0].EventType != EventCalendarSyncDLQ {
		t.Fatalf("exhausted: failed=%v events=%+v", store.failed, ob.events)
	}
}
