package booking

import "fmt"

type Kind string

const (
	KindValidation       Kind = "validation"
	KindAuthorization    Kind = "authorization"
	KindNotFound         Kind = "not_found"
	KindConflict         Kind = "conflict"
	KindAlreadyProcessed Kind = "already_processed"
)

// Error is returned for every rejected operation. Nothing is persisted when
// one is returned. errors.Is matches on Code, so call sites compare against
// the sentinels below even when the message differs.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrInvalidInput            = &Error{Kind: KindValidation, Code: "invalid_input", Message: "invalid input"}
	ErrForbidden               = &Error{Kind: KindAuthorization, Code: "forbidden", Message: "not permitted"}
	ErrNotFound                = &Error{Kind: KindNotFound, Code: "not_found", Message: "not found"}
	ErrSlotNotAvailable        = &Error{Kind: KindConflict, Code: "slot_not_available", Message: "selected time is not within business hours"}
	ErrSlotAlreadyBooked       = &Error{Kind: KindConflict, Code: "slot_already_booked", Message: "time slot already booked"}
	ErrSlotNoLongerAvailable   = &Error{Kind: KindConflict, Code: "slot_no_longer_available", Message: "requested time is no longer available"}
	ErrInvalidTransition       = &Error{Kind: KindAlreadyProcessed, Code: "invalid_transition", Message: "invalid status transition"}
	ErrDuplicatePendingRequest = &Error{Kind: KindAlreadyProcessed, Code: "duplicate_pending_request", Message: "a reschedule request is already pending"}
	ErrAlreadyProcessed        = &Error{Kind: KindAlreadyProcessed, Code: "already_processed", Message: "request already processed"}
)

// errorf copies base with a specific message.
func errorf(base *Error, format string, args ...any) *Error {
	return &Error{Kind: base.Kind, Code: base.Code, Message: fmt.Sprintf(format, args...)}
}
