package model

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestDeclined RequestStatus = "declined"
)

// Decision is an owner's answer to a pending request.
type Decision = RequestStatus

func ParseDecision(raw string) (Decision, error) {
	d := RequestStatus(strings.ToLower(strings.TrimSpace(raw)))
	if d != RequestApproved && d != RequestDeclined {
		return "", fmt.Errorf("decision must be approved or declined, got %q", raw)
	}
	return d, nil
}

type RescheduleRequest struct {
	ID                 string
	BookingID          string
	CustomerID         string
	RequestedDate      civil.Date
	RequestedStartTime time.Time
	RequestedEndTime   time.Time
	Reason             string
	Status             RequestStatus
	CreatedAt          time.Time
	RespondedAt        *time.Time
	RespondedBy        *string
}
