package model

import (
	"fmt"
	"strings"
	"time"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

var bookingTransitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCancelled},
	StatusCancelled: {},
}

func (s Status) IsValid() bool {
	_, ok := bookingTransitions[s]
	return ok
}

func (s Status) CanTransitionTo(target Status) bool {
	for _, t := range bookingTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

func (s Status) IsTerminal() bool {
	return len(bookingTransitions[s]) == 0
}

// Blocking reports whether a booking in this status holds its window.
func (s Status) Blocking() bool {
	return s == StatusPending || s == StatusConfirmed
}

// ParseStatus accepts any case, so "CONFIRMED" and "confirmed" are equal.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !s.IsValid() {
		return "", fmt.Errorf("invalid booking status %q", raw)
	}
	return s, nil
}

type Booking struct {
	ID              string
	CustomerID      string
	ProductID       string
	ShopID          string
	StartTime       time.Time
	EndTime         time.Time
	Status          Status
	Version         int
	OwnerEventID    *string
	CustomerEventID *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Shop struct {
	ID       string
	OwnerID  string
	Name     string
	Timezone string
}

// Location falls back to UTC for an empty or unknown zone name.
func (s Shop) Location() *time.Location {
	if s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

type Product struct {
	ID     string
	ShopID string
	Name   string
}
