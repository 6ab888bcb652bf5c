package booking

import (
	"errors"
	"fmt"
	"time"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

var ErrInvalidTransition = errors.New("invalid status transition")

var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCancelled},
	StatusCancelled: {},
}

func (s Status) IsValid() bool {
	_, ok := transitions[s]
	return ok
}

func (s Status) CanTransitionTo(target Status) bool {
	for _, t := range transitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// DateLayout is the wire format of Booking.Date.
const DateLayout = "2006-01-02"

type Booking struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	PartySize string    `json:"partySize"`
	Date      string    `json:"date"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
	Status    Status    `json:"status"`
}

// Confirm returns a copy of b marked as confirmed.
func (b Booking) Confirm() (Booking, error) {
	return b.WithStatus(StatusConfirmed)
}

// Cancel returns a copy of b marked as cancelled.
func (b Booking) Cancel() (Booking, error) {
	return b.WithStatus(StatusCancelled)
}

// WithStatus returns a copy of b moved to target, or ErrInvalidTransition
// when the current status does not allow it.
func (b Booking) WithStatus(target Status) (Booking, error) {
	if !b.Status.CanTransitionTo(target) {
		return b, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, b.Status, target)
	}
	b.Status = target
	return b, nil
}

func (b Booking) FormattedDate() string {
	d, err := time.Parse(DateLayout, b.Date)
	if err != nil {
		return b.Date
	}
	return d.Format("January 2, 2006")
}

func (b Booking) Summary() string {
	return fmt.Sprintf("Booking for %s, %s people on %s", b.Name, b.PartySize, b.FormattedDate())
}
