package order

import (
	"errors"
	"fmt"
	"strings"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusShipping  Status = "shipping"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

var ErrInvalidTransition = errors.New("invalid status transition")

var ErrUnknownStatus = errors.New("unknown order status")

// transitions lists every allowed move. Terminal states have no entry.
var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusShipping, StatusCancelled},
	StatusShipping:  {StatusDelivered, StatusCancelled},
}

func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case StatusPending, StatusConfirmed, StatusShipping, StatusDelivered, StatusCancelled:
		return st, nil
	}
	return "", fmt.Errorf("%q: %w", s, ErrUnknownStatus)
}

func (s Status) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

func (s Status) CanTransitionTo(next Status) bool {
	if s.IsTerminal() {
		return false
	}
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Transition returns a *TransitionError when next is not reachable from s.
func (s Status) Transition(next Status) error {
	if !s.CanTransitionTo(next) {
		return &TransitionError{From: s, To: next}
	}
	return nil
}

type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot transition from %s to %s", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}
