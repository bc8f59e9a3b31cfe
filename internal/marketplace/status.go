package marketplace

import "fmt"

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:   {StatusConfirmed: true, StatusCancelled: true},
	StatusConfirmed: {},
	StatusCancelled: {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func (s Status) Terminal() bool {
	return s == StatusConfirmed || s == StatusCancelled
}

func (o *Order) Confirm() error { return o.transition(StatusConfirmed) }

func (o *Order) Cancel() error { return o.transition(StatusCancelled) }

func (o *Order) transition(to Status) error {
	if !CanTransition(o.Status, to) {
		return fmt.Errorf("order %d %s -> %s: %w", o.ID, o.Status, to, ErrInvalidTransition)
	}
	o.Status = to
	return nil
}
