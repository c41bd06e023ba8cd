package library

import "time"

// RecordState implements the state pattern for the borrow record lifecycle: open -> closed.
type RecordState interface {
	State() State
	OnReturned(r *BorrowRecord, at time.Time) (RecordState, error)
}

type openState struct{}

func (openState) State() State { return StateOpen }

func (openState) OnReturned(r *BorrowRecord, at time.Time) (RecordState, error) {
	returned := at
	r.ReturnDate = &returned
	return closedState{}, nil
}

type closedState struct{}

func (closedState) State() State { return StateClosed }

func (closedState) OnReturned(*BorrowRecord, time.Time) (RecordState, error) {
	return nil, ErrRecordClosed
}
