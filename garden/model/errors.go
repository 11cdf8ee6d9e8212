package model

import "fmt"

// OutOfBoundsError reports a coordinate outside the garden's dimensions.
type OutOfBoundsError struct {
	X, Y          int
	Width, Height int
}

func (e *OutOfBoundsError) Error() string {
	return fmt.Sprintf("cell (%d,%d) is outside the %dx%d grid", e.X, e.Y, e.Width, e.Height)
}

// CellOccupiedError reports a placement attempt on a taken cell.
type CellOccupiedError struct {
	X, Y int
}

func (e *CellOccupiedError) Error() string {
	return fmt.Sprintf("cell (%d,%d) is already occupied", e.X, e.Y)
}

type NotFoundError struct {
	Resource string
	ID       uint64
}

func (e *NotFoundError) Error() string {
	if e.ID == 0 {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	return fmt.Sprintf("%s %d not found", e.Resource, e.ID)
}

// InvalidTransitionError reports a state-machine operation attempted from a
// state other than Pending.
type InvalidTransitionError struct {
	Op   string
	From InstanceStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s an instance in status %q", e.Op, e.From)
}

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
