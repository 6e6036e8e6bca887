package clinic

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrDuplicateKey    = errors.New("duplicate key")
	ErrNotFound        = errors.New("not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrSlotConflict    = errors.New("doctor already has an appointment at this slot")
	ErrSlotBeingBooked = errors.New("slot is currently being booked, please retry")
	ErrInUse           = errors.New("record is referenced by existing appointments")
)

// DuplicateKeyError reports a unique field collision on save or update.
type DuplicateKeyError struct {
	Kind  string
	Field string
	Value string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("%s with %s %q already exists", e.Kind, e.Field, e.Value)
}

func (e *DuplicateKeyError) Is(target error) bool { return target == ErrDuplicateKey }

type NotFoundError struct {
	Kind string
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.Key)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Fields, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidInput }
