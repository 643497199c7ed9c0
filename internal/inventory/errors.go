package inventory

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Kind classifies a fault for the transport layer.
type Kind string

const (
	KindInvalidInput   Kind = "invalid_input"
	KindNotFound       Kind = "not_found"
	KindConflict       Kind = "conflict"
	KindStorageFailure Kind = "storage_failure"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrStorage      = errors.New("storage failure")
)

// Fault is the error type returned by every inventory operation.
type Fault struct {
	Kind    Kind
	Message string
	Err     error
}

func (f *Fault) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %v", f.Message, f.Err)
	}
	return f.Message
}

// Unwrap lets errors.Is match both the kind sentinel and the underlying cause.
func (f *Fault) Unwrap() []error {
	errs := []error{sentinel(f.Kind)}
	if f.Err != nil {
		errs = append(errs, f.Err)
	}
	return errs
}

// KindOf reports the fault kind of err. Errors that are not faults count as storage failures.
func KindOf(err error) Kind {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}
	return KindStorageFailure
}

func sentinel(k Kind) error {
	switch k {
	case KindInvalidInput:
		return ErrInvalidInput
	case KindNotFound:
		return ErrNotFound
	case KindConflict:
		return ErrConflict
	default:
		return ErrStorage
	}
}

func invalidInput(format string, args ...any) *Fault {
	return &Fault{Kind: KindInvalidInput, Message: fmt.Sprintf(format, args...)}
}

func notFound(format string, args ...any) *Fault {
	return &Fault{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func conflict(format string, args ...any) *Fault {
	return &Fault{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// storageFault wraps an error coming back from the database. Unique-index violations
// the pre-checks did not catch still surface as conflicts.
func storageFault(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	var f *Fault
	if errors.As(err, &f) {
		return err
	}
	kind := KindStorageFailure
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		kind = KindConflict
	}
	return &Fault{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}
