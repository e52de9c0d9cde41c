package normalize

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrCorruptInput      = errors.New("corrupt input")
)

type UnsupportedFormatError struct {
	Format string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported format: %s", e.Format)
}

func (e *UnsupportedFormatError) Is(target error) bool {
	return target == ErrUnsupportedFormat
}

type CorruptInputError struct {
	Format string
	Err    error
}

func (e *CorruptInputError) Error() string {
	return fmt.Sprintf("corrupt %s input: %s", e.Format, e.Err)
}

func (e *CorruptInputError) Is(target error) bool {
	return target == ErrCorruptInput
}

func (e *CorruptInputError) Unwrap() error {
	return e.Err
}
