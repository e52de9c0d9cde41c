package searchdb

import (
	"errors"
	"fmt"
)

var ErrIndex = errors.New("index failure")

type IndexError struct {
	Op  string
	Err error
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("index failure during %s: %s", e.Op, e.Err)
}

func (e *IndexError) Is(target error) bool {
	return target == ErrIndex
}

func (e *IndexError) Unwrap() error {
	return e.Err
}
