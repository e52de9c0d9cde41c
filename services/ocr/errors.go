package ocr

import (
	"errors"
	"fmt"
)

var ErrRecognition = errors.New("recognition failure")

// RecognitionError is an adapter-level fault (engine unavailable, timeout).
// It is scoped to a single page and never aborts a whole document.
type RecognitionError struct {
	Engine string
	Err    error
}

func (e *RecognitionError) Error() string {
	return fmt.Sprintf("recognition failed (%s): %s", e.Engine, e.Err)
}

func (e *RecognitionError) Is(target error) bool {
	return target == ErrRecognition
}

func (e *RecognitionError) Unwrap() error {
	return e.Err
}
