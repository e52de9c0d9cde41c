package ocr

import (
	"context"
	"image"
	"time"

	"github.com/paperbase/paperbase/config"
	"github.com/paperbase/paperbase/logger"
)

// Adapter isolates the pipeline from the recognition engine: it bounds
// every call with a timeout and translates engine faults into
// RecognitionError so the orchestrator can apply its per-page retry
// policy uniformly.
type Adapter struct {
	logger  logger.Logger
	engine  Engine
	timeout time.Duration
}

func NewAdapter(logger logger.Logger, cfg *config.Config, engine Engine) *Adapter {
	return &Adapter{
		logger:  logger,
		engine:  engine,
		timeout: cfg.GetOCRTimeout(),
	}
}

func (a *Adapter) Recognize(ctx context.Context, img image.Image) (Result, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	type outcome struct {
		result Result
		err    error
	}
	done := make(chan outcome, 1)

	// The engine call can outlive the timeout (cgo calls are not
	// interruptible); the buffered channel lets the goroutine finish and
	// be collected after the adapter has already given up on it.
	go func() {
		result, err := a.engine.Recognize(callCtx, img)
		done <- outcome{result: result, err: err}
	}()

	select {
	case <-callCtx.Done():
		a.logger.Warn("recognition timed out", "engine", a.engine.Name(), "timeout", a.timeout.String())
		return Result{}, &RecognitionError{Engine: a.engine.Name(), Err: callCtx.Err()}
	case out := <-done:
		if out.err != nil {
			a.logger.Warn("recognition failed", "engine", a.engine.Name(), "err", out.err.Error())
			return Result{}, &RecognitionError{Engine: a.engine.Name(), Err: out.err}
		}
		return out.result, nil
	}
}
