package ocr

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"github.com/paperbase/paperbase/config"
	"github.com/paperbase/paperbase/logger"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	result Result
	err    error
	delay  time.Duration
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Recognize(ctx context.Context, _ image.Image) (Result, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}
	return f.result, f.err
}

func newTestAdapter(t *testing.T, engine Engine, timeout string) *Adapter {
	t.Setenv("ENV", "test")
	t.Setenv("OCR_TIMEOUT", timeout)

	cfg, err := config.Load("test")
	require.NoError(t, err, "could not load config")

	return NewAdapter(logger.New(), cfg, engine)
}

var testImage = image.NewGray(image.Rect(0, 0, 10, 10))

func TestAdapterPassesThroughResults(t *testing.T) {
	assert := require.New(t)

	engine := &fakeEngine{result: Result{Text: "Invoice 2024", Confidence: 0.9}}
	adapter := newTestAdapter(t, engine, "1s")

	result, err := adapter.Recognize(context.Background(), testImage)
	assert.NoError(err)
	assert.Equal("Invoice 2024", result.Text)
	assert.InDelta(0.9, result.Confidence, 0.0001)
}

func TestAdapterToleratesBlankPages(t *testing.T) {
	assert := require.New(t)

	// A near-blank page is not a fault: empty text, zero confidence.
	engine := &fakeEngine{result: Result{}}
	adapter := newTestAdapter(t, engine, "1s")

	result, err := adapter.Recognize(context.Background(), testImage)
	assert.NoError(err)
	assert.Empty(result.Text)
	assert.Zero(result.Confidence)
}

func TestAdapterTranslatesEngineFaults(t *testing.T) {
	assert := require.New(t)

	engine := &fakeEngine{err: errors.New("engine unavailable")}
	adapter := newTestAdapter(t, engine, "1s")

	_, err := adapter.Recognize(context.Background(), testImage)
	assert.ErrorIs(err, ErrRecognition)
}

func TestAdapterTimesOutSlowEngines(t *testing.T) {
	assert := require.New(t)

	engine := &fakeEngine{result: Result{Text: "too late"}, delay: 2 * time.Second}
	adapter := newTestAdapter(t, engine, "50ms")

	start := time.Now()
	_, err := adapter.Recognize(context.Background(), testImage)
	assert.ErrorIs(err, ErrRecognition)
	assert.Less(time.Since(start), time.Second, "adapter should give up at the timeout")
}
