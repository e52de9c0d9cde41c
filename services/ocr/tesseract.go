package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// TesseractEngine recognizes pages through the gosseract client. A fresh
// client is created per call; gosseract clients are not safe for
// concurrent use.
type TesseractEngine struct {
	language      string
	clientFactory func() *gosseract.Client
}

func NewTesseractEngine(language string) *TesseractEngine {
	return &TesseractEngine{
		language:      language,
		clientFactory: gosseract.NewClient,
	}
}

func (e *TesseractEngine) Name() string { return "tesseract" }

func (e *TesseractEngine) Recognize(ctx context.Context, img image.Image) (Result, error) {
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	default:
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Result{}, fmt.Errorf("encode page: %w", err)
	}

	client := e.clientFactory()
	defer client.Close()

	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return Result{}, fmt.Errorf("set image: %w", err)
	}
	if e.language != "" {
		if err := client.SetLanguage(e.language); err != nil {
			return Result{}, fmt.Errorf("set language: %w", err)
		}
	}

	text, err := client.Text()
	if err != nil {
		return Result{}, fmt.Errorf("recognize text: %w", err)
	}

	plain := strings.TrimSpace(text)
	if plain == "" {
		// Near-blank page: not a fault.
		return Result{}, nil
	}

	return Result{
		Text:       plain,
		Confidence: wordConfidence(client),
	}, nil
}

// wordConfidence averages per-word confidences reported by Tesseract,
// scaled from percent to [0, 1].
func wordConfidence(client *gosseract.Client) float64 {
	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return 0
	}

	var sum float64
	for _, box := range boxes {
		sum += box.Confidence / 100.0
	}
	return sum / float64(len(boxes))
}
