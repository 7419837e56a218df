//go:build tesseract

package engine

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"sync"

	"github.com/otiai10/gosseract/v2"

	"ocrd/internal/registry"
)

// tesseractBuilt indicates this binary was compiled with the in-process engine.
var tesseractBuilt = true

// tesseractEngine wraps one gosseract client configured for a fixed language
// set. The gosseract client is NOT safe for concurrent use, so this engine
// serializes its own Recognize calls behind a mutex; parallelism across
// different models is unaffected.
type tesseractEngine struct {
	mu     sync.Mutex
	client *gosseract.Client
	closed bool
}

// NewTesseractBuilder returns a Builder backed by the in-process tesseract
// runtime. The accelerator preference is accepted and ignored (CPU only).
func NewTesseractBuilder() Builder {
	return func(ctx context.Context, languages []string, gpu bool) (Engine, error) {
		names := make([]string, 0, len(languages))
		for _, code := range languages {
			if !registry.IsSupported(code) {
				return nil, fmt.Errorf("unsupported language code: %q", code)
			}
			name, ok := registry.TesseractName(code)
			if !ok {
				return nil, fmt.Errorf("no tesseract traineddata mapping for language %q", code)
			}
			names = append(names, name)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		client := gosseract.NewClient()
		if err := client.SetLanguage(names...); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("set languages %v: %w", names, err)
		}
		eng := &tesseractEngine{client: client}
		// Run one throwaway recognition so missing traineddata surfaces at
		// build time instead of on the first real image.
		if err := eng.warmup(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("warmup languages %v: %w", names, err)
		}
		return eng, nil
	}
}

func (e *tesseractEngine) warmup() error {
	img := image.NewGray(image.Rect(0, 0, 8, 8))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return err
	}
	if err := e.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return err
	}
	_, err := e.client.Text()
	return err
}

func (e *tesseractEngine) Recognize(ctx context.Context, img image.Image) ([]Span, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, fmt.Errorf("tesseract engine closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	if err := e.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}
	boxes, err := e.client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, fmt.Errorf("recognize: %w", err)
	}
	spans := make([]Span, 0, len(boxes))
	for _, b := range boxes {
		if b.Word == "" {
			continue
		}
		r := b.Box
		spans = append(spans, Span{
			Box: [4][2]int{
				{r.Min.X, r.Min.Y},
				{r.Max.X, r.Min.Y},
				{r.Max.X, r.Max.Y},
				{r.Min.X, r.Max.Y},
			},
			Text:       b.Word,
			Confidence: b.Confidence / 100.0,
		})
	}
	return spans, nil
}

func (e *tesseractEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	return e.client.Close()
}
