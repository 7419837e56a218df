package manager

import (
	"context"
	"time"

	"github.com/google/uuid"

	"ocrd/internal/engine"
	"ocrd/pkg/types"
)

// Recognize handles one OCR request end to end: validate, resolve the model
// through the cache, apply it, assemble the response. Exactly one stats
// record happens per request, on every exit path, and the recorded latency
// covers the whole attempt whether it succeeded or not.
func (m *Manager) Recognize(ctx context.Context, req types.OcrRequest) (types.OcrResponse, error) {
	requestID := uuid.NewString()
	start := time.Now()
	fail := func(err error) (types.OcrResponse, error) {
		m.stats.RecordFailure(durationMs(time.Since(start)))
		m.log.Warn().Str("request_id", requestID).Err(err).Msg("ocr request failed")
		return types.OcrResponse{}, err
	}

	if req.Detail != 0 && req.Detail != 1 {
		return fail(ErrInvalidInput("detail must be 0 or 1"))
	}
	languages, err := Canonicalize(req.Languages)
	if err != nil {
		return fail(err)
	}
	img, err := decodeImage(req.Image)
	if err != nil {
		return fail(ErrInvalidInput("invalid image data: " + err.Error()))
	}

	key := KeyFor(languages, req.GPU)
	m.log.Info().Str("request_id", requestID).Str("key", string(key)).Int("detail", req.Detail).Msg("ocr request")

	handle, loadDur, err := m.cache.getOrBuild(ctx, key, languages, req.GPU)
	if err != nil {
		return fail(err)
	}
	spans, err := handle.Recognize(ctx, img)
	if err != nil {
		return fail(err)
	}

	elapsed := time.Since(start)
	m.stats.RecordSuccess(durationMs(elapsed))
	m.log.Info().Str("request_id", requestID).Dur("dur", elapsed).Int("spans", len(spans)).Msg("ocr done")
	return types.OcrResponse{
		Status:           "success",
		RequestID:        requestID,
		Results:          mapResults(spans, req.Detail),
		ProcessingTimeMs: durationMs(elapsed),
		ModelLoadTimeMs:  durationMs(loadDur),
		Timestamp:        time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// mapResults shapes engine spans per the requested detail level: 0 keeps
// only the text, 1 adds the bounding box (in engine order) and confidence.
func mapResults(spans []engine.Span, detail int) []types.OcrResult {
	out := make([]types.OcrResult, 0, len(spans))
	for _, s := range spans {
		if detail == 0 {
			out = append(out, types.OcrResult{Text: s.Text})
			continue
		}
		bbox := make([][]int, 0, len(s.Box))
		for _, p := range s.Box {
			bbox = append(bbox, []int{p[0], p[1]})
		}
		out = append(out, types.OcrResult{Bbox: bbox, Text: s.Text, Confidence: s.Confidence})
	}
	return out
}

func durationMs(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}
