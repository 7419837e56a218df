package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"ocrd/internal/common/fsutil"
	"ocrd/internal/registry"
)

// bridgeEngine shells out to an external OCR bridge command for each image.
// The command contract: it receives --languages, --image, --gpu and --detail
// flags, prints a JSON array of spans to stdout on success, and prints
// {"error": "..."} to stderr with a nonzero exit status on failure.
// Each Recognize spawns its own process, so concurrent calls are safe.
type bridgeEngine struct {
	cmdPath   string
	languages []string
	gpu       bool
}

// bridgeSpan mirrors one element of the bridge's stdout array.
type bridgeSpan struct {
	Bbox       [][]int `json:"bbox"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

type bridgeError struct {
	Error string `json:"error"`
}

// NewBridgeBuilder returns a Builder that validates the language set and the
// bridge command up front; recognition work happens per image in a
// subprocess. The gpu flag is forwarded to the bridge.
func NewBridgeBuilder(cmdPath string) Builder {
	return func(ctx context.Context, languages []string, gpu bool) (Engine, error) {
		for _, code := range languages {
			if !registry.IsSupported(code) {
				return nil, fmt.Errorf("unsupported language code: %q", code)
			}
		}
		path, err := fsutil.ExpandHome(strings.TrimSpace(cmdPath))
		if err != nil {
			return nil, err
		}
		if path == "" {
			return nil, fmt.Errorf("bridge command not configured")
		}
		if !fsutil.PathExists(path) {
			return nil, fmt.Errorf("bridge command not found: %s", path)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return &bridgeEngine{
			cmdPath:   path,
			languages: append([]string(nil), languages...),
			gpu:       gpu,
		}, nil
	}
}

func (e *bridgeEngine) Recognize(ctx context.Context, img image.Image) ([]Span, error) {
	tmp, err := os.CreateTemp("", "ocrd-*.png")
	if err != nil {
		return nil, fmt.Errorf("temp image: %w", err)
	}
	defer os.Remove(tmp.Name())
	if err := png.Encode(tmp, img); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("encode image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, e.cmdPath,
		"--languages", strings.Join(e.languages, ","),
		"--image", tmp.Name(),
		"--gpu", strconv.FormatBool(e.gpu),
		"--detail", "1",
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if msg := bridgeErrorMessage(stderr.Bytes()); msg != "" {
			return nil, fmt.Errorf("bridge: %s", msg)
		}
		return nil, fmt.Errorf("bridge %s: %w", e.cmdPath, err)
	}
	return parseBridgeOutput(stdout.Bytes())
}

func (e *bridgeEngine) Close() error { return nil }

// bridgeErrorMessage extracts the "error" field from the bridge's stderr, if
// it is well-formed JSON; otherwise returns the raw trimmed text.
func bridgeErrorMessage(stderr []byte) string {
	trimmed := strings.TrimSpace(string(stderr))
	if trimmed == "" {
		return ""
	}
	var be bridgeError
	if err := json.Unmarshal([]byte(trimmed), &be); err == nil && be.Error != "" {
		return be.Error
	}
	return trimmed
}

// parseBridgeOutput decodes the bridge's stdout span array.
func parseBridgeOutput(stdout []byte) ([]Span, error) {
	var raw []bridgeSpan
	if err := json.Unmarshal(stdout, &raw); err != nil {
		return nil, fmt.Errorf("decode bridge output: %w", err)
	}
	spans := make([]Span, 0, len(raw))
	for i, r := range raw {
		s := Span{Text: r.Text, Confidence: r.Confidence}
		if len(r.Bbox) > 0 {
			if len(r.Bbox) != 4 {
				return nil, fmt.Errorf("bridge span %d: expected 4 corner points, got %d", i, len(r.Bbox))
			}
			for j, p := range r.Bbox {
				if len(p) != 2 {
					return nil, fmt.Errorf("bridge span %d: corner %d has %d coordinates", i, j, len(p))
				}
				s.Box[j] = [2]int{p[0], p[1]}
			}
		}
		spans = append(spans, s)
	}
	return spans, nil
}
