package main

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	// Image formats for decoding local files.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"ocrd/internal/engine"
	"ocrd/pkg/types"
)

// newRecognizeCmd is the one-shot CLI: build one engine, recognize one or
// more images, print the results. No cache, no server. A single image with
// JSON output follows the bridge contract (flat span array on stdout,
// {"error":...} on stderr with a nonzero exit); multiple images run as a
// batch with per-file success reporting.
func newRecognizeCmd() *cobra.Command {
	var (
		imagePath  string
		languages  string
		engineName string
		bridgeCmd  string
		outputFmt  string
		savePath   string
		gpu        bool
		detail     int
		timeoutSec int
		jobs       int
	)
	cmd := &cobra.Command{
		Use:     "recognize [images...]",
		Short:   "Recognize text in one or more images",
		Example: "  ocrd recognize --languages en,fr --detail 1 scan.png\n  ocrd recognize --output csv --save results.csv page1.png page2.png",
		RunE: func(cmd *cobra.Command, args []string) error {
			images := args
			if imagePath != "" {
				images = append([]string{imagePath}, images...)
			}
			langs := splitCSV(languages)
			if len(images) == 0 || len(langs) == 0 {
				recognizeFail(fmt.Errorf("at least one image and --languages are required"))
			}
			if detail != 0 && detail != 1 {
				recognizeFail(fmt.Errorf("--detail must be 0 or 1"))
			}
			if !validOutputFormat(outputFmt) {
				recognizeFail(fmt.Errorf("invalid output format %q (want json, text, detailed, csv, xml or markdown)", outputFmt))
			}

			ctx := context.Background()
			if timeoutSec > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, time.Duration(timeoutSec)*time.Second)
				defer cancel()
			}

			builder, err := selectBuilder(engineName, bridgeCmd)
			if err != nil {
				recognizeFail(err)
			}
			eng, err := builder(ctx, langs, gpu)
			if err != nil {
				recognizeFail(err)
			}
			defer eng.Close()

			batch := recognizeFiles(ctx, eng, images, detail, jobs)
			if len(batch) == 1 && !batch[0].Success {
				recognizeFail(fmt.Errorf("%s", batch[0].Error))
			}

			out, err := renderOutput(outputFmt, batch, len(batch) == 1, detail)
			if err != nil {
				recognizeFail(err)
			}
			if savePath != "" {
				if err := os.WriteFile(savePath, []byte(out), 0o644); err != nil {
					recognizeFail(err)
				}
				return nil
			}
			fmt.Print(out)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&imagePath, "image", "", "Path to an image file (images may also be given as arguments)")
	f.StringVar(&languages, "languages", "en", "Comma-separated language codes")
	f.StringVar(&engineName, "engine", "bridge", "Recognition engine: tesseract|bridge")
	f.StringVar(&bridgeCmd, "bridge-cmd", "ocr-bridge", "Bridge executable for --engine=bridge")
	f.StringVar(&outputFmt, "output", "json", "Output format: json|text|detailed|csv|xml|markdown")
	f.StringVar(&savePath, "save", "", "Write the output to this file instead of stdout")
	f.BoolVar(&gpu, "gpu", false, "Prefer GPU acceleration")
	f.IntVar(&detail, "detail", 1, "Detail level: 0 text only, 1 with geometry")
	f.IntVar(&timeoutSec, "timeout", 0, "Seconds before the recognition is abandoned (0=none)")
	f.IntVar(&jobs, "jobs", 0, "Max images processed concurrently (0=number of CPUs)")
	return cmd
}

// recognizeFiles runs the engine over each file, bounded-concurrently. One
// bad file does not abort the batch; it is reported per file instead.
func recognizeFiles(ctx context.Context, eng engine.Engine, images []string, detail, jobs int) []batchResult {
	if jobs <= 0 {
		jobs = runtime.NumCPU()
	}
	batch := make([]batchResult, len(images))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, file := range images {
		i, file := i, file
		g.Go(func() error {
			batch[i] = recognizeFile(ctx, eng, file, detail)
			return nil
		})
	}
	_ = g.Wait()
	return batch
}

func recognizeFile(ctx context.Context, eng engine.Engine, file string, detail int) batchResult {
	res := batchResult{File: file}
	f, err := os.Open(file)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	img, _, err := image.Decode(f)
	f.Close()
	if err != nil {
		res.Error = fmt.Sprintf("decode %s: %v", file, err)
		return res
	}
	spans, err := eng.Recognize(ctx, img)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Success = true
	res.Results = make([]types.OcrResult, 0, len(spans))
	for _, s := range spans {
		if detail == 0 {
			res.Results = append(res.Results, types.OcrResult{Text: s.Text})
			continue
		}
		bbox := make([][]int, 0, len(s.Box))
		for _, p := range s.Box {
			bbox = append(bbox, []int{p[0], p[1]})
		}
		res.Results = append(res.Results, types.OcrResult{Bbox: bbox, Text: s.Text, Confidence: s.Confidence})
	}
	return res
}

// recognizeFail emits a single machine-readable error object on stderr,
// matching the bridge contract, and exits nonzero. Stderr carries exactly
// one JSON document so callers can parse it.
func recognizeFail(err error) {
	_ = json.NewEncoder(os.Stderr).Encode(map[string]string{"error": err.Error()})
	os.Exit(1)
}
