package main

import (
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"ocrd/pkg/types"
)

// batchResult reports the outcome for one input file.
type batchResult struct {
	File    string            `json:"file"`
	Success bool              `json:"success"`
	Results []types.OcrResult `json:"results,omitempty"`
	Error   string            `json:"error,omitempty"`
}

func validOutputFormat(format string) bool {
	switch format {
	case "json", "text", "detailed", "csv", "xml", "markdown":
		return true
	}
	return false
}

// renderOutput shapes batch results per the requested format. JSON for a
// single input stays a flat span array (the bridge contract); everything
// else renders per-file rows.
func renderOutput(format string, batch []batchResult, single bool, detail int) (string, error) {
	switch format {
	case "json":
		var v any = batch
		if single {
			v = batch[0].Results
		}
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return "", err
		}
		return string(b) + "\n", nil
	case "text":
		return renderText(batch), nil
	case "detailed":
		return renderDetailed(batch, single, detail), nil
	case "csv":
		return renderCSV(batch)
	case "xml":
		return renderXML(batch)
	case "markdown":
		return renderMarkdown(batch), nil
	}
	return "", fmt.Errorf("unknown output format %q", format)
}

func renderText(batch []batchResult) string {
	var b strings.Builder
	for _, br := range batch {
		for _, r := range br.Results {
			b.WriteString(r.Text)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func renderDetailed(batch []batchResult, single bool, detail int) string {
	var b strings.Builder
	n := 0
	for _, br := range batch {
		if !br.Success {
			fmt.Fprintf(&b, "--- %s: ERROR ---\n%s\n\n", br.File, br.Error)
			continue
		}
		for _, r := range br.Results {
			n++
			fmt.Fprintf(&b, "--- Result %d ---\n", n)
			if !single {
				fmt.Fprintf(&b, "File: %s\n", br.File)
			}
			fmt.Fprintf(&b, "Text: %s\n", r.Text)
			if detail == 1 {
				fmt.Fprintf(&b, "Confidence: %.4f\n", r.Confidence)
				fmt.Fprintf(&b, "Bounding Box: %v\n", r.Bbox)
			}
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// renderCSV emits one row per span: the file, the text, the confidence and
// the top-left / bottom-right corners of the box.
func renderCSV(batch []batchResult) (string, error) {
	var b strings.Builder
	w := csv.NewWriter(&b)
	if err := w.Write([]string{"file", "text", "confidence", "bbox_x1", "bbox_y1", "bbox_x2", "bbox_y2"}); err != nil {
		return "", err
	}
	for _, br := range batch {
		for _, r := range br.Results {
			row := []string{br.File, r.Text, strconv.FormatFloat(r.Confidence, 'f', -1, 64), "", "", "", ""}
			if len(r.Bbox) == 4 {
				row[3] = strconv.Itoa(r.Bbox[0][0])
				row[4] = strconv.Itoa(r.Bbox[0][1])
				row[5] = strconv.Itoa(r.Bbox[2][0])
				row[6] = strconv.Itoa(r.Bbox[2][1])
			}
			if err := w.Write(row); err != nil {
				return "", err
			}
		}
	}
	w.Flush()
	return b.String(), w.Error()
}

type xmlPoint struct {
	X int `xml:"x,attr"`
	Y int `xml:"y,attr"`
}

type xmlResult struct {
	File       string     `xml:"file"`
	Text       string     `xml:"text"`
	Confidence float64    `xml:"confidence"`
	Bbox       []xmlPoint `xml:"bbox>point"`
}

type xmlResults struct {
	XMLName xml.Name    `xml:"ocr_results"`
	Results []xmlResult `xml:"result"`
}

func renderXML(batch []batchResult) (string, error) {
	doc := xmlResults{}
	for _, br := range batch {
		for _, r := range br.Results {
			xr := xmlResult{File: br.File, Text: r.Text, Confidence: r.Confidence}
			for _, p := range r.Bbox {
				xr.Bbox = append(xr.Bbox, xmlPoint{X: p[0], Y: p[1]})
			}
			doc.Results = append(doc.Results, xr)
		}
	}
	b, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", err
	}
	return xml.Header + string(b) + "\n", nil
}

func renderMarkdown(batch []batchResult) string {
	var b strings.Builder
	b.WriteString("# OCR Results\n\n")
	n := 0
	for _, br := range batch {
		for _, r := range br.Results {
			n++
			fmt.Fprintf(&b, "## Result %d\n\n", n)
			fmt.Fprintf(&b, "**File:** `%s`\n\n", br.File)
			fmt.Fprintf(&b, "**Text:**\n```\n%s\n```\n\n", r.Text)
			fmt.Fprintf(&b, "**Confidence:** %.2f%%\n\n", r.Confidence*100)
			if len(r.Bbox) > 0 {
				b.WriteString("**Bounding Box:**\n")
				for i, p := range r.Bbox {
					fmt.Fprintf(&b, "- Point %d: (%d, %d)\n", i+1, p[0], p[1])
				}
				b.WriteByte('\n')
			}
			b.WriteString("---\n\n")
		}
	}
	return b.String()
}
