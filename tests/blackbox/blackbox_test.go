package blackbox

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// findFreePort picks an available TCP port on localhost.
func findFreePort(t *testing.T) (int, func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	cleanup := func() { _ = ln.Close() }
	var port int
	fmt.Sscanf(portStr, "%d", &port)
	return port, cleanup
}

func projectRootFromThisFile(t *testing.T) string {
	t.Helper()
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	// this file: <root>/tests/blackbox/blackbox_test.go
	bbDir := filepath.Dir(thisFile)
	return filepath.Dir(filepath.Dir(bbDir))
}

func buildBinary(t *testing.T) string {
	t.Helper()
	root := projectRootFromThisFile(t)
	outDir := t.TempDir()
	binPath := filepath.Join(outDir, "ocrd")
	cmd := exec.Command("go", "build", "-o", binPath, "./cmd/ocrd")
	cmd.Dir = root
	cmd.Env = append(os.Environ(), "CGO_ENABLED=0")
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("go build failed: %v\n%s", err, string(out))
	}
	return binPath
}

// writeBridgeScript creates a fake OCR bridge that honors the CLI contract
// and prints one fixed span.
func writeBridgeScript(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "ocr-bridge")
	script := `#!/bin/sh
echo '[{"bbox":[[0,0],[10,0],[10,10],[0,10]],"text":"HELLO","confidence":0.92}]'
`
	if err := os.WriteFile(p, []byte(script), 0o755); err != nil {
		t.Fatalf("write bridge script: %v", err)
	}
	return p
}

// writeFailingBridgeScript creates a bridge that always reports an error.
func writeFailingBridgeScript(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "ocr-bridge-fail")
	script := `#!/bin/sh
echo '{"error":"engine exploded"}' >&2
exit 1
`
	if err := os.WriteFile(p, []byte(script), 0o755); err != nil {
		t.Fatalf("write bridge script: %v", err)
	}
	return p
}

type serverProc struct {
	cmd  *exec.Cmd
	base string // http base URL, e.g. http://127.0.0.1:18080
}

func startServer(t *testing.T, bin, bridgeCmd string, port int) *serverProc {
	t.Helper()
	addr := fmt.Sprintf(":%d", port)
	base := fmt.Sprintf("http://127.0.0.1:%d", port)
	cmd := exec.Command(bin, "serve",
		"--addr", addr,
		"--engine", "bridge",
		"--bridge-cmd", bridgeCmd,
		"--log-level", "warn",
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}
	// Wait for healthz
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get(base + "/healthz")
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				break
			}
		}
		if time.Now().After(deadline) {
			_ = cmd.Process.Kill()
			t.Fatalf("server did not become healthy in time")
		}
		time.Sleep(50 * time.Millisecond)
	}
	sp := &serverProc{cmd: cmd, base: base}
	t.Cleanup(func() { _ = cmd.Process.Kill() })
	return sp
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	b, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, b
}

func postJSON(t *testing.T, url string, payload []byte) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	b, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, b
}

func imagePayload(t *testing.T, languages string) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 24, 24))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	b64 := base64.StdEncoding.EncodeToString(buf.Bytes())
	return []byte(fmt.Sprintf(`{"image":%q,"languages":[%s],"detail":1}`, b64, languages))
}

func TestBlackbox_Flow(t *testing.T) {
	bin := buildBinary(t)
	bridge := writeBridgeScript(t)
	port, release := findFreePort(t)
	release()
	sp := startServer(t, bin, bridge, port)

	// /healthz and /readyz
	resp, body := get(t, sp.base+"/healthz")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/healthz %d %s", resp.StatusCode, string(body))
	}
	resp, body = get(t, sp.base+"/readyz")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/readyz %d %s", resp.StatusCode, string(body))
	}

	// /api/v1/info
	resp, body = get(t, sp.base+"/api/v1/info")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/info %d %s", resp.StatusCode, string(body))
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Fatalf("/info content-type=%s", ct)
	}
	var info struct {
		Name               string `json:"name"`
		SupportedLanguages int    `json:"supported_languages"`
	}
	if err := json.Unmarshal(body, &info); err != nil {
		t.Fatalf("/info json: %v body=%s", err, string(body))
	}
	if info.Name != "ocrd" || info.SupportedLanguages == 0 {
		t.Fatalf("/info body: %s", string(body))
	}

	// POST /api/v1/ocr loads a model and returns the bridged span
	resp, body = postJSON(t, sp.base+"/api/v1/ocr", imagePayload(t, `"en"`))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/ocr %d %s", resp.StatusCode, string(body))
	}
	var ocr struct {
		Status  string `json:"status"`
		Results []struct {
			Text       string  `json:"text"`
			Confidence float64 `json:"confidence"`
			Bbox       [][]int `json:"bbox"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &ocr); err != nil {
		t.Fatalf("/ocr json: %v body=%s", err, string(body))
	}
	if ocr.Status != "success" || len(ocr.Results) != 1 || ocr.Results[0].Text != "HELLO" || len(ocr.Results[0].Bbox) != 4 {
		t.Fatalf("/ocr body: %s", string(body))
	}

	// /api/v1/models now lists the loaded model
	resp, body = get(t, sp.base+"/api/v1/models")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/models %d %s", resp.StatusCode, string(body))
	}
	var models struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(body, &models); err != nil {
		t.Fatalf("/models json: %v body=%s", err, string(body))
	}
	if models.Count != 1 {
		t.Fatalf("expected 1 model, body=%s", string(body))
	}

	// Warmup adds a second model
	resp, body = postJSON(t, sp.base+"/api/v1/models/warmup", []byte(`{"languages":["fr","de"]}`))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/warmup %d %s", resp.StatusCode, string(body))
	}
	resp, body = get(t, sp.base+"/api/v1/stats")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/stats %d %s", resp.StatusCode, string(body))
	}
	var stats struct {
		TotalRequests int      `json:"total_requests"`
		LoadedModels  []string `json:"loaded_models"`
	}
	if err := json.Unmarshal(body, &stats); err != nil {
		t.Fatalf("/stats json: %v body=%s", err, string(body))
	}
	if stats.TotalRequests != 1 || len(stats.LoadedModels) != 2 {
		t.Fatalf("/stats body: %s", string(body))
	}

	// DELETE /api/v1/models clears everything
	req, _ := http.NewRequest(http.MethodDelete, sp.base+"/api/v1/models", nil)
	dresp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete models: %v", err)
	}
	dbody, _ := io.ReadAll(dresp.Body)
	dresp.Body.Close()
	if dresp.StatusCode != http.StatusOK || !bytes.Contains(dbody, []byte(`"models_cleared":2`)) {
		t.Fatalf("delete models %d %s", dresp.StatusCode, string(dbody))
	}
}

func TestBlackbox_InvalidInput_400(t *testing.T) {
	bin := buildBinary(t)
	bridge := writeBridgeScript(t)
	port, release := findFreePort(t)
	release()
	sp := startServer(t, bin, bridge, port)

	resp, body := postJSON(t, sp.base+"/api/v1/ocr", []byte(`{"image":"","languages":["en"]}`))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d, body=%s", resp.StatusCode, string(body))
	}
	if !bytes.Contains(body, []byte(`"code":400`)) {
		t.Fatalf("error payload: %s", string(body))
	}
}

func TestBlackbox_BridgeFailure_500(t *testing.T) {
	bin := buildBinary(t)
	bridge := writeFailingBridgeScript(t)
	port, release := findFreePort(t)
	release()
	sp := startServer(t, bin, bridge, port)

	resp, body := postJSON(t, sp.base+"/api/v1/ocr", imagePayload(t, `"en"`))
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d, body=%s", resp.StatusCode, string(body))
	}
	if !bytes.Contains(body, []byte("engine exploded")) {
		t.Fatalf("error payload: %s", string(body))
	}
}

func TestBlackbox_UnsupportedLanguage_500(t *testing.T) {
	bin := buildBinary(t)
	bridge := writeBridgeScript(t)
	port, release := findFreePort(t)
	release()
	sp := startServer(t, bin, bridge, port)

	resp, body := postJSON(t, sp.base+"/api/v1/ocr", imagePayload(t, `"zz"`))
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d, body=%s", resp.StatusCode, string(body))
	}
}
