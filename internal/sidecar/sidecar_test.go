package sidecar

import (
	"bufio"
	"bytes"
	"encoding/json"
	"runtime"
	"strings"
	"testing"

	"github.com/sweetshark/capture-sidecar/internal/config"
)

type rawResponse struct {
	ID     string          `json:"id"`
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func newTestSidecar(t *testing.T) (*Sidecar, *bytes.Buffer) {
	t.Helper()
	cfg := config.Default()
	var out bytes.Buffer
	s := New(cfg, &out)
	t.Cleanup(s.Close)
	return s, &out
}

func runLines(t *testing.T, s *Sidecar, out *bytes.Buffer, lines ...string) []rawResponse {
	t.Helper()
	in := strings.NewReader(strings.Join(lines, "\n") + "\n")
	if err := s.Run(in); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	var responses []rawResponse
	scanner := bufio.NewScanner(out)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		var resp rawResponse
		if err := json.Unmarshal([]byte(line), &resp); err != nil {
			t.Fatalf("failed to decode response line %q: %v", line, err)
		}
		if resp.ID != "" {
			responses = append(responses, resp)
		}
	}
	return responses
}

func TestHealthPing(t *testing.T) {
	s, out := newTestSidecar(t)
	resps := runLines(t, s, out, `{"id":"r1","method":"health.ping"}`)
	if len(resps) != 1 {
		t.Fatalf("got %d responses, want 1", len(resps))
	}
	if !resps[0].OK {
		t.Fatalf("ok = false, error = %v", resps[0].Error)
	}
	var result struct {
		Status          string `json:"status"`
		ProtocolVersion int    `json:"protocolVersion"`
	}
	if err := json.Unmarshal(resps[0].Result, &result); err != nil {
		t.Fatal(err)
	}
	if result.Status != "ok" || result.ProtocolVersion != 1 {
		t.Errorf("result = %+v", result)
	}
}

func TestCapabilitiesGet(t *testing.T) {
	s, out := newTestSidecar(t)
	resps := runLines(t, s, out, `{"id":"r1","method":"capabilities.get"}`)
	if len(resps) != 1 || !resps[0].OK {
		t.Fatalf("unexpected response: %+v", resps)
	}
	var result struct {
		Platform    string `json:"platform"`
		PerAppAudio string `json:"perAppAudio"`
	}
	if err := json.Unmarshal(resps[0].Result, &result); err != nil {
		t.Fatal(err)
	}
	if result.Platform != runtime.GOOS {
		t.Errorf("Platform = %q, want %q", result.Platform, runtime.GOOS)
	}
	wantSupport := "unsupported"
	if runtime.GOOS == "windows" {
		wantSupport = "supported"
	}
	if result.PerAppAudio != wantSupport {
		t.Errorf("PerAppAudio = %q, want %q", result.PerAppAudio, wantSupport)
	}
}

func TestBinaryEgressInfoBeforeStart(t *testing.T) {
	s, out := newTestSidecar(t)
	resps := runLines(t, s, out, `{"id":"r1","method":"audio_capture.binary_egress_info"}`)
	if len(resps) != 1 {
		t.Fatalf("got %d responses, want 1", len(resps))
	}
	if !resps[0].OK {
		if resps[0].Error.Message != "Binary egress is unavailable" {
			t.Fatalf("unexpected failure: %v", resps[0].Error)
		}
		return
	}
	var result struct {
		Port    int    `json:"port"`
		Framing string `json:"framing"`
	}
	if err := json.Unmarshal(resps[0].Result, &result); err != nil {
		t.Fatal(err)
	}
	if result.Port == 0 {
		t.Error("Port = 0, want nonzero")
	}
	if result.Framing != "length_prefixed_f32le_v1" {
		t.Errorf("Framing = %q", result.Framing)
	}
}

func TestCaptureStartWithoutTarget(t *testing.T) {
	s, out := newTestSidecar(t)
	resps := runLines(t, s, out, `{"id":"r1","method":"audio_capture.start","params":{}}`)
	if len(resps) != 1 || resps[0].OK {
		t.Fatalf("expected a failed response, got %+v", resps)
	}
	if runtime.GOOS != "windows" {
		if !strings.HasPrefix(resps[0].Error.Message, "Per-app audio capture is only available on Windows.") {
			t.Errorf("message = %q", resps[0].Error.Message)
		}
		return
	}
	if resps[0].Error.Message != "No app audio target provided and source mapping failed" {
		t.Errorf("message = %q", resps[0].Error.Message)
	}
}

func TestCaptureStopWithNoSessionIsNoop(t *testing.T) {
	s, out := newTestSidecar(t)
	resps := runLines(t, s, out, `{"id":"r1","method":"audio_capture.stop"}`)
	if len(resps) != 1 || !resps[0].OK {
		t.Fatalf("unexpected response: %+v", resps)
	}
}

func TestMalformedRequestIsSkippedWithoutResponse(t *testing.T) {
	s, out := newTestSidecar(t)
	resps := runLines(t, s, out, `not json`, `{"id":"r1","method":"health.ping"}`)
	if len(resps) != 1 {
		t.Fatalf("got %d responses, want 1", len(resps))
	}
}

func TestUnknownMethodFails(t *testing.T) {
	s, out := newTestSidecar(t)
	resps := runLines(t, s, out, `{"id":"r1","method":"nonsense"}`)
	if len(resps) != 1 || resps[0].OK {
		t.Fatalf("expected failure, got %+v", resps)
	}
}

func TestRequestWithoutIDGetsNoResponse(t *testing.T) {
	s, out := newTestSidecar(t)
	resps := runLines(t, s, out, `{"method":"health.ping"}`)
	if len(resps) != 0 {
		t.Fatalf("got %d responses, want 0", len(resps))
	}
}
