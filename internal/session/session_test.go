package session

import (
	"sync"
	"testing"
	"time"

	"github.com/sweetshark/capture-sidecar/internal/audiotarget"
	"github.com/sweetshark/capture-sidecar/internal/capture"
)

// fakeDeps lets tests control target resolution and the capture engine
// itself without touching real OS or network state. The fake runner
// blocks until stop is closed, exactly like the real one does while
// pumping packets, so start/stop sequencing can be exercised reliably.
func fakeDeps(targets []audiotarget.Target) (Dependencies, *sync.Mutex, *[]Ended) {
	var mu sync.Mutex
	var ended []Ended
	deps := Dependencies{
		Dispatch: func(sessionID, targetID string, f capture.Frame) {},
		OnEnded: func(e Ended) {
			mu.Lock()
			ended = append(ended, e)
			mu.Unlock()
		},
		ResolveSourceToPID: func(sourceID string) (uint32, bool) { return 0, false },
		ListTargets:        func() ([]audiotarget.Target, error) { return targets, nil },
		ProcessName:        func(pid uint32) string { return "" },
		Runner: func(stop <-chan struct{}, params capture.Params, dispatch capture.Dispatch) capture.Outcome {
			<-stop
			return capture.Outcome{Reason: capture.ReasonStopped}
		},
	}
	return deps, &mu, &ended
}

func TestStartWithoutTargetFails(t *testing.T) {
	deps, _, _ := fakeDeps(nil)
	c := NewController(deps)
	_, err := c.Start(StartParams{})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if err.Error() != "No app audio target provided and source mapping failed" {
		t.Errorf("unexpected message: %v", err)
	}
}

func TestStartWithInvalidTargetIDFails(t *testing.T) {
	deps, _, _ := fakeDeps(nil)
	c := NewController(deps)
	_, err := c.Start(StartParams{AppAudioTargetID: "notpid"})
	if err == nil || err.Error() != "Invalid app audio target id" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStartWithTargetNotInEnumerationFails(t *testing.T) {
	deps, _, _ := fakeDeps(nil)
	c := NewController(deps)
	_, err := c.Start(StartParams{AppAudioTargetID: "pid:4321"})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestStartExcludeModeSkipsEnumerationCheck(t *testing.T) {
	deps, _, ended := fakeDeps(nil)
	c := NewController(deps)
	desc, err := c.Start(StartParams{HasExcludePID: true, ExcludePID: 99})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if desc.Mode != ModeExclude {
		t.Errorf("Mode = %q, want %q", desc.Mode, ModeExclude)
	}
	if desc.TargetID != "excl:pid:99" {
		t.Errorf("TargetID = %q, want excl:pid:99", desc.TargetID)
	}

	c.Stop(desc.SessionID)
	waitForEnded(t, ended, 1)
}

func TestStopWithMismatchedSessionIDIsNoop(t *testing.T) {
	deps, _, ended := fakeDeps(nil)
	c := NewController(deps)
	desc, err := c.Start(StartParams{HasExcludePID: true, ExcludePID: 1})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	c.Stop("not-" + desc.SessionID)

	time.Sleep(50 * time.Millisecond)
	if len(*ended) != 0 {
		t.Fatalf("expected no ended events yet, got %d", len(*ended))
	}

	c.Stop(desc.SessionID)
	waitForEnded(t, ended, 1)
}

func TestSecondStartStopsFirst(t *testing.T) {
	deps, _, ended := fakeDeps([]audiotarget.Target{{ID: "pid:1"}, {ID: "pid:2"}})
	c := NewController(deps)

	first, err := c.Start(StartParams{AppAudioTargetID: "pid:1"})
	if err != nil {
		t.Fatalf("first Start() error = %v", err)
	}

	second, err := c.Start(StartParams{AppAudioTargetID: "pid:2"})
	if err != nil {
		t.Fatalf("second Start() error = %v", err)
	}
	if second.SessionID == first.SessionID {
		t.Fatal("expected a fresh session id")
	}

	waitForEnded(t, ended, 1)

	c.Stop(second.SessionID)
	waitForEnded(t, ended, 2)
}

func waitForEnded(t *testing.T, ended *[]Ended, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if len(*ended) >= n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d ended events, got %d", n, len(*ended))
}
