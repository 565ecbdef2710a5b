//go:build !windows

package capture

import "testing"

func TestRunFailsOffWindows(t *testing.T) {
	stop := make(chan struct{})
	out := Run(stop, Params{TargetPID: 1234}, func(Frame) {})
	if out.Reason != ReasonCaptureError {
		t.Fatalf("Reason = %q, want %q", out.Reason, ReasonCaptureError)
	}
	if out.Err != ErrWindowsOnly {
		t.Fatalf("Err = %v, want %v", out.Err, ErrWindowsOnly)
	}
}
