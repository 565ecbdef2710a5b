// Package capture implements the per-session audio capture state machine:
// activate a process-scoped loopback stream, pull PCM packets, re-frame
// them to the canonical shape, and report why the session ended.
package capture

import (
	"errors"
	"time"

	"github.com/sweetshark/capture-sidecar/internal/protocol"
)

// End reasons, a closed set mirrored verbatim on the audio_capture.ended
// event.
const (
	ReasonStopped      = "capture_stopped"
	ReasonAppExited    = "app_exited"
	ReasonCaptureError = "capture_error"
	ReasonDeviceLost   = "device_lost"
)

// Canonical audio shape, re-exported from protocol so the engine and the
// wire layer can never drift out of step.
const (
	TargetSampleRate = protocol.TargetSampleRate
	TargetChannels   = protocol.TargetChannels
	FrameSize        = protocol.FrameSize
)

// Outcome is the terminal state of one Run call.
type Outcome struct {
	Reason string
	Err    error
}

func stopped() Outcome      { return Outcome{Reason: ReasonStopped} }
func appExited() Outcome    { return Outcome{Reason: ReasonAppExited} }
func deviceLost() Outcome   { return Outcome{Reason: ReasonDeviceLost} }
func captureError(err error) Outcome {
	return Outcome{Reason: ReasonCaptureError, Err: err}
}

// ErrWindowsOnly is returned by Run on platforms with no WASAPI
// equivalent.
var ErrWindowsOnly = errors.New("Per-app audio capture is only available on Windows.")

// Frame is one drained, immutable block of canonical-format samples.
type Frame struct {
	Sequence   uint64
	SampleRate uint32
	Channels   uint16
	FrameCount uint32
	// PCM is little-endian 32-bit IEEE-754 float samples, FrameCount *
	// Channels * 4 bytes.
	PCM []byte
}

// Params describes one capture session's target and tunables. Liveness
// and activation timeouts fall back to the engine's defaults (300ms,
// 5s) when left zero.
type Params struct {
	TargetPID uint32
	// Exclude selects exclude mode: capture everything except
	// TargetPID's process tree, with no per-target liveness check.
	Exclude bool
	// LivenessPoll overrides the target liveness poll cadence.
	LivenessPoll time.Duration
	// ActivationTimeout overrides how long loopback activation waits
	// for the OS completion callback.
	ActivationTimeout time.Duration
}

// Dispatch delivers one drained frame downstream (binary egress, falling
// back to the text frame queue). It must not block for long: it runs
// inline on the capture thread between packet pumps.
type Dispatch func(Frame)
