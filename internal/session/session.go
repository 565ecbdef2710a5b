// Package session enforces the sidecar's single-active-session
// invariant: starting a capture implicitly stops any running one,
// stopping joins the capture worker, and every session reports exactly
// one end reason.
package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sweetshark/capture-sidecar/internal/audiotarget"
	"github.com/sweetshark/capture-sidecar/internal/capture"
	"github.com/sweetshark/capture-sidecar/internal/logging"
)

var log = logging.L("session")

// Mode names as they appear on the wire.
const (
	ModeInclude = "include"
	ModeExclude = "exclude"
)

// StartParams mirrors the audio_capture.start request params.
type StartParams struct {
	SourceID         string
	AppAudioTargetID string
	ExcludePID       uint32
	HasExcludePID    bool
}

// Descriptor is returned from a successful Start.
type Descriptor struct {
	SessionID  string
	TargetID   string
	Mode       string
	SampleRate int
	Channels   int
	FrameSize  int
}

// Ended is reported once per session, after its worker has fully
// stopped producing frames.
type Ended struct {
	SessionID string
	TargetID  string
	Reason    string
	Error     string
	HasError  bool
}

// Dependencies the controller needs from the rest of the sidecar; kept
// as a struct of function fields so tests can supply fakes without
// touching real sockets or Windows APIs.
type Dependencies struct {
	// Dispatch delivers a drained frame for sessionID/targetID downstream.
	Dispatch func(sessionID, targetID string, frame capture.Frame)
	// OnEnded is invoked exactly once per session, from the worker
	// goroutine, after teardown completes.
	OnEnded func(Ended)
	// ResolveSourceToPID looks up a window source id to a live pid.
	ResolveSourceToPID func(sourceID string) (uint32, bool)
	// ListTargets enumerates currently valid include-mode targets.
	ListTargets func() ([]audiotarget.Target, error)
	// ProcessName resolves an executable name for a pid, used only for
	// diagnostics; "" is fine if unavailable.
	ProcessName func(pid uint32) string
	// Runner drives one capture session to completion; defaults to
	// capture.Run. Exposed so tests can substitute a fake engine
	// without touching real WASAPI state.
	Runner func(stop <-chan struct{}, params capture.Params, dispatch capture.Dispatch) capture.Outcome
	// LivenessPoll and ActivationTimeout are forwarded into every
	// session's capture.Params; zero means use the engine's defaults.
	LivenessPoll      time.Duration
	ActivationTimeout time.Duration
}

type active struct {
	sessionID string
	targetID  string
	stopCh    chan struct{}
	done      chan struct{}
}

// Controller owns the single active capture session.
type Controller struct {
	deps Dependencies
	// guards the active session slot; never held across a blocking
	// call such as joining the worker or running the capture engine.
	cond   chan struct{} // acts as a simple mutex via buffered-chan lock
	record *active
}

// NewController builds a controller. deps must be fully populated.
func NewController(deps Dependencies) *Controller {
	if deps.Runner == nil {
		deps.Runner = capture.Run
	}
	c := &Controller{deps: deps, cond: make(chan struct{}, 1)}
	c.cond <- struct{}{}
	return c
}

func (c *Controller) lock()   { <-c.cond }
func (c *Controller) unlock() { c.cond <- struct{}{} }

// Start stops any running session, resolves the target, and spawns a
// new capture worker.
func (c *Controller) Start(params StartParams) (Descriptor, error) {
	c.stopLocked(nil)

	var (
		targetID string
		targetPID uint32
		exclude  bool
	)

	if params.HasExcludePID {
		exclude = true
		targetPID = params.ExcludePID
		targetID = audiotarget.FormatExcludeTargetID(targetPID)
	} else {
		resolved := params.AppAudioTargetID
		if resolved == "" && params.SourceID != "" {
			if pid, ok := c.deps.ResolveSourceToPID(params.SourceID); ok {
				resolved = audiotarget.FormatTargetID(pid)
			}
		}
		if resolved == "" {
			return Descriptor{}, fmt.Errorf("No app audio target provided and source mapping failed")
		}

		pid, ok := audiotarget.ParseTargetPID(resolved)
		if !ok {
			return Descriptor{}, fmt.Errorf("Invalid app audio target id")
		}
		targetID = resolved
		targetPID = pid

		targets, err := c.deps.ListTargets()
		if err != nil {
			return Descriptor{}, err
		}
		present := false
		for _, t := range targets {
			if t.ID == targetID {
				present = true
				break
			}
		}
		if !present {
			return Descriptor{}, fmt.Errorf("Target process with pid %d is not available", targetPID)
		}
	}

	sessionID := uuid.NewString()
	processName := ""
	if c.deps.ProcessName != nil {
		processName = c.deps.ProcessName(targetPID)
	}
	log.Info("starting capture session",
		"sessionId", sessionID, "targetId", targetID, "targetPid", targetPID,
		"exclude", exclude, "process", processName)

	rec := &active{
		sessionID: sessionID,
		targetID:  targetID,
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}

	c.lock()
	c.record = rec
	c.unlock()

	go c.run(rec, capture.Params{
		TargetPID:         targetPID,
		Exclude:           exclude,
		LivenessPoll:      c.deps.LivenessPoll,
		ActivationTimeout: c.deps.ActivationTimeout,
	})

	mode := ModeInclude
	if exclude {
		mode = ModeExclude
	}
	return Descriptor{
		SessionID:  sessionID,
		TargetID:   targetID,
		Mode:       mode,
		SampleRate: capture.TargetSampleRate,
		Channels:   capture.TargetChannels,
		FrameSize:  capture.FrameSize,
	}, nil
}

func (c *Controller) run(rec *active, params capture.Params) {
	defer close(rec.done)
	outcome := c.deps.Runner(rec.stopCh, params, func(f capture.Frame) {
		c.deps.Dispatch(rec.sessionID, rec.targetID, f)
	})

	c.lock()
	if c.record == rec {
		c.record = nil
	}
	c.unlock()

	ended := Ended{SessionID: rec.sessionID, TargetID: rec.targetID, Reason: outcome.Reason}
	if outcome.Err != nil {
		ended.Error = outcome.Err.Error()
		ended.HasError = true
	}
	c.deps.OnEnded(ended)
}

// Stop stops the active session if sessionID is empty or matches it; a
// mismatched session id, or no active session, is a no-op, per the wire
// contract.
func (c *Controller) Stop(sessionID string) {
	var id *string
	if sessionID != "" {
		id = &sessionID
	}
	c.stopLocked(id)
}

func (c *Controller) stopLocked(requestedSessionID *string) {
	c.lock()
	rec := c.record
	if rec == nil {
		c.unlock()
		return
	}
	if requestedSessionID != nil && *requestedSessionID != rec.sessionID {
		c.unlock()
		return
	}
	c.record = nil
	c.unlock()

	close(rec.stopCh)
	<-rec.done
}
