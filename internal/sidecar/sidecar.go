// Package sidecar wires the protocol, frameio, binaryegress, audiotarget,
// capture, and session packages together into the request dispatcher a
// host process actually talks to over stdin/stdout.
package sidecar

import (
	"bufio"
	"encoding/base64"
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/sweetshark/capture-sidecar/internal/audiotarget"
	"github.com/sweetshark/capture-sidecar/internal/binaryegress"
	"github.com/sweetshark/capture-sidecar/internal/capture"
	"github.com/sweetshark/capture-sidecar/internal/config"
	"github.com/sweetshark/capture-sidecar/internal/frameio"
	"github.com/sweetshark/capture-sidecar/internal/logging"
	"github.com/sweetshark/capture-sidecar/internal/protocol"
	"github.com/sweetshark/capture-sidecar/internal/session"
)

var log = logging.L("sidecar")

const maxRequestLineBytes = 1024 * 1024

// Sidecar owns every long-lived piece of the process: the outbound
// writer, the text frame queue and its drain goroutine, the optional
// binary egress listener, and the session controller.
type Sidecar struct {
	writer     *protocol.Writer
	queue      *frameio.Queue
	egress     *binaryegress.Server
	controller *session.Controller
}

// New wires up a Sidecar against out (normally os.Stdout) using cfg's
// tunables. The binary egress listener is best-effort: a bind failure
// disables the binary path for the process lifetime rather than
// aborting startup.
func New(cfg *config.Config, out io.Writer) *Sidecar {
	writer := protocol.NewWriter(out)
	queue := frameio.NewQueue(cfg.FrameQueueCapacity)
	go frameio.RunWriter(queue, writer)

	var egress *binaryegress.Server
	srv, err := binaryegress.Listen(cfg.BinaryEgressPort)
	if err != nil {
		log.Warn("binary egress unavailable", "error", err)
	} else {
		egress = srv
		go egress.Run()
		log.Info("binary egress listening", "port", egress.Port())
	}

	s := &Sidecar{writer: writer, queue: queue, egress: egress}
	s.controller = session.NewController(session.Dependencies{
		Dispatch:           s.dispatchFrame,
		OnEnded:            s.emitEnded,
		ResolveSourceToPID: audiotarget.ResolveSourceToPID,
		ListTargets:        audiotarget.Enumerate,
		ProcessName:        s.processName,
		LivenessPoll:       time.Duration(cfg.LivenessPollMs) * time.Millisecond,
		ActivationTimeout:  time.Duration(cfg.ActivationTimeoutMs) * time.Millisecond,
	})
	return s
}

// Close tears down the binary egress listener and the text frame queue;
// callers should do this once the dispatch loop returns.
func (s *Sidecar) Close() {
	if s.egress != nil {
		s.egress.Stop()
	}
	s.queue.Close()
}

// Run reads newline-delimited JSON requests from in until it closes,
// handling each one inline. Blank lines are ignored; malformed JSON is
// logged and skipped without a response.
func (s *Sidecar) Run(in io.Reader) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), maxRequestLineBytes)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var req protocol.Request
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			log.Warn("invalid request json", "error", err)
			continue
		}
		s.handle(req)
	}
	return scanner.Err()
}

func (s *Sidecar) handle(req protocol.Request) {
	result, err := s.dispatch(req)
	if req.ID == nil {
		if err != nil {
			log.Warn("request without id failed", "method", req.Method, "error", err)
		}
		return
	}
	if err != nil {
		s.writer.WriteJSON(protocol.Fail(*req.ID, err.Error()))
		return
	}
	s.writer.WriteJSON(protocol.OK(*req.ID, result))
}

func (s *Sidecar) dispatch(req protocol.Request) (any, error) {
	switch req.Method {
	case "health.ping":
		return s.handlePing()
	case "capabilities.get":
		return s.handleCapabilities()
	case "windows.resolve_source":
		return s.handleResolveSource(req.Params)
	case "audio_targets.list":
		return s.handleListTargets(req.Params)
	case "audio_capture.binary_egress_info":
		return s.handleBinaryEgressInfo()
	case "audio_capture.start":
		return s.handleCaptureStart(req.Params)
	case "audio_capture.stop":
		return s.handleCaptureStop(req.Params)
	default:
		return nil, unknownMethodError(req.Method)
	}
}

// processName is a best-effort diagnostic lookup: it searches the
// current window enumeration rather than re-querying the OS directly,
// since that enumeration already resolves names via gopsutil/WMI.
func (s *Sidecar) processName(pid uint32) string {
	targets, err := audiotarget.Enumerate()
	if err != nil {
		return "unknown.exe"
	}
	for _, t := range targets {
		if t.Pid == pid {
			return t.ProcessName
		}
	}
	return "unknown.exe"
}

func (s *Sidecar) dispatchFrame(sessionID, targetID string, f capture.Frame) {
	if s.egress != nil && s.egress.Connected() {
		wrote := s.egress.WriteFrame(binaryegress.Frame{
			SessionID:       sessionID,
			TargetID:        targetID,
			Sequence:        f.Sequence,
			SampleRate:      f.SampleRate,
			Channels:        f.Channels,
			FrameCount:      f.FrameCount,
			ProtocolVersion: protocol.Version,
			PCM:             f.PCM,
		})
		if wrote {
			return
		}
	}

	line, err := json.Marshal(protocol.Event{
		Event: "audio_capture.frame",
		Params: frameEventParams{
			SessionID:       sessionID,
			TargetID:        targetID,
			Sequence:        f.Sequence,
			SampleRate:      f.SampleRate,
			Channels:        f.Channels,
			FrameCount:      f.FrameCount,
			PCMBase64:       base64.StdEncoding.EncodeToString(f.PCM),
			ProtocolVersion: protocol.Version,
			Encoding:        protocol.PCMEncoding,
		},
	})
	if err != nil {
		log.Error("failed to encode text frame event", "error", err)
		return
	}
	s.queue.Push(string(line))
}

func (s *Sidecar) emitEnded(e session.Ended) {
	params := endedEventParams{
		SessionID:       e.SessionID,
		TargetID:        e.TargetID,
		Reason:          e.Reason,
		ProtocolVersion: protocol.Version,
	}
	if e.HasError {
		params.Error = e.Error
	}
	if err := s.writer.WriteJSON(protocol.Event{Event: "audio_capture.ended", Params: params}); err != nil {
		log.Error("failed to write ended event", "error", err)
	}
}

type unknownMethodError string

func (e unknownMethodError) Error() string {
	return "unknown method: " + string(e)
}
