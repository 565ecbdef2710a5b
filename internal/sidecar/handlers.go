package sidecar

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/sweetshark/capture-sidecar/internal/audiotarget"
	"github.com/sweetshark/capture-sidecar/internal/protocol"
	"github.com/sweetshark/capture-sidecar/internal/session"
)

type pingResult struct {
	Status          string `json:"status"`
	TimestampMs     int64  `json:"timestampMs"`
	ProtocolVersion int    `json:"protocolVersion"`
}

func (s *Sidecar) handlePing() (any, error) {
	return pingResult{
		Status:          "ok",
		TimestampMs:     nowMs(),
		ProtocolVersion: protocol.Version,
	}, nil
}

type capabilitiesResult struct {
	Platform        string `json:"platform"`
	PerAppAudio     string `json:"perAppAudio"`
	ProtocolVersion int    `json:"protocolVersion"`
	Encoding        string `json:"encoding"`
}

func (s *Sidecar) handleCapabilities() (any, error) {
	perAppAudio := "unsupported"
	if runtime.GOOS == "windows" {
		perAppAudio = "supported"
	}
	return capabilitiesResult{
		Platform:        runtime.GOOS,
		PerAppAudio:     perAppAudio,
		ProtocolVersion: protocol.Version,
		Encoding:        protocol.PCMEncoding,
	}, nil
}

type resolveSourceParams struct {
	SourceID string `json:"sourceId"`
}

type resolveSourceResult struct {
	SourceID string  `json:"sourceId"`
	PID      *uint32 `json:"pid"`
}

func (s *Sidecar) handleResolveSource(raw json.RawMessage) (any, error) {
	var params resolveSourceParams
	if err := unmarshalParams(raw, &params); err != nil {
		return nil, err
	}
	result := resolveSourceResult{SourceID: params.SourceID}
	if pid, ok := audiotarget.ResolveSourceToPID(params.SourceID); ok {
		result.PID = &pid
	}
	return result, nil
}

type listTargetsParams struct {
	SourceID string `json:"sourceId"`
}

type listTargetsResult struct {
	Targets           []audiotarget.Target `json:"targets"`
	SuggestedTargetID string                `json:"suggestedTargetId,omitempty"`
	ProtocolVersion   int                   `json:"protocolVersion"`
}

func (s *Sidecar) handleListTargets(raw json.RawMessage) (any, error) {
	var params listTargetsParams
	if err := unmarshalParams(raw, &params); err != nil {
		return nil, err
	}

	targets, err := audiotarget.Enumerate()
	if err != nil {
		// Mirrors enumeration being a collaborator only available on
		// Windows: an empty list is a valid answer everywhere else,
		// not a request failure.
		log.Warn("audio target enumeration unavailable", "error", err)
		targets = nil
	}

	result := listTargetsResult{Targets: targets, ProtocolVersion: protocol.Version}
	if params.SourceID != "" {
		if pid, ok := audiotarget.ResolveSourceToPID(params.SourceID); ok {
			result.SuggestedTargetID = audiotarget.FormatTargetID(pid)
		}
	}
	return result, nil
}

type binaryEgressInfoResult struct {
	Port            int    `json:"port"`
	Framing         string `json:"framing"`
	ProtocolVersion int    `json:"protocolVersion"`
}

func (s *Sidecar) handleBinaryEgressInfo() (any, error) {
	if s.egress == nil {
		return nil, fmt.Errorf("Binary egress is unavailable")
	}
	return binaryEgressInfoResult{
		Port:            s.egress.Port(),
		Framing:         protocol.BinaryFraming,
		ProtocolVersion: protocol.Version,
	}, nil
}

type startCaptureParams struct {
	SourceID         string  `json:"sourceId"`
	AppAudioTargetID string  `json:"appAudioTargetId"`
	ExcludePID       *uint32 `json:"excludePid"`
}

type startCaptureResult struct {
	SessionID       string `json:"sessionId"`
	TargetID        string `json:"targetId"`
	Mode            string `json:"mode"`
	SampleRate      int    `json:"sampleRate"`
	Channels        int    `json:"channels"`
	FramesPerBuffer int    `json:"framesPerBuffer"`
	ProtocolVersion int    `json:"protocolVersion"`
	Encoding        string `json:"encoding"`
}

func (s *Sidecar) handleCaptureStart(raw json.RawMessage) (any, error) {
	if runtime.GOOS != "windows" {
		return nil, fmt.Errorf("Per-app audio capture is only available on Windows.")
	}

	var params startCaptureParams
	if err := unmarshalParams(raw, &params); err != nil {
		return nil, err
	}

	startParams := session.StartParams{
		SourceID:         params.SourceID,
		AppAudioTargetID: params.AppAudioTargetID,
	}
	if params.ExcludePID != nil {
		startParams.HasExcludePID = true
		startParams.ExcludePID = *params.ExcludePID
	}

	desc, err := s.controller.Start(startParams)
	if err != nil {
		return nil, err
	}
	return startCaptureResult{
		SessionID:       desc.SessionID,
		TargetID:        desc.TargetID,
		Mode:            desc.Mode,
		SampleRate:      desc.SampleRate,
		Channels:        desc.Channels,
		FramesPerBuffer: desc.FrameSize,
		ProtocolVersion: protocol.Version,
		Encoding:        protocol.PCMEncoding,
	}, nil
}

type stopCaptureParams struct {
	SessionID string `json:"sessionId"`
}

type stopCaptureResult struct {
	Stopped         bool `json:"stopped"`
	ProtocolVersion int  `json:"protocolVersion"`
}

func (s *Sidecar) handleCaptureStop(raw json.RawMessage) (any, error) {
	var params stopCaptureParams
	if err := unmarshalParams(raw, &params); err != nil {
		return nil, err
	}
	s.controller.Stop(params.SessionID)
	return stopCaptureResult{Stopped: true, ProtocolVersion: protocol.Version}, nil
}

// unmarshalParams decodes raw into dst; an absent params field is
// treated as an all-zero-value struct rather than an error.
func unmarshalParams(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("invalid params: %w", err)
	}
	return nil
}
