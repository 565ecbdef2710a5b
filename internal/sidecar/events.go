package sidecar

import "time"

// nowMs is the only place this package reads the wall clock, isolated
// for a single call site.
func nowMs() int64 {
	return time.Now().UnixMilli()
}

type frameEventParams struct {
	SessionID       string `json:"sessionId"`
	TargetID        string `json:"targetId"`
	Sequence        uint64 `json:"sequence"`
	SampleRate      uint32 `json:"sampleRate"`
	Channels        uint16 `json:"channels"`
	FrameCount      uint32 `json:"frameCount"`
	PCMBase64       string `json:"pcmBase64"`
	ProtocolVersion int    `json:"protocolVersion"`
	Encoding        string `json:"encoding"`
}

type endedEventParams struct {
	SessionID       string `json:"sessionId"`
	TargetID        string `json:"targetId"`
	Reason          string `json:"reason"`
	ProtocolVersion int    `json:"protocolVersion"`
	Error           string `json:"error,omitempty"`
}
