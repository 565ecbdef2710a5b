package binaryegress

import (
	"encoding/binary"
	"fmt"

	"github.com/sweetshark/capture-sidecar/internal/protocol"
)

// Frame is the set of fields carried by one binary egress frame.
// DroppedFrameCount is always zero in this revision; the field is kept
// so the wire layout has room for a drop counter.
type Frame struct {
	SessionID         string
	TargetID          string
	Sequence          uint64
	SampleRate        uint32
	Channels          uint16
	FrameCount        uint32
	ProtocolVersion   uint32
	DroppedFrameCount uint32
	PCM               []byte
}

// Encode serialises f into the length_prefixed_f32le_v1 wire format.
// It returns an error instead of writing anything if f fails validation:
// empty ids, an id over 65535 bytes, a zero sample rate/channels/frame
// count, an empty PCM payload, or a total payload over
// protocol.MaxBinaryFrameBytes.
func (f Frame) Encode() ([]byte, error) {
	if f.SessionID == "" {
		return nil, fmt.Errorf("empty session id")
	}
	if f.TargetID == "" {
		return nil, fmt.Errorf("empty target id")
	}
	if len(f.SessionID) > 0xFFFF {
		return nil, fmt.Errorf("session id exceeds 65535 bytes")
	}
	if len(f.TargetID) > 0xFFFF {
		return nil, fmt.Errorf("target id exceeds 65535 bytes")
	}
	if f.SampleRate == 0 || f.Channels == 0 || f.FrameCount == 0 {
		return nil, fmt.Errorf("sample rate, channels, and frame count must be nonzero")
	}
	if len(f.PCM) == 0 {
		return nil, fmt.Errorf("empty pcm payload")
	}

	payloadLen := 2 + len(f.SessionID) +
		2 + len(f.TargetID) +
		8 + 4 + 2 + 4 + 4 + 4 + 4 +
		len(f.PCM)
	if payloadLen > protocol.MaxBinaryFrameBytes {
		return nil, fmt.Errorf("payload length %d exceeds maximum %d", payloadLen, protocol.MaxBinaryFrameBytes)
	}

	buf := make([]byte, 4+payloadLen)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(payloadLen))

	off := 4
	binary.LittleEndian.PutUint16(buf[off:], uint16(len(f.SessionID)))
	off += 2
	off += copy(buf[off:], f.SessionID)

	binary.LittleEndian.PutUint16(buf[off:], uint16(len(f.TargetID)))
	off += 2
	off += copy(buf[off:], f.TargetID)

	binary.LittleEndian.PutUint64(buf[off:], f.Sequence)
	off += 8
	binary.LittleEndian.PutUint32(buf[off:], f.SampleRate)
	off += 4
	binary.LittleEndian.PutUint16(buf[off:], f.Channels)
	off += 2
	binary.LittleEndian.PutUint32(buf[off:], f.FrameCount)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], f.ProtocolVersion)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], f.DroppedFrameCount)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], uint32(len(f.PCM)))
	off += 4
	copy(buf[off:], f.PCM)

	return buf, nil
}
