//go:build windows

package capture

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"runtime"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/sweetshark/capture-sidecar/internal/logging"
	"github.com/sweetshark/capture-sidecar/internal/wasapi"
)

var log = logging.L("capture")

const (
	audclntShareModeShared            = 0
	audclntStreamflagsLoopback        = 0x00020000
	audclntStreamflagsAutoconvertPCM  = 0x80000000
	audclntStreamflagsSrcDefaultQual  = 0x08000000
	audclntBufferflagsSilent          = 0x2
	audclntInvalidStreamFlagErrorCode = 0x88890021 // AUDCLNT_E_INVALID_STREAM_FLAG

	bufferDuration100ns = 20 * 10_000 // 20ms device buffer

	livenessPollInterval = 300 * time.Millisecond
	idleSleep            = 4 * time.Millisecond

	waveFormatIEEEFloat = 0x0003
)

// waveFormatEx matches the native WAVEFORMATEX layout.
type waveFormatEx struct {
	FormatTag      uint16
	Channels       uint16
	SamplesPerSec  uint32
	AvgBytesPerSec uint32
	BlockAlign     uint16
	BitsPerSample  uint16
	CbSize         uint16
}

func canonicalFormat() waveFormatEx {
	return waveFormatEx{
		FormatTag:      waveFormatIEEEFloat,
		Channels:       TargetChannels,
		SamplesPerSec:  TargetSampleRate,
		AvgBytesPerSec: TargetSampleRate * TargetChannels * 4,
		BlockAlign:     TargetChannels * 4,
		BitsPerSample:  32,
		CbSize:         0,
	}
}

// Run drives one capture session to completion. It blocks until the stop
// channel is closed, the target process exits, or the engine hits a
// terminal error; dispatch is invoked inline, once per drained frame.
func Run(stop <-chan struct{}, params Params, dispatch Dispatch) Outcome {
	var processHandle windows.Handle
	haveLiveness := false
	if !params.Exclude {
		h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION|windows.SYNCHRONIZE, false, params.TargetPID)
		if err != nil {
			return appExited()
		}
		processHandle = h
		haveLiveness = true
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	entered, err := wasapi.EnterApartment()
	if err != nil {
		if haveLiveness {
			windows.CloseHandle(processHandle)
		}
		return captureError(fmt.Errorf("enter COM apartment: %w", err))
	}

	outcome := pump(stop, params, dispatch, processHandle, haveLiveness)
	if outcome.Reason == ReasonCaptureError {
		log.Error("capture ended with error", "targetPid", params.TargetPID, "error", outcome.Err)
	}

	if haveLiveness {
		windows.CloseHandle(processHandle)
	}
	if entered {
		wasapi.LeaveApartment()
	}
	return outcome
}

func pump(stop <-chan struct{}, params Params, dispatch Dispatch, processHandle windows.Handle, haveLiveness bool) Outcome {
	audioClient, err := wasapi.Activate(params.TargetPID, params.Exclude, params.ActivationTimeout)
	if err != nil {
		return captureError(fmt.Errorf("activate loopback client: %w", err))
	}
	defer wasapi.Release(audioClient)

	format := canonicalFormat()
	if _, err := wasapi.Call(audioClient, wasapi.AudioClientInitialize,
		uintptr(audclntShareModeShared),
		uintptr(audclntStreamflagsLoopback|audclntStreamflagsAutoconvertPCM|audclntStreamflagsSrcDefaultQual),
		uintptr(bufferDuration100ns),
		0,
		uintptr(unsafe.Pointer(&format)),
		0,
	); err != nil {
		var hrErr *wasapi.HRESULTError
		if errors.As(err, &hrErr) && hrErr.Code == audclntInvalidStreamFlagErrorCode {
			return captureError(fmt.Errorf("initialize loopback client: invalid stream flags for process loopback: %w", err))
		}
		return captureError(fmt.Errorf("initialize loopback client: %w", err))
	}

	var captureClient uintptr
	if _, err := wasapi.Call(audioClient, wasapi.AudioClientGetService,
		uintptr(unsafe.Pointer(&wasapi.IID_IAudioCaptureClient)),
		uintptr(unsafe.Pointer(&captureClient)),
	); err != nil {
		return captureError(fmt.Errorf("get capture client service: %w", err))
	}
	defer wasapi.Release(captureClient)

	if _, err := wasapi.Call(audioClient, wasapi.AudioClientStart); err != nil {
		return captureError(fmt.Errorf("start audio client: %w", err))
	}

	var pending []float32
	var sequence uint64
	lastLiveness := time.Now()
	livenessPoll := params.LivenessPoll
	if livenessPoll <= 0 {
		livenessPoll = livenessPollInterval
	}

	for {
		select {
		case <-stop:
			wasapi.Call(audioClient, wasapi.AudioClientStop)
			return stopped()
		default:
		}

		if haveLiveness && time.Since(lastLiveness) >= livenessPoll {
			if !processAlive(processHandle) {
				wasapi.Call(audioClient, wasapi.AudioClientStop)
				return appExited()
			}
			lastLiveness = time.Now()
		}

		packetSize, err := getNextPacketSize(captureClient)
		if err != nil {
			wasapi.Call(audioClient, wasapi.AudioClientStop)
			return deviceLost()
		}
		if packetSize == 0 {
			time.Sleep(idleSleep)
			continue
		}

		for packetSize > 0 {
			chunk, releaseErr := getBufferChunk(captureClient)
			if releaseErr != nil {
				wasapi.Call(audioClient, wasapi.AudioClientStop)
				return captureError(releaseErr)
			}
			pending = append(pending, chunk...)

			for len(pending) >= FrameSize*TargetChannels {
				frameSamples := pending[:FrameSize*TargetChannels]
				pending = pending[FrameSize*TargetChannels:]

				pcm := make([]byte, len(frameSamples)*4)
				for i, s := range frameSamples {
					binary.LittleEndian.PutUint32(pcm[i*4:], math.Float32bits(s))
				}

				dispatch(Frame{
					Sequence:   sequence,
					SampleRate: TargetSampleRate,
					Channels:   TargetChannels,
					FrameCount: FrameSize,
					PCM:        pcm,
				})
				sequence = saturatingAdd(sequence, 1)
			}

			packetSize, err = getNextPacketSize(captureClient)
			if err != nil {
				wasapi.Call(audioClient, wasapi.AudioClientStop)
				return deviceLost()
			}
		}
	}
}

func saturatingAdd(v uint64, delta uint64) uint64 {
	if v > math.MaxUint64-delta {
		return math.MaxUint64
	}
	return v + delta
}

func processAlive(h windows.Handle) bool {
	ret, err := windows.WaitForSingleObject(h, 0)
	if err != nil {
		return true
	}
	return ret == uint32(windows.WAIT_TIMEOUT)
}

func getNextPacketSize(captureClient uintptr) (uint32, error) {
	var size uint32
	if _, err := wasapi.Call(captureClient, wasapi.CaptureClientGetNextPacketSize, uintptr(unsafe.Pointer(&size))); err != nil {
		return 0, err
	}
	return size, nil
}

func getBufferChunk(captureClient uintptr) ([]float32, error) {
	var dataPtr uintptr
	var frameCount uint32
	var flags uint32

	if _, err := wasapi.Call(captureClient, wasapi.CaptureClientGetBuffer,
		uintptr(unsafe.Pointer(&dataPtr)),
		uintptr(unsafe.Pointer(&frameCount)),
		uintptr(unsafe.Pointer(&flags)),
		0, // pu64DevicePosition, unused
		0, // pu64QPCPosition, unused
	); err != nil {
		return nil, err
	}

	sampleCount := int(frameCount) * TargetChannels
	var chunk []float32
	if flags&audclntBufferflagsSilent != 0 || dataPtr == 0 {
		chunk = make([]float32, sampleCount)
	} else {
		src := unsafe.Slice((*float32)(unsafe.Pointer(dataPtr)), sampleCount)
		chunk = make([]float32, sampleCount)
		copy(chunk, src)
	}

	if _, err := wasapi.Call(captureClient, wasapi.CaptureClientReleaseBuffer, uintptr(frameCount)); err != nil {
		return nil, err
	}
	return chunk, nil
}
