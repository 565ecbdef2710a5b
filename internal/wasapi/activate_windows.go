//go:build windows

package wasapi

import (
	"fmt"
	"sync"
	"syscall"
	"time"
	"unsafe"

	"github.com/sweetshark/capture-sidecar/internal/logging"
)

var log = logging.L("wasapi")

// activationTimeout bounds how long Activate waits for the OS completion
// callback before giving up.
const activationTimeout = 5 * time.Second

const (
	audioclientActivationTypeProcessLoopback = 1

	processLoopbackModeIncludeTargetProcessTree = 0
	processLoopbackModeExcludeTargetProcessTree = 1

	vtBlob = 0x41 // VARENUM VT_BLOB
)

// audioClientActivationParams matches AUDIOCLIENT_ACTIVATION_PARAMS for
// the process-loopback activation type: a DWORD tag followed by the
// AUDIOCLIENT_PROCESS_LOOPBACK_PARAMS union member. All fields are
// 4-byte DWORDs so there is no padding to account for.
type audioClientActivationParams struct {
	ActivationType      uint32
	TargetProcessID     uint32
	ProcessLoopbackMode uint32
}

// propVariantBlob is a PROPVARIANT carrying a VT_BLOB payload. Layout
// matches the native struct on x64: an 8-byte VARTYPE+reserved header,
// then the BLOB union member (ULONG cbSize, 4 bytes of alignment
// padding, then the 8-byte pBlobData pointer) for a 24-byte total.
type propVariantBlob struct {
	vt        uint16
	reserved1 uint16
	reserved2 uint16
	reserved3 uint16
	cbSize    uint32
	_pad      uint32
	pBlobData uintptr
}

// activationCompletionHandler is the IUnknown-compatible object we hand
// to ActivateAudioInterfaceAsync. Its first field must be a pointer to a
// vtable of function pointers to satisfy the COM calling convention;
// everything after that is ours to use from the callbacks, which we
// build as closures over a private signal per call, so no global
// registry of in-flight activations is needed.
type activationCompletionHandler struct {
	vtbl uintptr
}

type activationSignal struct {
	mu   sync.Mutex
	cond *sync.Cond
	done bool
}

// Activate activates a process-scoped loopback IAudioClient for
// targetPid, synchronously. In include mode (exclude=false) the client
// captures only targetPid's process tree; in exclude mode it captures
// everything except it. The OS activation primitive is callback-based
// on an arbitrary thread; this bridges it to a blocking call gated by
// timeout. A non-positive timeout falls back to activationTimeout.
func Activate(targetPid uint32, exclude bool, timeout time.Duration) (audioClient uintptr, err error) {
	if timeout <= 0 {
		timeout = activationTimeout
	}
	loopbackMode := uint32(processLoopbackModeIncludeTargetProcessTree)
	if exclude {
		loopbackMode = processLoopbackModeExcludeTargetProcessTree
	}

	params := &audioClientActivationParams{
		ActivationType:      audioclientActivationTypeProcessLoopback,
		TargetProcessID:     targetPid,
		ProcessLoopbackMode: loopbackMode,
	}

	propVariant := &propVariantBlob{
		vt:        vtBlob,
		cbSize:    uint32(unsafe.Sizeof(*params)),
		pBlobData: uintptr(unsafe.Pointer(params)),
	}

	signal := &activationSignal{}
	signal.cond = sync.NewCond(&signal.mu)

	var funcs [4]uintptr
	funcs[0] = syscall.NewCallback(func(this, riid, ppv uintptr) uintptr {
		// Permissive QueryInterface: the only caller is the audio
		// subsystem driving this one-shot activation, never general
		// COM consumer code, so we just hand back our own pointer.
		if ppv != 0 {
			*(*uintptr)(unsafe.Pointer(ppv)) = this
		}
		return 0 // S_OK
	})
	funcs[1] = syscall.NewCallback(func(this uintptr) uintptr { return 1 })
	funcs[2] = syscall.NewCallback(func(this uintptr) uintptr { return 1 })
	funcs[3] = syscall.NewCallback(func(this, operation uintptr) uintptr {
		signal.mu.Lock()
		signal.done = true
		signal.cond.Broadcast()
		signal.mu.Unlock()
		return 0 // S_OK
	})

	handler := &activationCompletionHandler{vtbl: uintptr(unsafe.Pointer(&funcs))}

	devicePath, err := syscall.UTF16PtrFromString(`VAD\Process_Loopback`)
	if err != nil {
		return 0, fmt.Errorf("encode device path: %w", err)
	}

	var operation uintptr
	hr, _, _ := procActivateAudioInterfaceAsync.Call(
		uintptr(unsafe.Pointer(devicePath)),
		uintptr(unsafe.Pointer(&IID_IAudioClient)),
		uintptr(unsafe.Pointer(propVariant)),
		uintptr(unsafe.Pointer(handler)),
		uintptr(unsafe.Pointer(&operation)),
	)
	if int32(hr) < 0 {
		return 0, fmt.Errorf("ActivateAudioInterfaceAsync failed: 0x%08X", uint32(hr))
	}

	done := waitWithTimeout(signal, timeout)
	if !done {
		return 0, fmt.Errorf("activation timed out")
	}

	var activateResult uint32
	var activatedInterface uintptr
	if _, err := Call(operation, 3,
		uintptr(unsafe.Pointer(&activateResult)),
		uintptr(unsafe.Pointer(&activatedInterface)),
	); err != nil {
		Release(operation)
		return 0, fmt.Errorf("GetActivateResult failed: %w", err)
	}
	Release(operation)

	if int32(activateResult) < 0 {
		if activatedInterface != 0 {
			Release(activatedInterface)
		}
		return 0, fmt.Errorf("activation returned failure HRESULT 0x%08X", activateResult)
	}
	if activatedInterface == 0 {
		return 0, fmt.Errorf("activation returned no interface")
	}

	// Keep the callback object and its vtable reachable until the async
	// call has fully completed; they are referenced only via raw
	// uintptrs handed to the OS, which the Go garbage collector cannot
	// see.
	keepAlive(handler, &funcs)

	return activatedInterface, nil
}

func waitWithTimeout(signal *activationSignal, timeout time.Duration) bool {
	result := make(chan bool, 1)
	go func() {
		signal.mu.Lock()
		defer signal.mu.Unlock()
		for !signal.done {
			signal.cond.Wait()
		}
		result <- true
	}()

	select {
	case <-result:
		return true
	case <-time.After(timeout):
		return false
	}
}

//go:noinline
func keepAlive(vals ...any) {}
