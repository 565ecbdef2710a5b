//go:build windows

package wasapi

import (
	"fmt"
	"syscall"
	"unsafe"
)

// COM vtable calling infrastructure in pure Go: no cgo, just manual
// vtable pointer arithmetic and syscall.SyscallN.

// GUID is a COM GUID (128-bit), laid out to match the native struct
// byte-for-byte.
type GUID struct {
	Data1 uint32
	Data2 uint16
	Data3 uint16
	Data4 [8]byte
}

// HRESULTError is returned by Call when the underlying COM method
// returns a failure HRESULT, preserving the raw code for callers that
// need to distinguish specific failures (e.g. AUDCLNT_E_INVALID_STREAM_FLAG).
type HRESULTError struct {
	VtableIdx int
	Code      uint32
}

func (e *HRESULTError) Error() string {
	return fmt.Sprintf("COM vtable[%d] HRESULT 0x%08X", e.VtableIdx, e.Code)
}

// Call invokes a COM vtable method at the given index. obj is a pointer
// to a COM interface (pointer to pointer to vtable).
func Call(obj uintptr, vtableIdx int, args ...uintptr) (uintptr, error) {
	vtablePtr := *(*uintptr)(unsafe.Pointer(obj))
	fnPtr := *(*uintptr)(unsafe.Pointer(vtablePtr + uintptr(vtableIdx)*unsafe.Sizeof(uintptr(0))))

	var ret uintptr
	switch len(args) {
	case 0:
		ret, _, _ = syscall.SyscallN(fnPtr, obj)
	case 1:
		ret, _, _ = syscall.SyscallN(fnPtr, obj, args[0])
	case 2:
		ret, _, _ = syscall.SyscallN(fnPtr, obj, args[0], args[1])
	case 3:
		ret, _, _ = syscall.SyscallN(fnPtr, obj, args[0], args[1], args[2])
	default:
		allArgs := make([]uintptr, 0, 1+len(args))
		allArgs = append(allArgs, obj)
		allArgs = append(allArgs, args...)
		ret, _, _ = syscall.SyscallN(fnPtr, allArgs...)
	}

	if int32(ret) < 0 {
		return ret, &HRESULTError{VtableIdx: vtableIdx, Code: uint32(ret)}
	}
	return ret, nil
}

// Release calls IUnknown::Release (vtable index 2).
func Release(obj uintptr) {
	if obj != 0 {
		vtablePtr := *(*uintptr)(unsafe.Pointer(obj))
		fnPtr := *(*uintptr)(unsafe.Pointer(vtablePtr + 2*unsafe.Sizeof(uintptr(0))))
		syscall.SyscallN(fnPtr, obj)
	}
}

var (
	ole32DLL    = syscall.NewLazyDLL("ole32.dll")
	mmdevapiDLL = syscall.NewLazyDLL("mmdevapi.dll")

	procCoInitializeEx = ole32DLL.NewProc("CoInitializeEx")
	procCoUninitialize = ole32DLL.NewProc("CoUninitialize")

	procActivateAudioInterfaceAsync = mmdevapiDLL.NewProc("ActivateAudioInterfaceAsync")
)

const coinitMultithreaded = 0x0

// EnterApartment initializes COM on the calling (OS-locked) thread in
// the multi-threaded apartment. Returns whether it actually performed
// initialization here (S_OK), as opposed to finding COM already
// initialized (S_FALSE) — callers use this to decide whether they, not
// some earlier caller on this thread, own the matching CoUninitialize.
func EnterApartment() (entered bool, err error) {
	hr, _, _ := procCoInitializeEx.Call(0, coinitMultithreaded)
	switch int32(hr) {
	case 0: // S_OK
		return true, nil
	case 1: // S_FALSE: already initialized on this thread
		return false, nil
	default:
		return false, fmt.Errorf("CoInitializeEx failed: 0x%08X", uint32(hr))
	}
}

// LeaveApartment balances a successful EnterApartment call.
func LeaveApartment() {
	procCoUninitialize.Call()
}

// IID_IAudioClient is {1CB9AD4C-DBFA-4c32-B178-C2F568A703B2}.
var IID_IAudioClient = GUID{0x1CB9AD4C, 0xDBFA, 0x4c32, [8]byte{0xB1, 0x78, 0xC2, 0xF5, 0x68, 0xA7, 0x03, 0xB2}}

// IID_IAudioCaptureClient is {C8ADBD64-E71E-48a0-A4DE-185C395CD317}.
var IID_IAudioCaptureClient = GUID{0xC8ADBD64, 0xE71E, 0x48a0, [8]byte{0xA4, 0xDE, 0x18, 0x5C, 0x39, 0x5C, 0xD3, 0x17}}

// IAudioClient vtable indices (IUnknown = 0,1,2; interface methods start at 3).
const (
	AudioClientInitialize = 3
	AudioClientGetService = 14
	AudioClientStart      = 10
	AudioClientStop       = 11
)

// IAudioCaptureClient vtable indices. The interface has exactly three
// methods beyond IUnknown.
const (
	CaptureClientGetBuffer          = 3
	CaptureClientReleaseBuffer      = 4
	CaptureClientGetNextPacketSize  = 5
)
