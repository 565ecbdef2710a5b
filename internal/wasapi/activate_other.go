//go:build !windows

package wasapi

import (
	"errors"
	"time"
)

// Activate always fails on non-Windows builds: process-loopback
// activation is a WASAPI primitive with no equivalent here.
func Activate(targetPid uint32, exclude bool, timeout time.Duration) (uintptr, error) {
	return 0, errors.New("WASAPI process-loopback activation is only available on Windows")
}

// EnterApartment is a no-op off Windows; there is no apartment to enter.
func EnterApartment() (bool, error) { return false, nil }

// LeaveApartment is a no-op off Windows.
func LeaveApartment() {}

// Call and Release are unreachable off Windows since no handle can ever
// be obtained from Activate, but are defined so capture-engine code can
// be built without per-platform branching at the call sites.
func Call(obj uintptr, vtableIdx int, args ...uintptr) (uintptr, error) {
	return 0, errors.New("WASAPI is only available on Windows")
}

func Release(obj uintptr) {}
