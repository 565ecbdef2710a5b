//go:build windows

package audiotarget

import (
	"fmt"
	"syscall"
	"unsafe"

	"github.com/shirou/gopsutil/v3/process"
)

var (
	user32                     = syscall.NewLazyDLL("user32.dll")
	procEnumWindows            = user32.NewProc("EnumWindows")
	procIsWindowVisible        = user32.NewProc("IsWindowVisible")
	procIsWindow               = user32.NewProc("IsWindow")
	procGetWindow              = user32.NewProc("GetWindow")
	procGetWindowLongPtrW      = user32.NewProc("GetWindowLongPtrW")
	procGetWindowTextW         = user32.NewProc("GetWindowTextW")
	procGetWindowTextLengthW   = user32.NewProc("GetWindowTextLengthW")
	procGetWindowThreadProcess = user32.NewProc("GetWindowThreadProcessId")
)

const (
	gwOwner        = 4
	gwlExStyle     = -20 // GWL_EXSTYLE
	wsExToolWindow = 0x00000080
)

// isUserVisibleWindow mirrors the original sidecar's filter: visible,
// top-level (no owner), and not a tool window.
func isUserVisibleWindow(hwnd uintptr) bool {
	visible, _, _ := procIsWindowVisible.Call(hwnd)
	if visible == 0 {
		return false
	}

	owner, _, _ := procGetWindow.Call(hwnd, gwOwner)
	if owner != 0 {
		return false
	}

	exStyle, _, _ := procGetWindowLongPtrW.Call(hwnd, uintptr(int32(gwlExStyle)))
	if exStyle&wsExToolWindow != 0 {
		return false
	}
	return true
}

func windowTitle(hwnd uintptr) string {
	length, _, _ := procGetWindowTextLengthW.Call(hwnd)
	if length == 0 {
		return ""
	}
	buf := make([]uint16, length+1)
	procGetWindowTextW.Call(hwnd, uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	return syscall.UTF16ToString(buf)
}

func pidForWindow(hwnd uintptr) uint32 {
	var pid uint32
	procGetWindowThreadProcess.Call(hwnd, uintptr(unsafe.Pointer(&pid)))
	return pid
}

// enumerateWindowEntries walks every top-level window via EnumWindows,
// keeping only user-visible ones, and returns the raw (pid, title) pairs
// in enumeration order (undeduplicated).
func enumerateWindowEntries() []windowEntry {
	var entries []windowEntry
	cb := syscall.NewCallback(func(hwnd uintptr, _ uintptr) uintptr {
		if !isUserVisibleWindow(hwnd) {
			return 1 // continue enumeration
		}
		title := windowTitle(hwnd)
		if title == "" {
			return 1
		}
		pid := pidForWindow(hwnd)
		if pid == 0 {
			return 1
		}
		entries = append(entries, windowEntry{pid: pid, title: title})
		return 1
	})
	procEnumWindows.Call(cb, 0)
	return entries
}

// processNameFromPID resolves an executable basename for pid, first via
// gopsutil (cheap, works for most processes), falling back to the WMI
// lookup in wmi_windows.go for processes gopsutil can't open (elevated
// or protected processes commonly seen among loopback targets).
func processNameFromPID(pid uint32) string {
	if p, err := process.NewProcess(int32(pid)); err == nil {
		if name, err := p.Name(); err == nil && name != "" {
			return name
		}
	}
	if name, ok := processNameViaWMI(pid); ok {
		return name
	}
	return ""
}

// Enumerate lists the current candidate audio targets: every
// user-visible top-level window, deduplicated by owning process id
// (first window title wins), labelled "<title> - <exe> (<pid>)".
func Enumerate() ([]Target, error) {
	entries := enumerateWindowEntries()
	byPID := DedupeByPID(entries)

	targets := make([]Target, 0, len(byPID))
	for pid, title := range byPID {
		name := processNameFromPID(pid)
		label := fmt.Sprintf("%s - %s (%d)", title, name, pid)
		targets = append(targets, Target{
			ID:          FormatTargetID(pid),
			Label:       label,
			Pid:         pid,
			ProcessName: name,
		})
	}
	return sortedByLabel(targets), nil
}

// ResolveSourceToPID resolves a "window:<HWND>:<slot>" source id to the
// pid owning that window, verifying the window still exists first.
func ResolveSourceToPID(sourceID string) (uint32, bool) {
	hwnd, ok := ParseWindowSourceID(sourceID)
	if !ok {
		return 0, false
	}

	exists, _, _ := procIsWindow.Call(uintptr(hwnd))
	if exists == 0 {
		return 0, false
	}

	pid := pidForWindow(uintptr(hwnd))
	if pid == 0 {
		return 0, false
	}
	return pid, true
}
