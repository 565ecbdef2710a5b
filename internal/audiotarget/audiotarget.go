// Package audiotarget resolves and enumerates the process-level audio
// targets the capture engine can attach to: parsing the opaque source
// and target id strings the host sends, and (on Windows) enumerating
// user-visible top-level windows to build the candidate list.
package audiotarget

import (
	"sort"
	"strconv"
	"strings"

	"github.com/sweetshark/capture-sidecar/internal/logging"
)

var log = logging.L("audiotarget")

// Target is a candidate (or resolved) audio capture target: a live
// process identified by pid, labelled for display.
type Target struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Pid         uint32 `json:"pid"`
	ProcessName string `json:"processName"`
}

// FormatTargetID renders the wire id for an include-mode target.
func FormatTargetID(pid uint32) string {
	return "pid:" + strconv.FormatUint(uint64(pid), 10)
}

// FormatExcludeTargetID renders the wire id for an exclude-mode target.
func FormatExcludeTargetID(pid uint32) string {
	return "excl:pid:" + strconv.FormatUint(uint64(pid), 10)
}

// ParseTargetPID extracts the numeric pid from a "pid:<N>" target id.
// Any other shape, including a bare number with no prefix, returns false.
func ParseTargetPID(targetID string) (uint32, bool) {
	rest, ok := strings.CutPrefix(targetID, "pid:")
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseUint(rest, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(n), true
}

// ParseWindowSourceID extracts the HWND value from a "window:<HWND>:<slot>"
// source id. The slot segment is required but otherwise unused; it is
// kept for forward-compatibility with multi-monitor window picks. Any
// other shape returns false.
func ParseWindowSourceID(sourceID string) (int64, bool) {
	parts := strings.SplitN(sourceID, ":", 3)
	if len(parts) < 3 || parts[0] != "window" {
		return 0, false
	}
	hwnd, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return hwnd, true
}

// windowEntry is one raw (pid, title) pair observed during enumeration,
// before deduplication.
type windowEntry struct {
	pid   uint32
	title string
}

// DedupeByPID collapses entries to one per pid, keeping the first title
// seen for each pid (first-write-wins), matching the order entries were
// enumerated in.
func DedupeByPID(entries []windowEntry) map[uint32]string {
	out := make(map[uint32]string, len(entries))
	for _, e := range entries {
		if _, exists := out[e.pid]; !exists {
			out[e.pid] = e.title
		}
	}
	return out
}

func sortedByLabel(targets []Target) []Target {
	sort.Slice(targets, func(i, j int) bool {
		return targets[i].Label < targets[j].Label
	})
	return targets
}
