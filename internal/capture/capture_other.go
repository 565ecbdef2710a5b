//go:build !windows

package capture

// Run immediately terminates with capture_error on platforms with no
// WASAPI equivalent; the session controller reports this outcome through
// the session's ended event.
func Run(stop <-chan struct{}, params Params, dispatch Dispatch) Outcome {
	return captureError(ErrWindowsOnly)
}
