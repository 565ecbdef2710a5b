package capture

import "testing"

func TestFrameSizeMatchesCanonicalShape(t *testing.T) {
	if FrameSize != 960 {
		t.Errorf("FrameSize = %d, want 960", FrameSize)
	}
	if TargetSampleRate != 48000 {
		t.Errorf("TargetSampleRate = %d, want 48000", TargetSampleRate)
	}
	if TargetChannels != 1 {
		t.Errorf("TargetChannels = %d, want 1", TargetChannels)
	}
}

func TestOutcomeConstructorsSetReason(t *testing.T) {
	cases := []struct {
		outcome Outcome
		want    string
	}{
		{stopped(), ReasonStopped},
		{appExited(), ReasonAppExited},
		{deviceLost(), ReasonDeviceLost},
	}
	for _, c := range cases {
		if c.outcome.Reason != c.want {
			t.Errorf("Reason = %q, want %q", c.outcome.Reason, c.want)
		}
		if c.outcome.Err != nil {
			t.Errorf("Err = %v, want nil", c.outcome.Err)
		}
	}
}

func TestCaptureErrorCarriesUnderlyingError(t *testing.T) {
	out := captureError(ErrWindowsOnly)
	if out.Reason != ReasonCaptureError {
		t.Errorf("Reason = %q, want %q", out.Reason, ReasonCaptureError)
	}
	if out.Err != ErrWindowsOnly {
		t.Errorf("Err = %v, want %v", out.Err, ErrWindowsOnly)
	}
}
