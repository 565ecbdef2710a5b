package config

import (
	"fmt"
	"strings"
)

var validLogLevels = map[string]bool{
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
}

// ValidationResult separates fatal problems (config can't be trusted to
// start the process at all) from warnings (a value was out of range and
// got clamped to a safe default, or is cosmetic). This sidecar has no
// field worth refusing to boot over, so Fatals is always empty today, but
// the split is kept to match the shape every other tiered validator in
// the tree uses.
type ValidationResult struct {
	Fatals   []error
	Warnings []error
}

func (r ValidationResult) HasFatals() bool {
	return len(r.Fatals) > 0
}

func (r ValidationResult) AllErrors() []error {
	all := make([]error, 0, len(r.Fatals)+len(r.Warnings))
	all = append(all, r.Fatals...)
	all = append(all, r.Warnings...)
	return all
}

// ValidateTiered clamps dangerous zero/negative values back to their
// documented defaults, collecting a warning for each clamp, and flags
// cosmetic mistakes (unknown log level/format) as warnings too.
func (c *Config) ValidateTiered() ValidationResult {
	var result ValidationResult

	if c.LogLevel != "" && !validLogLevels[strings.ToLower(c.LogLevel)] {
		result.Warnings = append(result.Warnings, fmt.Errorf("log_level %q is not valid (use debug, info, warn, error)", c.LogLevel))
	}

	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		result.Warnings = append(result.Warnings, fmt.Errorf("log_format %q is not valid (use text or json)", c.LogFormat))
	}

	if c.FrameQueueCapacity <= 0 {
		result.Warnings = append(result.Warnings, fmt.Errorf("frame_queue_capacity %d is invalid, clamping to 100", c.FrameQueueCapacity))
		c.FrameQueueCapacity = 100
	}

	if c.BinaryEgressPort < 0 || c.BinaryEgressPort > 65535 {
		result.Warnings = append(result.Warnings, fmt.Errorf("binary_egress_port %d is out of range, clamping to 0 (ephemeral)", c.BinaryEgressPort))
		c.BinaryEgressPort = 0
	}

	if c.LivenessPollMs <= 0 {
		result.Warnings = append(result.Warnings, fmt.Errorf("liveness_poll_ms %d is invalid, clamping to 300", c.LivenessPollMs))
		c.LivenessPollMs = 300
	}

	if c.ActivationTimeoutMs <= 0 {
		result.Warnings = append(result.Warnings, fmt.Errorf("activation_timeout_ms %d is invalid, clamping to 5000", c.ActivationTimeoutMs))
		c.ActivationTimeoutMs = 5000
	}

	return result
}
