//go:build windows

package wasapi

import (
	"testing"
	"unsafe"
)

func TestAudioClientActivationParamsSize(t *testing.T) {
	var p audioClientActivationParams
	if got := unsafe.Sizeof(p); got != 12 {
		t.Errorf("unsafe.Sizeof(audioClientActivationParams{}) = %d, want 12", got)
	}
}

func TestPropVariantBlobSize(t *testing.T) {
	var v propVariantBlob
	if got := unsafe.Sizeof(v); got != 24 {
		t.Errorf("unsafe.Sizeof(propVariantBlob{}) = %d, want 24", got)
	}
}

func TestGUIDSize(t *testing.T) {
	var g GUID
	if got := unsafe.Sizeof(g); got != 16 {
		t.Errorf("unsafe.Sizeof(GUID{}) = %d, want 16", got)
	}
}
