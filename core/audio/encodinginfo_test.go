package audio

import (
	"testing"
	"time"
)

func TestDefaultEncodingInfoIsTelephonyMulaw(t *testing.T) {
	info := GetDefaultEncodingInfo()

	if info.SampleRate != 8000 || info.Format != EncodingMulaw {
		t.Fatalf("expected 8 kHz mulaw, got %d %s", info.SampleRate, info.Format.Name())
	}
	if info.IsZero() {
		t.Fatalf("expected default encoding to be non-zero")
	}
}

func TestBytesFor(t *testing.T) {
	mulaw := GetDefaultEncodingInfo()
	if got := mulaw.BytesFor(DefaultFrameDuration); got != 160 {
		t.Fatalf("expected 160 bytes per 20ms mulaw frame, got %d", got)
	}

	linear := EncodingInfo{SampleRate: 16000, Format: EncodingLinear16}
	if got := linear.BytesFor(50 * time.Millisecond); got != 1600 {
		t.Fatalf("expected 1600 bytes per 50ms linear16 chunk, got %d", got)
	}

	unknown := EncodingInfo{SampleRate: 16000, Format: encodingFormat("opus")}
	if got := unknown.BytesFor(time.Second); got != 0 {
		t.Fatalf("expected unknown format to report 0 bytes, got %d", got)
	}
}

func TestSilence(t *testing.T) {
	chunk := GetDefaultEncodingInfo().Silence(10 * time.Millisecond)
	if len(chunk) != 80 {
		t.Fatalf("expected 80 bytes of silence, got %d", len(chunk))
	}
	for i, b := range chunk {
		if b != 0xFF {
			t.Fatalf("expected mulaw silence at %d, got %#x", i, b)
		}
	}
}
