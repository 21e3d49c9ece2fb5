package livekit

import (
	"math"
	"testing"

	"github.com/Invisible042/multi-ai-user-debates/core/audio"
	opus "gopkg.in/hraban/opus.v2"
)

// opusFrames encodes 20 ms frames of a 440 Hz tone at 48 kHz.
func opusFrames(t *testing.T, count int) [][]byte {
	t.Helper()
	encoder, err := opus.NewEncoder(opusSampleRate, 1, opus.AppVoIP)
	if err != nil {
		t.Fatalf("failed to create encoder: %v", err)
	}

	const frameSamples = opusSampleRate / 50
	frames := make([][]byte, 0, count)
	for f := range count {
		pcm := make([]int16, frameSamples)
		for n := range pcm {
			phase := 2 * math.Pi * 440 * float64(f*frameSamples+n) / opusSampleRate
			pcm[n] = int16(10000 * math.Sin(phase))
		}
		data := make([]byte, 1000)
		size, err := encoder.Encode(pcm, data)
		if err != nil {
			t.Fatalf("failed to encode frame: %v", err)
		}
		frames = append(frames, data[:size])
	}
	return frames
}

func TestOpusIngressTranscodesToRoomEncoding(t *testing.T) {
	encoding := audio.GetDefaultEncodingInfo()
	ingress, err := newOpusIngress(encoding)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer ingress.Close()

	const frames = 25
	perFrame := encoding.BytesFor(audio.DefaultFrameDuration)
	var out []byte
	for _, frame := range opusFrames(t, frames) {
		encoded, err := ingress.Transcode(frame)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(encoded) > 2*perFrame {
			t.Fatalf("expected at most %d bytes for one frame, got %d", 2*perFrame, len(encoded))
		}
		out = append(out, encoded...)
	}

	if len(out) == 0 || len(out) > frames*perFrame {
		t.Fatalf("expected up to %d bytes of µ-law, got %d", frames*perFrame, len(out))
	}
	if rms := audio.MulawRMS(out); rms < audio.DefaultNoiseGateThreshold {
		t.Fatalf("expected the tone to survive transcoding, got rms %.0f", rms)
	}
}

func TestOpusIngressRequiresMulawRoom(t *testing.T) {
	if _, err := newOpusIngress(audio.EncodingInfo{SampleRate: 16000, Format: audio.EncodingLinear16}); err == nil {
		t.Fatalf("expected linear rooms to be refused")
	}
}
