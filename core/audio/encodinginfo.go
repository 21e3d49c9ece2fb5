package audio

import "time"

const (
	DefaultSampleRate = 8000
	DefaultFormat     = "mulaw"

	// DefaultFrameDuration is the packetisation interval used when audio is
	// pushed into a room track.
	DefaultFrameDuration = 20 * time.Millisecond
)

// GetDefaultEncodingInfo returns the encoding every debate pipeline agrees
// on: 8 kHz µ-law, which maps 1:1 onto the PCMU payload of a room track and is
// accepted by both the recognition and synthesis providers.
func GetDefaultEncodingInfo() EncodingInfo {
	return EncodingInfo{SampleRate: DefaultSampleRate, Format: encodingFormat(DefaultFormat)}
}

type EncodingInfo struct {
	SampleRate int
	Format     encodingFormat
}

func (e EncodingInfo) IsZero() bool {
	return e.SampleRate == 0 || e.Format.Name() == ""
}

func (e EncodingInfo) SilenceValue() byte {
	switch e.Format {
	case EncodingALaw:
		return 0x55
	case EncodingMulaw:
		return 0xFF
	case EncodingLinear16:
		return 0
	}

	return 0
}

// BytesFor returns how many bytes of mono audio cover d. It returns 0 for
// unknown formats.
func (e EncodingInfo) BytesFor(d time.Duration) int {
	size := e.Format.ByteSize()
	if size <= 0 || e.SampleRate <= 0 {
		return 0
	}
	return int(int64(e.SampleRate) * int64(size) * d.Milliseconds() / 1000)
}

// Silence returns a buffer of silence lasting d.
func (e EncodingInfo) Silence(d time.Duration) []byte {
	chunk := make([]byte, e.BytesFor(d))
	value := e.SilenceValue()
	for i := range chunk {
		chunk[i] = value
	}
	return chunk
}

type encodingFormat string

func (e encodingFormat) Name() string {
	return string(e)
}

func (e encodingFormat) ByteSize() int {
	switch e {
	case EncodingMulaw, EncodingALaw:
		return 1
	case EncodingLinear16:
		return 2
	}
	return -1
}

const (
	EncodingMulaw    encodingFormat = "mulaw"
	EncodingALaw     encodingFormat = "alaw"
	EncodingLinear16 encodingFormat = "linear16"
)
