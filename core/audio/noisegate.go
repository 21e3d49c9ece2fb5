package audio

import "math"

// DefaultNoiseGateThreshold is the RMS level, in 16 bit linear units, below
// which a frame is treated as background noise.
const DefaultNoiseGateThreshold = 500

// NoiseGate replaces low-energy frames with silence before they reach speech
// recognition. Only µ-law audio is gated; other formats pass through.
type NoiseGate struct {
	Threshold float64
	Encoding  EncodingInfo
}

func NewNoiseGate(encoding EncodingInfo) NoiseGate {
	return NoiseGate{Threshold: DefaultNoiseGateThreshold, Encoding: encoding}
}

func (g NoiseGate) Apply(frame []byte) []byte {
	if g.Encoding.Format != EncodingMulaw || len(frame) == 0 {
		return frame
	}

	if MulawRMS(frame) >= g.Threshold {
		return frame
	}

	silence := make([]byte, len(frame))
	value := g.Encoding.SilenceValue()
	for i := range silence {
		silence[i] = value
	}
	return silence
}

// MulawToLinear decodes a G.711 µ-law sample.
func MulawToLinear(u byte) int16 {
	u = ^u
	sign := u & 0x80
	exponent := (u >> 4) & 0x07
	mantissa := u & 0x0F

	sample := ((int32(mantissa) << 3) + mulawBias) << exponent
	sample -= mulawBias
	if sign != 0 {
		return int16(-sample)
	}
	return int16(sample)
}

const (
	mulawBias = 0x84
	mulawClip = 32635
)

// LinearToMulaw encodes a 16 bit linear sample as G.711 µ-law.
func LinearToMulaw(sample int16) byte {
	s := int32(sample)
	var sign byte
	if s < 0 {
		s = -s
		sign = 0x80
	}
	if s > mulawClip {
		s = mulawClip
	}
	s += mulawBias

	exponent := byte(7)
	for mask := int32(0x4000); s&mask == 0 && exponent > 0; mask >>= 1 {
		exponent--
	}
	mantissa := byte(s>>(exponent+3)) & 0x0F
	return ^(sign | exponent<<4 | mantissa)
}

func MulawRMS(frame []byte) float64 {
	if len(frame) == 0 {
		return 0
	}

	var sum float64
	for _, b := range frame {
		sample := float64(MulawToLinear(b))
		sum += sample * sample
	}
	return math.Sqrt(sum / float64(len(frame)))
}
