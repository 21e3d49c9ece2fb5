package livekit

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/Invisible042/multi-ai-user-debates/core/audio"
	resample "github.com/zaf/resample"
	opus "gopkg.in/hraban/opus.v2"
)

const (
	opusSampleRate = 48000
	// 120 ms, the longest frame an Opus packet can carry
	maxOpusFrameSamples = opusSampleRate * 120 / 1000
)

// opusIngress turns the Opus payloads browsers publish into µ-law at the
// room's sample rate. It is not safe for concurrent use; each forwarded
// track owns one.
type opusIngress struct {
	decoder   *opus.Decoder
	resampler *resample.Resampler
	resampled *bytes.Buffer

	pcm   []int16
	input []byte
}

func newOpusIngress(encoding audio.EncodingInfo) (*opusIngress, error) {
	if encoding.Format != audio.EncodingMulaw {
		return nil, fmt.Errorf("unsupported room encoding %q", encoding.Format)
	}

	decoder, err := opus.NewDecoder(opusSampleRate, 1)
	if err != nil {
		return nil, fmt.Errorf("create opus decoder: %w", err)
	}

	// the resampler writes into the buffer Transcode reads from
	resampled := &bytes.Buffer{}
	resampler, err := resample.New(resampled, opusSampleRate, float64(encoding.SampleRate), 1, resample.I16, resample.HighQ)
	if err != nil {
		return nil, fmt.Errorf("create resampler: %w", err)
	}

	return &opusIngress{
		decoder:   decoder,
		resampler: resampler,
		resampled: resampled,
		pcm:       make([]int16, maxOpusFrameSamples),
		input:     make([]byte, 0, maxOpusFrameSamples*2),
	}, nil
}

// Transcode decodes one Opus payload. The result may be empty while the
// resampler is still filling up.
func (i *opusIngress) Transcode(payload []byte) ([]byte, error) {
	samples, err := i.decoder.Decode(payload, i.pcm)
	if err != nil {
		return nil, fmt.Errorf("decode opus: %w", err)
	}
	if samples == 0 {
		return nil, nil
	}

	i.input = i.input[:samples*2]
	for n, sample := range i.pcm[:samples] {
		binary.LittleEndian.PutUint16(i.input[n*2:], uint16(sample))
	}

	i.resampled.Reset()
	if _, err := i.resampler.Write(i.input); err != nil {
		return nil, fmt.Errorf("resample: %w", err)
	}

	linear := i.resampled.Bytes()
	encoded := make([]byte, len(linear)/2)
	for n := range encoded {
		encoded[n] = audio.LinearToMulaw(int16(binary.LittleEndian.Uint16(linear[n*2:])))
	}
	return encoded, nil
}

func (i *opusIngress) Close() error {
	return i.resampler.Close()
}
