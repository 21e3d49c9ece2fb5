package livekit

import (
	"context"
	"sync"
	"time"
)

// pacer turns bursts of synthesized audio into fixed size frames written at
// real-time rate. The last partial frame of a burst is padded with silence.
type pacer struct {
	frameSize     int
	frameDuration time.Duration
	silence       byte
	write         func(frame []byte, duration time.Duration) error

	mu  sync.Mutex
	buf []byte
}

func newPacer(frameSize int, frameDuration time.Duration, silence byte, write func([]byte, time.Duration) error) *pacer {
	return &pacer{
		frameSize:     frameSize,
		frameDuration: frameDuration,
		silence:       silence,
		write:         write,
	}
}

func (p *pacer) Write(b []byte) (int, error) {
	p.mu.Lock()
	p.buf = append(p.buf, b...)
	p.mu.Unlock()
	return len(b), nil
}

func (p *pacer) Clear() {
	p.mu.Lock()
	p.buf = nil
	p.mu.Unlock()
}

func (p *pacer) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.buf)
}

func (p *pacer) nextFrame() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.buf) == 0 {
		return nil
	}

	frame := make([]byte, p.frameSize)
	n := copy(frame, p.buf)
	for i := n; i < len(frame); i++ {
		frame[i] = p.silence
	}
	p.buf = p.buf[n:]
	if len(p.buf) == 0 {
		p.buf = nil
	}
	return frame
}

func (p *pacer) run(ctx context.Context) {
	ticker := time.NewTicker(p.frameDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			frame := p.nextFrame()
			if frame == nil {
				continue
			}
			if err := p.write(frame, p.frameDuration); err != nil {
				logger.DebugContext(ctx, "failed to write audio frame", "error", err)
			}
		}
	}
}
