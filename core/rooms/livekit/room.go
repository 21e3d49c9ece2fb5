package livekit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/Invisible042/multi-ai-user-debates/core/audio"
	"github.com/Invisible042/multi-ai-user-debates/core/rooms"
	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	HostIdentity = "debate-host"
	EventsTopic  = "debate-events"

	trackName = "voice"
)

var (
	ErrNotConnected      = errors.New("room is not connected")
	ErrDuplicateIdentity = errors.New("identity already joined")
	ErrRoomClosed        = errors.New("room closed")
)

var _ rooms.Room = (*Room)(nil)
var _ rooms.DataPublisher = (*Room)(nil)

// Room connects debate participants to a LiveKit room. Each participant is
// its own LiveKit connection so that every persona speaks on its own track.
type Room struct {
	name     string
	url      string
	issuer   *TokenIssuer
	encoding audio.EncodingInfo

	mu           sync.Mutex
	host         *lksdk.Room
	participants map[string]*participant
	closed       bool
}

func NewRoom(url, name string, issuer *TokenIssuer) *Room {
	return &Room{
		name:         name,
		url:          url,
		issuer:       issuer,
		encoding:     audio.GetDefaultEncodingInfo(),
		participants: make(map[string]*participant),
	}
}

func (r *Room) Name() string { return r.name }

// Connect joins the host participant which owns the room's data channel.
func (r *Room) Connect(ctx context.Context) error {
	_, span := tracer.Start(ctx, "connect room", trace.WithAttributes(attribute.String("room.name", r.name)))
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRoomClosed
	}
	if r.host != nil {
		return nil
	}

	token, err := r.issuer.Issue(r.name, HostIdentity, "Debate Host")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	host, err := lksdk.ConnectToRoomWithToken(r.url, token, &lksdk.RoomCallback{
		OnDisconnected: func() {
			logger.Info("host disconnected from room", "room", r.name)
		},
	})
	if err != nil {
		err = fmt.Errorf("connect to room %s: %w", r.name, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	r.host = host
	logger.InfoContext(ctx, "connected to room", "room", r.name, "identity", HostIdentity)
	return nil
}

func (r *Room) PublishData(_ context.Context, topic string, data []byte) error {
	r.mu.Lock()
	host := r.host
	r.mu.Unlock()

	if host == nil {
		return ErrNotConnected
	}

	return host.LocalParticipant.PublishDataPacket(
		lksdk.UserData(data),
		lksdk.WithDataPublishTopic(topic),
		lksdk.WithDataPublishReliable(true),
	)
}

func (r *Room) Join(ctx context.Context, identity, displayName string) (rooms.Participant, error) {
	ctx, span := tracer.Start(ctx, "join room", trace.WithAttributes(
		attribute.String("room.name", r.name),
		attribute.String("participant.identity", identity),
	))
	defer span.End()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrRoomClosed
	}
	if _, ok := r.participants[identity]; ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrDuplicateIdentity, identity)
	}
	// reserve the identity while connecting
	r.participants[identity] = nil
	r.mu.Unlock()

	p, err := r.join(ctx, identity, displayName)

	r.mu.Lock()
	if err != nil {
		delete(r.participants, identity)
	} else {
		r.participants[identity] = p
	}
	r.mu.Unlock()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return p, nil
}

func (r *Room) join(ctx context.Context, identity, displayName string) (*participant, error) {
	token, err := r.issuer.Issue(r.name, identity, displayName)
	if err != nil {
		return nil, err
	}

	p := &participant{
		identity: identity,
		room:     r,
		forwards: make(map[string]context.CancelFunc),
	}

	lkRoom, err := lksdk.ConnectToRoomWithToken(r.url, token, &lksdk.RoomCallback{
		ParticipantCallback: lksdk.ParticipantCallback{
			OnTrackSubscribed:   p.onTrackSubscribed,
			OnTrackUnsubscribed: p.onTrackUnsubscribed,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("connect %s to room %s: %w", identity, r.name, err)
	}

	track, err := lksdk.NewLocalTrack(webrtc.RTPCodecCapability{
		MimeType:  webrtc.MimeTypePCMU,
		ClockRate: uint32(r.encoding.SampleRate),
		Channels:  1,
	})
	if err != nil {
		lkRoom.Disconnect()
		return nil, fmt.Errorf("create audio track: %w", err)
	}

	if _, err := lkRoom.LocalParticipant.PublishTrack(track, &lksdk.TrackPublicationOptions{
		Name:   trackName,
		Source: livekit.TrackSource_MICROPHONE,
	}); err != nil {
		lkRoom.Disconnect()
		return nil, fmt.Errorf("publish audio track: %w", err)
	}

	p.lkRoom = lkRoom
	p.pacer = newPacer(
		r.encoding.BytesFor(audio.DefaultFrameDuration),
		audio.DefaultFrameDuration,
		r.encoding.SilenceValue(),
		func(frame []byte, duration time.Duration) error {
			return track.WriteSample(media.Sample{Data: frame, Duration: duration}, nil)
		},
	)

	pacerCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p.cancel = cancel
	go p.pacer.run(pacerCtx)

	logger.InfoContext(ctx, "participant joined room", "room", r.name, "identity", identity)
	return p, nil
}

func (r *Room) forget(identity string) {
	r.mu.Lock()
	delete(r.participants, identity)
	r.mu.Unlock()
}

// Close disconnects remaining participants and the host. Closing twice is a
// no-op.
func (r *Room) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	remaining := make([]*participant, 0, len(r.participants))
	for _, p := range r.participants {
		if p != nil {
			remaining = append(remaining, p)
		}
	}
	host := r.host
	r.host = nil
	r.mu.Unlock()

	var errs []error
	for _, p := range remaining {
		if err := p.Leave(); err != nil {
			errs = append(errs, err)
		}
	}
	if host != nil {
		host.Disconnect()
	}

	logger.Info("room closed", "room", r.name)
	return errors.Join(errs...)
}

type participant struct {
	identity string
	room     *Room
	lkRoom   *lksdk.Room
	pacer    *pacer
	cancel   context.CancelFunc

	mu        sync.Mutex
	handler   func(identity string, payload []byte)
	forwards  map[string]context.CancelFunc
	leaveOnce sync.Once
}

func (p *participant) Identity() string { return p.identity }

func (p *participant) AudioOutput() io.Writer { return p.pacer }

func (p *participant) ClearAudio() { p.pacer.Clear() }

func (p *participant) OnRemoteAudio(handler func(identity string, payload []byte)) {
	p.mu.Lock()
	p.handler = handler
	p.mu.Unlock()
}

func (p *participant) Leave() error {
	p.leaveOnce.Do(func() {
		p.cancel()

		p.mu.Lock()
		for _, cancel := range p.forwards {
			cancel()
		}
		p.forwards = map[string]context.CancelFunc{}
		p.mu.Unlock()

		p.lkRoom.Disconnect()
		p.room.forget(p.identity)
	})
	return nil
}

func (p *participant) onTrackSubscribed(track *webrtc.TrackRemote, _ *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
	if track.Kind() != webrtc.RTPCodecTypeAudio {
		return
	}

	// PCMU already matches the room encoding, Opus is transcoded
	var ingress *opusIngress
	switch codec := track.Codec().MimeType; {
	case strings.EqualFold(codec, webrtc.MimeTypePCMU):
	case strings.EqualFold(codec, webrtc.MimeTypeOpus):
		var err error
		if ingress, err = newOpusIngress(p.room.encoding); err != nil {
			logger.Warn("failed to prepare opus ingress",
				"identity", p.identity, "remote", rp.Identity(), "error", err)
			return
		}
	default:
		logger.Debug("skipping remote track with unsupported codec",
			"identity", p.identity, "remote", rp.Identity(), "codec", codec)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.mu.Lock()
	if previous, ok := p.forwards[track.ID()]; ok {
		previous()
	}
	p.forwards[track.ID()] = cancel
	p.mu.Unlock()

	go p.forward(ctx, rp.Identity(), track, ingress)
}

func (p *participant) onTrackUnsubscribed(track *webrtc.TrackRemote, _ *lksdk.RemoteTrackPublication, _ *lksdk.RemoteParticipant) {
	p.mu.Lock()
	if cancel, ok := p.forwards[track.ID()]; ok {
		cancel()
		delete(p.forwards, track.ID())
	}
	p.mu.Unlock()
}

func (p *participant) forward(ctx context.Context, remote string, track *webrtc.TrackRemote, ingress *opusIngress) {
	if ingress != nil {
		defer func() {
			if err := ingress.Close(); err != nil {
				logger.Debug("failed to close opus ingress", "identity", p.identity, "remote", remote, "error", err)
			}
		}()
	}

	buf := make([]byte, 1500)
	packet := &rtp.Packet{}

	for {
		n, _, err := track.Read(buf)
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, io.EOF) {
				logger.Warn("failed to read remote audio", "identity", p.identity, "remote", remote, "error", err)
			}
			return
		}
		if ctx.Err() != nil {
			return
		}

		if err := packet.Unmarshal(buf[:n]); err != nil {
			continue
		}
		if len(packet.Payload) == 0 {
			continue
		}

		var payload []byte
		if ingress != nil {
			if payload, err = ingress.Transcode(packet.Payload); err != nil {
				logger.Debug("dropping remote audio packet", "identity", p.identity, "remote", remote, "error", err)
				continue
			}
			if len(payload) == 0 {
				continue
			}
		} else {
			payload = make([]byte, len(packet.Payload))
			copy(payload, packet.Payload)
		}

		p.mu.Lock()
		handler := p.handler
		p.mu.Unlock()
		if handler != nil {
			handler(remote, payload)
		}
	}
}
