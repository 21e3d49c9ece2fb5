// Package rooms describes the shared real-time room debate participants join.
package rooms

import (
	"context"
	"io"
)

// Room is the media space shared by every session of one debate.
type Room interface {
	Name() string
	// Connect establishes the room's media transport. Sessions may join
	// before it is connected but nothing is spoken until it is.
	Connect(ctx context.Context) error
	// Join adds a participant with the given identity. Identities must be
	// unique within the room.
	Join(ctx context.Context, identity, displayName string) (Participant, error)
	// Close disconnects every participant that is still present.
	Close() error
}

// Participant is a single agent presence in a room.
type Participant interface {
	Identity() string
	// AudioOutput accepts encoded audio that is played into the room in
	// real time, in the order it was written.
	AudioOutput() io.Writer
	// ClearAudio drops audio that was written but not yet played.
	ClearAudio()
	// OnRemoteAudio registers the handler for audio of other participants.
	// Registering again replaces the previous handler.
	OnRemoteAudio(handler func(identity string, payload []byte))
	Leave() error
}

// DataPublisher is implemented by rooms that can broadcast data messages to
// everyone present.
type DataPublisher interface {
	PublishData(ctx context.Context, topic string, data []byte) error
}
