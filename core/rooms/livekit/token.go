package livekit

import (
	"fmt"
	"time"

	"github.com/livekit/protocol/auth"
)

const DefaultTokenTTL = 2 * time.Hour

// TokenIssuer signs room join tokens.
type TokenIssuer struct {
	apiKey    string
	apiSecret string
	ttl       time.Duration
}

func NewTokenIssuer(apiKey, apiSecret string, ttl time.Duration) (*TokenIssuer, error) {
	if apiKey == "" || apiSecret == "" {
		return nil, fmt.Errorf("livekit api key and secret are required")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenIssuer{apiKey: apiKey, apiSecret: apiSecret, ttl: ttl}, nil
}

// Issue returns a token that lets identity join room.
func (t *TokenIssuer) Issue(room, identity, name string) (string, error) {
	if room == "" || identity == "" {
		return "", fmt.Errorf("room and identity are required")
	}

	at := auth.NewAccessToken(t.apiKey, t.apiSecret)
	at.AddGrant(&auth.VideoGrant{
		RoomJoin: true,
		Room:     room,
	}).
		SetIdentity(identity).
		SetName(name).
		SetValidFor(t.ttl)

	token, err := at.ToJWT()
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

func (t *TokenIssuer) TTL() time.Duration { return t.ttl }
