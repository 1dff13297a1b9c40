package job

import (
	"fmt"
	"time"

	"github.com/livekit/protocol/auth"
)

// DefaultTokenTTL is the validity of minted join tokens.
const DefaultTokenTTL = time.Hour

// NewToken mints a room-join token for identity.
func NewToken(apiKey, apiSecret, room, identity string, ttl time.Duration) (string, error) {
	if apiKey == "" || apiSecret == "" {
		return "", fmt.Errorf("API key and secret are required")
	}
	if room == "" || identity == "" {
		return "", fmt.Errorf("room and identity are required")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	at := auth.NewAccessToken(apiKey, apiSecret)
	at.AddGrant(&auth.VideoGrant{RoomJoin: true, Room: room}).
		SetIdentity(identity).
		SetValidFor(ttl)
	return at.ToJWT()
}
