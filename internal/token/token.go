package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNotConfigured is returned when the LiveKit key pair is missing.
var ErrNotConfigured = errors.New("LiveKit API key/secret not configured")

const DefaultTTL = 6 * time.Hour

// videoGrant is the LiveKit room permission claim.
type videoGrant struct {
	Room         string `json:"room"`
	RoomJoin     bool   `json:"roomJoin"`
	CanPublish   bool   `json:"canPublish"`
	CanSubscribe bool   `json:"canSubscribe"`
}

type accessClaims struct {
	jwt.RegisteredClaims
	Video videoGrant `json:"video"`
}

// Minter issues LiveKit access tokens: HS256 JWTs signed with the API
// secret, carrying a video grant scoped to one room.
type Minter struct {
	apiKey    string
	apiSecret string
	wsURL     string
	ttl       time.Duration
	now       func() time.Time
}

func NewMinter(apiKey, apiSecret, wsURL string, ttl time.Duration) *Minter {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Minter{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		wsURL:     wsURL,
		ttl:       ttl,
		now:       time.Now,
	}
}

// ServerURL returns the media server websocket URL clients connect to.
func (m *Minter) ServerURL() string {
	return m.wsURL
}

// Mint signs an access token admitting identity into roomName.
func (m *Minter) Mint(roomName, identity string) (string, error) {
	if m.apiKey == "" || m.apiSecret == "" {
		return "", ErrNotConfigured
	}
	if roomName == "" {
		return "", fmt.Errorf("room name is required")
	}
	if identity == "" {
		return "", fmt.Errorf("participant identity is required")
	}

	now := m.now()
	claims := accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.apiKey,
			Subject:   identity,
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
		Video: videoGrant{
			Room:         roomName,
			RoomJoin:     true,
			CanPublish:   true,
			CanSubscribe: true,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(m.apiSecret))
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}
