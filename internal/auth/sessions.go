package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/dpolishuk/coderag/internal/errs"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// Sessions maps opaque bearer tokens to user ids.
type Sessions struct {
	tokens       *cache.Cache
	frontendURLs []string
}

func NewSessions(ttl time.Duration, frontendURLs []string) *Sessions {
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	return &Sessions{
		tokens:       cache.New(ttl, 10*time.Minute),
		frontendURLs: frontendURLs,
	}
}

// Create starts a session for userID and returns its token.
func (s *Sessions) Create(userID string) string {
	token := uuid.New().String()
	s.tokens.SetDefault(token, userID)
	return token
}

// Resolve returns the user behind token.
func (s *Sessions) Resolve(token string) (string, error) {
	if v, ok := s.tokens.Get(token); ok {
		return v.(string), nil
	}
	return "", fmt.Errorf("unknown session: %w", errs.ErrNotAuthorized)
}

func (s *Sessions) Revoke(token string) {
	s.tokens.Delete(token)
}

// FrontendURL is where the browser is sent after sign-in: the first https
// origin if any, else the first configured one.
func (s *Sessions) FrontendURL() string {
	for _, u := range s.frontendURLs {
		if strings.HasPrefix(u, "https://") {
			return u
		}
	}
	if len(s.frontendURLs) > 0 {
		return s.frontendURLs[0]
	}
	return ""
}

// Origins are the frontend origins allowed to call the API.
func (s *Sessions) Origins() []string {
	return append([]string(nil), s.frontendURLs...)
}
