package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dpolishuk/coderag/internal/db"
	"github.com/dpolishuk/coderag/internal/errs"
	"github.com/dpolishuk/coderag/internal/logging"
	"github.com/dpolishuk/coderag/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func newTestCipher(t *testing.T) *Cipher {
	t.Helper()
	c, err := NewCipher(testKey)
	require.NoError(t, err)
	return c
}

func TestCipher_RoundTrip(t *testing.T) {
	c := newTestCipher(t)

	a, err := c.Seal("gho_token")
	require.NoError(t, err)
	b, err := c.Seal("gho_token")
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "nonces must differ")
	assert.NotContains(t, a, "gho_token")

	plain, err := c.Open(a)
	require.NoError(t, err)
	assert.Equal(t, "gho_token", plain)
}

func TestCipher_RejectsTampering(t *testing.T) {
	c := newTestCipher(t)
	sealed, err := c.Seal("gho_token")
	require.NoError(t, err)

	raw := []byte(sealed)
	raw[len(raw)/2] ^= 'A' ^ 'B'
	_, err = c.Open(string(raw))
	assert.Error(t, err)

	_, err = c.Open("c2hvcnQ=")
	assert.Error(t, err)

	other, err := NewCipher([]byte("fedcba9876543210fedcba9876543210"))
	require.NoError(t, err)
	_, err = other.Open(sealed)
	assert.Error(t, err)
}

func TestNewCipher_KeySize(t *testing.T) {
	_, err := NewCipher([]byte("short"))
	assert.Error(t, err)
}

func TestSessions(t *testing.T) {
	s := NewSessions(0, []string{"http://localhost:5173"})

	token := s.Create("user-1")
	id, err := s.Resolve(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", id)

	s.Revoke(token)
	_, err = s.Resolve(token)
	assert.True(t, errors.Is(err, errs.ErrNotAuthorized))

	_, err = s.Resolve("never-issued")
	assert.True(t, errors.Is(err, errs.ErrNotAuthorized))
}

func TestSessions_Expire(t *testing.T) {
	s := NewSessions(20*time.Millisecond, []string{"http://localhost:5173"})
	token := s.Create("user-1")

	time.Sleep(40 * time.Millisecond)
	_, err := s.Resolve(token)
	assert.True(t, errors.Is(err, errs.ErrNotAuthorized))
}

func TestFrontendURL(t *testing.T) {
	tests := []struct {
		name string
		urls []string
		want string
	}{
		{"prefers https", []string{"http://localhost:5173", "https://app.example.com"}, "https://app.example.com"},
		{"falls back to first", []string{"http://localhost:5173", "http://127.0.0.1:5173"}, "http://localhost:5173"},
		{"empty", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewSessions(0, tt.urls).FrontendURL())
		})
	}
}

func TestOrigins(t *testing.T) {
	urls := []string{"https://app.example.com"}
	s := NewSessions(0, urls)
	origins := s.Origins()
	assert.Equal(t, urls, origins)
	origins[0] = "https://evil.example.com"
	assert.Equal(t, "https://app.example.com", s.Origins()[0])
}

func newGitHubServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.Form.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error": "bad_verification_code"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token": "gho_secret", "token_type": "bearer", "scope": "repo"}`)
	})
	mux.HandleFunc("/api/user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer gho_secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"id": 42, "login": "octo", "avatar_url": "https://avatars.example.com/42"}`)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestOAuth(t *testing.T, store UserStore) *OAuth {
	server := newGitHubServer(t)
	return NewOAuth(OAuthOptions{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURL:  "http://localhost:3001/api/auth/github/callback",
		Endpoint: oauth2.Endpoint{
			AuthURL:   server.URL + "/login/oauth/authorize",
			TokenURL:  server.URL + "/login/oauth/access_token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
		APIURL: server.URL + "/api",
	}, store, newTestCipher(t), logging.Nop())
}

func TestOAuth_ExchangeStoresSealedToken(t *testing.T) {
	store := db.NewMemoryStore()
	o := newTestOAuth(t, store)

	user, err := o.Exchange(context.Background(), "good-code")
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, int64(42), user.GitHubID)
	assert.Equal(t, "octo", user.Login)
	assert.NotEqual(t, "gho_secret", user.EncryptedToken)
	assert.False(t, user.LastLoginAt.IsZero())

	vault := NewVault(store, newTestCipher(t))
	token, err := vault.Token(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, "gho_secret", token)

	again, err := o.Exchange(context.Background(), "good-code")
	require.NoError(t, err)
	assert.Equal(t, user.ID, again.ID)
}

func TestOAuth_ExchangeFailures(t *testing.T) {
	o := newTestOAuth(t, db.NewMemoryStore())

	_, err := o.Exchange(context.Background(), "")
	assert.True(t, errors.Is(err, errs.ErrInvalidInput))

	_, err = o.Exchange(context.Background(), "bad-code")
	assert.True(t, errors.Is(err, errs.ErrNotAuthorized))
}

func TestOAuth_AuthURL(t *testing.T) {
	o := newTestOAuth(t, db.NewMemoryStore())
	u := o.AuthURL("state-1")
	assert.True(t, strings.Contains(u, "client_id=client"))
	assert.True(t, strings.Contains(u, "state=state-1"))
	assert.True(t, strings.Contains(u, "scope=read%3Auser+user%3Aemail+repo"))
}

func TestVault_Errors(t *testing.T) {
	store := db.NewMemoryStore()
	vault := NewVault(store, newTestCipher(t))

	_, err := vault.Token(context.Background(), "missing")
	assert.True(t, errors.Is(err, errs.ErrNotFound))

	u := &models.User{GitHubID: 1, Login: "tokenless"}
	require.NoError(t, store.SaveUser(context.Background(), u))
	_, err = vault.Token(context.Background(), u.ID)
	assert.True(t, errors.Is(err, errs.ErrNotAuthorized))

	u.EncryptedToken = "bm90LXNlYWxlZC1ieS11cy1hdC1hbGwtYXQtYWxs"
	require.NoError(t, store.SaveUser(context.Background(), u))
	_, err = vault.Token(context.Background(), u.ID)
	assert.True(t, errors.Is(err, errs.ErrNotAuthorized))
}
