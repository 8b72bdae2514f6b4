package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/dpolishuk/coderag/internal/errs"
	"github.com/dpolishuk/coderag/internal/hosting"
	"github.com/dpolishuk/coderag/internal/models"
	"github.com/jcgregorio/slog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

var scopes = []string{"read:user", "user:email", "repo"}

// UserStore persists signed-in users.
type UserStore interface {
	SaveUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
}

type OAuthOptions struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// Endpoint defaults to github.com.
	Endpoint oauth2.Endpoint
	// APIURL defaults to api.github.com.
	APIURL string
}

// OAuth runs the GitHub authorization code flow.
type OAuth struct {
	config oauth2.Config
	apiURL string
	users  UserStore
	cipher *Cipher
	log    slog.Logger
}

func NewOAuth(opts OAuthOptions, users UserStore, cipher *Cipher, log slog.Logger) *OAuth {
	endpoint := opts.Endpoint
	if endpoint.TokenURL == "" {
		endpoint = github.Endpoint
	}
	return &OAuth{
		config: oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			RedirectURL:  opts.RedirectURL,
			Scopes:       scopes,
			Endpoint:     endpoint,
		},
		apiURL: opts.APIURL,
		users:  users,
		cipher: cipher,
		log:    log,
	}
}

// AuthURL is the page the user is sent to for consent.
func (o *OAuth) AuthURL(state string) string {
	return o.config.AuthCodeURL(state)
}

// Exchange trades an authorization code for a token, loads the profile and
// stores the user with the token sealed.
func (o *OAuth) Exchange(ctx context.Context, code string) (*models.User, error) {
	if code == "" {
		return nil, fmt.Errorf("missing authorization code: %w", errs.ErrInvalidInput)
	}
	token, err := o.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %v: %w", err, errs.ErrNotAuthorized)
	}

	client, err := hosting.NewClient(ctx, o.apiURL, token.AccessToken)
	if err != nil {
		return nil, err
	}
	user, err := client.Profile(ctx)
	if err != nil {
		return nil, err
	}

	user.EncryptedToken, err = o.cipher.Seal(token.AccessToken)
	if err != nil {
		return nil, err
	}
	user.LastLoginAt = time.Now().UTC()
	if err := o.users.SaveUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to save user: %w", err)
	}
	o.log.Infof("user %s signed in as %s", user.ID, user.Login)
	return user, nil
}
