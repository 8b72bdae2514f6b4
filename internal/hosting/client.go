// Package hosting talks to the GitHub REST API on behalf of a signed-in user.
package hosting

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/dpolishuk/coderag/internal/errs"
	"github.com/dpolishuk/coderag/internal/models"
	"github.com/google/go-github/v29/github"
	"golang.org/x/oauth2"
)

const pageSize = 100

// Client is a GitHub API client bound to one user's access token.
type Client struct {
	client *github.Client
}

// NewClient returns a client authenticated with token. An empty baseURL
// targets api.github.com.
func NewClient(ctx context.Context, baseURL, token string) (*Client, error) {
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	client := github.NewClient(httpClient)
	if baseURL != "" {
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid API url %q: %w", baseURL, errs.ErrInvalidInput)
		}
		client.BaseURL = u
	}
	return &Client{client: client}, nil
}

// Profile returns the authenticated user.
func (c *Client) Profile(ctx context.Context) (*models.User, error) {
	user, resp, err := c.client.Users.Get(ctx, "")
	if err != nil {
		return nil, classify("users.get", resp, err)
	}
	return &models.User{
		GitHubID:    user.GetID(),
		Login:       user.GetLogin(),
		Email:       user.GetEmail(),
		Name:        user.GetName(),
		AvatarURL:   user.GetAvatarURL(),
		Bio:         user.GetBio(),
		PublicRepos: user.GetPublicRepos(),
		Followers:   user.GetFollowers(),
		Following:   user.GetFollowing(),
	}, nil
}

// Repositories lists every repository visible to the user, most recently
// updated first.
func (c *Client) Repositories(ctx context.Context) ([]*models.HostedRepository, error) {
	opts := &github.RepositoryListOptions{
		Sort:        "updated",
		ListOptions: github.ListOptions{PerPage: pageSize},
	}
	out := []*models.HostedRepository{}
	for {
		repos, resp, err := c.client.Repositories.List(ctx, "", opts)
		if err != nil {
			return nil, classify("repositories.list", resp, err)
		}
		for _, r := range repos {
			out = append(out, toRepository(r))
		}
		if resp.NextPage == 0 {
			return out, nil
		}
		opts.Page = resp.NextPage
	}
}

// Repository returns a single repository.
func (c *Client) Repository(ctx context.Context, owner, name string) (*models.HostedRepository, error) {
	repo, resp, err := c.client.Repositories.Get(ctx, owner, name)
	if err != nil {
		return nil, classify("repositories.get", resp, err)
	}
	return toRepository(repo), nil
}

func toRepository(r *github.Repository) *models.HostedRepository {
	return &models.HostedRepository{
		ID:            r.GetID(),
		Name:          r.GetName(),
		FullName:      r.GetFullName(),
		Owner:         r.GetOwner().GetLogin(),
		Description:   r.GetDescription(),
		Language:      r.GetLanguage(),
		HTMLURL:       r.GetHTMLURL(),
		CloneURL:      r.GetCloneURL(),
		Stars:         r.GetStargazersCount(),
		Forks:         r.GetForksCount(),
		DefaultBranch: r.GetDefaultBranch(),
		Private:       r.GetPrivate(),
	}
}

func classify(op string, resp *github.Response, err error) error {
	status := 0
	if resp != nil && resp.Response != nil {
		status = resp.StatusCode
	}
	switch status {
	case http.StatusUnauthorized:
		return fmt.Errorf("failed doing %s: %w", op, errs.ErrNotAuthorized)
	case http.StatusNotFound:
		return fmt.Errorf("failed doing %s: %w", op, errs.ErrNotFound)
	}
	return fmt.Errorf("failed doing %s: %v: %w", op, err, errs.ErrFetchFailed)
}
