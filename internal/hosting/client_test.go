package hosting

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dpolishuk/coderag/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := NewClient(context.Background(), server.URL, "secret")
	require.NoError(t, err)
	return client
}

func TestProfile(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"id": 42, "login": "octo", "name": "Octo Cat", "public_repos": 7, "followers": 3}`)
	})
	client := newTestClient(t, mux)

	user, err := client.Profile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), user.GitHubID)
	assert.Equal(t, "octo", user.Login)
	assert.Equal(t, "Octo Cat", user.Name)
	assert.Equal(t, 7, user.PublicRepos)
	assert.Equal(t, 3, user.Followers)
}

func TestRepositories_FollowsPages(t *testing.T) {
	var server *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/user/repos", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "updated", r.URL.Query().Get("sort"))
		assert.Equal(t, "100", r.URL.Query().Get("per_page"))
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, `[{"id": 3, "name": "c", "owner": {"login": "octo"}}]`)
			return
		}
		w.Header().Set("Link", fmt.Sprintf(`<%s/user/repos?page=2>; rel="next"`, server.URL))
		fmt.Fprint(w, `[{"id": 1, "name": "a", "full_name": "octo/a", "owner": {"login": "octo"}, "language": "Java"},
			{"id": 2, "name": "b", "owner": {"login": "octo"}, "private": true}]`)
	})
	server = httptest.NewServer(mux)
	defer server.Close()
	client, err := NewClient(context.Background(), server.URL, "secret")
	require.NoError(t, err)

	repos, err := client.Repositories(context.Background())
	require.NoError(t, err)
	require.Len(t, repos, 3)
	assert.Equal(t, "octo/a", repos[0].FullName)
	assert.Equal(t, "Java", repos[0].Language)
	assert.Equal(t, "octo", repos[0].Owner)
	assert.True(t, repos[1].Private)
	assert.Equal(t, "c", repos[2].Name)
}

func TestRepository(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/octo/shop", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id": 9, "name": "shop", "default_branch": "main", "stargazers_count": 5}`)
	})
	client := newTestClient(t, mux)

	repo, err := client.Repository(context.Background(), "octo", "shop")
	require.NoError(t, err)
	assert.Equal(t, "main", repo.DefaultBranch)
	assert.Equal(t, 5, repo.Stars)
}

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, errs.ErrNotAuthorized},
		{http.StatusNotFound, errs.ErrNotFound},
		{http.StatusInternalServerError, errs.ErrFetchFailed},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, `{"message": "nope"}`)
			}))
			_, err := client.Repository(context.Background(), "octo", "shop")
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}
