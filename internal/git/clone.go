package git

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/dpolishuk/coderag/internal/errs"
	"github.com/jcgregorio/slog"
)

const DefaultBaseURL = "https://github.com"

// Fetcher makes shallow working copies of hosted repositories with the git CLI.
type Fetcher struct {
	baseURL string
	log     slog.Logger
}

func NewFetcher(baseURL string, log slog.Logger) *Fetcher {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Fetcher{baseURL: strings.TrimSuffix(baseURL, "/"), log: log}
}

// CloneURL returns the HTTPS clone URL of owner/name.
func (f *Fetcher) CloneURL(owner, name string) string {
	return fmt.Sprintf("%s/%s/%s.git", f.baseURL, owner, name)
}

// Fetch clones the default branch of owner/name into destDir with depth 1 and
// no tags, and returns the checked-out commit. A non-empty token is sent as a
// basic-auth header and never appears on the command line. Failures wrap
// errs.ErrFetchFailed.
func (f *Fetcher) Fetch(ctx context.Context, owner, name, token, destDir string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(destDir), 0755); err != nil {
		return "", fmt.Errorf("failed to create work directory: %v: %w", err, errs.ErrFetchFailed)
	}

	url := f.CloneURL(owner, name)
	cmd := exec.CommandContext(ctx, "git", "clone", "--depth", "1", "--single-branch", "--no-tags", url, destDir)
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	if token != "" {
		cred := base64.StdEncoding.EncodeToString([]byte(token + ":"))
		cmd.Env = append(cmd.Env,
			"GIT_CONFIG_COUNT=1",
			"GIT_CONFIG_KEY_0=http.extraHeader",
			"GIT_CONFIG_VALUE_0=Authorization: Basic "+cred,
		)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	f.log.Infof("cloning %s into %s", url, destDir)
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("git clone %s: %v: %w", url, ctxErr, errs.ErrFetchFailed)
		}
		msg := strings.TrimSpace(stderr.String())
		if token != "" {
			msg = strings.ReplaceAll(msg, token, "***")
		}
		return "", fmt.Errorf("git clone %s failed: %v: %s: %w", url, err, msg, errs.ErrFetchFailed)
	}
	return headCommit(ctx, destDir)
}

// headCommit returns the commit checked out in repoPath.
func headCommit(ctx context.Context, repoPath string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "-C", repoPath, "rev-parse", "HEAD")
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git rev-parse HEAD in %s: %v: %w", repoPath, err, errs.ErrFetchFailed)
	}
	return strings.TrimSpace(string(out)), nil
}
