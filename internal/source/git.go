// SPDX-License-Identifier: MPL-2.0

package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"
	"github.com/mitchellh/go-homedir"
)

type (
	// GitFetcher clones repository sources.
	GitFetcher struct {
		// auth is the authentication method to use for Git operations.
		auth   transport.AuthMethod
		logger *log.Logger
	}

	// GitOption configures a GitFetcher.
	GitOption func(*GitFetcher)
)

// WithGitAuth sets the authentication method, replacing detection.
func WithGitAuth(auth transport.AuthMethod) GitOption {
	return func(f *GitFetcher) { f.auth = auth }
}

// WithGitLogger sets the logger for clone messages.
func WithGitLogger(l *log.Logger) GitOption {
	return func(f *GitFetcher) { f.logger = l }
}

// NewGitFetcher creates a Git fetcher. Credentials are picked up from
// ~/.ssh keys (for SSH remotes) or GITHUB_TOKEN / GITLAB_TOKEN / GIT_TOKEN
// (for HTTPS remotes).
func NewGitFetcher(opts ...GitOption) *GitFetcher {
	f := &GitFetcher{logger: log.New(io.Discard)}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Clone clones gitURL into destPath and checks out ref when it names a tag
// (tried as given and with/without a "v" prefix) or branch. An empty or
// unknown ref leaves the remote's default branch checked out.
func (f *GitFetcher) Clone(ctx context.Context, gitURL, destPath, ref string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}

	f.logger.Info("cloning repository", "url", redactURL(gitURL), "dest", destPath)
	repo, err := git.PlainCloneContext(ctx, destPath, false, &git.CloneOptions{
		URL:  gitURL,
		Auth: f.authFor(gitURL),
		Tags: git.AllTags,
	})
	if err != nil {
		// Best-effort cleanup so a later run does not mistake a partial clone for sources.
		_ = os.RemoveAll(destPath)
		return fmt.Errorf("cloning %s: %w", redactURL(gitURL), err)
	}

	if ref == "" {
		return nil
	}
	hash, err := findRef(repo, ref)
	if err != nil {
		f.logger.Debug("ref not found, keeping default branch", "ref", ref)
		return nil
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}
	if err := worktree.Checkout(&git.CheckoutOptions{Hash: hash, Force: true}); err != nil {
		return fmt.Errorf("failed to checkout %s: %w", ref, err)
	}
	return nil
}

// authFor returns the credentials for gitURL's transport.
func (f *GitFetcher) authFor(gitURL string) transport.AuthMethod {
	if f.auth != nil {
		return f.auth
	}
	if strings.HasPrefix(gitURL, "http://") || strings.HasPrefix(gitURL, "https://") {
		return httpAuth()
	}
	if strings.HasPrefix(gitURL, "ssh://") || strings.Contains(gitURL, "@") {
		return sshAuth()
	}
	return nil
}

// findRef resolves a tag or branch name, trying both with and without a "v" prefix.
func findRef(repo *git.Repository, ref string) (plumbing.Hash, error) {
	names := []string{ref}
	if strings.HasPrefix(ref, "v") {
		names = append(names, strings.TrimPrefix(ref, "v"))
	} else {
		names = append(names, "v"+ref)
	}

	for _, name := range names {
		if r, err := repo.Reference(plumbing.NewTagReferenceName(name), true); err == nil {
			// Annotated tags point at a tag object; dereference to the commit.
			if tagObj, err := repo.TagObject(r.Hash()); err == nil {
				return tagObj.Target, nil
			}
			return r.Hash(), nil
		}
		if r, err := repo.Reference(plumbing.NewRemoteReferenceName("origin", name), true); err == nil {
			return r.Hash(), nil
		}
	}
	return plumbing.ZeroHash, errors.New("ref " + ref + " not found")
}

func sshAuth() transport.AuthMethod {
	home, err := homedir.Dir()
	if err != nil {
		return nil
	}
	for _, key := range []string{"id_ed25519", "id_rsa", "id_ecdsa"} {
		keyPath := filepath.Join(home, ".ssh", key)
		if _, err := os.Stat(keyPath); err != nil {
			continue
		}
		if auth, err := ssh.NewPublicKeysFromFile("git", keyPath, ""); err == nil {
			return auth
		}
	}
	return nil
}

func httpAuth() transport.AuthMethod {
	tokens := []struct{ env, user string }{
		{"GITHUB_TOKEN", "x-access-token"},
		{"GITLAB_TOKEN", "gitlab-ci-token"},
		{"GIT_TOKEN", "git"},
	}
	for _, tok := range tokens {
		if v := os.Getenv(tok.env); v != "" {
			return &http.BasicAuth{Username: tok.user, Password: v}
		}
	}
	return nil
}
