package gitx

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
)

type Credentials struct {
	Username string
	Token    string
}

func (c Credentials) auth() transport.AuthMethod {
	if c.Token == "" {
		return nil
	}

	return &http.BasicAuth{
		Username: c.Username,
		Password: c.Token,
	}
}

// Clone checks out url into dir. An empty remote yields a fresh repository
// with origin configured.
func Clone(ctx context.Context, url, dir string, creds Credentials) error {
	_, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:  url,
		Auth: creds.auth(),
	})
	if err == nil {
		return nil
	}

	if !errors.Is(err, transport.ErrEmptyRemoteRepository) {
		return fmt.Errorf("failed to clone %s: %w", url, err)
	}

	repo, err := git.PlainInit(dir, false)
	if errors.Is(err, git.ErrRepositoryAlreadyExists) {
		repo, err = git.PlainOpen(dir)
	}
	if err != nil {
		return fmt.Errorf("failed to init %s: %w", dir, err)
	}

	if _, err := repo.CreateRemote(&gitconfig.RemoteConfig{
		Name: git.DefaultRemoteName,
		URLs: []string{url},
	}); err != nil && !errors.Is(err, git.ErrRemoteExists) {
		return fmt.Errorf("failed to add origin: %w", err)
	}

	return nil
}

// Summary describes the history of a repository as far as the empty-repo
// rule needs it.
type Summary struct {
	Commits int
	Files   []string
}

// Inspect counts commits reachable from HEAD, stopping at two, and lists the
// tree of a single-commit history.
func Inspect(dir string) (Summary, error) {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to open %s: %w", dir, err)
	}

	head, err := repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return Summary{}, nil
	}
	if err != nil {
		return Summary{}, fmt.Errorf("failed to resolve HEAD: %w", err)
	}

	iter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return Summary{}, fmt.Errorf("failed to read log: %w", err)
	}
	defer iter.Close()

	var s Summary
	var first *object.Commit
	err = iter.ForEach(func(c *object.Commit) error {
		s.Commits++
		if first == nil {
			first = c
		}
		if s.Commits >= 2 {
			return storer.ErrStop
		}
		return nil
	})
	if err != nil {
		return Summary{}, fmt.Errorf("failed to walk log: %w", err)
	}

	if s.Commits != 1 {
		return s, nil
	}

	tree, err := first.Tree()
	if err != nil {
		return Summary{}, fmt.Errorf("failed to read tree: %w", err)
	}

	err = tree.Files().ForEach(func(f *object.File) error {
		s.Files = append(s.Files, f.Name)
		return nil
	})
	if err != nil {
		return Summary{}, fmt.Errorf("failed to list tree: %w", err)
	}

	return s, nil
}

// IsEmpty applies the empty-repository rule: no commits, or a single commit
// holding nothing but a README file.
func (s Summary) IsEmpty() bool {
	switch s.Commits {
	case 0:
		return true
	case 1:
		return len(s.Files) == 1 && strings.HasPrefix(strings.ToLower(s.Files[0]), "readme.")
	default:
		return false
	}
}
