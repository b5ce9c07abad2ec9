package main

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/octaspire/dern-sub003/pkg/driver"
)

// gitFetcher checks out git dependencies into the cache under
// <home>/git/<name>/<commit>.
type gitFetcher struct {
	cacheDir string
}

func newGitFetcher(cacheDir string) *gitFetcher {
	if cacheDir == "" {
		return nil
	}
	return &gitFetcher{cacheDir: cacheDir}
}

// Fetch resolves spec to a commit, checks it out when not cached and
// returns the locked entry together with the checkout directory.
func (g *gitFetcher) Fetch(name string, spec *driver.DependencySpec) (*driver.LockedPackage, string, error) {
	if g == nil {
		return nil, "", errors.New("git fetcher unavailable")
	}
	url := strings.TrimSpace(spec.Git)
	if url == "" {
		return nil, "", fmt.Errorf("dependency %q: git URL required", name)
	}
	commit, dir, err := g.ensureCheckout(name, url, spec)
	if err != nil {
		return nil, "", fmt.Errorf("dependency %q: %w", name, err)
	}
	checksum, err := dirChecksum(dir)
	if err != nil {
		return nil, "", fmt.Errorf("dependency %q: checksum %s: %w", name, dir, err)
	}
	return &driver.LockedPackage{
		Name:     driver.SanitizeName(name),
		Version:  commit,
		Source:   driver.SourceGit + url,
		Checksum: checksum,
	}, dir, nil
}

func (g *gitFetcher) ensureCheckout(name, url string, spec *driver.DependencySpec) (string, string, error) {
	if rev := strings.TrimSpace(spec.Rev); plumbing.IsHash(rev) {
		existing := driver.GitCheckoutDir(g.cacheDir, name, rev)
		if info, err := os.Stat(existing); err == nil && info.IsDir() {
			return rev, existing, nil
		}
	}

	baseDir := filepath.Dir(driver.GitCheckoutDir(g.cacheDir, name, "head"))
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return "", "", err
	}
	tmpDir, err := os.MkdirTemp(baseDir, "git-fetch-*")
	if err != nil {
		return "", "", err
	}
	defer os.RemoveAll(tmpDir)

	repo, err := git.PlainClone(tmpDir, false, &git.CloneOptions{URL: url})
	if err != nil {
		return "", "", fmt.Errorf("git clone %s: %w", url, err)
	}
	revision := gitRevisionFromSpec(spec)
	hash, err := repo.ResolveRevision(revision)
	if err != nil {
		return "", "", fmt.Errorf("resolve revision %s: %w", revision, err)
	}
	commit := hash.String()
	targetDir := driver.GitCheckoutDir(g.cacheDir, name, commit)
	if _, err := os.Stat(targetDir); err == nil {
		return commit, targetDir, nil
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return "", "", err
	}
	if err := worktree.Checkout(&git.CheckoutOptions{Hash: *hash, Force: true}); err != nil {
		return "", "", fmt.Errorf("git checkout %s: %w", revision, err)
	}
	if err := os.RemoveAll(filepath.Join(tmpDir, git.GitDirName)); err != nil {
		return "", "", err
	}
	if err := os.Rename(tmpDir, targetDir); err != nil {
		return "", "", err
	}
	return commit, targetDir, nil
}

// gitRevisionFromSpec picks the revision to check out. Without rev, tag or
// branch the remote's default branch is used.
func gitRevisionFromSpec(spec *driver.DependencySpec) plumbing.Revision {
	switch {
	case spec.Rev != "":
		return plumbing.Revision(spec.Rev)
	case spec.Tag != "":
		return plumbing.Revision(plumbing.NewTagReferenceName(spec.Tag))
	case spec.Branch != "":
		return plumbing.Revision(plumbing.NewRemoteReferenceName(git.DefaultRemoteName, spec.Branch))
	default:
		return plumbing.Revision(plumbing.HEAD)
	}
}

// dirChecksum hashes every file under path together with its relative
// name, in lexical walk order.
func dirChecksum(path string) (string, error) {
	h := sha256.New()
	err := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == git.GitDirName {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(path, p)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		h.Write([]byte(filepath.ToSlash(rel)))
		h.Write(data)
		return nil
	})
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
