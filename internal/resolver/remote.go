package resolver

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	docerrors "github.com/unclecode/doc2talk/internal/errors"
)

// lastAccessFile is the sidecar recording when a cached clone was last
// used, as unix seconds.
const lastAccessFile = ".last_access"

// DefaultMaxRepoAge is how long an unused clone survives before the
// startup sweep removes it.
const DefaultMaxRepoAge = 30 * 24 * time.Hour

// refPattern matches <host>/<user>/<repo>[/tree/<branch>][/<subpath>]
// references behind an https or git@ prefix.
var refPattern = regexp.MustCompile(`^(?:https?://|git@)([^/:]+)[:/]([^/]+)/([^/]+?)(?:\.git)?(?:/tree/([^/]+))?(/.+)?$`)

// remoteRef is a parsed remote reference.
type remoteRef struct {
	Host    string
	User    string
	Repo    string
	Branch  string
	Subpath string
}

// cloneURL is the fetch URL for the reference.
func (r remoteRef) cloneURL() string {
	return fmt.Sprintf("https://%s/%s/%s.git", r.Host, r.User, r.Repo)
}

// cacheKey is the stable cache directory name for the reference.
func (r remoteRef) cacheKey() string {
	return fmt.Sprintf("%s_%s_%s", r.User, r.Repo, r.Branch)
}

// Remote resolves remote VCS references into cached working trees under
// ReposDir. Clones are shallow, refreshed on hit, sparse-checked-out for
// subpaths, and garbage-collected when unused for MaxAge.
type Remote struct {
	ReposDir string
	MaxAge   time.Duration

	now func() time.Time
}

// NewRemote creates a remote resolver rooted at reposDir and sweeps
// caches that have not been accessed within DefaultMaxRepoAge.
func NewRemote(reposDir string) *Remote {
	r := &Remote{ReposDir: reposDir, MaxAge: DefaultMaxRepoAge, now: time.Now}
	if err := os.MkdirAll(reposDir, 0o755); err != nil {
		slog.Warn("repo_cache_dir_create_failed", slog.String("dir", reposDir), slog.String("error", err.Error()))
		return r
	}
	r.cleanupOldRepos()
	return r
}

// Validate implements Resolver.
func (r *Remote) Validate(ref string) bool {
	return refPattern.MatchString(ref)
}

// Resolve implements Resolver: it ensures a cached working tree for the
// reference and returns cacheRoot/subpath.
func (r *Remote) Resolve(ref string) (string, error) {
	parsed, err := r.parse(ref)
	if err != nil {
		return "", err
	}

	cachePath := filepath.Join(r.ReposDir, parsed.cacheKey())
	target := cachePath
	if parsed.Subpath != "" {
		target = filepath.Join(cachePath, parsed.Subpath)
	}

	if r.isCached(cachePath, target) {
		slog.Info("repo_cache_hit",
			slog.String("repo", parsed.User+"/"+parsed.Repo),
			slog.String("path", parsed.Subpath))
		if err := r.update(cachePath, parsed); err != nil {
			// A stale cache still serves; refresh failures are not fatal.
			slog.Warn("repo_cache_update_failed", slog.String("error", err.Error()))
		}
	} else {
		slog.Info("repo_clone",
			slog.String("repo", parsed.User+"/"+parsed.Repo),
			slog.String("branch", parsed.Branch))
		if err := r.clone(cachePath, parsed); err != nil {
			return "", err
		}
	}
	r.touch(cachePath)

	if _, err := os.Stat(target); err != nil {
		return "", docerrors.PathMissing(parsed.Subpath)
	}
	return target, nil
}

func (r *Remote) parse(ref string) (remoteRef, error) {
	m := refPattern.FindStringSubmatch(ref)
	if m == nil {
		return remoteRef{}, docerrors.UnresolvableReference(ref)
	}
	parsed := remoteRef{
		Host:    m[1],
		User:    m[2],
		Repo:    m[3],
		Branch:  m[4],
		Subpath: strings.Trim(m[5], "/"),
	}
	if parsed.Branch == "" {
		parsed.Branch = "main"
	}
	return parsed, nil
}

func (r *Remote) isCached(cachePath, target string) bool {
	if _, err := os.Stat(filepath.Join(cachePath, ".git")); err != nil {
		return false
	}
	_, err := os.Stat(target)
	return err == nil
}

func (r *Remote) clone(cachePath string, ref remoteRef) error {
	_, err := git.PlainClone(cachePath, false, &git.CloneOptions{
		URL:           ref.cloneURL(),
		ReferenceName: plumbing.NewBranchReferenceName(ref.Branch),
		SingleBranch:  true,
		Depth:         1,
	})
	if err != nil {
		_ = os.RemoveAll(cachePath)
		return docerrors.RemoteFetchFailed(ref.cloneURL(), err)
	}
	if ref.Subpath != "" {
		if err := r.sparseCheckout(cachePath, ref); err != nil {
			return err
		}
	}
	return nil
}

func (r *Remote) update(cachePath string, ref remoteRef) error {
	repo, err := git.PlainOpen(cachePath)
	if err != nil {
		return err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return err
	}
	err = wt.Pull(&git.PullOptions{
		RemoteName:    "origin",
		ReferenceName: plumbing.NewBranchReferenceName(ref.Branch),
		SingleBranch:  true,
	})
	if err != nil && err != git.NoErrAlreadyUpToDate {
		return err
	}
	return nil
}

func (r *Remote) sparseCheckout(cachePath string, ref remoteRef) error {
	repo, err := git.PlainOpen(cachePath)
	if err != nil {
		return docerrors.RemoteFetchFailed(ref.cloneURL(), err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return docerrors.RemoteFetchFailed(ref.cloneURL(), err)
	}
	err = wt.Checkout(&git.CheckoutOptions{
		Branch:                    plumbing.NewBranchReferenceName(ref.Branch),
		SparseCheckoutDirectories: []string{ref.Subpath},
	})
	if err != nil {
		return docerrors.RemoteFetchFailed(ref.cloneURL(), err)
	}
	return nil
}

// touch refreshes the last-access sidecar.
func (r *Remote) touch(cachePath string) {
	ts := strconv.FormatInt(r.now().Unix(), 10)
	if err := os.WriteFile(filepath.Join(cachePath, lastAccessFile), []byte(ts), 0o644); err != nil {
		slog.Warn("repo_touch_failed", slog.String("error", err.Error()))
	}
}

// cleanupOldRepos removes cached clones whose last access is older than
// MaxAge. Missing sidecars fall back to the directory mtime.
func (r *Remote) cleanupOldRepos() {
	if r.MaxAge <= 0 {
		return
	}
	entries, err := os.ReadDir(r.ReposDir)
	if err != nil {
		return
	}
	cutoff := r.now().Add(-r.MaxAge)

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(r.ReposDir, entry.Name())
		if r.lastAccess(dir).Before(cutoff) {
			if err := os.RemoveAll(dir); err != nil {
				slog.Warn("repo_cleanup_failed", slog.String("dir", dir), slog.String("error", err.Error()))
				continue
			}
			slog.Info("repo_cleaned", slog.String("dir", entry.Name()))
		}
	}
}

func (r *Remote) lastAccess(dir string) time.Time {
	data, err := os.ReadFile(filepath.Join(dir, lastAccessFile))
	if err == nil {
		if secs, perr := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64); perr == nil {
			return time.Unix(secs, 0)
		}
	}
	info, err := os.Stat(dir)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}
