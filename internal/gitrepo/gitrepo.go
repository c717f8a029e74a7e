// Package gitrepo keeps per-project version history by shelling out to the git
// executable. A Repo is bound to one working directory and never touches the
// process working directory.
package gitrepo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	binGit = "git"

	authorName    = "Adorable"
	authorEmail   = "bot@adorable.dev"
	defaultBranch = "main"

	fieldSep = "\x1f"
)

// DefaultGitignore is written on Init when the directory has no .gitignore.
const DefaultGitignore = `node_modules/
dist/
build/
.next/
.cache/
.env
.env.*
*.log
.DS_Store
`

var shaPattern = regexp.MustCompile(`^[0-9a-fA-F]{4,64}$`)

// ErrNoHistory is returned by Checkout when the repository has no commits.
var ErrNoHistory = errors.New("repository has no commits")

// ErrUnknownRevision is returned by Checkout when sha does not name a commit.
var ErrUnknownRevision = errors.New("unknown revision")

// Version is one commit in a project's history.
type Version struct {
	SHA     string    `json:"sha"`
	Message string    `json:"message"`
	Author  string    `json:"author"`
	Email   string    `json:"email"`
	Date    time.Time `json:"date"`
}

// Repo is a git repository rooted at a single directory.
type Repo struct {
	dir      string
	trackAll bool
}

// Option configures a Repo.
type Option func(*Repo)

// TrackAll records every file in the directory. Init writes no default
// .gitignore and ignore rules do not keep files out of commits.
func TrackAll() Option {
	return func(r *Repo) {
		r.trackAll = true
	}
}

// Open returns a Repo for dir. Nothing is created until Init or Commit.
func Open(dir string, opts ...Option) *Repo {
	r := &Repo{dir: dir}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Dir returns the working directory of the repository.
func (r *Repo) Dir() string {
	return r.dir
}

func (r *Repo) git(ctx context.Context, args ...string) (string, error) {
	sub := args[0]
	args = append([]string{
		"-c", "user.name=" + authorName,
		"-c", "user.email=" + authorEmail,
		"-c", "commit.gpgsign=false",
	}, args...)

	cmd := exec.CommandContext(ctx, binGit, args...)
	cmd.Dir = r.dir
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git %s: %w: %s", sub, err, strings.TrimSpace(stderr.String()))
	}
	return string(out), nil
}

// IsRepo reports whether dir is itself the root of a git repository. A
// directory nested inside some other repository does not count.
func (r *Repo) IsRepo(ctx context.Context) bool {
	if _, err := os.Stat(filepath.Join(r.dir, ".git")); err != nil {
		return false
	}
	out, err := r.git(ctx, "rev-parse", "--show-toplevel")
	if err != nil {
		return false
	}
	top, err := filepath.EvalSymlinks(strings.TrimSpace(out))
	if err != nil {
		return false
	}
	want, err := filepath.Abs(r.dir)
	if err != nil {
		return false
	}
	if resolved, err := filepath.EvalSymlinks(want); err == nil {
		want = resolved
	}
	return top == want
}

// Init creates the directory and repository when missing, writes a default
// .gitignore when none exists (unless TrackAll is set) and pins the committer
// identity. It is safe to call repeatedly.
func (r *Repo) Init(ctx context.Context) error {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("creating repository directory: %w", err)
	}

	if !r.IsRepo(ctx) {
		if _, err := r.git(ctx, "init", "-q"); err != nil {
			return err
		}
		if _, err := r.git(ctx, "symbolic-ref", "HEAD", "refs/heads/"+defaultBranch); err != nil {
			return err
		}
		for _, kv := range [][2]string{
			{"user.name", authorName},
			{"user.email", authorEmail},
			{"commit.gpgsign", "false"},
		} {
			if _, err := r.git(ctx, "config", kv[0], kv[1]); err != nil {
				return err
			}
		}
	}

	if r.trackAll {
		return nil
	}
	ignore := filepath.Join(r.dir, ".gitignore")
	if _, err := os.Stat(ignore); errors.Is(err, os.ErrNotExist) {
		if err := os.WriteFile(ignore, []byte(DefaultGitignore), 0o644); err != nil {
			return fmt.Errorf("writing .gitignore: %w", err)
		}
	}
	return nil
}

// Commit stages every change and commits it with message. It returns the new
// commit SHA, or "" when the working tree was already clean.
func (r *Repo) Commit(ctx context.Context, message string) (string, error) {
	if err := r.Init(ctx); err != nil {
		return "", err
	}
	add := []string{"add", "-A"}
	if r.trackAll {
		add = append(add, "--force")
	}
	if _, err := r.git(ctx, add...); err != nil {
		return "", err
	}

	status, err := r.git(ctx, "status", "--porcelain")
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(status) == "" {
		return "", nil
	}

	if strings.TrimSpace(message) == "" {
		message = "Update project files"
	}
	if _, err := r.git(ctx, "commit", "--no-verify", "-q", "-m", message); err != nil {
		return "", err
	}
	return r.HeadSHA(ctx), nil
}

// HeadSHA returns the SHA of HEAD, or "" when there is no repository or no commit.
func (r *Repo) HeadSHA(ctx context.Context) string {
	if !r.IsRepo(ctx) {
		return ""
	}
	out, err := r.git(ctx, "rev-parse", "--verify", "-q", "HEAD")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(out)
}

// Log returns up to limit commits, newest first. A directory without a
// repository or without commits has an empty history.
func (r *Repo) Log(ctx context.Context, limit int) ([]Version, error) {
	if r.HeadSHA(ctx) == "" {
		return []Version{}, nil
	}
	if limit <= 0 {
		limit = 50
	}

	format := strings.Join([]string{"%H", "%an", "%ae", "%aI", "%s"}, "%x1f")
	out, err := r.git(ctx, "log", "-n", strconv.Itoa(limit), "--format="+format)
	if err != nil {
		return nil, err
	}
	return parseLog(out), nil
}

func parseLog(out string) []Version {
	versions := []Version{}
	for _, line := range strings.Split(out, "\n") {
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, fieldSep, 5)
		if len(fields) != 5 {
			continue
		}
		date, _ := time.Parse(time.RFC3339, fields[3]) // zero time on malformed dates
		versions = append(versions, Version{
			SHA:     fields[0],
			Author:  fields[1],
			Email:   fields[2],
			Date:    date,
			Message: fields[4],
		})
	}
	return versions
}

// Checkout restores the working tree to the contents of sha without moving
// HEAD. Files tracked now but absent from sha are removed, so the tree matches
// the target exactly. The next Commit records the restore as a new version.
func (r *Repo) Checkout(ctx context.Context, sha string) error {
	if r.HeadSHA(ctx) == "" {
		return ErrNoHistory
	}
	if !shaPattern.MatchString(sha) {
		return fmt.Errorf("%w: %s", ErrUnknownRevision, sha)
	}
	if _, err := r.git(ctx, "rev-parse", "--verify", "-q", sha+"^{commit}"); err != nil {
		return fmt.Errorf("%w: %s", ErrUnknownRevision, sha)
	}

	targetOut, err := r.git(ctx, "ls-tree", "-r", "--name-only", "-z", sha)
	if err != nil {
		return err
	}
	currentOut, err := r.git(ctx, "ls-files", "-z")
	if err != nil {
		return err
	}

	target := splitNul(targetOut)
	inTarget := make(map[string]bool, len(target))
	for _, p := range target {
		inTarget[p] = true
	}

	if len(target) > 0 {
		if _, err := r.git(ctx, "checkout", sha, "--", "."); err != nil {
			return err
		}
	}

	var extra []string
	for _, p := range splitNul(currentOut) {
		if !inTarget[p] {
			extra = append(extra, p)
		}
	}
	if len(extra) > 0 {
		args := append([]string{"rm", "-q", "-f", "--"}, extra...)
		if _, err := r.git(ctx, args...); err != nil {
			return err
		}
	}
	return nil
}

func splitNul(s string) []string {
	var out []string
	for _, p := range strings.Split(s, "\x00") {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
