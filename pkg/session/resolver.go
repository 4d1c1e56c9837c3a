package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/sirupsen/logrus"
)

// ErrDriverUnavailable is returned when no candidate yields a browser.
var ErrDriverUnavailable = errors.New("browser driver unavailable")

// Candidate is one way of locating a browser binary.
type Candidate interface {
	Name() string
	Resolve(ctx context.Context) (string, error)
}

type candidateFunc struct {
	name string
	fn   func(context.Context) (string, error)
}

// NewCandidate adapts fn into a Candidate.
func NewCandidate(name string, fn func(context.Context) (string, error)) Candidate {
	return candidateFunc{name: name, fn: fn}
}

func (c candidateFunc) Name() string { return c.name }

func (c candidateFunc) Resolve(ctx context.Context) (string, error) { return c.fn(ctx) }

// DefaultBrowserPaths are the well-known install locations tried after
// CHROME_BIN.
var DefaultBrowserPaths = []string{
	"/usr/bin/chromium",
	"/usr/bin/chromium-browser",
	"/usr/bin/google-chrome",
	"/usr/bin/google-chrome-stable",
	"/snap/bin/chromium",
	"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
	"/Applications/Chromium.app/Contents/MacOS/Chromium",
}

// LocalPaths resolves the first existing executable among Paths.
type LocalPaths struct {
	Paths []string
}

func (LocalPaths) Name() string { return "local" }

func (c LocalPaths) Resolve(ctx context.Context) (string, error) {
	for _, p := range c.Paths {
		if p == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
		info, err := os.Stat(p)
		if err != nil || info.IsDir() || info.Mode()&0o111 == 0 {
			continue
		}
		return p, nil
	}
	return "", fmt.Errorf("no browser executable at any of [%s]", strings.Join(c.Paths, ", "))
}

// Managed downloads (or reuses) the browser revision pinned by rod.
type Managed struct{}

func (Managed) Name() string { return "managed" }

func (Managed) Resolve(ctx context.Context) (string, error) {
	b := launcher.NewBrowser()
	b.Context = ctx
	path, err := b.Get()
	if err != nil {
		return "", fmt.Errorf("managed download: %w", err)
	}
	return path, nil
}

// System asks the launcher for the platform's default browser.
type System struct{}

func (System) Name() string { return "system" }

func (System) Resolve(context.Context) (string, error) {
	path, ok := launcher.LookPath()
	if !ok {
		return "", errors.New("no browser found on the system path")
	}
	return path, nil
}

// Resolution is the outcome of a successful Resolve.
type Resolution struct {
	Candidate string
	Path      string
}

// Resolver tries candidates in a fixed order and stops at the first
// success.
type Resolver struct {
	candidates []Candidate
	log        logrus.FieldLogger
}

// NewResolver creates a Resolver. A nil log discards output.
func NewResolver(log logrus.FieldLogger, candidates ...Candidate) *Resolver {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Resolver{candidates: candidates, log: log}
}

// DefaultCandidates returns the standard order: CHROME_BIN and the local
// paths, then the managed download when enabled, then the system lookup.
func DefaultCandidates(chromeBin string, paths []string, managed bool) []Candidate {
	if len(paths) == 0 {
		paths = DefaultBrowserPaths
	}
	local := LocalPaths{Paths: append([]string{chromeBin}, paths...)}
	out := []Candidate{local}
	if managed {
		out = append(out, Managed{})
	}
	return append(out, System{})
}

// Candidates returns the names of the configured candidates in order.
func (r *Resolver) Candidates() []string {
	names := make([]string, len(r.candidates))
	for i, c := range r.candidates {
		names[i] = c.Name()
	}
	return names
}

// Resolve returns the first candidate path that resolves.
func (r *Resolver) Resolve(ctx context.Context) (Resolution, error) {
	var errs []error
	for _, c := range r.candidates {
		path, err := c.Resolve(ctx)
		if err == nil {
			r.log.WithFields(logrus.Fields{"candidate": c.Name(), "path": path}).Debug("Resolved browser")
			return Resolution{Candidate: c.Name(), Path: path}, nil
		}
		r.log.WithError(err).WithField("candidate", c.Name()).Warn("Browser candidate failed")
		errs = append(errs, fmt.Errorf("%s: %w", c.Name(), err))
		if ctx.Err() != nil {
			break
		}
	}
	return Resolution{}, fmt.Errorf("%w: %w", ErrDriverUnavailable, errors.Join(errs...))
}
