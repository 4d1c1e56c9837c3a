package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-rod/rod/lib/input"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultProfile(t *testing.T) {
	p := NewProfile()

	assert.True(t, p.Headless())
	w, h := p.WindowSize()
	assert.Equal(t, 1920, w)
	assert.Equal(t, 1080, h)
	assert.Equal(t, []string{
		"--disable-blink-features=AutomationControlled",
		"--disable-dev-shm-usage",
		"--disable-gpu",
		"--no-sandbox",
		"--window-size=1920,1080",
	}, p.Args())
	assert.Equal(t, []string{"enable-automation"}, p.Excluded())
}

func TestProfileIsImmutable(t *testing.T) {
	p := NewProfile(WithHeadless(false), WithWindowSize(1280, 720), WithFlag("lang", "en-US"))

	args := p.Args()
	args[0] = "--tampered"
	excluded := p.Excluded()
	excluded[0] = "tampered"

	assert.NotContains(t, p.Args(), "--tampered")
	assert.Equal(t, []string{"enable-automation"}, p.Excluded())
	assert.Contains(t, p.Args(), "--window-size=1280,720")
	assert.Contains(t, p.Args(), "--lang=en-US")
	assert.False(t, p.Headless())

	// Options applied to one profile never leak into another.
	assert.NotContains(t, NewProfile().Args(), "--lang=en-US")
}

type recorder struct{ calls []string }

func (r *recorder) candidate(name, path string, err error) Candidate {
	return NewCandidate(name, func(context.Context) (string, error) {
		r.calls = append(r.calls, name)
		return path, err
	})
}

func TestResolverStopsAtFirstSuccess(t *testing.T) {
	rec := &recorder{}
	r := NewResolver(nil,
		rec.candidate("local", "", errors.New("not installed")),
		rec.candidate("managed", "/cache/chrome", nil),
		rec.candidate("system", "/usr/bin/chromium", nil),
	)

	res, err := r.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Resolution{Candidate: "managed", Path: "/cache/chrome"}, res)
	assert.Equal(t, []string{"local", "managed"}, rec.calls, "later candidates must not be attempted")
}

func TestResolverExhausted(t *testing.T) {
	rec := &recorder{}
	errLocal := errors.New("no binary")
	errManaged := errors.New("download refused")
	errSystem := errors.New("not on path")
	r := NewResolver(nil,
		rec.candidate("local", "", errLocal),
		rec.candidate("managed", "", errManaged),
		rec.candidate("system", "", errSystem),
	)

	_, err := r.Resolve(context.Background())
	require.ErrorIs(t, err, ErrDriverUnavailable)
	assert.ErrorIs(t, err, errLocal)
	assert.ErrorIs(t, err, errManaged)
	assert.ErrorIs(t, err, errSystem)
	assert.Equal(t, []string{"local", "managed", "system"}, rec.calls)
}

func TestResolverStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	r := NewResolver(nil,
		NewCandidate("first", func(context.Context) (string, error) {
			calls++
			cancel()
			return "", context.Canceled
		}),
		NewCandidate("second", func(context.Context) (string, error) {
			calls++
			return "/bin/true", nil
		}),
	)

	_, err := r.Resolve(ctx)
	require.ErrorIs(t, err, ErrDriverUnavailable)
	assert.Equal(t, 1, calls)
}

func TestLocalPaths(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "chrome-readonly")
	exe := filepath.Join(dir, "chrome")
	require.NoError(t, os.WriteFile(plain, []byte("#!/bin/sh\n"), 0o644))
	require.NoError(t, os.WriteFile(exe, []byte("#!/bin/sh\n"), 0o755))

	got, err := LocalPaths{Paths: []string{"", filepath.Join(dir, "missing"), dir, plain, exe}}.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, exe, got)

	_, err = LocalPaths{Paths: []string{plain}}.Resolve(context.Background())
	assert.ErrorContains(t, err, plain)
}

func TestDefaultCandidatesOrder(t *testing.T) {
	r := NewResolver(nil, DefaultCandidates("/opt/chrome", nil, true)...)
	assert.Equal(t, []string{"local", "managed", "system"}, r.Candidates())

	r = NewResolver(nil, DefaultCandidates("", []string{"/x"}, false)...)
	assert.Equal(t, []string{"local", "system"}, r.Candidates())

	local := DefaultCandidates("/opt/chrome", []string{"/x"}, false)[0].(LocalPaths)
	assert.Equal(t, []string{"/opt/chrome", "/x"}, local.Paths)
}

func TestKeyFor(t *testing.T) {
	k, err := keyFor("Enter")
	require.NoError(t, err)
	assert.Equal(t, input.Enter, k)

	k, err = keyFor("a")
	require.NoError(t, err)
	assert.Equal(t, input.Key('a'), k)

	_, err = keyFor("hyper")
	assert.Error(t, err)
}

func TestCloseIsIdempotent(t *testing.T) {
	s := &Session{log: NewResolver(nil).log}
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}

func TestActiveAfterClose(t *testing.T) {
	tests := []struct {
		name           string
		active, closed int
		want           int
	}{
		{"close tab before active", 2, 0, 1},
		{"close tab after active", 0, 2, 0},
		{"close active middle tab", 1, 1, 0},
		{"close active first tab", 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, activeAfterClose(tt.active, tt.closed))
		})
	}
}

func TestHideWebdriverIsAStatement(t *testing.T) {
	// addScriptToEvaluateOnNewDocument runs the source as a script, so a bare
	// function expression would never be called.
	src := strings.TrimSpace(hideWebdriver)
	assert.True(t, strings.HasPrefix(src, "Object.defineProperty(navigator, 'webdriver'"), src)
	assert.NotRegexp(t, `^\(\s*\)\s*=>`, src)
}
