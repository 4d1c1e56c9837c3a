package session

import (
	"fmt"
	"sort"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
)

// Profile holds the browser startup flags. It is built once before a
// session opens and never changes afterwards; every accessor returns a copy.
type Profile struct {
	headless bool
	width    int
	height   int
	flags    map[string]string
	excluded []string
}

// ProfileOption customizes a Profile under construction.
type ProfileOption func(*Profile)

// WithHeadless toggles headless mode.
func WithHeadless(headless bool) ProfileOption {
	return func(p *Profile) { p.headless = headless }
}

// WithWindowSize sets the window size and the matching window-size flag.
func WithWindowSize(width, height int) ProfileOption {
	return func(p *Profile) {
		p.width, p.height = width, height
		p.flags["window-size"] = fmt.Sprintf("%d,%d", width, height)
	}
}

// WithFlag adds a command-line switch. An empty value adds a bare switch.
func WithFlag(name, value string) ProfileOption {
	return func(p *Profile) { p.flags[name] = value }
}

// WithoutSwitch removes a switch the launcher would otherwise pass.
func WithoutSwitch(name string) ProfileOption {
	return func(p *Profile) { p.excluded = append(p.excluded, name) }
}

// NewProfile returns the default storefront profile with opts applied.
//
// The defaults are what the storefront suite has always run with: headless,
// 1920x1080, the container-safe switches and the automation banner and
// navigator flag suppressed.
func NewProfile(opts ...ProfileOption) Profile {
	p := Profile{
		headless: true,
		flags: map[string]string{
			"no-sandbox":             "",
			"disable-dev-shm-usage":  "",
			"disable-gpu":            "",
			"disable-blink-features": "AutomationControlled",
		},
		excluded: []string{"enable-automation"},
	}
	WithWindowSize(1920, 1080)(&p)
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

func (p Profile) Headless() bool { return p.headless }

func (p Profile) WindowSize() (int, int) { return p.width, p.height }

// Excluded returns the switches removed from the launcher defaults.
func (p Profile) Excluded() []string {
	return append([]string(nil), p.excluded...)
}

// Args returns the switches in command-line form, sorted by name.
func (p Profile) Args() []string {
	names := make([]string, 0, len(p.flags))
	for name := range p.flags {
		names = append(names, name)
	}
	sort.Strings(names)

	args := make([]string, 0, len(names))
	for _, name := range names {
		if v := p.flags[name]; v != "" {
			args = append(args, "--"+name+"="+v)
		} else {
			args = append(args, "--"+name)
		}
	}
	return args
}

// apply configures l with the profile.
func (p Profile) apply(l *launcher.Launcher) *launcher.Launcher {
	l = l.Headless(p.headless)
	for name, v := range p.flags {
		if v == "" {
			l = l.Set(flags.Flag(name))
		} else {
			l = l.Set(flags.Flag(name), v)
		}
	}
	for _, name := range p.excluded {
		l = l.Delete(flags.Flag(name))
	}
	return l
}
