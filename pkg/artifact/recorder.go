// Package artifact saves screenshots taken during scenario runs.
package artifact

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/sirupsen/logrus"
)

// Shooter is anything that can capture the current viewport as PNG.
type Shooter interface {
	Screenshot() ([]byte, error)
}

// Recorder writes PNG screenshots into a single directory. Capture never
// fails the caller: problems are logged and reported as an empty path.
type Recorder struct {
	dir string
	log logrus.FieldLogger
}

// NewRecorder creates a Recorder writing to dir. A nil log discards output.
func NewRecorder(dir string, log logrus.FieldLogger) *Recorder {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Recorder{dir: dir, log: log}
}

// Dir returns the screenshot directory.
func (r *Recorder) Dir() string { return r.dir }

// Sanitize reduces name to letters, digits, spaces, '-' and '_', trims
// trailing spaces and turns the remaining spaces into underscores.
func Sanitize(name string) string {
	var b strings.Builder
	for _, c := range name {
		if unicode.IsLetter(c) || unicode.IsDigit(c) || c == ' ' || c == '-' || c == '_' {
			b.WriteRune(c)
		}
	}
	return strings.ReplaceAll(strings.TrimRight(b.String(), " "), " ", "_")
}

// Capture saves a screenshot as <dir>/<sanitized name>.png and returns the
// path, or "" when nothing was written.
func (r *Recorder) Capture(s Shooter, name string) (path string) {
	log := r.log.WithField("screenshot", name)
	defer func() {
		if rec := recover(); rec != nil {
			log.WithField("panic", fmt.Sprint(rec)).Error("Screenshot capture panicked")
			path = ""
		}
	}()

	clean := Sanitize(name)
	if clean == "" || s == nil {
		return ""
	}

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		log.WithError(err).Error("Failed to create screenshot directory")
		return ""
	}

	data, err := s.Screenshot()
	if err != nil {
		log.WithError(err).Error("Failed to take screenshot")
		return ""
	}

	path = filepath.Join(r.dir, clean+".png")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.WithError(err).Error("Failed to save screenshot")
		return ""
	}

	log.WithField("path", path).Info("Screenshot saved")
	return path
}
