// Package logging configures the logrus logger shared by the CLIs and
// adapts it for the Temporal SDK.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	tlog "go.temporal.io/sdk/log"
)

// New returns a logger writing to stderr at level in format ("text",
// "json" or "raw").
func New(level, format string) (*logrus.Logger, error) {
	return NewWithOutput(os.Stderr, level, format)
}

// NewWithOutput is New with an explicit destination.
func NewWithOutput(w io.Writer, level, format string) (*logrus.Logger, error) {
	l := logrus.New()
	l.SetOutput(w)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	l.SetLevel(lvl)

	switch format {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	case "raw":
		l.SetFormatter(&RawFormatter{})
	case "", "text":
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("unsupported log format %q", format)
	}
	return l, nil
}

// Discard returns a logger that drops everything.
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// RawFormatter prints only the message.
type RawFormatter struct{}

// Format renders the entry as its bare message.
func (f RawFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	return append([]byte(entry.Message), '\n'), nil
}

// temporalLogger adapts a logrus logger to the Temporal SDK's key/value
// logging interface.
type temporalLogger struct {
	log logrus.FieldLogger
}

var _ tlog.Logger = temporalLogger{}
var _ tlog.WithLogger = temporalLogger{}

// NewTemporalLogger wraps l for client.Options.Logger.
func NewTemporalLogger(l logrus.FieldLogger) tlog.Logger {
	return temporalLogger{log: l}
}

func fields(keyvals []interface{}) logrus.Fields {
	f := make(logrus.Fields, len(keyvals)/2)
	for i := 0; i < len(keyvals); i += 2 {
		key := fmt.Sprint(keyvals[i])
		if i+1 < len(keyvals) {
			f[key] = keyvals[i+1]
		} else {
			f[key] = "(MISSING)"
		}
	}
	return f
}

func (t temporalLogger) Debug(msg string, keyvals ...interface{}) {
	t.log.WithFields(fields(keyvals)).Debug(msg)
}

func (t temporalLogger) Info(msg string, keyvals ...interface{}) {
	t.log.WithFields(fields(keyvals)).Info(msg)
}

func (t temporalLogger) Warn(msg string, keyvals ...interface{}) {
	t.log.WithFields(fields(keyvals)).Warn(msg)
}

func (t temporalLogger) Error(msg string, keyvals ...interface{}) {
	t.log.WithFields(fields(keyvals)).Error(msg)
}

func (t temporalLogger) With(keyvals ...interface{}) tlog.Logger {
	return temporalLogger{log: t.log.WithFields(fields(keyvals))}
}
