package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tlog "go.temporal.io/sdk/log"
)

func TestNewWithOutput(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewWithOutput(&buf, "warn", "json")
	require.NoError(t, err)

	l.Info("hidden")
	l.WithField("scenario", "Login valid credentials").Warn("shown")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "shown", entry["msg"])
	assert.Equal(t, "Login valid credentials", entry["scenario"])
}

func TestNewRejectsBadSettings(t *testing.T) {
	_, err := New("chatty", "text")
	assert.Error(t, err)

	_, err = New("info", "xml")
	assert.Error(t, err)
}

func TestRawFormatter(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewWithOutput(&buf, "info", "raw")
	require.NoError(t, err)

	l.WithField("ignored", 1).Info("plain line")
	assert.Equal(t, "plain line\n", buf.String())
}

func TestTemporalLogger(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewWithOutput(&buf, "debug", "json")
	require.NoError(t, err)

	tl := NewTemporalLogger(l)
	tl.(tlog.WithLogger).With("WorkflowID", "suite-1").Info("Started", "Attempt", 1, "dangling")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "Started", entry["msg"])
	assert.Equal(t, "suite-1", entry["WorkflowID"])
	assert.Equal(t, float64(1), entry["Attempt"])
	assert.Equal(t, "(MISSING)", entry["dangling"])
	assert.Equal(t, logrus.InfoLevel.String(), entry["level"])
}

func TestDiscard(t *testing.T) {
	assert.NotPanics(t, func() { Discard().Error("nothing") })
}
