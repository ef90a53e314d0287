package logger

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZerologLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Level: "warn", Output: &buf})

	log.Infof("hidden %d", 1)
	log.Warnf("visible %d", 2)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "visible 2")
}

func TestZerologLogger_ErrorCarriesErr(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Level: "debug", Output: &buf}).With("training")

	log.Errorf(errors.New("boom"), "pass failed for %s", "content")

	out := buf.String()
	require.Contains(t, out, `"error":"boom"`)
	assert.Contains(t, out, `"component":"training"`)
	assert.Contains(t, out, "pass failed for content")
}

func TestNewNop_Silent(t *testing.T) {
	var _ Logger = NewNop()
	NewNop().Errorf(errors.New("x"), "nothing")
}
