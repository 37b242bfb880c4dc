package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHelpersWriteStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { Configure(Options{}) })

	Info("section generated", "section", "analisi di mercato", "words", 812)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "section generated", entry["message"])
	assert.Equal(t, "analisi di mercato", entry["section"])
	assert.EqualValues(t, 812, entry["words"])
}

func TestErrorIncludesError(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { Configure(Options{}) })

	Error("search failed", errors.New("boom"), "query", "mercato")

	out := buf.String()
	assert.Contains(t, out, `"error":"boom"`)
	assert.Contains(t, out, `"query":"mercato"`)
}

func TestConfigureLevelFiltersDebug(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "logs", "bizplan.log")
	Configure(Options{Level: "warn", FilePath: path, MaxSizeMB: 1})
	t.Cleanup(func() { Configure(Options{}) })

	assert.Equal(t, "warn", Get().GetLevel().String())

	Configure(Options{Level: "not-a-level"})
	assert.True(t, strings.EqualFold(Get().GetLevel().String(), "info"))
}
