package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetup_JSONLevels(t *testing.T) {
	t.Setenv("DEBUG", "")
	var buf bytes.Buffer
	Setup("info", "json", &buf)
	t.Cleanup(func() { Setup("info", "console", nil) })

	DebugLog("hidden %d", 1)
	assert.Empty(t, buf.String())

	L().Info().Str("stage", "ocr").Msg("visible")
	assert.Contains(t, buf.String(), `"stage":"ocr"`)
	assert.Contains(t, buf.String(), `"service":"idscan"`)
}

func TestSetup_DebugEnvForcesDebug(t *testing.T) {
	t.Setenv("DEBUG", "1")
	var buf bytes.Buffer
	Setup("error", "json", &buf)
	t.Cleanup(func() { Setup("info", "console", nil) })

	DebugLog("classified as %s", "passport")
	assert.Contains(t, buf.String(), "classified as passport")
}
