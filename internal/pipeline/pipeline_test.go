package pipeline

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guillermolam/alberguecarcalejo-sub000/internal/data"
	"github.com/guillermolam/alberguecarcalejo-sub000/internal/domain"
)

func TestRunBatch(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.png")
	broken := filepath.Join(dir, "broken.jpg")
	require.NoError(t, os.WriteFile(good, cardImage(t, 510, 300), 0o600))
	require.NoError(t, os.WriteFile(broken, []byte("not an image"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip me"), 0o600))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.png"), 0o700))

	v, _, calls := newTestValidator(t, frontText, nil)
	output := filepath.Join(t.TempDir(), "out", "scripted_extracted_ids.csv")

	writes, failures := RunBatch(context.Background(), v, dir, output)

	require.Len(t, writes, 1)
	assert.Equal(t, "12345678Z", writes[good].DocumentNumber)
	assert.Equal(t, good, writes[good].Filename)

	require.Len(t, failures, 1)
	kind, ok := domain.KindOf(failures[broken])
	require.True(t, ok)
	assert.Equal(t, domain.KindImageDecode, kind)
	assert.Positive(t, calls.Load())

	file, err := os.Open(output)
	require.NoError(t, err)
	defer file.Close()
	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, data.GetCSVHeader(), rows[0])
	assert.Equal(t, good, rows[1][0])
}

func TestRunBatch_LowConfidenceIsAFailure(t *testing.T) {
	dir := t.TempDir()
	dark := filepath.Join(dir, "dark.png")
	require.NoError(t, os.WriteFile(dark, darkImage(t, 428, 270), 0o600))

	v, _, _ := newTestValidator(t, "", nil)
	output := filepath.Join(t.TempDir(), "ids.csv")

	writes, failures := RunBatch(context.Background(), v, dir, output)

	assert.Empty(t, writes)
	require.Contains(t, failures, dark)
	kind, _ := domain.KindOf(failures[dark])
	assert.Equal(t, domain.KindLowConfidence, kind)
	assert.NoFileExists(t, output)
}

func TestRunBatch_MissingDirectory(t *testing.T) {
	v, _, _ := newTestValidator(t, frontText, nil)

	writes, failures := RunBatch(context.Background(), v, filepath.Join(t.TempDir(), "missing"), filepath.Join(t.TempDir(), "ids.csv"))

	assert.Empty(t, writes)
	assert.Contains(t, failures, "pipeline_error")
}

func TestMIMEType(t *testing.T) {
	mimeType, ok := MIMEType("scan.JPG")
	assert.True(t, ok)
	assert.Equal(t, "image/jpeg", mimeType)

	mimeType, ok = MIMEType("scan.webp")
	assert.True(t, ok)
	assert.Equal(t, "image/webp", mimeType)

	_, ok = MIMEType("notes.txt")
	assert.False(t, ok)
	_, ok = MIMEType("README")
	assert.False(t, ok)
}
