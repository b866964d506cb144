package writer

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guillermolam/alberguecarcalejo-sub000/internal/data"
	"github.com/guillermolam/alberguecarcalejo-sub000/internal/domain"
)

func record(filename, number string) data.Record {
	return data.Record{
		Filename:         filename,
		DocumentType:     domain.DniFront,
		ExtractedFields:  domain.ExtractedFields{DocumentNumber: number, FirstName: "JUAN"},
		ValidationResult: domain.ValidationResult{FormatValid: true, ChecksumValid: true, Confidence: 0.8},
	}
}

func TestCSVWriter_AppendMode(t *testing.T) {
	// Arrange
	outputPath := filepath.Join(t.TempDir(), "append_test.csv")
	writer := NewCSVWriter(data.MapCSVRecord, data.GetCSVHeader)
	defer writer.Close()

	// Act
	err1 := writer.WriteToFile([]data.Record{record("test1.jpg", "12345678Z")}, outputPath)
	err2 := writer.WriteToFile([]data.Record{record("test2.jpg", "X1234567L")}, outputPath)

	// Assert
	require.NoError(t, err1)
	require.NoError(t, err2)

	records := readCSVFile(t, outputPath)
	require.Len(t, records, 3)
	assert.Equal(t, data.GetCSVHeader(), records[0])
	assert.Equal(t, "test1.jpg", records[1][0])
	assert.Equal(t, "test2.jpg", records[2][0])
	assert.Equal(t, "X1234567L", records[2][2])
}

func TestCSVWriter_ReplaceMode(t *testing.T) {
	// Arrange
	outputPath := filepath.Join(t.TempDir(), "replace_test.csv")
	writer := NewCSVWriter(data.MapCSVRecord, data.GetCSVHeader)
	defer writer.Close()

	// Act
	err1 := writer.WriteToFile([]data.Record{record("original.jpg", "12345678Z")}, outputPath)
	err2 := writer.WriteToFile([]data.Record{record("replaced.jpg", "12345678Z")}, outputPath, true)

	// Assert
	require.NoError(t, err1)
	require.NoError(t, err2)

	records := readCSVFile(t, outputPath)
	require.Len(t, records, 2)
	assert.Equal(t, "replaced.jpg", records[1][0])
}

func TestCSVWriter_ConcurrentWrites(t *testing.T) {
	// Arrange
	outputPath := filepath.Join(t.TempDir(), "concurrent_test.csv")
	writer := NewCSVWriter(data.MapCSVRecord, data.GetCSVHeader)
	defer writer.Close()

	numGoroutines := 5
	var wg sync.WaitGroup

	// Act
	for i := range numGoroutines {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			rec := record(fmt.Sprintf("concurrent_%d.jpg", id), "12345678Z")
			assert.NoError(t, writer.WriteToFile([]data.Record{rec}, outputPath))
		}(i)
	}
	wg.Wait()

	// Assert
	assert.Len(t, readCSVFile(t, outputPath), 1+numGoroutines)
}

func TestCSVWriter_EmptyData(t *testing.T) {
	// Arrange
	outputPath := filepath.Join(t.TempDir(), "empty_test.csv")
	writer := NewCSVWriter(data.MapCSVRecord, data.GetCSVHeader)
	defer writer.Close()

	// Act
	err := writer.WriteToFile([]data.Record{}, outputPath)

	// Assert
	require.NoError(t, err)
	if _, err := os.Stat(outputPath); err == nil {
		assert.Empty(t, readCSVFile(t, outputPath))
	}
}

func TestCSVWriter_FilesArePrivate(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "out", "ids.csv")
	writer := NewCSVWriter(data.MapCSVRecord, data.GetCSVHeader)
	defer writer.Close()

	require.NoError(t, writer.WriteToFile([]data.Record{record("a.jpg", "12345678Z")}, outputPath))

	info, err := os.Stat(outputPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(filePerm), info.Mode().Perm())
}

func TestCSVWriter_InvalidPath(t *testing.T) {
	// Arrange
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))
	writer := NewCSVWriter(data.MapCSVRecord, data.GetCSVHeader)
	defer writer.Close()

	// Act
	err := writer.WriteToFile([]data.Record{record("test.jpg", "12345678Z")}, filepath.Join(blocker, "test.csv"))

	// Assert
	assert.Error(t, err)
}

func TestCSVWriter_WriteAfterClose(t *testing.T) {
	writer := NewCSVWriter(data.MapCSVRecord, data.GetCSVHeader)
	writer.Close()
	writer.Close()

	err := writer.WriteToFile([]data.Record{record("late.jpg", "12345678Z")}, filepath.Join(t.TempDir(), "late.csv"))
	assert.ErrorIs(t, err, errShuttingDown)
}

func readCSVFile(t *testing.T, path string) [][]string {
	t.Helper()
	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	return records
}
