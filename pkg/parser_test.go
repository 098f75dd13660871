package ageing

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const goodExport = `bin: Ch01A0: Ch01A1: Ch02A0: Ch02A1
0: 1: 2: 10: 20
1: 3: 4: 30: 40
2: 5: 6: 50: 60
`

func writeExport(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func parserConfig() Configuration {
	config := testConfig()
	config.TimestampLayout = "2006-01-02"
	config.RefChannels = map[string]string{"FT0A": "Ch01"}
	return config
}

func TestParseColonCSV(t *testing.T) {
	dir := t.TempDir()
	path := writeExport(t, dir, "FT0A_2024-01-02.csv", goodExport)

	datasets, failures, err := NewParser(parserConfig()).ParsePath(path)
	require.NoError(t, err)
	assert.Empty(t, failures)
	require.Len(t, datasets, 1)

	dataset := datasets[0]
	assert.Equal(t, "colon-csv", dataset.Format)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), dataset.Time)
	require.Len(t, dataset.Modules, 1)

	mod := dataset.Modules[0]
	assert.Equal(t, "FT0A", mod.Name)
	assert.Equal(t, 0, mod.RefIndex)
	require.Len(t, mod.Channels, 2)

	// A0 and A1 sub-channels are summed per bin.
	ch01 := mod.Channels[0]
	assert.Equal(t, "Ch01", ch01.Name)
	assert.Equal(t, []float64{0, 1, 2}, ch01.Hist.Bins)
	assert.Equal(t, []float64{3, 7, 11}, ch01.Hist.Counts)

	ch02 := mod.Channels[1]
	assert.Equal(t, "Ch02", ch02.Name)
	assert.Equal(t, []float64{30, 70, 110}, ch02.Hist.Counts)
}

func TestParseSortsRowsByBinValue(t *testing.T) {
	dir := t.TempDir()
	path := writeExport(t, dir, "FT0A_2024-01-02.csv",
		"bin: Ch01\n2: 30\n0: 10\n1: 20\n")

	datasets, _, err := NewParser(parserConfig()).ParsePath(path)
	require.NoError(t, err)
	hist := datasets[0].Modules[0].Channels[0].Hist
	assert.Equal(t, []float64{0, 1, 2}, hist.Bins)
	assert.Equal(t, []float64{10, 20, 30}, hist.Counts)
}

func TestParseNegativeCountFailsFile(t *testing.T) {
	dir := t.TempDir()
	writeExport(t, dir, "FT0A_2024-01-02.csv", "bin: Ch01\n0: -5\n")

	datasets, failures, err := NewParser(parserConfig()).ParsePath(dir)
	require.NoError(t, err)
	assert.Empty(t, datasets)
	require.Len(t, failures, 1)
	var parseErr *ParseError
	assert.True(t, errors.As(failures[0].Err, &parseErr))
}

func TestParseNonNumericCountFailsFile(t *testing.T) {
	dir := t.TempDir()
	writeExport(t, dir, "FT0A_2024-01-02.csv", "bin: Ch01\n0: abc\n")

	_, failures, err := NewParser(parserConfig()).ParsePath(dir)
	require.NoError(t, err)
	require.Len(t, failures, 1)
	var parseErr *ParseError
	assert.True(t, errors.As(failures[0].Err, &parseErr))
}

func TestParseBadFileDoesNotStopBatch(t *testing.T) {
	dir := t.TempDir()
	writeExport(t, dir, "FT0A_2024-01-02.csv", goodExport)
	writeExport(t, dir, "FT0A_2024-02-02.csv", "no header here\njust text\n")
	writeExport(t, dir, "FT0A_2024-03-02.csv", goodExport)

	datasets, failures, err := NewParser(parserConfig()).ParsePath(dir)
	require.NoError(t, err)
	assert.Len(t, datasets, 2)
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0].Filename, "2024-02-02")
}

func TestParseSortsDatasetsByTimestamp(t *testing.T) {
	dir := t.TempDir()
	writeExport(t, dir, "FT0A_2024-05-01.csv", goodExport)
	writeExport(t, dir, "FT0A_2024-01-01.csv", goodExport)
	writeExport(t, dir, "FT0A_2024-03-01.csv", goodExport)

	datasets, _, err := NewParser(parserConfig()).ParsePath(dir)
	require.NoError(t, err)
	require.Len(t, datasets, 3)
	assert.True(t, datasets[0].Time.Before(datasets[1].Time))
	assert.True(t, datasets[1].Time.Before(datasets[2].Time))
}

func TestParseSkipAndMaxDatasets(t *testing.T) {
	dir := t.TempDir()
	writeExport(t, dir, "FT0A_2024-01-01.csv", goodExport)
	writeExport(t, dir, "FT0A_2024-02-01.csv", goodExport)
	writeExport(t, dir, "FT0A_2024-03-01.csv", goodExport)
	writeExport(t, dir, "FT0A_2024-04-01.csv", goodExport)

	config := parserConfig()
	config.Skip = 1
	config.MaxDatasets = 2
	datasets, _, err := NewParser(config).ParsePath(dir)
	require.NoError(t, err)
	require.Len(t, datasets, 2)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), datasets[0].Time)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), datasets[1].Time)
}

func TestParseExpectedChannelsMismatch(t *testing.T) {
	dir := t.TempDir()
	writeExport(t, dir, "FT0A_2024-01-02.csv", goodExport)

	config := parserConfig()
	config.ExpectedChannels = 5
	_, failures, err := NewParser(config).ParsePath(dir)
	require.NoError(t, err)
	require.Len(t, failures, 1)
}

func TestParseMissingReferenceChannel(t *testing.T) {
	dir := t.TempDir()
	writeExport(t, dir, "FT0A_2024-01-02.csv", goodExport)

	config := parserConfig()
	config.RefChannels = map[string]string{"FT0A": "Ch99"}
	_, failures, err := NewParser(config).ParsePath(dir)
	require.NoError(t, err)
	require.Len(t, failures, 1)
}

func TestParseUnknownPath(t *testing.T) {
	_, _, err := NewParser(parserConfig()).ParsePath("/does/not/exist")
	require.Error(t, err)
	var parseErr *ParseError
	assert.True(t, errors.As(err, &parseErr))
}

func TestScanFolderFindsSupportedFiles(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0755))
	writeExport(t, dir, "a.csv", goodExport)
	writeExport(t, sub, "b.dat", goodExport)
	writeExport(t, dir, "notes.md", "irrelevant")

	files, err := ScanFolder(dir)
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestModuleNameFromFilename(t *testing.T) {
	config := testConfig()
	assert.Equal(t, "FT0A", moduleName("/data/FT0A_2024-01-02.csv", config))
	assert.Equal(t, "FV0", moduleName("FV0.csv", config))

	config.DefaultModule = "FDD"
	assert.Equal(t, "FDD", moduleName("/data/FT0A_2024-01-02.csv", config))
}
