package archive

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "wosexport/pkg/errors"
	"wosexport/pkg/logger"
)

const waterExport = "\ufeffFN Clarivate Analytics Web of Science\nVR 1.0\nPT J\nAU Smith, J\nTI Nitrate removal in constructed wetlands\nSO WATER RESEARCH\nVL 41\nSN 0043-1354\nPY 2007\nER\n\nPT J\nSO WATER RESEARCH\nER\n\nEF\n"

const energyExport = "FN Clarivate Analytics Web of Science\nVR 1.0\nPT J\nSO APPLIED ENERGY\nSN 0306-2619\nER\n\nEF\n"

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestParseHeader(t *testing.T) {
	h, err := parseHeader(strings.NewReader(waterExport))
	require.NoError(t, err)
	assert.Equal(t, Header{Source: "WATER RESEARCH", ISSN: "0043-1354"}, h)
	assert.Equal(t, "WATER_RESEARCH_ISSN0043-1354", h.Folder())

	h, err = parseHeader(strings.NewReader("PT J\nTI No source here\nER\nSO LATER RECORD\n"))
	require.NoError(t, err)
	assert.Empty(t, h.Source, "only the first record is inspected")
}

func TestFolderReplacesSeparators(t *testing.T) {
	h := Header{Source: "JOURNAL OF WATER/WASTE", ISSN: "1234-5678"}
	assert.Equal(t, "JOURNAL_OF_WATER_WASTE_ISSN1234-5678", h.Folder())
	assert.Equal(t, "JOURNAL_OF_WATER_WASTE", Header{Source: h.Source}.Folder())
}

func TestRelocateMovesOnlyMatchingFiles(t *testing.T) {
	root := t.TempDir()
	downloads := filepath.Join(root, "downloads")
	logs := filepath.Join(root, "logs")
	target := filepath.Join(root, "archive")

	write(t, filepath.Join(downloads, "so_water_research-1a2b3c4d_1-500.txt"), waterExport)
	write(t, filepath.Join(downloads, "nested", "so_water_research-1a2b3c4d_501-900.txt"), waterExport)
	write(t, filepath.Join(downloads, "so_applied_energy-9f8e7d6c_1-500.txt"), energyExport)
	write(t, filepath.Join(downloads, "savedrecs.txt.crdownload"), waterExport)
	write(t, filepath.Join(logs, "task_log_so_water_research-1a2b3c4d.jsonl"),
		`{"query_content":"SO=(Water Research)","start_record":1,"end_record":500,"status":"success"}`+"\n")
	write(t, filepath.Join(logs, "download_task_so_water_research-1a2b3c4d.json"),
		`{"query":"SO=(Water Research)","next_index":2}`)
	write(t, filepath.Join(logs, "task_log_so_applied_energy-9f8e7d6c.jsonl"),
		`{"query_content":"SO=(Applied Energy)","start_record":1,"end_record":500,"status":"success"}`+"\n")
	write(t, filepath.Join(logs, "notes.json"), "not json")

	res, err := NewRelocator(logger.NewTestLogger()).Relocate(Request{
		Journal: "Water Research",
		Exports: []string{downloads},
		Logs:    []string{logs},
		Target:  target,
	})
	require.NoError(t, err)

	folder := "WATER_RESEARCH_ISSN0043-1354"
	assert.Equal(t, folder, res.Folder)
	assert.Equal(t, 2, res.ExportsFound)
	assert.Equal(t, 2, res.LogsFound)
	assert.Equal(t, 4, res.Moved)

	assert.FileExists(t, filepath.Join(target, folder, "so_water_research-1a2b3c4d_1-500.txt"))
	assert.FileExists(t, filepath.Join(target, folder, "so_water_research-1a2b3c4d_501-900.txt"))
	assert.FileExists(t, filepath.Join(target, folder+"_task_log_so_water_research-1a2b3c4d.jsonl"))
	assert.FileExists(t, filepath.Join(target, folder+"_download_task_so_water_research-1a2b3c4d.json"))

	assert.FileExists(t, filepath.Join(downloads, "so_applied_energy-9f8e7d6c_1-500.txt"))
	assert.FileExists(t, filepath.Join(downloads, "savedrecs.txt.crdownload"))
	assert.FileExists(t, filepath.Join(logs, "task_log_so_applied_energy-9f8e7d6c.jsonl"))
	assert.FileExists(t, filepath.Join(logs, "notes.json"))
	assert.NoFileExists(t, filepath.Join(downloads, "so_water_research-1a2b3c4d_1-500.txt"))

	data, err := os.ReadFile(res.LogPath)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(target, folder+LogSuffix), res.LogPath)
	assert.Contains(t, string(data), "Export files matching journal: 2")
	assert.Contains(t, string(data), "Files moved: 4")
}

func TestRelocateMatchesWholeSourceTag(t *testing.T) {
	root := t.TempDir()
	downloads := filepath.Join(root, "downloads")
	target := filepath.Join(root, "archive")

	write(t, filepath.Join(downloads, "so_water_research-1a2b3c4d_1-500.txt"), waterExport)
	write(t, filepath.Join(downloads, "so_water_research_x-5e6f7a8b_1-500.txt"),
		"FN Clarivate Analytics Web of Science\nVR 1.0\nPT J\nSO WATER RESEARCH X\nSN 2589-9147\nER\n\nEF\n")

	res, err := NewRelocator(logger.NewTestLogger()).Relocate(Request{
		Journal: "Water Research",
		Exports: []string{downloads},
		Target:  target,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, res.ExportsFound)
	assert.FileExists(t, filepath.Join(target, "WATER_RESEARCH_ISSN0043-1354", "so_water_research-1a2b3c4d_1-500.txt"))
	assert.FileExists(t, filepath.Join(downloads, "so_water_research_x-5e6f7a8b_1-500.txt"))
}

func TestRelocateSkipsTargetInsideSource(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "archive")
	write(t, filepath.Join(root, "a.txt"), waterExport)

	r := NewRelocator(nil)
	res, err := r.Relocate(Request{Journal: "water research", Exports: []string{root}, Target: target})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Moved)

	// A second pass finds nothing because the archive is not rescanned
	res, err = r.Relocate(Request{Journal: "water research", Exports: []string{root}, Target: target})
	require.NoError(t, err)
	assert.Zero(t, res.Moved)
	assert.Empty(t, res.Folder)
}

func TestRelocateDryRun(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "downloads", "a.txt")
	write(t, src, waterExport)

	res, err := NewRelocator(nil).Relocate(Request{
		Journal: "Water Research",
		Exports: []string{filepath.Join(root, "downloads")},
		Target:  filepath.Join(root, "archive"),
		DryRun:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Moved)
	assert.Empty(t, res.LogPath)
	assert.FileExists(t, src)
	assert.NoDirExists(t, filepath.Join(root, "archive"))
}

func TestRelocateMissingSourceIsEmpty(t *testing.T) {
	root := t.TempDir()
	res, err := NewRelocator(nil).Relocate(Request{
		Journal: "Water Research",
		Exports: []string{filepath.Join(root, "nope")},
		Target:  filepath.Join(root, "archive"),
	})
	require.NoError(t, err)
	assert.Zero(t, res.Moved)
}

func TestRelocateValidation(t *testing.T) {
	r := NewRelocator(nil)
	_, err := r.Relocate(Request{Journal: " ", Target: t.TempDir()})
	assert.True(t, errs.IsType(err, errs.ErrorTypeValidation))

	_, err = r.Relocate(Request{Journal: "Water Research"})
	assert.True(t, errs.IsType(err, errs.ErrorTypeValidation))
}
