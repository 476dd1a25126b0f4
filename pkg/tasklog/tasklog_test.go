package tasklog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wosexport/pkg/logger"
)

const waterQuery = "SO=(Water Research)"

func newStore(t *testing.T) (*Store, *logger.TestLogger) {
	t.Helper()
	tl := logger.NewTestLogger()
	s, err := NewStore(filepath.Join(t.TempDir(), "logs"), "task_log_", tl)
	require.NoError(t, err)
	return s, tl
}

func TestAppendAndRead(t *testing.T) {
	s, _ := newStore(t)

	require.NoError(t, s.Append(Record{Query: waterQuery, Start: 1, End: 500, Status: StatusSuccess, File: "a.txt"}))
	require.NoError(t, s.Append(Record{Query: waterQuery, Start: 501, End: 1000, Status: StatusFailure, Error: "timeout"}))

	records, err := s.Read(waterQuery)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, 1, records[0].Start)
	assert.True(t, records[0].Succeeded())
	assert.False(t, records[0].Timestamp.IsZero(), "timestamp should be filled in")
	assert.Equal(t, "501-1000", records[1].Range().String())
	assert.Equal(t, "timeout", records[1].Error)
}

func TestRecordWireFormat(t *testing.T) {
	s, _ := newStore(t)
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.Append(Record{
		Query:     waterQuery,
		Start:     1,
		End:       500,
		Status:    StatusSuccess,
		Timestamp: ts,
		SortBy:    SortOldestFirst,
	}))

	data, err := os.ReadFile(s.Path(waterQuery))
	require.NoError(t, err)
	line := string(data)

	for _, want := range []string{
		`"query_content":"SO=(Water Research)"`,
		`"start_record":1`,
		`"end_record":500`,
		`"status":"success"`,
		`"timestamp":"2024-05-01T10:00:00Z"`,
	} {
		assert.Contains(t, line, want)
	}
	assert.NotContains(t, line, "error_msg", "empty error should be omitted")
	assert.True(t, strings.HasSuffix(line, "}\n"))
}

func TestReadMissingFile(t *testing.T) {
	s, _ := newStore(t)
	records, err := s.Read("TS=(never run)")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestReadSkipsMalformedLines(t *testing.T) {
	s, tl := newStore(t)
	require.NoError(t, s.Append(Record{Query: waterQuery, Start: 1, End: 500, Status: StatusSuccess}))

	f, err := os.OpenFile(s.Path(waterQuery), os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString("{\"query_content\":\"SO=(Water\n\nnot json at all\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.NoError(t, s.Append(Record{Query: waterQuery, Start: 501, End: 700, Status: StatusSuccess}))

	records, err := s.Read(waterQuery)
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.NotEmpty(t, tl.GetMessagesByLevel("WARN"))
}

func TestReadAllFiltersByPrefix(t *testing.T) {
	s, _ := newStore(t)
	require.NoError(t, s.Append(Record{Query: waterQuery, Start: 1, End: 500, Status: StatusSuccess}))
	require.NoError(t, s.Append(Record{Query: "TS=(soil)", Start: 1, End: 10, Status: StatusFailure}))

	// Files that do not carry the prefix or extension are ignored
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "other.jsonl"), []byte(`{"query_content":"x","status":"success"}`+"\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "task_log_notes.txt"), []byte("hello"), 0644))

	files, err := s.Files()
	require.NoError(t, err)
	assert.Len(t, files, 2)

	all, err := s.ReadAll()
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Len(t, Filter(all, waterQuery), 1)
}

func TestDistinctQueriesUseDistinctFiles(t *testing.T) {
	s, _ := newStore(t)
	assert.NotEqual(t, s.Path("SO=(Water Research)"), s.Path("SO=(Water Research) AND PY=(2020)"))
	assert.True(t, strings.HasPrefix(filepath.Base(s.Path(waterQuery)), "task_log_so_water_research-"))
}
