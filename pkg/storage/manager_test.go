package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "wosexport/pkg/errors"
	"wosexport/pkg/pacing"
	"wosexport/pkg/plan"
)

func newManager(t *testing.T, onPoll func()) *Manager {
	t.Helper()
	p := pacing.New(pacing.WithSeed(1), pacing.WithSleeper(func(ctx context.Context, d time.Duration) error {
		if onPoll != nil {
			onPoll()
		}
		return ctx.Err()
	}))
	m, err := NewManager(filepath.Join(t.TempDir(), "downloads"), p, pacing.Seconds(0.01, 0.02, 1), nil)
	require.NoError(t, err)
	return m
}

func write(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestSnapshotIgnoresPartialAndHiddenFiles(t *testing.T) {
	m := newManager(t, nil)
	write(t, m.Dir(), "savedrecs.txt", "FN Clarivate")
	write(t, m.Dir(), "savedrecs (1).txt.crdownload", "partial")
	write(t, m.Dir(), ".DS_Store", "")
	require.NoError(t, os.Mkdir(filepath.Join(m.Dir(), "sub"), 0755))

	snap, err := m.Snapshot()
	require.NoError(t, err)
	assert.Len(t, snap, 1)
	assert.Contains(t, snap, "savedrecs.txt")
}

func TestWaitForNewFindsFileAfterPolling(t *testing.T) {
	var m *Manager
	polls := 0
	m = newManager(t, func() {
		polls++
		switch polls {
		case 1:
			write(t, m.Dir(), "savedrecs.txt.crdownload", "half")
		case 2:
			require.NoError(t, os.Rename(
				filepath.Join(m.Dir(), "savedrecs.txt.crdownload"),
				filepath.Join(m.Dir(), "savedrecs.txt")))
		}
	})
	write(t, m.Dir(), "older.txt", "old export")

	before, err := m.Snapshot()
	require.NoError(t, err)

	path, err := m.WaitForNew(context.Background(), before, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(m.Dir(), "savedrecs.txt"), path)
	assert.Equal(t, 2, polls)
}

func TestWaitForNewIgnoresEmptyFiles(t *testing.T) {
	var m *Manager
	polls := 0
	m = newManager(t, func() {
		polls++
		if polls == 2 {
			write(t, m.Dir(), "savedrecs.txt", "content")
		}
	})
	write(t, m.Dir(), "savedrecs.txt", "")

	path, err := m.WaitForNew(context.Background(), Snapshot{}, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "savedrecs.txt", filepath.Base(path))
	assert.Equal(t, 2, polls)
}

func TestWaitForNewTimesOut(t *testing.T) {
	m := newManager(t, nil)

	_, err := m.WaitForNew(context.Background(), Snapshot{}, -time.Second)
	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypeExportTimeout), "got %v", err)
}

func TestWaitForNewHonorsCancellation(t *testing.T) {
	m := newManager(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.WaitForNew(ctx, Snapshot{}, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClaimRenamesDeterministically(t *testing.T) {
	m := newManager(t, nil)
	q := "SO=(Water Research)"
	r := plan.Range{Start: 501, End: 1000}

	src := write(t, m.Dir(), "savedrecs.txt", "first")
	claimed, err := m.Claim(src, q, r)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(m.Dir(), FileName(q, r)), claimed)
	assert.NoFileExists(t, src)
	assert.Regexp(t, `^so_water_research-[0-9a-f]{8}_501-1000\.txt$`, filepath.Base(claimed))

	// A re-export of the same range replaces the earlier file
	src2 := write(t, m.Dir(), "savedrecs (1).txt", "second")
	claimed2, err := m.Claim(src2, q, r)
	require.NoError(t, err)
	assert.Equal(t, claimed, claimed2)
	data, _ := os.ReadFile(claimed2)
	assert.Equal(t, "second", string(data))

	// Claiming the already-named file is a no-op
	again, err := m.Claim(claimed2, q, r)
	require.NoError(t, err)
	assert.Equal(t, claimed2, again)
}

func TestIsPartial(t *testing.T) {
	assert.True(t, IsPartial("a.txt.crdownload"))
	assert.True(t, IsPartial("A.TXT.PART"))
	assert.False(t, IsPartial("savedrecs.txt"))
}
