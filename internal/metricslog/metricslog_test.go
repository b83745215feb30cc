package metricslog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/llmgate/llmgate/internal/dispatch"
)

func rec(start time.Time, status int, dur time.Duration, tps float64, retries int) dispatch.Record {
	return dispatch.Record{
		ModelKey: "MOCK/echo",
		CallStartTime: start,
		CallEndTime: start.Add(dur),
		CallDuration: dur,
		StatusCode: status,
		TokensPerSecond: tps,
		InternalRetries: retries,
	}
}

func TestAddLogStaysWithinBudgetUntilHousekeeping(t *testing.T) {
	m := New(Config{BaseDir: t.TempDir(), MaxLogLength: 3})
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 2; i++ {
		m.AddLog("MOCK/echo", rec(base.Add(time.Duration(i)*time.Second), 200, time.Second, 10, 0))
	}

	m.mu.Lock()
	total := m.total
	m.mu.Unlock()
	require.Equal(t, 2, total)
}

func TestHousekeepingArchivesAndEnforcesRetention(t *testing.T) {
	dir := t.TempDir()
	m := New(Config{BaseDir: dir, MaxLogLength: 1, MaxLogArchiveFiles: 1})
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	m.AddLog("MOCK/echo", rec(base, 200, time.Second, 10, 0))
	m.AddLog("MOCK/echo", rec(base.Add(time.Minute), 200, time.Second, 10, 0))
	require.NoError(t, m.pool.Wait())

	m.mu.Lock()
	require.Empty(t, m.records["MOCK/echo"])
	m.mu.Unlock()

	archiveDir := filepath.Join(dir, "MOCK_echo")
	entries, err := os.ReadDir(archiveDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	m.AddLog("MOCK/echo", rec(base.Add(2*time.Minute), 200, time.Second, 10, 0))
	m.AddLog("MOCK/echo", rec(base.Add(3*time.Minute), 200, time.Second, 10, 0))
	require.NoError(t, m.pool.Wait())

	entries, err = os.ReadDir(archiveDir)
	require.NoError(t, err)
	require.LessOrEqual(t, len(entries), 1)
}

func TestGetLogsCombinesMemoryAndArchiveDescending(t *testing.T) {
	dir := t.TempDir()
	m := New(Config{BaseDir: dir, MaxLogLength: 1000, MaxLogArchiveFiles: 10})
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, m.archive("MOCK/echo", []dispatch.Record{
				rec(base, 200, time.Second, 5, 0),
				rec(base.Add(time.Minute), 200, time.Second, 5, 0),
	}))

	m.AddLog("MOCK/echo", rec(base.Add(2*time.Minute), 200, 2*time.Second, 20, 1))

	stats, recs, err := m.GetLogs("MOCK/echo", nil, nil, 10)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	require.True(t, recs[0].CallStartTime.After(recs[1].CallStartTime))
	require.Equal(t, 3, stats.TotalRequests)
	require.Equal(t, 1.0, stats.PercentSuccess)
}

func TestGetLogsFiltersByWindow(t *testing.T) {
	m := New(Config{BaseDir: t.TempDir(), MaxLogLength: 1000})
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.AddLog("MOCK/echo", rec(base, 200, time.Second, 5, 0))
	m.AddLog("MOCK/echo", rec(base.Add(time.Hour), 200, time.Second, 5, 0))

	windowEnd := base.Add(30 * time.Minute)
	_, recs, err := m.GetLogs("MOCK/echo", nil, &windowEnd, 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
}

func TestDescribeStdDevZeroOnSingleton(t *testing.T) {
	mean, median, max, min, stddev := describe([]float64{5})
	require.Equal(t, 5.0, mean)
	require.Equal(t, 5.0, median)
	require.Equal(t, 5.0, max)
	require.Equal(t, 5.0, min)
	require.Equal(t, 0.0, stddev)
}

func TestSanitizeKeyReplacesReservedCharacters(t *testing.T) {
	require.Equal(t, "AWS_claude-3_opus", sanitizeKey(`AWS/claude-3:opus`))
}
