// Package metricslog implements the Metrics Log Manager: a
// process-wide, per-model recorder with bounded in-memory history,
// archival to disk once that bound is exceeded, retention enforcement on
// the archive, and time-windowed queries with aggregate statistics.
// CPU-heavy work (JSON encode/decode, stats) is dispatched to a worker
// pool via golang.org/x/sync/errgroup, grounded on the concurrent
// validator-chain pattern in BaSui01-agentflow/agent/guardrails/chain.go,
// so the recorder's public API never blocks the dispatch core on it.
package metricslog

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/llmgate/llmgate/internal/dispatch"
)

// DefaultMaxLogLength is the total in-memory record budget across all
// model keys before housekeeping fires.
const DefaultMaxLogLength = 10_000

// DefaultMaxLogArchiveFiles is the retained archive-file count per model
// key; older files beyond this are deleted after housekeeping.
const DefaultMaxLogArchiveFiles = 100

var sanitizeRe = regexp.MustCompile(`[/\\:*?"<>|]`)

func sanitizeKey(key string) string {
	return sanitizeRe.ReplaceAllString(key, "_")
}

// Manager is the in-memory + on-disk metrics recorder. The
// zero value is not usable; construct with New.
type Manager struct {
	mu      sync.Mutex
	records map[string][]dispatch.Record
	total   int

	baseDir            string
	maxLogLength       int
	maxLogArchiveFiles int

	pool *errgroup.Group
}

// Config configures a Manager. Zero values fall back to the package
// defaults.
type Config struct {
	BaseDir            string
	MaxLogLength       int
	MaxLogArchiveFiles int
	// WorkerLimit bounds how many housekeeping jobs run
	// concurrently; zero means unbounded (errgroup's default). Archive
	// reads for queries do not use this pool.
	WorkerLimit int
}

// New builds a Manager. BaseDir is created on demand when archiving.
func New(cfg Config) *Manager {
	if cfg.BaseDir == "" {
		cfg.BaseDir = "metrics"
	}
	if cfg.MaxLogLength <= 0 {
		cfg.MaxLogLength = DefaultMaxLogLength
	}
	if cfg.MaxLogArchiveFiles <= 0 {
		cfg.MaxLogArchiveFiles = DefaultMaxLogArchiveFiles
	}
	pool := &errgroup.Group{}
	if cfg.WorkerLimit > 0 {
		pool.SetLimit(cfg.WorkerLimit)
	}
	return &Manager{
		records:            make(map[string][]dispatch.Record),
		baseDir:            cfg.BaseDir,
		maxLogLength:       cfg.MaxLogLength,
		maxLogArchiveFiles: cfg.MaxLogArchiveFiles,
		pool:               pool,
	}
}

// AddLog appends a record under modelKey and, if the in-memory budget is
// exceeded, dispatches housekeeping to the worker pool without blocking
// the caller.
func (m *Manager) AddLog(modelKey string, record dispatch.Record) {
	m.mu.Lock()
	m.records[modelKey] = append(m.records[modelKey], record)
	m.total++
	overBudget := m.total > m.maxLogLength
	m.mu.Unlock()

	if overBudget {
		m.pool.Go(func() error {
			m.housekeep()
			return nil
		})
	}
}

// housekeep archives every non-empty key's in-memory sequence to disk and
// clears it, then enforces per-model archive retention.
func (m *Manager) housekeep() {
	m.mu.Lock()
	keys := make([]string, 0, len(m.records))
	batches := make(map[string][]dispatch.Record, len(m.records))
	for key, recs := range m.records {
		if len(recs) == 0 {
			continue
		}
		cp := make([]dispatch.Record, len(recs))
		copy(cp, recs)
		batches[key] = cp
		keys = append(keys, key)
		m.total -= len(recs)
		m.records[key] = nil
	}
	m.mu.Unlock()

	for _, key := range keys {
		recs := batches[key]
		sort.Slice(recs, func(i, j int) bool { return recs[i].CallStartTime.Before(recs[j].CallStartTime) })
		if err := m.archive(key, recs); err != nil {
			continue
		}
		m.enforceRetention(key)
	}
}

func (m *Manager) archiveDir(key string) string {
	return filepath.Join(m.baseDir, sanitizeKey(key))
}

const archiveTimeLayout = "20060102150405"

func (m *Manager) archive(key string, recs []dispatch.Record) error {
	dir := m.archiveDir(key)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("metricslog: mkdir %s: %w", dir, err)
	}
	start := recs[0].CallStartTime.UTC().Format(archiveTimeLayout)
	end := recs[len(recs)-1].CallStartTime.UTC().Format(archiveTimeLayout)
	path := filepath.Join(dir, fmt.Sprintf("%s-%s.json", start, end))

	data, err := json.Marshal(recs)
	if err != nil {
		return fmt.Errorf("metricslog: marshal %s: %w", key, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("metricslog: write %s: %w", path, err)
	}
	return nil
}

// enforceRetention keeps at most maxLogArchiveFiles most-recent files (by
// modification time) per model key, deleting the oldest beyond that.
func (m *Manager) enforceRetention(key string) {
	dir := m.archiveDir(key)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	type fileInfo struct {
		name    string
		modTime time.Time
	}
	files := make([]fileInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, fileInfo{name: e.Name(), modTime: info.ModTime()})
	}
	if len(files) <= m.maxLogArchiveFiles {
		return
	}
	sort.Slice(files, func(i, j int) bool { return files[i].modTime.After(files[j].modTime) })
	for _, f := range files[m.maxLogArchiveFiles:] {
		_ = os.Remove(filepath.Join(dir, f.name))
	}
}

// Stats holds the aggregate figures computed over a GetLogs result.
type Stats struct {
	TotalRequests          int
	MeanDuration           time.Duration
	MedianDuration         time.Duration
	MaxDuration            time.Duration
	MinDuration            time.Duration
	StdDevDuration         time.Duration
	MeanTokensPerSecond    float64
	MedianTokensPerSecond  float64
	MaxTokensPerSecond     float64
	MinTokensPerSecond     float64
	StdDevTokensPerSecond  float64
	PercentSuccess         float64
	StatusCounter          map[int]int
	AverageInternalRetries float64
}

// GetLogs filters a model key's records by an optional inclusive time
// window, sorts descending by call start time, falls back to archived
// files (most-recent-first by mtime) to fill out limit, and computes
// aggregates over the final slice.
func (m *Manager) GetLogs(modelKey string, start, end *time.Time, limit int) (Stats, []dispatch.Record, error) {
	m.mu.Lock()
	inMemory := make([]dispatch.Record, len(m.records[modelKey]))
	copy(inMemory, m.records[modelKey])
	m.mu.Unlock()

	filtered := filterWindow(inMemory, start, end)
	sortDescending(filtered)

	if limit > 0 && len(filtered) < limit {
		archived, err := m.readArchive(modelKey, start, end, limit-len(filtered))
		if err != nil {
			return Stats{}, nil, err
		}
		filtered = append(filtered, archived...)
	}

	sortDescending(filtered)
	if limit > 0 && len(filtered) > limit {
		filtered = filtered[:limit]
	}

	return computeStats(filtered), filtered, nil
}

func filterWindow(recs []dispatch.Record, start, end *time.Time) []dispatch.Record {
	out := make([]dispatch.Record, 0, len(recs))
	for _, r := range recs {
		if start != nil && r.CallStartTime.Before(*start) {
			continue
		}
		if end != nil && r.CallStartTime.After(*end) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func sortDescending(recs []dispatch.Record) {
	sort.Slice(recs, func(i, j int) bool { return recs[i].CallStartTime.After(recs[j].CallStartTime) })
}

// readArchive reads the archived files for a key, most-recent-first by
// file modification time, filtering and accumulating until need records
// are gathered or the files are exhausted. Each file is read and decoded
// in its own errgroup goroutine, which is waited on before the next file.
func (m *Manager) readArchive(modelKey string, start, end *time.Time, need int) ([]dispatch.Record, error) {
	dir := m.archiveDir(modelKey)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("metricslog: read archive dir %s: %w", dir, err)
	}

	type fileInfo struct {
		name    string
		modTime time.Time
	}
	files := make([]fileInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, fileInfo{name: e.Name(), modTime: info.ModTime()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].modTime.After(files[j].modTime) })

	var out []dispatch.Record
	for _, f := range files {
		if len(out) >= need {
			break
		}
		path := filepath.Join(dir, f.name)
		var recs []dispatch.Record
		g := &errgroup.Group{}
		g.Go(func() error {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("metricslog: read %s: %w", path, err)
			}
			return json.Unmarshal(data, &recs)
		})
		if err := g.Wait(); err != nil {
			continue
		}
		out = append(out, filterWindow(recs, start, end)...)
	}
	return out, nil
}

func computeStats(recs []dispatch.Record) Stats {
	stats := Stats{TotalRequests: len(recs), StatusCounter: map[int]int{}}
	if len(recs) == 0 {
		return stats
	}

	durations := make([]float64, len(recs))
	tps := make([]float64, len(recs))
	successCount := 0
	retrySum := 0
	for i, r := range recs {
		durations[i] = r.CallDuration.Seconds()
		tps[i] = r.TokensPerSecond
		stats.StatusCounter[r.StatusCode]++
		if r.StatusCode >= 200 && r.StatusCode < 300 {
			successCount++
		}
		retrySum += r.InternalRetries
	}

	mean, median, max, min, stddev := describe(durations)
	stats.MeanDuration = time.Duration(mean * float64(time.Second))
	stats.MedianDuration = time.Duration(median * float64(time.Second))
	stats.MaxDuration = time.Duration(max * float64(time.Second))
	stats.MinDuration = time.Duration(min * float64(time.Second))
	stats.StdDevDuration = time.Duration(stddev * float64(time.Second))

	stats.MeanTokensPerSecond, stats.MedianTokensPerSecond, stats.MaxTokensPerSecond, stats.MinTokensPerSecond, stats.StdDevTokensPerSecond = describe(tps)

	stats.PercentSuccess = float64(successCount) / float64(len(recs))
	stats.AverageInternalRetries = float64(retrySum) / float64(len(recs))
	return stats
}

// describe returns mean/median/max/min/population-stddev of a slice;
// stddev is 0 on singletons.
func describe(vals []float64) (mean, median, max, min, stddev float64) {
	n := len(vals)
	if n == 0 {
		return 0, 0, 0, 0, 0
	}
	sorted := make([]float64, n)
	copy(sorted, vals)
	sort.Float64s(sorted)

	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	mean = sum / float64(n)
	max = sorted[n-1]
	min = sorted[0]
	if n%2 == 0 {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	} else {
		median = sorted[n/2]
	}
	if n < 2 {
		return mean, median, max, min, 0
	}
	variance := 0.0
	for _, v := range vals {
		d := v - mean
		variance += d * d
	}
	variance /= float64(n)
	stddev = math.Sqrt(variance)
	return mean, median, max, min, stddev
}
