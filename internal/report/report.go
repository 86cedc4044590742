// Package report writes the per-run artifact files: the roam event
// log, sampled node positions, and a run summary. Everything is plain
// CSV so the files load directly into analysis notebooks.
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/jafarizadeh/wifi-ter-sim/core"
	"github.com/jafarizadeh/wifi-ter-sim/model"
)

// Writer emits report files into a single output directory.
type Writer struct {
	dir string
}

// NewWriter creates the output directory if needed.
func NewWriter(dir string) (*Writer, error) {
	if dir == "" {
		return nil, fmt.Errorf("report: empty output directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("report: create %s: %w", dir, err)
	}
	return &Writer{dir: dir}, nil
}

// WriteRoamEvents writes roam_events.csv. Times are seconds relative
// to epoch.
func (w *Writer) WriteRoamEvents(events []model.RoamEvent, epoch time.Time) error {
	return w.writeCSV("roam_events.csv", [][]string{{"time_s", "event_type", "link_id"}}, func(rows [][]string) [][]string {
		for _, ev := range events {
			rows = append(rows, []string{
				formatSeconds(ev.Time.Sub(epoch)),
				string(ev.Type),
				ev.LinkID,
			})
		}
		return rows
	})
}

// PositionSample is one node position observation.
type PositionSample struct {
	Time   time.Time
	NodeID string
	Pos    core.Vec3
}

// PositionLog accumulates position samples from the tick loop.
type PositionLog struct {
	mu      sync.Mutex
	samples []PositionSample
}

// NewPositionLog returns an empty log.
func NewPositionLog() *PositionLog {
	return &PositionLog{}
}

// Add records one sample.
func (l *PositionLog) Add(t time.Time, nodeID string, pos core.Vec3) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.samples = append(l.samples, PositionSample{Time: t, NodeID: nodeID, Pos: pos})
}

// Samples returns a copy of the accumulated samples.
func (l *PositionLog) Samples() []PositionSample {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]PositionSample, len(l.samples))
	copy(out, l.samples)
	return out
}

// WritePositionSamples writes positions.csv.
func (w *Writer) WritePositionSamples(samples []PositionSample, epoch time.Time) error {
	return w.writeCSV("positions.csv", [][]string{{"time_s", "node_id", "x_m", "y_m", "z_m"}}, func(rows [][]string) [][]string {
		for _, s := range samples {
			rows = append(rows, []string{
				formatSeconds(s.Time.Sub(epoch)),
				s.NodeID,
				formatFloat(s.Pos.X),
				formatFloat(s.Pos.Y),
				formatFloat(s.Pos.Z),
			})
		}
		return rows
	})
}

// RunSummary aggregates the headline numbers of one run.
type RunSummary struct {
	Duration     time.Duration
	TickInterval time.Duration
	RoamCount    int
	// FirstRoamAfter is the offset of the first ROAM event from the run
	// start; HasRoamed is false when no roam occurred.
	FirstRoamAfter time.Duration
	HasRoamed      bool
}

// WriteSummary writes summary.csv as key,value rows.
func (w *Writer) WriteSummary(s RunSummary) error {
	firstRoam := ""
	if s.HasRoamed {
		firstRoam = formatSeconds(s.FirstRoamAfter)
	}
	rows := [][]string{
		{"key", "value"},
		{"duration_s", formatSeconds(s.Duration)},
		{"tick_interval_s", formatSeconds(s.TickInterval)},
		{"roam_count", strconv.Itoa(s.RoamCount)},
		{"first_roam_time_s", firstRoam},
	}
	return w.writeCSV("summary.csv", rows, nil)
}

func (w *Writer) writeCSV(name string, rows [][]string, fill func([][]string) [][]string) error {
	if fill != nil {
		rows = fill(rows)
	}

	path := filepath.Join(w.dir, name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: create %s: %w", path, err)
	}

	cw := csv.NewWriter(f)
	if err := cw.WriteAll(rows); err != nil {
		f.Close()
		return fmt.Errorf("report: write %s: %w", path, err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		f.Close()
		return fmt.Errorf("report: flush %s: %w", path, err)
	}
	return f.Close()
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 6, 64)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
