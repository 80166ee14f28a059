package batch

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Sink receives each batch's samples after the batch has fully resolved.
type Sink interface {
	Append(samples []MetricSample) error
}

// CSV column headers for the result table.
var resultColumns = []string{"Experiments", "AverageDuration", "VehicleCount"}

// ResultColumns returns a copy of the result table header.
func ResultColumns() []string {
	return append([]string(nil), resultColumns...)
}

// CSVSink is the append-only result table. It is not safe for concurrent use; only the
// coordinating goroutine writes to it.
type CSVSink struct {
	path string
}

// NewCSVSink creates a sink for the table at path. Nothing is written until Init.
func NewCSVSink(path string) *CSVSink {
	return &CSVSink{path: path}
}

// Path returns the table location.
func (s *CSVSink) Path() string { return s.path }

// Init truncates the table and writes the header row.
func (s *CSVSink) Init() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}
	file, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("creating result table: %w", err)
	}
	return writeRows(file, [][]string{resultColumns})
}

// Append writes samples in order and syncs the file before returning.
func (s *CSVSink) Append(samples []MetricSample) error {
	file, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening result table: %w", err)
	}
	rows := make([][]string, 0, len(samples))
	for _, m := range samples {
		rows = append(rows, []string{
			m.Experiment,
			formatAverage(m.AverageDuration),
			strconv.Itoa(m.VehicleCount),
		})
	}
	return writeRows(file, rows)
}

// formatAverage writes the shortest exact decimal, always with a fractional digit so the
// column reads as floating point: 20 -> "20.0", 12.25 -> "12.25".
func formatAverage(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if math.IsNaN(v) || math.IsInf(v, 0) || strings.Contains(s, ".") {
		return s
	}
	return s + ".0"
}

// writeRows writes, flushes, syncs, and closes file.
func writeRows(file *os.File, rows [][]string) error {
	writer := csv.NewWriter(file)
	if err := writer.WriteAll(rows); err != nil {
		_ = file.Close()
		return fmt.Errorf("writing CSV rows: %w", err)
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		return fmt.Errorf("syncing result table: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing result table: %w", err)
	}
	return nil
}
