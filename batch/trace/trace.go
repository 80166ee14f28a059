// Package trace records per-unit and per-batch outcomes of a batch run.
// This package has no dependencies on batch/; it stores pure data types.
package trace

// Stage names the part of a unit's work that failed.
type Stage string

const (
	// StageNone marks a unit that produced a sample.
	StageNone Stage = ""
	// StageExecute covers engine start, control hook, and engine exit.
	StageExecute Stage = "execute"
	// StageExtract covers reading and parsing the trip-log artifact.
	StageExtract Stage = "extract"
)

// RunTrace collects outcome records during one pipeline run.
// It is written only by the coordinating goroutine.
type RunTrace struct {
	Units   []UnitRecord
	Batches []BatchRecord
}

// NewRunTrace creates a RunTrace ready for recording.
func NewRunTrace() *RunTrace {
	return &RunTrace{
		Units:   make([]UnitRecord, 0),
		Batches: make([]BatchRecord, 0),
	}
}

// RecordUnit appends a unit outcome record.
func (rt *RunTrace) RecordUnit(record UnitRecord) {
	rt.Units = append(rt.Units, record)
}

// RecordBatch appends a batch completion record.
func (rt *RunTrace) RecordBatch(record BatchRecord) {
	rt.Batches = append(rt.Batches, record)
}

// Failures returns the records of units that produced no sample, in recording order.
func (rt *RunTrace) Failures() []UnitRecord {
	if rt == nil {
		return nil
	}
	var out []UnitRecord
	for _, u := range rt.Units {
		if !u.OK {
			out = append(out, u)
		}
	}
	return out
}
