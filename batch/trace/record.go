package trace

import "time"

// UnitRecord captures the outcome of a single scenario unit.
type UnitRecord struct {
	UnitID   string
	Batch    int // zero-based batch index
	Position int // position within the batch
	OK       bool
	Stage    Stage  // StageNone when OK
	Reason   string // error text when !OK
	Elapsed  time.Duration

	AverageDuration float64 // zero when !OK
	VehicleCount    int
}

// BatchRecord captures one completed batch.
type BatchRecord struct {
	Index     int
	Size      int
	Succeeded int
	Elapsed   time.Duration
}
