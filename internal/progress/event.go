// Package progress defines the event stream emitted while a catalog run
// resolves, stages, and packages entries.
package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the milestone an Event represents.
type Stage string

// Supported progress stages.
const (
	StageRunStart      Stage = "RUN_START"
	StageRunDone       Stage = "RUN_DONE"
	StageEntryStart    Stage = "ENTRY_START"
	StageEntryFiltered Stage = "ENTRY_FILTERED"
	StageEntryFailed   Stage = "ENTRY_FAILED"
	StageEntryPackaged Stage = "ENTRY_PACKAGED"
	StageAssetDone     Stage = "ASSET_DONE"
)

// StatusClass is a coarse HTTP response grouping.
type StatusClass string

// Supported status classes for asset completions.
const (
	Status2xx   StatusClass = "2xx"
	Status3xx   StatusClass = "3xx"
	Status4xx   StatusClass = "4xx"
	Status5xx   StatusClass = "5xx"
	StatusOther StatusClass = "other"
)

// Event captures one milestone of run progress.
type Event struct {
	// RunID identifies the catalog run in 16-byte UUID form.
	RunID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage names the milestone.
	Stage Stage
	// EntryID scopes entry and asset events to a catalog entry.
	EntryID string
	// URL is the optional remote URL involved.
	URL string
	// Bytes carries the download size for asset completions.
	Bytes int64
	// StatusClass groups the HTTP status for asset completions.
	StatusClass StatusClass
	// Dur captures latency for entry and run completions.
	Dur time.Duration
	// Note carries low-volume context such as failure detail.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == [16]byte{} {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone:
	case StageEntryStart, StageEntryFiltered, StageEntryFailed, StageEntryPackaged:
		if e.EntryID == "" {
			return fmt.Errorf("%s requires entry id", e.Stage)
		}
	case StageAssetDone:
		if e.EntryID == "" {
			return errors.New("asset done requires entry id")
		}
		if e.StatusClass == "" {
			return errors.New("asset done requires status class")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// RunUUID converts the binary run ID to uuid.UUID form.
func (e Event) RunUUID() uuid.UUID {
	return uuid.UUID(e.RunID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}

// ClassifyStatus groups HTTP status codes for asset events.
func ClassifyStatus(code int) StatusClass {
	switch {
	case code >= 200 && code < 300:
		return Status2xx
	case code >= 300 && code < 400:
		return Status3xx
	case code >= 400 && code < 500:
		return Status4xx
	case code >= 500 && code < 600:
		return Status5xx
	default:
		return StatusOther
	}
}
