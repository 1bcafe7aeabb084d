package sinks

import (
	"context"
	"sync"

	"github.com/edupack/concord-stager/internal/progress"
)

// MemorySink keeps a rolling snapshot of run progress for the status API.
type MemorySink struct {
	mu       sync.Mutex
	snapshot Snapshot
}

// Snapshot is the aggregate view served to status clients.
type Snapshot struct {
	RunID       string `json:"run_id,omitempty"`
	Running     bool   `json:"running"`
	Started     int    `json:"entries_started"`
	Filtered    int    `json:"entries_filtered"`
	Failed      int    `json:"entries_failed"`
	Packaged    int    `json:"entries_packaged"`
	AssetsOK    int    `json:"assets_ok"`
	AssetsError int    `json:"assets_error"`
	Bytes       int64  `json:"bytes_downloaded"`
}

// NewMemorySink builds an empty sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Consume folds the batch into the snapshot.
func (s *MemorySink) Consume(_ context.Context, batch []progress.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageRunStart:
			s.snapshot = Snapshot{RunID: evt.RunUUID().String(), Running: true}
		case progress.StageRunDone:
			s.snapshot.Running = false
		case progress.StageEntryStart:
			s.snapshot.Started++
		case progress.StageEntryFiltered:
			s.snapshot.Filtered++
		case progress.StageEntryFailed:
			s.snapshot.Failed++
		case progress.StageEntryPackaged:
			s.snapshot.Packaged++
		case progress.StageAssetDone:
			if evt.StatusClass == progress.Status2xx {
				s.snapshot.AssetsOK++
			} else {
				s.snapshot.AssetsError++
			}
			s.snapshot.Bytes += evt.Bytes
		}
	}
	return nil
}

// Snapshot returns a copy of the current aggregate view.
func (s *MemorySink) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// Close implements the Sink interface; it performs no action.
func (s *MemorySink) Close(context.Context) error {
	return nil
}
