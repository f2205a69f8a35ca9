// Package telemetry provides a JSONL event stream recording what an
// orchestration run did: every batch start, per-component state
// change, backup, and completion becomes a structured event, making
// installs auditable after the fact.
package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Event kinds identify the type of audit event.
const (
	KindBatchStart     = "batch_start"
	KindBatchDone      = "batch_done"
	KindComponentState = "component_state"
	KindBackupCreated  = "backup_created"
	KindBackupPruned   = "backup_pruned"
	KindRestoreDone    = "restore_done"
	KindMigration      = "migration"
)

// Event is a single audit record: a timestamp, a kind tag, optional
// component context, and arbitrary structured data.
type Event struct {
	Timestamp time.Time `json:"ts"`
	Kind      string    `json:"kind"`
	Batch     string    `json:"batch,omitempty"`
	Component string    `json:"component,omitempty"`
	Data      any       `json:"data,omitempty"`
}

// Emitter appends audit events to a JSONL file. It is safe for
// concurrent use; a nil *Emitter is a valid no-op emitter, so callers
// never branch on whether auditing is enabled.
type Emitter struct {
	file *os.File
	enc  *json.Encoder
	mu   sync.Mutex
}

// NewEmitter opens (or creates) the JSONL audit file at path for
// appending.
func NewEmitter(path string) (*Emitter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("telemetry: open %s: %w", path, err)
	}
	return &Emitter{file: f, enc: json.NewEncoder(f)}, nil
}

// Emit writes a single event, stamping the time when the caller left
// it zero. Calling Emit on a nil Emitter is a no-op.
func (e *Emitter) Emit(evt Event) error {
	if e == nil {
		return nil
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enc.Encode(evt); err != nil {
		return fmt.Errorf("telemetry: encode event: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying file. Calling Close on a nil
// Emitter is a no-op.
func (e *Emitter) Close() error {
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.file.Close(); err != nil {
		return fmt.Errorf("telemetry: close: %w", err)
	}
	return nil
}
