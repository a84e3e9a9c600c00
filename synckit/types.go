package synckit

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/c0deZ3R0/go-inventory-sync/errors"
)

// ID identifies a resource. Server-assigned IDs are positive, temporary IDs
// handed out by the optimistic mutator are negative.
type ID = int64

// IsTemp reports whether id was assigned locally and not yet confirmed.
func IsTemp(id ID) bool { return id < 0 }

// Entity is implemented by every resource a Store can hold.
type Entity[T any] interface {
	Key() ID
	WithKey(ID) T
}

// OpType names the kind of mutation a PendingOperation replays.
type OpType string

const (
	OpCreate    OpType = "create"
	OpUpdate    OpType = "update"
	OpDelete    OpType = "delete"
	OpAddTag    OpType = "addTag"
	OpRemoveTag OpType = "removeTag"
)

// PendingOperation is a mutation recorded while offline, replayed by the
// engine once connectivity returns.
type PendingOperation struct {
	ID        string          `json:"id"`
	Type      OpType          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
	Endpoint  string          `json:"endpoint"`
	Method    string          `json:"method"`
	TempID    *ID             `json:"tempId,omitempty"`
	Targets   []ID            `json:"targets,omitempty"`
}

// LogValue implements slog.LogValuer. Payloads are left out on purpose.
func (op PendingOperation) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("id", op.ID),
		slog.String("type", string(op.Type)),
		slog.String("method", op.Method),
		slog.String("endpoint", op.Endpoint),
	}
	if op.TempID != nil {
		attrs = append(attrs, slog.Int64("temp_id", *op.TempID))
	}
	if len(op.Targets) > 0 {
		attrs = append(attrs, slog.Any("targets", op.Targets))
	}
	return slog.GroupValue(attrs...)
}

// Target returns the first target of the operation, or 0.
func (op PendingOperation) Target() ID {
	if len(op.Targets) == 0 {
		return 0
	}
	return op.Targets[0]
}

func (op PendingOperation) clone() PendingOperation {
	c := op
	if op.Data != nil {
		c.Data = append(json.RawMessage(nil), op.Data...)
	}
	if op.TempID != nil {
		id := *op.TempID
		c.TempID = &id
	}
	if op.Targets != nil {
		c.Targets = append([]ID(nil), op.Targets...)
	}
	return c
}

func cloneOps(ops []PendingOperation) []PendingOperation {
	if len(ops) == 0 {
		return nil
	}
	out := make([]PendingOperation, len(ops))
	for i, op := range ops {
		out[i] = op.clone()
	}
	return out
}

// State is a point-in-time copy of a Store.
type State[T any] struct {
	Items             []T
	IsLoading         bool
	Error             string
	ErrorKind         errors.Kind
	LastFetched       time.Time
	IsOnline          bool
	PendingOperations []PendingOperation
	// Unrecoverable holds queued operations the engine could not route.
	// They are kept until dismissed.
	Unrecoverable []PendingOperation
}

// DrainResult contains the outcome of a single drain pass.
type DrainResult struct {
	Domain    string
	StartTime time.Time
	Duration  time.Duration

	Attempted int
	Succeeded int
	Failed    int
	Dropped   int
	// Deferred counts operations held back because they target a temp ID
	// whose create has not been confirmed yet.
	Deferred int

	// Promoted maps temp IDs to the server IDs confirmed during the pass.
	Promoted map[ID]ID

	// Skipped is set when the pass did nothing: offline or empty queue.
	Skipped bool
	// Coalesced is set when another pass was already running. That pass
	// picks up whatever this trigger would have sent.
	Coalesced bool
	// Interrupted is set when connectivity was lost mid-pass.
	Interrupted bool

	Errors []error
}
