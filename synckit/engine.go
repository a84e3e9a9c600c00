package synckit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/c0deZ3R0/go-inventory-sync/errors"
	"github.com/c0deZ3R0/go-inventory-sync/logging"
)

// Call performs one remote operation. Creates return the confirmed item;
// other operations may return nil.
type Call[T any] func(ctx context.Context, op PendingOperation) (*T, error)

// Route binds an operation type to its remote call.
type Route[T any] struct {
	Method string
	// Path renders the endpoint for op. It is re-rendered whenever a
	// temporary target is promoted.
	Path func(op PendingOperation) string
	Call Call[T]
}

// Domain is the route table that parameterizes an Engine.
type Domain[T any] struct {
	Name   string
	Routes map[OpType]Route[T]
	// List fetches the server's copy of the collection. Optional.
	List func(ctx context.Context) ([]T, error)
}

// Mutation describes a local change submitted through Engine.Execute.
type Mutation[T any] struct {
	Type OpType
	// Item is the new item for creates.
	Item T
	// Targets are the IDs an update, delete or tag operation applies to.
	Targets []ID
	// Apply produces the patched value for update and tag operations.
	Apply func(T) T
	// Data is the request payload. Creates default to Item.
	Data any
}

// Engine applies mutations optimistically, sends them or queues them
// depending on connectivity, and replays the queue when asked to drain.
type Engine[T Entity[T]] struct {
	store   *Store[T]
	domain  Domain[T]
	logger  *logging.Logger
	metrics MetricsCollector
	timeout time.Duration
	now     func() time.Time
	newID   func() string

	mu          sync.Mutex
	draining    bool
	rerun       bool
	closed      bool
	subscribers []func(*DrainResult)
}

// NewEngine creates an engine for store driven by domain's route table.
func NewEngine[T Entity[T]](store *Store[T], domain Domain[T], opts ...Option) *Engine[T] {
	o := applyOptions(opts)
	if domain.Name == "" {
		domain.Name = store.Name()
	}
	return &Engine[T]{
		store:   store,
		domain:  domain,
		logger:  o.logger.WithComponent("synckit").WithDomain(domain.Name),
		metrics: o.metrics,
		timeout: o.callTimeout,
		now:     o.now,
		newID:   o.newID,
	}
}

// Store returns the store the engine drives.
func (e *Engine[T]) Store() *Store[T] { return e.store }

// Subscribe registers fn to be called after every drain pass.
func (e *Engine[T]) Subscribe(fn func(*DrainResult)) {
	if fn == nil {
		return
	}
	e.mu.Lock()
	e.subscribers = append(e.subscribers, fn)
	e.mu.Unlock()
}

// Close stops the engine from starting new work. A pass already running
// finishes normally.
func (e *Engine[T]) Close() error {
	e.mu.Lock()
	e.closed = true
	e.subscribers = nil
	e.mu.Unlock()
	return nil
}

func (e *Engine[T]) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Execute applies m to the store right away. Offline, the operation is
// queued and the optimistic result returned. Online with an empty queue, the
// remote call is made immediately; on failure the change is rolled back and
// the error is surfaced on the store as well as returned. Online with
// operations still queued, or with a temp ID among the targets, the
// operation is queued behind them and a drain is run so the server sees
// the changes in order.
func (e *Engine[T]) Execute(ctx context.Context, m Mutation[T]) (T, error) {
	var zero T
	op := errors.Op(string(m.Type))

	if e.isClosed() {
		return zero, errors.E(op, errors.Component("synckit"), errors.KindClosed, "engine is closed")
	}

	route, ok := e.domain.Routes[m.Type]
	if !ok || route.Call == nil {
		err := errors.E(op, errors.Component("synckit"), errors.KindUnsupported, errors.ErrCodeUnsupportedOp,
			fmt.Sprintf("%s does not support %s", e.domain.Name, m.Type))
		e.store.SetError(err)
		return zero, err
	}
	if m.Type != OpCreate && len(m.Targets) == 0 {
		return zero, errors.E(op, errors.Component("synckit"), errors.KindInvalid, "mutation has no targets")
	}
	if m.Type != OpCreate && m.Type != OpDelete && m.Apply == nil {
		return zero, errors.E(op, errors.Component("synckit"), errors.KindInvalid, "mutation has no patch function")
	}

	payload := m.Data
	if payload == nil && m.Type == OpCreate {
		payload = m.Item
	}
	var data json.RawMessage
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			err = errors.E(op, errors.Component("synckit"), errors.KindInternal, err, "encode payload")
			e.store.SetError(err)
			return zero, err
		}
		data = raw
	}

	pending := PendingOperation{
		ID:        e.newID(),
		Type:      m.Type,
		Timestamp: e.now(),
		Data:      data,
		Method:    route.Method,
	}

	var (
		result T
		undo   func()
	)
	switch m.Type {
	case OpCreate:
		item, tempID := e.store.insertTemp(m.Item)
		pending.TempID = &tempID
		pending.Targets = []ID{tempID}
		result = item
		undo = func() { e.store.drop(tempID) }
	case OpDelete:
		removed, index, found := e.store.remove(m.Targets[0])
		if !found {
			return zero, e.notFound(op, m.Targets)
		}
		pending.Targets = []ID{m.Targets[0]}
		result = removed
		undo = func() { e.store.reinsert(removed, index) }
	default:
		prev, patched := e.store.patch(m.Targets, m.Apply)
		if len(patched) == 0 {
			return zero, e.notFound(op, m.Targets)
		}
		pending.Targets = patched
		result, _ = e.store.Get(patched[0])
		undo = func() { e.store.restore(prev) }
	}
	if route.Path != nil {
		pending.Endpoint = route.Path(pending)
	}

	if !e.store.IsOnline() {
		e.store.Enqueue(pending)
		e.metrics.RecordOperation(e.domain.Name, string(m.Type), OutcomeQueued)
		return result, nil
	}
	if e.store.PendingCount() > 0 || hasTemp(pending.Targets) {
		e.store.Enqueue(pending)
		e.metrics.RecordOperation(e.domain.Name, string(m.Type), OutcomeQueued)
		return e.drainBehind(ctx, pending, result), nil
	}

	confirmed, err := e.call(ctx, route, pending)
	if err != nil {
		undo()
		e.store.SetError(err)
		e.metrics.RecordRollback(e.domain.Name, string(m.Type))
		e.metrics.RecordOperation(e.domain.Name, string(m.Type), OutcomeFailed)
		e.logger.LogError(ctx, err, "remote call failed, local change rolled back",
			slog.Any("pending_operation", pending))
		return zero, err
	}

	if m.Type == OpCreate && confirmed != nil {
		e.store.promote(*pending.TempID, *confirmed, e.endpointFor)
		result = *confirmed
	}
	e.store.ClearError()
	e.metrics.RecordOperation(e.domain.Name, string(m.Type), OutcomeSent)
	return result, nil
}

// drainBehind runs a drain after pending was queued behind earlier work and
// returns the freshest local value for it. If the drain could not send it,
// the operation stays queued like any offline change.
func (e *Engine[T]) drainBehind(ctx context.Context, pending PendingOperation, result T) T {
	res, err := e.Drain(ctx)
	if err != nil {
		e.logger.LogError(ctx, err, "drain after queueing failed", slog.Any("pending_operation", pending))
		return result
	}
	if pending.Type == OpDelete {
		return result
	}
	id := pending.Targets[0]
	if promoted, ok := res.Promoted[id]; ok {
		id = promoted
	}
	if item, ok := e.store.Get(id); ok {
		return item
	}
	return result
}

func hasTemp(ids []ID) bool {
	for _, id := range ids {
		if IsTemp(id) {
			return true
		}
	}
	return false
}

func (e *Engine[T]) notFound(op errors.Operation, targets []ID) error {
	e.metrics.RecordOperation(e.domain.Name, string(op), OutcomeNotFound)
	return errors.E(op, errors.Component("synckit"), errors.KindNotFound,
		map[string]interface{}{"targets": targets},
		fmt.Sprintf("no %s item with id %v", e.domain.Name, targets))
}

// Drain replays queued operations in enqueue order. It is a no-op when the
// store is offline or nothing is queued. A failed operation stays queued and
// the pass continues with the next one. Operations whose type has no route,
// or whose method no longer matches it, are moved to the unrecoverable
// bucket. Operations that target a temp ID whose create has not gone
// through yet are held back and stay queued. A trigger arriving while a
// pass is running is folded into that pass.
func (e *Engine[T]) Drain(ctx context.Context) (*DrainResult, error) {
	result := &DrainResult{Domain: e.domain.Name, StartTime: e.now()}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, errors.E(errors.OpDrain, errors.Component("synckit"), errors.KindClosed, "engine is closed")
	}
	if !e.store.IsOnline() || e.store.PendingCount() == 0 {
		e.mu.Unlock()
		result.Skipped = true
		return result, nil
	}
	if e.draining {
		e.rerun = true
		e.mu.Unlock()
		result.Coalesced = true
		return result, nil
	}
	e.draining = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.draining = false
		e.rerun = false
		e.mu.Unlock()

		result.Duration = e.now().Sub(result.StartTime)
		e.metrics.RecordDrainDuration(e.domain.Name, result.Duration)
		e.logger.Info("drain finished",
			slog.Int("attempted", result.Attempted),
			slog.Int("succeeded", result.Succeeded),
			slog.Int("failed", result.Failed),
			slog.Int("dropped", result.Dropped),
			slog.Int("deferred", result.Deferred),
			slog.Bool("interrupted", result.Interrupted),
			slog.Duration("duration", result.Duration))
		e.notify(result)
	}()

	seen := make(map[string]bool)
	for {
		for _, queued := range e.store.Pending() {
			if seen[queued.ID] {
				continue
			}
			seen[queued.ID] = true

			if err := ctx.Err(); err != nil {
				result.Interrupted = true
				result.Errors = append(result.Errors, err)
				return result, err
			}
			if !e.store.IsOnline() {
				result.Interrupted = true
				return result, nil
			}

			// Re-read: an earlier promotion may have rewritten its targets.
			op, ok := e.store.pending(queued.ID)
			if !ok {
				continue
			}
			if e.store.awaitingCreate(op.Targets) {
				result.Deferred++
				e.logger.Debug("holding operation until its create is confirmed",
					slog.Any("pending_operation", op))
				continue
			}
			e.replay(ctx, op, result)
		}

		e.mu.Lock()
		again := e.rerun
		e.rerun = false
		e.mu.Unlock()
		if !again {
			break
		}
	}

	if result.Attempted > 0 && result.Failed == 0 && result.Dropped == 0 {
		e.store.ClearError()
	}
	return result, nil
}

func (e *Engine[T]) replay(ctx context.Context, op PendingOperation, result *DrainResult) {
	result.Attempted++

	route, ok := e.domain.Routes[op.Type]
	if !ok || route.Call == nil || route.Method != op.Method || (op.Type == OpCreate && op.TempID == nil) {
		err := errors.E(errors.OpDrain, errors.Component("synckit"), errors.KindUnsupported, errors.ErrCodeUnsupportedOp,
			map[string]interface{}{"operation_id": op.ID},
			fmt.Sprintf("unsupported operation %s %s", op.Method, op.Type))
		e.logger.Warn("moving unsupported operation out of the queue", slog.Any("pending_operation", op))
		e.store.markUnrecoverable(op.ID)
		e.store.SetError(err)
		result.Dropped++
		result.Errors = append(result.Errors, err)
		e.metrics.RecordOperation(e.domain.Name, string(op.Type), OutcomeDropped)
		return
	}

	confirmed, err := e.call(ctx, route, op)
	if err != nil && errors.Is(err, errors.KindUnsupported) {
		e.logger.LogError(ctx, err, "queued operation cannot be replayed, moving it out of the queue",
			slog.Any("pending_operation", op))
		e.store.markUnrecoverable(op.ID)
		e.store.SetError(err)
		result.Dropped++
		result.Errors = append(result.Errors, err)
		e.metrics.RecordOperation(e.domain.Name, string(op.Type), OutcomeDropped)
		return
	}
	if err != nil {
		e.logger.LogError(ctx, err, "queued operation failed, keeping it",
			slog.Any("pending_operation", op))
		e.store.SetError(err)
		result.Failed++
		result.Errors = append(result.Errors, err)
		e.metrics.RecordOperation(e.domain.Name, string(op.Type), OutcomeFailed)
		return
	}

	if op.Type == OpCreate && confirmed != nil {
		e.store.promote(*op.TempID, *confirmed, e.endpointFor)
		if result.Promoted == nil {
			result.Promoted = make(map[ID]ID)
		}
		result.Promoted[*op.TempID] = (*confirmed).Key()
	}
	e.store.Remove(op.ID)
	result.Succeeded++
	e.metrics.RecordOperation(e.domain.Name, string(op.Type), OutcomeReplayed)
}

// Kick drains if the store is online and something is queued. Hosts call it
// whenever they render or otherwise get a chance to make progress.
func (e *Engine[T]) Kick(ctx context.Context) (*DrainResult, error) {
	if !e.store.IsOnline() || e.store.PendingCount() == 0 {
		return nil, nil
	}
	return e.Drain(ctx)
}

// Refresh replaces the store's items with the server listing, keeping
// local changes that are still queued. Offline it does nothing.
func (e *Engine[T]) Refresh(ctx context.Context) error {
	if e.domain.List == nil {
		return errors.E(errors.OpFetch, errors.Component("synckit"), errors.KindUnsupported,
			fmt.Sprintf("%s cannot be listed", e.domain.Name))
	}
	if !e.store.IsOnline() {
		return nil
	}

	e.store.setLoading(true)
	items, err := e.domain.List(ctx)
	if err != nil {
		e.store.setLoading(false)
		if ctx.Err() != nil {
			// Cancelled by the caller: nothing to surface.
			return ctx.Err()
		}
		err = errors.E(errors.OpFetch, errors.Component("synckit"), err)
		e.store.SetError(err)
		return err
	}
	e.store.mergeFetched(items, e.now())
	return nil
}

func (e *Engine[T]) call(ctx context.Context, route Route[T], op PendingOperation) (*T, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	return route.Call(ctx, op)
}

func (e *Engine[T]) endpointFor(op PendingOperation) string {
	if r, ok := e.domain.Routes[op.Type]; ok && r.Path != nil {
		return r.Path(op)
	}
	return op.Endpoint
}

func (e *Engine[T]) notify(result *DrainResult) {
	e.mu.Lock()
	subs := append([]func(*DrainResult){}, e.subscribers...)
	e.mu.Unlock()

	for _, fn := range subs {
		go func(fn func(*DrainResult)) {
			defer func() {
				if r := recover(); r != nil {
					e.logger.Error("drain subscriber panicked", slog.Any("panic", r))
				}
			}()
			fn(result)
		}(fn)
	}
}
