// Package workflow is a small durable task engine: orchestrations run as
// deterministic, replayable functions whose side effects all happen inside
// named activities. Every completed activity is appended to a per-instance
// event history persisted in BadgerDB; re-running an orchestration replays
// recorded outputs instead of re-invoking side effects, so a restart resumes
// exactly where the previous run stopped.
package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
)

// Status of an orchestration instance.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Instance is the persisted state of one orchestration run.
type Instance struct {
	ID           string          `json:"id"`
	Orchestrator string          `json:"orchestrator"`
	Status       Status          `json:"status"`
	Input        json.RawMessage `json:"input,omitempty"`
	Output       []string        `json:"output,omitempty"`
	Error        string          `json:"error,omitempty"`
	StartedAt    time.Time       `json:"startedAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// OrchestratorFunc is deterministic orchestration logic. It must not perform
// I/O, read the wall clock, or generate randomness directly; those go through
// the Context so they replay identically. The returned strings are the
// instance's terminal output.
type OrchestratorFunc func(ctx *Context) ([]string, error)

// RetryPolicy wraps every activity invocation.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// DefaultRetryPolicy matches the pipeline's stock policy: three attempts,
// five seconds between them.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 3, Backoff: 5 * time.Second}

// Engine registers orchestrators and activities, schedules instances and
// replays them after restarts.
type Engine struct {
	db     *badger.DB
	pool   *ants.Pool
	retry  RetryPolicy
	logger *slog.Logger

	mu            sync.RWMutex
	orchestrators map[string]OrchestratorFunc
	activities    map[string]ActivityFunc

	running sync.WaitGroup
}

// Option configures an Engine.
type Option func(*Engine)

// WithRetryPolicy overrides the default per-activity retry policy.
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(e *Engine) {
		if policy.MaxAttempts < 1 {
			policy.MaxAttempts = 1
		}
		e.retry = policy
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates an engine persisting instance state in db. The fan-out pool is
// sized to the machine; poolSize below 1 keeps the default.
func New(db *badger.DB, poolSize int, opts ...Option) (*Engine, error) {
	if poolSize < 1 {
		poolSize = runtime.NumCPU()
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}

	e := &Engine{
		db:            db,
		pool:          pool,
		retry:         DefaultRetryPolicy,
		logger:        slog.Default(),
		orchestrators: make(map[string]OrchestratorFunc),
		activities:    make(map[string]ActivityFunc),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Close waits for in-flight instances and releases the pool.
func (e *Engine) Close() {
	e.running.Wait()
	e.pool.Release()
}

// RegisterOrchestrator registers deterministic orchestration logic by name.
func (e *Engine) RegisterOrchestrator(name string, fn OrchestratorFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.orchestrators[name] = fn
}

// RegisterActivity registers an activity by name.
func (e *Engine) RegisterActivity(name string, fn ActivityFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.activities[name] = fn
}

// Schedule persists a new instance and starts it asynchronously, returning
// the instance id for status polling.
func (e *Engine) Schedule(ctx context.Context, orchestrator string, input any) (string, error) {
	e.mu.RLock()
	_, ok := e.orchestrators[orchestrator]
	e.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("unknown orchestrator %q", orchestrator)
	}

	encoded, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("failed to marshal orchestration input: %w", err)
	}

	now := time.Now().UTC()
	instance := &Instance{
		ID:           uuid.New().String(),
		Orchestrator: orchestrator,
		Status:       StatusRunning,
		Input:        encoded,
		StartedAt:    now,
		UpdatedAt:    now,
	}
	if err := e.saveInstance(instance); err != nil {
		return "", err
	}

	e.start(instance)
	return instance.ID, nil
}

// Get returns the persisted state of an instance.
func (e *Engine) Get(ctx context.Context, id string) (*Instance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.loadInstance(id)
}

// ResumePending re-runs every instance that was still running when the
// process last stopped. Completed steps replay from history; only unfinished
// work executes again.
func (e *Engine) ResumePending(ctx context.Context) (int, error) {
	instances, err := e.listInstances()
	if err != nil {
		return 0, err
	}

	resumed := 0
	for _, instance := range instances {
		if instance.Status != StatusRunning {
			continue
		}
		if err := ctx.Err(); err != nil {
			return resumed, err
		}
		e.logger.InfoContext(ctx, "resuming orchestration", "instance_id", instance.ID, "orchestrator", instance.Orchestrator)
		e.start(instance)
		resumed++
	}
	return resumed, nil
}

// start runs an instance in its own goroutine. Orchestration logic itself is
// single-threaded; only fanned-out activities run concurrently.
func (e *Engine) start(instance *Instance) {
	e.running.Add(1)
	go func() {
		defer e.running.Done()
		e.run(instance)
	}()
}

func (e *Engine) run(instance *Instance) {
	logger := e.logger.With("instance_id", instance.ID, "orchestrator", instance.Orchestrator)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("orchestration panicked", "panic", r)
			instance.Status = StatusFailed
			instance.Error = fmt.Sprintf("orchestration panicked: %v", r)
			instance.UpdatedAt = time.Now().UTC()
			if err := e.saveInstance(instance); err != nil {
				logger.Error("failed to persist terminal state", "error", err)
			}
		}
	}()

	e.mu.RLock()
	fn := e.orchestrators[instance.Orchestrator]
	e.mu.RUnlock()

	history, err := e.loadHistory(instance.ID)
	if err != nil {
		logger.Error("failed to load history", "error", err)
		return
	}

	octx := &Context{
		engine:   e,
		instance: instance,
		history:  history,
		logger:   logger,
	}

	output, err := fn(octx)
	instance.UpdatedAt = time.Now().UTC()
	if err != nil {
		instance.Status = StatusFailed
		instance.Error = err.Error()
		logger.Error("orchestration failed", "error", err)
	} else {
		instance.Status = StatusCompleted
		instance.Output = output
		logger.Info("orchestration completed", "outputs", len(output))
	}

	if err := e.saveInstance(instance); err != nil {
		logger.Error("failed to persist terminal state", "error", err)
	}
}
