package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ActivityFunc is a unit of side-effecting work invoked by orchestrations.
// Inputs and outputs cross the history as JSON so replays can restore them.
type ActivityFunc func(ctx context.Context, input json.RawMessage) (json.RawMessage, error)

// Activity adapts a typed function to the raw ActivityFunc signature.
func Activity[I, O any](fn func(ctx context.Context, input I) (O, error)) ActivityFunc {
	return func(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
		var input I
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &input); err != nil {
				return nil, fmt.Errorf("failed to unmarshal activity input: %w", err)
			}
		}
		output, err := fn(ctx, input)
		if err != nil {
			return nil, err
		}
		encoded, err := json.Marshal(output)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal activity output: %w", err)
		}
		return encoded, nil
	}
}

// executeActivity runs a registered activity under the engine's retry policy.
func (e *Engine) executeActivity(ctx context.Context, name string, input json.RawMessage) (json.RawMessage, error) {
	e.mu.RLock()
	fn, ok := e.activities[name]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown activity %q", name)
	}

	var lastErr error
	for attempt := 1; attempt <= e.retry.MaxAttempts; attempt++ {
		output, err := fn(ctx, input)
		if err == nil {
			return output, nil
		}
		lastErr = err
		e.logger.WarnContext(ctx, "activity attempt failed",
			"activity", name, "attempt", attempt, "max_attempts", e.retry.MaxAttempts, "error", err)

		if attempt < e.retry.MaxAttempts {
			select {
			case <-time.After(e.retry.Backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, fmt.Errorf("activity %q failed after %d attempts: %w", name, e.retry.MaxAttempts, lastErr)
}

// fanOut runs one activity per input concurrently on the pool and waits for
// all of them. Any failure fails the whole barrier.
func (e *Engine) fanOut(ctx context.Context, name string, inputs []json.RawMessage) ([]json.RawMessage, error) {
	outputs := make([]json.RawMessage, len(inputs))
	failures := make([]error, len(inputs))

	var wg sync.WaitGroup
	for i := range inputs {
		wg.Add(1)
		input := inputs[i]
		idx := i
		err := e.pool.Submit(func() {
			defer wg.Done()
			outputs[idx], failures[idx] = e.executeActivity(ctx, name, input)
		})
		if err != nil {
			wg.Done()
			failures[idx] = fmt.Errorf("failed to submit activity %q: %w", name, err)
		}
	}
	wg.Wait()

	if err := errors.Join(failures...); err != nil {
		return nil, err
	}
	return outputs, nil
}
