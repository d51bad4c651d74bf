package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// event kinds recorded in an instance's history.
const (
	eventActivity = "activity"
	eventFanOut   = "fanout"
	eventUUID     = "uuid"
)

// event is one completed step of an orchestration. Replays consume events in
// the order they were recorded.
type event struct {
	Kind   string          `json:"kind"`
	Name   string          `json:"name,omitempty"`
	Output json.RawMessage `json:"output,omitempty"`
}

// Context is the handle orchestration code uses to interact with the outside
// world. All nondeterminism funnels through it: activity results, generated
// ids and the notion of "now" come from the recorded history on replay.
type Context struct {
	engine   *Engine
	instance *Instance
	history  []event
	cursor   int
	logger   *slog.Logger
}

// InstanceID returns the id of the running instance.
func (c *Context) InstanceID() string {
	return c.instance.ID
}

// Input unmarshals the orchestration input into v.
func (c *Context) Input(v any) error {
	if len(c.instance.Input) == 0 {
		return nil
	}
	if err := json.Unmarshal(c.instance.Input, v); err != nil {
		return fmt.Errorf("failed to unmarshal orchestration input: %w", err)
	}
	return nil
}

// Logger returns a logger scoped to the instance.
func (c *Context) Logger() *slog.Logger {
	return c.logger
}

// CurrentTime is the replay-safe wall clock: it always reports the moment the
// instance was first scheduled, so time-derived values are stable across
// replays.
func (c *Context) CurrentTime() time.Time {
	return c.instance.StartedAt
}

// NewUUID returns a fresh id on first execution and the same id on replay.
func (c *Context) NewUUID() (string, error) {
	if recorded, ok := c.next(eventUUID, ""); ok {
		var id string
		if err := json.Unmarshal(recorded.Output, &id); err != nil {
			return "", fmt.Errorf("failed to unmarshal recorded id: %w", err)
		}
		return id, nil
	}

	id := uuid.New().String()
	encoded, err := json.Marshal(id)
	if err != nil {
		return "", fmt.Errorf("failed to marshal id: %w", err)
	}
	if err := c.record(event{Kind: eventUUID, Output: encoded}); err != nil {
		return "", err
	}
	return id, nil
}

// CallActivity invokes a registered activity. On replay the recorded output
// is returned without re-invoking the activity. A non-nil output receives the
// activity's result.
func (c *Context) CallActivity(name string, input, output any) error {
	if recorded, ok := c.next(eventActivity, name); ok {
		return decodeInto(recorded.Output, output)
	}

	encoded, err := json.Marshal(input)
	if err != nil {
		return fmt.Errorf("failed to marshal input for activity %q: %w", name, err)
	}
	result, err := c.engine.executeActivity(context.Background(), name, encoded)
	if err != nil {
		return err
	}
	if err := c.record(event{Kind: eventActivity, Name: name, Output: result}); err != nil {
		return err
	}
	return decodeInto(result, output)
}

// FanOut invokes one activity per input concurrently and waits for all of
// them, like scheduling a batch of tasks and awaiting the whole set. The
// barrier commits to history as a single event once every task succeeds.
func (c *Context) FanOut(name string, inputs []any) ([]json.RawMessage, error) {
	if recorded, ok := c.next(eventFanOut, name); ok {
		var outputs []json.RawMessage
		if err := json.Unmarshal(recorded.Output, &outputs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal recorded fan-out outputs: %w", err)
		}
		return outputs, nil
	}

	encoded := make([]json.RawMessage, len(inputs))
	for i, input := range inputs {
		raw, err := json.Marshal(input)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal input %d for activity %q: %w", i, name, err)
		}
		encoded[i] = raw
	}

	outputs, err := c.engine.fanOut(context.Background(), name, encoded)
	if err != nil {
		return nil, err
	}

	combined, err := json.Marshal(outputs)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal fan-out outputs: %w", err)
	}
	if err := c.record(event{Kind: eventFanOut, Name: name, Output: combined}); err != nil {
		return nil, err
	}
	return outputs, nil
}

// next returns the upcoming history event when replaying. A mismatch between
// the recorded event and the requested step means the orchestration code is
// not deterministic, which panics rather than silently corrupting state.
func (c *Context) next(kind, name string) (event, bool) {
	if c.cursor >= len(c.history) {
		return event{}, false
	}
	recorded := c.history[c.cursor]
	if recorded.Kind != kind || recorded.Name != name {
		panic(fmt.Sprintf("non-deterministic orchestration %q: history has %s/%s at step %d, code requested %s/%s",
			c.instance.Orchestrator, recorded.Kind, recorded.Name, c.cursor, kind, name))
	}
	c.cursor++
	return recorded, true
}

// record persists an event and advances past it so a subsequent replay of
// this same run stays aligned.
func (c *Context) record(evt event) error {
	if err := c.engine.appendEvent(c.instance.ID, c.cursor, evt); err != nil {
		return err
	}
	c.history = append(c.history, evt)
	c.cursor++
	return nil
}

func decodeInto(raw json.RawMessage, output any) error {
	if output == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, output); err != nil {
		return fmt.Errorf("failed to unmarshal activity output: %w", err)
	}
	return nil
}
