package runtime

import "sync"

// State is the execution state of a Runtime.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	}
	return "idle"
}

// MarshalText renders the state name in JSON and YAML output.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ExecutionContext holds variable bindings, the computed-value cache and the
// execution state. Readers and writers hold the lock only for the duration
// of a single access.
type ExecutionContext struct {
	mu        sync.RWMutex
	variables map[string]any
	computed  map[string]any
	state     State
	failure   string
}

// NewExecutionContext creates an idle, empty context.
func NewExecutionContext() *ExecutionContext {
	return &ExecutionContext{
		variables: make(map[string]any),
		computed:  make(map[string]any),
	}
}

// Variable returns a variable binding.
func (c *ExecutionContext) Variable(name string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.variables[name]
	return v, ok
}

// SetVariable binds a variable.
func (c *ExecutionContext) SetVariable(name string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.variables[name] = value
}

// setVariables binds several variables under one lock.
func (c *ExecutionContext) setVariables(values map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for name, value := range values {
		c.variables[name] = value
	}
}

// Variables returns a copy of the variable bindings.
func (c *ExecutionContext) Variables() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return copyValues(c.variables)
}

// Computed returns a cached computed value.
func (c *ExecutionContext) Computed(name string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.computed[name]
	return v, ok
}

// ComputedValues returns a copy of the computed cache.
func (c *ExecutionContext) ComputedValues() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return copyValues(c.computed)
}

func (c *ExecutionContext) setComputed(values map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for name, value := range values {
		c.computed[name] = value
	}
}

// Bindings returns variables overlaid with computed values, the scope used
// by after-phase actions, constraints and event handlers.
func (c *ExecutionContext) Bindings() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := copyValues(c.variables)
	for name, value := range c.computed {
		out[name] = value
	}
	return out
}

// State returns the execution state and, when failed, the reason.
func (c *ExecutionContext) State() (State, string) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.state, c.failure
}

// start moves to Running and clears the computed cache from a prior run.
func (c *ExecutionContext) start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = StateRunning
	c.failure = ""
	c.computed = make(map[string]any)
}

func (c *ExecutionContext) complete() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = StateCompleted
}

func (c *ExecutionContext) fail(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = StateFailed
	c.failure = reason
}

// Snapshot is a point-in-time copy of an execution context.
type Snapshot struct {
	ExecutionID string         `json:"execution_id" yaml:"execution_id"`
	State       State          `json:"state" yaml:"state"`
	Failure     string         `json:"failure,omitempty" yaml:"failure,omitempty"`
	Variables   map[string]any `json:"variables" yaml:"variables"`
	Computed    map[string]any `json:"computed" yaml:"computed"`
}

func (c *ExecutionContext) snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Snapshot{
		State:     c.state,
		Failure:   c.failure,
		Variables: copyValues(c.variables),
		Computed:  copyValues(c.computed),
	}
}
