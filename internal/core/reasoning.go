package core

import "time"

// ReasoningStep is one entry of a tool's reasoning trace.
type ReasoningStep struct {
	StepNumber  int            `json:"step_number"`
	Description string         `json:"description"`
	Timestamp   string         `json:"timestamp"`
	InputData   map[string]any `json:"input_data"`
	OutputData  map[string]any `json:"output_data"`
}

// Trace is the ordered step log of a single tool invocation. It is created
// fresh per call and never shared between requests.
type Trace struct {
	steps []ReasoningStep
	now   func() time.Time
}

// NewTrace returns an empty trace. A nil clock means time.Now.
func NewTrace(now func() time.Time) *Trace {
	if now == nil {
		now = time.Now
	}
	return &Trace{steps: make([]ReasoningStep, 0, 4), now: now}
}

// Add appends a step numbered after the last one and returns it.
func (t *Trace) Add(description string, input, output map[string]any) ReasoningStep {
	step := ReasoningStep{
		StepNumber:  len(t.steps) + 1,
		Description: description,
		Timestamp:   t.now().UTC().Format(time.RFC3339Nano),
		InputData:   input,
		OutputData:  output,
	}
	t.steps = append(t.steps, step)
	return step
}

// Extend appends steps recorded by a nested invocation, renumbering them so
// numbering stays monotonic. Descriptions, timestamps and payloads are kept.
func (t *Trace) Extend(steps []ReasoningStep) {
	for _, s := range steps {
		s.StepNumber = len(t.steps) + 1
		t.steps = append(t.steps, s)
	}
}

// Len reports the number of recorded steps.
func (t *Trace) Len() int { return len(t.steps) }

// Steps returns a copy of the recorded steps in causal order.
func (t *Trace) Steps() []ReasoningStep {
	out := make([]ReasoningStep, len(t.steps))
	copy(out, t.steps)
	return out
}
