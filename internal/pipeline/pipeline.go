// Package pipeline provides the staged fit/transform computation engine
// for the sensor simulation. A Pipeline owns an ordered list of named
// stages, each a physical conversion or noise injection over a Signal.
// The pipeline is the composition root: it executes domain logic from
// the stage library but owns none of it.
//
// Stage order is physically meaningful (photon conversion precedes
// voltage conversion, quantisation comes last) and is never reordered
// by the engine.
package pipeline

import (
	"errors"
	"fmt"

	"github.com/treeview-data/eosim/internal/signal"
)

// ErrUnknownStage reports a named-stage lookup miss.
var ErrUnknownStage = errors.New("unknown stage")

// Func is a single pipeline stage: a pure function of its input Signal
// given the parameters bound at pipeline build time.
type Func func(*signal.Signal) (*signal.Signal, error)

// Stage is one named step. Params records the resolved parameter values
// by key for provenance; persistent fixed-pattern arrays are recorded by
// a shape descriptor rather than value.
type Stage struct {
	Name   string
	Fn     Func
	Params map[string]string
}

// Pipeline applies stages left to right. When CaptureOutputs is set,
// each stage's output is additionally recorded under its stage name for
// later inspection without altering the returned signal.
type Pipeline struct {
	stages         []Stage
	CaptureOutputs bool
	captured       map[string]*signal.Signal
}

// New builds a pipeline from the given stages. Stage names must be
// unique since they key intermediate capture and named execution.
func New(stages ...Stage) (*Pipeline, error) {
	seen := map[string]bool{}
	for _, st := range stages {
		if st.Name == "" {
			return nil, fmt.Errorf("pipeline: stage with empty name")
		}
		if st.Fn == nil {
			return nil, fmt.Errorf("pipeline: stage %q has no function", st.Name)
		}
		if seen[st.Name] {
			return nil, fmt.Errorf("pipeline: duplicate stage %q", st.Name)
		}
		seen[st.Name] = true
	}
	return &Pipeline{stages: stages}, nil
}

// StageNames returns the declared execution order.
func (p *Pipeline) StageNames() []string {
	names := make([]string, len(p.stages))
	for i, st := range p.stages {
		names[i] = st.Name
	}
	return names
}

// Params returns the recorded parameter map for the named stage.
func (p *Pipeline) Params(name string) (map[string]string, error) {
	for _, st := range p.stages {
		if st.Name == name {
			out := make(map[string]string, len(st.Params))
			for k, v := range st.Params {
				out[k] = v
			}
			return out, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownStage, name)
}

// Apply runs every stage in declared order. Each stage's output
// metadata preserves and extends the input metadata; a stage can add
// keys but the engine guarantees none are dropped. Stage errors are
// wrapped with the offending stage name.
func (p *Pipeline) Apply(sig *signal.Signal) (*signal.Signal, error) {
	if p.CaptureOutputs {
		p.captured = make(map[string]*signal.Signal, len(p.stages))
	}
	cur := sig.Copy()
	for _, st := range p.stages {
		next, err := st.Fn(cur)
		if err != nil {
			return nil, fmt.Errorf("stage %q: %w", st.Name, err)
		}
		next.MergeAttrs(cur.Attrs)
		if p.CaptureOutputs {
			p.captured[st.Name] = next.Copy()
		}
		cur = next
	}
	return cur, nil
}

// ApplyNamed runs exactly one stage out of sequence, for analysis and
// diagnostics.
func (p *Pipeline) ApplyNamed(sig *signal.Signal, name string) (*signal.Signal, error) {
	for _, st := range p.stages {
		if st.Name != name {
			continue
		}
		out, err := st.Fn(sig.Copy())
		if err != nil {
			return nil, fmt.Errorf("stage %q: %w", st.Name, err)
		}
		out.MergeAttrs(sig.Attrs)
		return out, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownStage, name)
}

// Captured returns the intermediate output recorded for the named stage
// during the most recent Apply with CaptureOutputs set.
func (p *Pipeline) Captured(name string) (*signal.Signal, bool) {
	out, ok := p.captured[name]
	return out, ok
}

// CapturedOutputs returns every recorded intermediate output keyed by
// stage name.
func (p *Pipeline) CapturedOutputs() map[string]*signal.Signal {
	out := make(map[string]*signal.Signal, len(p.captured))
	for k, v := range p.captured {
		out[k] = v
	}
	return out
}
