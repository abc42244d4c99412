package saga

import (
	"context"
	"fmt"
	"sync"

	"github.com/jwalitptl/filevault-api/internal/model"
)

// StepFunc is a step's forward action. It receives the current workflow
// payload and returns a patch that is merged into it.
type StepFunc func(ctx context.Context, data model.JSONMap) (model.JSONMap, error)

// CompensateFunc undoes a previously completed step. It receives the
// current payload and any side-channel compensation data.
type CompensateFunc func(ctx context.Context, data, compensationData model.JSONMap) error

// Step is one unit of a workflow definition. Compensate may be nil for
// steps with no side effects to undo.
type Step struct {
	Name       string
	Execute    StepFunc
	Compensate CompensateFunc
}

// Definition is a named, ordered list of steps. Definitions live only
// in process memory; after a restart every saga type must be
// re-registered before orchestration can proceed.
type Definition struct {
	Name  string
	Steps []Step
}

// Registry maps saga type names to definitions.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]*Definition
}

func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]*Definition)}
}

// Register stores a definition. Must be called before any StartSaga for
// the same type, typically at process startup.
func (r *Registry) Register(def *Definition) error {
	if def == nil || def.Name == "" {
		return fmt.Errorf("saga definition must have a name")
	}
	if len(def.Steps) == 0 {
		return fmt.Errorf("saga %q must have at least one step", def.Name)
	}
	for i, step := range def.Steps {
		if step.Execute == nil {
			return fmt.Errorf("saga %q step %d has no execute action", def.Name, i+1)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs[def.Name] = def
	return nil
}

func (r *Registry) Get(name string) (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[name]
	return def, ok
}
