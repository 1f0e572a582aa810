// Package workers holds the capability agents the supervisor can dispatch to,
// and the immutable registry they are resolved through. New worker types plug
// in by implementing contract.Worker and registering at startup; the
// supervisor loop never changes.
package workers

import (
	"fmt"
	"strings"

	contractx "github.com/carelake/clinical-assistant/agent/contract"
)

// Registry is the fixed name -> worker mapping built once at startup.
// Lookup order is registration order; the map is never mutated afterwards.
type Registry struct {
	order   []string
	entries map[string]contractx.Worker
}

func NewRegistry(ws ...contractx.Worker) (*Registry, error) {
	if len(ws) == 0 {
		return nil, fmt.Errorf("%w: at least one worker is required", contractx.ErrValidation)
	}

	r := &Registry{
		entries: make(map[string]contractx.Worker, len(ws)),
	}
	for _, w := range ws {
		name := strings.TrimSpace(w.Name())
		if name == "" {
			return nil, fmt.Errorf("%w: worker name is empty", contractx.ErrValidation)
		}
		if name == contractx.RouteFinish {
			return nil, fmt.Errorf("%w: worker name %q collides with the completion sentinel", contractx.ErrValidation, name)
		}
		if _, dup := r.entries[name]; dup {
			return nil, fmt.Errorf("%w: duplicate worker name %q", contractx.ErrValidation, name)
		}
		r.order = append(r.order, name)
		r.entries[name] = w
	}
	return r, nil
}

func (r *Registry) Lookup(name string) (contractx.Worker, bool) {
	w, ok := r.entries[name]
	return w, ok
}

// Infos returns the (name, description) roster in registration order, as
// advertised to the routing classifier.
func (r *Registry) Infos() []contractx.WorkerInfo {
	infos := make([]contractx.WorkerInfo, 0, len(r.order))
	for _, name := range r.order {
		infos = append(infos, contractx.WorkerInfo{
			Name:        name,
			Description: r.entries[name].Description(),
		})
	}
	return infos
}

func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
