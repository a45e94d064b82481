package arm

import (
	"fmt"
	"sync"

	"github.com/virtual-origami/pyrobomogen/errors"
	"github.com/virtual-origami/pyrobomogen/kinematics"
	"github.com/virtual-origami/pyrobomogen/message"
)

// Registry holds the set of configured arms. It is built once at startup
// from validated configuration and passed explicitly to the scheduler.
// Deregistration isolates a faulted arm without touching its siblings.
type Registry struct {
	mu   sync.RWMutex
	arms map[string]*Arm
	// order preserves config order for deterministic iteration
	order []string
}

// NewRegistry builds and validates all arms from their configs, failing
// fast on the first invalid entry. No partially initialized arm is ever
// exposed: on error the registry is discarded entirely.
func NewRegistry(configs []Config) (*Registry, error) {
	if len(configs) == 0 {
		return nil, errors.WrapInvalid(
			fmt.Errorf("no arms configured"),
			"Registry", "NewRegistry", "config check")
	}

	r := &Registry{arms: make(map[string]*Arm, len(configs))}
	for _, cfg := range configs {
		if _, exists := r.arms[cfg.ID]; exists {
			return nil, errors.WrapInvalid(
				fmt.Errorf("duplicate arm id %q", cfg.ID),
				"Registry", "NewRegistry", "id uniqueness check")
		}

		a, err := New(cfg)
		if err != nil {
			return nil, errors.Wrap(err, "Registry", "NewRegistry", fmt.Sprintf("build arm %q", cfg.ID))
		}

		r.arms[cfg.ID] = a
		r.order = append(r.order, cfg.ID)
	}

	return r, nil
}

// Arms returns the active arms in configuration order.
func (r *Registry) Arms() []*Arm {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Arm, 0, len(r.arms))
	for _, id := range r.order {
		if a, ok := r.arms[id]; ok {
			out = append(out, a)
		}
	}
	return out
}

// Get returns the arm with the given id.
func (r *Registry) Get(id string) (*Arm, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.arms[id]
	return a, ok
}

// Len returns the number of active arms.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.arms)
}

// Deregister removes an arm from the registry. Used when an arm hits a
// computation fault; its siblings keep running.
func (r *Registry) Deregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.arms[id]; !ok {
		return false
	}
	delete(r.arms, id)
	return true
}

// Geometries returns the static geometry record for every active arm,
// for publication to the broker's KV store at startup.
func (r *Registry) Geometries() []message.Geometry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]message.Geometry, 0, len(r.arms))
	for _, id := range r.order {
		a, ok := r.arms[id]
		if !ok {
			continue
		}
		links := append([]float64(nil), a.cfg.Links...)
		out = append(out, message.Geometry{
			ArmID: a.cfg.ID,
			Links: links,
			Reach: kinematics.Reach(links),
		})
	}
	return out
}
