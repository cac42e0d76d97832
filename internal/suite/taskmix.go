// Package suite implements multi-scenario test suites: weighted task
// mixes, a suite-scoped correlation context shared across scenarios, and
// sequential/parallel orchestration over the executor package's per-test
// lifecycle. The weighted-random task-mix selection mirrors a
// proportional-share distribution style, generalized from capacity shares
// to task-type shares.
package suite

import (
	"math/rand/v2"
	"sort"

	"vajraedge/internal/errors"
)

// TaskMix selects a task type per virtual-user invocation by weighted
// random sampling proportional to configured weights.
type TaskMix struct {
	weights map[string]uint32
	order   []string
	total   uint32
}

// NewTaskMix validates weights (all entries must be > 0) and returns a
// TaskMix ready for Select.
func NewTaskMix(weights map[string]uint32) (*TaskMix, error) {
	if len(weights) == 0 {
		return nil, errors.Configuration("task mix requires at least one weighted task type")
	}

	order := make([]string, 0, len(weights))
	var total uint32
	for name, w := range weights {
		if w == 0 {
			return nil, errors.Configuration("task mix weight for " + name + " must be > 0")
		}
		order = append(order, name)
		total += w
	}
	sort.Strings(order) // deterministic iteration order for cumulative selection

	return &TaskMix{weights: weights, order: order, total: total}, nil
}

// TaskTypes returns the task-type names configured in this mix, in
// deterministic order.
func (m *TaskMix) TaskTypes() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Select returns one task type, chosen with probability proportional to
// its configured weight. Called once per virtual-user invocation so a
// scenario's effective task type varies between invocations according to the
// configured weights, not once for the whole scenario.
func (m *TaskMix) Select() string {
	roll := rand.N(m.total)

	var cumulative uint32
	for _, name := range m.order {
		cumulative += m.weights[name]
		if roll < cumulative {
			return name
		}
	}
	return m.order[len(m.order)-1]
}
