package worker

import (
	"fmt"
	"sync"

	"github.com/BaSui01/coordflow/state"
	"github.com/BaSui01/coordflow/types"
)

// Registry maps roles to invokers. It is a plain value injected into the
// engine; there is no process-global registry.
type Registry struct {
	mu       sync.RWMutex
	invokers map[state.Role]Invoker
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{invokers: make(map[state.Role]Invoker)}
}

// Register binds an invoker to a role, replacing any previous binding.
func (r *Registry) Register(role state.Role, inv Invoker) error {
	if _, ok := state.StageForRole(role); !ok {
		return types.NewError(types.ErrInvalidConfig,
			fmt.Sprintf("register worker: unknown role %q", role))
	}
	if inv == nil {
		return types.NewError(types.ErrInvalidConfig,
			fmt.Sprintf("register worker: nil invoker for role %q", role))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invokers[role] = inv
	return nil
}

// Get returns the invoker bound to a role.
func (r *Registry) Get(role state.Role) (Invoker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inv, ok := r.invokers[role]
	return inv, ok
}

// Roles returns the registered roles in unspecified order.
func (r *Registry) Roles() []state.Role {
	r.mu.RLock()
	defer r.mu.RUnlock()
	roles := make([]state.Role, 0, len(r.invokers))
	for role := range r.invokers {
		roles = append(roles, role)
	}
	return roles
}

// Complete reports whether every pipeline role that needs a worker has a
// bound invoker. Supervision is excluded: the supervisor runs inside the
// engine rather than as a worker.
func (r *Registry) Complete() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, role := range state.Roles() {
		if role == state.RoleSupervision {
			continue
		}
		if _, ok := r.invokers[role]; !ok {
			return false
		}
	}
	return true
}
