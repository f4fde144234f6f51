package workflow

import (
	"context"
	"fmt"

	"github.com/BaSui01/coordflow/state"
	"github.com/BaSui01/coordflow/types"
)

// RouteEnd is the sentinel route that ends the run loop.
const RouteEnd = "end"

// ExecutorFunc runs one node against the coordination state. Mutations are
// confined to st; cross-node effects never bypass it.
type ExecutorFunc func(ctx context.Context, st *state.State) error

// RouterFunc picks the next node name (or RouteEnd) from the post-execution
// state. Routers are pure: identical state yields an identical route.
type RouterFunc func(st *state.State) string

type routerSpec struct {
	fn      RouterFunc
	targets map[string]bool
}

// Graph is the mutable construction form of the workflow graph. Build it with
// AddNode/SetEntry/SetRouter, then Compile. A Graph is not safe for concurrent
// use; a Compiled graph is.
type Graph struct {
	nodes   map[string]ExecutorFunc
	routers map[string]routerSpec
	entry   string
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:   make(map[string]ExecutorFunc),
		routers: make(map[string]routerSpec),
	}
}

// AddNode registers a named executor. Names must be unique and non-empty.
func (g *Graph) AddNode(name string, exec ExecutorFunc) error {
	if name == "" || name == RouteEnd {
		return types.NewError(types.ErrInvalidConfig, fmt.Sprintf("invalid node name %q", name))
	}
	if exec == nil {
		return types.NewError(types.ErrInvalidConfig, fmt.Sprintf("node %q has nil executor", name))
	}
	if _, exists := g.nodes[name]; exists {
		return types.NewError(types.ErrInvalidConfig, fmt.Sprintf("duplicate node %q", name))
	}
	g.nodes[name] = exec
	return nil
}

// SetEntry designates the node the run loop starts from on a fresh state.
func (g *Graph) SetEntry(name string) {
	g.entry = name
}

// SetRouter attaches a router to a node together with its declared targets.
// Targets may name other nodes or RouteEnd; a router returning anything
// outside its declaration is an execution fault at run time.
func (g *Graph) SetRouter(name string, fn RouterFunc, targets ...string) error {
	if fn == nil {
		return types.NewError(types.ErrInvalidConfig, fmt.Sprintf("node %q has nil router", name))
	}
	set := make(map[string]bool, len(targets))
	for _, t := range targets {
		set[t] = true
	}
	g.routers[name] = routerSpec{fn: fn, targets: set}
	return nil
}

// Compiled is the validated, immutable form of a graph.
type Compiled struct {
	nodes   map[string]ExecutorFunc
	routers map[string]routerSpec
	entry   string
}

// Compile validates the graph and freezes it: the entry must resolve, every
// node needs a router, every declared target must be a real node or RouteEnd,
// and every node must be reachable from the entry.
func (g *Graph) Compile() (*Compiled, error) {
	if g.entry == "" {
		return nil, types.NewError(types.ErrInvalidConfig, "graph entry not set")
	}
	if _, ok := g.nodes[g.entry]; !ok {
		return nil, types.NewError(types.ErrInvalidConfig, fmt.Sprintf("entry %q is not a node", g.entry))
	}

	for name := range g.nodes {
		spec, ok := g.routers[name]
		if !ok {
			return nil, types.NewError(types.ErrInvalidConfig, fmt.Sprintf("node %q has no router", name))
		}
		for target := range spec.targets {
			if target == RouteEnd {
				continue
			}
			if _, ok := g.nodes[target]; !ok {
				return nil, types.NewError(types.ErrInvalidConfig,
					fmt.Sprintf("node %q declares unknown target %q", name, target))
			}
		}
	}
	for name := range g.routers {
		if _, ok := g.nodes[name]; !ok {
			return nil, types.NewError(types.ErrInvalidConfig, fmt.Sprintf("router on unknown node %q", name))
		}
	}

	if unreachable := g.unreachableFrom(g.entry); len(unreachable) > 0 {
		return nil, types.NewError(types.ErrInvalidConfig,
			fmt.Sprintf("unreachable nodes: %v", unreachable))
	}

	return &Compiled{nodes: g.nodes, routers: g.routers, entry: g.entry}, nil
}

func (g *Graph) unreachableFrom(entry string) []string {
	seen := map[string]bool{entry: true}
	queue := []string{entry}
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		for target := range g.routers[name].targets {
			if target == RouteEnd || seen[target] {
				continue
			}
			seen[target] = true
			queue = append(queue, target)
		}
	}

	var unreachable []string
	for name := range g.nodes {
		if !seen[name] {
			unreachable = append(unreachable, name)
		}
	}
	return unreachable
}

// Entry returns the entry node name.
func (c *Compiled) Entry() string { return c.entry }

// Has reports whether the graph contains the named node.
func (c *Compiled) Has(name string) bool {
	_, ok := c.nodes[name]
	return ok
}

// Execute runs the named node's executor.
func (c *Compiled) Execute(ctx context.Context, name string, st *state.State) error {
	exec, ok := c.nodes[name]
	if !ok {
		return types.NewError(types.ErrUnknownRoute, fmt.Sprintf("unknown node %q", name))
	}
	return exec(ctx, st)
}

// Route evaluates the named node's router and checks the result against the
// declared targets.
func (c *Compiled) Route(name string, st *state.State) (string, error) {
	spec, ok := c.routers[name]
	if !ok {
		return "", types.NewError(types.ErrUnknownRoute, fmt.Sprintf("no router for node %q", name))
	}
	next := spec.fn(st)
	if !spec.targets[next] {
		return "", types.NewError(types.ErrUnknownRoute,
			fmt.Sprintf("router for %q returned undeclared target %q", name, next))
	}
	return next, nil
}
