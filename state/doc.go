// Package state defines the coordination state shared by all worker roles in
// a workflow run: the current stage, task lifecycle tracking, per-role message
// logs, result and error maps, and the free-form execution context.
//
// A State instance has exactly one writer at a time — the currently executing
// node or the command it invokes. The package performs no internal locking;
// exclusive ownership is the caller's responsibility (the run controller
// enforces it with an actor-style run goroutine).
package state
