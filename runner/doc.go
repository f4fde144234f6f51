/*
Package runner is the public run surface: it owns run lifecycles and applies
the actor model to each one.

Every run gets a single goroutine with exclusive ownership of its coordination
state. External callers never touch the state directly — commands travel as
envelopes over the run's channel and are applied between engine steps by the
owning goroutine, summaries are published as immutable copies, and the full
state is only handed out after the run reaches a terminal stage.

Runs dispatch onto a bounded pool, so many independent runs share a capped
set of goroutines. Terminal runs are archived best-effort and their snapshots
deleted or retained per configuration.
*/
package runner
