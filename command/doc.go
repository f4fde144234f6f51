// Package command implements the typed command layer used for inter-role
// communication. Commands are the only sanctioned way to mutate coordination
// state from within a stage: each command is a value object with a lifecycle
// (pending -> executing -> completed/failed), a structured result describing
// its effect, and a best-effort undo hook.
//
// Dispatch is a closed set: Build resolves a Spec to a concrete command with
// a single exhaustive switch, so adding a command kind is a compile-visible
// change rather than a runtime registry entry.
package command
