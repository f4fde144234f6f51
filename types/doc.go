// Package types contains shared types used across the coordflow framework,
// most importantly the structured error type that carries the error taxonomy
// (validation errors, worker errors, execution faults, invariant violations).
package types
