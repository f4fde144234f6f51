// Package worker defines the invocation boundary between the coordination
// engine and the role workers that do the actual work. The engine only sees
// the Invoker interface; concrete workers (mock or external) are registered
// per role and injected into the engine.
package worker
