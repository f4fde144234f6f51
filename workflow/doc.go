/*
Package workflow is the coordination graph engine: named stage nodes joined
by conditional routers, driven by a step loop that executes each node under
the durable retry wrapper.

The graph is fixed at engine construction and compiled once — Compile
validates the entry, the routers and their declared targets, and node
reachability. Routers are pure functions of the coordination state, so the
same state always routes the same way.

The supervisor is part of the engine, not a worker: the supervision node
scores result coverage (ScorePolicy), stores its decision in
ResultsByRole[supervision], and the supervision router reads that stored
decision to either finish the run or send it back to an earlier stage.

Run loop contract: check pause, consume the pending next-role designation,
execute the node under the durable wrapper, persist a snapshot, emit a
progress record, route. Execution faults (retry exhaustion, panics, unknown
routes, the MaxSteps guard) promote the run to the terminal error stage.
*/
package workflow
