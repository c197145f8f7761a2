// Package pipeline provides a step-graph execution engine for batch pipelines.
//
// A pipeline is a set of named steps with explicit dependencies. Steps are
// registered up front; the dependency relation must form a directed acyclic
// graph, and registering an edge that would close a cycle is an error. Running
// the pipeline executes every step whose dependencies finished, so independent
// branches run concurrently while a linear chain degrades to strictly
// sequential batch semantics.
//
// The pipeline stops making progress on the first step error: the run context
// is cancelled, steps that never started are marked skipped with the failing
// ancestor recorded, and the first error is returned wrapped with the name of
// the step that produced it.
//
// A step may carry a condition. When the condition declines, the step is
// marked skipped with the condition's reason, and its dependents still run.
// This is how no-op gates (such as a version-gated publication) are expressed
// without turning a declined gate into a failure.
package pipeline
