// Package task contains the dispatcher that executes due tasks, the
// kind-specific execution behaviors, and the startup recovery that
// rebuilds the in-memory schedule from durable state.
package task
