// Package main hosts the soundrelay CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into IPC
// calls against the daemon: lifecycle control, queue maintenance, status
// reporting, dependency checks, and configuration scaffolding. Queue
// commands fall back to direct database access when the daemon is not
// running, so the queue stays inspectable offline.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
