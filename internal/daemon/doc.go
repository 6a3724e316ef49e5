// Package daemon ties the long-running pieces together: single-instance
// locking, Telegram update intake, the workflow manager, and the local
// status HTTP API.
package daemon
