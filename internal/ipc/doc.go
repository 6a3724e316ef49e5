// Package ipc exposes daemon control over JSON-RPC on a Unix domain
// socket. The CLI is the only intended client; the protocol carries
// queue inspection and maintenance operations plus daemon lifecycle.
package ipc
