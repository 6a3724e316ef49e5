// Package queue persists relay jobs in SQLite so the daemon can survive
// restarts without losing in-flight requests. Each job tracks one inbound
// chat message through the extract, download, tag, and deliver stages.
package queue
