// Package notifications delivers daemon and relay events via pluggable
// notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when notifications are
// disabled. Per-category toggles (lifecycle, relay, errors) let operators
// subscribe only to the events they care about.
//
// Extend this package if you need alternative transports; all relay code
// depends only on the simple Service interface.
package notifications
