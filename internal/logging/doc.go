// Package logging builds the slog loggers used across soundrelay. It
// provides a human-oriented console handler, a JSON handler for machine
// consumption, and helpers that thread job/chat/stage identifiers from
// context into every record.
package logging
