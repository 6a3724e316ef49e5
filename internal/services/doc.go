// Package services holds the error taxonomy and context annotations shared
// by the relay stages. Sentinel errors classify failures for status mapping
// and user-facing replies; context helpers carry job, chat, stage, and
// correlation identifiers through stage execution.
package services
