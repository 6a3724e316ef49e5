// Package workflow drives queued relay jobs through the extraction,
// download, tagging, and delivery stages.
//
// The manager polls the queue store for jobs whose status marks them as
// ready for a stage, transitions them to the stage's processing status,
// runs the handler, and persists the outcome. Failures are recorded on
// the job and reported back to the requesting chat.
package workflow
