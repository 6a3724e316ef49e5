package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a relay job.
type Status string

const (
	StatusPending     Status = "pending"
	StatusExtracting  Status = "extracting"
	StatusExtracted   Status = "extracted"
	StatusDownloading Status = "downloading"
	StatusDownloaded  Status = "downloaded"
	StatusTagging     Status = "tagging"
	StatusTagged      Status = "tagged"
	StatusDelivering  Status = "delivering"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
)

var allStatuses = []Status{
	StatusPending,
	StatusExtracting,
	StatusExtracted,
	StatusDownloading,
	StatusDownloaded,
	StatusTagging,
	StatusTagged,
	StatusDelivering,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = map[Status]struct{}{
	StatusExtracting:  {},
	StatusDownloading: {},
	StatusTagging:     {},
	StatusDelivering:  {},
}

type statusTransition struct {
	from Status
	to   Status
}

// stageRollbackTransitions map in-flight statuses back to the status that
// re-enters the interrupted stage on the next poll.
var stageRollbackTransitions = []statusTransition{
	{from: StatusExtracting, to: StatusPending},
	{from: StatusDownloading, to: StatusExtracted},
	{from: StatusTagging, to: StatusDownloaded},
	{from: StatusDelivering, to: StatusTagged},
}

// HealthSummary describes aggregated queue counts per key lifecycle states.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Failed     int
	Completed  int
}

// Job represents a relay request persisted in SQLite.
type Job struct {
	ID           int64
	ChatID       int64
	MessageID    int64
	URL          string
	Artist       string
	Title        string
	Status       Status
	WorkDir      string
	TrackCount   int
	TracksJSON   string
	DeliveryMode string
	ErrorMessage string
	ProgressMsg  string
	RequestID    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DisplayTitle returns "Artist - Title" when both are known, falling back to the URL.
func (j *Job) DisplayTitle() string {
	artist := strings.TrimSpace(j.Artist)
	title := strings.TrimSpace(j.Title)
	switch {
	case artist != "" && title != "":
		return artist + " - " + title
	case title != "":
		return title
	default:
		return j.URL
	}
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ParseStatus validates a raw status string.
func ParseStatus(value string) (Status, bool) {
	status := Status(strings.ToLower(strings.TrimSpace(value)))
	_, ok := statusSet[status]
	return status, ok
}

// IsProcessing reports whether the status marks a job as in-flight.
func (s Status) IsProcessing() bool {
	_, ok := processingStatuses[s]
	return ok
}

// IsTerminal reports whether the status ends the job lifecycle.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}
