package stage

import (
	"soundrelay/internal/queue"
	"soundrelay/internal/services"
)

// JobTracks decodes the job's track list and requires it to be non-empty.
// On failure it returns a services.ErrValidation suitable for stage Execute methods.
func JobTracks(job *queue.Job) ([]queue.Track, error) {
	tracks, err := job.Tracks()
	if err != nil {
		return nil, services.Wrap(
			services.ErrValidation, "stage", "decode tracks",
			"Track metadata missing or invalid; rerun extraction", err)
	}
	if len(tracks) == 0 {
		return nil, services.Wrap(
			services.ErrValidation, "stage", "decode tracks",
			"Job carries no tracks; rerun extraction", nil)
	}
	return tracks, nil
}
