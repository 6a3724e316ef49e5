package queue

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Track is one (file, metadata) pair within a relay job. Single-track links
// produce exactly one entry; playlist links produce one per playlist entry.
type Track struct {
	Number   int     `json:"number"`
	Artist   string  `json:"artist"`
	Title    string  `json:"title"`
	Ext      string  `json:"ext"`
	FilePath string  `json:"file_path,omitempty"`
	Duration int     `json:"duration,omitempty"`
	Delivery string  `json:"delivery,omitempty"`
	Percent  float64 `json:"-"`
}

// Tracks decodes the job's track list. An empty TracksJSON yields nil.
func (j *Job) Tracks() ([]Track, error) {
	raw := strings.TrimSpace(j.TracksJSON)
	if raw == "" {
		return nil, nil
	}
	var tracks []Track
	if err := json.Unmarshal([]byte(raw), &tracks); err != nil {
		return nil, fmt.Errorf("decode tracks: %w", err)
	}
	return tracks, nil
}

// SetTracks encodes the track list onto the job.
func (j *Job) SetTracks(tracks []Track) error {
	if len(tracks) == 0 {
		j.TracksJSON = ""
		j.TrackCount = 0
		return nil
	}
	encoded, err := json.Marshal(tracks)
	if err != nil {
		return fmt.Errorf("encode tracks: %w", err)
	}
	j.TracksJSON = string(encoded)
	j.TrackCount = len(tracks)
	return nil
}
