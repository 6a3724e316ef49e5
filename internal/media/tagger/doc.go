// Package tagger embeds album and artist metadata into downloaded audio
// files by shelling out to ffmpeg with stream copy, so the audio payload is
// never re-encoded.
package tagger
