// Package extractor shells out to yt-dlp for metadata probing and audio
// download. Command execution sits behind an Executor interface so tests
// can run without the binary installed.
package extractor
