package naming

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// maxNameLength caps sanitized artist and title components so work-folder
// paths stay well inside filesystem limits.
const maxNameLength = 50

var invalidChars = regexp.MustCompile(`[/\\:*?"<>|()]`)

// Sanitize replaces filesystem-hostile characters with underscores, trims
// surrounding whitespace, and caps the result at 50 runes.
func Sanitize(name string) string {
	cleaned := invalidChars.ReplaceAllString(strings.TrimSpace(name), "_")
	cleaned = strings.TrimSpace(cleaned)
	runes := []rune(cleaned)
	if len(runes) > maxNameLength {
		cleaned = string(runes[:maxNameLength])
	}
	return cleaned
}

// SanitizeArtist sanitizes an artist name, substituting a fallback when the
// result is empty.
func SanitizeArtist(artist string) string {
	if cleaned := Sanitize(artist); cleaned != "" {
		return cleaned
	}
	return "Unknown Artist"
}

// SanitizeTitle sanitizes a track title, substituting a fallback when the
// result is empty.
func SanitizeTitle(title string) string {
	if cleaned := Sanitize(title); cleaned != "" {
		return cleaned
	}
	return "Untitled"
}

// TrackFolder returns the per-job work folder name, "<artist> - <title>".
func TrackFolder(artist, title string) string {
	return SanitizeArtist(artist) + " - " + SanitizeTitle(title)
}

// TrackFileName returns the numbered output file name, "NN <title>.<ext>".
func TrackFileName(number int, title, ext string) string {
	if number <= 0 {
		number = 1
	}
	ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
	if ext == "" {
		ext = "mp3"
	}
	return fmt.Sprintf("%02d %s.%s", number, SanitizeTitle(title), ext)
}

// OutputTemplate returns the extractor output template for a numbered
// track, leaving the extension placeholder for the extractor to fill in.
func OutputTemplate(number int, title string) string {
	if number <= 0 {
		number = 1
	}
	return fmt.Sprintf("%02d %s.%%(ext)s", number, SanitizeTitle(title))
}

// TaggedFileName returns the temporary name ffmpeg writes tagged output to
// before it is renamed over the original.
func TaggedFileName(number int, title, ext string) string {
	ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
	if ext == "" {
		ext = "mp3"
	}
	if number <= 0 {
		number = 1
	}
	return fmt.Sprintf("%02d %s (tagged).%s", number, SanitizeTitle(title), ext)
}

// DeliveryFileName returns the visible name used for the document-send
// fallback, "<artist> - <title>.<ext>".
func DeliveryFileName(artist, title, ext string) string {
	ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
	if ext == "" {
		ext = "mp3"
	}
	return fmt.Sprintf("%s - %s.%s", SanitizeArtist(artist), SanitizeTitle(title), ext)
}

// DisplayTitle renders a human-facing title with word casing applied.
func DisplayTitle(title string) string {
	cleaned := strings.TrimSpace(title)
	if cleaned == "" {
		return "Untitled"
	}
	return cases.Title(language.Und, cases.NoLower).String(cleaned)
}

// MatchFile pairs a downloaded file with a metadata entry by sanitized
// title. candidates are base names inside the work folder; they carry the
// extractor's raw titles, so both sides are sanitized before comparing.
// Returns the matched base name and true, or "" and false when nothing
// matches.
func MatchFile(title string, candidates []string) (string, bool) {
	want := strings.ToLower(SanitizeTitle(title))
	for _, candidate := range candidates {
		base := strings.TrimSuffix(candidate, filepath.Ext(candidate))
		base = invalidChars.ReplaceAllString(base, "_")
		if strings.Contains(strings.ToLower(base), want) {
			return candidate, true
		}
	}
	return "", false
}
