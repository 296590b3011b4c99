// Package metaheuristics resolves Artist/Album/Title and cover art from
// folder and filename structure when embedded tags are absent, grounded on
// original_source/app/metadata.py's find_album_art_in_dir and spec §4.6
// steps 1-2.
package metaheuristics

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Resolved carries the best-effort metadata derived from a path.
type Resolved struct {
	Artist string
	Album  string
	Title  string
}

// hyphenSeparators matches "Artist - Album" and "Artist – Album" (en dash),
// per spec §4.6 step 1.
var hyphenSeparators = regexp.MustCompile(`\s+[-\x{2013}]\s+`)

// leadingTrackNumber matches a leading track number followed by a common
// separator, e.g. "01. Title", "03 - Title", "7_Title".
var leadingTrackNumber = regexp.MustCompile(`^\d{1,3}[\s._-]+`)

// FromFolderName splits a "Artist - Album" or "Artist – Album" folder name.
func FromFolderName(name string) (artist, album string, ok bool) {
	parts := hyphenSeparators.Split(name, 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), true
}

// FromNestedPath recognizes an Artist/Album/Track.ext hierarchy relative to
// some queue/library root, returning as much as the path depth supports.
func FromNestedPath(relPath string) Resolved {
	parts := strings.Split(filepath.ToSlash(relPath), "/")
	var r Resolved
	switch len(parts) {
	case 1:
		r.Title = TitleFromFilename(parts[0])
	case 2:
		r.Album = parts[0]
		r.Title = TitleFromFilename(parts[1])
	default:
		r.Artist = parts[len(parts)-3]
		r.Album = parts[len(parts)-2]
		r.Title = TitleFromFilename(parts[len(parts)-1])
	}
	return r
}

// TitleFromFilename strips the extension and a leading track number, per
// spec §4.6 step 1: "When only the filename yields a title, strip a leading
// numeric track number followed by a separator."
func TitleFromFilename(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	base = leadingTrackNumber.ReplaceAllString(base, "")
	return strings.TrimSpace(base)
}

// coverCandidates lists filenames searched for in priority order, per spec
// §4.6 step 2, case-insensitively.
var coverCandidates = []string{"cover.jpg", "cover.jpeg", "cover.png", "cover.webp"}

// FindCover returns the path to a cover image in dir, preferring the exact
// candidate names case-insensitively; returns "" when none is found.
func FindCover(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	byLower := make(map[string]string, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			byLower[strings.ToLower(e.Name())] = e.Name()
		}
	}
	for _, candidate := range coverCandidates {
		if name, ok := byLower[candidate]; ok {
			return filepath.Join(dir, name)
		}
	}
	return ""
}
