// package organize builds filenames from rename patterns and lays out album folders
package organize

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	forbidden  = regexp.MustCompile(`[<>:"/\\|?*]`)
	whitespace = regexp.MustCompile(`\s+`)
)

// Substitutions carries the metadata available for pattern tokens.
type Substitutions struct {
	Artist   string
	Track    string
	Album    string
	Year     string
	TrackNum int
}

// Sanitize strips characters that are illegal in filenames and trims the result.
func Sanitize(s string) string {
	return strings.TrimSpace(forbidden.ReplaceAllString(s, ""))
}

// TrackNumToken renders {trackNum}: zero-padded two digits when positive,
// empty otherwise.
func TrackNumToken(n int) string {
	if n <= 0 {
		return ""
	}
	return fmt.Sprintf("%02d", n)
}

// RenderPattern substitutes tokens into pattern, collapses whitespace runs
// and removes the dangling separators empty tokens leave behind. The result
// carries no extension.
func RenderPattern(pattern string, sub Substitutions) string {
	replacer := strings.NewReplacer(
		"{artist}", Sanitize(sub.Artist),
		"{track}", Sanitize(sub.Track),
		"{album}", Sanitize(sub.Album),
		"{year}", Sanitize(sub.Year),
		"{trackNum}", TrackNumToken(sub.TrackNum),
	)

	name := replacer.Replace(pattern)
	name = whitespace.ReplaceAllString(name, " ")
	name = strings.TrimSpace(name)
	name = strings.TrimPrefix(name, "- ")
	name = strings.TrimSuffix(name, " -")
	return strings.TrimSpace(name)
}

// UniquePath returns path unchanged when nothing occupies it, otherwise the
// first "name (N)" variant that is free.
func UniquePath(path string) string {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}

	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s (%d)%s", stem, n, ext)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}

// RenameFile renames the file at oldPath to newBase (no extension) in the
// same directory, preserving the original extension and avoiding collisions.
// Returns the final path and whether a rename actually happened.
func RenameFile(oldPath, newBase string) (string, bool, error) {
	if newBase == "" {
		return oldPath, false, nil
	}

	dir := filepath.Dir(oldPath)
	ext := strings.ToLower(filepath.Ext(oldPath))
	target := filepath.Join(dir, newBase+ext)
	if target == oldPath {
		return oldPath, false, nil
	}

	target = UniquePath(target)
	if err := os.Rename(oldPath, target); err != nil {
		return oldPath, false, fmt.Errorf("renaming %s: %w", oldPath, err)
	}
	return target, true, nil
}

// AlbumFolderName builds "Artist - Album (Year)", omitting the year suffix
// when unknown.
func AlbumFolderName(artist, album, year string) string {
	name := fmt.Sprintf("%s - %s", Sanitize(artist), Sanitize(album))
	if year != "" {
		name = fmt.Sprintf("%s (%s)", name, Sanitize(year))
	}
	return name
}

// EnsureAlbumFolder creates the album folder beneath downloadDir when
// missing. Idempotent. Returns the folder path and name.
func EnsureAlbumFolder(downloadDir, artist, album, year string) (string, string, error) {
	name := AlbumFolderName(artist, album, year)
	path := filepath.Join(downloadDir, name)
	if err := os.MkdirAll(path, 0755); err != nil {
		return "", "", fmt.Errorf("creating album folder: %w", err)
	}
	return path, name, nil
}

// MoveToFolder moves the file into folder, applying the collision policy.
// Returns the new path and whether the move happened.
func MoveToFolder(path, folder string) (string, bool, error) {
	if folder == "" {
		return path, false, nil
	}
	if info, err := os.Stat(folder); err != nil || !info.IsDir() {
		return path, false, fmt.Errorf("target folder %s: %w", folder, err)
	}

	target := UniquePath(filepath.Join(folder, filepath.Base(path)))
	if target == path {
		return path, false, nil
	}
	if err := os.Rename(path, target); err != nil {
		return path, false, fmt.Errorf("moving %s: %w", path, err)
	}
	return target, true, nil
}
