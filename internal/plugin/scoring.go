package plugin

import (
	"math"
	"path"
	"strings"

	"github.com/hydraplus/hydra/internal/models"
)

const (
	mb = 1024 * 1024
	// referenceBitrate anchors the proportional bitrate component:
	// 320 kbps scores the full 100 points.
	referenceBitrate = 320
)

var audioExtensions = map[string]bool{
	".mp3":  true,
	".flac": true,
	".ogg":  true,
	".m4a":  true,
	".wav":  true,
	".aac":  true,
	".wma":  true,
}

// ScoreTarget is what a candidate is scored against.
type ScoreTarget struct {
	Query    string
	Duration float64 // seconds; zero when unknown
	Format   models.FormatPreference
}

// Score ranks one search result. Components: bitrate (0-100), duration fit
// (0-100), size (0-50), filename match (0-50), audio-extension bonus (+10),
// and the format-preference adjustment. The preference only reorders; it
// never eliminates a candidate.
func Score(result SearchResult, target ScoreTarget) int {
	ext := strings.ToLower(path.Ext(result.VirtualPath))

	score := bitrateScore(result.Bitrate)
	score += durationScore(result.Duration, target.Duration)
	score += sizeScore(result.SizeBytes)
	score += filenameScore(result.VirtualPath, target.Query)
	if audioExtensions[ext] {
		score += 10
	}
	score += formatAdjustment(ext, target.Format)
	return score
}

// bitrateScore is proportional with 320 kbps as the ceiling: 320→100,
// 256→80, 192→60, 128→40.
func bitrateScore(bitrate int) int {
	if bitrate <= 0 {
		return 0
	}
	score := bitrate * 100 / referenceBitrate
	if score > 100 {
		score = 100
	}
	return score
}

// durationScore bins the absolute difference to the target duration. Bin
// edges are inclusive: a 2.0 s difference still scores 100.
func durationScore(fileDuration, targetDuration float64) int {
	if fileDuration <= 0 || targetDuration <= 0 {
		return 0
	}
	diff := math.Abs(fileDuration - targetDuration)
	switch {
	case diff <= 2:
		return 100
	case diff <= 5:
		return 80
	case diff <= 10:
		return 50
	case diff <= 20:
		return 25
	default:
		return 0
	}
}

func sizeScore(bytes int64) int {
	switch {
	case bytes > 8*mb:
		return 50
	case bytes > 5*mb:
		return 40
	case bytes > 3*mb:
		return 30
	case bytes > 1*mb:
		return 20
	default:
		return 0
	}
}

// filenameScore compares the normalized virtual path against the normalized
// query: an exact-substring match is worth the full 50, otherwise the score
// is proportional to how many query words appear in the path.
func filenameScore(virtualPath, query string) int {
	normPath := normalize(virtualPath)
	normQuery := normalize(query)
	if normQuery == "" {
		return 0
	}
	if strings.Contains(normPath, normQuery) {
		return 50
	}

	words := strings.Fields(normQuery)
	matched := 0
	for _, word := range words {
		if strings.Contains(normPath, word) {
			matched++
		}
	}
	return 50 * matched / len(words)
}

func formatAdjustment(ext string, pref models.FormatPreference) int {
	switch pref {
	case models.FormatFLAC:
		switch ext {
		case ".flac":
			return 100
		case ".mp3":
			return -50
		}
	case models.FormatMP3:
		switch ext {
		case ".mp3":
			return 50
		case ".flac":
			return -30
		}
	}
	return 0
}

// normalize lowercases and reduces a string to space-separated alphanumeric
// words, so path separators and punctuation never break a match.
func normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastSpace := true
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastSpace = false
		} else if !lastSpace {
			b.WriteByte(' ')
			lastSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}
