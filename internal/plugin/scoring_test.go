package plugin

import (
	"testing"

	"github.com/hydraplus/hydra/internal/models"
)

func TestBitrateScore(t *testing.T) {
	for bitrate, want := range map[int]int{
		320: 100,
		256: 80,
		192: 60,
		128: 40,
		0:   0,
		-5:  0,
		999: 100,
	} {
		if got := bitrateScore(bitrate); got != want {
			t.Errorf("bitrateScore(%d) = %d, want %d", bitrate, got, want)
		}
	}
}

func TestDurationScoreBins(t *testing.T) {
	const target = 180.0
	cases := []struct {
		file float64
		want int
	}{
		{180, 100},
		{182.0, 100}, // bin edges are inclusive
		{182.01, 80},
		{185.0, 80},
		{185.01, 50},
		{190.0, 50},
		{190.01, 25},
		{200.0, 25},
		{200.01, 0},
		{160.0, 25}, // symmetric below target
	}
	for _, tc := range cases {
		if got := durationScore(tc.file, target); got != tc.want {
			t.Errorf("durationScore(%v, %v) = %d, want %d", tc.file, target, got, tc.want)
		}
	}

	t.Run("unknown durations contribute nothing", func(t *testing.T) {
		if got := durationScore(0, target); got != 0 {
			t.Errorf("file unknown: got %d", got)
		}
		if got := durationScore(180, 0); got != 0 {
			t.Errorf("target unknown: got %d", got)
		}
	})
}

func TestSizeScore(t *testing.T) {
	for bytes, want := range map[int64]int{
		9 * mb:       50,
		8 * mb:       40, // boundary is exclusive
		6 * mb:       40,
		4 * mb:       30,
		2 * mb:       20,
		512 * 1024:   0,
		100 * 1024:   0,
		8*mb + 1:     50,
		1*mb + 1:     20,
	} {
		if got := sizeScore(bytes); got != want {
			t.Errorf("sizeScore(%d) = %d, want %d", bytes, got, want)
		}
	}
}

func TestFilenameScore(t *testing.T) {
	t.Run("exact substring is worth the full 50", func(t *testing.T) {
		got := filenameScore(`@@peer\Music\Prince - Purple Rain.mp3`, "Prince Purple Rain")
		if got != 50 {
			t.Errorf("got %d, want 50", got)
		}
	})

	t.Run("partial match is proportional", func(t *testing.T) {
		got := filenameScore(`@@peer\Music\Purple Haze.mp3`, "Prince Purple Rain")
		if got != 16 { // 1 of 3 words
			t.Errorf("got %d, want 16", got)
		}
	})

	t.Run("no overlap is zero", func(t *testing.T) {
		if got := filenameScore(`@@peer\other\thing.mp3`, "Prince Purple Rain"); got != 0 {
			t.Errorf("got %d, want 0", got)
		}
	})

	t.Run("punctuation and separators do not break matching", func(t *testing.T) {
		got := filenameScore(`@@peer\MUSIC\prince_-_purple.rain.mp3`, "Prince Purple Rain")
		if got != 50 {
			t.Errorf("got %d, want 50", got)
		}
	})
}

func TestScoreComposition(t *testing.T) {
	// bitrate 256 (80) + size 6MB (40) + full filename match (50) + audio
	// bonus (10), duration unknown.
	result := SearchResult{
		VirtualPath: `@@peer\Prince - Purple Rain.mp3`,
		SizeBytes:   6 * mb,
		Bitrate:     256,
	}
	target := ScoreTarget{Query: "Prince Purple Rain"}

	if got := Score(result, target); got != 180 {
		t.Errorf("raw score = %d, want 180", got)
	}

	t.Run("mp3 preference boosts mp3 and penalizes flac", func(t *testing.T) {
		target := ScoreTarget{Query: "Prince Purple Rain", Format: models.FormatMP3}
		if got := Score(result, target); got != 230 {
			t.Errorf("mp3 with mp3 preference = %d, want 230", got)
		}
	})
}

func TestFormatPreferenceReordersNotEliminates(t *testing.T) {
	target := ScoreTarget{Query: "Prince Purple Rain"}

	mp3 := SearchResult{
		VirtualPath: `@@a\Prince - Purple Rain.mp3`,
		SizeBytes:   6 * mb,
		Bitrate:     320,
	}
	flac := SearchResult{
		VirtualPath: `@@b\Prince - Purple Rain.flac`,
		SizeBytes:   9 * mb,
	}

	rawMP3 := Score(mp3, target)
	rawFLAC := Score(flac, target)
	if rawMP3 <= rawFLAC {
		t.Fatalf("precondition: raw mp3 (%d) should beat raw flac (%d)", rawMP3, rawFLAC)
	}

	flacTarget := target
	flacTarget.Format = models.FormatFLAC
	adjMP3 := Score(mp3, flacTarget)
	adjFLAC := Score(flac, flacTarget)

	if adjMP3 != rawMP3-50 {
		t.Errorf("mp3 under flac preference = %d, want raw-50 = %d", adjMP3, rawMP3-50)
	}
	if adjFLAC != rawFLAC+100 {
		t.Errorf("flac under flac preference = %d, want raw+100 = %d", adjFLAC, rawFLAC+100)
	}
	if adjFLAC <= adjMP3 {
		t.Errorf("flac preference must reorder: flac %d vs mp3 %d", adjFLAC, adjMP3)
	}
}
