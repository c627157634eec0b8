package tags

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/dhowden/tag"
	"github.com/hydraplus/hydra/internal/shared"
)

// fakeMP3 returns a path to a file of audio-less filler bytes. id3v2 writes
// prepend a fresh tag, so no valid MPEG frames are required.
func fakeMP3(t *testing.T, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.mp3")
	if err := os.WriteFile(path, bytes.Repeat([]byte{0xFF}, size), 0644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path
}

func TestWriteMP3(t *testing.T) {
	t.Run("writes title artist album and extras", func(t *testing.T) {
		path := fakeMP3(t, 4096)
		result, err := Write(context.Background(), Request{
			Path:        path,
			Title:       "Purple Rain",
			Artist:      "Prince",
			Album:       "Purple Rain",
			Year:        "1984",
			TrackNumber: 9,
			Genre:       "minneapolis sound, funk",
			Label:       "Warner Bros.",
		})
		if err != nil {
			t.Fatalf("Write: %v", err)
		}
		if !result.TagsUpdated || result.CoverEmbedded {
			t.Errorf("result = %+v", result)
		}

		f, err := os.Open(path)
		if err != nil {
			t.Fatalf("opening tagged file: %v", err)
		}
		defer f.Close()

		meta, err := tag.ReadFrom(f)
		if err != nil {
			t.Fatalf("reading tags back: %v", err)
		}
		if meta.Title() != "Purple Rain" || meta.Artist() != "Prince" || meta.Album() != "Purple Rain" {
			t.Errorf("title/artist/album = %q/%q/%q", meta.Title(), meta.Artist(), meta.Album())
		}
		if meta.Genre() != "minneapolis sound, funk" {
			t.Errorf("genre = %q", meta.Genre())
		}
		if n, _ := meta.Track(); n != 9 {
			t.Errorf("track = %d, want 9", n)
		}
	})

	t.Run("embeds cover under the cap", func(t *testing.T) {
		path := fakeMP3(t, 4096)
		cover := append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, bytes.Repeat([]byte{0}, 512)...)

		result, err := Write(context.Background(), Request{
			Path: path, Title: "T", Artist: "A", Album: "L", Cover: cover,
		})
		if err != nil {
			t.Fatalf("Write: %v", err)
		}
		if !result.CoverEmbedded {
			t.Error("cover not embedded")
		}

		f, _ := os.Open(path)
		defer f.Close()
		meta, err := tag.ReadFrom(f)
		if err != nil {
			t.Fatalf("reading tags back: %v", err)
		}
		if meta.Picture() == nil {
			t.Error("picture frame missing after write")
		}
	})

	t.Run("cover over 10MB is omitted but other tags still write", func(t *testing.T) {
		path := fakeMP3(t, 4096)
		result, err := Write(context.Background(), Request{
			Path: path, Title: "T", Artist: "A", Album: "L",
			Cover: make([]byte, 11*1024*1024),
		})
		if err != nil {
			t.Fatalf("Write: %v", err)
		}
		if !result.TagsUpdated {
			t.Error("tags should still be written")
		}
		if result.CoverEmbedded {
			t.Error("oversized cover must not be embedded")
		}
	})

	t.Run("file under 1KB skips the write entirely", func(t *testing.T) {
		path := fakeMP3(t, 512)
		before, _ := os.ReadFile(path)

		result, err := Write(context.Background(), Request{Path: path, Title: "T", Artist: "A"})
		if err != nil {
			t.Fatalf("Write: %v", err)
		}
		if result.TagsUpdated {
			t.Error("undersized file must not be tagged")
		}

		after, _ := os.ReadFile(path)
		if !bytes.Equal(before, after) {
			t.Error("undersized file was modified")
		}
	})

	t.Run("missing file is a filesystem error", func(t *testing.T) {
		_, err := Write(context.Background(), Request{Path: filepath.Join(t.TempDir(), "absent.mp3")})
		if !errors.Is(err, shared.ErrFilesystem) {
			t.Errorf("err = %v, want ErrFilesystem", err)
		}
	})

	t.Run("unsupported extension is rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "song.ogg")
		os.WriteFile(path, bytes.Repeat([]byte{1}, 2048), 0644)

		_, err := Write(context.Background(), Request{Path: path})
		if !errors.Is(err, shared.ErrUnsupportedFormat) {
			t.Errorf("err = %v, want ErrUnsupportedFormat", err)
		}
	})
}
