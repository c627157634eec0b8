package organize

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSanitize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`AC/DC`, "ACDC"},
		{`What? No: "Really"`, "What No Really"},
		{`  trimmed  `, "trimmed"},
		{`back\slash|pipe*star`, "backslashpipestar"},
		{"clean", "clean"},
	}
	for _, c := range cases {
		if got := Sanitize(c.in); got != c.want {
			t.Errorf("Sanitize(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestRenderPattern(t *testing.T) {
	t.Run("all tokens", func(t *testing.T) {
		got := RenderPattern("{trackNum} {artist} - {track}", Substitutions{
			Artist:   "Prince",
			Track:    "When Doves Cry",
			TrackNum: 7,
		})
		if got != "07 Prince - When Doves Cry" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("zero track number expands to nothing", func(t *testing.T) {
		got := RenderPattern("{trackNum} {artist} - {track}", Substitutions{
			Artist: "Prince",
			Track:  "Purple Rain",
		})
		if got != "Prince - Purple Rain" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("empty artist drops the dangling separator", func(t *testing.T) {
		got := RenderPattern("{artist} - {track}", Substitutions{Track: "Purple Rain"})
		if got != "Purple Rain" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("empty track drops the trailing separator", func(t *testing.T) {
		got := RenderPattern("{artist} - {track}", Substitutions{Artist: "Prince"})
		if got != "Prince" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("whitespace runs collapse", func(t *testing.T) {
		got := RenderPattern("{artist}   -   {track}", Substitutions{Artist: "A", Track: "B"})
		if got != "A - B" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("tokens are sanitized", func(t *testing.T) {
		got := RenderPattern("{artist} - {track}", Substitutions{Artist: "AC/DC", Track: "T.N.T?"})
		if got != "ACDC - T.N.T" {
			t.Errorf("got %q", got)
		}
	})
}

func TestRenameFile(t *testing.T) {
	t.Run("renames preserving extension", func(t *testing.T) {
		dir := t.TempDir()
		src := filepath.Join(dir, "in.mp3")
		os.WriteFile(src, []byte("x"), 0644)

		got, renamed, err := RenameFile(src, "Prince - Purple Rain")
		if err != nil {
			t.Fatalf("RenameFile: %v", err)
		}
		if !renamed || filepath.Base(got) != "Prince - Purple Rain.mp3" {
			t.Errorf("got %q renamed=%v", got, renamed)
		}
	})

	t.Run("collision appends (N)", func(t *testing.T) {
		dir := t.TempDir()
		os.WriteFile(filepath.Join(dir, "A - T.mp3"), []byte("first"), 0644)

		src := filepath.Join(dir, "second.mp3")
		os.WriteFile(src, []byte("second"), 0644)
		got, _, err := RenameFile(src, "A - T")
		if err != nil {
			t.Fatalf("RenameFile: %v", err)
		}
		if filepath.Base(got) != "A - T (1).mp3" {
			t.Errorf("got %q, want A - T (1).mp3", filepath.Base(got))
		}

		third := filepath.Join(dir, "third.mp3")
		os.WriteFile(third, []byte("third"), 0644)
		got, _, err = RenameFile(third, "A - T")
		if err != nil {
			t.Fatalf("RenameFile: %v", err)
		}
		if filepath.Base(got) != "A - T (2).mp3" {
			t.Errorf("got %q, want A - T (2).mp3", filepath.Base(got))
		}
	})

	t.Run("empty base is a no-op", func(t *testing.T) {
		dir := t.TempDir()
		src := filepath.Join(dir, "keep.mp3")
		os.WriteFile(src, []byte("x"), 0644)

		got, renamed, err := RenameFile(src, "")
		if err != nil || renamed || got != src {
			t.Errorf("got %q renamed=%v err=%v", got, renamed, err)
		}
	})
}

func TestAlbumFolder(t *testing.T) {
	t.Run("name includes year when known", func(t *testing.T) {
		if got := AlbumFolderName("Prince", "Purple Rain", "1984"); got != "Prince - Purple Rain (1984)" {
			t.Errorf("got %q", got)
		}
		if got := AlbumFolderName("Prince", "Purple Rain", ""); got != "Prince - Purple Rain" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("EnsureAlbumFolder is idempotent", func(t *testing.T) {
		dir := t.TempDir()
		path1, name, err := EnsureAlbumFolder(dir, "Prince", "Purple Rain", "1984")
		if err != nil {
			t.Fatalf("EnsureAlbumFolder: %v", err)
		}
		path2, _, err := EnsureAlbumFolder(dir, "Prince", "Purple Rain", "1984")
		if err != nil {
			t.Fatalf("second EnsureAlbumFolder: %v", err)
		}
		if path1 != path2 || name != "Prince - Purple Rain (1984)" {
			t.Errorf("paths %q vs %q, name %q", path1, path2, name)
		}
	})

	t.Run("MoveToFolder applies collision policy", func(t *testing.T) {
		dir := t.TempDir()
		folder := filepath.Join(dir, "album")
		os.MkdirAll(folder, 0755)
		os.WriteFile(filepath.Join(folder, "song.mp3"), []byte("occupied"), 0644)

		src := filepath.Join(dir, "song.mp3")
		os.WriteFile(src, []byte("x"), 0644)

		got, moved, err := MoveToFolder(src, folder)
		if err != nil {
			t.Fatalf("MoveToFolder: %v", err)
		}
		if !moved || filepath.Base(got) != "song (1).mp3" {
			t.Errorf("got %q moved=%v", got, moved)
		}
	})

	t.Run("move into a missing folder fails with renamed-but-not-moved state", func(t *testing.T) {
		dir := t.TempDir()
		src := filepath.Join(dir, "song.mp3")
		os.WriteFile(src, []byte("x"), 0644)

		got, moved, err := MoveToFolder(src, filepath.Join(dir, "absent"))
		if err == nil || moved || got != src {
			t.Errorf("expected failure leaving file in place, got %q moved=%v err=%v", got, moved, err)
		}
	})
}
