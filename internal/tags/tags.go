// package tags writes format-appropriate metadata into downloaded audio files
package tags

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hydraplus/hydra/internal/shared"
)

const (
	// minFileSize guards against tagging placeholder or truncated files.
	minFileSize = 1024
	// maxFileSize: anything larger is left untagged rather than rewritten.
	maxFileSize = 500 * 1024 * 1024
	// maxCoverSize: larger covers are omitted while other tags still write.
	maxCoverSize = 10 * 1024 * 1024
	// writeTimeout abandons a wedged write; the file keeps its renamed and
	// moved state, only the tags are lost.
	writeTimeout = 10 * time.Second
)

// Request describes one tag-write operation. Title, Artist and Album are
// always written; the remaining fields only when known.
type Request struct {
	Path        string
	Title       string
	Artist      string
	Album       string
	Year        string
	TrackNumber int
	Genre       string
	Label       string
	Cover       []byte // front-cover JPEG
}

// Result reports what the writer accomplished.
type Result struct {
	TagsUpdated   bool `json:"tags_updated"`
	CoverEmbedded bool `json:"cover_embedded"`
}

// Write dispatches on the file extension and writes the tag set, replacing
// all existing tags. Size-gate misses skip the write without error; a
// missing file or unsupported format is an error.
func Write(ctx context.Context, req Request) (Result, error) {
	info, err := os.Stat(req.Path)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", shared.ErrFilesystem, err)
	}
	if info.Size() < minFileSize || info.Size() > maxFileSize {
		return Result{}, nil
	}

	if int64(len(req.Cover)) > maxCoverSize {
		req.Cover = nil
	}

	var write func(Request) (Result, error)
	switch strings.ToLower(filepath.Ext(req.Path)) {
	case ".mp3":
		write = writeMP3
	case ".flac":
		write = writeFLAC
	default:
		return Result{}, fmt.Errorf("%w: %s", shared.ErrUnsupportedFormat, filepath.Ext(req.Path))
	}

	type outcome struct {
		result Result
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := write(req)
		done <- outcome{result, err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			return Result{}, fmt.Errorf("%w: %v", shared.ErrTagWrite, o.err)
		}
		return o.result, nil
	case <-time.After(writeTimeout):
		return Result{}, fmt.Errorf("%w: tag write exceeded %s", shared.ErrTimeout, writeTimeout)
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}
