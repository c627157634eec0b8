package tags

import (
	"os"
	"strconv"

	"github.com/go-flac/flacpicture"
	"github.com/go-flac/flacvorbis"
	"github.com/go-flac/go-flac"
)

// writeFLAC replaces the Vorbis comment and picture blocks. The rewritten
// stream lands via temp file + rename.
func writeFLAC(req Request) (Result, error) {
	file, err := flac.ParseFile(req.Path)
	if err != nil {
		return Result{}, err
	}

	kept := file.Meta[:0]
	for _, block := range file.Meta {
		if block.Type == flac.VorbisComment || block.Type == flac.Picture {
			continue
		}
		kept = append(kept, block)
	}
	file.Meta = kept

	comments := flacvorbis.New()
	add := func(key, value string) {
		if value != "" {
			comments.Add(key, value)
		}
	}
	add(flacvorbis.FIELD_TITLE, req.Title)
	add(flacvorbis.FIELD_ARTIST, req.Artist)
	add(flacvorbis.FIELD_ALBUM, req.Album)
	add(flacvorbis.FIELD_DATE, req.Year)
	add(flacvorbis.FIELD_TRACKNUMBER, trackNumberField(req.TrackNumber))
	add(flacvorbis.FIELD_GENRE, req.Genre)
	add("LABEL", req.Label)

	commentBlock := comments.Marshal()
	file.Meta = append(file.Meta, &commentBlock)

	coverEmbedded := false
	if len(req.Cover) > 0 {
		picture, err := flacpicture.NewFromImageData(flacpicture.PictureTypeFrontCover, "Front cover", req.Cover, "image/jpeg")
		if err == nil {
			pictureBlock := picture.Marshal()
			file.Meta = append(file.Meta, &pictureBlock)
			coverEmbedded = true
		}
	}

	tmp := req.Path + ".tmp"
	if err := file.Save(tmp); err != nil {
		os.Remove(tmp)
		return Result{}, err
	}
	if err := os.Rename(tmp, req.Path); err != nil {
		os.Remove(tmp)
		return Result{}, err
	}

	return Result{TagsUpdated: true, CoverEmbedded: coverEmbedded}, nil
}

func trackNumberField(n int) string {
	if n <= 0 {
		return ""
	}
	return strconv.Itoa(n)
}
