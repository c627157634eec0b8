package tags

import (
	"strconv"

	"github.com/bogem/id3v2/v2"
)

// writeMP3 replaces the file's ID3v2 tag wholesale. Pre-existing comments,
// user-defined text, popularimeter and lyrics frames are discarded.
func writeMP3(req Request) (Result, error) {
	tag, err := id3v2.Open(req.Path, id3v2.Options{Parse: true})
	if err != nil {
		return Result{}, err
	}
	defer tag.Close()

	tag.DeleteAllFrames()
	tag.SetDefaultEncoding(id3v2.EncodingUTF8)

	tag.SetTitle(req.Title)
	tag.SetArtist(req.Artist)
	tag.SetAlbum(req.Album)
	if req.Year != "" {
		tag.SetYear(req.Year)
	}
	if req.TrackNumber > 0 {
		tag.AddTextFrame(tag.CommonID("Track number/Position in set"), tag.DefaultEncoding(), strconv.Itoa(req.TrackNumber))
	}
	if req.Genre != "" {
		tag.SetGenre(req.Genre)
	}
	if req.Label != "" {
		tag.AddTextFrame("TPUB", tag.DefaultEncoding(), req.Label)
	}

	coverEmbedded := false
	if len(req.Cover) > 0 {
		tag.AddAttachedPicture(id3v2.PictureFrame{
			Encoding:    id3v2.EncodingUTF8,
			MimeType:    "image/jpeg",
			PictureType: id3v2.PTFrontCover,
			Description: "Front cover",
			Picture:     req.Cover,
		})
		coverEmbedded = true
	}

	if err := tag.Save(); err != nil {
		return Result{}, err
	}

	return Result{TagsUpdated: true, CoverEmbedded: coverEmbedded}, nil
}
