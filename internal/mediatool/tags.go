package mediatool

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bogem/id3v2/v2"

	"descant/internal/pipelineerr"
)

// TagSet is the subset of ID3v2.3 fields the pipeline reads and writes.
type TagSet struct {
	Artist  string
	Album   string
	Title   string
	Comment string
}

// CommentPrefix is the fixed marker every Comment frame this pipeline writes
// begins with, per spec §4.1 and invariant 7 in spec §8.
const CommentPrefix = "[INST_DBO"

// BuildComment renders the configured Comment tag:
// "[INST_DBO__model-<model>__sr-<rate>__bit-<depth>]".
func BuildComment(model string, sampleRate, bitDepth int) string {
	return fmt.Sprintf("%s__model-%s__sr-%d__bit-%d]", CommentPrefix, model, sampleRate, bitDepth)
}

// ReadTags opens an existing MP3/audio file and reads its ID3v2 tags.
func ReadTags(path string) (TagSet, error) {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return TagSet{}, pipelineerr.Wrap(pipelineerr.ErrTagWriteFailed, "mediatool", "read_tags", path, err)
	}
	defer tag.Close()

	ts := TagSet{Artist: tag.Artist(), Album: tag.Album(), Title: tag.Title()}
	for _, f := range tag.GetFrames(tag.CommonID("Comments")) {
		if cf, ok := f.(id3v2.CommentFrame); ok {
			ts.Comment = cf.Text
			break
		}
	}
	return ts, nil
}

// WriteTags writes Artist/Album/Title/Comment (and optional cover art) as
// ID3v2.3 frames, per spec §4.1.
func WriteTags(path string, ts TagSet, coverBytes []byte, coverMIME string) error {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return pipelineerr.Wrap(pipelineerr.ErrTagWriteFailed, "mediatool", "write_tags", path, err)
	}
	defer tag.Close()

	tag.SetVersion(3)
	tag.SetDefaultEncoding(id3v2.EncodingUTF8)
	tag.SetArtist(ts.Artist)
	tag.SetAlbum(ts.Album)
	tag.SetTitle(ts.Title)
	tag.AddCommentFrame(id3v2.CommentFrame{
		Encoding:    id3v2.EncodingUTF8,
		Language:    "eng",
		Description: "",
		Text:        ts.Comment,
	})

	if len(coverBytes) > 0 {
		tag.AddAttachedPicture(id3v2.PictureFrame{
			Encoding:    id3v2.EncodingUTF8,
			MimeType:    coverMIME,
			PictureType: id3v2.PTFrontCover,
			Description: "Cover",
			Picture:     coverBytes,
		})
	}

	if err := tag.Save(); err != nil {
		return pipelineerr.Wrap(pipelineerr.ErrTagWriteFailed, "mediatool", "write_tags", path, err)
	}
	return nil
}

// ReadCoverBytes reads a cover image file from disk, returning its bytes and
// a best-effort MIME type inferred from the extension.
func ReadCoverBytes(path string) ([]byte, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	return data, coverMIMEFromExt(path), nil
}

func coverMIMEFromExt(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
