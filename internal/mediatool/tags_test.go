package mediatool_test

import (
	"os"
	"path/filepath"
	"testing"

	"descant/internal/mediatool"
)

func TestBuildCommentFormatsModelRateAndDepth(t *testing.T) {
	got := mediatool.BuildComment("htdemucs", 44100, 16)
	want := "[INST_DBO__model-htdemucs__sr-44100__bit-16]"
	if got != want {
		t.Fatalf("BuildComment = %q, want %q", got, want)
	}
}

func TestBuildCommentHasStablePrefix(t *testing.T) {
	got := mediatool.BuildComment("mdx_extra", 48000, 24)
	if got[:len(mediatool.CommentPrefix)] != mediatool.CommentPrefix {
		t.Fatalf("expected comment to start with %q, got %q", mediatool.CommentPrefix, got)
	}
}

func newBareAudioFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "track.mp3")
	if err := os.WriteFile(path, []byte{}, 0o644); err != nil {
		t.Fatalf("write placeholder audio file: %v", err)
	}
	return path
}

func TestWriteTagsThenReadTagsRoundTrips(t *testing.T) {
	path := newBareAudioFile(t)

	ts := mediatool.TagSet{
		Artist:  "Pink Floyd",
		Album:   "The Wall",
		Title:   "Comfortably Numb",
		Comment: mediatool.BuildComment("htdemucs", 44100, 16),
	}
	if err := mediatool.WriteTags(path, ts, nil, ""); err != nil {
		t.Fatalf("WriteTags: %v", err)
	}

	got, err := mediatool.ReadTags(path)
	if err != nil {
		t.Fatalf("ReadTags: %v", err)
	}
	if got.Artist != ts.Artist || got.Album != ts.Album || got.Title != ts.Title || got.Comment != ts.Comment {
		t.Fatalf("round-tripped tags = %+v, want %+v", got, ts)
	}
}

func TestWriteTagsSucceedsWithCoverBytes(t *testing.T) {
	path := newBareAudioFile(t)
	cover := []byte{0xFF, 0xD8, 0xFF, 0xE0}

	ts := mediatool.TagSet{Artist: "Artist", Album: "Album", Title: "Title"}
	if err := mediatool.WriteTags(path, ts, cover, "image/jpeg"); err != nil {
		t.Fatalf("WriteTags with cover: %v", err)
	}

	got, err := mediatool.ReadTags(path)
	if err != nil {
		t.Fatalf("ReadTags: %v", err)
	}
	if got.Title != ts.Title {
		t.Fatalf("expected title to survive a write that also embeds a cover, got %q", got.Title)
	}
}

func TestReadCoverBytesReadsFileAndInfersMIME(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cover.png")
	want := []byte{0x89, 0x50, 0x4E, 0x47}
	if err := os.WriteFile(path, want, 0o644); err != nil {
		t.Fatalf("write cover.png: %v", err)
	}

	got, mime, err := mediatool.ReadCoverBytes(path)
	if err != nil {
		t.Fatalf("ReadCoverBytes: %v", err)
	}
	if mime != "image/png" {
		t.Fatalf("expected mime image/png, got %q", mime)
	}
	if string(got) != string(want) {
		t.Fatalf("expected cover bytes round-trip, got %v", got)
	}
}

func TestReadCoverBytesDefaultsUnknownExtensionToJPEG(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cover.img")
	if err := os.WriteFile(path, []byte{0xFF, 0xD8}, 0o644); err != nil {
		t.Fatalf("write cover.img: %v", err)
	}

	_, mime, err := mediatool.ReadCoverBytes(path)
	if err != nil {
		t.Fatalf("ReadCoverBytes: %v", err)
	}
	if mime != "image/jpeg" {
		t.Fatalf("expected mime image/jpeg, got %q", mime)
	}
}

func TestReadCoverBytesMissingFileErrors(t *testing.T) {
	if _, _, err := mediatool.ReadCoverBytes(filepath.Join(t.TempDir(), "missing.jpg")); err == nil {
		t.Fatal("expected an error for a missing cover file")
	}
}
