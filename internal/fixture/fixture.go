// package fixture generates the small tagged MP3 uploaded by the live suite.
//
// The file is an ID3v2.4 tag followed by silent MPEG-1 Layer III frames, so
// it is accepted by anything that sniffs MP3 content while staying a few KB.
package fixture

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/bogem/id3v2/v2"
	"github.com/dhowden/tag"

	"github.com/desertthunder/gmx/internal/shared"
)

// FileName is the name Generate uses inside a sample directory.
const FileName = "gmx_sample.mp3"

const (
	// 128 kbps, 44.1 kHz, mono, no CRC, original
	frameHeader0, frameHeader1, frameHeader2, frameHeader3 = 0xFF, 0xFB, 0x90, 0xC4
	// 144 * 128000 / 44100
	frameLength = 417
	// about one second of audio
	frameCount = 39
)

// Sample is the metadata written into the generated file.
type Sample struct {
	Title       string
	Artist      string
	Album       string
	AlbumArtist string
	TrackNumber int
}

// DefaultSample returns fixed tags.
func DefaultSample() Sample {
	return Sample{
		Title:       "gmx test song",
		Artist:      "gmx test artist",
		Album:       "gmx test album",
		AlbumArtist: "gmx test artist",
		TrackNumber: 1,
	}
}

// NewSample returns tags suffixed with a per-run id so searches hit exactly this upload.
func NewSample(unique bool) Sample {
	s := DefaultSample()
	if !unique {
		return s
	}

	suffix := " " + shared.ShortID()
	s.Title += suffix
	s.Artist += suffix
	s.Album += suffix
	s.AlbumArtist = s.Artist
	return s
}

// Encode returns the bytes of a tagged silent MP3.
func Encode(s Sample) ([]byte, error) {
	if s.Title == "" {
		return nil, fmt.Errorf("%w: sample title is required", shared.ErrInvalidInput)
	}

	t := id3v2.NewEmptyTag()
	t.SetVersion(4)
	t.SetDefaultEncoding(id3v2.EncodingUTF8)
	t.SetTitle(s.Title)
	t.SetArtist(s.Artist)
	t.SetAlbum(s.Album)
	t.SetGenre("Test")
	if s.AlbumArtist != "" {
		t.AddTextFrame("TPE2", id3v2.EncodingUTF8, s.AlbumArtist)
	}
	if s.TrackNumber > 0 {
		t.AddTextFrame("TRCK", id3v2.EncodingUTF8, strconv.Itoa(s.TrackNumber))
	}

	var buf bytes.Buffer
	if _, err := t.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write tag: %w", err)
	}
	buf.Write(silence())

	return buf.Bytes(), nil
}

func silence() []byte {
	frames := make([]byte, frameLength*frameCount)
	for i := 0; i < frameCount; i++ {
		off := i * frameLength
		frames[off] = frameHeader0
		frames[off+1] = frameHeader1
		frames[off+2] = frameHeader2
		frames[off+3] = frameHeader3
	}
	return frames
}

// Generate writes the sample into dir and returns its path.
//
// An empty dir uses a new temporary directory; the caller removes it.
func Generate(dir string, s Sample) (string, error) {
	if dir == "" {
		tmp, err := os.MkdirTemp("", "gmx-sample-")
		if err != nil {
			return "", fmt.Errorf("failed to create sample directory: %w", err)
		}
		dir = tmp
	} else if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create sample directory: %w", err)
	}

	data, err := Encode(s)
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write sample: %w", err)
	}
	return path, nil
}

// ReadTags reads the tags back from an audio file.
func ReadTags(path string) (Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return Sample{}, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	meta, err := tag.ReadFrom(f)
	if err != nil {
		if errors.Is(err, tag.ErrNoTagsFound) {
			return Sample{}, fmt.Errorf("%w: %s has no tags", shared.ErrInvalidInput, path)
		}
		return Sample{}, fmt.Errorf("failed to read tags: %w", err)
	}

	track, _ := meta.Track()
	return Sample{
		Title:       meta.Title(),
		Artist:      meta.Artist(),
		Album:       meta.Album(),
		AlbumArtist: meta.AlbumArtist(),
		TrackNumber: track,
	}, nil
}
