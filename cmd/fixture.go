package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/gmx/internal/fixture"
)

// Fixture writes the sample MP3 and prints the tags read back from it.
func (r *Runner) Fixture(ctx context.Context, cmd *cli.Command) error {
	dir := cmd.String("dir")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	path, err := fixture.Generate(dir, fixture.NewSample(cmd.Bool("unique")))
	if err != nil {
		return err
	}
	r.logger.Debug("sample written", "path", path)

	tags, err := fixture.ReadTags(path)
	if err != nil {
		return err
	}

	r.writePlain("✓ Wrote %s\n", path)
	r.writePlain("Title:        %s\n", tags.Title)
	r.writePlain("Artist:       %s\n", tags.Artist)
	r.writePlain("Album:        %s\n", tags.Album)
	r.writePlain("Album artist: %s\n", tags.AlbumArtist)
	return r.writePlain("Track:        %d\n", tags.TrackNumber)
}
