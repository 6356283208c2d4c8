package tasks

import (
	"context"
	"errors"
	"path/filepath"
	"slices"

	"github.com/desertthunder/gmx/internal/check"
	"github.com/desertthunder/gmx/internal/fixture"
	"github.com/desertthunder/gmx/internal/models"
	"github.com/desertthunder/gmx/internal/services"
	"github.com/desertthunder/gmx/internal/shared"
)

const (
	GroupNoUploadAuth = "no-upload-auth"
	GroupUploadAuth   = "upload-auth"
)

// searchKeys are the categories every search response carries.
var searchKeys = []string{"album_hits", "artist_hits", "song_hits"}

// DefaultSuite returns the live suite.
//
// A song must exist before a playlist can be modified, so song_create runs
// first and playlist_create depends on it. Cleanup runs in reverse: the
// playlist is deleted before the song. Both deletes always run.
func DefaultSuite() Suite {
	return Suite{Groups: []Group{
		{
			Name: GroupNoUploadAuth,
			Steps: []Step{
				{Name: "need_upauth_for_upload", Phase: Songs, Run: needUploadAuth},
			},
		},
		{
			Name:       GroupUploadAuth,
			UploadAuth: true,
			Steps: []Step{
				{Name: "song_create", Phase: Songs, Run: songCreate},
				{Name: "playlist_create", Phase: Playlists, After: []string{"song_create"}, Run: playlistCreate},

				songStep("list_songs", Songs, listSongs),
				songStep("get_download_info", Songs, getDownloadInfo),
				songStep("search_title", Search, searchStep("song_hits", func(s *TestSong) string { return s.Title }, songHitsByID)),
				songStep("search_artist", Search, searchStep("artist_hits", func(s *TestSong) string { return s.Artist }, artistHitsByID)),
				songStep("search_album", Search, searchStep("album_hits", func(s *TestSong) string { return s.Album }, albumHitsByName)),
				songStep("song_metadata", Songs, songMetadata),

				playlistStep("change_name", changeName),
				playlistStep("add_remove", addRemove),

				{
					Name:      "playlist_delete",
					Phase:     Cleanup,
					After:     []string{"playlist_create", "change_name", "add_remove"},
					Requires:  requirePlaylist,
					AlwaysRun: true,
					Run:       playlistDelete,
				},
				{
					Name:      "song_delete",
					Phase:     Cleanup,
					After:     []string{"playlist_delete", "list_songs", "get_download_info", "search_title", "search_artist", "search_album", "song_metadata"},
					Requires:  requireSong,
					AlwaysRun: true,
					Run:       songDelete,
				},
			},
		},
	}}
}

func songStep(name string, phase Phase, run func(context.Context, *State) error) Step {
	return Step{Name: name, Phase: phase, After: []string{"song_create"}, Requires: requireSong, Run: run}
}

func playlistStep(name string, run func(context.Context, *State) error) Step {
	return Step{Name: name, Phase: Playlists, After: []string{"playlist_create"}, Requires: requirePlaylist, Run: run}
}

func requireSong(st *State) error {
	if st.Song == nil {
		return Skip("no song was stored")
	}
	return nil
}

func requirePlaylist(st *State) error {
	if st.PlaylistID == "" {
		return Skip("no playlist id was stored")
	}
	return nil
}

// pending turns errors that mean "not visible yet" into a [check.Failure] so the poll retries them.
func pending(err error, sentinels ...error) error {
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return &check.Failure{Check: "visible", Message: err.Error()}
		}
	}
	return err
}

func needUploadAuth(ctx context.Context, st *State) error {
	_, err := st.Service.Upload(ctx, "fake filename")
	return check.ErrorIs(err, shared.ErrNotLoggedIn, "upload without upload auth should require login")
}

func songCreate(ctx context.Context, st *State) error {
	path, err := fixture.Generate(st.SampleDir, st.Sample)
	if err != nil {
		return err
	}
	st.SamplePath = path
	if st.SampleDir == "" {
		st.sampleTemp = filepath.Dir(path)
	}

	res, err := st.Service.Upload(ctx, path)
	if err != nil {
		return err
	}
	if err := check.First(
		check.Empty(res.NotUploaded, "not_uploaded"),
		check.Empty(res.Matched, "matched"),
		check.Len(res.Uploaded, 1, "uploaded"),
		check.Contains(res.Uploaded, path, "uploaded should be keyed by the sample path"),
	); err != nil {
		return err
	}

	id := res.Uploaded[path]
	st.track(ctx, models.ResourceSong, id, st.Sample.Title)

	// Stored before polling so song_delete can clean up even if the listing never converges.
	st.Song = &TestSong{ID: id, Title: st.Sample.Title, Artist: st.Sample.Artist, Album: st.Sample.Album}

	song, err := Poll(ctx, st, func(ctx context.Context) (services.Song, error) {
		found, err := songsWithID(ctx, st.Service, id)
		if err != nil {
			return services.Song{}, err
		}
		if err := check.Len(found, 1, "songs with id %s", id); err != nil {
			return services.Song{}, err
		}
		return found[0], nil
	})
	if err != nil {
		return err
	}

	st.Song = &TestSong{ID: song.ID, Title: song.Title, Artist: song.Artist, Album: song.Album}
	return nil
}

func songsWithID(ctx context.Context, svc services.Service, id string) ([]services.Song, error) {
	songs, err := svc.GetAllSongs(ctx)
	if err != nil {
		return nil, err
	}
	var found []services.Song
	for _, s := range songs {
		if s.ID == id {
			found = append(found, s)
		}
	}
	return found, nil
}

func playlistCreate(ctx context.Context, st *State) error {
	id, err := st.Service.CreatePlaylist(ctx, st.PlaylistName)
	if err != nil {
		return err
	}
	st.PlaylistID = id
	st.track(ctx, models.ResourcePlaylist, id, st.PlaylistName)

	return st.Until(ctx, playlistNamed(st, st.PlaylistName, false))
}

// playlistNamed checks that the newest user playlist called name is the test playlist.
func playlistNamed(st *State, name string, includeAuto bool) func(context.Context) error {
	return func(ctx context.Context) error {
		ids, err := st.Service.GetAllPlaylistIDs(ctx, includeAuto, true)
		if err != nil {
			return err
		}
		found := ids.User[name]
		if err := check.NotEmpty(found, "no user playlist named %q", name); err != nil {
			return err
		}
		return check.Equal(st.PlaylistID, found[len(found)-1], "newest playlist named %q", name)
	}
}

// listSongs reads the library once; song_create already waited for the upload to appear.
func listSongs(ctx context.Context, st *State) error {
	found, err := songsWithID(ctx, st.Service, st.Song.ID)
	if err != nil {
		return err
	}
	return check.Len(found, 1, "songs with id %s", st.Song.ID)
}

func getDownloadInfo(ctx context.Context, st *State) error {
	info, err := st.Service.GetSongDownloadInfo(ctx, st.Song.ID)
	if err != nil {
		return err
	}
	return check.NotEmpty(info.URL, "download url")
}

// searchStep checks that searching for a field of the song yields exactly one matching hit in category.
func searchStep(
	category string,
	query func(*TestSong) string,
	hits func(*services.SearchResults, *TestSong) (total, matching int),
) func(context.Context, *State) error {
	return func(ctx context.Context, st *State) error {
		return st.Until(ctx, func(ctx context.Context) error {
			res, err := st.Service.Search(ctx, query(st.Song))
			if err != nil {
				return err
			}
			total, matching := hits(res, st.Song)
			return check.First(
				check.Equal(searchKeys, res.Keys, "search categories"),
				check.NotEqual(0, total, "%s should not be empty", category),
				check.Equal(1, matching, "%s matching the test song", category),
			)
		})
	}
}

func countSongs(hits []services.Song, id string) int {
	n := 0
	for _, h := range hits {
		if h.ID == id {
			n++
		}
	}
	return n
}

func songHitsByID(res *services.SearchResults, s *TestSong) (int, int) {
	return len(res.SongHits), countSongs(res.SongHits, s.ID)
}

func artistHitsByID(res *services.SearchResults, s *TestSong) (int, int) {
	return len(res.ArtistHits), countSongs(res.ArtistHits, s.ID)
}

func albumHitsByName(res *services.SearchResults, s *TestSong) (int, int) {
	n := 0
	for _, h := range res.AlbumHits {
		if h.AlbumName == s.Album {
			n++
		}
	}
	return len(res.AlbumHits), n
}

// songMetadata compares the stored record with the tags in the uploaded file.
func songMetadata(ctx context.Context, st *State) error {
	if st.SamplePath == "" {
		return Skip("no sample file was written")
	}
	tags, err := fixture.ReadTags(st.SamplePath)
	if err != nil {
		return err
	}
	return check.First(
		check.Equal(tags.Title, st.Song.Title, "title"),
		check.Equal(tags.Artist, st.Song.Artist, "artist"),
		check.Equal(tags.Album, st.Song.Album, "album"),
	)
}

func changeName(ctx context.Context, st *State) error {
	renamed := st.PlaylistName + "_mod"

	if err := st.Service.ChangePlaylistName(ctx, st.PlaylistID, renamed); err != nil {
		return err
	}
	if err := st.Until(ctx, playlistNamed(st, renamed, true)); err != nil {
		return err
	}

	if err := st.Service.ChangePlaylistName(ctx, st.PlaylistID, st.PlaylistName); err != nil {
		return err
	}
	return st.Until(ctx, playlistNamed(st, st.PlaylistName, true))
}

func addRemove(ctx context.Context, st *State) error {
	if st.Song == nil {
		return Skip("no song was stored")
	}
	songID := st.Song.ID

	if err := st.Until(ctx, playlistOrder(st)); err != nil {
		return err
	}

	if err := st.Service.AddSongsToPlaylist(ctx, st.PlaylistID, songID, songID); err != nil {
		return err
	}
	if err := st.Until(ctx, playlistOrder(st, songID, songID)); err != nil {
		return err
	}

	if err := st.Service.RemoveSongsFromPlaylist(ctx, st.PlaylistID, songID); err != nil {
		return err
	}
	return st.Until(ctx, playlistOrder(st))
}

// playlistOrder checks that the playlist holds exactly want, in order.
func playlistOrder(st *State, want ...string) func(context.Context) error {
	if want == nil {
		want = []string{}
	}
	return func(ctx context.Context) error {
		songs, err := st.Service.GetPlaylistSongs(ctx, st.PlaylistID)
		if err != nil {
			return pending(err, shared.ErrPlaylistNotFound)
		}
		got := make([]string, 0, len(songs))
		for _, s := range songs {
			got = append(got, s.ID)
		}
		return check.Equal(want, got, "playlist entries")
	}
}

func playlistDelete(ctx context.Context, st *State) error {
	id := st.PlaylistID
	deleted, err := st.Service.DeletePlaylist(ctx, id)
	if err != nil {
		return err
	}
	st.release(ctx, models.ResourcePlaylist, id)
	st.PlaylistID = ""

	return check.Equal(id, deleted, "deleted playlist id")
}

func songDelete(ctx context.Context, st *State) error {
	id := st.Song.ID
	deleted, err := st.Service.DeleteSongs(ctx, id)
	if err != nil {
		return err
	}
	if slices.Contains(deleted, id) {
		st.release(ctx, models.ResourceSong, id)
	}
	st.Song = nil

	return check.Equal([]string{id}, deleted, "deleted song ids")
}
