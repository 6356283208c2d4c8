// package services defines interface Service for the music library API
//
// MusicService (via JSON proxy), APIService (raw requests)
package services

import (
	"context"
)

// Service is the client surface of the music library exercised by the live suite.
//
// Every operation except Login, IsAuthenticated and Name requires a session;
// without one it returns [shared.ErrNotLoggedIn] without doing any I/O.
type Service interface {
	// Login starts a session. With uploadAuth the client also registers as an uploader.
	Login(ctx context.Context, creds Credentials, uploadAuth bool) error

	IsAuthenticated() bool

	// Logout ends the session and reports whether one was ended.
	Logout(ctx context.Context) (bool, error)

	// Upload sends local files; the result is keyed by the given paths.
	// Requires upload auth.
	Upload(ctx context.Context, paths ...string) (*UploadResult, error)

	GetAllSongs(ctx context.Context) ([]Song, error)
	GetSongDownloadInfo(ctx context.Context, songID string) (*DownloadInfo, error)

	// DeleteSongs returns the ids that were deleted.
	DeleteSongs(ctx context.Context, songIDs ...string) ([]string, error)

	// CreatePlaylist returns the new playlist's id.
	CreatePlaylist(ctx context.Context, name string) (string, error)

	// GetAllPlaylistIDs maps playlist names to ids; several playlists may share a name.
	GetAllPlaylistIDs(ctx context.Context, auto, user bool) (*PlaylistIDs, error)
	ChangePlaylistName(ctx context.Context, playlistID, name string) error

	// DeletePlaylist returns the id of the deleted playlist.
	DeletePlaylist(ctx context.Context, playlistID string) (string, error)
	GetPlaylistSongs(ctx context.Context, playlistID string) ([]Song, error)
	AddSongsToPlaylist(ctx context.Context, playlistID string, songIDs ...string) error

	// RemoveSongsFromPlaylist removes every entry of the given songs.
	RemoveSongsFromPlaylist(ctx context.Context, playlistID string, songIDs ...string) error

	Search(ctx context.Context, query string) (*SearchResults, error)

	// Name returns the name of the service.
	Name() string
}

// Credentials authenticate a session. An AccessToken takes precedence over Email/Password.
type Credentials struct {
	Email        string
	Password     string
	AccessToken  string
	ClientID     string
	ClientSecret string
	TokenURL     string
}

// Song is a library track record.
type Song struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Artist         string `json:"artist"`
	Album          string `json:"album"`
	AlbumArtist    string `json:"albumArtist,omitempty"`
	TrackNumber    int    `json:"trackNumber,omitempty"`
	DurationMillis int64  `json:"durationMillis,omitempty"`
}

// UploadResult partitions uploaded paths by outcome.
type UploadResult struct {
	// Uploaded maps a path to its new song id.
	Uploaded map[string]string
	// Matched maps a path to the id of an existing song it matched.
	Matched map[string]string
	// NotUploaded maps a path to the reason it was rejected.
	NotUploaded map[string]string
}

func newUploadResult() *UploadResult {
	return &UploadResult{
		Uploaded:    map[string]string{},
		Matched:     map[string]string{},
		NotUploaded: map[string]string{},
	}
}

// DownloadInfo is a one-time download URL and how often the song has been downloaded.
type DownloadInfo struct {
	URL           string `json:"url"`
	DownloadCount int    `json:"download_count"`
}

// PlaylistIDs maps names to playlist ids for automatic and user playlists.
type PlaylistIDs struct {
	Auto map[string][]string `json:"auto"`
	User map[string][]string `json:"user"`
}

// AlbumHit is an album search result.
type AlbumHit struct {
	AlbumName   string `json:"albumName"`
	AlbumArtist string `json:"albumArtist"`
}

// SearchResults holds hits per category.
//
// Keys lists the categories present in the response, sorted. A missing
// category leaves its slice nil; a present but empty one is non-nil.
type SearchResults struct {
	Keys       []string
	SongHits   []Song
	ArtistHits []Song
	AlbumHits  []AlbumHit
}
