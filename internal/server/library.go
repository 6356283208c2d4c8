package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/dhowden/tag"
	"github.com/google/uuid"
)

// Options configure a [Library].
type Options struct {
	Email    string
	Password string
	// Token is the bearer token issued on login. Defaults to a random uuid.
	Token string
	// Lag is how many reads after a write still see the previous state.
	Lag int
	// PageSize splits song listings into pages. Zero returns one page.
	PageSize int
	Logger   *log.Logger
}

// Library is an in-memory music library speaking the proxy's JSON API.
type Library struct {
	*BasicRouter

	store  *store
	tokens *TokenHandler
	faults Faults
	token  string
	// baseURL prefixes download links; set by the caller once the listener is known.
	baseURL string

	mu         sync.Mutex
	uploaders  map[string]bool
	uploadAuth bool
	logouts    int
	pageSize   int
}

// NewLibrary builds the stub with every route registered.
func NewLibrary(opts Options) *Library {
	if opts.Token == "" {
		opts.Token = uuid.New().String()
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}

	l := &Library{
		BasicRouter: NewBasicRouter(),
		store:       newStore(opts.Lag),
		tokens:      NewTokenHandler(opts.Email, opts.Password, opts.Token),
		token:       opts.Token,
		uploaders:   map[string]bool{},
		pageSize:    opts.PageSize,
	}

	l.Use(RequestLogger(opts.Logger), l.faults.Middleware())
	l.Handler(l.tokens)

	l.Use(RequireBearer(func() string { return l.token }))
	l.HandleFunc(http.MethodPost, "/api/uploads/auth", l.uploadAuthorize)
	l.HandleFunc(http.MethodPost, "/api/auth/logout", l.logout)
	l.HandleFunc(http.MethodPost, "/api/uploads", l.upload)
	l.HandleFunc(http.MethodGet, "/api/library/songs", l.listSongs)
	l.HandleFunc(http.MethodGet, "/api/songs/{id}/download", l.downloadInfo)
	l.HandleFunc(http.MethodPost, "/api/songs/delete", l.deleteSongs)
	l.HandleFunc(http.MethodPost, "/api/playlists", l.createPlaylist)
	l.HandleFunc(http.MethodGet, "/api/playlists/ids", l.playlistIDs)
	l.HandleFunc(http.MethodPatch, "/api/playlists/{id}", l.renamePlaylist)
	l.HandleFunc(http.MethodDelete, "/api/playlists/{id}", l.deletePlaylist)
	l.HandleFunc(http.MethodGet, "/api/playlists/{id}/songs", l.playlistSongs)
	l.HandleFunc(http.MethodPost, "/api/playlists/{id}/songs", l.addPlaylistSongs)
	l.HandleFunc(http.MethodPost, "/api/playlists/{id}/songs/remove", l.removePlaylistSongs)
	l.HandleFunc(http.MethodGet, "/api/search", l.search)

	return l
}

// Token returns the bearer token the library accepts.
func (l *Library) Token() string { return l.token }

// SetBaseURL sets the origin used in download links.
func (l *Library) SetBaseURL(u string) { l.baseURL = strings.TrimRight(u, "/") }

// SetLag changes how many reads lag behind each write.
func (l *Library) SetLag(lag int) { l.store.setLag(lag) }

// Fail makes every request to method and path answer with status; zero clears it.
func (l *Library) Fail(method, path string, status int) { l.faults.Set(method, path, status) }

// Logins returns the number of tokens issued by the password grant.
func (l *Library) Logins() int { return l.tokens.Issued() }

// Logouts returns the number of logout calls.
func (l *Library) Logouts() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.logouts
}

// AddSong seeds a song and returns its id.
func (l *Library) AddSong(title, artist, album string) string {
	id := uuid.New().String()
	_ = l.store.write(func(state *snapshot) error {
		state.songs = append(state.songs, Song{ID: id, Title: title, Artist: artist, Album: album})
		return nil
	})
	return id
}

// AddPlaylist seeds a playlist and returns its id.
func (l *Library) AddPlaylist(name string, entries ...string) string {
	id := uuid.New().String()
	_ = l.store.write(func(state *snapshot) error {
		state.playlists = append(state.playlists, Playlist{ID: id, Name: name, Entries: entries})
		return nil
	})
	return id
}

// Songs returns the committed songs, ignoring lag.
func (l *Library) Songs() []Song {
	var songs []Song
	l.store.readCommitted(func(view snapshot) { songs = slices.Clone(view.songs) })
	return songs
}

// Playlists returns the committed playlists, ignoring lag.
func (l *Library) Playlists() []Playlist {
	var playlists []Playlist
	l.store.readCommitted(func(view snapshot) { playlists = view.clone().playlists })
	return playlists
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid body: %v", err))
		return false
	}
	return true
}

func (l *Library) uploadAuthorize(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UploaderID   string `json:"uploader_id"`
		UploaderName string `json:"uploader_name"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.UploaderID == "" {
		writeError(w, http.StatusBadRequest, "uploader_id is required")
		return
	}

	l.mu.Lock()
	l.uploaders[req.UploaderID] = true
	l.uploadAuth = true
	l.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]bool{"authorized": true})
}

func (l *Library) logout(w http.ResponseWriter, r *http.Request) {
	l.mu.Lock()
	l.logouts++
	l.uploadAuth = false
	l.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]bool{"logged_out": true})
}

func (l *Library) upload(w http.ResponseWriter, r *http.Request) {
	l.mu.Lock()
	authorized := l.uploadAuth
	l.mu.Unlock()
	if !authorized {
		writeError(w, http.StatusUnauthorized, "upload auth required")
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file")
		return
	}
	defer file.Close()

	meta, err := tag.ReadFrom(file)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "not_uploaded", "reason": "unreadable metadata"})
		return
	}
	if meta.Title() == "" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "not_uploaded", "reason": "missing title"})
		return
	}

	track, _ := meta.Track()
	song := Song{
		ID:          uuid.New().String(),
		Title:       meta.Title(),
		Artist:      meta.Artist(),
		Album:       meta.Album(),
		AlbumArtist: meta.AlbumArtist(),
		TrackNumber: track,
	}

	var matched string
	_ = l.store.write(func(state *snapshot) error {
		for _, s := range state.songs {
			if s.Title == song.Title && s.Artist == song.Artist && s.Album == song.Album {
				matched = s.ID
				return nil
			}
		}
		state.songs = append(state.songs, song)
		return nil
	})

	if matched != "" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "matched", "song_id": matched})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "uploaded", "song_id": song.ID})
}

func (l *Library) listSongs(w http.ResponseWriter, r *http.Request) {
	offset := 0
	if tok := r.URL.Query().Get("page_token"); tok != "" {
		n, err := strconv.Atoi(tok)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid page_token")
			return
		}
		offset = n
	}

	var songs []Song
	l.store.read(func(view snapshot) { songs = slices.Clone(view.songs) })

	if offset > len(songs) {
		offset = len(songs)
	}
	end := len(songs)
	if l.pageSize > 0 && offset+l.pageSize < end {
		end = offset + l.pageSize
	}

	resp := map[string]any{"songs": nonNil(songs[offset:end])}
	if end < len(songs) {
		resp["next_page_token"] = strconv.Itoa(end)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (l *Library) downloadInfo(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var (
		found bool
		count int
	)
	l.store.touch(func(state *snapshot) {
		if i, ok := state.song(id); ok {
			found = true
			state.songs[i].downloads++
			count = state.songs[i].downloads
		}
	})
	if !found {
		writeError(w, http.StatusNotFound, "song not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"url":            fmt.Sprintf("%s/download/%s?sig=%s", l.baseURL, id, uuid.New().String()),
		"download_count": count,
	})
}

type songIDsRequest struct {
	SongIDs []string `json:"song_ids"`
}

func (l *Library) deleteSongs(w http.ResponseWriter, r *http.Request) {
	var req songIDsRequest
	if !decodeBody(w, r, &req) {
		return
	}

	deleted := []string{}
	_ = l.store.write(func(state *snapshot) error {
		for _, id := range req.SongIDs {
			if i, ok := state.song(id); ok {
				state.songs = slices.Delete(state.songs, i, i+1)
				deleted = append(deleted, id)
			}
		}
		for i := range state.playlists {
			state.playlists[i].Entries = slices.DeleteFunc(state.playlists[i].Entries, func(e string) bool {
				return slices.Contains(deleted, e)
			})
		}
		return nil
	})

	writeJSON(w, http.StatusOK, map[string][]string{"deleted_ids": deleted})
}

func (l *Library) createPlaylist(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	id := l.AddPlaylist(req.Name)
	writeJSON(w, http.StatusOK, map[string]string{"playlist_id": id})
}

var autoPlaylists = map[string][]string{
	"Thumbs up":  {"auto-playlist-thumbs-up"},
	"Last added": {"auto-playlist-recent"},
}

func (l *Library) playlistIDs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	resp := map[string]map[string][]string{
		"auto": {},
		"user": {},
	}

	if q.Get("auto") != "false" {
		for name, ids := range autoPlaylists {
			resp["auto"][name] = slices.Clone(ids)
		}
	}
	if q.Get("user") != "false" {
		l.store.read(func(view snapshot) {
			for _, p := range view.playlists {
				resp["user"][p.Name] = append(resp["user"][p.Name], p.ID)
			}
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

func (l *Library) renamePlaylist(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req struct {
		Name string `json:"name"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	if err := l.store.write(func(state *snapshot) error {
		i, ok := state.playlist(id)
		if !ok {
			return errNotFound
		}
		state.playlists[i].Name = req.Name
		return nil
	}); err != nil {
		writeError(w, http.StatusNotFound, "playlist not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"playlist_id": id})
}

func (l *Library) deletePlaylist(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := l.store.write(func(state *snapshot) error {
		i, ok := state.playlist(id)
		if !ok {
			return errNotFound
		}
		state.playlists = slices.Delete(state.playlists, i, i+1)
		return nil
	}); err != nil {
		writeError(w, http.StatusNotFound, "playlist not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"playlist_id": id})
}

func (l *Library) playlistSongs(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var (
		songs []Song
		found bool
	)
	l.store.read(func(view snapshot) {
		i, ok := view.playlist(id)
		if !ok {
			return
		}
		found = true
		for _, entry := range view.playlists[i].Entries {
			if j, ok := view.song(entry); ok {
				songs = append(songs, view.songs[j])
			}
		}
	})
	if !found {
		writeError(w, http.StatusNotFound, "playlist not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"songs": nonNil(songs)})
}

func (l *Library) addPlaylistSongs(w http.ResponseWriter, r *http.Request) {
	l.editEntries(w, r, func(entries []string, ids []string) []string {
		return append(entries, ids...)
	})
}

func (l *Library) removePlaylistSongs(w http.ResponseWriter, r *http.Request) {
	l.editEntries(w, r, func(entries []string, ids []string) []string {
		return slices.DeleteFunc(entries, func(e string) bool { return slices.Contains(ids, e) })
	})
}

func (l *Library) editEntries(w http.ResponseWriter, r *http.Request, edit func(entries, ids []string) []string) {
	id := r.PathValue("id")
	var req songIDsRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := l.store.write(func(state *snapshot) error {
		i, ok := state.playlist(id)
		if !ok {
			return errNotFound
		}
		for _, songID := range req.SongIDs {
			if _, ok := state.song(songID); !ok {
				return fmt.Errorf("%w: song %s", errNotFound, songID)
			}
		}
		state.playlists[i].Entries = edit(state.playlists[i].Entries, req.SongIDs)
		return nil
	}); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"playlist_id": id})
}

func (l *Library) search(w http.ResponseWriter, r *http.Request) {
	query := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q")))

	var (
		songHits   = []Song{}
		artistHits = []Song{}
		albumHits  = []map[string]string{}
	)
	if query != "" {
		l.store.read(func(view snapshot) {
			seen := map[string]bool{}
			for _, s := range view.songs {
				if strings.Contains(strings.ToLower(s.Title), query) {
					songHits = append(songHits, s)
				}
				if strings.Contains(strings.ToLower(s.Artist), query) {
					artistHits = append(artistHits, s)
				}
				if strings.Contains(strings.ToLower(s.Album), query) && !seen[s.Album] {
					seen[s.Album] = true
					albumHits = append(albumHits, map[string]string{"albumName": s.Album, "albumArtist": s.AlbumArtist})
				}
			}
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"song_hits":   songHits,
		"artist_hits": artistHits,
		"album_hits":  albumHits,
	})
}

func nonNil(songs []Song) []Song {
	if songs == nil {
		return []Song{}
	}
	return songs
}
