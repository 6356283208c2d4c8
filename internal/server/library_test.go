package server

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/desertthunder/gmx/internal/fixture"
)

const testToken = "test-token"

func newTestLibrary(t *testing.T, opts Options) (*Library, *httptest.Server) {
	t.Helper()
	opts.Token = testToken
	if opts.Email == "" {
		opts.Email, opts.Password = "tester@example.com", "hunter2"
	}
	lib := NewLibrary(opts)
	srv := httptest.NewServer(lib)
	lib.SetBaseURL(srv.URL)
	t.Cleanup(srv.Close)
	return lib, srv
}

func doJSON(t *testing.T, srv *httptest.Server, method, path string, body any, out any) int {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, srv.URL+path, reader)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+testToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
	}
	return resp.StatusCode
}

func uploadSample(t *testing.T, srv *httptest.Server, s fixture.Sample) map[string]string {
	t.Helper()

	data, err := fixture.Encode(s)
	if err != nil {
		t.Fatalf("failed to encode sample: %v", err)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, _ := w.CreateFormFile("file", fixture.FileName)
	part.Write(data)
	w.Close()

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/uploads", &buf)
	req.Header.Set("Authorization", "Bearer "+testToken)
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	defer resp.Body.Close()

	var out map[string]string
	json.NewDecoder(resp.Body).Decode(&out)
	return out
}

func TestTokenHandler(t *testing.T) {
	_, srv := newTestLibrary(t, Options{})

	t.Run("issues token for valid credentials", func(t *testing.T) {
		form := url.Values{"grant_type": {"password"}, "username": {"tester@example.com"}, "password": {"hunter2"}}
		resp, err := http.PostForm(srv.URL+"/oauth/token", form)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		var body map[string]any
		json.NewDecoder(resp.Body).Decode(&body)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		if body["access_token"] != testToken {
			t.Errorf("expected access token %s, got %v", testToken, body["access_token"])
		}
	})

	t.Run("rejects bad password", func(t *testing.T) {
		form := url.Values{"grant_type": {"password"}, "username": {"tester@example.com"}, "password": {"nope"}}
		resp, err := http.PostForm(srv.URL+"/oauth/token", form)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", resp.StatusCode)
		}
	})

	t.Run("rejects other grants", func(t *testing.T) {
		resp, err := http.PostForm(srv.URL+"/oauth/token", url.Values{"grant_type": {"client_credentials"}})
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", resp.StatusCode)
		}
	})
}

func TestLibrary(t *testing.T) {
	t.Run("requires bearer token", func(t *testing.T) {
		_, srv := newTestLibrary(t, Options{})

		resp, err := http.Get(srv.URL + "/api/library/songs")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		var body map[string]string
		json.NewDecoder(resp.Body).Decode(&body)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", resp.StatusCode)
		}
		if body["detail"] != "not logged in" {
			t.Errorf("expected detail, got %v", body)
		}
	})

	t.Run("upload requires upload auth", func(t *testing.T) {
		_, srv := newTestLibrary(t, Options{})
		out := uploadSample(t, srv, fixture.DefaultSample())
		if out["detail"] != "upload auth required" {
			t.Errorf("expected upload auth error, got %v", out)
		}
	})

	t.Run("upload then match", func(t *testing.T) {
		lib, srv := newTestLibrary(t, Options{})
		doJSON(t, srv, http.MethodPost, "/api/uploads/auth", map[string]string{"uploader_id": "u1"}, nil)

		sample := fixture.NewSample(true)
		first := uploadSample(t, srv, sample)
		if first["status"] != "uploaded" || first["song_id"] == "" {
			t.Fatalf("expected uploaded with id, got %v", first)
		}

		second := uploadSample(t, srv, sample)
		if second["status"] != "matched" || second["song_id"] != first["song_id"] {
			t.Errorf("expected match of %s, got %v", first["song_id"], second)
		}

		songs := lib.Songs()
		if len(songs) != 1 || songs[0].Title != sample.Title || songs[0].Album != sample.Album {
			t.Errorf("expected one stored song with sample tags, got %+v", songs)
		}
	})

	t.Run("logout revokes upload auth", func(t *testing.T) {
		lib, srv := newTestLibrary(t, Options{})
		doJSON(t, srv, http.MethodPost, "/api/uploads/auth", map[string]string{"uploader_id": "u1"}, nil)
		doJSON(t, srv, http.MethodPost, "/api/auth/logout", nil, nil)

		if lib.Logouts() != 1 {
			t.Errorf("expected 1 logout, got %d", lib.Logouts())
		}
		out := uploadSample(t, srv, fixture.DefaultSample())
		if out["detail"] != "upload auth required" {
			t.Errorf("expected upload auth error after logout, got %v", out)
		}
	})

	t.Run("reads lag behind writes", func(t *testing.T) {
		lib, srv := newTestLibrary(t, Options{Lag: 2})
		lib.AddSong("a", "b", "c")

		for i := range 2 {
			var page struct {
				Songs []Song `json:"songs"`
			}
			doJSON(t, srv, http.MethodGet, "/api/library/songs", nil, &page)
			if len(page.Songs) != 0 {
				t.Errorf("read %d: expected stale empty listing, got %d songs", i, len(page.Songs))
			}
		}

		var page struct {
			Songs []Song `json:"songs"`
		}
		doJSON(t, srv, http.MethodGet, "/api/library/songs", nil, &page)
		if len(page.Songs) != 1 {
			t.Errorf("expected converged listing, got %d songs", len(page.Songs))
		}
	})

	t.Run("song listing pages", func(t *testing.T) {
		lib, srv := newTestLibrary(t, Options{PageSize: 2})
		for range 3 {
			lib.AddSong("t", "a", "b")
		}

		var page struct {
			Songs         []Song `json:"songs"`
			NextPageToken string `json:"next_page_token"`
		}
		doJSON(t, srv, http.MethodGet, "/api/library/songs", nil, &page)
		if len(page.Songs) != 2 || page.NextPageToken != "2" {
			t.Fatalf("expected 2 songs and token 2, got %d and %q", len(page.Songs), page.NextPageToken)
		}

		page.NextPageToken = ""
		doJSON(t, srv, http.MethodGet, "/api/library/songs?page_token=2", nil, &page)
		if len(page.Songs) != 1 || page.NextPageToken != "" {
			t.Errorf("expected last page of 1 song, got %d and %q", len(page.Songs), page.NextPageToken)
		}
	})

	t.Run("playlist lifecycle", func(t *testing.T) {
		lib, srv := newTestLibrary(t, Options{})
		songID := lib.AddSong("title", "artist", "album")

		var created map[string]string
		doJSON(t, srv, http.MethodPost, "/api/playlists", map[string]string{"name": "p"}, &created)
		id := created["playlist_id"]
		if id == "" {
			t.Fatal("expected playlist id")
		}

		var ids map[string]map[string][]string
		doJSON(t, srv, http.MethodGet, "/api/playlists/ids?auto=false&user=true", nil, &ids)
		if got := ids["user"]["p"]; len(got) != 1 || got[0] != id {
			t.Errorf("expected user playlist p -> [%s], got %v", id, got)
		}
		if len(ids["auto"]) != 0 {
			t.Errorf("expected no auto playlists, got %v", ids["auto"])
		}

		body := map[string][]string{"song_ids": {songID, songID}}
		doJSON(t, srv, http.MethodPost, "/api/playlists/"+id+"/songs", body, nil)

		var songs struct {
			Songs []Song `json:"songs"`
		}
		doJSON(t, srv, http.MethodGet, "/api/playlists/"+id+"/songs", nil, &songs)
		if len(songs.Songs) != 2 {
			t.Errorf("expected two entries, got %d", len(songs.Songs))
		}

		doJSON(t, srv, http.MethodPost, "/api/playlists/"+id+"/songs/remove", map[string][]string{"song_ids": {songID}}, nil)
		doJSON(t, srv, http.MethodGet, "/api/playlists/"+id+"/songs", nil, &songs)
		if len(songs.Songs) != 0 {
			t.Errorf("expected no entries after remove, got %d", len(songs.Songs))
		}

		if status := doJSON(t, srv, http.MethodPatch, "/api/playlists/"+id, map[string]string{"name": "q"}, nil); status != http.StatusOK {
			t.Errorf("expected rename 200, got %d", status)
		}
		if lib.Playlists()[0].Name != "q" {
			t.Errorf("expected renamed playlist, got %s", lib.Playlists()[0].Name)
		}

		var deleted map[string]string
		doJSON(t, srv, http.MethodDelete, "/api/playlists/"+id, nil, &deleted)
		if deleted["playlist_id"] != id {
			t.Errorf("expected deleted id %s, got %v", id, deleted)
		}
		if status := doJSON(t, srv, http.MethodDelete, "/api/playlists/"+id, nil, nil); status != http.StatusNotFound {
			t.Errorf("expected 404 on second delete, got %d", status)
		}
	})

	t.Run("delete songs also clears playlist entries", func(t *testing.T) {
		lib, srv := newTestLibrary(t, Options{})
		songID := lib.AddSong("title", "artist", "album")
		lib.AddPlaylist("p", songID)

		var resp map[string][]string
		doJSON(t, srv, http.MethodPost, "/api/songs/delete", map[string][]string{"song_ids": {songID, "missing"}}, &resp)
		if got := resp["deleted_ids"]; len(got) != 1 || got[0] != songID {
			t.Errorf("expected [%s], got %v", songID, got)
		}
		if len(lib.Playlists()[0].Entries) != 0 {
			t.Error("expected playlist entry to be removed")
		}
	})

	t.Run("download info counts downloads", func(t *testing.T) {
		lib, srv := newTestLibrary(t, Options{})
		songID := lib.AddSong("title", "artist", "album")

		var info struct {
			URL   string `json:"url"`
			Count int    `json:"download_count"`
		}
		doJSON(t, srv, http.MethodGet, "/api/songs/"+songID+"/download", nil, &info)
		doJSON(t, srv, http.MethodGet, "/api/songs/"+songID+"/download", nil, &info)
		if !strings.HasPrefix(info.URL, srv.URL+"/download/"+songID) {
			t.Errorf("unexpected url %s", info.URL)
		}
		if info.Count != 2 {
			t.Errorf("expected count 2, got %d", info.Count)
		}

		if status := doJSON(t, srv, http.MethodGet, "/api/songs/missing/download", nil, nil); status != http.StatusNotFound {
			t.Errorf("expected 404, got %d", status)
		}
	})

	t.Run("search categories", func(t *testing.T) {
		lib, srv := newTestLibrary(t, Options{})
		id := lib.AddSong("Needle Title", "Needle Artist", "Needle Album")
		lib.AddSong("other", "someone", "elsewhere")

		var res map[string]json.RawMessage
		doJSON(t, srv, http.MethodGet, "/api/search?q=needle+artist", nil, &res)
		if len(res) != 3 {
			t.Errorf("expected three categories, got %d", len(res))
		}

		var artists []Song
		json.Unmarshal(res["artist_hits"], &artists)
		if len(artists) != 1 || artists[0].ID != id {
			t.Errorf("expected one artist hit for %s, got %+v", id, artists)
		}

		var albums []map[string]string
		doJSON(t, srv, http.MethodGet, "/api/search?q=needle+album", nil, &res)
		json.Unmarshal(res["album_hits"], &albums)
		if len(albums) != 1 || albums[0]["albumName"] != "Needle Album" {
			t.Errorf("expected one album hit, got %v", albums)
		}
	})

	t.Run("fault injection", func(t *testing.T) {
		lib, srv := newTestLibrary(t, Options{})
		lib.Fail(http.MethodGet, "/api/search", http.StatusServiceUnavailable)

		if status := doJSON(t, srv, http.MethodGet, "/api/search?q=x", nil, nil); status != http.StatusServiceUnavailable {
			t.Errorf("expected 503, got %d", status)
		}

		lib.Fail(http.MethodGet, "/api/search", 0)
		if status := doJSON(t, srv, http.MethodGet, "/api/search?q=x", nil, nil); status != http.StatusOK {
			t.Errorf("expected 200 after clearing fault, got %d", status)
		}
	})
}

func TestBasicRouter(t *testing.T) {
	t.Run("middleware order", func(t *testing.T) {
		var order []string
		mw := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		r := NewBasicRouter()
		r.Use(mw("first"), mw("second"))
		r.HandleFunc(http.MethodGet, "/x", func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "handler")
		})

		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))
		if strings.Join(order, ",") != "first,second,handler" {
			t.Errorf("unexpected order %v", order)
		}
	})

	t.Run("method mismatch", func(t *testing.T) {
		r := NewBasicRouter()
		r.HandleFunc(http.MethodGet, "/x", func(w http.ResponseWriter, r *http.Request) {})

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/x", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})
}
