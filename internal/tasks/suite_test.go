package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/desertthunder/gmx/internal/check"
	"github.com/desertthunder/gmx/internal/models"
	"github.com/desertthunder/gmx/internal/repositories"
	"github.com/desertthunder/gmx/internal/services"
	"github.com/desertthunder/gmx/internal/shared"
	tu "github.com/desertthunder/gmx/internal/testing"
)

func newLedger(t *testing.T) *repositories.Ledger {
	t.Helper()

	db, err := shared.OpenLedger(shared.DatabaseConfig{Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to open ledger: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return repositories.NewLedger(db)
}

func TestDefaultSuite(t *testing.T) {
	ctx := context.Background()

	t.Run("Passes Against Lagging Library", func(t *testing.T) {
		lib, srv := tu.NewStub(t, 2)
		cfg := tu.StubConfig(srv)
		cfg.Suite.SampleDir = t.TempDir()

		ledger := newLedger(t)
		st := NewState(services.NewMusicService(srv.URL, srv.Client()), cfg)
		st.Tracker = ledger.Tracker

		report, err := NewRunner(DefaultSuite()).Run(ctx, st, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		for _, res := range report.Results {
			if res.Outcome != Passed {
				t.Errorf("expected %s/%s to pass, got %s: %v", res.Group, res.Step, res.Outcome, res.Err)
			}
		}
		if len(report.Results) != DefaultSuite().Total() {
			t.Errorf("expected %d results, got %d", DefaultSuite().Total(), len(report.Results))
		}
		if report.Retries == 0 {
			t.Error("expected lag to cause retries")
		}

		created, _ := report.Result(GroupUploadAuth, "song_create")
		if created.Attempts < 3 {
			t.Errorf("expected song_create to poll through the lag, got %d attempts", created.Attempts)
		}

		if songs := lib.Songs(); len(songs) != 0 {
			t.Errorf("expected library to be empty after cleanup, got %d songs", len(songs))
		}
		if playlists := lib.Playlists(); len(playlists) != 0 {
			t.Errorf("expected no playlists after cleanup, got %d", len(playlists))
		}
		if lib.Logouts() != 2 {
			t.Errorf("expected 2 logouts, got %d", lib.Logouts())
		}

		for _, kind := range []models.ResourceKind{models.ResourceSong, models.ResourcePlaylist} {
			leaked, err := ledger.Resources.Unreleased(ctx, kind)
			if err != nil {
				t.Fatalf("failed to list unreleased: %v", err)
			}
			if len(leaked) != 0 {
				t.Errorf("expected every %s released, got %d", kind, len(leaked))
			}
		}

		if st.Song != nil || st.PlaylistID != "" {
			t.Error("expected deleted resources to be cleared from state")
		}
	})

	t.Run("Unique Tags", func(t *testing.T) {
		lib, srv := tu.NewStub(t, 0)
		lib.AddSong("gmx test song", "gmx test artist", "gmx test album")

		cfg := tu.StubConfig(srv)
		cfg.Suite.UniqueTags = true

		st := NewState(services.NewMusicService(srv.URL, srv.Client()), cfg)
		report, err := NewRunner(DefaultSuite()).Run(ctx, st, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if report.Failed() {
			for _, res := range report.Results {
				if res.Outcome == Failed {
					t.Errorf("%s/%s failed: %v", res.Group, res.Step, res.Err)
				}
			}
		}
		if songs := lib.Songs(); len(songs) != 1 {
			t.Errorf("expected only the seeded song to remain, got %d", len(songs))
		}
	})

	t.Run("Playlist Creation Failure", func(t *testing.T) {
		lib, srv := tu.NewStub(t, 0)
		lib.Fail(http.MethodPost, "/api/playlists", http.StatusServiceUnavailable)

		st := NewState(services.NewMusicService(srv.URL, srv.Client()), tu.StubConfig(srv))
		report, err := NewRunner(DefaultSuite()).Run(ctx, st, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		got := outcomes(report)
		want := map[string]Outcome{
			GroupUploadAuth + "/song_create":     Passed,
			GroupUploadAuth + "/playlist_create": Failed,
			GroupUploadAuth + "/list_songs":      Passed,
			GroupUploadAuth + "/change_name":     Skipped,
			GroupUploadAuth + "/add_remove":      Skipped,
			GroupUploadAuth + "/playlist_delete": Skipped,
			GroupUploadAuth + "/song_delete":     Passed,
			GroupUploadAuth + "/teardown":        Passed,
		}
		for key, outcome := range want {
			if got[key] != outcome {
				t.Errorf("expected %s to be %s, got %s", key, outcome, got[key])
			}
		}

		if songs := lib.Songs(); len(songs) != 0 {
			t.Errorf("expected song to be deleted anyway, got %d songs", len(songs))
		}
	})

	t.Run("Song Never Listed", func(t *testing.T) {
		lib, srv := tu.NewStub(t, 0)
		lib.Fail(http.MethodGet, "/api/library/songs", http.StatusServiceUnavailable)

		ledger := newLedger(t)
		st := NewState(services.NewMusicService(srv.URL, srv.Client()), tu.StubConfig(srv))
		st.Tracker = ledger.Tracker

		report, _ := NewRunner(DefaultSuite()).Run(ctx, st, nil)

		got := outcomes(report)
		if got[GroupUploadAuth+"/song_create"] != Failed {
			t.Errorf("expected song_create to fail, got %s", got[GroupUploadAuth+"/song_create"])
		}
		if got[GroupUploadAuth+"/search_title"] != Skipped {
			t.Errorf("expected search_title to be skipped, got %s", got[GroupUploadAuth+"/search_title"])
		}
		if got[GroupUploadAuth+"/song_delete"] != Passed {
			t.Errorf("expected song_delete to clean up the upload, got %s", got[GroupUploadAuth+"/song_delete"])
		}
		if songs := lib.Songs(); len(songs) != 0 {
			t.Errorf("expected no songs left, got %d", len(songs))
		}
	})

	t.Run("Bad Credentials", func(t *testing.T) {
		_, srv := tu.NewStub(t, 0)
		cfg := tu.StubConfig(srv)
		cfg.Credentials.Password = "wrong"

		st := NewState(services.NewMusicService(srv.URL, srv.Client()), cfg)
		report, err := NewRunner(DefaultSuite()).Run(ctx, st, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if report.Count(Passed) != 0 {
			t.Errorf("expected nothing to pass, got %d", report.Count(Passed))
		}
		if report.Count(Failed) != 2 {
			t.Errorf("expected both setups to fail, got %d failures", report.Count(Failed))
		}
	})
}

// rewriteTransport counts requests to path and lets a test edit their JSON responses.
type rewriteTransport struct {
	next  http.RoundTripper
	path  string
	edit  func(body map[string]any)
	calls int
}

func (rt *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := rt.next.RoundTrip(req)
	if err != nil || req.URL.Path != rt.path {
		return resp, err
	}
	rt.calls++
	if rt.edit == nil || resp.StatusCode != http.StatusOK {
		return resp, nil
	}

	var body map[string]any
	err = json.NewDecoder(resp.Body).Decode(&body)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}
	rt.edit(body)

	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	resp.Body = io.NopCloser(bytes.NewReader(data))
	resp.ContentLength = int64(len(data))
	resp.Header.Del("Content-Length")
	return resp, nil
}

func duplicateFirst(key string) func(map[string]any) {
	return func(body map[string]any) {
		if items, ok := body[key].([]any); ok && len(items) > 0 {
			body[key] = append(items, items[0])
		}
	}
}

func dropKey(key string) func(map[string]any) {
	return func(body map[string]any) { delete(body, key) }
}

// songCheckState logs into srv through rt and points the state at a seeded song.
func songCheckState(t *testing.T, srv *httptest.Server, rt *rewriteTransport, song *TestSong) *State {
	t.Helper()

	rt.next = srv.Client().Transport
	client := &http.Client{Transport: rt}
	st := NewState(services.NewMusicService(srv.URL, client), tu.StubConfig(srv))
	if err := st.login(context.Background(), false); err != nil {
		t.Fatalf("failed to log in: %v", err)
	}
	st.Song = song
	return st
}

func TestSongChecks(t *testing.T) {
	ctx := context.Background()
	const (
		title  = "gmx check song"
		artist = "gmx check artist"
		album  = "gmx check album"
	)

	t.Run("List Songs Passes", func(t *testing.T) {
		lib, srv := tu.NewStub(t, 0)
		id := lib.AddSong(title, artist, album)

		rt := &rewriteTransport{path: "/api/library/songs"}
		st := songCheckState(t, srv, rt, &TestSong{ID: id, Title: title, Artist: artist, Album: album})

		if err := listSongs(ctx, st); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

	t.Run("List Songs Reads Once", func(t *testing.T) {
		lib, srv := tu.NewStub(t, 3)
		id := lib.AddSong(title, artist, album)

		rt := &rewriteTransport{path: "/api/library/songs"}
		st := songCheckState(t, srv, rt, &TestSong{ID: id, Title: title, Artist: artist, Album: album})

		err := listSongs(ctx, st)
		if !check.IsFailure(err) {
			t.Errorf("expected a check failure for the lagging listing, got %v", err)
		}
		if rt.calls != 1 {
			t.Errorf("expected 1 listing request, got %d", rt.calls)
		}
		if st.attempts != 0 {
			t.Errorf("expected no polling, got %d attempts", st.attempts)
		}
	})

	t.Run("List Songs Rejects Duplicates", func(t *testing.T) {
		lib, srv := tu.NewStub(t, 0)
		id := lib.AddSong(title, artist, album)

		rt := &rewriteTransport{path: "/api/library/songs", edit: duplicateFirst("songs")}
		st := songCheckState(t, srv, rt, &TestSong{ID: id, Title: title, Artist: artist, Album: album})

		err := listSongs(ctx, st)
		if !check.IsFailure(err) {
			t.Fatalf("expected a check failure, got %v", err)
		}
		if !strings.Contains(err.Error(), "songs with id "+id) {
			t.Errorf("expected message naming the song id, got %v", err)
		}
	})

	t.Run("Download Info Reads Once", func(t *testing.T) {
		_, srv := tu.NewStub(t, 0)

		rt := &rewriteTransport{path: "/api/songs/missing/download"}
		st := songCheckState(t, srv, rt, &TestSong{ID: "missing"})

		err := getDownloadInfo(ctx, st)
		if !errors.Is(err, shared.ErrSongNotFound) {
			t.Errorf("expected ErrSongNotFound, got %v", err)
		}
		if rt.calls != 1 {
			t.Errorf("expected 1 download request, got %d", rt.calls)
		}
	})

	t.Run("Search", func(t *testing.T) {
		tests := []struct {
			name    string
			step    func(context.Context, *State) error
			edit    func(map[string]any)
			wantErr string
		}{
			{
				name: "title passes",
				step: searchStep("song_hits", func(s *TestSong) string { return s.Title }, songHitsByID),
			},
			{
				name: "album passes",
				step: searchStep("album_hits", func(s *TestSong) string { return s.Album }, albumHitsByName),
			},
			{
				name:    "duplicate song hit",
				step:    searchStep("song_hits", func(s *TestSong) string { return s.Title }, songHitsByID),
				edit:    duplicateFirst("song_hits"),
				wantErr: "song_hits matching the test song",
			},
			{
				name:    "duplicate artist hit",
				step:    searchStep("artist_hits", func(s *TestSong) string { return s.Artist }, artistHitsByID),
				edit:    duplicateFirst("artist_hits"),
				wantErr: "artist_hits matching the test song",
			},
			{
				name:    "missing category",
				step:    searchStep("song_hits", func(s *TestSong) string { return s.Title }, songHitsByID),
				edit:    dropKey("album_hits"),
				wantErr: "search categories",
			},
			{
				name:    "empty category",
				step:    searchStep("album_hits", func(s *TestSong) string { return s.Album }, albumHitsByName),
				edit:    func(body map[string]any) { body["album_hits"] = []any{} },
				wantErr: "album_hits should not be empty",
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				lib, srv := tu.NewStub(t, 0)
				id := lib.AddSong(title, artist, album)

				rt := &rewriteTransport{path: "/api/search", edit: tt.edit}
				st := songCheckState(t, srv, rt, &TestSong{ID: id, Title: title, Artist: artist, Album: album})

				err := tt.step(ctx, st)
				if tt.wantErr == "" {
					if err != nil {
						t.Errorf("expected no error, got %v", err)
					}
					return
				}

				if err == nil {
					t.Fatalf("expected error containing %q, got nil", tt.wantErr)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
				}
				if rt.calls < 2 {
					t.Errorf("expected the search to be retried, got %d requests", rt.calls)
				}
			})
		}
	})
}
