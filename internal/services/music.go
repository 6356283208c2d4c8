// Music library [Service] implementation
//
// Communicates with the JSON proxy in front of the music library.
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/desertthunder/gmx/internal/shared"
)

const defaultBaseURL string = "http://127.0.0.1:8080"

// MusicService implements the Service interface for the music library via proxy.
type MusicService struct {
	baseURL    string
	base       *http.Client
	httpClient *http.Client
	token      *oauth2.Token
	uploaderID string
	uploadAuth bool
	logger     *log.Logger
}

// NewMusicService creates a client for the proxy at baseURL.
//
// client is the unauthenticated base client (see [NewHTTPClient]); Login wraps
// its transport with the session token.
func NewMusicService(baseURL string, client *http.Client) *MusicService {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &MusicService{
		baseURL: strings.TrimRight(baseURL, "/"),
		base:    client,
		logger:  log.New(io.Discard),
	}
}

// SetLogger sets the logger used for request tracing.
func (m *MusicService) SetLogger(l *log.Logger) {
	if l != nil {
		m.logger = l
	}
}

// Name returns the service name.
func (m *MusicService) Name() string {
	return "Music Library"
}

// Token returns the session's access token, or nil when logged out.
func (m *MusicService) Token() *oauth2.Token {
	return m.token
}

// Client returns the authenticated HTTP client, or nil when logged out.
func (m *MusicService) Client() *http.Client {
	return m.httpClient
}

// Login authenticates with a static access token or the resource-owner password grant.
//
// With uploadAuth the client registers as an uploader via POST /api/uploads/auth.
func (m *MusicService) Login(ctx context.Context, creds Credentials, uploadAuth bool) error {
	clientCtx := context.WithValue(context.Background(), oauth2.HTTPClient, m.base)

	switch {
	case creds.AccessToken != "":
		m.token = &oauth2.Token{AccessToken: creds.AccessToken, TokenType: "Bearer"}
		m.httpClient = oauth2.NewClient(clientCtx, oauth2.StaticTokenSource(m.token))
	case creds.Email != "" && creds.Password != "":
		tokenURL := creds.TokenURL
		if tokenURL == "" {
			tokenURL = m.baseURL + "/oauth/token"
		}
		config := &oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		}

		token, err := config.PasswordCredentialsToken(context.WithValue(ctx, oauth2.HTTPClient, m.base), creds.Email, creds.Password)
		if err != nil {
			return fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
		}
		m.token = token
		m.httpClient = config.Client(clientCtx, token)
	default:
		return shared.ErrMissingCredentials
	}
	m.httpClient.Timeout = m.base.Timeout
	m.uploadAuth = false

	if !uploadAuth {
		return nil
	}

	if m.uploaderID == "" {
		m.uploaderID = uuid.New().String()
	}
	body := map[string]string{"uploader_id": m.uploaderID, "uploader_name": "gmx"}
	if err := m.doRequest(ctx, http.MethodPost, "/api/uploads/auth", body, nil); err != nil {
		m.clearSession()
		return fmt.Errorf("%w: upload auth: %v", shared.ErrAuthFailed, err)
	}
	m.uploadAuth = true
	return nil
}

// IsAuthenticated reports whether Login succeeded and Logout has not been called since.
func (m *MusicService) IsAuthenticated() bool {
	return m.httpClient != nil
}

// Logout ends the session. It returns false when there was no session.
func (m *MusicService) Logout(ctx context.Context) (bool, error) {
	if !m.IsAuthenticated() {
		return false, nil
	}
	defer m.clearSession()

	if err := m.doRequest(ctx, http.MethodPost, "/api/auth/logout", nil, nil); err != nil {
		return false, err
	}
	return true, nil
}

func (m *MusicService) clearSession() {
	m.httpClient = nil
	m.token = nil
	m.uploadAuth = false
}

type apiError struct {
	Detail string `json:"detail"`
}

// doRequest sends a JSON request and decodes a JSON response into result.
func (m *MusicService) doRequest(ctx context.Context, method, endpoint string, body, result any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, m.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	return m.send(req, result)
}

func (m *MusicService) send(req *http.Request, result any) error {
	if m.httpClient == nil {
		return shared.ErrNotLoggedIn
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	m.logger.Debug("request", "method", req.Method, "path", req.URL.Path, "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(req.URL.Path, resp)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// statusError maps a non-2xx response to a sentinel error carrying the proxy's detail.
func statusError(path string, resp *http.Response) error {
	var errResp apiError
	_ = json.NewDecoder(resp.Body).Decode(&errResp)

	sentinel := shared.ErrAPIRequest
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		sentinel = shared.ErrNotLoggedIn
	case resp.StatusCode == http.StatusNotFound && strings.HasPrefix(path, "/api/playlists/"):
		sentinel = shared.ErrPlaylistNotFound
	case resp.StatusCode == http.StatusNotFound && strings.HasPrefix(path, "/api/songs/"):
		sentinel = shared.ErrSongNotFound
	case resp.StatusCode == http.StatusServiceUnavailable:
		sentinel = shared.ErrServiceUnavailable
	}

	if errResp.Detail != "" {
		return fmt.Errorf("%w (status %d): %s", sentinel, resp.StatusCode, errResp.Detail)
	}
	return fmt.Errorf("%w: status %d", sentinel, resp.StatusCode)
}

type uploadResponse struct {
	Status string `json:"status"`
	SongID string `json:"song_id"`
	Reason string `json:"reason"`
}

// Upload sends each file as multipart field "file" to POST /api/uploads.
//
// Files that cannot be read are reported in NotUploaded rather than failing the call.
func (m *MusicService) Upload(ctx context.Context, paths ...string) (*UploadResult, error) {
	if !m.IsAuthenticated() {
		return nil, shared.ErrNotLoggedIn
	}
	if !m.uploadAuth {
		return nil, fmt.Errorf("%w: upload auth required", shared.ErrNotLoggedIn)
	}

	result := newUploadResult()
	for _, path := range paths {
		resp, err := m.uploadFile(ctx, path)
		if err != nil {
			var pathErr *os.PathError
			if errors.As(err, &pathErr) {
				result.NotUploaded[path] = pathErr.Error()
				continue
			}
			return result, err
		}

		switch resp.Status {
		case "uploaded":
			result.Uploaded[path] = resp.SongID
		case "matched":
			result.Matched[path] = resp.SongID
		default:
			result.NotUploaded[path] = resp.Reason
		}
	}
	return result, nil
}

func (m *MusicService) uploadFile(ctx context.Context, path string) (*uploadResponse, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/api/uploads", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var resp uploadResponse
	if err := m.send(req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetAllSongs lists the library, following next_page_token until exhausted.
//
// Calls GET /api/library/songs on the proxy.
func (m *MusicService) GetAllSongs(ctx context.Context) ([]Song, error) {
	var (
		songs []Song
		token string
	)
	for {
		endpoint := "/api/library/songs"
		if token != "" {
			endpoint += "?page_token=" + url.QueryEscape(token)
		}

		var page struct {
			Songs         []Song `json:"songs"`
			NextPageToken string `json:"next_page_token"`
		}
		if err := m.doRequest(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
			return nil, err
		}
		songs = append(songs, page.Songs...)

		if page.NextPageToken == "" || page.NextPageToken == token {
			break
		}
		token = page.NextPageToken
	}
	if songs == nil {
		songs = []Song{}
	}
	return songs, nil
}

// GetSongDownloadInfo calls GET /api/songs/{id}/download on the proxy.
func (m *MusicService) GetSongDownloadInfo(ctx context.Context, songID string) (*DownloadInfo, error) {
	var info DownloadInfo
	endpoint := fmt.Sprintf("/api/songs/%s/download", url.PathEscape(songID))
	if err := m.doRequest(ctx, http.MethodGet, endpoint, nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// DeleteSongs calls POST /api/songs/delete on the proxy.
func (m *MusicService) DeleteSongs(ctx context.Context, songIDs ...string) ([]string, error) {
	if len(songIDs) == 0 {
		return nil, fmt.Errorf("%w: no song ids", shared.ErrMissingArgument)
	}

	var resp struct {
		DeletedIDs []string `json:"deleted_ids"`
	}
	body := map[string][]string{"song_ids": songIDs}
	if err := m.doRequest(ctx, http.MethodPost, "/api/songs/delete", body, &resp); err != nil {
		return nil, err
	}
	return resp.DeletedIDs, nil
}

type playlistIDResponse struct {
	PlaylistID string `json:"playlist_id"`
}

// CreatePlaylist calls POST /api/playlists on the proxy.
func (m *MusicService) CreatePlaylist(ctx context.Context, name string) (string, error) {
	var resp playlistIDResponse
	if err := m.doRequest(ctx, http.MethodPost, "/api/playlists", map[string]string{"name": name}, &resp); err != nil {
		return "", err
	}
	if resp.PlaylistID == "" {
		return "", fmt.Errorf("%w: create playlist returned no id", shared.ErrAPIRequest)
	}
	return resp.PlaylistID, nil
}

// GetAllPlaylistIDs calls GET /api/playlists/ids?auto=&user= on the proxy.
func (m *MusicService) GetAllPlaylistIDs(ctx context.Context, auto, user bool) (*PlaylistIDs, error) {
	q := url.Values{}
	q.Set("auto", fmt.Sprint(auto))
	q.Set("user", fmt.Sprint(user))

	ids := PlaylistIDs{Auto: map[string][]string{}, User: map[string][]string{}}
	if err := m.doRequest(ctx, http.MethodGet, "/api/playlists/ids?"+q.Encode(), nil, &ids); err != nil {
		return nil, err
	}
	if ids.Auto == nil {
		ids.Auto = map[string][]string{}
	}
	if ids.User == nil {
		ids.User = map[string][]string{}
	}
	return &ids, nil
}

// ChangePlaylistName calls PATCH /api/playlists/{id} on the proxy.
func (m *MusicService) ChangePlaylistName(ctx context.Context, playlistID, name string) error {
	endpoint := "/api/playlists/" + url.PathEscape(playlistID)
	return m.doRequest(ctx, http.MethodPatch, endpoint, map[string]string{"name": name}, nil)
}

// DeletePlaylist calls DELETE /api/playlists/{id} on the proxy.
func (m *MusicService) DeletePlaylist(ctx context.Context, playlistID string) (string, error) {
	var resp playlistIDResponse
	endpoint := "/api/playlists/" + url.PathEscape(playlistID)
	if err := m.doRequest(ctx, http.MethodDelete, endpoint, nil, &resp); err != nil {
		return "", err
	}
	return resp.PlaylistID, nil
}

// GetPlaylistSongs calls GET /api/playlists/{id}/songs on the proxy.
func (m *MusicService) GetPlaylistSongs(ctx context.Context, playlistID string) ([]Song, error) {
	var resp struct {
		Songs []Song `json:"songs"`
	}
	endpoint := fmt.Sprintf("/api/playlists/%s/songs", url.PathEscape(playlistID))
	if err := m.doRequest(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Songs == nil {
		resp.Songs = []Song{}
	}
	return resp.Songs, nil
}

// AddSongsToPlaylist calls POST /api/playlists/{id}/songs on the proxy.
func (m *MusicService) AddSongsToPlaylist(ctx context.Context, playlistID string, songIDs ...string) error {
	endpoint := fmt.Sprintf("/api/playlists/%s/songs", url.PathEscape(playlistID))
	return m.doRequest(ctx, http.MethodPost, endpoint, map[string][]string{"song_ids": songIDs}, nil)
}

// RemoveSongsFromPlaylist calls POST /api/playlists/{id}/songs/remove on the proxy.
func (m *MusicService) RemoveSongsFromPlaylist(ctx context.Context, playlistID string, songIDs ...string) error {
	endpoint := fmt.Sprintf("/api/playlists/%s/songs/remove", url.PathEscape(playlistID))
	return m.doRequest(ctx, http.MethodPost, endpoint, map[string][]string{"song_ids": songIDs}, nil)
}

// Search calls GET /api/search?q= on the proxy.
func (m *MusicService) Search(ctx context.Context, query string) (*SearchResults, error) {
	var raw map[string]json.RawMessage
	if err := m.doRequest(ctx, http.MethodGet, "/api/search?q="+url.QueryEscape(query), nil, &raw); err != nil {
		return nil, err
	}

	res := &SearchResults{}
	for key, data := range raw {
		res.Keys = append(res.Keys, key)

		var err error
		switch key {
		case "song_hits":
			res.SongHits = []Song{}
			err = json.Unmarshal(data, &res.SongHits)
		case "artist_hits":
			res.ArtistHits = []Song{}
			err = json.Unmarshal(data, &res.ArtistHits)
		case "album_hits":
			res.AlbumHits = []AlbumHit{}
			err = json.Unmarshal(data, &res.AlbumHits)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", key, err)
		}
	}
	sort.Strings(res.Keys)
	return res, nil
}
