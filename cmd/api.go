package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/gmx/internal/services"
	"github.com/desertthunder/gmx/internal/shared"
)

// apiService logs in and returns an [services.APIService] sending the session's token.
func (r *Runner) apiService(ctx context.Context) (*services.APIService, func(), error) {
	svc, logout, err := r.login(ctx, false)
	if err != nil {
		return nil, nil, err
	}

	client := r.httpClient
	if music, ok := svc.(*services.MusicService); ok {
		client = music.Client()
	}
	return services.NewAPIService(r.config.Service.BaseURL, client), logout, nil
}

// APIGet makes a direct GET request to the proxy
func (r *Runner) APIGet(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("path")
	if path == "" {
		return fmt.Errorf("%w: path", shared.ErrMissingArgument)
	}

	api, logout, err := r.apiService(ctx)
	if err != nil {
		return err
	}
	defer logout()

	r.logger.Info("GET request", "path", path)

	resp, err := api.Get(ctx, path)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	if !resp.OK() {
		return fmt.Errorf("%w: status %d, body: %s", shared.ErrAPIRequest, resp.StatusCode, string(resp.Body))
	}

	if resp.IsJSON {
		return r.writeJSON(resp.JSONData, !cmd.Bool("json"))
	}

	r.output.Write(resp.Body)
	r.output.Write([]byte("\n"))
	return nil
}

// APIPost makes a direct POST request to the proxy
func (r *Runner) APIPost(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("path")
	data := cmd.String("data")

	if path == "" {
		return fmt.Errorf("%w: path", shared.ErrMissingArgument)
	}
	if data == "" {
		return fmt.Errorf("%w: --data flag is required", shared.ErrMissingArgument)
	}

	var jsonTest any
	if err := json.Unmarshal([]byte(data), &jsonTest); err != nil {
		return fmt.Errorf("%w: data is not valid JSON: %v", shared.ErrInvalidInput, err)
	}

	api, logout, err := r.apiService(ctx)
	if err != nil {
		return err
	}
	defer logout()

	r.logger.Info("POST request", "path", path)

	resp, err := api.Post(ctx, path, []byte(data))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	if !resp.OK() {
		return fmt.Errorf("%w: status %d, body: %s", shared.ErrAPIRequest, resp.StatusCode, string(resp.Body))
	}

	if resp.IsJSON {
		return r.writeJSON(resp.JSONData, true)
	}

	r.output.Write(resp.Body)
	r.output.Write([]byte("\n"))
	return nil
}

// APIDump fetches the library through the typed client and prints it.
func (r *Runner) APIDump(ctx context.Context, cmd *cli.Command) error {
	pretty := cmd.Bool("pretty")
	save := cmd.String("save")

	svc, logout, err := r.login(ctx, false)
	if err != nil {
		return err
	}
	defer logout()

	r.logger.Info("dumping library state")

	type DumpData struct {
		Songs     []services.Song       `json:"songs"`
		Playlists *services.PlaylistIDs `json:"playlists,omitempty"`
		Errors    []map[string]string   `json:"errors,omitempty"`
	}

	dump := DumpData{}

	if songs, err := svc.GetAllSongs(ctx); err == nil {
		dump.Songs = songs
	} else {
		dump.Errors = append(dump.Errors, map[string]string{"call": "get_all_songs", "error": err.Error()})
		r.logger.Warn("failed to fetch songs", "error", err)
	}

	if ids, err := svc.GetAllPlaylistIDs(ctx, true, true); err == nil {
		dump.Playlists = ids
	} else {
		dump.Errors = append(dump.Errors, map[string]string{"call": "get_all_playlist_ids", "error": err.Error()})
		r.logger.Warn("failed to fetch playlists", "error", err)
	}

	if save != "" {
		data, err := shared.MarshalJSON(dump, true)
		if err != nil {
			return fmt.Errorf("failed to marshal dump: %w", err)
		}
		if err := os.WriteFile(save, data, 0644); err != nil {
			r.logger.Warn("failed to save dump", "error", err)
		} else {
			r.logger.Info("dump saved", "file", save)
		}
	}

	return r.writeJSON(dump, pretty)
}
