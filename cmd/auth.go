package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/gmx/internal/shared"
)

// AuthCheck logs in with the configured account, reports the session state and logs out.
func (r *Runner) AuthCheck(ctx context.Context, cmd *cli.Command) error {
	uploadAuth := cmd.Bool("upload")
	r.logger.Info("checking credentials", "base_url", r.config.Service.BaseURL, "upload_auth", uploadAuth)

	creds, err := r.credentials()
	if err != nil {
		return err
	}

	svc := r.musicService()
	if err := svc.Login(ctx, creds, uploadAuth); err != nil {
		return err
	}

	if !svc.IsAuthenticated() {
		return fmt.Errorf("%w: login returned without a session", shared.ErrAuthFailed)
	}

	r.writePlain("✓ Logged in to %s\n", r.config.Service.BaseURL)
	if uploadAuth {
		r.writePlain("Upload authorization: ✓ Authorized\n")
	} else {
		r.writePlain("Upload authorization: - Not requested\n")
	}

	ended, err := svc.Logout(ctx)
	if err != nil {
		return err
	}
	if !ended {
		return fmt.Errorf("%w: logout did not end the session", shared.ErrAuthFailed)
	}
	return r.writePlain("✓ Logged out\n")
}
