package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/gmx/internal/server"
	"github.com/desertthunder/gmx/internal/shared"
)

// Stub serves an in-memory library until the context is cancelled.
func (r *Runner) Stub(ctx context.Context, cmd *cli.Command) error {
	addr := cmd.String("addr")

	lib := server.NewLibrary(server.Options{
		Email:    cmd.String("email"),
		Password: cmd.String("password"),
		Lag:      int(cmd.Int("lag")),
		PageSize: int(cmd.Int("page-size")),
		Logger:   shared.WithLogger(r.logger, "component", "stub"),
	})

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	baseURL := "http://" + ln.Addr().String()
	lib.SetBaseURL(baseURL)

	srv := &http.Server{Handler: lib, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	r.writePlain("✓ Stub library listening on %s\n", baseURL)
	r.writePlain("Token: %s\n", lib.Token())
	r.writePlainln("Point gmx at it with:")
	r.writePlain("  %s=%s\n", shared.EnvBaseURL, baseURL)
	r.writePlain("  %s=%s/oauth/token\n", shared.EnvTokenURL, baseURL)
	r.writePlain("  %s=%s %s=%s\n", shared.EnvEmail, cmd.String("email"), shared.EnvPassword, cmd.String("password"))

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	r.logger.Info("shutting down stub")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
