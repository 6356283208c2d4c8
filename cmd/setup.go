package main

import (
	"context"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/gmx/internal/shared"
)

// Setup creates the config file when missing, then initializes the ledger and runs migrations.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := r.configPath
	if configPath == "" {
		configPath = "config.toml"
	}

	if _, err := os.Stat(configPath); err != nil {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
		} else {
			r.logger.Info("config file created", "path", configPath)
			if config, err := shared.LoadConfig(configPath); err != nil {
				r.logger.Warn("failed to load created config, using defaults", "error", err)
			} else {
				config.ApplyEnv()
				r.config = config
			}
		}
	}

	r.logger.Info("initializing ledger", "path", r.config.Database.Path)

	db, err := shared.OpenLedger(r.config.Database)
	if err != nil {
		return fmt.Errorf("failed to open ledger: %w", err)
	}
	defer db.Close()

	version, err := shared.CurrentVersion(db)
	if err != nil {
		return err
	}

	r.writePlain("✓ Ledger ready at %s (schema version %d)\n", r.config.Database.Path, version)
	if !r.config.HasCredentials() {
		r.writePlainln("Next steps:")
		r.writePlain("1. Set credentials.email and credentials.password in %s (or %s/%s)\n",
			configPath, shared.EnvEmail, shared.EnvPassword)
		r.writePlain("2. Run 'gmx auth check' to verify the account\n")
	}
	return nil
}

// ConfigInit writes the example config to the given path, or to the --config path.
func (r *Runner) ConfigInit(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("path")
	if path == "" {
		path = r.configPath
	}
	if path == "" {
		path = "config.toml"
	}

	if err := shared.CreateConfigFile(path); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}

	r.logger.Info("config file created", "path", path)
	return r.writePlain("✓ Wrote %s\n", path)
}

// ConfigShow prints the effective configuration as TOML with secrets masked.
func (r *Runner) ConfigShow(ctx context.Context, cmd *cli.Command) error {
	redacted := r.config.Redacted()
	if err := r.config.Validate(); err != nil {
		r.logger.Warn("configuration is not valid", "error", err)
	}

	r.writePlain("# %s\n", r.configPath)
	return toml.NewEncoder(r.output).Encode(redacted)
}
