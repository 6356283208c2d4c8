package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/gmx/internal/repositories"
	"github.com/desertthunder/gmx/internal/services"
	"github.com/desertthunder/gmx/internal/shared"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	service    services.Service
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Service    services.Service
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		service:    opts.Service,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		runCommand, sweepCommand, runsCommand, authCommand, apiCommand, fixtureCommand, configCommand, setupCommand, stubCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// before loads the dotenv file and the config file named by the global flags, then applies the log level.
//
// A missing config file keeps the current config so `gmx config init` and env-only setups work.
func (r *Runner) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if err := shared.LoadEnvFile(cmd.String("env-file")); err != nil {
		return ctx, err
	}

	path := cmd.String("config")
	if _, err := os.Stat(path); err == nil {
		config, err := shared.LoadConfig(path)
		if err != nil {
			return ctx, err
		}
		r.config = config
	} else if cmd.IsSet("config") {
		return ctx, fmt.Errorf("%w: %s", shared.ErrMissingConfig, path)
	}
	r.configPath = path
	r.config.ApplyEnv()

	level := r.config.LogLevel
	if cmd.Bool("verbose") {
		level = "debug"
	}
	shared.SetLogLevel(r.logger, shared.ParseLogLevel(level))

	return ctx, nil
}

// SetLogger replaces the runner's logger and the service's logger when it has one.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
	if svc, ok := r.service.(*services.MusicService); ok {
		svc.SetLogger(shared.WithLogger(logger, "service", svc.Name()))
	}
}

// musicService returns the injected service or builds a [services.MusicService] from the config.
func (r *Runner) musicService() services.Service {
	if r.service != nil {
		return r.service
	}

	client := r.httpClient
	if client == nil {
		client = services.NewHTTPClient(r.config.Service)
	}
	svc := services.NewMusicService(r.config.Service.BaseURL, client)
	svc.SetLogger(shared.WithLogger(r.logger, "service", svc.Name()))
	r.service = svc
	return svc
}

// credentials converts the configured account to [services.Credentials].
func (r *Runner) credentials() (services.Credentials, error) {
	if !r.config.HasCredentials() {
		return services.Credentials{}, fmt.Errorf("%w: set credentials in %s or %s/%s", shared.ErrMissingCredentials,
			r.configPath, shared.EnvEmail, shared.EnvPassword)
	}
	c := r.config.Credentials
	return services.Credentials{
		Email:        c.Email,
		Password:     c.Password,
		AccessToken:  c.AccessToken,
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		TokenURL:     c.TokenURL,
	}, nil
}

// login signs the service in and returns a function that ends the session.
func (r *Runner) login(ctx context.Context, uploadAuth bool) (services.Service, func(), error) {
	creds, err := r.credentials()
	if err != nil {
		return nil, nil, err
	}

	svc := r.musicService()
	if err := svc.Login(ctx, creds, uploadAuth); err != nil {
		return nil, nil, err
	}

	logout := func() {
		if _, err := svc.Logout(context.WithoutCancel(ctx)); err != nil {
			r.logger.Warn("logout failed", "error", err)
		}
	}
	return svc, logout, nil
}

// openLedger opens the sqlite ledger and returns it with a function that closes it.
func (r *Runner) openLedger() (*repositories.Ledger, func(), error) {
	db, err := shared.OpenLedger(r.config.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	r.logger.Debug("ledger opened", "path", r.config.Database.Path)

	return repositories.NewLedger(db), func() { db.Close() }, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
