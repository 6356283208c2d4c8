// submodule cmd contains command definitions
package main

import (
	"github.com/urfave/cli/v3"
)

// globalFlags are read by [Runner.before] for every command.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to configuration file",
			Value:   "config.toml",
			Sources: cli.EnvVars("GMX_CONFIG"),
		},
		&cli.StringFlag{
			Name:  "env-file",
			Usage: "Dotenv file with GMX_* overrides",
			Value: ".env",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "Enable debug logging",
		},
	}
}

// runCommand runs the live suite
func runCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run the live suite: upload, list, search, edit playlists, then clean up",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Report format (text, json, markdown, csv); defaults to report.format",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write the report to a file instead of stdout",
			},
			&cli.StringFlag{
				Name:  "metrics",
				Usage: "Write Prometheus textfile metrics; defaults to report.metrics_file",
			},
			&cli.BoolFlag{
				Name:  "no-ledger",
				Usage: "Do not record the run or track created resources",
			},
			&cli.BoolFlag{
				Name:    "tui",
				Aliases: []string{"i"},
				Usage:   "Follow the run in the interactive terminal UI",
			},
		},
		Action: r.RunSuite,
	}
}

// sweepCommand deletes leaked test resources
func sweepCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sweep",
		Usage: "Delete test resources left behind by interrupted runs",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "by-name",
				Usage: "Also delete playlists named like the test playlist",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "List what would be deleted",
			},
			&cli.IntFlag{
				Name:  "concurrency",
				Usage: "Concurrent deletes",
				Value: 4,
			},
		},
		Action: r.Sweep,
	}
}

// runsCommand reads the ledger
func runsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "runs",
		Usage: "Inspect recorded runs",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List recent runs, newest first",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of runs to show",
						Value: 20,
					},
					&cli.StringFlag{
						Name:  "status",
						Usage: "Only runs with this status (running, passed, failed)",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.RunsList,
			},
			{
				Name:  "show",
				Usage: "Show the steps of a run",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "id",
					},
				},
				Action: r.RunsShow,
			},
			{
				Name:   "resources",
				Usage:  "List tracked resources that were never deleted",
				Action: r.RunsResources,
			},
		},
	}
}

// authCommand checks the configured account
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage authentication",
		Commands: []*cli.Command{
			{
				Name:  "check",
				Usage: "Log in, report the session state and log out",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "upload",
						Usage: "Also authorize an uploader",
					},
				},
				Action: r.AuthCheck,
			},
		},
	}
}

// apiCommand handles direct (proxy) API calls
func apiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Direct API calls to the music proxy",
		Commands: []*cli.Command{
			{
				Name:  "get",
				Usage: "Direct GET, prints raw JSON",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "path",
					},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output compact JSON",
					},
				},
				Action: r.APIGet,
			},
			{
				Name:  "post",
				Usage: "Direct POST with JSON body",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "path",
					},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "data",
						Aliases:  []string{"d"},
						Usage:    "JSON body to send",
						Required: true,
					},
				},
				Action: r.APIPost,
			},
			{
				Name:  "dump",
				Usage: "Library state dump (songs and playlist ids)",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
					&cli.StringFlag{
						Name:  "save",
						Usage: "Also save the dump to this file",
					},
				},
				Action: r.APIDump,
			},
		},
	}
}

// fixtureCommand writes the sample upload
func fixtureCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "fixture",
		Usage: "Write the sample MP3 used by the suite and print its tags",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "dir",
				Aliases: []string{"d"},
				Usage:   "Directory to write into",
				Value:   ".",
			},
			&cli.BoolFlag{
				Name:  "unique",
				Usage: "Suffix the tags with a short random id",
			},
		},
		Action: r.Fixture,
	}
}

// configCommand handles configuration files
func configCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Write an example config.toml",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name:      "path",
						UsageText: "defaults to the --config path",
					},
				},
				Action: r.ConfigInit,
			},
			{
				Name:   "show",
				Usage:  "Print the effective configuration with secrets masked",
				Action: r.ConfigShow,
			},
		},
	}
}

// setupCommand prepares the config file and the ledger.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create config.toml if missing, initialize the ledger and run migrations",
		Action: r.Setup,
	}
}

// stubCommand serves the in-memory library
func stubCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "stub",
		Usage: "Serve an in-memory music library for local runs",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address",
				Value: "127.0.0.1:8765",
			},
			&cli.IntFlag{
				Name:  "lag",
				Usage: "Reads after each write that still see the previous state",
				Value: 2,
			},
			&cli.IntFlag{
				Name:  "page-size",
				Usage: "Songs per listing page (0 for one page)",
			},
			&cli.StringFlag{
				Name:  "email",
				Usage: "Account email accepted by the token endpoint",
				Value: "tester@example.com",
			},
			&cli.StringFlag{
				Name:  "password",
				Usage: "Account password accepted by the token endpoint",
				Value: "hunter2",
			},
		},
		Action: r.Stub,
	}
}
