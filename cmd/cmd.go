// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func outputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output JSON (same as --format json)",
		},
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Output format: text, csv, markdown or json (default: from --output extension, else text)",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Write the result to a file instead of stdout",
		},
	}
}

func playlistFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "playlist",
		Aliases:  []string{"p"},
		Usage:    "Playlist link, spotify:playlist: URI or ID",
		Required: true,
	}
}

func pairFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "a",
			Usage:    "First playlist link or ID",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "b",
			Usage:    "Second playlist link or ID",
			Required: true,
		},
	}
}

// setupCommand handles setup operations for the database and configuration file.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "database",
				Usage: "Initialize database and run migrations",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "status",
						Usage: "Only show which migrations are applied",
					},
					&cli.BoolFlag{
						Name:  "rollback",
						Usage: "Revert the most recent migration",
					},
				},
				Action: r.SetupDatabase,
			},
			{
				Name:   "config",
				Usage:  "Write a config.toml template to the --config path",
				Action: r.SetupConfig,
			},
		},
	}
}

// spotifyCommand handles Spotify operations
func spotifyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "spotify",
		Aliases: []string{"spot"},
		Usage:   "Spotify account operations",
		Commands: []*cli.Command{
			{
				Name:   "auth",
				Usage:  "Authenticate with Spotify using OAuth2",
				Action: r.SpotifyAuth,
			},
			{
				Name:  "playlists",
				Usage: "List Spotify playlists",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of playlists to return",
						Value: 50,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
					},
				},
				Action: r.SpotifyPlaylists,
			},
		},
	}
}

func sequenceCommand(r *Runner) *cli.Command {
	flags := []cli.Flag{
		playlistFlag(),
		&cli.IntFlag{
			Name:    "beam-width",
			Aliases: []string{"w"},
			Usage:   "Partial orders kept per step (default: mixing.beam_width)",
		},
		&cli.BoolFlag{
			Name:  "apply",
			Usage: "Write the new order back to the playlist",
		},
	}
	return &cli.Command{
		Name:    "sequence",
		Aliases: []string{"seq", "optimize"},
		Usage:   "Order a playlist for the smoothest transitions with beam search",
		Flags:   append(flags, outputFlags()...),
		Action:  r.Sequence,
	}
}

func groupCommand(r *Runner) *cli.Command {
	flags := []cli.Flag{
		playlistFlag(),
		&cli.IntFlag{
			Name:    "clusters",
			Aliases: []string{"k"},
			Usage:   "Maximum number of clusters (default: mixing.max_clusters)",
		},
		&cli.BoolFlag{
			Name:  "apply",
			Usage: "Write the new order back to the playlist",
		},
	}
	return &cli.Command{
		Name:    "group",
		Aliases: []string{"cluster"},
		Usage:   "Cluster similar tracks and order each cluster by tempo",
		Flags:   append(flags, outputFlags()...),
		Action:  r.Group,
	}
}

func mergeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "merge",
		Usage:  "Interleave two playlists back to back",
		Flags:  append(pairFlags(), outputFlags()...),
		Action: r.Merge,
	}
}

func compareCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "compare",
		Usage:  "Estimate how similar two playlists are",
		Flags:  append(pairFlags(), outputFlags()...),
		Action: r.Compare,
	}
}

func reorderCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "reorder",
		Usage: "Replace a playlist's tracks with the given order",
		Flags: []cli.Flag{
			playlistFlag(),
			&cli.StringSliceFlag{
				Name:  "uris",
				Usage: "Track URIs in the new order, comma separated",
			},
			&cli.IntFlag{
				Name:  "run",
				Usage: "Use the order saved by a recorded run (see `setlist history`)",
			},
		},
		Action: r.Reorder,
	}
}

// historyCommand exposes the recorded runs.
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show previously computed orders",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "playlist",
				Aliases: []string{"p"},
				Usage:   "Only runs for this playlist",
			},
			&cli.StringFlag{
				Name:  "method",
				Usage: "Only runs made with this method (beam, cluster or merge)",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of runs",
				Value: 20,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output JSON",
			},
		},
		Action: r.History,
		Commands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Show the track order of one run",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:     "run",
						Usage:    "Run number",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output JSON",
					},
				},
				Action: r.HistoryShow,
			},
			{
				Name:  "delete",
				Usage: "Delete a recorded run",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:     "run",
						Usage:    "Run number",
						Required: true,
					},
				},
				Action: r.HistoryDelete,
			},
		},
	}
}

// cacheCommand manages the audio feature cache.
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Manage locally cached audio features",
		Commands: []*cli.Command{
			{
				Name:   "warm",
				Usage:  "Resolve and cache the features of every track in a playlist",
				Flags:  []cli.Flag{playlistFlag()},
				Action: r.CacheWarm,
			},
			{
				Name:  "list",
				Usage: "List cached feature records",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "artist",
						Usage: "Only records by this artist",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of records",
						Value: 50,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output JSON",
					},
				},
				Action: r.CacheList,
			},
			{
				Name:  "clear",
				Usage: "Remove cached feature records",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "older-than",
						Usage: "Only remove records not refreshed within this duration (e.g. 720h)",
					},
				},
				Action: r.CacheClear,
			},
		},
	}
}

func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the JSON API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Listen host (default: server.host)",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Listen port (default: server.port)",
			},
		},
		Action: r.Serve,
	}
}

// tuiCommand returns the top-level TUI command for interactive sequencing.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch interactive TUI for playlist sequencing",
		Flags:   []cli.Flag{
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Where to write logs while the TUI owns the terminal",
				Value: "./tmp/setlist-tui.log",
			},
		},
		Action: r.TUI,
	}
}
