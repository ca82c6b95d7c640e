// Package cmd provides CLI commands for the vantage binary.
package cmd

import "github.com/urfave/cli/v2"

// Shared output flags.
var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// NoColorFlag disables colored output.
	NoColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable colored output",
	}

	// TUIFlag enables Bubble Tea interactive mode.
	// Only valid for replay and history.
	TUIFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Enable interactive TUI mode (replay, history only)",
	}

	// ConfigFlag points at a vantage.yaml file. Flags override its values.
	ConfigFlag = &cli.StringFlag{
		Name:    "config",
		Usage:   "Path to YAML config file",
		EnvVars: []string{"VANTAGE_CONFIG"},
	}

	// LogLevelFlag sets the minimum log level.
	LogLevelFlag = &cli.StringFlag{
		Name:  "log-level",
		Usage: "Log level: debug, info, warn, error",
	}
)

// ReadOnlyFlags returns the shared flags for all read-only commands.
// Includes --tui so that unsupported commands can provide explicit error messages
// instead of generic "flag not defined" errors.
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{
		FormatFlag,
		NoColorFlag,
		TUIFlag,
	}
}

// PolicyFlags returns the archive policy flags.
func PolicyFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "policy",
			Usage: "Archive policy: noop, strict, buffered, streaming",
			Value: "strict",
		},
		&cli.StringFlag{
			Name:  "flush-mode",
			Usage: "Flush mode for buffered policy: at_least_once, snapshots_first",
			Value: "at_least_once",
		},
		&cli.IntFlag{
			Name:  "buffer-parts",
			Usage: "Max buffered parts (buffered policy)",
		},
		&cli.Int64Flag{
			Name:  "buffer-bytes",
			Usage: "Max buffer size in bytes (buffered policy)",
		},
		&cli.IntFlag{
			Name:  "flush-count",
			Usage: "Flush after N parts (streaming policy)",
		},
		&cli.DurationFlag{
			Name:  "flush-interval",
			Usage: "Flush every interval (streaming policy)",
		},
	}
}

// ArchiveFlags returns the archive storage flags.
func ArchiveFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "archive-backend",
			Usage: "Archive backend: fs or s3",
			Value: "fs",
		},
		&cli.StringFlag{
			Name:  "archive-path",
			Usage: "Archive path (fs: directory, s3: bucket/prefix); empty disables archiving",
		},
		&cli.StringFlag{
			Name:  "archive-dataset",
			Usage: "Archive dataset id",
		},
		&cli.StringFlag{
			Name:  "archive-s3-region",
			Usage: "AWS region for the S3 backend (optional, uses default chain)",
		},
		&cli.StringFlag{
			Name:  "archive-s3-endpoint",
			Usage: "Custom S3 endpoint for S3-compatible providers",
		},
		&cli.BoolFlag{
			Name:  "archive-s3-path-style",
			Usage: "Force path-style S3 addressing",
		},
	}
}

// AdapterFlags returns the lifecycle notification flags.
func AdapterFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "adapter",
			Usage: "Notification adapter: webhook or redis",
		},
		&cli.StringFlag{
			Name:  "adapter-url",
			Usage: "Webhook endpoint or Redis URL",
		},
		&cli.StringFlag{
			Name:  "adapter-channel",
			Usage: "Redis pub/sub channel",
		},
		&cli.StringSliceFlag{
			Name:  "adapter-header",
			Usage: "Webhook header as Key=Value (repeatable)",
		},
		&cli.DurationFlag{
			Name:  "adapter-timeout",
			Usage: "Per-publish timeout",
		},
		&cli.IntFlag{
			Name:  "adapter-retries",
			Usage: "Retry attempts per event",
		},
		&cli.BoolFlag{
			Name:  "sidecars",
			Usage: "Write a rendered text file per terminal artifact to the archive",
		},
	}
}

// pipelineFlags returns every flag that configures the ingestion pipeline.
func pipelineFlags() []cli.Flag {
	flags := []cli.Flag{ConfigFlag, LogLevelFlag}
	flags = append(flags, PolicyFlags()...)
	flags = append(flags, ArchiveFlags()...)
	return append(flags, AdapterFlags()...)
}
