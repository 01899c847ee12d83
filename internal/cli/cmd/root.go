// Package cmd assembles the vidsqueeze command line interface.
package cmd

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vidsqueeze/vidsqueeze/internal/logging"
)

const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitMissingDep  = 2
	ExitInterrupted = 130
)

// ExitError wraps an error with a process exit code.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "vidsqueeze",
		Short:         "Bulk video compressor built on ffmpeg",
		Long:          "Vidsqueeze shrinks batches of videos with ffmpeg. Point it at files or directories, pick a quality level or a size target, and it re-encodes each input into a smaller copy alongside the original.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Persistent flags available to all subcommands
	root.PersistentFlags().String("ffmpeg", "ffmpeg", "Path to the ffmpeg binary")
	root.PersistentFlags().String("ffprobe", "ffprobe", "Path to the ffprobe binary")
	root.PersistentFlags().String("log-level", "warn", "Log level: trace, debug, info, warn, error")

	root.AddCommand(newRunCmd())
	root.AddCommand(newPlanCmd())
	root.AddCommand(newDoctorCmd())

	return root
}

// Execute runs the CLI with the provided context.
func Execute(ctx context.Context) error {
	root := newRootCmd()
	return root.ExecuteContext(ctx)
}

func getPersistentString(cmd *cobra.Command, name, def string) string {
	v, err := cmd.InheritedFlags().GetString(name)
	if err != nil || v == "" {
		return def
	}
	return v
}

// newLogger builds the CLI logger on stderr so stdout stays reserved for
// command output.
func newLogger(cmd *cobra.Command) zerolog.Logger {
	logger, err := logging.New(logging.Config{
		Level:  getPersistentString(cmd, "log-level", "warn"),
		Format: "console",
		Output: "stderr",
	})
	if err != nil {
		return zerolog.Nop()
	}
	return logger
}

func ensureDir(path string) error {
	if path == "" {
		return nil
	}
	return os.MkdirAll(filepath.Clean(path), 0o755)
}
