package cmd

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vidsqueeze/vidsqueeze/internal/probe"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:           "doctor",
		Short:         "Check that ffmpeg and ffprobe are available",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			healthy := true
			for _, name := range []string{"ffmpeg", "ffprobe"} {
				path := getPersistentString(cmd, name, name)
				if !probe.CheckTool(cmd.Context(), path) {
					healthy = false
					fmt.Fprintf(out, "%-8s missing (looked for %q)\n", name+":", path)
					continue
				}
				resolved := path
				if abs, err := exec.LookPath(path); err == nil {
					resolved = abs
				}
				fmt.Fprintf(out, "%-8s ok  %s\n", name+":", resolved)
			}
			fmt.Fprintf(out, "formats: %s\n", strings.Join(probe.SupportedExtensions, " "))

			if !healthy {
				return &ExitError{Code: ExitMissingDep, Err: errors.New("required tools missing")}
			}
			return nil
		},
	}
}
