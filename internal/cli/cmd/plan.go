package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vidsqueeze/vidsqueeze/internal/display"
	"github.com/vidsqueeze/vidsqueeze/internal/params"
	"github.com/vidsqueeze/vidsqueeze/internal/probe"
	"github.com/vidsqueeze/vidsqueeze/internal/transcoder"
)

func newPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "plan [files or directories...]",
		Short:         "Show the derived encode plan without running ffmpeg",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.MinimumNArgs(1),
		RunE:          planExecute,
	}
	bindEncodeFlags(cmd.Flags())
	return cmd
}

func planExecute(cmd *cobra.Command, args []string) error {
	settings, err := settingsFromFlags(cmd.Flags())
	if err != nil {
		return &ExitError{Code: ExitFailure, Err: err}
	}
	inputs, err := gatherInputs(args)
	if err != nil {
		return &ExitError{Code: ExitFailure, Err: err}
	}

	ffmpegPath := getPersistentString(cmd, "ffmpeg", "ffmpeg")
	ffprobePath := getPersistentString(cmd, "ffprobe", "ffprobe")
	if !probe.CheckTool(cmd.Context(), ffprobePath) {
		return &ExitError{Code: ExitMissingDep, Err: fmt.Errorf("%s not found or not runnable, see 'vidsqueeze doctor'", ffprobePath)}
	}

	outDir, _ := cmd.Flags().GetString("out-dir")
	suffix, _ := cmd.Flags().GetString("suffix")

	prober := probe.New(ffprobePath, 0)
	out := cmd.OutOrStdout()

	var failed int
	for i, input := range inputs {
		if i > 0 {
			fmt.Fprintln(out)
		}
		fmt.Fprintln(out, input)

		info, err := prober.Probe(cmd.Context(), input)
		if err != nil {
			failed++
			fmt.Fprintf(out, "  probe failed: %v\n", err)
			continue
		}

		outputPath := transcoder.OutputPath(input, outDir, suffix)
		p := params.Derive(settings, *info)
		argv := transcoder.BuildArgs(p, input, outputPath)

		fmt.Fprintf(out, "  input:  %dx%d, %s, %s\n",
			info.Width, info.Height,
			display.FormatDuration(info.DurationSec),
			display.FormatBytes(info.SizeBytes))
		fmt.Fprintf(out, "  output: %s\n", outputPath)
		if p.QualityFallback {
			fmt.Fprintln(out, "  note:   missing duration or size metadata, falling back to quality mode")
		}
		fmt.Fprintf(out, "  %s %s\n", ffmpegPath, strings.Join(argv, " "))
	}

	if failed > 0 {
		return &ExitError{Code: ExitFailure, Err: fmt.Errorf("%d of %d files could not be probed", failed, len(inputs))}
	}
	return nil
}
