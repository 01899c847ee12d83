package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/vidsqueeze/vidsqueeze/internal/probe"
	"github.com/vidsqueeze/vidsqueeze/internal/transcoder"
	"github.com/vidsqueeze/vidsqueeze/pkg/models"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "run [files or directories...]",
		Short:         "Compress videos in one batch",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.MinimumNArgs(1),
		RunE:          runExecute,
	}
	bindEncodeFlags(cmd.Flags())
	return cmd
}

func bindEncodeFlags(fs *pflag.FlagSet) {
	fs.String("quality", "medium", "Quality level: low, medium, high")
	fs.String("codec", "h264", "Video codec: h264, h265")
	fs.String("mode", "quality", "Compression mode: quality, ratio, target_size")
	fs.Int("ratio", 50, "Target size as a percentage of the input (ratio mode)")
	fs.Float64("target-size", 0, "Target output size in MB (target_size mode)")
	fs.String("resolution", "original", "Output resolution: original, 1080p, 720p, 480p, custom")
	fs.Int("width", 0, "Custom output width, used with --resolution custom")
	fs.Int("height", 0, "Custom output height, used with --resolution custom")
	fs.String("fps", "original", "Output frame rate: original, 24, 30, 60, custom")
	fs.Int("custom-fps", 0, "Custom output frame rate, used with --fps custom")
	fs.Bool("no-audio", false, "Strip the audio track")
	fs.Int("audio-bitrate", 192, "Audio bitrate in kbps when audio is kept")
	fs.Int("video-bitrate", 0, "Override the video bitrate in kbps (disables CRF)")
	fs.StringP("out-dir", "o", "", "Output directory (default: alongside each input)")
	fs.String("suffix", transcoder.DefaultSuffix, "Filename suffix for outputs")
}

// settingsFromFlags maps the encode flags onto compression settings. The
// advanced gate turns on as soon as any override flag is used.
func settingsFromFlags(fs *pflag.FlagSet) (models.CompressionSettings, error) {
	s := models.DefaultSettings()

	quality, _ := fs.GetString("quality")
	switch strings.ToLower(quality) {
	case string(models.QualityLow), string(models.QualityMedium), string(models.QualityHigh):
		s.Quality = models.QualityLevel(strings.ToLower(quality))
	default:
		return s, fmt.Errorf("invalid --quality: %q (valid: low|medium|high)", quality)
	}

	codec, _ := fs.GetString("codec")
	switch strings.ToLower(codec) {
	case "h264":
		s.Codec = models.CodecH264
	case "h265":
		s.Codec = models.CodecH265
	default:
		return s, fmt.Errorf("invalid --codec: %q (valid: h264|h265)", codec)
	}

	mode, _ := fs.GetString("mode")
	switch strings.ToLower(mode) {
	case string(models.ModeQuality), string(models.ModeRatio), string(models.ModeTargetSize):
		s.Mode = models.CompressionMode(strings.ToLower(mode))
	default:
		return s, fmt.Errorf("invalid --mode: %q (valid: quality|ratio|target_size)", mode)
	}
	s.Ratio, _ = fs.GetInt("ratio")
	s.TargetSizeMB, _ = fs.GetFloat64("target-size")

	resolution, _ := fs.GetString("resolution")
	switch strings.ToLower(resolution) {
	case string(models.ResolutionOriginal), string(models.Resolution1080),
		string(models.Resolution720), string(models.Resolution480),
		string(models.ResolutionCustom):
		s.Resolution = models.ResolutionSpec(strings.ToLower(resolution))
	default:
		return s, fmt.Errorf("invalid --resolution: %q (valid: original|1080p|720p|480p|custom)", resolution)
	}
	s.CustomWidth, _ = fs.GetInt("width")
	s.CustomHeight, _ = fs.GetInt("height")
	if s.Resolution != models.ResolutionCustom && (s.CustomWidth > 0 || s.CustomHeight > 0) {
		return s, errors.New("--width and --height require --resolution custom")
	}

	fps, _ := fs.GetString("fps")
	switch strings.ToLower(fps) {
	case string(models.FrameRateOriginal), string(models.FrameRate24),
		string(models.FrameRate30), string(models.FrameRate60),
		string(models.FrameRateCustom):
		s.FrameRate = models.FrameRateSpec(strings.ToLower(fps))
	default:
		return s, fmt.Errorf("invalid --fps: %q (valid: original|24|30|60|custom)", fps)
	}
	s.CustomFPS, _ = fs.GetInt("custom-fps")

	noAudio, _ := fs.GetBool("no-audio")
	s.KeepAudio = !noAudio
	s.AudioKbps, _ = fs.GetInt("audio-bitrate")
	s.VideoBitrateKbps, _ = fs.GetInt("video-bitrate")

	s.Advanced = s.Resolution != models.ResolutionOriginal ||
		s.FrameRate != models.FrameRateOriginal ||
		s.VideoBitrateKbps > 0

	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}

// gatherInputs expands the arguments into the batch's input files.
// Directories contribute their supported files in name order; a file
// argument must itself be a supported container.
func gatherInputs(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		st, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}
		if !st.IsDir() {
			if !probe.IsSupported(arg) {
				return nil, fmt.Errorf("unsupported file type: %s", arg)
			}
			files = append(files, arg)
			continue
		}

		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, fmt.Errorf("read directory %s: %w", arg, err)
		}
		var candidates []string
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			candidates = append(candidates, filepath.Join(arg, entry.Name()))
		}
		files = append(files, probe.FilterSupported(candidates)...)
	}
	if len(files) == 0 {
		return nil, errors.New("no supported video files found")
	}
	return files, nil
}

func runExecute(cmd *cobra.Command, args []string) error {
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
	for _, tool := range []string{ffmpegPath, ffprobePath} {
		if !probe.CheckTool(cmd.Context(), tool) {
			return &ExitError{Code: ExitMissingDep, Err: fmt.Errorf("%s not found or not runnable, see 'vidsqueeze doctor'", tool)}
		}
	}

	outDir, _ := cmd.Flags().GetString("out-dir")
	suffix, _ := cmd.Flags().GetString("suffix")
	if err := ensureDir(outDir); err != nil {
		return &ExitError{Code: ExitFailure, Err: fmt.Errorf("create output dir: %w", err)}
	}

	seq := transcoder.NewSequencer(ffmpegPath, probe.New(ffprobePath, 0), newLogger(cmd))
	events := seq.Events()

	if _, err := seq.Start(cmd.Context(), inputs, outDir, settings, suffix); err != nil {
		return &ExitError{Code: ExitFailure, Err: err}
	}

	r := newRenderer(cmd.OutOrStdout(), len(inputs))
	for {
		ev := <-events
		r.observe(ev)
		if !ev.Terminal() {
			continue
		}

		if ev.Type == transcoder.EventBatchCancelled {
			return &ExitError{Code: ExitInterrupted, Err: errors.New("batch cancelled")}
		}

		summary := models.Summarize(ev.Results)
		if ev.Summary != nil {
			summary = *ev.Summary
		}
		if summary.Succeeded < summary.Total {
			return &ExitError{
				Code: ExitFailure,
				Err:  fmt.Errorf("%d of %d files failed", summary.Total-summary.Succeeded, summary.Total),
			}
		}
		return nil
	}
}
