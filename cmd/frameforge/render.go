package main

import (
	"context"
	"fmt"
	"image/png"
	"math"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ivlev/frameforge/internal/effects"
	"github.com/ivlev/frameforge/internal/export"
	"github.com/ivlev/frameforge/internal/raster"
	"github.com/ivlev/frameforge/internal/scene"
	"github.com/ivlev/frameforge/internal/system"
	"github.com/ivlev/frameforge/internal/template"
	"github.com/ivlev/frameforge/internal/transition"
)

var audioExts = []string{".mp3", ".wav", ".ogg", ".m4a", ".aac"}

// compositionFlags describe one composition on the command line.
type compositionFlags struct {
	template    string
	propsFile   string
	project     string
	timeline    string
	title       string
	subtitle    string
	color       string
	audio       string
	audioSync   bool
	duration    int
	fps         int
	width       int
	height      int
	format      string
	quality     string
	preset      string
	grade       string
	entrance    string
	direction   string
	entranceLen int
}

func (f *compositionFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVarP(&f.template, "template", "t", "corporate", "template: educational, corporate, minimal")
	fl.StringVar(&f.propsFile, "props", "", "YAML file with template props")
	fl.StringVar(&f.project, "project", "", "saved project JSON file")
	fl.StringVar(&f.timeline, "timeline", "", "timeline YAML file")
	fl.StringVar(&f.title, "title", "", "title text")
	fl.StringVar(&f.subtitle, "subtitle", "", "subtitle text")
	fl.StringVar(&f.color, "color", "", "primary color (#RRGGBB)")
	fl.StringVar(&f.audio, "audio", "", "soundtrack path or URL, \"latest\" picks the newest file in input/audio")
	fl.BoolVar(&f.audioSync, "audio-sync", false, "match the duration to the soundtrack length")
	fl.IntVar(&f.duration, "duration", 0, "duration in frames (0 = 150, or the whole timeline)")
	fl.IntVar(&f.fps, "fps", 0, "frames per second (0 = config)")
	fl.IntVar(&f.width, "width", 0, "width (0 = config)")
	fl.IntVar(&f.height, "height", 0, "height (0 = config)")
	fl.StringVarP(&f.format, "format", "f", "mp4", "output format: mp4, gif, webm")
	fl.StringVarP(&f.quality, "quality", "q", "high", "quality: low, medium, high")
	fl.StringVar(&f.preset, "preset", "", "platform preset, overrides format, quality, size and fps")
	fl.StringVar(&f.grade, "grade", "", "color grade preset")
	fl.StringVar(&f.entrance, "entrance", "", "entrance: fade, slide, zoom, wipe, spring")
	fl.StringVar(&f.direction, "direction", "left", "slide and wipe direction")
	fl.IntVar(&f.entranceLen, "entrance-frames", 20, "entrance length in frames")
}

func (f *compositionFlags) options(ctx context.Context, a *app) (export.Options, error) {
	fps := firstPositive(f.fps, a.cfg.FPS)
	format, quality := export.Format(f.format), export.Quality(f.quality)

	var opts export.Options
	switch {
	case f.project != "":
		file, err := os.Open(f.project)
		if err != nil {
			return export.Options{}, err
		}
		defer file.Close()
		pf, err := export.LoadProject(file)
		if err != nil {
			return export.Options{}, err
		}
		opts = pf.Options(format, quality)
	case f.timeline != "":
		tl, err := scene.ReadTimeline(f.timeline)
		if err != nil {
			return export.Options{}, err
		}
		opts = export.Options{
			CompositionID:    export.CompositionTimeline,
			OutputFormat:     format,
			Quality:          quality,
			Timeline:         &tl,
			DurationInFrames: f.duration,
			FPS:              fps,
		}
	default:
		props, err := f.props()
		if err != nil {
			return export.Options{}, err
		}
		opts = export.Options{
			CompositionID:    export.CompositionPromo,
			OutputFormat:     format,
			Quality:          quality,
			InputProps:       props,
			DurationInFrames: firstPositive(f.duration, template.DefaultVideoConfig().DurationInFrames),
			FPS:              fps,
		}
		if err := f.applyAudio(ctx, a, &opts); err != nil {
			return export.Options{}, err
		}
		opts.Overlay = f.overlay()
	}

	opts.Width = firstPositive(f.width, a.cfg.Width)
	opts.Height = firstPositive(f.height, a.cfg.Height)

	if f.preset != "" {
		p, err := a.presets.Get(f.preset)
		if err != nil {
			return export.Options{}, err
		}
		opts = p.Apply(opts)
		log.Debug().Str("preset", p.Platform).Str("resolution", p.Resolution.String()).Msg("preset applied")
	}
	return opts, opts.Validate()
}

func (f *compositionFlags) props() (template.Props, error) {
	kind, err := template.ParseKind(f.template)
	if err != nil {
		return template.Props{}, err
	}
	props := template.DefaultProps(kind)
	if f.propsFile != "" {
		data, err := os.ReadFile(f.propsFile)
		if err != nil {
			return template.Props{}, err
		}
		if err := yaml.Unmarshal(data, &props); err != nil {
			return template.Props{}, fmt.Errorf("failed to parse %s: %w", f.propsFile, err)
		}
	}
	if f.title != "" {
		props.Title = f.title
	}
	if f.subtitle != "" {
		props.Subtitle = f.subtitle
	}
	if f.color != "" {
		props.PrimaryColor = f.color
	}
	return props, props.Validate()
}

func (f *compositionFlags) applyAudio(ctx context.Context, a *app, opts *export.Options) error {
	audio := f.audio
	if audio == "latest" {
		latest, err := system.FindLatest("input/audio", audioExts...)
		if err != nil {
			return err
		}
		log.Info().Str("audio", latest).Msg("using latest soundtrack")
		audio = latest
	}
	if audio != "" {
		opts.InputProps.AudioURL = audio
	}
	if !f.audioSync || opts.InputProps.AudioURL == "" {
		return nil
	}

	seconds, err := system.ProbeDuration(ctx, a.cfg.FFmpeg.ProbePath, opts.InputProps.AudioURL)
	if err != nil {
		log.Warn().Err(err).Msg("could not read soundtrack duration")
		return nil
	}
	skip := float64(opts.InputProps.AudioStartFrom) / float64(opts.FPS)
	opts.DurationInFrames = int(math.Ceil((seconds - skip) * float64(opts.FPS)))
	log.Info().Float64("seconds", seconds-skip).Int("frames", opts.DurationInFrames).Msg("duration synced to soundtrack")
	return nil
}

func (f *compositionFlags) overlay() template.Overlay {
	o := template.Overlay{Grade: f.grade}
	if f.entrance != "" {
		o.Entrance = template.Entrance{
			Kind:      template.EntranceKind(f.entrance),
			Direction: transition.Direction(f.direction),
			Duration:  f.entranceLen,
		}
	}
	return o
}

func firstPositive(v ...int) int {
	for _, x := range v {
		if x > 0 {
			return x
		}
	}
	return 0
}

func newBar(desc string) *progressbar.ProgressBar {
	return progressbar.NewOptions(100,
		progressbar.OptionSetDescription(desc),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionThrottle(100*time.Millisecond),
	)
}

var (
	renderFlags   compositionFlags
	downloadTo    string
	saveProjectTo string
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render a composition to a video file",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFromCmd(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		opts, err := renderFlags.options(cmd.Context(), a)
		if err != nil {
			return err
		}

		if saveProjectTo != "" && opts.CompositionID == export.CompositionPromo {
			if err := writeProject(saveProjectTo, opts); err != nil {
				return err
			}
			log.Info().Str("path", saveProjectTo).Msg("project saved")
		}

		bar := newBar("rendering")
		job, err := a.orchestrator.ExportVideo(cmd.Context(), opts, func(p float64) {
			bar.Set(int(p))
		})
		bar.Finish()
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return err
		}

		log.Info().
			Str("job", job.ID).
			Str("path", job.Result.LocalPath).
			Str("url", job.Result.URL).
			Msg("render complete")

		if downloadTo != "" && strings.HasPrefix(job.Result.URL, "http") {
			if err := export.Download(cmd.Context(), nil, job.Result.URL, downloadTo); err != nil {
				return err
			}
			log.Info().Str("path", downloadTo).Msg("downloaded")
		}
		return nil
	},
}

func writeProject(path string, opts export.Options) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	pf := export.NewProjectFile(opts.InputProps, opts.DurationInFrames, opts.FPS, time.Now())
	if err := export.SaveProject(f, pf); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

var (
	previewFlags compositionFlags
	previewFrame int
	previewOut   string
)

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Render a single frame to PNG",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFromCmd(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		opts, err := previewFlags.options(cmd.Context(), a)
		if err != nil {
			return err
		}

		vs, err := opts.Frame(previewFrame)
		if err != nil {
			return err
		}
		img, err := a.raster.Render(cmd.Context(), vs)
		if err != nil {
			return err
		}
		defer a.raster.Release(img)

		f, err := os.Create(previewOut)
		if err != nil {
			return err
		}
		if err := png.Encode(f, img); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}

		hash, err := raster.Fingerprint(img)
		if err != nil {
			return err
		}
		log.Info().
			Int("frame", previewFrame).
			Int("layers", len(vs.Layers)).
			Str("filters", effects.Join(vs.Filters)).
			Str("fingerprint", fmt.Sprintf("%016x", hash)).
			Str("path", previewOut).
			Msg("frame written")
		return nil
	},
}

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "List platform export presets and color grades",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, name := range export.Platforms() {
			p, err := export.LookupPreset(name)
			if err != nil {
				return err
			}
			fmt.Printf("%-16s %-10s %3d fps  %-5s %-6s %s\n", name, p.Resolution, p.FrameRate, p.Codec, p.Quality, p.Bitrate)
		}
		fmt.Println()
		for _, name := range effects.PresetNames() {
			g, _ := effects.Preset(name)
			fmt.Printf("%-10s %s\n", name, effects.Join(g.Filters()))
		}
		return nil
	},
}

func init() {
	renderFlags.register(renderCmd)
	renderCmd.Flags().StringVar(&downloadTo, "download", "", "download the uploaded artifact to this path")
	renderCmd.Flags().StringVar(&saveProjectTo, "save-project", "", "also write the composition as a project file")

	previewFlags.register(previewCmd)
	previewCmd.Flags().IntVar(&previewFrame, "frame", 30, "frame to render")
	previewCmd.Flags().StringVarP(&previewOut, "out", "o", "preview.png", "PNG output path")
}
