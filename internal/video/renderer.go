// Package video is the render collaborator: it rasterizes every frame of a
// composition and pipes the frames through ffmpeg.
package video

import (
	"context"
	"fmt"
	"image"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ivlev/frameforge/internal/animation"
	"github.com/ivlev/frameforge/internal/config"
	"github.com/ivlev/frameforge/internal/export"
	"github.com/ivlev/frameforge/internal/raster"
	"github.com/ivlev/frameforge/internal/storage"
	"github.com/ivlev/frameforge/internal/system"
	"github.com/ivlev/frameforge/internal/template"
)

// encodeShare is the part of the progress bar covered by frame streaming;
// the upload takes the rest.
const encodeShare = 95

type Renderer struct {
	cfg     *config.Config
	raster  *raster.Rasterizer
	storage storage.Storage
	encoder *FFmpegEncoder
	log     zerolog.Logger
}

// NewRenderer builds the ffmpeg renderer. store may be nil, in which case
// the result URL points at the local file.
func NewRenderer(cfg *config.Config, r *raster.Rasterizer, store storage.Storage, log zerolog.Logger) *Renderer {
	return &Renderer{
		cfg:     cfg,
		raster:  r,
		storage: store,
		encoder: &FFmpegEncoder{Binary: cfg.FFmpeg.BinaryPath},
		log:     log,
	}
}

func (r *Renderer) Render(ctx context.Context, opts export.Options, progress export.ProgressFunc) (export.Result, error) {
	if progress == nil {
		progress = func(float64) {}
	}

	params := r.Params(opts)
	if params.DurationInFrames <= 0 {
		return export.Result{}, fmt.Errorf("composition %s has no frames", opts.CompositionID)
	}

	if err := os.MkdirAll(r.cfg.OutputDir, 0755); err != nil {
		return export.Result{}, err
	}
	name := fmt.Sprintf("%s-%s.%s", strings.ToLower(opts.CompositionID), uuid.NewString()[:8], opts.OutputFormat)
	output := filepath.Join(r.cfg.OutputDir, name)

	r.log.Info().
		Str("output", output).
		Str("encoder", params.Encoder).
		Int("frames", params.DurationInFrames).
		Str("size", fmt.Sprintf("%dx%d", params.Width, params.Height)).
		Msg("encoding")

	err := r.encoder.Encode(ctx, params, output, func(w io.Writer) error {
		return r.Stream(ctx, opts, w, func(done, total int) {
			progress(float64(done) / float64(total) * encodeShare)
		})
	})
	if err != nil {
		os.Remove(output)
		return export.Result{}, err
	}

	res := export.Result{LocalPath: output}
	if r.storage == nil {
		abs, err := filepath.Abs(output)
		if err != nil {
			abs = output
		}
		res.URL = (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
		return res, nil
	}

	f, err := os.Open(output)
	if err != nil {
		return export.Result{}, err
	}
	defer f.Close()

	obj, err := r.storage.Upload(ctx, f, "exports/"+name)
	if err != nil {
		return export.Result{}, fmt.Errorf("failed to upload %s: %w", name, err)
	}
	res.URL = obj.URL
	return res, nil
}

// Params resolves encoder, quality and audio settings for opts.
func (r *Renderer) Params(opts export.Options) config.RenderParams {
	video := opts.Video()
	encoder := r.cfg.FFmpeg.Encoder
	if encoder == "" || opts.OutputFormat != export.MP4 {
		encoder = system.BestEncoder(r.cfg.FFmpeg.BinaryPath, string(opts.OutputFormat))
	}

	p := config.RenderParams{
		Width:            video.Width,
		Height:           video.Height,
		FPS:              video.FPS,
		DurationInFrames: video.DurationInFrames,
		Format:           string(opts.OutputFormat),
		Encoder:          encoder,
		Quality:          qualityLevel(opts.Quality, encoder),
		Preset:           r.cfg.FFmpeg.Preset,
	}

	if a, ok := soundtrack(opts); ok {
		p.AudioPath = localRef(a.Src)
		p.AudioOffset = float64(a.StartFrom) / float64(video.FPS)
		p.AudioDelay = float64(a.Delay) / float64(video.FPS)
		p.AudioVolume = animation.Expression(template.AudioTrack(a.Volume), fmt.Sprintf("(t*%d)", video.FPS))
	}
	return p
}

// Stream rasterizes every frame of opts in parallel and writes them to w in
// frame order as raw RGBA. done is called after each written frame.
func (r *Renderer) Stream(ctx context.Context, opts export.Options, w io.Writer, done func(done, total int)) error {
	video := opts.Video()
	n := video.DurationInFrames
	workers := system.Workers(uint64(video.Width)*uint64(video.Height)*4, r.cfg.Workers)

	slots := make([]chan *image.RGBA, n)
	for i := range slots {
		slots[i] = make(chan *image.RGBA, 1)
	}
	// frames rendered or rendering but not yet written
	window := make(chan struct{}, workers)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for i := 0; i < n; i++ {
			select {
			case window <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			frame := i
			g.Go(func() error {
				vs, err := opts.Frame(frame)
				if err != nil {
					return fmt.Errorf("compose frame %d: %w", frame, err)
				}
				img, err := r.raster.Render(gctx, vs)
				if err != nil {
					return fmt.Errorf("rasterize frame %d: %w", frame, err)
				}
				slots[frame] <- img
				return nil
			})
		}
		return nil
	})

	g.Go(func() error {
		for i := 0; i < n; i++ {
			var img *image.RGBA
			select {
			case img = <-slots[i]:
			case <-gctx.Done():
				return gctx.Err()
			}
			err := writeRawRGBA(w, img)
			r.raster.Release(img)
			<-window
			if err != nil {
				return err
			}
			if done != nil {
				done(i+1, n)
			}
		}
		return nil
	})

	return g.Wait()
}

type audio struct {
	Src       string
	Volume    float64
	StartFrom int // frames skipped in the source
	Delay     int // frames of silence before playback
}

// soundtrack picks the audio of a promo composition, or of the first
// timeline scene that has one.
func soundtrack(opts export.Options) (audio, bool) {
	if opts.CompositionID == export.CompositionTimeline && opts.Timeline != nil {
		for _, s := range opts.Timeline.Scenes {
			if s.Props.AudioURL != "" {
				return audio{s.Props.AudioURL, s.Props.AudioVolume, s.Props.AudioStartFrom, s.StartFrame}, true
			}
		}
		return audio{}, false
	}
	if opts.InputProps.AudioURL == "" {
		return audio{}, false
	}
	b := opts.InputProps.Base
	return audio{b.AudioURL, b.AudioVolume, b.AudioStartFrom, 0}, true
}

func localRef(src string) string {
	if u, err := url.Parse(src); err == nil && u.Scheme == "file" {
		return u.Path
	}
	return src
}
