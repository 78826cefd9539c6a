package main

import (
	"context"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ivlev/frameforge/internal/assets"
	"github.com/ivlev/frameforge/internal/batch"
	"github.com/ivlev/frameforge/internal/config"
	"github.com/ivlev/frameforge/internal/events"
	"github.com/ivlev/frameforge/internal/export"
	"github.com/ivlev/frameforge/internal/logging"
	"github.com/ivlev/frameforge/internal/raster"
	"github.com/ivlev/frameforge/internal/storage"
	"github.com/ivlev/frameforge/internal/store"
	"github.com/ivlev/frameforge/internal/system"
	"github.com/ivlev/frameforge/internal/video"
)

var (
	cfgFile string
	logFile string
	verbose bool
)

func main() {
	ctx := context.Background()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "frameforge",
	Short:         "frameforge - frame-indexed video composition",
	Long:          "Compose template scenes frame by frame and export them through ffmpeg.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if logFile != "" {
			f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
			if err != nil {
				return err
			}
			logging.Init(verbose, f)
		} else {
			logging.Init(verbose)
		}

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		system.InitResourceLimits(logging.WithComponent("system"))

		cmd.SetContext(config.WithConfig(cmd.Context(), cfg))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./frameforge.yaml)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also append JSON logs to this file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(renderCmd, previewCmd, batchCmd, presetsCmd, projectCmd, timelineCmd, assetsCmd)
}

// app is the composition root shared by the commands.
type app struct {
	cfg          *config.Config
	storage      *storage.LocalStorage
	store        store.Store
	events       events.Publisher
	library      *assets.Library
	frames       *system.FramePool
	raster       *raster.Rasterizer
	renderer     *video.Renderer
	orchestrator *export.Orchestrator
	presets      *export.Presets

	closers []func() error
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}

	a.storage = storage.NewLocalStorage(cfg.Storage.BaseDir, cfg.Storage.PublicURL)

	if cfg.Postgres.Enabled {
		pg, err := store.ConnectPostgres(ctx, cfg.Postgres, logging.WithComponent("store"))
		if err != nil {
			return nil, err
		}
		a.store = pg
		a.closers = append(a.closers, pg.Close)
	} else {
		a.store = store.NewMemory()
	}

	if cfg.RabbitMQ.Enabled {
		pub, err := events.NewRabbitPublisher(cfg.RabbitMQ, logging.WithComponent("events"))
		if err != nil {
			a.Close()
			return nil, err
		}
		a.events = pub
		a.closers = append(a.closers, pub.Close)
	} else {
		a.events = events.Nop{}
	}

	a.library = assets.NewLibrary(assets.Options{
		DPI:         cfg.Assets.DPI,
		CacheTTL:    cfg.Assets.CacheTTL,
		CacheSize:   cfg.Assets.CacheSize,
		HTTPTimeout: cfg.Assets.HTTPTimeout,
		FFmpegPath:  cfg.FFmpeg.BinaryPath,
	}, a.storage, logging.WithComponent("assets"))

	a.frames = system.NewFramePool()
	a.raster = raster.New(a.library, a.frames, logging.WithComponent("raster"))
	a.renderer = video.NewRenderer(cfg, a.raster, a.storage, logging.WithComponent("video"))
	a.orchestrator = export.NewOrchestrator(a.renderer, a.store, a.events, logging.WithComponent("export"))
	a.presets = export.NewPresets(cfg.Cache.PresetTTL, cfg.Cache.Capacity)
	return a, nil
}

func (a *app) batch() *batch.Processor {
	return batch.NewProcessor(a.orchestrator, a.store, a.events, logging.WithComponent("batch"))
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn().Err(err).Msg("close failed")
		}
	}
}

func appFromCmd(cmd *cobra.Command) (*app, error) {
	return newApp(cmd.Context(), config.FromContext(cmd.Context()))
}
