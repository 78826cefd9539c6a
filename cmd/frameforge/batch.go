package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ivlev/frameforge/internal/export"
	"github.com/ivlev/frameforge/internal/template"
)

type batchFile struct {
	Name   string      `yaml:"name"`
	Videos []batchItem `yaml:"videos"`
}

type batchItem struct {
	Template string           `yaml:"template"`
	Props    *template.Props  `yaml:"props"`
	Format   string           `yaml:"format"`
	Quality  string           `yaml:"quality"`
	Preset   string           `yaml:"preset"`
	Duration int              `yaml:"duration"`
	FPS      int              `yaml:"fps"`
	Overlay  template.Overlay `yaml:"overlay"`
}

// options turns an item into export options. Problems are left for
// validation so they fail the item, not the batch.
func (it batchItem) options(a *app) export.Options {
	props := template.Props{Kind: template.Kind(it.Template)}
	if kind, err := template.ParseKind(it.Template); err == nil {
		props = template.DefaultProps(kind)
	}
	if it.Props != nil {
		props = *it.Props
		if props.Kind == "" {
			props.Kind = template.Kind(it.Template)
		}
	}

	opts := export.Options{
		CompositionID:    export.CompositionPromo,
		OutputFormat:     export.Format(orDefault(it.Format, "mp4")),
		Quality:          export.Quality(orDefault(it.Quality, "high")),
		InputProps:       props,
		Overlay:          it.Overlay,
		DurationInFrames: firstPositive(it.Duration, template.DefaultVideoConfig().DurationInFrames),
		FPS:              firstPositive(it.FPS, a.cfg.FPS),
		Width:            a.cfg.Width,
		Height:           a.cfg.Height,
	}
	if it.Preset != "" {
		p, err := a.presets.Get(it.Preset)
		if err != nil {
			log.Warn().Err(err).Str("preset", it.Preset).Msg("preset ignored")
			return opts
		}
		opts = p.Apply(opts)
	}
	return opts
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

var batchCmd = &cobra.Command{
	Use:   "batch [batch file]",
	Short: "Render every video listed in a YAML batch file, one after another",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		var bf batchFile
		if err := yaml.Unmarshal(data, &bf); err != nil {
			return fmt.Errorf("failed to parse %s: %w", args[0], err)
		}

		a, err := appFromCmd(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		videos := make([]export.Options, 0, len(bf.Videos))
		for _, it := range bf.Videos {
			videos = append(videos, it.options(a))
		}

		proc := a.batch()
		job, err := proc.CreateJob(orDefault(bf.Name, args[0]), videos)
		if err != nil {
			return err
		}

		// Ctrl-C cancels the batch. The item being rendered still finishes.
		interrupt := make(chan os.Signal, 1)
		signal.Notify(interrupt, os.Interrupt)
		defer signal.Stop(interrupt)
		go func() {
			if _, ok := <-interrupt; ok {
				log.Warn().Msg("interrupted, stopping after the current item")
				proc.Cancel(job.ID)
			}
		}()

		bar := newBar(fmt.Sprintf("batch %s", job.Name))
		done, err := proc.ProcessJob(cmd.Context(), job.ID, func(p float64) {
			bar.Set(int(p))
		})
		bar.Finish()
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return err
		}

		failed := 0
		for _, r := range done.Results {
			if r.Success {
				fmt.Printf("  [%d] ok      %s\n", r.Index, r.URL)
				continue
			}
			failed++
			fmt.Printf("  [%d] failed  %s\n", r.Index, r.Error)
		}
		log.Info().
			Str("batch", done.ID).
			Str("status", string(done.Status)).
			Int("total", len(done.Videos)).
			Int("failed", failed).
			Msg("batch finished")

		if done.Status == export.Failed {
			return fmt.Errorf("batch %s was cancelled", done.ID)
		}
		return nil
	},
}
