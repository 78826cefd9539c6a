package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ivlev/frameforge/internal/assets"
	"github.com/ivlev/frameforge/internal/export"
	"github.com/ivlev/frameforge/internal/logging"
	"github.com/ivlev/frameforge/internal/project"
	"github.com/ivlev/frameforge/internal/scene"
	"github.com/ivlev/frameforge/internal/template"
)

var (
	projectTemplate string
	projectDuration int
	projectFPS      int
	projectOut      string
	projectID       string
	projectName     string
	projectNote     string
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Project files and version history",
}

var projectInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a project file with template defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := template.ParseKind(projectTemplate)
		if err != nil {
			return err
		}
		pf := export.NewProjectFile(template.DefaultProps(kind), projectDuration, projectFPS, time.Now())
		if err := saveProjectFile(projectOut, pf); err != nil {
			return err
		}
		log.Info().Str("path", projectOut).Str("template", string(kind)).Msg("project created")
		return nil
	},
}

var projectSaveCmd = &cobra.Command{
	Use:   "save [project file]",
	Short: "Store a project file as a new version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pf, err := loadProjectFile(args[0])
		if err != nil {
			return err
		}
		mgr, closeApp, err := projectManager(cmd)
		if err != nil {
			return err
		}
		defer closeApp()

		var p *project.Project
		if projectID == "" {
			name := projectName
			if name == "" {
				name = filepath.Base(args[0])
			}
			p, err = mgr.Create(cmd.Context(), name, pf)
		} else {
			if _, err = mgr.Load(cmd.Context(), projectID); err != nil {
				return err
			}
			p, err = mgr.SaveVersion(cmd.Context(), projectID, pf, projectNote)
		}
		if err != nil {
			return err
		}
		log.Info().Str("project", p.ID).Int("version", p.Version).Msg("project saved")
		return nil
	},
}

var projectVersionsCmd = &cobra.Command{
	Use:   "versions [project id]",
	Short: "List the stored versions of a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, closeApp, err := projectManager(cmd)
		if err != nil {
			return err
		}
		defer closeApp()

		if _, err := mgr.Load(cmd.Context(), args[0]); err != nil {
			return err
		}
		versions, err := mgr.Versions(args[0])
		if err != nil {
			return err
		}
		for _, v := range versions {
			fmt.Printf("v%-3d %s  %-12s %s\n", v.Number, v.CreatedAt.Format(time.RFC3339), v.State.Settings.TemplateType, v.Note)
		}
		return nil
	},
}

var projectRestoreCmd = &cobra.Command{
	Use:   "restore [project id] [version]",
	Short: "Save an earlier version as the newest one",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		number, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[1], err)
		}
		mgr, closeApp, err := projectManager(cmd)
		if err != nil {
			return err
		}
		defer closeApp()

		if _, err := mgr.Load(cmd.Context(), args[0]); err != nil {
			return err
		}
		p, err := mgr.RestoreVersion(cmd.Context(), args[0], number)
		if err != nil {
			return err
		}
		if projectOut != "" {
			if err := saveProjectFile(projectOut, p.State); err != nil {
				return err
			}
		}
		log.Info().Str("project", p.ID).Int("version", p.Version).Int("restored", number).Msg("version restored")
		return nil
	},
}

func projectManager(cmd *cobra.Command) (*project.Manager, func(), error) {
	a, err := appFromCmd(cmd)
	if err != nil {
		return nil, nil, err
	}
	return project.NewManager(a.store, time.Now, logging.WithComponent("project")), a.Close, nil
}

func loadProjectFile(path string) (export.ProjectFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return export.ProjectFile{}, err
	}
	defer f.Close()
	return export.LoadProject(f)
}

func saveProjectFile(path string, pf export.ProjectFile) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := export.SaveProject(f, pf); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

var (
	sceneTemplate string
	sceneName     string
	sceneStart    int
	sceneDuration int
)

var timelineCmd = &cobra.Command{
	Use:   "timeline",
	Short: "Edit timeline files",
}

// editTimeline loads path (an empty timeline if it does not exist yet),
// applies fn and writes the result back.
func editTimeline(path string, fn func(scene.Timeline) (scene.Timeline, error)) error {
	tl, err := scene.ReadTimeline(path)
	if os.IsNotExist(err) {
		tl, err = scene.Timeline{}, nil
	}
	if err != nil {
		return err
	}
	tl, err = fn(tl)
	if err != nil {
		return err
	}
	if err := scene.WriteTimeline(tl, path); err != nil {
		return err
	}
	printTimeline(tl)
	return nil
}

func printTimeline(tl scene.Timeline) {
	for _, s := range tl.Scenes {
		fmt.Printf("%s  %-20s %-12s [%d, %d)\n", s.ID, s.Name, s.Template, s.StartFrame, s.EndFrame())
	}
	fmt.Printf("total: %d frames\n", tl.TotalDuration)
}

var timelineAddCmd = &cobra.Command{
	Use:   "add [timeline file]",
	Short: "Append a scene with template defaults",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := template.ParseKind(sceneTemplate)
		if err != nil {
			return err
		}
		return editTimeline(args[0], func(tl scene.Timeline) (scene.Timeline, error) {
			start := sceneStart
			if start < 0 {
				start = tl.TotalDuration
			}
			name := sceneName
			if name == "" {
				name = fmt.Sprintf("scene %d", len(tl.Scenes)+1)
			}
			s, err := scene.CreateScene(name, kind, start, sceneDuration, template.DefaultProps(kind))
			if err != nil {
				return tl, err
			}
			return scene.AddScene(tl, s), nil
		})
	},
}

var timelineShowCmd = &cobra.Command{
	Use:   "show [timeline file]",
	Short: "Print the scenes of a timeline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tl, err := scene.ReadTimeline(args[0])
		if err != nil {
			return err
		}
		printTimeline(tl)
		return nil
	},
}

var timelinePackCmd = &cobra.Command{
	Use:   "pack [timeline file]",
	Short: "Close the gaps between scenes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editTimeline(args[0], func(tl scene.Timeline) (scene.Timeline, error) {
			return scene.ReorderScenes(tl), nil
		})
	},
}

var timelineDuplicateCmd = &cobra.Command{
	Use:   "duplicate [timeline file] [scene id]",
	Short: "Copy a scene right after the original",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editTimeline(args[0], func(tl scene.Timeline) (scene.Timeline, error) {
			return scene.DuplicateScene(tl, args[1])
		})
	},
}

var timelineRemoveCmd = &cobra.Command{
	Use:   "remove [timeline file] [scene id]",
	Short: "Remove a scene",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editTimeline(args[0], func(tl scene.Timeline) (scene.Timeline, error) {
			return scene.RemoveScene(tl, args[1]), nil
		})
	},
}

var timelineMoveCmd = &cobra.Command{
	Use:   "move [timeline file] [scene id] [start frame]",
	Short: "Move a scene to a new start frame",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		start, err := strconv.Atoi(args[2])
		if err != nil {
			return err
		}
		return editTimeline(args[0], func(tl scene.Timeline) (scene.Timeline, error) {
			return scene.MoveScene(tl, args[1], start)
		})
	},
}

var timelineResizeCmd = &cobra.Command{
	Use:   "resize [timeline file] [scene id] [frames]",
	Short: "Change the duration of a scene",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		frames, err := strconv.Atoi(args[2])
		if err != nil {
			return err
		}
		return editTimeline(args[0], func(tl scene.Timeline) (scene.Timeline, error) {
			return scene.UpdateSceneDuration(tl, args[1], frames)
		})
	},
}

var assetsCmd = &cobra.Command{
	Use:   "assets",
	Short: "Validate and upload media assets",
}

var assetsValidateCmd = &cobra.Command{
	Use:   "validate [files...]",
	Short: "Check asset type and size limits",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bad := 0
		for _, path := range args {
			if err := checkAsset(path); err != nil {
				bad++
				fmt.Printf("FAIL  %s: %v\n", path, err)
				continue
			}
			fmt.Printf("ok    %s\n", path)
		}
		if bad > 0 {
			return fmt.Errorf("%d of %d assets failed validation", bad, len(args))
		}
		return nil
	},
}

func checkAsset(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	kind, ok := assets.KindOf(path)
	if !ok {
		return fmt.Errorf("%w: unsupported file type", assets.ErrInvalidAsset)
	}
	return assets.Validate(filepath.Base(path), info.Size(), kind)
}

var assetsUploadCmd = &cobra.Command{
	Use:   "upload [file]",
	Short: "Validate a file and put it in object storage",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		info, err := os.Stat(args[0])
		if err != nil {
			return err
		}
		kind, ok := assets.KindOf(args[0])
		if !ok {
			return fmt.Errorf("%w: unsupported file type", assets.ErrInvalidAsset)
		}

		a, err := appFromCmd(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		obj, err := a.library.Upload(cmd.Context(), filepath.Base(args[0]), f, info.Size(), kind)
		if err != nil {
			return err
		}
		log.Info().Str("key", obj.Key).Str("url", obj.URL).Msg("uploaded")

		if kind == assets.KindDocument {
			if n, err := a.library.Pages(cmd.Context(), args[0]); err == nil {
				log.Info().Int("pages", n).Msg("reference pages as <url>#N")
			}
		}
		return nil
	},
}

func init() {
	projectInitCmd.Flags().StringVarP(&projectTemplate, "template", "t", "corporate", "template type")
	projectInitCmd.Flags().IntVar(&projectDuration, "duration", 150, "duration in frames")
	projectInitCmd.Flags().IntVar(&projectFPS, "fps", 30, "frames per second")
	projectInitCmd.Flags().StringVarP(&projectOut, "out", "o", "project.json", "output path")
	projectSaveCmd.Flags().StringVar(&projectID, "id", "", "existing project id (empty creates a project)")
	projectSaveCmd.Flags().StringVar(&projectName, "name", "", "project name")
	projectSaveCmd.Flags().StringVar(&projectNote, "note", "", "version note")
	projectRestoreCmd.Flags().StringVarP(&projectOut, "out", "o", "", "also write the restored state to this file")
	projectCmd.AddCommand(projectInitCmd, projectSaveCmd, projectVersionsCmd, projectRestoreCmd)

	timelineAddCmd.Flags().StringVarP(&sceneTemplate, "template", "t", "corporate", "template type")
	timelineAddCmd.Flags().StringVar(&sceneName, "name", "", "scene name")
	timelineAddCmd.Flags().IntVar(&sceneStart, "start", -1, "start frame (-1 appends after the last scene)")
	timelineAddCmd.Flags().IntVar(&sceneDuration, "duration", 90, "duration in frames")
	timelineCmd.AddCommand(timelineAddCmd, timelineShowCmd, timelinePackCmd, timelineDuplicateCmd,
		timelineRemoveCmd, timelineMoveCmd, timelineResizeCmd)

	assetsCmd.AddCommand(assetsValidateCmd, assetsUploadCmd)
}
