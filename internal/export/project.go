package export

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/ivlev/frameforge/internal/template"
)

// ProjectVersion is written into every saved project file.
const ProjectVersion = "1.0.0"

type ProjectSettings struct {
	DurationInFrames int           `json:"durationInFrames"`
	FPS              int           `json:"fps"`
	TemplateType     template.Kind `json:"templateType"`
}

// ProjectFile is the saved form of a single-template composition.
type ProjectFile struct {
	Version   string          `json:"version"`
	Timestamp time.Time       `json:"timestamp"`
	State     template.Props  `json:"state"`
	Settings  ProjectSettings `json:"settings"`
}

func NewProjectFile(props template.Props, durationInFrames, fps int, now time.Time) ProjectFile {
	return ProjectFile{
		Version:   ProjectVersion,
		Timestamp: now.UTC(),
		State:     props,
		Settings: ProjectSettings{
			DurationInFrames: durationInFrames,
			FPS:              fps,
			TemplateType:     props.Kind,
		},
	}
}

func (p ProjectFile) Validate() error {
	if p.Settings.TemplateType != p.State.Kind {
		return fmt.Errorf("%w: settings template %q does not match state %q", ErrInvalidOptions, p.Settings.TemplateType, p.State.Kind)
	}
	if p.Settings.DurationInFrames <= 0 || p.Settings.FPS <= 0 {
		return fmt.Errorf("%w: duration and fps must be positive", ErrInvalidOptions)
	}
	if err := p.State.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}
	return nil
}

// Options turns the project into an export request.
func (p ProjectFile) Options(format Format, quality Quality) Options {
	return Options{
		CompositionID:    CompositionPromo,
		OutputFormat:     format,
		Quality:          quality,
		InputProps:       p.State,
		DurationInFrames: p.Settings.DurationInFrames,
		FPS:              p.Settings.FPS,
	}
}

func SaveProject(w io.Writer, p ProjectFile) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(p); err != nil {
		return fmt.Errorf("failed to write project: %w", err)
	}
	return nil
}

func LoadProject(r io.Reader) (ProjectFile, error) {
	var p ProjectFile
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return ProjectFile{}, fmt.Errorf("failed to read project: %w", err)
	}
	if err := p.Validate(); err != nil {
		return ProjectFile{}, err
	}
	return p, nil
}
