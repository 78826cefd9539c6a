package scene

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// WriteTimeline writes a timeline to a YAML file
func WriteTimeline(tl Timeline, path string) error {
	data, err := yaml.Marshal(tl)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// ReadTimeline reads a timeline from a YAML file and validates every scene
func ReadTimeline(path string) (Timeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Timeline{}, err
	}

	var tl Timeline
	if err := yaml.Unmarshal(data, &tl); err != nil {
		return Timeline{}, err
	}

	for i, s := range tl.Scenes {
		if err := s.Validate(); err != nil {
			return Timeline{}, fmt.Errorf("scene %d (%s): %w", i, s.Name, err)
		}
	}
	return normalized(tl.Scenes), nil
}
