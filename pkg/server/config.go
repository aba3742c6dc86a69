package server

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/boardsync/boardsync/pkg/model"
)

// ElementYAML represents one board element in YAML config.
type ElementYAML struct {
	Shape string  `yaml:"shape,omitempty"`
	X     float64 `yaml:"x"`
	Y     float64 `yaml:"y"`
	W     float64 `yaml:"w"`
	H     float64 `yaml:"h"`
}

// BoardConfig is the top-level YAML config for the board template new
// sessions are seeded from.
type BoardConfig struct {
	Elements []ElementYAML `yaml:"elements"`
}

// LoadBoardTemplate reads a board YAML file and returns the element template.
// Element IDs are assigned sequentially starting at 1.
func LoadBoardTemplate(path string) ([]model.Element, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path from user-provided CLI config
	if err != nil {
		return nil, fmt.Errorf("read board config: %w", err)
	}
	return ParseBoardTemplate(data)
}

// ParseBoardTemplate parses YAML data into the element template.
func ParseBoardTemplate(data []byte) ([]model.Element, error) {
	var cfg BoardConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse board config: %w", err)
	}

	elements := make([]model.Element, len(cfg.Elements))
	for i, e := range cfg.Elements {
		shape := e.Shape
		if shape == "" {
			shape = "rect"
		}
		elements[i] = model.Element{
			ID:    int64(i + 1),
			Shape: shape,
			X:     e.X,
			Y:     e.Y,
			W:     e.W,
			H:     e.H,
		}
	}
	return elements, nil
}
