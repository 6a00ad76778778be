package schema

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// DefinitionPattern matches the model definition files picked up by LoadDir.
const DefinitionPattern = "**/*.{yaml,yml,toml,json}"

// LoadDir reads every model definition below dir. Definitions loaded from files carry no hooks
// or action handlers. A missing directory yields no models.
func LoadDir(dir string) ([]*ModelConfig, error) {
	if dir == "" {
		return nil, nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		slog.Debug("Model definition directory not found", "dir", dir)
		return nil, nil
	}
	return LoadFS(os.DirFS(dir))
}

// LoadFS reads every model definition of fsys matching DefinitionPattern.
func LoadFS(fsys fs.FS) ([]*ModelConfig, error) {
	matches, err := doublestar.Glob(fsys, DefinitionPattern)
	if err != nil {
		return nil, fmt.Errorf("failed to list model definitions: %w", err)
	}
	sort.Strings(matches)

	models := make([]*ModelConfig, 0, len(matches))
	for _, name := range matches {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		m, err := Decode(path.Ext(name), data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", name, err)
		}
		slog.Debug("Loaded model definition", "file", name, "model", m.Name)
		models = append(models, m)
	}
	return models, nil
}

// Decode parses a single model definition. ext selects the format (".yaml", ".yml", ".toml", ".json").
func Decode(ext string, data []byte) (*ModelConfig, error) {
	var m ModelConfig
	var err error
	switch ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &m)
	case ".toml":
		err = toml.Unmarshal(data, &m)
	case ".json":
		err = json.Unmarshal(data, &m)
	default:
		return nil, fmt.Errorf("unsupported definition format %q", ext)
	}
	if err != nil {
		return nil, err
	}
	if m.Name == "" {
		return nil, fmt.Errorf("definition has no name")
	}
	return &m, nil
}
