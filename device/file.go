package device

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.yaml.in/yaml/v3"
)

// LoadLayout reads a layout from a YAML (.yaml, .yml) or JSON file and
// validates it.
func LoadLayout(path string) (*Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read device layout file")
	}

	l := &Layout{}
	if isYAML(path) {
		err = yaml.Unmarshal(data, l)
	} else {
		err = json.Unmarshal(data, l)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse device layout %s", path)
	}

	if err := l.Validate(); err != nil {
		return nil, err
	}
	return l, nil
}

// SaveLayout writes a layout to a YAML or JSON file, picked by extension.
func SaveLayout(l *Layout, path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(l)
	} else {
		data, err = json.MarshalIndent(l, "", "  ")
	}
	if err != nil {
		return errors.Wrap(err, "failed to serialize device layout")
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrap(err, "failed to write device layout file")
	}
	return nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
