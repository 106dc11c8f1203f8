package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// viewsFile is the layout of VIEWS_FILE:
//
//	views:
//	  queues:
//	    status: waiting
//	  agents:
//	    sort-by: calls_taken
type viewsFile struct {
	Views map[string]map[string]string `yaml:"views"`
}

// LoadViews reads per-view facet defaults from a YAML file. Facet names and
// options are validated when the filter registry is built.
func LoadViews(path string) (map[string]map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("invalid VIEWS_FILE: %w", err)
	}

	var file viewsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("invalid VIEWS_FILE %s: %w", path, err)
	}
	if file.Views == nil {
		file.Views = map[string]map[string]string{}
	}
	return file.Views, nil
}
