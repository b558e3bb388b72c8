package palette

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Loader handles loading and parsing of palette.yaml
type Loader struct {
	filePath string
}

// NewLoader creates a new palette loader
func NewLoader(filePath string) *Loader {
	return &Loader{
		filePath: filePath,
	}
}

// Path returns the file the loader reads
func (l *Loader) Path() string {
	return l.filePath
}

// Load reads and parses the palette file
func (l *Loader) Load() (*FileConfig, error) {
	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read palette file: %w", err)
	}

	// Expand ${VAR} references so deployments can template colors
	data = []byte(os.ExpandEnv(string(data)))

	var config FileConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse palette yaml: %w", err)
	}

	return &config, nil
}
