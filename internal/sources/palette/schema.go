package palette

// FileConfig is the top-level structure of palette.yaml
type FileConfig struct {
	Default    string       `yaml:"default"`
	Colors     []ColorProps `yaml:"colors"`
	Categories []string     `yaml:"categories,omitempty"`
}

// ColorProps describes one named color
type ColorProps struct {
	Name string `yaml:"name"`
	Hex  string `yaml:"hex"`
}
