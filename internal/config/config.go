package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

const FileName = "changelog-collator.toml"

type Config struct {
	Project       string   `toml:"project"`
	ChangelogFile string   `toml:"changelog_file"`
	SkipMarkers   []string `toml:"skip_markers"`
	Ignore        []string `toml:"ignore"`
	Jobs          int      `toml:"jobs"`
	GitHub        *GitHub  `toml:"github"`
}

type GitHub struct {
	ResolveDefaultBranch bool   `toml:"resolve_default_branch"`
	Token                string `toml:"token"`
}

// ConfigFileReader abstracts file access so configuration can come from
// somewhere other than the local filesystem.
type ConfigFileReader interface {
	ReadFile(path string) ([]byte, error)
	PathExists(path string) bool
}

type filesystemReader struct{}

func (filesystemReader) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (filesystemReader) PathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func Default() *Config {
	return &Config{
		Project:       "ROS 2",
		ChangelogFile: "CHANGELOG.rst",
		SkipMarkers:   []string{"COLCON_IGNORE", "AMENT_IGNORE", "CATKIN_IGNORE"},
		Ignore:        []string{},
		Jobs:          4,
		GitHub:        &GitHub{ResolveDefaultBranch: false, Token: ""},
	}
}

// ReadConfig loads changelog-collator.toml from dir. A missing file yields
// the defaults. A nil reader reads from the local filesystem.
func ReadConfig(dir string, reader ConfigFileReader) (*Config, error) {
	return ReadConfigFile(filepath.Join(dir, FileName), reader, false)
}

// ReadConfigFile loads the configuration at path. When required is set a
// missing file is an error.
func ReadConfigFile(path string, reader ConfigFileReader, required bool) (*Config, error) {
	if reader == nil {
		reader = filesystemReader{}
	}

	defaultConfig := Default()
	if !reader.PathExists(path) {
		if required {
			return defaultConfig, fmt.Errorf("config file not found: %s", path)
		}
		return defaultConfig, nil
	}
	file, err := reader.ReadFile(path)
	if err != nil {
		return defaultConfig, err
	}
	config := Default()
	if err := toml.Unmarshal(file, config); err != nil {
		return defaultConfig, fmt.Errorf("parsing %s: %w", path, err)
	}
	if config.GitHub == nil {
		config.GitHub = defaultConfig.GitHub
	}
	if config.Project == "" {
		config.Project = defaultConfig.Project
	}
	if config.ChangelogFile == "" {
		config.ChangelogFile = defaultConfig.ChangelogFile
	}
	if config.Jobs < 1 {
		return defaultConfig, fmt.Errorf("jobs must be positive, got %d", config.Jobs)
	}
	return config, nil
}
