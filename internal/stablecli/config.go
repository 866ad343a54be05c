// config.go holds .stableops config types and resolution (defaults, file, flags).
package stablecli

import (
	"fmt"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// Config holds optional values from .stableops/config.yaml. Flags
// override the file, the file overrides built-in defaults.
type Config struct {
	Server    string `yaml:"server"`
	Token     string `yaml:"token"`
	DB        string `yaml:"db"`
	StableID  string `yaml:"stable_id"`
	Caretaker string `yaml:"caretaker"`
}

func defaultConfig() Config {
	return Config{
		Caretaker: "stablectl",
	}
}

// loadFileConfig tries ./.stableops/config.yaml then ~/.stableops/config.yaml.
// Returns (config, pathToConfigFile, nil). If neither file exists, returns (empty, "", nil).
func loadFileConfig() (Config, string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, "", err
	}
	try := []string{
		filepath.Join(cwd, ".stableops", "config.yaml"),
	}
	if home, err := os.UserHomeDir(); err == nil {
		try = append(try, filepath.Join(home, ".stableops", "config.yaml"))
	}
	for _, p := range try {
		data, err := os.ReadFile(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return Config{}, "", err
		}
		var cfg Config
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, "", fmt.Errorf("%s: %w", p, err)
		}
		return cfg, p, nil
	}
	return Config{}, "", nil
}

// resolveConfig layers the three config sources: built-in defaults under
// the config file under explicitly set flags. Empty fields never
// override populated ones.
func resolveConfig(flagCfg Config) (Config, string, error) {
	fileCfg, configPath, err := loadFileConfig()
	if err != nil {
		return Config{}, "", err
	}

	cfg := defaultConfig()
	if err := mergo.Merge(&cfg, fileCfg, mergo.WithOverride); err != nil {
		return Config{}, "", err
	}
	if err := mergo.Merge(&cfg, flagCfg, mergo.WithOverride); err != nil {
		return Config{}, "", err
	}

	if cfg.DB == "" {
		var dir string
		if configPath != "" {
			dir = filepath.Dir(configPath)
		} else {
			dir = filepath.Join(cwdOr("."), ".stableops")
		}
		cfg.DB = filepath.Join(dir, "local.db")
	}
	return cfg, configPath, nil
}

func cwdOr(fallback string) string {
	cwd, err := os.Getwd()
	if err != nil {
		return fallback
	}
	return cwd
}
