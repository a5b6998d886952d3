package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/warden-sh/warden/internal/constants"
	"github.com/warden-sh/warden/internal/domain"
)

// Load reads the configuration at path. A missing file silently falls back
// to defaults; a present-but-malformed or invalid file logs an error and
// then falls back to defaults.
func Load(path string, logger *slog.Logger) *Config {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default()
		}
		logger.Error("reading config file, using defaults", "path", path, "error", err)
		return Default()
	}

	cfg, err := Parse(data)
	if err != nil {
		logger.Error("invalid config file, using defaults", "path", path, "error", err)
		return Default()
	}

	return cfg
}

// Save writes the configuration to path
func Save(cfg *Config, path string) error {
	data, err := cfg.Marshal()
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// FindConfigFile searches for a config file in standard locations
func FindConfigFile() (string, error) {
	candidates := []string{
		constants.DefaultConfigFile,
		"warden.yml",
		".warden.yaml",
		".warden.yml",
	}

	for _, name := range candidates {
		if _, err := os.Stat(name); err == nil {
			return name, nil
		}
	}

	return "", fmt.Errorf("%w (tried: %v)", domain.ErrConfigNotFound, candidates)
}

// LoadEnvFile reads a .env file and returns the variables as a map
func LoadEnvFile(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("env file not found: %s", path)
	}

	env, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("reading env file %s: %w", path, err)
	}

	return env, nil
}

// MergeEnv merges multiple environment maps in order, with later maps
// taking precedence
func MergeEnv(envMaps ...map[string]string) map[string]string {
	result := make(map[string]string)
	for _, env := range envMaps {
		for k, v := range env {
			result[k] = v
		}
	}
	return result
}

// LoadWorkerEnv loads and merges environment variables for a worker.
// Priority (lowest to highest): global env_file, worker env_file, worker
// env map.
func LoadWorkerEnv(globalEnvFile, workerEnvFile string, workerEnv map[string]string, configDir string) (map[string]string, error) {
	var globalEnv, workerFileEnv map[string]string
	var err error

	if globalEnvFile != "" {
		globalEnv, err = LoadEnvFile(resolvePath(globalEnvFile, configDir))
		if err != nil {
			return nil, fmt.Errorf("loading global env file: %w", err)
		}
	}

	if workerEnvFile != "" {
		workerFileEnv, err = LoadEnvFile(resolvePath(workerEnvFile, configDir))
		if err != nil {
			return nil, fmt.Errorf("loading worker env file: %w", err)
		}
	}

	return MergeEnv(globalEnv, workerFileEnv, workerEnv), nil
}

// resolvePath resolves a potentially relative path against a base directory
func resolvePath(path, baseDir string) string {
	if filepath.IsAbs(path) || baseDir == "" {
		return path
	}
	return filepath.Join(baseDir, path)
}
