package conf

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/chatimitate/feishu-chatimitate/internal/biz/usecase"
)

// LoadEngineConfig loads engine tunables from YAML.
// Fields absent from the file keep their DefaultEngineConfig values.
func LoadEngineConfig(configPath string) (usecase.EngineConfig, error) {
	cfg := usecase.DefaultEngineConfig()

	// Try multiple paths
	paths := []string{configPath}
	if configPath == "" {
		paths = []string{
			"configs/engine.yaml",
			"/etc/chatimitate/engine.yaml",
		}
		if execPath, err := os.Executable(); err == nil {
			paths = append(paths, filepath.Join(filepath.Dir(execPath), "configs", "engine.yaml"))
		}
	}

	var data []byte
	var loadedPath string
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err == nil {
			data, loadedPath = b, p
			break
		}
	}

	if data == nil {
		if configPath != "" {
			return cfg, fmt.Errorf("failed to read engine config %s", configPath)
		}
		slog.Info("no engine.yaml found, using defaults")
		return cfg, nil
	}

	slog.Info("loading engine config", "path", loadedPath)

	// Decoding onto the defaults leaves unset keys untouched
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse %s: %w", loadedPath, err)
	}
	if err := validateEngine(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validateEngine(cfg usecase.EngineConfig) error {
	switch {
	case cfg.KeywordsSize <= 0:
		return &ConfigError{Field: "keywords_size", Message: "must be positive"}
	case cfg.AnswerThreshold <= 0:
		return &ConfigError{Field: "answer_threshold", Message: "must be positive"}
	case cfg.RepeatThreshold <= 0:
		return &ConfigError{Field: "repeat_threshold", Message: "must be positive"}
	case cfg.SplitProbability < 0 || cfg.SplitProbability > 1:
		return &ConfigError{Field: "split_probability", Message: "must be within [0, 1]"}
	case cfg.SpeakPokeProbability < 0 || cfg.SpeakPokeProbability > 1:
		return &ConfigError{Field: "speak_poke_probability", Message: "must be within [0, 1]"}
	}
	return nil
}
